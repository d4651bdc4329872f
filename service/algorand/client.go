package algorand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brojonat/rafflebandz/service/metrics"
)

// ErrSourceUnavailable marks every failure to obtain or decode indexer data.
var ErrSourceUnavailable = errors.New("transaction source unavailable")

// APIError is a non-success HTTP response from the indexer.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("indexer returned status %d: %s", e.StatusCode, e.Body)
}

// Client reads asset parameters and asset transaction history from an Algorand
// indexer. Requests are made one at a time and are never retried.
type Client struct {
	baseURL    string
	apiToken   string
	pageLimit  int
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIToken sets the X-Indexer-API-Token header sent with every request.
func WithAPIToken(token string) ClientOption {
	return func(c *Client) {
		c.apiToken = token
	}
}

// WithPageLimit sets the page size requested from the indexer. Zero leaves it to the server.
func WithPageLimit(limit int) ClientOption {
	return func(c *Client) {
		c.pageLimit = limit
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMetrics enables metrics recording.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a new indexer client.
// The default HTTP client has no timeout; a hung request blocks until ctx is done.
func NewClient(baseURL string, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAssetInfo fetches the parameters of an asset.
func (c *Client) GetAssetInfo(ctx context.Context, assetID uint64) (*AssetInfo, error) {
	path := fmt.Sprintf("/v2/assets/%d", assetID)
	c.logger.InfoContext(ctx, "fetching asset information", "asset_id", assetID, "url", c.baseURL+path)

	var raw rawAsset
	if err := c.get(ctx, "asset", path, nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to get asset %d: %w", assetID, err)
	}

	info, err := assetInfoFromRaw(assetID, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	c.logger.InfoContext(ctx, "fetched asset information",
		"asset_id", info.AssetID,
		"name", info.Name,
		"unit_name", info.UnitName,
		"created_round", info.CreatedRound,
		"supply", info.Supply,
		"decimals", info.Decimals,
		"creator", info.Creator,
	)
	return info, nil
}

// GetAssetTransactions fetches the asset's full transaction history from minRound,
// following next-token cursors until the indexer stops returning one. Records are
// returned in the order received.
func (c *Client) GetAssetTransactions(ctx context.Context, assetID, minRound uint64) ([]Record, error) {
	path := fmt.Sprintf("/v2/assets/%d/transactions", assetID)
	assetLabel := strconv.FormatUint(assetID, 10)

	var records []Record
	next := ""
	for {
		query := url.Values{}
		query.Set("min-round", strconv.FormatUint(minRound, 10))
		if c.pageLimit > 0 {
			query.Set("limit", strconv.Itoa(c.pageLimit))
		}
		if next != "" {
			query.Set("next", next)
		}

		c.logger.DebugContext(ctx, "fetching transactions",
			"asset_id", assetID,
			"min_round", minRound,
			"next", next,
		)

		var page rawTransactionsPage
		if err := c.get(ctx, "asset_transactions", path, query, &page); err != nil {
			return nil, fmt.Errorf("failed to get transactions for asset %d: %w", assetID, err)
		}
		if page.Transactions == nil {
			return nil, fmt.Errorf("%w: asset %d: transactions page without transactions", ErrSourceUnavailable, assetID)
		}
		txns := *page.Transactions
		if c.metrics != nil {
			c.metrics.RecordIndexerPage(assetLabel, len(txns))
		}

		for i := range txns {
			rec, err := recordFromRaw(&txns[i])
			if err != nil {
				return nil, fmt.Errorf("%w: asset %d: %w", ErrSourceUnavailable, assetID, err)
			}
			records = append(records, rec)
		}

		if page.NextToken == "" || len(txns) == 0 {
			break
		}
		next = page.NextToken
	}

	c.logger.InfoContext(ctx, "fetched transaction history",
		"asset_id", assetID,
		"records", len(records),
	)
	return records, nil
}

// Transfers fetches the asset's history and returns only the records that move it.
func (c *Client) Transfers(ctx context.Context, assetID, minRound uint64) ([]Transfer, error) {
	records, err := c.GetAssetTransactions(ctx, assetID, minRound)
	if err != nil {
		return nil, err
	}
	return ClassifyAll(ctx, records, assetID, c.logger, c.metrics), nil
}

// ClassifyAll classifies records in order and keeps the qualifying transfers.
// Application calls wrapping more than one qualifying transfer are logged, since only
// the first of them is honoured.
func ClassifyAll(ctx context.Context, records []Record, assetID uint64, logger *slog.Logger, m *metrics.Metrics) []Transfer {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	transfers := make([]Transfer, 0, len(records))
	multi := 0
	for _, rec := range records {
		t, ok := Classify(rec, assetID)
		if !ok {
			continue
		}
		if n := CountQualifyingInner(rec, assetID); n > 1 {
			multi++
			logger.WarnContext(ctx, "application call moves the asset more than once, only the first transfer is counted",
				"asset_id", assetID,
				"txid", rec.TxID(),
				"qualifying_inner", n,
			)
		}
		transfers = append(transfers, t)
	}

	if m != nil {
		label := strconv.FormatUint(assetID, 10)
		m.RecordRecordsClassified(label, "transfer", len(transfers))
		m.RecordRecordsClassified(label, "skipped", len(records)-len(transfers))
		m.RecordRecordsClassified(label, "multi_inner", multi)
	}

	logger.InfoContext(ctx, "classified transactions",
		"asset_id", assetID,
		"records", len(records),
		"transfers", len(transfers),
	)
	return transfers
}

// get performs a single GET request and decodes the JSON body into result.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, result any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %w", ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("X-Indexer-API-Token", c.apiToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	status := "success"
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordIndexerRequest(endpoint, status, time.Since(start).Seconds())
		}
	}()
	if err != nil {
		status = "error"
		return fmt.Errorf("%w: request failed: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		status = "error"
		return fmt.Errorf("%w: failed to read response: %w", ErrSourceUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		status = strconv.Itoa(resp.StatusCode)
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, &APIError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	if err := json.Unmarshal(body, result); err != nil {
		status = "decode_error"
		return fmt.Errorf("%w: failed to decode response: %w", ErrSourceUnavailable, err)
	}
	return nil
}

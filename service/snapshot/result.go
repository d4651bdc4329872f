package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/rafflebandz/service/algorand"
	"github.com/brojonat/rafflebandz/service/ledger"
)

// Kind classifies the outcome of one asset's pipeline.
type Kind int

const (
	// KindInternal covers failures that indicate a bug, such as a broken conservation check.
	KindInternal Kind = iota
	// KindOK means the asset produced at least one eligible holder.
	KindOK
	// KindEmpty means the pipeline succeeded but no holder is eligible.
	KindEmpty
	// KindSourceUnavailable means the indexer could not be reached or returned bad data.
	KindSourceUnavailable
	// KindLedgerInvariant means replay produced negative balances and force was off.
	KindLedgerInvariant
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindEmpty:
		return "empty"
	case KindSourceUnavailable:
		return "source_unavailable"
	case KindLedgerInvariant:
		return "ledger_invariant"
	default:
		return "internal"
	}
}

// Failed reports whether the kind represents a failed asset.
func (k Kind) Failed() bool {
	return k != KindOK && k != KindEmpty
}

func kindOf(err error) Kind {
	switch {
	case errors.Is(err, algorand.ErrSourceUnavailable):
		return KindSourceUnavailable
	case errors.Is(err, ledger.ErrLedgerInvariant):
		return KindLedgerInvariant
	default:
		return KindInternal
	}
}

// AssetResult is the outcome of one asset's pipeline.
type AssetResult struct {
	AssetID   uint64
	Info      *algorand.AssetInfo
	Issuer    string
	Transfers int
	Holders   *ledger.HolderSet
	Replay    *ledger.ReplayReport
	Filter    *ledger.FilterReport
	Kind      Kind
	Err       error
	Duration  time.Duration
}

func (r *AssetResult) fail(kind Kind, err error) {
	r.Kind = kind
	r.Err = err
}

// UnitName returns the asset's unit name, or its ID when the info is missing.
func (r *AssetResult) UnitName() string {
	if r.Info != nil && r.Info.UnitName != "" {
		return r.Info.UnitName
	}
	return fmt.Sprintf("%d", r.AssetID)
}

// Summary collects the results of a run.
type Summary struct {
	Results []*AssetResult
}

// NewSummary wraps results, which must be in the order the assets were requested.
func NewSummary(results []*AssetResult) *Summary {
	return &Summary{Results: results}
}

// Succeeded returns the results that did not fail, in request order.
func (s *Summary) Succeeded() []*AssetResult {
	var out []*AssetResult
	for _, r := range s.Results {
		if !r.Kind.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the failed results, in request order.
func (s *Summary) Failed() []*AssetResult {
	var out []*AssetResult
	for _, r := range s.Results {
		if r.Kind.Failed() {
			out = append(out, r)
		}
	}
	return out
}

// Err returns a non-nil error naming every failed asset.
func (s *Summary) Err() error {
	failed := s.Failed()
	if len(failed) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(failed))
	errs := make([]error, 0, len(failed))
	for _, r := range failed {
		msgs = append(msgs, fmt.Sprintf("asset %d (%s)", r.AssetID, r.Kind))
		errs = append(errs, r.Err)
	}
	return fmt.Errorf("%d of %d assets failed: %s: %w", len(failed), len(s.Results), strings.Join(msgs, ", "), errors.Join(errs...))
}

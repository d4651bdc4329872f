package algorand

import (
	"fmt"
	"math"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Indexer transaction types.
const (
	TxTypeAssetTransfer = "axfer"
	TxTypeAppCall       = "appl"
)

// rawAsset mirrors the indexer's /v2/assets/{id} response.
type rawAsset struct {
	Asset struct {
		Index          uint64 `json:"index"`
		CreatedAtRound uint64 `json:"created-at-round"`
		Deleted        bool   `json:"deleted"`
		Params         struct {
			Creator  string `json:"creator"`
			Manager  string `json:"manager"`
			Reserve  string `json:"reserve"`
			Freeze   string `json:"freeze"`
			Clawback string `json:"clawback"`
			Name     string `json:"name"`
			UnitName string `json:"unit-name"`
			Decimals uint64 `json:"decimals"`
			Total    uint64 `json:"total"`
			URL      string `json:"url"`
		} `json:"params"`
	} `json:"asset"`
}

// rawTransactionsPage mirrors the indexer's /v2/assets/{id}/transactions response.
// Transactions is nil when the key is absent.
type rawTransactionsPage struct {
	Transactions *[]rawTransaction `json:"transactions"`
	NextToken    string           `json:"next-token"`
}

type rawTransaction struct {
	ID            string            `json:"id"`
	TxType        string            `json:"tx-type"`
	Sender        string            `json:"sender"`
	AssetTransfer *rawAssetTransfer `json:"asset-transfer-transaction"`
	InnerTxns     []rawTransaction  `json:"inner-txns"`
}

type rawAssetTransfer struct {
	AssetID     uint64 `json:"asset-id"`
	Amount      uint64 `json:"amount"`
	Receiver    string `json:"receiver"`
	CloseTo     string `json:"close-to"`
	CloseAmount uint64 `json:"close-amount"`
}

// assetInfoFromRaw converts the indexer asset payload into an AssetInfo.
func assetInfoFromRaw(assetID uint64, raw *rawAsset) (*AssetInfo, error) {
	params := raw.Asset.Params
	if raw.Asset.Index != assetID {
		return nil, fmt.Errorf("asset payload has index %d, want %d", raw.Asset.Index, assetID)
	}
	if params.Creator == "" {
		return nil, fmt.Errorf("asset %d payload has no creator", assetID)
	}
	if params.Total > math.MaxInt64 {
		return nil, fmt.Errorf("asset %d total supply %d exceeds supported range", assetID, params.Total)
	}

	return &AssetInfo{
		AssetID:      assetID,
		CreatedRound: raw.Asset.CreatedAtRound,
		Deleted:      raw.Asset.Deleted,
		Creator:      params.Creator,
		Manager:      roleAddress(params.Manager),
		Reserve:      roleAddress(params.Reserve),
		Freeze:       roleAddress(params.Freeze),
		Clawback:     roleAddress(params.Clawback),
		Name:         params.Name,
		UnitName:     params.UnitName,
		Decimals:     params.Decimals,
		Supply:       int64(params.Total),
		URL:          params.URL,
	}, nil
}

func roleAddress(addr string) *string {
	if addr == "" || addr == ZeroAddress {
		return nil
	}
	return &addr
}

// recordFromRaw validates one raw transaction and narrows it to a Record.
func recordFromRaw(raw *rawTransaction) (Record, error) {
	switch raw.TxType {
	case TxTypeAssetTransfer:
		if raw.AssetTransfer == nil {
			return nil, fmt.Errorf("transaction %s: axfer without asset-transfer-transaction", raw.ID)
		}
		return &AssetTransfer{
			ID:          raw.ID,
			Sender:      raw.Sender,
			AssetID:     raw.AssetTransfer.AssetID,
			Amount:      raw.AssetTransfer.Amount,
			Receiver:    raw.AssetTransfer.Receiver,
			CloseTo:     raw.AssetTransfer.CloseTo,
			CloseAmount: raw.AssetTransfer.CloseAmount,
		}, nil

	case TxTypeAppCall:
		call := &AppCall{
			ID:     raw.ID,
			Sender: raw.Sender,
			Inner:  make([]Record, 0, len(raw.InnerTxns)),
		}
		for i := range raw.InnerTxns {
			inner, err := recordFromRaw(&raw.InnerTxns[i])
			if err != nil {
				return nil, fmt.Errorf("transaction %s inner %d: %w", raw.ID, i, err)
			}
			call.Inner = append(call.Inner, inner)
		}
		return call, nil

	default:
		return &Other{ID: raw.ID, Type: raw.TxType}, nil
	}
}

// ValidAddress reports whether addr is a well-formed Algorand address.
func ValidAddress(addr string) bool {
	_, err := types.DecodeAddress(addr)
	return err == nil
}

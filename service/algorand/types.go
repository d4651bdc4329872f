package algorand

// ZeroAddress is the all-zero Algorand address. The indexer reports it for unset
// asset roles and as the receiver of pure close-out transfers.
const ZeroAddress = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ"

// AssetInfo is a snapshot of an asset's parameters as reported by the indexer.
// Role addresses set to ZeroAddress are reported as nil.
type AssetInfo struct {
	AssetID      uint64  `json:"asset_id"`
	CreatedRound uint64  `json:"created_round"`
	Deleted      bool    `json:"deleted"`
	Creator      string  `json:"creator"`
	Manager      *string `json:"manager,omitempty"`
	Reserve      *string `json:"reserve,omitempty"`
	Freeze       *string `json:"freeze,omitempty"`
	Clawback     *string `json:"clawback,omitempty"`
	Name         string  `json:"name"`
	UnitName     string  `json:"unit_name"`
	Decimals     uint64  `json:"decimals"`
	Supply       int64   `json:"supply"`
	URL          string  `json:"url,omitempty"`
}

// MinRound is the round transaction history is requested from.
func (a *AssetInfo) MinRound() uint64 {
	if a.CreatedRound == 0 {
		return 0
	}
	return a.CreatedRound - 1
}

// Transfer is the effect of one qualifying record on the tracked asset.
type Transfer struct {
	TxID     string `json:"txid,omitempty"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Amount   uint64 `json:"amount"`
}

// Record is one transaction as returned by the indexer, narrowed to the shapes the
// classifier understands. It is one of *AssetTransfer, *AppCall or *Other.
type Record interface {
	TxID() string
	record()
}

// AssetTransfer is an "axfer" transaction.
type AssetTransfer struct {
	ID          string
	Sender      string
	AssetID     uint64
	Amount      uint64
	Receiver    string
	CloseTo     string
	CloseAmount uint64
}

// AppCall is an "appl" transaction together with the inner transactions it issued.
type AppCall struct {
	ID     string
	Sender string
	Inner  []Record
}

// Other is any transaction type that never moves the tracked asset by itself.
type Other struct {
	ID   string
	Type string
}

func (t *AssetTransfer) TxID() string { return t.ID }
func (t *AppCall) TxID() string       { return t.ID }
func (t *Other) TxID() string         { return t.ID }

func (*AssetTransfer) record() {}
func (*AppCall) record()       {}
func (*Other) record()         {}

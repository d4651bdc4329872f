package algorand

// Classify decides whether rec moves the tracked asset and, if so, extracts the
// transfer. It has no side effects.
//
// An application call qualifies through its inner transactions: the sender is the
// outer caller, receiver and amount come from the first qualifying inner transfer.
// Calls that issue several qualifying transfers are still reduced to the first one;
// use CountQualifyingInner to detect them.
func Classify(rec Record, assetID uint64) (Transfer, bool) {
	switch r := rec.(type) {
	case *AssetTransfer:
		if !qualifies(r, assetID) {
			return Transfer{}, false
		}
		return Transfer{
			TxID:     r.ID,
			Sender:   r.Sender,
			Receiver: transferReceiver(r),
			Amount:   transferAmount(r),
		}, true

	case *AppCall:
		inner := firstQualifyingInner(r, assetID)
		if inner == nil {
			return Transfer{}, false
		}
		return Transfer{
			TxID:     r.ID,
			Sender:   r.Sender,
			Receiver: transferReceiver(inner),
			Amount:   transferAmount(inner),
		}, true

	default:
		return Transfer{}, false
	}
}

// CountQualifyingInner returns how many inner transactions of an application call
// qualify as transfers of assetID. Zero for any other record.
func CountQualifyingInner(rec Record, assetID uint64) int {
	call, ok := rec.(*AppCall)
	if !ok {
		return 0
	}
	n := 0
	for _, inner := range call.Inner {
		if t, ok := inner.(*AssetTransfer); ok && qualifies(t, assetID) {
			n++
		}
	}
	return n
}

func qualifies(t *AssetTransfer, assetID uint64) bool {
	return t.AssetID == assetID && (t.Amount > 0 || t.CloseAmount > 0)
}

func firstQualifyingInner(call *AppCall, assetID uint64) *AssetTransfer {
	for _, inner := range call.Inner {
		if t, ok := inner.(*AssetTransfer); ok && qualifies(t, assetID) {
			return t
		}
	}
	return nil
}

// transferReceiver resolves close-out transfers sent to the zero address.
func transferReceiver(t *AssetTransfer) string {
	if t.Receiver == ZeroAddress && t.CloseTo != "" && t.CloseTo != ZeroAddress {
		return t.CloseTo
	}
	return t.Receiver
}

func transferAmount(t *AssetTransfer) uint64 {
	if t.Amount > 0 {
		return t.Amount
	}
	return t.CloseAmount
}

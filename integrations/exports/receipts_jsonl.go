package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"sodap/core/amount"
	"sodap/integrations/indexer"
)

// ReceiptsJSONL builds a JSON Lines export for the supplied receipts and
// returns the serialised payload alongside a checksum.
func ReceiptsJSONL(receipts []indexer.Receipt, decimals uint8) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, r := range receipts {
		payload := map[string]interface{}{
			"receipt":            r.Address,
			"store":              r.Store,
			"buyer":              r.Buyer,
			"items":              r.Items,
			"total_paid":         strconv.FormatUint(r.TotalPaid, 10),
			"total_paid_display": amount.Format(r.TotalPaid, decimals),
			"height":             r.Height,
			"tx_hash":            r.TxHash,
			"purchased_at":       purchasedAt(r),
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"strconv"
	"time"

	"sodap/core/amount"
	"sodap/integrations/indexer"
)

var receiptHeader = []string{"receipt", "store", "buyer", "items", "total_paid", "total_paid_display", "height", "tx_hash", "purchased_at"}

func purchasedAt(r indexer.Receipt) string {
	return time.Unix(int64(r.Timestamp), 0).UTC().Format(time.RFC3339)
}

// ReceiptsCSV builds a CSV export for the supplied receipts and returns the
// serialised data alongside a SHA-256 checksum of the payload. Amounts are
// written both in base units and scaled by decimals.
func ReceiptsCSV(receipts []indexer.Receipt, decimals uint8) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(receiptHeader); err != nil {
		return nil, "", err
	}
	for _, r := range receipts {
		record := []string{
			r.Address,
			r.Store,
			r.Buyer,
			strconv.Itoa(r.Items),
			strconv.FormatUint(r.TotalPaid, 10),
			amount.Format(r.TotalPaid, decimals),
			strconv.FormatUint(r.Height, 10),
			r.TxHash,
			purchasedAt(r),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}

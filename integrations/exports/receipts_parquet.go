package exports

import (
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"sodap/integrations/indexer"
)

type parquetReceipt struct {
	Receipt     string `parquet:"name=receipt, type=BYTE_ARRAY, convertedtype=UTF8"`
	Store       string `parquet:"name=store, type=BYTE_ARRAY, convertedtype=UTF8"`
	Buyer       string `parquet:"name=buyer, type=BYTE_ARRAY, convertedtype=UTF8"`
	Items       int32  `parquet:"name=items, type=INT32"`
	TotalPaid   int64  `parquet:"name=total_paid, type=INT64"`
	Height      int64  `parquet:"name=height, type=INT64"`
	TxHash      string `parquet:"name=tx_hash, type=BYTE_ARRAY, convertedtype=UTF8"`
	PurchasedAt string `parquet:"name=purchased_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// WriteReceiptsParquet writes receipts to a snappy-compressed parquet file
// at path.
func WriteReceiptsParquet(path string, receipts []indexer.Receipt) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exports: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetReceipt), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("exports: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range receipts {
		row := &parquetReceipt{
			Receipt:     r.Address,
			Store:       r.Store,
			Buyer:       r.Buyer,
			Items:       int32(r.Items),
			TotalPaid:   int64(r.TotalPaid),
			Height:      int64(r.Height),
			TxHash:      r.TxHash,
			PurchasedAt: purchasedAt(r),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("exports: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("exports: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("exports: close parquet file: %w", err)
	}
	return nil
}

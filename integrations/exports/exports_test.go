package exports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"sodap/core/coretest"
	"sodap/integrations/indexer"
)

func sampleReceipts() []indexer.Receipt {
	return []indexer.Receipt{{
		Address:   "0xaaaa",
		Store:     "0xbbbb",
		Buyer:     "sodap1buyer",
		TotalPaid: 1_500_000,
		Items:     2,
		Height:    7,
		Timestamp: 1_700_000_000,
		TxHash:    "0xcccc",
	}}
}

func TestReceiptsCSV(t *testing.T) {
	data, checksum, err := ReceiptsCSV(sampleReceipts(), 6)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	require.Equal(t, hex.EncodeToString(sum[:]), checksum)

	output := string(data)
	require.True(t, strings.HasPrefix(output, "receipt,store,buyer,items,total_paid,total_paid_display,height,tx_hash,purchased_at\n"))
	require.Contains(t, output, "1500000,1.5,7,0xcccc,2023-11-14T22:13:20Z")
}

func TestReceiptsJSONL(t *testing.T) {
	data, checksum, err := ReceiptsJSONL(sampleReceipts(), 6)
	require.NoError(t, err)
	require.NotEmpty(t, checksum)
	require.Contains(t, string(data), `"total_paid_display":"1.5"`)
	require.Equal(t, 1, strings.Count(string(data), "\n"))
}

func TestReceiptsParquetRoundTrip(t *testing.T) {
	path := t.TempDir() + "/receipts.parquet"
	require.NoError(t, WriteReceiptsParquet(path, sampleReceipts()))

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetReceipt), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(1), pr.GetNumRows())

	rows := make([]parquetReceipt, 1)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, int64(1_500_000), rows[0].TotalPaid)
	require.Equal(t, "0xbbbb", rows[0].Store)
}

func TestRunExportsIndexedReceipts(t *testing.T) {
	ix, err := indexer.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), nil)
	require.NoError(t, err)
	defer ix.Close()

	h := coretest.New(t, 1_000)
	h.Ledger.OnCommit(ix.Hook())
	shop := h.Shop()
	h.Buy(shop, 3)

	dir := t.TempDir()
	manifest, err := Run(context.Background(), ix, dir, shop.Hex(), 0, time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	require.Equal(t, 1, manifest.Count)

	data, err := os.ReadFile(manifest.CSV)
	require.NoError(t, err)
	require.Contains(t, string(data), ",300,300,")
	_, err = os.Stat(manifest.Parquet)
	require.NoError(t, err)
}

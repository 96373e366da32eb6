package tradelog

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/portfolio"
	"rsi-swap-bot/pkg/id"
)

func sampleRecords() []model.TradeRecord {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	bought := 20.0 / 3000.0
	sold := bought * 0.2
	rest := bought - sold
	return []model.TradeRecord{
		{ID: "01A", RunID: "R1", Timestamp: t0, Wallet: "0xabc", Action: model.ActionBuy, Coin: "WETH_BASE",
			Amount: bought, QuoteAmount: 20, Price: 3000},
		{ID: "01B", RunID: "R1", Timestamp: t0.Add(time.Hour), Wallet: "0xabc", Action: model.ActionSell, Coin: "WETH_BASE",
			Amount: sold, QuoteAmount: sold * 3100.123456789, Price: 3100.123456789},
		{ID: "01C", RunID: "R1", Timestamp: t0.Add(2 * time.Hour), Wallet: "0xabc", Action: model.ActionFullSellProfit, Coin: "WETH_BASE",
			Amount: rest, QuoteAmount: rest * 3500, Price: 3500},
	}
}

func TestJSONLAppendAndRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "logs", "eth_trades.jsonl")

	l, err := OpenJSONL(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	want := sampleRecords()
	for _, rec := range want {
		require.NoError(t, l.Append(ctx, rec))
	}

	got, err := l.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"action":"BUY"`)
	assert.Contains(t, lines[1], `"price":3100.123456789`)
}

func TestJSONLClearTruncates(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trades.jsonl")

	l, err := OpenJSONL(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	recs := sampleRecords()
	require.NoError(t, l.Append(ctx, recs[0]))
	require.NoError(t, l.Clear(ctx))

	got, err := l.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, l.Append(ctx, recs[1]))
	got, err = l.Records(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, recs[1].ID, got[0].ID)
}

func TestJSONLReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trades.jsonl")

	l, err := OpenJSONL(path)
	require.NoError(t, err)
	require.NoError(t, l.Append(ctx, sampleRecords()[0]))
	require.NoError(t, l.Close())

	got, err := ReadJSONLFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReadJSONLBadLine(t *testing.T) {
	_, err := ReadJSONL(strings.NewReader("{\"id\":\"a\"}\n\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestSQLiteLog(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "trades.db")

	l, err := OpenSQLite(path, "WETH_BASE", "0xabc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	other, err := OpenSQLite(path, "DEGEN", "0xabc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })

	want := sampleRecords()
	for _, rec := range want {
		require.NoError(t, l.Append(ctx, rec))
	}
	degen := want[0]
	degen.ID, degen.Coin = "02A", "DEGEN"
	require.NoError(t, other.Append(ctx, degen))

	got, err := l.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// 清空只影响本实例的记录
	require.NoError(t, l.Clear(ctx))
	got, err = l.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = other.Records(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteSchemaCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")
	l, err := OpenSQLite(path, "AERO", "0x1")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='trades'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "trades", name)
}

func TestSQLiteDuplicateID(t *testing.T) {
	ctx := context.Background()
	l, err := OpenSQLite(filepath.Join(t.TempDir(), "trades.db"), "WETH_BASE", "0xabc")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	rec := sampleRecords()[0]
	require.NoError(t, l.Append(ctx, rec))
	assert.Error(t, l.Append(ctx, rec))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(Options{Type: "jsonl", Dir: dir, Instance: "eth"})
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.FileExists(t, filepath.Join(dir, "eth_trades.jsonl"))

	l, err = Open(Options{Type: "sqlite", DBPath: filepath.Join(dir, "t.db"), Coin: "AERO", Wallet: "0x1"})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = Open(Options{Type: "parquet"})
	assert.Error(t, err)
}

func TestMemoryLog(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLog()
	require.NoError(t, m.Append(ctx, sampleRecords()[0]))
	assert.Equal(t, 1, m.Len())

	m.FailAppend = errors.New("disk full")
	assert.Error(t, m.Append(ctx, sampleRecords()[1]))
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Clear(ctx))
	assert.Zero(t, m.Len())
}

func TestReplayReproducesBalances(t *testing.T) {
	recs := sampleRecords()

	// 与引擎相同的顺序直接作用于账本
	ledger, err := portfolio.NewLedger(100)
	require.NoError(t, err)
	require.NoError(t, ledger.ApplyBuy(recs[0].QuoteAmount, recs[0].Amount))
	require.NoError(t, ledger.ApplySell(recs[1].Amount, recs[1].QuoteAmount))
	require.NoError(t, ledger.ApplySell(recs[2].Amount, recs[2].QuoteAmount))

	res, err := Replay(recs, 100)
	require.NoError(t, err)
	assert.Equal(t, ledger.Snapshot(), res.Final)
	require.Len(t, res.Points, 3)
	assert.Equal(t, model.ActionFullSellProfit, res.Points[2].Action)
	assert.InDelta(t, res.Final.Quote, res.Points[2].Value, 1e-9)
}

func TestReplayThroughJSONLIsExact(t *testing.T) {
	ctx := context.Background()
	l, err := OpenJSONL(filepath.Join(t.TempDir(), "trades.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	want := sampleRecords()
	for _, rec := range want {
		require.NoError(t, l.Append(ctx, rec))
	}
	got, err := l.Records(ctx)
	require.NoError(t, err)

	direct, err := Replay(want, 100)
	require.NoError(t, err)
	fromDisk, err := Replay(got, 100)
	require.NoError(t, err)
	assert.Equal(t, direct.Final, fromDisk.Final)
}

func TestReplayLegacyQuoteAmount(t *testing.T) {
	recs := []model.TradeRecord{
		{ID: "1", Action: model.ActionBuy, Amount: 2, Price: 10},
	}
	res, err := Replay(recs, 100)
	require.NoError(t, err)
	assert.InDelta(t, 80, res.Final.Quote, 1e-12)
	assert.InDelta(t, 2, res.Final.Asset, 1e-12)
}

func TestReplayRejectsOverspend(t *testing.T) {
	recs := []model.TradeRecord{
		{ID: "1", Action: model.ActionSell, Amount: 1, QuoteAmount: 10, Price: 10},
	}
	_, err := Replay(recs, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	_, err = Replay([]model.TradeRecord{{ID: "2", Action: "HOLD", Amount: 1, Price: 1}}, 100)
	assert.ErrorContains(t, err, "unknown action")
}

func TestReplayTimestampFromID(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	recs := []model.TradeRecord{
		{ID: id.NewAt(at), Action: model.ActionBuy, Amount: 1, QuoteAmount: 10, Price: 10},
	}
	res, err := Replay(recs, 100)
	require.NoError(t, err)
	require.Len(t, res.Points, 1)
	assert.True(t, at.Equal(res.Points[0].Timestamp))
}

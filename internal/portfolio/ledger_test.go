package portfolio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rsi-swap-bot/internal/model"
)

func TestNewLedger(t *testing.T) {
	l, err := NewLedger(100)
	require.NoError(t, err)
	assert.Equal(t, 100.0, l.Quote())
	assert.Equal(t, 0.0, l.Asset())
	assert.Equal(t, 100.0, l.InitialCapital())

	for _, bad := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := NewLedger(bad)
		assert.Error(t, err, "initial %v", bad)
	}
}

func TestMarkToMarketAndNetProfit(t *testing.T) {
	l, err := NewLedger(100)
	require.NoError(t, err)
	require.NoError(t, l.ApplyBuy(55, 1.5))

	assert.Equal(t, 45.0, l.Quote())
	assert.Equal(t, 1.5, l.Asset())
	assert.Equal(t, 120.0, l.MarkToMarket(50))
	assert.Equal(t, 20.0, l.NetProfit(50))
	assert.Equal(t, -55.0, l.NetProfit(0))
}

func TestApplyBuyRejectsOverspend(t *testing.T) {
	l, err := NewLedger(10)
	require.NoError(t, err)

	err = l.ApplyBuy(10.01, 1)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	assert.Equal(t, 10.0, l.Quote())
	assert.Equal(t, 0.0, l.Asset())

	// 恰好花光余额是允许的
	require.NoError(t, l.ApplyBuy(10, 2))
	assert.Equal(t, 0.0, l.Quote())
}

func TestApplySellRejectsOverspend(t *testing.T) {
	l, err := NewLedger(10)
	require.NoError(t, err)
	require.NoError(t, l.ApplyBuy(5, 1))

	err = l.ApplySell(1.5, 20)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)
	assert.Equal(t, 1.0, l.Asset())

	require.NoError(t, l.ApplySell(1, 7))
	assert.Equal(t, 0.0, l.Asset())
	assert.Equal(t, 12.0, l.Quote())
}

func TestApplyRejectsInvalidAmounts(t *testing.T) {
	l, err := NewLedger(10)
	require.NoError(t, err)

	assert.Error(t, l.ApplyBuy(-1, 1))
	assert.Error(t, l.ApplyBuy(1, math.NaN()))
	assert.Error(t, l.ApplySell(math.Inf(1), 1))
	assert.Equal(t, Balances{Quote: 10, Asset: 0, InitialCapital: 10}, l.Snapshot())
}

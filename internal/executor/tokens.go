package executor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"rsi-swap-bot/internal/model"
)

// NativeDecimals 原生 ETH 的精度
const NativeDecimals = 18

// Token 是 Base 链上的 ERC20 合约信息
type Token struct {
	Symbol   string
	Address  string
	Decimals int32
}

var tokens = map[string]Token{
	"USDC_BASE": {Symbol: "USDC_BASE", Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", Decimals: 6},
	"WETH_BASE": {Symbol: "WETH_BASE", Address: "0x4200000000000000000000000000000000000006", Decimals: 18},
	"DEGEN":     {Symbol: "DEGEN", Address: "0x4ed4E862860beD51a9570b96d89aF5E1B0Efefed", Decimals: 18},
	"AERO":      {Symbol: "AERO", Address: "0x940181a94A35A4569E4529A3CDfB74e38FD98631", Decimals: 18},
}

// LookupToken 根据符号查找 token
func LookupToken(symbol string) (Token, error) {
	t, ok := tokens[symbol]
	if !ok {
		return Token{}, fmt.Errorf("%w: token %s", model.ErrUnknownAsset, symbol)
	}
	return t, nil
}

// ToBaseUnits 把人类可读数量转换为链上整数单位 (向下取整，不会超出余额)
func ToBaseUnits(amount float64, decimals int32) (string, error) {
	d := decimal.NewFromFloat(amount)
	if d.IsNegative() {
		return "", fmt.Errorf("negative amount %v", amount)
	}
	return d.Shift(decimals).Truncate(0).String(), nil
}

// FromBaseUnits 把链上整数单位转换为人类可读数量
func FromBaseUnits(raw string, decimals int32) (float64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse base units %q: %w", raw, err)
	}
	f, _ := d.Shift(-decimals).Float64()
	return f, nil
}

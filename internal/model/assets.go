package model

import (
	"fmt"
	"sort"
	"strings"
)

// QuoteToken 报价货币 (Base 链上的 USDC)
const QuoteToken = "USDC_BASE"

// AssetInfo 描述一个可交易资产在各个外部系统中的标识
type AssetInfo struct {
	ID          string // CoinGecko coin id
	TokenSymbol string // 执行层的 token 符号
	OkxInstID   string // OKX 现货 instId
}

// 资产 id -> 标识映射
var assets = map[string]AssetInfo{
	"usdc":              {ID: "usdc", TokenSymbol: "USDC_BASE", OkxInstID: "USDC-USDT"},
	"ethereum":          {ID: "ethereum", TokenSymbol: "WETH_BASE", OkxInstID: "ETH-USDT"},
	"degen-base":        {ID: "degen-base", TokenSymbol: "DEGEN", OkxInstID: "DEGEN-USDT"},
	"aerodrome-finance": {ID: "aerodrome-finance", TokenSymbol: "AERO", OkxInstID: "AERO-USDT"},
}

// LookupAsset 根据 CoinGecko id 查找资产
func LookupAsset(id string) (AssetInfo, error) {
	info, ok := assets[id]
	if !ok {
		return AssetInfo{}, fmt.Errorf("%w: %s (known: %s)", ErrUnknownAsset, id, strings.Join(AssetIDs(), ", "))
	}
	return info, nil
}

// AssetIDs 返回所有已知资产 id (排序后)
func AssetIDs() []string {
	ids := make([]string, 0, len(assets))
	for id := range assets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Package tradelog 持久化已执行的交易意图，日志只追加，可回放
package tradelog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"rsi-swap-bot/internal/model"
)

// TradeLog 是交易日志的通用接口
type TradeLog interface {
	// 追加一条记录，返回前必须已经落盘
	Append(ctx context.Context, rec model.TradeRecord) error
	// 运行开始时清空本实例的历史记录
	Clear(ctx context.Context) error
	// 按追加顺序返回全部记录
	Records(ctx context.Context) ([]model.TradeRecord, error)
	Close() error
}

// Options 描述如何为一个实例打开交易日志
type Options struct {
	Type     string // jsonl 或 sqlite
	Dir      string
	DBPath   string
	Instance string
	Coin     string
	Wallet   string
}

// Open 按类型打开交易日志
func Open(opts Options) (TradeLog, error) {
	switch opts.Type {
	case "", "jsonl":
		return OpenJSONL(JSONLPath(opts.Dir, opts.Instance))
	case "sqlite":
		return OpenSQLite(opts.DBPath, opts.Coin, opts.Wallet)
	default:
		return nil, fmt.Errorf("unknown trade log type %q", opts.Type)
	}
}

// JSONLPath 返回实例对应的日志文件路径，例如 trades/eth_trades.jsonl
func JSONLPath(dir, instance string) string {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(instance)
	return filepath.Join(dir, name+"_trades.jsonl")
}

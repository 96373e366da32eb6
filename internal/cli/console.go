package cli

import (
	"fmt"
	"io"
	"sync"

	"rsi-swap-bot/internal/model"
)

// consoleSink 把成交和终止事件打印到终端，多个实例共用一个输出
type consoleSink struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (c *consoleSink) Publish(ev model.Event) {
	var line string
	switch ev.Kind {
	case model.EventTrade:
		if ev.Intent == nil {
			return
		}
		line = fmt.Sprintf("%s [%s] %s %.6f %s @ $%.4f (~$%.2f) tx=%s",
			ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Instance, ev.Intent.Action,
			ev.Intent.AssetAmount, ev.Asset, ev.Intent.Price, ev.Intent.QuoteAmount, ev.Message)
	case model.EventTerminated:
		line = fmt.Sprintf("%s [%s] terminated: %s", ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Instance, ev.Message)
	default:
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, line)
}

// Package id 生成按时间排序的 ULID，用作交易记录和运行批次的标识
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// 同一毫秒内生成的 id 仍然单调递增
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New 以当前时间生成 ULID
func New() string {
	return NewAt(time.Now())
}

// NewAt 以给定时间生成 ULID。回测中使用样本时间，保证日志 id 与样本顺序一致
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), mono)
	if err != nil {
		// 时间早于 unix 纪元或熵耗尽，退回到当前时间
		id = ulid.MustNew(ulid.Timestamp(time.Now().UTC()), mono)
	}
	return id.String()
}

// Time 解析 ULID 中的毫秒时间戳
func Time(s string) (time.Time, error) {
	id, err := ulid.ParseStrict(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(id.Time()), nil
}

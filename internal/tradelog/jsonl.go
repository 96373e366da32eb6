package tradelog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"rsi-swap-bot/internal/model"
)

// JSONLLog 每行一个 JSON 对象，每次追加后 fsync
type JSONLLog struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenJSONL 打开 (必要时创建) 日志文件，已有内容保留
func OpenJSONL(path string) (*JSONLLog, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create trade log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	return &JSONLLog{path: path, f: f}, nil
}

func (l *JSONLLog) Path() string {
	return l.path
}

func (l *JSONLLog) Append(_ context.Context, rec model.TradeRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode trade record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.f.Write(line); err != nil {
		return fmt.Errorf("write trade record: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync trade log: %w", err)
	}
	return nil
}

func (l *JSONLLog) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate trade log: %w", err)
	}
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind trade log: %w", err)
	}
	return l.f.Sync()
}

func (l *JSONLLog) Records(_ context.Context) ([]model.TradeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()
	return ReadJSONL(f)
}

func (l *JSONLLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// ReadJSONL 解析 JSONL 流，空行跳过，坏行返回带行号的错误
func ReadJSONL(r io.Reader) ([]model.TradeRecord, error) {
	var out []model.TradeRecord
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec model.TradeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("trade log line %d: %w", lineNo, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trade log: %w", err)
	}
	return out, nil
}

// ReadJSONLFile 读取日志文件 (report 命令使用)
func ReadJSONLFile(path string) ([]model.TradeRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trade log: %w", err)
	}
	defer f.Close()
	return ReadJSONL(f)
}

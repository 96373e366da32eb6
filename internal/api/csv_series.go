package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"rsi-swap-bot/internal/model"
	"rsi-swap-bot/internal/service"
)

// ReadCSVSeries 读取离线价格序列，每行 timestamp,price[,volume]。
// 第一行无法解析为数据时视为表头。没有 volume 列时成交量视为总是满足门槛。
func ReadCSVSeries(r io.Reader) ([]model.PriceSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []model.PriceSample
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line++

		if len(rec) < 2 {
			return nil, fmt.Errorf("csv line %d: want timestamp,price, got %d fields", line, len(rec))
		}

		ts, tsErr := service.ParseTimestamp(rec[0])
		price, priceErr := service.StringToFloat(rec[1])
		if line == 1 && (tsErr != nil || priceErr != nil) {
			continue // 表头
		}
		if tsErr != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, tsErr)
		}
		if priceErr != nil {
			return nil, fmt.Errorf("csv line %d: bad price %q: %w", line, rec[1], priceErr)
		}

		volume := model.UnlimitedVolume
		if len(rec) > 2 && strings.TrimSpace(rec[2]) != "" {
			if volume, err = service.StringToFloat(rec[2]); err != nil {
				return nil, fmt.Errorf("csv line %d: bad volume %q: %w", line, rec[2], err)
			}
		}

		out = append(out, model.PriceSample{Timestamp: ts, Price: price, Volume: volume})
	}
	return out, nil
}

// ReadCSVSeriesFile 从文件读取价格序列
func ReadCSVSeriesFile(path string) ([]model.PriceSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open series: %w", err)
	}
	defer f.Close()
	return ReadCSVSeries(f)
}

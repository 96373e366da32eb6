package tradelog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"rsi-swap-bot/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	run_id TEXT NOT NULL,
	time TEXT NOT NULL,
	wallet TEXT NOT NULL,
	action TEXT NOT NULL,
	coin TEXT NOT NULL,
	amount REAL NOT NULL,
	quote_amount REAL NOT NULL,
	price REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_coin_wallet ON trades(coin, wallet);
`

// SQLiteLog 把交易记录写入 sqlite，多个实例可以共用一个库，按 coin + wallet 区分
type SQLiteLog struct {
	db     *sql.DB
	coin   string
	wallet string
}

func OpenSQLite(path, coin, wallet string) (*SQLiteLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 单连接，避免并发写入时 database is locked
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteLog{db: db, coin: coin, wallet: wallet}, nil
}

func (s *SQLiteLog) Append(ctx context.Context, rec model.TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
		(id, run_id, time, wallet, action, coin, amount, quote_amount, price)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Wallet,
		string(rec.Action), rec.Coin, rec.Amount, rec.QuoteAmount, rec.Price,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *SQLiteLog) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM trades WHERE coin = ? AND wallet = ?`, s.coin, s.wallet)
	if err != nil {
		return fmt.Errorf("clear trades: %w", err)
	}
	return nil
}

func (s *SQLiteLog) Records(ctx context.Context) ([]model.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, time, wallet, action, coin, amount, quote_amount, price
		FROM trades WHERE coin = ? AND wallet = ? ORDER BY seq`, s.coin, s.wallet)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []model.TradeRecord
	for rows.Next() {
		var (
			rec    model.TradeRecord
			ts     string
			action string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &ts, &rec.Wallet, &action, &rec.Coin,
			&rec.Amount, &rec.QuoteAmount, &rec.Price); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		rec.Action = model.ActionType(action)
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse trade time %q: %w", ts, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteLog) Close() error {
	return s.db.Close()
}

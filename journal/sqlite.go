package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, run_id, ticker, quantity, entry_price, exit_price, open_time, close_time, realized_pl, fee, tax)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.RunID, t.Ticker, t.Quantity, t.EntryPrice,
		t.ExitPrice, t.OpenTime, t.CloseTime, t.RealizedPL, t.Fee, t.Tax,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(run_id, time, cash, equity, long_value, short_value)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Time, e.Cash, e.Equity, e.LongValue, e.ShortValue,
	)
	return err
}

// ListTradesBetween returns a run's trades closed in [from, to), in close
// order.
func (j *SQLite) ListTradesBetween(runID string, from, to time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, run_id, ticker, quantity, entry_price, exit_price,
		       open_time, close_time, realized_pl, fee, tax
		FROM trades
		WHERE run_id = ? AND close_time >= ? AND close_time < ?
		ORDER BY close_time, trade_id`,
		runID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []TradeRecord
	for rows.Next() {
		var t TradeRecord
		err := rows.Scan(&t.TradeID, &t.RunID, &t.Ticker, &t.Quantity,
			&t.EntryPrice, &t.ExitPrice, &t.OpenTime, &t.CloseTime,
			&t.RealizedPL, &t.Fee, &t.Tax)
		if err != nil {
			return nil, err
		}
		recs = append(recs, t)
	}
	return recs, rows.Err()
}

// ListEquity returns a run's full equity curve in time order.
func (j *SQLite) ListEquity(runID string) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, cash, equity, long_value, short_value
		FROM equity
		WHERE run_id = ?
		ORDER BY time`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []EquitySnapshot
	for rows.Next() {
		var e EquitySnapshot
		err := rows.Scan(&e.RunID, &e.Time, &e.Cash, &e.Equity, &e.LongValue, &e.ShortValue)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, e)
	}
	return snaps, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}

package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadCSV reads canonical bar CSV rows:
//
//	time,ticker,open,close[,extra...]
//
// where time is RFC3339 or RFC3339Nano. A header row is required when extra
// columns are present (the header names become Bar.Fields keys); without
// extras the header is optional. Rows are filtered to [from, to) when those
// bounds are non-zero. Empty/short rows are skipped.
func LoadCSV(path string, from, to time.Time) (*DataSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var (
		rows   []Row
		extras []string
		first  = true
	)

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w: %w", path, err, ErrBadData)
		}
		if len(row) == 0 {
			continue
		}

		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				for _, name := range row[4:] {
					extras = append(extras, strings.TrimSpace(name))
				}
				continue
			}
		}

		br, ok, err := parseBarRow(row, extras)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !inRange(br.Time, from, to) {
			continue
		}
		rows = append(rows, br)
	}

	return NewDataSet(rows)
}

func parseBarRow(row []string, extras []string) (Row, bool, error) {
	// Need at least: time,ticker,open,close
	if len(row) < 4 {
		return Row{}, false, nil
	}

	ts := strings.TrimSpace(row[0])
	if ts == "" {
		return Row{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return Row{}, false, fmt.Errorf("bad time %q: %w: %w", ts, err, ErrBadData)
		}
		t = t2
	}

	ticker := strings.TrimSpace(row[1])
	if ticker == "" {
		return Row{}, false, nil
	}

	open, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return Row{}, false, fmt.Errorf("bad open %q: %w: %w", row[2], err, ErrBadData)
	}
	cls, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
	if err != nil {
		return Row{}, false, fmt.Errorf("bad close %q: %w: %w", row[3], err, ErrBadData)
	}

	var fields map[string]float64
	for i, name := range extras {
		col := 4 + i
		if col >= len(row) || name == "" {
			continue
		}
		raw := strings.TrimSpace(row[col])
		if raw == "" || strings.EqualFold(raw, "nan") {
			continue // warmup rows for indicator columns
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Row{}, false, fmt.Errorf("bad %s %q: %w: %w", name, raw, err, ErrBadData)
		}
		if fields == nil {
			fields = make(map[string]float64, len(extras))
		}
		fields[name] = v
	}

	return Row{
		Time: t,
		Bar:  Bar{Ticker: ticker, Open: open, Close: cls, Fields: fields},
	}, true, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

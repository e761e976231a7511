package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// ReadClosesCSV reads daily close rows:
//
//	date,symbol,close
//
// where date is YYYY-MM-DD or RFC3339. A single header row ("date,...") is
// allowed and empty or short rows are skipped.
func ReadClosesCSV(r io.Reader) ([]Close, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var out []Close
	sawFirst := false
	line := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(row) == 0 {
			continue
		}

		if !sawFirst {
			sawFirst = true
			if strings.EqualFold(strings.TrimSpace(row[0]), "date") {
				continue
			}
		}

		c, ok, err := parseCloseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ok {
			out = append(out, c)
		}
	}
}

func parseCloseRow(row []string) (Close, bool, error) {
	if len(row) < 3 {
		return Close{}, false, nil
	}

	ds := strings.TrimSpace(row[0])
	if ds == "" {
		return Close{}, false, nil
	}
	day, err := ParseDay(ds)
	if err != nil {
		return Close{}, false, err
	}

	sym := strings.ToUpper(strings.TrimSpace(row[1]))
	if sym == "" {
		return Close{}, false, nil
	}

	px, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
	if err != nil {
		return Close{}, false, fmt.Errorf("bad close %q: %w", row[2], err)
	}
	if px <= 0 {
		return Close{}, false, fmt.Errorf("non-positive close %g for %s", px, sym)
	}

	return Close{Symbol: sym, Day: day, Price: px}, true, nil
}

// ParseDay accepts YYYY-MM-DD or RFC3339 and truncates to the UTC day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339, s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
		}
		t = t2
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// FormatDay is the inverse of ParseDay for whole days.
func FormatDay(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

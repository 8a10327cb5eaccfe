// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/mrdp/mrdp/internal/db"
)

// BatchSize bounds the rows per multi-row INSERT.
const BatchSize = 500

// DateKey returns the YYYYMMDD key for t.
func DateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// TimeKey returns the HHMM00 key for t. Seconds are not part of the key.
func TimeKey(t time.Time) int {
	return t.Hour()*10000 + t.Minute()*100
}

// DateRow is one dim_date row.
type DateRow struct {
	DateKey    int
	FullDate   time.Time
	Year       int
	Quarter    int
	Month      int
	MonthName  string
	DayOfMonth int
	DayOfWeek  int
	DayName    string
	WeekOfYear int
	IsWeekend  bool
}

func (r DateRow) values() []any {
	return []any{
		r.DateKey, r.FullDate.Format("2006-01-02"), r.Year, r.Quarter, r.Month, r.MonthName,
		r.DayOfMonth, r.DayOfWeek, r.DayName, r.WeekOfYear, r.IsWeekend,
	}
}

var dateColumns = []string{
	"date_key", "full_date", "year", "quarter", "month", "month_name",
	"day_of_month", "day_of_week", "day_name", "week_of_year", "is_weekend",
}

// TimeRow is one dim_time row.
type TimeRow struct {
	TimeKey         int
	Hour            int
	Minute          int
	AMPM            string
	Shift           string
	IsBusinessHours bool
}

func (r TimeRow) values() []any {
	return []any{r.TimeKey, r.Hour, r.Minute, r.AMPM, r.Shift, r.IsBusinessHours}
}

var timeColumns = []string{"time_key", "hour", "minute", "am_pm", "shift", "is_business_hours"}

// CalendarRows returns one row per day in [from, to], both inclusive.
func CalendarRows(from, to time.Time) []DateRow {
	from = truncateDay(from)
	to = truncateDay(to)

	var rows []DateRow
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		_, week := d.ISOWeek()
		wd := d.Weekday()
		rows = append(rows, DateRow{
			DateKey:    DateKey(d),
			FullDate:   d,
			Year:       d.Year(),
			Quarter:    (int(d.Month())-1)/3 + 1,
			Month:      int(d.Month()),
			MonthName:  d.Month().String(),
			DayOfMonth: d.Day(),
			DayOfWeek:  int(wd),
			DayName:    wd.String(),
			WeekOfYear: week,
			IsWeekend:  wd == time.Saturday || wd == time.Sunday,
		})
	}
	return rows
}

// TimeRows returns the 1440 minute-of-day rows.
func TimeRows() []TimeRow {
	rows := make([]TimeRow, 0, 24*60)
	for h := 0; h < 24; h++ {
		for m := 0; m < 60; m++ {
			ampm := "AM"
			if h >= 12 {
				ampm = "PM"
			}
			rows = append(rows, TimeRow{
				TimeKey:         h*10000 + m*100,
				Hour:            h,
				Minute:          m,
				AMPM:            ampm,
				Shift:           shift(h),
				IsBusinessHours: h >= 8 && h < 18,
			})
		}
	}
	return rows
}

func shift(hour int) string {
	switch {
	case hour >= 7 && hour < 15:
		return "day"
	case hour >= 15 && hour < 23:
		return "evening"
	default:
		return "night"
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SeedCalendar replaces dim_date rows in [from, to] and the whole of
// dim_time. Run it inside a transaction to make the swap atomic.
func SeedCalendar(ctx context.Context, ex db.Execer, from, to time.Time) (dates, times int, err error) {
	if to.Before(from) {
		return 0, 0, fmt.Errorf("calendar end %s is before start %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	drows := CalendarRows(from, to)
	if _, err := ex.ExecContext(ctx, "DELETE FROM dim_date WHERE date_key BETWEEN $1 AND $2",
		DateKey(from), DateKey(to)); err != nil {
		return 0, 0, fmt.Errorf("failed to clear dim_date: %w", err)
	}
	dvals := make([][]any, len(drows))
	for i, r := range drows {
		dvals[i] = r.values()
	}
	if err := insertBatches(ctx, ex, "dim_date", dateColumns, dvals); err != nil {
		return 0, 0, err
	}

	trows := TimeRows()
	if _, err := ex.ExecContext(ctx, "DELETE FROM dim_time"); err != nil {
		return len(drows), 0, fmt.Errorf("failed to clear dim_time: %w", err)
	}
	tvals := make([][]any, len(trows))
	for i, r := range trows {
		tvals[i] = r.values()
	}
	if err := insertBatches(ctx, ex, "dim_time", timeColumns, tvals); err != nil {
		return len(drows), 0, err
	}

	log.Infof("seeded %d dates and %d times", len(drows), len(trows))
	return len(drows), len(trows), nil
}

func insertBatches(ctx context.Context, ex db.Execer, table string, cols []string, rows [][]any) error {
	for start := 0; start < len(rows); start += BatchSize {
		end := min(start+BatchSize, len(rows))
		q, args := InsertStatement(table, cols, rows[start:end])
		if _, err := ex.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("failed to insert %s rows %d-%d: %w", table, start+1, end, err)
		}
	}
	return nil
}

// InsertStatement builds a multi-row INSERT with numbered placeholders.
func InsertStatement(table string, cols []string, rows [][]any) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))

	args := make([]any, 0, len(rows)*len(cols))
	n := 1
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range r {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
		args = append(args, r...)
	}
	return b.String(), args
}

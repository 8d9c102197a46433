package sqlstore

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// dbDate persists a calendar date as YYYY-MM-DD on every dialect
type dbDate struct {
	time.Time
}

func (d dbDate) Value() (driver.Value, error) {
	return d.UTC().Format(time.DateOnly), nil
}

func (d *dbDate) Scan(value interface{}) error {
	t, err := scanTime(value, time.DateOnly)
	if err != nil {
		return err
	}
	y, m, day := t.Date()
	d.Time = time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return nil
}

// timestampLayout is fixed width so stored values sort chronologically as text
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dbTimestamp persists an instant as RFC 3339 text on SQLite
type dbTimestamp struct {
	time.Time
}

func (t dbTimestamp) Value() (driver.Value, error) {
	return t.UTC().Format(timestampLayout), nil
}

func (t *dbTimestamp) Scan(value interface{}) error {
	parsed, err := scanTime(value, time.RFC3339Nano)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

func scanTime(value interface{}, layout string) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		return parseTime(v, layout)
	case []byte:
		return parseTime(string(v), layout)
	default:
		return time.Time{}, fmt.Errorf("cannot scan %T into a date", value)
	}
}

func parseTime(value, layout string) (time.Time, error) {
	t, err := time.Parse(layout, value)
	if err == nil {
		return t, nil
	}
	// Postgres may render DATE and TIMESTAMPTZ with a time or zone suffix.
	if t, err2 := time.Parse(time.RFC3339Nano, value); err2 == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parse %q: %w", value, err)
}

package history

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aranet4/aranet"
)

// SQLiteStore keeps readings in a single sqlite table. Concurrent appends and
// queries are left to the database/sql pool and sqlite's WAL locking.
type SQLiteStore struct {
	DB  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database file and makes sure the
// readings table exists.
func Open(ctx context.Context, fileName string) (*SQLiteStore, error) {
	uri := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", fileName)
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite db")
	}

	s := NewSQLiteStore(db)
	if err := s.InitDB(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Infof("history stored in %s", fileName)
	return s, nil
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{DB: db, now: time.Now}
}

func (s *SQLiteStore) InitDB(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS sensor_readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		co2 INTEGER NOT NULL,
		temperature REAL NOT NULL,
		humidity INTEGER NOT NULL,
		pressure INTEGER NOT NULL,
		battery INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		status TEXT NOT NULL
	)
	`); err != nil {
		return errors.Wrap(err, "create sensor_readings table")
	}
	if _, err := s.DB.ExecContext(ctx, `
	CREATE INDEX IF NOT EXISTS idx_sensor_readings_timestamp
	ON sensor_readings(timestamp, id)
	`); err != nil {
		return errors.Wrap(err, "create sensor_readings index")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, r aranet.Reading) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sensor_readings (co2, temperature, humidity, pressure, battery, timestamp, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.CO2, r.Temperature, r.Humidity, r.Pressure, r.Battery, r.Timestamp, r.Status.String())
	return wrapStorage(err, "insert reading")
}

func (s *SQLiteStore) Query(ctx context.Context, hours *int, limit int) ([]aranet.Reading, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if hours != nil {
		cutoff := cutoffUnix(s.now().Unix(), *hours)
		return s.scan(ctx, `
		SELECT co2, temperature, humidity, pressure, battery, timestamp, status
		FROM sensor_readings
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, id ASC
		LIMIT ?
		`, cutoff, limit)
	}

	readings, err := s.scan(ctx, `
	SELECT co2, temperature, humidity, pressure, battery, timestamp, status
	FROM sensor_readings
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
	return readings, nil
}

// cutoffUnix is now - hours*3600 in seconds, clamped so that spans longer
// than the epoch select everything instead of overflowing.
func cutoffUnix(now int64, hours int) int64 {
	span := int64(hours)
	if span > now/3600 {
		return math.MinInt64
	}
	return now - span*3600
}

func (s *SQLiteStore) scan(ctx context.Context, query string, args ...interface{}) ([]aranet.Reading, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStorage(err, "query readings")
	}
	defer rows.Close()

	out := []aranet.Reading{}
	for rows.Next() {
		var r aranet.Reading
		var status string
		if err := rows.Scan(&r.CO2, &r.Temperature, &r.Humidity, &r.Pressure, &r.Battery, &r.Timestamp, &status); err != nil {
			return nil, wrapStorage(err, "scan reading")
		}
		r.Status, err = aranet.StatusFromString(status)
		if err != nil {
			log.Warnf("reading at %d has %s", r.Timestamp, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorage(err, "iterate readings")
	}
	return out, nil
}

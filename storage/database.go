package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/eddielth/sensor-monitor/model"
)

// DatabaseType names a supported SQL backend
type DatabaseType string

const (
	MySQL      DatabaseType = "mysql"
	PostgreSQL DatabaseType = "postgresql"
)

// DatabaseStorage is a Repository backed by a SQL database
type DatabaseStorage interface {
	Repository
	// InitDatabase creates the tables if they do not exist
	InitDatabase() error
}

// NewDatabaseStorage opens the SQL repository named by dbType
func NewDatabaseStorage(dbType string, dsn string) (DatabaseStorage, error) {
	switch DatabaseType(dbType) {
	case MySQL:
		return NewMySQLStorage(dsn)
	case PostgreSQL, "postgres":
		return NewPostgreSQLStorage(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// sqlStore holds the queries shared by the MySQL and PostgreSQL backends.
// Timestamps are stored as unix nanoseconds so window bounds stay exact.
type sqlStore struct {
	db      *sql.DB
	dialect DatabaseType
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (s *sqlStore) rebind(query string) string {
	if s.dialect != PostgreSQL {
		return query
	}

	var b strings.Builder
	n := 1
	for _, c := range query {
		if c == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func (s *sqlStore) SaveReading(ctx context.Context, r model.Reading) error {
	query := s.rebind(`INSERT INTO readings
		(id, sensor_id, sensor_type, value, unit, battery_level, latitude, longitude, timestamp, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.SensorID, r.SensorType, r.Value, r.Unit,
		nullInt(r.BatteryLevel), nullFloat(r.Latitude), nullFloat(r.Longitude),
		r.Timestamp.UnixNano(), string(r.Status))
	if err != nil {
		return fmt.Errorf("insert reading failed: %w", err)
	}
	return nil
}

func (s *sqlStore) FindReadingsBetween(ctx context.Context, start, end time.Time) ([]model.Reading, error) {
	query := s.rebind(`SELECT id, sensor_id, sensor_type, value, unit, battery_level, latitude, longitude, timestamp, status
		FROM readings
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC, seq ASC`)

	rows, err := s.db.QueryContext(ctx, query, start.UnixNano(), end.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query readings failed: %w", err)
	}
	defer rows.Close()

	var readings []model.Reading
	for rows.Next() {
		var (
			r        model.Reading
			unit     sql.NullString
			battery  sql.NullInt64
			lat, lon sql.NullFloat64
			ts       int64
			status   sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.SensorID, &r.SensorType, &r.Value, &unit, &battery, &lat, &lon, &ts, &status); err != nil {
			return nil, fmt.Errorf("scan reading failed: %w", err)
		}

		r.Unit = unit.String
		if battery.Valid {
			b := int(battery.Int64)
			r.BatteryLevel = &b
		}
		if lat.Valid {
			r.Latitude = &lat.Float64
		}
		if lon.Valid {
			r.Longitude = &lon.Float64
		}
		r.Timestamp = fromNanos(ts)
		r.Status = model.Status(status.String)

		readings = append(readings, r)
	}

	return readings, rows.Err()
}

func (s *sqlStore) SaveSummary(ctx context.Context, sum model.Summary) error {
	query := s.rebind(`INSERT INTO summaries
		(id, sensor_id, sensor_type, average_value, min_value, max_value, standard_deviation,
		 unit, area, start_period, end_period, sample_count, alert_triggered, alert_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		sum.ID, sum.SensorID, sum.SensorType,
		sum.AverageValue, sum.MinValue, sum.MaxValue, sum.StandardDeviation,
		sum.Unit, sum.Area, sum.StartPeriod.UnixNano(), sum.EndPeriod.UnixNano(),
		sum.SampleCount, sum.AlertTriggered, sum.AlertMessage)
	if err != nil {
		return fmt.Errorf("insert summary failed: %w", err)
	}
	return nil
}

func (s *sqlStore) FindRecentSummaries(ctx context.Context, n int) ([]model.Summary, error) {
	query := s.rebind(`SELECT id, sensor_id, sensor_type, average_value, min_value, max_value, standard_deviation,
		unit, area, start_period, end_period, sample_count, alert_triggered, alert_message
		FROM summaries
		ORDER BY end_period DESC, seq ASC
		LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("query summaries failed: %w", err)
	}
	defer rows.Close()

	var summaries []model.Summary
	for rows.Next() {
		var (
			sum        model.Summary
			unit, msg  sql.NullString
			start, end int64
		)
		if err := rows.Scan(&sum.ID, &sum.SensorID, &sum.SensorType,
			&sum.AverageValue, &sum.MinValue, &sum.MaxValue, &sum.StandardDeviation,
			&unit, &sum.Area, &start, &end, &sum.SampleCount, &sum.AlertTriggered, &msg); err != nil {
			return nil, fmt.Errorf("scan summary failed: %w", err)
		}

		sum.Unit = unit.String
		sum.AlertMessage = msg.String
		sum.StartPeriod = fromNanos(start)
		sum.EndPeriod = fromNanos(end)

		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

func (s *sqlStore) close(name string) error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close %s connection failed: %w", name, err)
	}
	return nil
}

// configurePool applies the connection pool limits both backends use
func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 5)
}

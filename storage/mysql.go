package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/eddielth/sensor-monitor/logger"
)

// MySQLStorage is the MySQL repository backend
type MySQLStorage struct {
	*sqlStore
}

// NewMySQLStorage creates the database if needed, connects and creates the tables
func NewMySQLStorage(dsn string) (*MySQLStorage, error) {
	database, serverDSN, err := parseMySQLDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse MySQL DSN failed: %w", err)
	}

	// connect without a database first so it can be created
	serverDB, err := sql.Open("mysql", serverDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to MySQL server failed: %w", err)
	}
	defer serverDB.Close()

	_, err = serverDB.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", database))
	if err != nil {
		return nil, fmt.Errorf("create database failed: %w", err)
	}

	logger.Info("ensured MySQL database %s exists", database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to MySQL database failed: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("MySQL ping failed: %w", err)
	}

	configurePool(db)

	storage := &MySQLStorage{
		sqlStore: &sqlStore{db: db, dialect: MySQL},
	}

	if err := storage.InitDatabase(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init MySQL database failed: %w", err)
	}

	logger.Info("MySQL storage initialized")
	return storage, nil
}

// parseMySQLDSN splits a DSN into the database name and a DSN without it
func parseMySQLDSN(dsn string) (database string, serverDSN string, err error) {
	parts := strings.Split(dsn, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid DSN, cannot extract database name")
	}

	// the last part may carry parameters
	dbParts := strings.SplitN(parts[len(parts)-1], "?", 2)
	database = dbParts[0]
	if database == "" {
		return "", "", fmt.Errorf("invalid DSN, empty database name")
	}

	serverDSN = strings.Join(parts[:len(parts)-1], "/") + "/"
	if len(dbParts) > 1 {
		serverDSN += "?" + dbParts[1]
	}

	return database, serverDSN, nil
}

// InitDatabase creates the readings and summaries tables
func (ms *MySQLStorage) InitDatabase() error {
	readingsTableSQL := `
	CREATE TABLE IF NOT EXISTS readings (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		id CHAR(36) NOT NULL DEFAULT '',
		sensor_id VARCHAR(255) NOT NULL,
		sensor_type VARCHAR(255) NOT NULL,
		value DOUBLE NOT NULL,
		unit VARCHAR(50),
		battery_level INT,
		latitude DOUBLE,
		longitude DOUBLE,
		timestamp BIGINT NOT NULL,
		status VARCHAR(16),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_readings_timestamp (timestamp),
		INDEX idx_readings_sensor (sensor_type, sensor_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	summariesTableSQL := `
	CREATE TABLE IF NOT EXISTS summaries (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		id CHAR(36) NOT NULL DEFAULT '',
		sensor_id VARCHAR(255) NOT NULL,
		sensor_type VARCHAR(255) NOT NULL,
		average_value DOUBLE NOT NULL,
		min_value DOUBLE NOT NULL,
		max_value DOUBLE NOT NULL,
		standard_deviation DOUBLE NOT NULL,
		unit VARCHAR(50),
		area VARCHAR(32) NOT NULL,
		start_period BIGINT NOT NULL,
		end_period BIGINT NOT NULL,
		sample_count INT NOT NULL,
		alert_triggered BOOLEAN NOT NULL DEFAULT FALSE,
		alert_message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_summaries_end_period (end_period)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := ms.db.Exec(readingsTableSQL); err != nil {
		return fmt.Errorf("create readings table failed: %w", err)
	}

	if _, err := ms.db.Exec(summariesTableSQL); err != nil {
		return fmt.Errorf("create summaries table failed: %w", err)
	}

	logger.Info("MySQL tables initialized")
	return nil
}

// Close closes the database connection
func (ms *MySQLStorage) Close() error {
	if err := ms.close("MySQL"); err != nil {
		return err
	}
	logger.Info("MySQL connection closed")
	return nil
}

package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// NewMySQLStore creates a MySQL-backed dataset store
func NewMySQLStore(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql database: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS routes (
			id VARCHAR(64) PRIMARY KEY,
			short_name VARCHAR(64) NOT NULL,
			long_name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stops (
			id VARCHAR(64) PRIMARY KEY,
			route_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			lat DOUBLE NOT NULL,
			lon DOUBLE NOT NULL,
			sequence INT NOT NULL,
			INDEX idx_stops_route (route_id, sequence)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init mysql schema: %w", err)
		}
	}

	return newSQLStore(db, dialectMySQL), nil
}

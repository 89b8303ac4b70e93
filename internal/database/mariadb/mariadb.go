// Package mariadb stores reference embeddings as JSON blobs in MariaDB.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const schema = `
CREATE TABLE IF NOT EXISTS face_references (
	id              BIGINT AUTO_INCREMENT PRIMARY KEY,
	person_name     VARCHAR(255) NOT NULL,
	source          VARCHAR(1024) NOT NULL DEFAULT '',
	mirrored        BOOLEAN NOT NULL DEFAULT FALSE,
	embeddings_json MEDIUMBLOB NOT NULL,
	det_score       DOUBLE NOT NULL DEFAULT 0,
	model           VARCHAR(255) NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	INDEX face_references_person_idx (person_name, id)
)`

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// NewPool opens the pool and makes sure the reference table exists.
func NewPool(dsn string) (*Pool, error) {
	if dsn == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create face_references table: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

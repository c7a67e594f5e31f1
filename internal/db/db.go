// Package db opens the archive database. Local file paths use the pure-Go
// sqlite driver; libsql:// URLs go to a remote Turso-compatible server.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"alpaca/backend/internal/config"
)

func Open(cfg config.Config) (*sql.DB, error) {
	driver, dsn, err := buildDSN(cfg.ArchiveDatabaseURL, cfg.ArchiveAuthToken)
	if err != nil {
		return nil, err
	}

	pool, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	pool.SetMaxOpenConns(4)
	pool.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping archive database: %w", err)
	}
	return pool, nil
}

func buildDSN(rawURL, authToken string) (driver, dsn string, err error) {
	rawURL = strings.TrimSpace(rawURL)
	switch {
	case rawURL == "":
		return "", "", errors.New("archive database url is empty")
	case strings.HasPrefix(rawURL, "libsql://"):
		if authToken == "" {
			return "", "", errors.New("libsql archive urls require an auth token")
		}
		return "libsql", fmt.Sprintf("%s?authToken=%s", rawURL, authToken), nil
	case strings.HasPrefix(rawURL, "file:"):
		return "sqlite", rawURL, nil
	default:
		return "sqlite", "file:" + rawURL, nil
	}
}

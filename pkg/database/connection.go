// Package database owns the PostgreSQL handle behind the spec store and its
// schema migrations.
package database

import (
	"database/sql"
	"log"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/toolwire/openapi-mcp/pkg/server"
)

// DB is the shared database handle, installed by Connect.
var DB *sql.DB

const (
	maxOpenConns = 25
	maxIdleConns = 25
)

// Connect opens and verifies a PostgreSQL connection and installs it as the
// shared handle. The URL has already passed configuration validation.
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, server.Wrap(err, server.ErrorTypeDatabase, "failed to open database connection")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, server.Wrap(err, server.ErrorTypeDatabase, "database is unreachable")
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	log.Printf("Database connected: %s", redactURL(databaseURL))

	DB = db
	return db, nil
}

// Close closes the shared database handle.
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// Ping checks if the database connection is still alive
func Ping() error {
	if DB == nil {
		return server.NewError(server.ErrorTypeDatabase, "database connection is not initialized", "")
	}
	return DB.Ping()
}

// InitializeDatabase connects to the database and brings the schema up to
// date.
func InitializeDatabase(databaseURL string) error {
	db, err := Connect(databaseURL)
	if err != nil {
		return err
	}
	if err := RunMigrations(db); err != nil {
		return server.Wrap(err, server.ErrorTypeDatabase, "failed to run migrations")
	}
	return nil
}

// redactURL strips the credential section of a connection URL for logging.
func redactURL(url string) string {
	at := strings.LastIndex(url, "@")
	scheme := strings.Index(url, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return "***"
	}
	return url[:scheme+3] + "***@" + url[at+1:]
}

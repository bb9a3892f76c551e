package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const memoryPath = ":memory:"

type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewDB opens the sqlite store. Every transaction is started with BEGIN IMMEDIATE,
// so write transactions are serialized from their first statement.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	memory := path == memoryPath
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(path, memory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if memory {
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, logger: logger}
	if err := db.createTables(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return db, nil
}

func dsn(path string, memory bool) string {
	params := "_foreign_keys=on&_txlock=immediate&_busy_timeout=10000"
	if memory {
		return path + "?" + params
	}
	return path + "?_journal_mode=WAL&_synchronous=NORMAL&" + params
}

// Path is the on-disk location of the store, or ":memory:".
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cabins (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            owner_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            location TEXT NOT NULL,
            altitude INTEGER NOT NULL DEFAULT 0,
            contact_email TEXT NOT NULL,
            contact_phone TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            score_average REAL NOT NULL DEFAULT 0,
            telegram_chat_id INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS rooms (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            cabin_id INTEGER NOT NULL REFERENCES cabins(id) ON DELETE CASCADE,
            number INTEGER NOT NULL,
            capacity INTEGER NOT NULL CHECK (capacity > 0),
            price_per_night TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            UNIQUE (cabin_id, number)
        )`,
		// Dates are YYYY-MM-DD text: lexical order is calendar order.
		`CREATE TABLE IF NOT EXISTS reservations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            user_id INTEGER NOT NULL,
            check_in TEXT NOT NULL,
            check_out TEXT NOT NULL,
            guest_count INTEGER NOT NULL CHECK (guest_count > 0),
            total_price TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            CHECK (length(check_in) = 10 AND check_in < check_out)
        )`,
		`CREATE TABLE IF NOT EXISTS reservation_rooms (
            reservation_id INTEGER NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
            room_id INTEGER NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
            PRIMARY KEY (reservation_id, room_id)
        )`,
		`CREATE TABLE IF NOT EXISTS reviews (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            cabin_id INTEGER NOT NULL REFERENCES cabins(id) ON DELETE CASCADE,
            user_id INTEGER NOT NULL,
            score INTEGER NOT NULL CHECK (score BETWEEN 1 AND 5),
            comment TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            reservation_id INTEGER NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		// A room may belong to at most one reservation on any night.
		`CREATE TRIGGER IF NOT EXISTS trg_reservation_rooms_no_overlap
            BEFORE INSERT ON reservation_rooms
        BEGIN
            SELECT RAISE(ABORT, 'reservation overlap')
            WHERE EXISTS (
                SELECT 1
                FROM reservation_rooms held
                JOIN reservations existing ON existing.id = held.reservation_id
                JOIN reservations incoming ON incoming.id = NEW.reservation_id
                WHERE held.room_id = NEW.room_id
                  AND held.reservation_id <> NEW.reservation_id
                  AND existing.check_in < incoming.check_out
                  AND existing.check_out > incoming.check_in
            );
        END`,

		`CREATE INDEX IF NOT EXISTS idx_cabins_owner_id ON cabins(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_cabin_id ON rooms(cabin_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_user_id ON reservations(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_dates ON reservations(check_in, check_out)`,
		`CREATE INDEX IF NOT EXISTS idx_reservation_rooms_room_id ON reservation_rooms(room_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_cabin_id ON reviews(cabin_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// inClause renders "?, ?, ?" for ids and the matching argument list.
func inClause(ids []int64) (string, []interface{}) {
	marks := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	return strings.Join(marks, ", "), args
}

func constraintCode(err error) sqlite3.ErrNoExtended {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return sqliteErr.ExtendedCode
	}
	return 0
}

func isUniqueViolation(err error) bool {
	code := constraintCode(err)
	return code == sqlite3.ErrConstraintUnique || code == sqlite3.ErrConstraintPrimaryKey
}

func isForeignKeyViolation(err error) bool {
	return constraintCode(err) == sqlite3.ErrConstraintForeignKey
}

func isOverlapViolation(err error) bool {
	return constraintCode(err) == sqlite3.ErrConstraintTrigger
}

func now() time.Time {
	return time.Now().UTC()
}

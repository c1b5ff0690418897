package insteon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ins "github.com/nerrad567/gray-logic-insteon/internal/insteon"
)

// EngineStore caches resolved engine version bytes across restarts.
type EngineStore interface {
	// LoadEngine returns the cached version byte; found is false if absent.
	LoadEngine(ctx context.Context, addr ins.InsteonAddress) (version byte, found bool, err error)

	// SaveEngine stores the version byte, replacing any previous value.
	SaveEngine(ctx context.Context, addr ins.InsteonAddress, version byte) error
}

// SQLiteEngineStore is an EngineStore on the insteon_engines table.
// The table is created by the database migrations.
type SQLiteEngineStore struct {
	db *sql.DB
}

// NewSQLiteEngineStore creates a store on an open database.
func NewSQLiteEngineStore(db *sql.DB) *SQLiteEngineStore {
	return &SQLiteEngineStore{db: db}
}

// LoadEngine implements EngineStore.
func (s *SQLiteEngineStore) LoadEngine(ctx context.Context, addr ins.InsteonAddress) (byte, bool, error) {
	var version int
	err := s.db.QueryRowContext(ctx,
		"SELECT version FROM insteon_engines WHERE address = ?",
		addr.String(),
	).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: loading %s: %w", ErrEngineStore, addr, err)
	}
	return byte(version), true, nil //nolint:gosec // column holds a single byte
}

// SaveEngine implements EngineStore.
func (s *SQLiteEngineStore) SaveEngine(ctx context.Context, addr ins.InsteonAddress, version byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insteon_engines (address, version, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			version = excluded.version,
			updated_at = excluded.updated_at`,
		addr.String(), int(version), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("%w: saving %s: %w", ErrEngineStore, addr, err)
	}
	return nil
}

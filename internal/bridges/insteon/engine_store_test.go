package insteon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/database"
	ins "github.com/nerrad567/gray-logic-insteon/internal/insteon"
	_ "github.com/nerrad567/gray-logic-insteon/migrations"
)

func openEngineStore(t *testing.T) *SQLiteEngineStore {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "insteon.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewSQLiteEngineStore(db.DB)
}

func TestSQLiteEngineStore(t *testing.T) {
	store := openEngineStore(t)
	ctx := context.Background()
	addr := ins.InsteonAddress{0x1A, 0x2B, 0x3C}

	if _, found, err := store.LoadEngine(ctx, addr); err != nil || found {
		t.Fatalf("LoadEngine() on empty store = found %v, err %v", found, err)
	}

	if err := store.SaveEngine(ctx, addr, 0x01); err != nil {
		t.Fatalf("SaveEngine: %v", err)
	}
	version, found, err := store.LoadEngine(ctx, addr)
	if err != nil || !found || version != 0x01 {
		t.Errorf("LoadEngine() = 0x%02X, %v, %v; want 0x01, true, nil", version, found, err)
	}

	// Saving again replaces the value.
	if err := store.SaveEngine(ctx, addr, 0xFF); err != nil {
		t.Fatalf("SaveEngine: %v", err)
	}
	if version, _, _ := store.LoadEngine(ctx, addr); version != 0xFF {
		t.Errorf("LoadEngine() = 0x%02X after overwrite, want 0xFF", version)
	}
}

func TestSQLiteEngineStoreClosedDB(t *testing.T) {
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "closed.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store := NewSQLiteEngineStore(db.DB)
	db.Close() //nolint:errcheck // closing to force errors

	if _, _, err := store.LoadEngine(context.Background(), ins.InsteonAddress{1, 2, 3}); err == nil {
		t.Error("LoadEngine() on closed database should fail")
	}
}

// Package testutil provides shared fixtures for escrow client tests: a
// migrated journal database, transaction builders and a fake REST API.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/escrow-client/internal/model"
	"github.com/Veraticus/escrow-client/internal/storage"
)

// SetupTestDB creates a migrated journal in the test's temp dir and seeds
// it with attempts. The database is closed on cleanup.
func SetupTestDB(t *testing.T, attempts ...model.PaymentAttempt) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "escrow.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, a := range attempts {
		if err := store.RecordAttempt(ctx, a); err != nil {
			t.Fatalf("failed to seed attempt %q: %v", a.Reference, err)
		}
	}

	return store
}

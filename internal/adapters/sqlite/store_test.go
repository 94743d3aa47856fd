package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/autoyard/garageapi/internal/adapters/sqlite/gormsqlite"
	"github.com/autoyard/garageapi/internal/core/domain"
	"github.com/autoyard/garageapi/migrations"
)

func openTestDB(t *testing.T) *gormsqlite.DB {
	t.Helper()
	db, err := gormsqlite.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.WriteSQLDB()
	if err != nil {
		t.Fatalf("resolve write db: %v", err)
	}
	if err := migrations.Up(context.Background(), sqlDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testRecord(resource, status, ownerID, data string, createdAt time.Time) domain.Record {
	return domain.Record{
		ID:        uuid.NewString(),
		Resource:  resource,
		OwnerID:   ownerID,
		Status:    status,
		Data:      []byte(data),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func mustCreate(t *testing.T, store *RecordStore, rec domain.Record, meta domain.MutationMeta) domain.Record {
	t.Helper()
	stored, err := store.CreateWithEvents(context.Background(), rec, meta)
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	return stored
}

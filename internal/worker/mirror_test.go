package worker

import (
	"bytes"
	"context"
	"testing"
	"time"

	"khata/internal/amqp"
	"khata/internal/core"
	"khata/internal/storage"
)

func testStores(t *testing.T) (storage.DocumentStore, storage.DocumentStore) {
	t.Helper()
	primary, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("primary store: %v", err)
	}
	backup, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("backup store: %v", err)
	}
	return primary, backup
}

func seedPrimary(t *testing.T, primary storage.DocumentStore) {
	t.Helper()
	st := storage.State{
		Entries: []core.Entry{{
			ID:         "e-1",
			Amount:     core.Money{Cents: 15000},
			Name:       "Rent",
			CategoryID: core.GeneralCategoryID,
			Date:       time.Date(2025, time.March, 5, 10, 0, 0, 0, time.UTC),
			Status:     core.StatusUnpaid,
		}},
		Categories:   core.DefaultCategories(),
		BankAccounts: []core.BankAccount{},
		ViewPrefs:    core.DefaultViewPrefs(),
	}
	if err := storage.SaveState(context.Background(), primary, st); err != nil {
		t.Fatalf("seed primary: %v", err)
	}
}

func TestHandleChangeMirrorsDocument(t *testing.T) {
	ctx := context.Background()
	primary, backup := testStores(t)
	seedPrimary(t, primary)

	w := NewMirrorWorker(primary, backup)
	msg := amqp.NewLedgerChangeMessage(storage.KeyEntries, amqp.OpUpsert, "e-1")
	if err := w.HandleChange(ctx, msg); err != nil {
		t.Fatalf("handle change: %v", err)
	}

	want, _, err := primary.Load(ctx, storage.KeyEntries)
	if err != nil {
		t.Fatalf("load primary: %v", err)
	}
	got, ok, err := backup.Load(ctx, storage.KeyEntries)
	if err != nil || !ok {
		t.Fatalf("load backup: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("mirrored document differs from primary")
	}

	// Other collections are untouched by a single change.
	if _, ok, _ := backup.Load(ctx, storage.KeyCategories); ok {
		t.Fatalf("categories mirrored without a change message")
	}
}

func TestHandleChangeMissingDocumentIsNoOp(t *testing.T) {
	primary, backup := testStores(t)

	w := NewMirrorWorker(primary, backup)
	msg := amqp.NewLedgerChangeMessage(storage.KeyEntries, amqp.OpDelete, "e-1")
	if err := w.HandleChange(context.Background(), msg); err != nil {
		t.Fatalf("handle change on empty primary: %v", err)
	}
}

func TestMirrorAllCopiesEveryDocument(t *testing.T) {
	ctx := context.Background()
	primary, backup := testStores(t)
	seedPrimary(t, primary)

	w := NewMirrorWorker(primary, backup)
	if err := w.MirrorAll(ctx); err != nil {
		t.Fatalf("mirror all: %v", err)
	}

	for _, key := range storage.Keys() {
		if _, ok, err := backup.Load(ctx, key); err != nil || !ok {
			t.Fatalf("document %q not mirrored: ok=%v err=%v", key, ok, err)
		}
	}
}

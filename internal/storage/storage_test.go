package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"khata/internal/core"
)

func populatedState() State {
	d := time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)
	remind := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	return State{
		Entries: []core.Entry{
			{
				ID:           "e1",
				Amount:       core.Money{Cents: 15000},
				PaidAmount:   core.Money{Cents: 5000},
				Name:         "Milk",
				CategoryID:   "1",
				Note:         "weekly run",
				Date:         d,
				Status:       core.StatusPartial,
				ReminderDate: &remind,
				Attachments:  []string{"data:image/png;base64,AAAA"},
			},
			{
				ID:              "e2",
				Amount:          core.Money{Cents: 2000},
				PaidAmount:      core.Money{Cents: 2000},
				CategoryID:      core.GeneralCategoryID,
				Date:            d.AddDate(0, 0, -1),
				Status:          core.StatusPaid,
				LinkedAccountID: "b1",
			},
		},
		Categories: []core.CategoryInfo{
			{ID: "1", Name: "Grocery", Icon: "🛒", Color: "bg-emerald-500", VPA: "shop@upi", AutoReminderFrequency: core.RemindWeekly},
			{ID: core.GeneralCategoryID, Name: "General", Icon: "💰", Color: "bg-slate-800"},
		},
		BankAccounts: []core.BankAccount{
			{ID: "b1", Provider: core.ProviderGPay, Name: "GPAY Wallet", Balance: core.Money{Cents: 2500000}, Color: "bg-indigo-600", Type: core.AccountUPI},
		},
		ViewPrefs: core.HistoryViewPrefs{ShowIcon: true, ShowStatus: true},
	}
}

func testStores(t *testing.T) map[string]DocumentStore {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "khata.db"))
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	return map[string]DocumentStore{"file": fileStore, "sqlite": sqliteStore}
}

func TestStateRoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()
			ctx := context.Background()

			want := populatedState()
			if err := SaveState(ctx, store, want); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := LoadState(ctx, store)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
			}
		})
	}
}

func TestLoadStateDefaultsWhenNeverSaved(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			defer store.Close()

			st, err := LoadState(context.Background(), store)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(st.Entries) != 0 || len(st.BankAccounts) != 0 {
				t.Fatalf("expected empty entries and banks, got %d/%d", len(st.Entries), len(st.BankAccounts))
			}
			if !reflect.DeepEqual(st.Categories, core.DefaultCategories()) {
				t.Fatalf("categories not defaulted to seed set: %+v", st.Categories)
			}
			if st.ViewPrefs != core.DefaultViewPrefs() {
				t.Fatalf("view prefs not defaulted: %+v", st.ViewPrefs)
			}
		})
	}
}

func TestSaveOverwritesWholeDocument(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	ctx := context.Background()

	st := populatedState()
	if err := SaveState(ctx, store, st); err != nil {
		t.Fatalf("save: %v", err)
	}
	st.Entries = st.Entries[:1]
	if err := SaveState(ctx, store, st); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := LoadState(ctx, store)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Entries) != 1 {
		t.Fatalf("got %d entries, want 1 (document replaced, not appended)", len(got.Entries))
	}
}

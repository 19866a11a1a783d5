package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"khata/internal/amqp"
	"khata/internal/banklink"
	"khata/internal/core"
	"khata/internal/ledger"
	"khata/internal/storage"
)

const persistTimeout = 5 * time.Second

// LedgerService orchestrates ledger mutations across the in-memory store, the
// document store and AMQP. Every mutation applies to the in-memory store
// synchronously; persistence and change messages ride behind it without
// blocking the caller.
type LedgerService struct {
	store      *ledger.Store
	documents  storage.DocumentStore
	amqpClient *amqp.Client
	linker     *banklink.Linker

	wg sync.WaitGroup
}

func NewLedgerService(store *ledger.Store, documents storage.DocumentStore, amqpClient *amqp.Client, linker *banklink.Linker) *LedgerService {
	return &LedgerService{
		store:      store,
		documents:  documents,
		amqpClient: amqpClient,
		linker:     linker,
	}
}

// LoadState hydrates the in-memory store from the document store. Missing
// documents fall back to seed data.
func (s *LedgerService) LoadState(ctx context.Context) error {
	st, err := storage.LoadState(ctx, s.documents)
	if err != nil {
		return fmt.Errorf("load ledger state: %w", err)
	}
	s.store.Reset(st.Entries, st.Categories, st.BankAccounts, st.ViewPrefs)
	return nil
}

// Store exposes the in-memory store for read paths.
func (s *LedgerService) Store() *ledger.Store {
	return s.store
}

// CreateEntry adds an entry and schedules persistence.
func (s *LedgerService) CreateEntry(ctx context.Context, draft ledger.EntryDraft) (core.Entry, error) {
	e, err := s.store.AddEntry(draft)
	if err != nil {
		return core.Entry{}, err
	}
	s.persistAndPublish(ctx, storage.KeyEntries, amqp.OpUpsert, e.ID)
	return e, nil
}

// UpdateEntry merges a patch onto an existing entry. A missing id reports
// found=false with no error and schedules nothing.
func (s *LedgerService) UpdateEntry(ctx context.Context, id string, patch ledger.EntryPatch) (core.Entry, bool, error) {
	e, found, err := s.store.UpdateEntry(id, patch)
	if err != nil || !found {
		return core.Entry{}, found, err
	}
	s.persistAndPublish(ctx, storage.KeyEntries, amqp.OpUpsert, id)
	return e, true, nil
}

// DeleteEntry removes an entry; deleting a missing id is a no-op.
func (s *LedgerService) DeleteEntry(ctx context.Context, id string) bool {
	if !s.store.RemoveEntry(id) {
		return false
	}
	s.persistAndPublish(ctx, storage.KeyEntries, amqp.OpDelete, id)
	return true
}

// DeleteEntries removes a batch of entries, returning how many existed.
func (s *LedgerService) DeleteEntries(ctx context.Context, ids []string) int {
	removed := s.store.RemoveEntries(ids)
	if removed > 0 {
		s.persistAndPublish(ctx, storage.KeyEntries, amqp.OpDelete, "")
	}
	return removed
}

// SettleEntry marks an entry fully paid.
func (s *LedgerService) SettleEntry(ctx context.Context, id string) (core.Entry, bool) {
	e, found := s.store.SettleEntry(id)
	if !found {
		return core.Entry{}, false
	}
	s.persistAndPublish(ctx, storage.KeyEntries, amqp.OpUpsert, id)
	return e, true
}

// RecordPayment applies a partial payment, clamping at the owed amount.
func (s *LedgerService) RecordPayment(ctx context.Context, id string, payment core.Money) (core.Entry, bool, error) {
	e, found, err := s.store.ApplyPayment(id, payment)
	if err != nil || !found {
		return core.Entry{}, found, err
	}
	s.persistAndPublish(ctx, storage.KeyEntries, amqp.OpUpsert, id)
	return e, true, nil
}

// MarkEntriesPaid settles a batch of entries, returning how many existed.
func (s *LedgerService) MarkEntriesPaid(ctx context.Context, ids []string) int {
	updated := s.store.MarkEntriesPaid(ids)
	if updated > 0 {
		s.persistAndPublish(ctx, storage.KeyEntries, amqp.OpUpsert, "")
	}
	return updated
}

// UpsertCategory inserts or replaces a category.
func (s *LedgerService) UpsertCategory(ctx context.Context, cat core.CategoryInfo) (core.CategoryInfo, error) {
	saved, err := s.store.UpsertCategory(cat)
	if err != nil {
		return core.CategoryInfo{}, err
	}
	s.persistAndPublish(ctx, storage.KeyCategories, amqp.OpUpsert, saved.ID)
	return saved, nil
}

// DeleteCategory removes a category and every entry referencing it. Returns
// how many entries went with it and whether the category existed.
func (s *LedgerService) DeleteCategory(ctx context.Context, id string) (int, bool) {
	removed, found := s.store.RemoveCategory(id)
	if !found {
		return 0, false
	}
	// The cascade touches both documents.
	s.persistAndPublish(ctx, storage.KeyCategories, amqp.OpDelete, id)
	if removed > 0 {
		s.publishChange(ctx, storage.KeyEntries, amqp.OpDelete, "")
	}
	return removed, true
}

// LinkBankAccount runs the provider handshake and stores the resulting
// account. Concurrent attempts for the same provider share one handshake.
func (s *LedgerService) LinkBankAccount(ctx context.Context, provider core.Provider) (core.BankAccount, error) {
	account, err := s.linker.Link(ctx, provider)
	if err != nil {
		return core.BankAccount{}, err
	}
	saved, err := s.store.AddBankAccount(account)
	if err != nil {
		return core.BankAccount{}, err
	}
	slog.InfoContext(ctx, "Linked bank account",
		"provider", saved.Provider, "id", saved.ID, "balance", saved.Balance.Units())
	s.persistAndPublish(ctx, storage.KeyBankAccounts, amqp.OpUpsert, saved.ID)
	return saved, nil
}

// UnlinkBankAccount removes a linked account; missing ids are a no-op.
func (s *LedgerService) UnlinkBankAccount(ctx context.Context, id string) bool {
	if !s.store.RemoveBankAccount(id) {
		return false
	}
	s.persistAndPublish(ctx, storage.KeyBankAccounts, amqp.OpDelete, id)
	return true
}

// SetViewPrefs replaces the history view preferences.
func (s *LedgerService) SetViewPrefs(ctx context.Context, prefs core.HistoryViewPrefs) {
	s.store.SetViewPrefs(prefs)
	s.persistAndPublish(ctx, storage.KeyViewPrefs, amqp.OpUpsert, "")
}

// persistAndPublish snapshots the store and writes it out in the background.
// Persistence failures are logged, never surfaced to the mutating caller: the
// in-memory store is the source of truth for the running process.
func (s *LedgerService) persistAndPublish(ctx context.Context, collection, op, id string) {
	entries, categories, banks, prefs := s.store.Snapshot()
	st := storage.State{
		Entries:      entries,
		Categories:   categories,
		BankAccounts: banks,
		ViewPrefs:    prefs,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Detached from the request context so an early client disconnect
		// cannot lose a write.
		saveCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := storage.SaveState(saveCtx, s.documents, st); err != nil {
			slog.ErrorContext(saveCtx, "Failed to persist ledger state",
				"collection", collection,
				"op", op,
				"error", err)
		}
	}()

	s.publishChange(ctx, collection, op, id)
}

func (s *LedgerService) publishChange(ctx context.Context, collection, op, id string) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishLedgerChange(ctx, collection, op, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"collection", collection,
			"op", op,
			"id", id,
			"error", err)
		// Don't fail the request, the change is applied locally.
	}
}

// Flush waits for in-flight persistence goroutines, used on shutdown and in
// tests.
func (s *LedgerService) Flush() {
	s.wg.Wait()
}

// Close flushes pending writes and closes storage and AMQP connections.
func (s *LedgerService) Close() error {
	s.Flush()

	var errs []error

	if s.documents != nil {
		if err := s.documents.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}

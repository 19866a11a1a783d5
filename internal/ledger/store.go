// Package ledger holds the canonical in-memory collections and applies
// structural mutations to them as atomic, invariant-preserving operations.
// Derivation lives in core; persistence lives in storage. Every mutation is a
// total function from the old collections to the new ones, observable through
// Snapshot before/after.
package ledger

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"khata/internal/core"
)

type Store struct {
	mu         sync.Mutex
	entries    []core.Entry
	categories []core.CategoryInfo
	banks      []core.BankAccount
	prefs      core.HistoryViewPrefs

	now   func() time.Time
	newID func() string
}

func New() *Store {
	return &Store{
		categories: core.DefaultCategories(),
		prefs:      core.DefaultViewPrefs(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Reset replaces all collections with a loaded snapshot.
func (s *Store) Reset(entries []core.Entry, categories []core.CategoryInfo, banks []core.BankAccount, prefs core.HistoryViewPrefs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]core.Entry(nil), entries...)
	s.categories = append([]core.CategoryInfo(nil), categories...)
	s.banks = append([]core.BankAccount(nil), banks...)
	s.prefs = prefs
}

// Snapshot returns copies of all collections; mutating the result never
// touches the store.
func (s *Store) Snapshot() ([]core.Entry, []core.CategoryInfo, []core.BankAccount, core.HistoryViewPrefs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Entry(nil), s.entries...),
		append([]core.CategoryInfo(nil), s.categories...),
		append([]core.BankAccount(nil), s.banks...),
		s.prefs
}

func (s *Store) Entries() []core.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Entry(nil), s.entries...)
}

func (s *Store) Categories() []core.CategoryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CategoryInfo(nil), s.categories...)
}

func (s *Store) BankAccounts() []core.BankAccount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.BankAccount(nil), s.banks...)
}

func (s *Store) ViewPrefs() core.HistoryViewPrefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

func (s *Store) SetViewPrefs(p core.HistoryViewPrefs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = p
}

func (s *Store) EntryByID(id string) (core.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return core.Entry{}, false
}

func (s *Store) CategoryByID(id string) (core.CategoryInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return core.CategoryInfo{}, false
}

// categoryExistsLocked is called with s.mu held.
func (s *Store) categoryExistsLocked(id string) bool {
	for _, c := range s.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// EntryDraft carries the user-supplied fields for a new entry. Status is
// accepted from edit forms but only as a hint: the stored status is always
// re-derived from the amounts.
type EntryDraft struct {
	Amount          core.Money
	PaidAmount      core.Money
	Name            string
	CategoryID      string
	Note            string
	Date            time.Time
	ReminderDate    *time.Time
	Attachments     []string
	LinkedAccountID string
}

// AddEntry materializes a draft: fresh id, zero paid amount unless supplied,
// derived status, the store's first category (or the general sentinel) when
// none is chosen, creation time when not backdated. A supplied category id
// must exist (ErrUnknownCategory otherwise). The entry is inserted at the
// head so the newest record comes first.
func (s *Store) AddEntry(draft EntryDraft) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	categoryID := strings.TrimSpace(draft.CategoryID)
	if categoryID == "" {
		if len(s.categories) > 0 {
			categoryID = s.categories[0].ID
		} else {
			categoryID = core.GeneralCategoryID
		}
	} else if !s.categoryExistsLocked(categoryID) {
		return core.Entry{}, core.ErrUnknownCategory
	}
	date := draft.Date
	if date.IsZero() {
		date = s.now()
	}

	e := core.Entry{
		ID:              s.newID(),
		Amount:          draft.Amount,
		PaidAmount:      draft.PaidAmount,
		Name:            draft.Name,
		CategoryID:      categoryID,
		Note:            draft.Note,
		Date:            date,
		Status:          core.DeriveStatus(draft.Amount, draft.PaidAmount),
		ReminderDate:    draft.ReminderDate,
		Attachments:     draft.Attachments,
		LinkedAccountID: draft.LinkedAccountID,
	}
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	s.entries = append([]core.Entry{e}, s.entries...)
	return e, nil
}

// EntryPatch is a partial update; nil fields are left untouched. Setting
// Status to paid settles the entry (paidAmount = amount); any other supplied
// status is only a hint, the stored status is re-derived from the amounts.
type EntryPatch struct {
	Amount          *core.Money
	PaidAmount      *core.Money
	Name            *string
	CategoryID      *string
	Note            *string
	Date            *time.Time
	Status          *core.Status
	ReminderDate    *time.Time
	Attachments     []string
	LinkedAccountID *string
}

// UpdateEntry merges the patch onto the entry with the given id. A missing id
// is a silent no-op (found=false, no error): callers race with deletions and
// that is expected. A patch that would leave paidAmount above amount is
// rejected with ErrInvariantViolation and the original entry is retained.
func (s *Store) UpdateEntry(id string, patch EntryPatch) (core.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.ID != id {
			continue
		}
		merged := mergeEntry(e, patch)
		if err := merged.Validate(); err != nil {
			return core.Entry{}, true, err
		}
		if patch.CategoryID != nil && !s.categoryExistsLocked(merged.CategoryID) {
			return core.Entry{}, true, core.ErrUnknownCategory
		}
		s.entries[i] = merged
		return merged, true, nil
	}
	return core.Entry{}, false, nil
}

func mergeEntry(e core.Entry, patch EntryPatch) core.Entry {
	if patch.Amount != nil {
		e.Amount = *patch.Amount
	}
	if patch.PaidAmount != nil {
		e.PaidAmount = *patch.PaidAmount
	}
	if patch.Name != nil {
		e.Name = *patch.Name
	}
	if patch.CategoryID != nil {
		e.CategoryID = *patch.CategoryID
	}
	if patch.Note != nil {
		e.Note = *patch.Note
	}
	if patch.Date != nil {
		e.Date = *patch.Date
	}
	if patch.ReminderDate != nil {
		e.ReminderDate = patch.ReminderDate
	}
	if patch.Attachments != nil {
		e.Attachments = patch.Attachments
	}
	if patch.LinkedAccountID != nil {
		e.LinkedAccountID = *patch.LinkedAccountID
	}
	if patch.Status != nil && *patch.Status == core.StatusPaid {
		e.PaidAmount = e.Amount
	}
	e.Status = core.DeriveStatus(e.Amount, e.PaidAmount)
	return e
}

// ReplaceEntry swaps in a fully formed entry value, used by the payment
// engine paths. Missing id is a silent no-op.
func (s *Store) ReplaceEntry(e core.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, old := range s.entries {
		if old.ID == e.ID {
			s.entries[i] = e
			return true
		}
	}
	return false
}

// RemoveEntry deletes the entry if present; idempotent.
func (s *Store) RemoveEntry(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveEntries deletes every entry in ids, returning how many existed.
func (s *Store) RemoveEntries(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if drop[e.ID] {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed
}

// SettleEntry marks the entry fully paid. Missing id is a silent no-op.
func (s *Store) SettleEntry(id string) (core.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			s.entries[i] = core.MarkFullyPaid(e)
			return s.entries[i], true
		}
	}
	return core.Entry{}, false
}

// ApplyPayment records a partial payment against the entry, clamping at the
// owed amount. Missing id is a silent no-op; a non-positive payment leaves the
// entry untouched and reports ErrInvalidAmount.
func (s *Store) ApplyPayment(id string, payment core.Money) (core.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == id {
			paid, err := core.ApplyPartialPayment(e, payment)
			if err != nil {
				return core.Entry{}, true, err
			}
			s.entries[i] = paid
			return paid, true, nil
		}
	}
	return core.Entry{}, false, nil
}

// MarkEntriesPaid settles every entry in ids, returning how many existed.
func (s *Store) MarkEntriesPaid(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	updated := 0
	for i, e := range s.entries {
		if want[e.ID] {
			s.entries[i] = core.MarkFullyPaid(e)
			updated++
		}
	}
	return updated
}

// UpsertCategory inserts the category when its id is new and replaces it in
// place otherwise, preserving the order of the other elements. An empty id
// gets a fresh one.
func (s *Store) UpsertCategory(cat core.CategoryInfo) (core.CategoryInfo, error) {
	if err := cat.Validate(); err != nil {
		return core.CategoryInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cat.ID == "" {
		cat.ID = s.newID()
	}
	for i, c := range s.categories {
		if c.ID == cat.ID {
			s.categories[i] = cat
			return cat, nil
		}
	}
	s.categories = append(s.categories, cat)
	return cat, nil
}

// RemoveCategory deletes the category and cascades to every entry referencing
// it. Both effects happen under one lock hold so no observer ever sees a
// dangling categoryId. Returns how many entries were removed and whether the
// category existed.
func (s *Store) RemoveCategory(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i, c := range s.categories {
		if c.ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return 0, false
	}
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.CategoryID == id {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, true
}

// AddBankAccount validates and appends a linked account, assigning an id when
// absent. Adding an id that is already stored returns the stored account
// unchanged: coalesced link attempts all hand in the same account value.
func (s *Store) AddBankAccount(b core.BankAccount) (core.BankAccount, error) {
	if err := b.Validate(); err != nil {
		return core.BankAccount{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = s.newID()
	} else {
		for _, existing := range s.banks {
			if existing.ID == b.ID {
				return existing, nil
			}
		}
	}
	s.banks = append(s.banks, b)
	return b, nil
}

// RemoveBankAccount deletes the account if present; idempotent.
func (s *Store) RemoveBankAccount(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.banks {
		if b.ID == id {
			s.banks = append(s.banks[:i], s.banks[i+1:]...)
			return true
		}
	}
	return false
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"khata/internal/core"
)

// State is the full persisted ledger: the three collections plus the view
// preference toggles.
type State struct {
	Entries      []core.Entry
	Categories   []core.CategoryInfo
	BankAccounts []core.BankAccount
	ViewPrefs    core.HistoryViewPrefs
}

// LoadState reads all four documents, applying the defaulting rules for keys
// that were never written: empty entries and bank accounts, the seed category
// set, and all-on view preferences.
func LoadState(ctx context.Context, store DocumentStore) (State, error) {
	st := State{
		Entries:      []core.Entry{},
		Categories:   core.DefaultCategories(),
		BankAccounts: []core.BankAccount{},
		ViewPrefs:    core.DefaultViewPrefs(),
	}

	if doc, ok, err := store.Load(ctx, KeyEntries); err != nil {
		return State{}, err
	} else if ok {
		if err := json.Unmarshal(doc, &st.Entries); err != nil {
			return State{}, fmt.Errorf("decode %s: %w", KeyEntries, err)
		}
	}
	if doc, ok, err := store.Load(ctx, KeyCategories); err != nil {
		return State{}, err
	} else if ok {
		if err := json.Unmarshal(doc, &st.Categories); err != nil {
			return State{}, fmt.Errorf("decode %s: %w", KeyCategories, err)
		}
	}
	if doc, ok, err := store.Load(ctx, KeyBankAccounts); err != nil {
		return State{}, err
	} else if ok {
		if err := json.Unmarshal(doc, &st.BankAccounts); err != nil {
			return State{}, fmt.Errorf("decode %s: %w", KeyBankAccounts, err)
		}
	}
	if doc, ok, err := store.Load(ctx, KeyViewPrefs); err != nil {
		return State{}, err
	} else if ok {
		if err := json.Unmarshal(doc, &st.ViewPrefs); err != nil {
			return State{}, fmt.Errorf("decode %s: %w", KeyViewPrefs, err)
		}
	}
	return st, nil
}

// SaveState writes all four documents in full.
func SaveState(ctx context.Context, store DocumentStore, st State) error {
	docs := []struct {
		key string
		val any
	}{
		{KeyEntries, st.Entries},
		{KeyCategories, st.Categories},
		{KeyBankAccounts, st.BankAccounts},
		{KeyViewPrefs, st.ViewPrefs},
	}
	for _, d := range docs {
		body, err := json.Marshal(d.val)
		if err != nil {
			return fmt.Errorf("encode %s: %w", d.key, err)
		}
		if err := store.Save(ctx, d.key, body); err != nil {
			return err
		}
	}
	return nil
}

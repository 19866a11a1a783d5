package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusPaid    Status = "paid"
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
)

const (
	RemindNever   ReminderFrequency = "none"
	RemindWeekly  ReminderFrequency = "weekly"
	RemindMonthly ReminderFrequency = "monthly"
)

const (
	ProviderGPay    Provider = "gpay"
	ProviderPhonePe Provider = "phonepe"
	ProviderPaytm   Provider = "paytm"
	ProviderBank    Provider = "bank"
)

const (
	AccountUPI     AccountType = "upi"
	AccountSavings AccountType = "savings"
	AccountCredit  AccountType = "credit"
)

// GeneralCategoryID is the sentinel category entries fall back to when no
// category is chosen at creation.
const GeneralCategoryID = "general"

type (
	Status string

	ReminderFrequency string

	Provider string

	AccountType string

	// Entry is a single due/expense record. Status is a cached derived value
	// and must always agree with DeriveStatus(Amount, PaidAmount).
	Entry struct {
		ID              string     `json:"id"`
		Amount          Money      `json:"amount"`
		PaidAmount      Money      `json:"paidAmount"`
		Name            string     `json:"name,omitempty"`
		CategoryID      string     `json:"categoryId"`
		Note            string     `json:"note,omitempty"`
		Date            time.Time  `json:"date"`
		Status          Status     `json:"status"`
		ReminderDate    *time.Time `json:"reminderDate,omitempty"`
		Attachments     []string   `json:"attachments,omitempty"`
		LinkedAccountID string     `json:"linkedAccountId,omitempty"`
	}

	// CategoryInfo is a spending bucket. Icon and Color are opaque display
	// tokens the core stores but never interprets.
	CategoryInfo struct {
		ID                    string            `json:"id"`
		Name                  string            `json:"name"`
		Icon                  string            `json:"icon"`
		Color                 string            `json:"color"`
		VPA                   string            `json:"vpa,omitempty"`
		AutoReminderFrequency ReminderFrequency `json:"autoReminderFrequency,omitempty"`
	}

	// BankAccount is a linked wallet. Balance is an external snapshot, never
	// derived from entries.
	BankAccount struct {
		ID       string      `json:"id"`
		Provider Provider    `json:"provider"`
		Name     string      `json:"name"`
		Balance  Money       `json:"balance"`
		Color    string      `json:"color"`
		Type     AccountType `json:"type"`
	}

	// SummaryData is recomputed from the live collections on every read and
	// never persisted.
	SummaryData struct {
		TodayTotal  Money `json:"todayTotal"`
		MonthTotal  Money `json:"monthTotal"`
		UnpaidTotal Money `json:"unpaidTotal"`
		PaidTotal   Money `json:"paidTotal"`
		BankBalance Money `json:"bankBalance"`
		NetPosition Money `json:"netPosition"`
	}

	// HistoryViewPrefs are display toggles persisted alongside the ledger.
	HistoryViewPrefs struct {
		ShowIcon         bool `json:"showIcon"`
		ShowTime         bool `json:"showTime"`
		ShowStatus       bool `json:"showStatus"`
		ShowNote         bool `json:"showNote"`
		ShowCategoryName bool `json:"showCategoryName"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrNotFound           = errors.New("not found")
	ErrInvariantViolation = errors.New("paid amount exceeds total amount")
	ErrEmptyName          = errors.New("empty name")
	ErrEmptyCategory      = errors.New("empty category id")
	ErrUnknownCategory    = errors.New("unknown category id")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidProvider    = errors.New("invalid payment provider")
	ErrMissingVPA         = errors.New("category has no UPI address")
)

func (s Status) Valid() bool {
	switch s {
	case StatusPaid, StatusUnpaid, StatusPartial:
		return true
	default:
		return false
	}
}

func (f ReminderFrequency) Valid() bool {
	switch f {
	case "", RemindNever, RemindWeekly, RemindMonthly:
		return true
	default:
		return false
	}
}

func (p Provider) Valid() bool {
	switch p {
	case ProviderGPay, ProviderPhonePe, ProviderPaytm, ProviderBank:
		return true
	default:
		return false
	}
}

func (t AccountType) Valid() bool {
	switch t {
	case AccountUPI, AccountSavings, AccountCredit:
		return true
	default:
		return false
	}
}

// Validate checks the invariants every stored entry must satisfy: a positive
// total, a paid amount within [0, amount], a category reference and a status
// that agrees with the amounts. Zero-amount entries are rejected here, at the
// boundary, rather than inside the payment engine.
func (e Entry) Validate() error {
	if e.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if e.PaidAmount.Cents < 0 || e.PaidAmount.Cents > e.Amount.Cents {
		return ErrInvariantViolation
	}
	if strings.TrimSpace(e.CategoryID) == "" {
		return ErrEmptyCategory
	}
	if e.Status != DeriveStatus(e.Amount, e.PaidAmount) {
		return ErrInvalidStatus
	}
	if len(e.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	return nil
}

// Remaining is the amount still owed on the entry.
func (e Entry) Remaining() Money {
	return Money{Cents: e.Amount.Cents - e.PaidAmount.Cents}
}

func (c CategoryInfo) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !c.AutoReminderFrequency.Valid() {
		return errors.New("invalid reminder frequency")
	}
	return nil
}

func (b BankAccount) Validate() error {
	if !b.Provider.Valid() {
		return ErrInvalidProvider
	}
	if !b.Type.Valid() {
		return errors.New("invalid account type")
	}
	if len(strings.TrimSpace(b.Name)) == 0 {
		return ErrEmptyName
	}
	return nil
}

// DefaultCategories is the seed set installed when no categories document has
// ever been saved.
func DefaultCategories() []CategoryInfo {
	return []CategoryInfo{
		{ID: GeneralCategoryID, Name: "General", Icon: "💰", Color: "bg-slate-800"},
		{ID: "1", Name: "Grocery", Icon: "🛒", Color: "bg-emerald-500"},
		{ID: "2", Name: "Bills", Icon: "📄", Color: "bg-rose-500"},
		{ID: "3", Name: "Food", Icon: "🍲", Color: "bg-orange-500"},
		{ID: "4", Name: "Travel", Icon: "🚗", Color: "bg-indigo-500"},
	}
}

// DefaultViewPrefs returns the all-on display defaults.
func DefaultViewPrefs() HistoryViewPrefs {
	return HistoryViewPrefs{
		ShowIcon:         true,
		ShowTime:         true,
		ShowStatus:       true,
		ShowNote:         true,
		ShowCategoryName: true,
	}
}

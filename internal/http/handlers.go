package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"khata/internal/core"
	"khata/internal/ledger"
)

type entryRequest struct {
	Amount          int64      `json:"amount" validate:"required,gt=0"`
	PaidAmount      int64      `json:"paidAmount" validate:"gte=0"`
	Name            string     `json:"name" validate:"required,max=200"`
	CategoryID      string     `json:"categoryId"`
	Note            string     `json:"note"`
	Date            *time.Time `json:"date"`
	ReminderDate    *time.Time `json:"reminderDate"`
	Attachments     []string   `json:"attachments"`
	LinkedAccountID string     `json:"linkedAccountId"`
}

type entryPatchRequest struct {
	Amount          *int64     `json:"amount" validate:"omitempty,gt=0"`
	PaidAmount      *int64     `json:"paidAmount" validate:"omitempty,gte=0"`
	Name            *string    `json:"name" validate:"omitempty,max=200"`
	CategoryID      *string    `json:"categoryId"`
	Note            *string    `json:"note"`
	Date            *time.Time `json:"date"`
	Status          *string    `json:"status" validate:"omitempty,oneof=paid unpaid partial"`
	ReminderDate    *time.Time `json:"reminderDate"`
	Attachments     []string   `json:"attachments"`
	LinkedAccountID *string    `json:"linkedAccountId"`
}

type paymentRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type bulkRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

type categoryRequest struct {
	ID                    string `json:"id"`
	Name                  string `json:"name" validate:"required,max=100"`
	Icon                  string `json:"icon"`
	Color                 string `json:"color"`
	VPA                   string `json:"vpa"`
	AutoReminderFrequency string `json:"autoReminderFrequency" validate:"omitempty,oneof=none weekly monthly"`
}

type linkBankRequest struct {
	Provider string `json:"provider" validate:"required,oneof=gpay phonepe paytm bank"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	month := now.Month()
	year := now.Year()
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			respondWithError(w, http.StatusBadRequest, "Invalid month parameter")
			return
		}
		month = time.Month(m)
	}
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid year parameter")
			return
		}
		year = y
	}

	key := s.summaryCacheKey(year, month, now.Day())
	if data, found := s.summaryCache.Get(key); found {
		slog.DebugContext(r.Context(), "Summary cache hit", "year", year, "month", int(month))
		respondWithJSON(w, http.StatusOK, data)
		return
	}

	entries, _, banks, _ := s.ledger.Store().Snapshot()
	data := core.Summarize(entries, banks, month, year, now)
	s.summaryCache.Set(key, data)

	respondWithJSON(w, http.StatusOK, data)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q, err := parseEntryQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, categories, _, _ := s.ledger.Store().Snapshot()
	filtered := core.FilterEntries(entries, categories, q)

	if r.URL.Query().Get("group") == "day" {
		respondWithJSON(w, http.StatusOK, core.GroupByDay(filtered))
		return
	}
	respondWithJSON(w, http.StatusOK, filtered)
}

// parseEntryQuery maps the filter query string onto a core.Query. Dates use
// the 2006-01-02 form; min is a decimal amount in major units as the user
// typed it ("150", "12.50", "12,50").
func parseEntryQuery(r *http.Request) (core.Query, error) {
	var q core.Query
	get := func(key string) string { return strings.TrimSpace(r.URL.Query().Get(key)) }

	if v := get("day"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return core.Query{}, errInvalidParam("day")
		}
		q.Day = &d
	}
	if v := get("from"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return core.Query{}, errInvalidParam("from")
		}
		q.From = &d
	}
	if v := get("to"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return core.Query{}, errInvalidParam("to")
		}
		q.To = &d
	}
	if v := get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return core.Query{}, errInvalidParam("month")
		}
		q.Month = time.Month(m)
	}
	if v := get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.Query{}, errInvalidParam("year")
		}
		q.Year = y
	}
	if v := get("min"); v != "" {
		cents, err := core.ParseDecimalToCents(v)
		if err != nil {
			return core.Query{}, errInvalidParam("min")
		}
		q.MinAmount = core.Money{Cents: cents}
	}
	q.Search = get("q")
	return q, nil
}

type paramError string

func errInvalidParam(name string) paramError { return paramError(name) }

func (e paramError) Error() string { return "Invalid " + string(e) + " parameter" }

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondWithValidationError(err.(validator.ValidationErrors), w)
		return
	}

	draft := ledger.EntryDraft{
		Amount:          core.Money{Cents: req.Amount},
		PaidAmount:      core.Money{Cents: req.PaidAmount},
		Name:            strings.TrimSpace(req.Name),
		CategoryID:      req.CategoryID,
		Note:            req.Note,
		ReminderDate:    req.ReminderDate,
		Attachments:     req.Attachments,
		LinkedAccountID: req.LinkedAccountID,
	}
	if req.Date != nil {
		draft.Date = *req.Date
	}

	e, err := s.ledger.CreateEntry(r.Context(), draft)
	if err != nil {
		respondWithError(w, statusForDomainError(err), err.Error())
		return
	}

	s.invalidateSummaries()
	respondWithJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	e, found := s.ledger.Store().EntryByID(id)
	if !found {
		respondWithError(w, http.StatusNotFound, "Entry not found")
		return
	}
	respondWithJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req entryPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondWithValidationError(err.(validator.ValidationErrors), w)
		return
	}

	patch := ledger.EntryPatch{
		Name:            req.Name,
		CategoryID:      req.CategoryID,
		Note:            req.Note,
		Date:            req.Date,
		ReminderDate:    req.ReminderDate,
		Attachments:     req.Attachments,
		LinkedAccountID: req.LinkedAccountID,
	}
	if req.Amount != nil {
		patch.Amount = &core.Money{Cents: *req.Amount}
	}
	if req.PaidAmount != nil {
		patch.PaidAmount = &core.Money{Cents: *req.PaidAmount}
	}
	if req.Status != nil {
		st := core.Status(*req.Status)
		patch.Status = &st
	}

	e, found, err := s.ledger.UpdateEntry(r.Context(), id, patch)
	if err != nil {
		respondWithError(w, statusForDomainError(err), err.Error())
		return
	}
	if !found {
		// Updating a missing entry is a silent no-op.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.invalidateSummaries()
	respondWithJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.ledger.DeleteEntry(r.Context(), id) {
		s.invalidateSummaries()
	}
	// Deleting a missing entry is a no-op, not an error.
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondWithValidationError(err.(validator.ValidationErrors), w)
		return
	}

	e, found, err := s.ledger.RecordPayment(r.Context(), id, core.Money{Cents: req.Amount})
	if err != nil {
		respondWithError(w, statusForDomainError(err), err.Error())
		return
	}
	if !found {
		respondWithError(w, http.StatusNotFound, "Entry not found")
		return
	}

	s.invalidateSummaries()
	respondWithJSON(w, http.StatusOK, e)
}

func (s *Server) handleSettleEntry(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	e, found := s.ledger.SettleEntry(r.Context(), id)
	if !found {
		respondWithError(w, http.StatusNotFound, "Entry not found")
		return
	}

	s.invalidateSummaries()
	respondWithJSON(w, http.StatusOK, e)
}

func (s *Server) handleEntryUPILink(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	e, found := s.ledger.Store().EntryByID(id)
	if !found {
		respondWithError(w, http.StatusNotFound, "Entry not found")
		return
	}
	cat, _ := s.ledger.Store().CategoryByID(e.CategoryID)

	link, err := core.EntryPaymentLink(cat, e)
	if err != nil {
		respondWithError(w, statusForDomainError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"link": link})
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondWithValidationError(err.(validator.ValidationErrors), w)
		return
	}

	removed := s.ledger.DeleteEntries(r.Context(), req.IDs)
	if removed > 0 {
		s.invalidateSummaries()
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func (s *Server) handleBulkPaid(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondWithValidationError(err.(validator.ValidationErrors), w)
		return
	}

	updated := s.ledger.MarkEntriesPaid(r.Context(), req.IDs)
	if updated > 0 {
		s.invalidateSummaries()
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.ledger.Store().Categories())
}

func (s *Server) handleUpsertCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondWithValidationError(err.(validator.ValidationErrors), w)
		return
	}

	cat := core.CategoryInfo{
		ID:                    req.ID,
		Name:                  strings.TrimSpace(req.Name),
		Icon:                  req.Icon,
		Color:                 req.Color,
		VPA:                   req.VPA,
		AutoReminderFrequency: core.ReminderFrequency(req.AutoReminderFrequency),
	}

	saved, err := s.ledger.UpsertCategory(r.Context(), cat)
	if err != nil {
		respondWithError(w, statusForDomainError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	removed, found := s.ledger.DeleteCategory(r.Context(), id)
	if found && removed > 0 {
		s.invalidateSummaries()
	}
	// Missing categories fall through to the same response: the cascade is
	// idempotent.
	respondWithJSON(w, http.StatusOK, map[string]int{"entriesRemoved": removed})
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, found := s.ledger.Store().CategoryByID(id); !found {
		respondWithError(w, http.StatusNotFound, "Category not found")
		return
	}
	stats := core.StatsForCategory(s.ledger.Store().Entries(), id)
	respondWithJSON(w, http.StatusOK, map[string]any{
		"total":    stats.Total,
		"unpaid":   stats.Unpaid,
		"progress": core.SettlementProgress(stats.Unpaid, core.Money{Cents: stats.Total.Cents - stats.Unpaid.Cents}),
	})
}

func (s *Server) handleListBanks(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.ledger.Store().BankAccounts())
}

func (s *Server) handleLinkBank(w http.ResponseWriter, r *http.Request) {
	var req linkBankRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondWithValidationError(err.(validator.ValidationErrors), w)
		return
	}

	account, err := s.ledger.LinkBankAccount(r.Context(), core.Provider(req.Provider))
	if err != nil {
		respondWithError(w, statusForDomainError(err), err.Error())
		return
	}

	s.invalidateSummaries()
	respondWithJSON(w, http.StatusCreated, account)
}

func (s *Server) handleUnlinkBank(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.ledger.UnlinkBankAccount(r.Context(), id) {
		s.invalidateSummaries()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPrefs(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, s.ledger.Store().ViewPrefs())
}

func (s *Server) handleSetPrefs(w http.ResponseWriter, r *http.Request) {
	var prefs core.HistoryViewPrefs
	if err := decodeJSON(r, &prefs); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	s.ledger.SetViewPrefs(r.Context(), prefs)
	respondWithJSON(w, http.StatusOK, prefs)
}

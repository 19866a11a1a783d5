package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"khata/internal/banklink"
	"khata/internal/core"
	"khata/internal/ledger"
	"khata/internal/services"
	"khata/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	docs, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	linker := banklink.NewLinker(banklink.NewSimulatedSource(0))
	svc := services.NewLedgerService(ledger.New(), docs, nil, linker)
	srv := NewServer(":0", svc)
	t.Cleanup(func() {
		svc.Flush()
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func createEntry(t *testing.T, srv *Server, body string) core.Entry {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/api/entries", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create entry status=%d body=%s", rr.Code, rr.Body.String())
	}
	var e core.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	return e
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "")
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCreateAndGetEntry(t *testing.T) {
	srv := newTestServer(t)
	e := createEntry(t, srv, `{"name":"Rent","amount":1500000}`)

	if e.Status != core.StatusUnpaid {
		t.Fatalf("status = %q, want unpaid", e.Status)
	}
	if e.CategoryID == "" {
		t.Fatalf("entry not assigned a default category")
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/entries/"+e.ID, "")
	if rr.Code != 200 {
		t.Fatalf("get entry status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/entries/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing entry status=%d, want 404", rr.Code)
	}
}

func TestCreateEntryValidation(t *testing.T) {
	srv := newTestServer(t)

	// Zero amount never enters the ledger.
	rr := doJSON(t, srv, http.MethodPost, "/api/entries", `{"name":"x","amount":0}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("zero amount status=%d, want 400", rr.Code)
	}

	// Paid above total is rejected with the original untouched.
	rr = doJSON(t, srv, http.MethodPost, "/api/entries", `{"name":"x","amount":100,"paidAmount":200}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("overpaid draft status=%d, want 422", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/entries", "")
	if body := rr.Body.String(); body != "[]" && body != "null" {
		t.Fatalf("rejected drafts leaked into the ledger: %s", body)
	}
}

func TestRecordPaymentAndSettle(t *testing.T) {
	srv := newTestServer(t)
	e := createEntry(t, srv, `{"name":"Loan","amount":10000}`)

	rr := doJSON(t, srv, http.MethodPost, "/api/entries/"+e.ID+"/payments", `{"amount":4000}`)
	if rr.Code != 200 {
		t.Fatalf("payment status=%d body=%s", rr.Code, rr.Body.String())
	}
	var got core.Entry
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if got.Status != core.StatusPartial || got.PaidAmount.Cents != 4000 {
		t.Fatalf("after payment: status=%q paid=%d", got.Status, got.PaidAmount.Cents)
	}

	// Overpayment clamps at the owed amount.
	rr = doJSON(t, srv, http.MethodPost, "/api/entries/"+e.ID+"/payments", `{"amount":99999}`)
	if rr.Code != 200 {
		t.Fatalf("overpayment status=%d", rr.Code)
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if got.Status != core.StatusPaid || got.PaidAmount != got.Amount {
		t.Fatalf("overpayment not clamped: status=%q paid=%d", got.Status, got.PaidAmount.Cents)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/entries/missing/payments", `{"amount":100}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("payment on missing entry status=%d, want 404", rr.Code)
	}

	e2 := createEntry(t, srv, `{"name":"Bill","amount":5000}`)
	rr = doJSON(t, srv, http.MethodPost, "/api/entries/"+e2.ID+"/paid", "")
	if rr.Code != 200 {
		t.Fatalf("settle status=%d", rr.Code)
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if got.Status != core.StatusPaid {
		t.Fatalf("settle: status=%q", got.Status)
	}
}

func TestUpdateMissingEntryIsSilentNoOp(t *testing.T) {
	srv := newTestServer(t)
	rr := doJSON(t, srv, http.MethodPut, "/api/entries/missing", `{"name":"renamed"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("update missing status=%d, want 204", rr.Code)
	}
}

func TestUpdateEntryRejectsInvariantViolation(t *testing.T) {
	srv := newTestServer(t)
	e := createEntry(t, srv, `{"name":"Loan","amount":10000,"paidAmount":5000}`)

	rr := doJSON(t, srv, http.MethodPut, "/api/entries/"+e.ID, `{"paidAmount":20000}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invariant violation status=%d, want 422", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/entries/"+e.ID, "")
	var kept core.Entry
	_ = json.Unmarshal(rr.Body.Bytes(), &kept)
	if kept.PaidAmount.Cents != 5000 {
		t.Fatalf("rejected patch mutated entry: paid=%d", kept.PaidAmount.Cents)
	}
}

func TestDeleteEntryIdempotent(t *testing.T) {
	srv := newTestServer(t)
	e := createEntry(t, srv, `{"name":"x","amount":100}`)

	for i := 0; i < 2; i++ {
		rr := doJSON(t, srv, http.MethodDelete, "/api/entries/"+e.ID, "")
		if rr.Code != http.StatusNoContent {
			t.Fatalf("delete #%d status=%d, want 204", i+1, rr.Code)
		}
	}
}

func TestBulkOperations(t *testing.T) {
	srv := newTestServer(t)
	a := createEntry(t, srv, `{"name":"a","amount":100}`)
	b := createEntry(t, srv, `{"name":"b","amount":200}`)

	rr := doJSON(t, srv, http.MethodPost, "/api/entries/bulk/paid", `{"ids":["`+a.ID+`","`+b.ID+`","missing"]}`)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"updated":2`) {
		t.Fatalf("bulk paid status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/entries/bulk/delete", `{"ids":["`+a.ID+`"]}`)
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"removed":1`) {
		t.Fatalf("bulk delete status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/entries/bulk/delete", `{"ids":[]}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty bulk status=%d, want 400", rr.Code)
	}
}

func TestEntryFiltering(t *testing.T) {
	srv := newTestServer(t)
	createEntry(t, srv, `{"name":"Milk run","amount":4500,"date":"2025-03-05T10:00:00Z"}`)
	createEntry(t, srv, `{"name":"Petrol","amount":90000,"date":"2025-04-01T10:00:00Z"}`)

	rr := doJSON(t, srv, http.MethodGet, "/api/entries?q=milk", "")
	var entries []core.Entry
	_ = json.Unmarshal(rr.Body.Bytes(), &entries)
	if len(entries) != 1 || entries[0].Name != "Milk run" {
		t.Fatalf("search result = %+v", entries)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/entries?month=3&year=2025", "")
	entries = nil
	_ = json.Unmarshal(rr.Body.Bytes(), &entries)
	if len(entries) != 1 {
		t.Fatalf("month filter returned %d entries", len(entries))
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/entries?day=not-a-date", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad day param status=%d, want 400", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/entries?group=day", "")
	var groups []core.DayGroup
	if err := json.Unmarshal(rr.Body.Bytes(), &groups); err != nil {
		t.Fatalf("decode groups: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("grouped into %d days, want 2", len(groups))
	}
}

func TestSummaryReflectsMutations(t *testing.T) {
	srv := newTestServer(t)
	createEntry(t, srv, `{"name":"a","amount":10000,"date":"2025-03-05T10:00:00Z"}`)

	rr := doJSON(t, srv, http.MethodGet, "/api/summary?month=3&year=2025", "")
	var sum core.SummaryData
	_ = json.Unmarshal(rr.Body.Bytes(), &sum)
	if sum.MonthTotal.Cents != 10000 {
		t.Fatalf("monthTotal = %d, want 10000", sum.MonthTotal.Cents)
	}

	// A second write must not be masked by the summary cache.
	createEntry(t, srv, `{"name":"b","amount":5000,"date":"2025-03-06T10:00:00Z"}`)
	rr = doJSON(t, srv, http.MethodGet, "/api/summary?month=3&year=2025", "")
	_ = json.Unmarshal(rr.Body.Bytes(), &sum)
	if sum.MonthTotal.Cents != 15000 {
		t.Fatalf("monthTotal after second write = %d, want 15000", sum.MonthTotal.Cents)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/categories", `{"name":"Subscriptions","icon":"📺","color":"bg-pink-500"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category status=%d body=%s", rr.Code, rr.Body.String())
	}
	var cat core.CategoryInfo
	_ = json.Unmarshal(rr.Body.Bytes(), &cat)
	if cat.ID == "" {
		t.Fatalf("category not assigned an id")
	}

	createEntry(t, srv, `{"name":"Netflix","amount":64900,"categoryId":"`+cat.ID+`"}`)

	rr = doJSON(t, srv, http.MethodDelete, "/api/categories/"+cat.ID, "")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"entriesRemoved":1`) {
		t.Fatalf("cascade delete status=%d body=%s", rr.Code, rr.Body.String())
	}

	// No dangling categoryId survives the cascade.
	rr = doJSON(t, srv, http.MethodGet, "/api/entries", "")
	var entries []core.Entry
	_ = json.Unmarshal(rr.Body.Bytes(), &entries)
	for _, e := range entries {
		if e.CategoryID == cat.ID {
			t.Fatalf("dangling entry after cascade: %+v", e)
		}
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/categories", `{"name":""}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty category name status=%d, want 400", rr.Code)
	}
}

func TestCategoryStats(t *testing.T) {
	srv := newTestServer(t)
	e := createEntry(t, srv, `{"name":"Veggies","amount":10000,"paidAmount":4000}`)

	rr := doJSON(t, srv, http.MethodGet, "/api/categories/"+e.CategoryID+"/stats", "")
	if rr.Code != 200 {
		t.Fatalf("stats status=%d", rr.Code)
	}
	var stats struct {
		Total    core.Money `json:"total"`
		Unpaid   core.Money `json:"unpaid"`
		Progress int        `json:"progress"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &stats)
	if stats.Total.Cents != 10000 || stats.Unpaid.Cents != 6000 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Progress != 40 {
		t.Fatalf("progress = %d, want 40", stats.Progress)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/categories/missing/stats", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing category stats status=%d, want 404", rr.Code)
	}
}

func TestEntryUPILink(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/categories", `{"name":"Grocery Store","vpa":"shop@upi"}`)
	var cat core.CategoryInfo
	_ = json.Unmarshal(rr.Body.Bytes(), &cat)

	e := createEntry(t, srv, `{"name":"Weekly haul","amount":15050,"categoryId":"`+cat.ID+`"}`)

	rr = doJSON(t, srv, http.MethodGet, "/api/entries/"+e.ID+"/upilink", "")
	if rr.Code != 200 {
		t.Fatalf("upilink status=%d body=%s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp["link"], "upi://pay?pa=shop@upi") {
		t.Fatalf("link = %q", resp["link"])
	}

	// Category without a VPA cannot produce a link.
	plain := createEntry(t, srv, `{"name":"Misc","amount":100}`)
	rr = doJSON(t, srv, http.MethodGet, "/api/entries/"+plain.ID+"/upilink", "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("no-vpa upilink status=%d, want 422", rr.Code)
	}
}

func TestBankLinking(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/banks/link", `{"provider":"gpay"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("link status=%d body=%s", rr.Code, rr.Body.String())
	}
	var account core.BankAccount
	_ = json.Unmarshal(rr.Body.Bytes(), &account)
	if account.Name != "GPAY Wallet" || account.Type != core.AccountUPI {
		t.Fatalf("account = %+v", account)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/banks/link", `{"provider":"venmo"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown provider status=%d, want 400", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/banks/"+account.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("unlink status=%d, want 204", rr.Code)
	}
}

func TestViewPrefsRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/prefs", "")
	var prefs core.HistoryViewPrefs
	_ = json.Unmarshal(rr.Body.Bytes(), &prefs)
	if !prefs.ShowIcon || !prefs.ShowCategoryName {
		t.Fatalf("default prefs = %+v", prefs)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/prefs", `{"showIcon":false,"showTime":true,"showStatus":true,"showNote":false,"showCategoryName":true}`)
	if rr.Code != 200 {
		t.Fatalf("set prefs status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/prefs", "")
	_ = json.Unmarshal(rr.Body.Bytes(), &prefs)
	if prefs.ShowIcon || prefs.ShowNote || !prefs.ShowTime {
		t.Fatalf("prefs after update = %+v", prefs)
	}
}

func TestEntryFilteringMinAmountDecimal(t *testing.T) {
	srv := newTestServer(t)
	createEntry(t, srv, `{"name":"Chai","amount":1000}`)
	createEntry(t, srv, `{"name":"Groceries","amount":15050}`)

	// min is typed in major units; both separators are accepted.
	for _, min := range []string{"150", "12,50"} {
		rr := doJSON(t, srv, http.MethodGet, "/api/entries?min="+min, "")
		var entries []core.Entry
		_ = json.Unmarshal(rr.Body.Bytes(), &entries)
		if len(entries) != 1 || entries[0].Name != "Groceries" {
			t.Fatalf("min=%s result = %+v", min, entries)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/entries?min=abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad min param status=%d, want 400", rr.Code)
	}
}

func TestEntryRejectsUnknownCategory(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/entries", `{"name":"Ghost","amount":1000,"categoryId":"no-such-category"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("create status=%d, want 422", rr.Code)
	}

	e := createEntry(t, srv, `{"name":"Rent","amount":1000}`)
	rr = doJSON(t, srv, http.MethodPut, "/api/entries/"+e.ID, `{"categoryId":"no-such-category"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("patch status=%d, want 422", rr.Code)
	}

	got, _ := srv.ledger.Store().EntryByID(e.ID)
	if got.CategoryID != e.CategoryID {
		t.Fatalf("categoryId = %q, original not retained", got.CategoryID)
	}
}

func TestSummaryCacheKeyVariesByDay(t *testing.T) {
	srv := newTestServer(t)
	a := srv.summaryCacheKey(2025, time.March, 15)
	b := srv.summaryCacheKey(2025, time.March, 16)
	if a == b {
		t.Fatalf("keys for different days collide: %q", a)
	}
}

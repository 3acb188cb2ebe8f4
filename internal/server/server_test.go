package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/assetfin/quote-engine/internal/cache"
	"github.com/assetfin/quote-engine/internal/eligibility"
	"github.com/assetfin/quote-engine/internal/quote"
	"github.com/assetfin/quote-engine/internal/ratetable"
	"github.com/assetfin/quote-engine/internal/scheduler"
	"github.com/assetfin/quote-engine/internal/store"
	"github.com/assetfin/quote-engine/pkg/datetime"
)

func testHandler(t *testing.T, leads store.LeadRepository, quoteCache cache.QuoteCache) http.Handler {
	t.Helper()

	table, err := ratetable.New(
		[]ratetable.Entry{
			{TermMonths: 12, RatePercent: 7.49},
			{TermMonths: 36, RatePercent: 6.89},
			{TermMonths: 60, RatePercent: 6.49},
		},
		[]ratetable.Fee{
			{Name: "platform", Description: "Platform fee", AmountCents: 49500, AppliesWhen: ratetable.AppliesAlways},
		},
	)
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}

	gate := eligibility.NewGateWithFixedTime(eligibility.DefaultRules(), datetime.MustParseDate("2026-08-29"), nil)

	return NewHandler(Options{
		Snapshot:      scheduler.NewSnapshot(table),
		Bounds:        quote.DefaultBounds(),
		MarkupPercent: 2.0,
		Gate:          gate,
		Leads:         leads,
		Cache:         quoteCache,
		Version:       "test",
	})
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func validQuotePayload() map[string]interface{} {
	return map[string]interface{}{
		"assetType":      "vehicle",
		"assetCondition": "new",
		"loanAmount":     50000,
		"termMonths":     60,
		"balloonPercent": 0,
	}
}

func TestHandleQuote(t *testing.T) {
	handler := testHandler(t, nil, nil)

	rec := postJSON(t, handler, "/api/quote", validQuotePayload())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp quoteResponse
	decodeResponse(t, rec, &resp)

	if resp.Quote.IndicativeRatePercent != 6.49 {
		t.Errorf("IndicativeRatePercent = %.2f, expected 6.49", resp.Quote.IndicativeRatePercent)
	}
	if resp.Quote.MonthlyRepayment <= 0 {
		t.Errorf("MonthlyRepayment = %.2f, expected positive", resp.Quote.MonthlyRepayment)
	}
	if resp.Cached {
		t.Errorf("Cached = true on first request")
	}
	if resp.LeadID != "" {
		t.Errorf("LeadID = %q without capture, expected empty", resp.LeadID)
	}
}

func TestHandleQuoteInvalidRequest(t *testing.T) {
	handler := testHandler(t, nil, nil)

	payload := validQuotePayload()
	payload["loanAmount"] = 4999

	rec := postJSON(t, handler, "/api/quote", payload)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, expected 400", rec.Code)
	}

	var resp map[string]string
	decodeResponse(t, rec, &resp)
	if resp["field"] != "loanAmount" {
		t.Errorf("field = %q, expected loanAmount", resp["field"])
	}
}

func TestHandleQuoteEmptyTable(t *testing.T) {
	table, err := ratetable.New(nil, nil)
	if err != nil {
		t.Fatalf("failed to build empty table: %v", err)
	}
	handler := NewHandler(Options{
		Snapshot:      scheduler.NewSnapshot(table),
		Bounds:        quote.DefaultBounds(),
		MarkupPercent: 2.0,
		Gate:          eligibility.NewGate(eligibility.DefaultRules(), nil),
	})

	rec := postJSON(t, handler, "/api/quote", validQuotePayload())
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, expected 500 for empty rate table", rec.Code)
	}
}

func TestHandleQuoteUsesCache(t *testing.T) {
	quoteCache := cache.NewMemoryQuoteCache()
	handler := testHandler(t, nil, quoteCache)

	first := postJSON(t, handler, "/api/quote", validQuotePayload())
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", first.Code)
	}
	var firstResp quoteResponse
	decodeResponse(t, first, &firstResp)
	if firstResp.Cached {
		t.Errorf("first response claimed cached")
	}

	second := postJSON(t, handler, "/api/quote", validQuotePayload())
	var secondResp quoteResponse
	decodeResponse(t, second, &secondResp)
	if !secondResp.Cached {
		t.Errorf("second response not served from cache")
	}
	if firstResp.Quote != secondResp.Quote {
		t.Errorf("cached quote differs: %+v != %+v", firstResp.Quote, secondResp.Quote)
	}
}

func TestHandleQuoteCacheInvalidatedByReload(t *testing.T) {
	// A rate table swap must retire every cached quote: the next request is
	// recomputed under the new rates, not served stale.
	oldTable, err := ratetable.New([]ratetable.Entry{{TermMonths: 60, RatePercent: 6.49}}, nil)
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}
	newTable, err := ratetable.New([]ratetable.Entry{{TermMonths: 60, RatePercent: 5.99}}, nil)
	if err != nil {
		t.Fatalf("failed to build table: %v", err)
	}

	snapshot := scheduler.NewSnapshot(oldTable)
	handler := NewHandler(Options{
		Snapshot:      snapshot,
		Bounds:        quote.DefaultBounds(),
		MarkupPercent: 2.0,
		Gate:          eligibility.NewGate(eligibility.DefaultRules(), nil),
		Cache:         cache.NewMemoryQuoteCache(),
	})

	warm := postJSON(t, handler, "/api/quote", validQuotePayload())
	if warm.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", warm.Code)
	}
	var warmResp quoteResponse
	decodeResponse(t, warm, &warmResp)
	if warmResp.Quote.IndicativeRatePercent != 6.49 {
		t.Fatalf("IndicativeRatePercent = %.2f, expected 6.49", warmResp.Quote.IndicativeRatePercent)
	}

	snapshot.Swap(newTable)

	after := postJSON(t, handler, "/api/quote", validQuotePayload())
	var afterResp quoteResponse
	decodeResponse(t, after, &afterResp)
	if afterResp.Cached {
		t.Errorf("quote served from cache after a rate reload")
	}
	if afterResp.Quote.IndicativeRatePercent != 5.99 {
		t.Errorf("IndicativeRatePercent = %.2f after reload, expected 5.99", afterResp.Quote.IndicativeRatePercent)
	}
}

func TestHandleQuoteWithCapture(t *testing.T) {
	leads := store.NewMemoryLeadRepository()
	handler := testHandler(t, leads, nil)

	payload := validQuotePayload()
	payload["capture"] = map[string]string{
		"name":  "Jo Applicant",
		"email": "jo@example.com",
	}

	rec := postJSON(t, handler, "/api/quote", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}

	var resp quoteResponse
	decodeResponse(t, rec, &resp)
	if resp.LeadID == "" {
		t.Errorf("LeadID empty with capture")
	}

	stored, err := leads.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("stored %d leads, expected 1", len(stored))
	}
	if stored[0].Email != "jo@example.com" {
		t.Errorf("stored lead email = %q", stored[0].Email)
	}
	if stored[0].Quote != resp.Quote {
		t.Errorf("stored quote snapshot differs from response")
	}
}

func TestHandleEligibility(t *testing.T) {
	handler := testHandler(t, nil, nil)

	app := map[string]interface{}{
		"business": map[string]interface{}{
			"abn":              "51824753556",
			"registrationDate": time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC),
			"gstRegistered":    true,
		},
		"directors": []map[string]interface{}{
			{"name": "A. Director"},
		},
		"asset": map[string]interface{}{
			"type":      "vehicle",
			"condition": "new",
		},
		"loan": map[string]interface{}{
			"amount":                50000,
			"termMonths":            60,
			"balloonPercent":        30,
			"businessUsePercentage": 100,
		},
	}

	rec := postJSON(t, handler, "/api/eligibility", app)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp eligibilityResponse
	decodeResponse(t, rec, &resp)
	if !resp.Passed {
		t.Errorf("Passed = false; failReasons = %v", resp.FailReasons)
	}
	if !strings.Contains(resp.Explanation, "meets our initial eligibility criteria") {
		t.Errorf("Explanation = %q, expected acceptance sentence", resp.Explanation)
	}

	// Fail one hard rule and expect the numbered explanation.
	app["business"].(map[string]interface{})["gstRegistered"] = false
	rec = postJSON(t, handler, "/api/eligibility", app)
	decodeResponse(t, rec, &resp)
	if resp.Passed {
		t.Errorf("Passed = true without GST registration")
	}
	if !strings.Contains(resp.Explanation, "1. ") {
		t.Errorf("Explanation = %q, expected numbered reasons", resp.Explanation)
	}
}

func TestHandleQuickCheck(t *testing.T) {
	handler := testHandler(t, nil, nil)

	rec := postJSON(t, handler, "/api/quick-check", map[string]interface{}{
		"loanAmount":     500000,
		"termMonths":     84,
		"balloonPercent": 50,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}
	var resp quickCheckResponse
	decodeResponse(t, rec, &resp)
	if !resp.Passed {
		t.Errorf("Passed = false at the upper bounds; issues = %v", resp.Issues)
	}

	rec = postJSON(t, handler, "/api/quick-check", map[string]interface{}{
		"loanAmount":     600000,
		"termMonths":     84,
		"balloonPercent": 50,
	})
	decodeResponse(t, rec, &resp)
	if resp.Passed {
		t.Errorf("Passed = true for an amount above the maximum")
	}
	found := false
	for _, issue := range resp.Issues {
		if strings.Contains(issue, "maximum") {
			found = true
		}
	}
	if !found {
		t.Errorf("issues %v do not name the maximum loan amount", resp.Issues)
	}
}

func TestHandleLeadCreateAndList(t *testing.T) {
	leads := store.NewMemoryLeadRepository()
	handler := testHandler(t, leads, nil)

	payload := map[string]interface{}{
		"name":    "Jo Applicant",
		"email":   "jo@example.com",
		"request": validQuotePayload(),
	}

	rec := postJSON(t, handler, "/api/leads", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, expected 201; body: %s", rec.Code, rec.Body.String())
	}

	var created store.Lead
	decodeResponse(t, rec, &created)
	if created.ID == "" {
		t.Errorf("created lead has no ID")
	}
	if created.Quote.MonthlyRepayment <= 0 {
		t.Errorf("created lead quote not computed")
	}

	listReq := httptest.NewRequest(http.MethodGet, "/api/leads?limit=10", nil)
	listRec := httptest.NewRecorder()
	handler.ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d, expected 200", listRec.Code)
	}
	var listed []store.Lead
	decodeResponse(t, listRec, &listed)
	if len(listed) != 1 {
		t.Errorf("listed %d leads, expected 1", len(listed))
	}
}

func TestHandleLeadCreateRequiresEmail(t *testing.T) {
	handler := testHandler(t, store.NewMemoryLeadRepository(), nil)

	rec := postJSON(t, handler, "/api/leads", map[string]interface{}{
		"name":    "No Email",
		"request": validQuotePayload(),
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400 without email", rec.Code)
	}
}

func TestHandleLeadsUnconfigured(t *testing.T) {
	handler := testHandler(t, nil, nil)

	rec := postJSON(t, handler, "/api/leads", map[string]interface{}{
		"email":   "jo@example.com",
		"request": validQuotePayload(),
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, expected 503 without lead storage", rec.Code)
	}
}

func TestHandleRates(t *testing.T) {
	handler := testHandler(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/rates", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}

	var resp ratesResponse
	decodeResponse(t, rec, &resp)
	if len(resp.Rates) != 3 {
		t.Errorf("returned %d rates, expected 3", len(resp.Rates))
	}
	if len(resp.Fees) != 1 {
		t.Errorf("returned %d fees, expected 1", len(resp.Fees))
	}
}

func TestHandleRatesExport(t *testing.T) {
	handler := testHandler(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/rates/export", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}

	var resp map[string]string
	decodeResponse(t, rec, &resp)
	if !strings.Contains(resp["ratesYaml"], "termMonths: 60") {
		t.Errorf("ratesYaml missing term entries: %q", resp["ratesYaml"])
	}
}

func TestHandleVersion(t *testing.T) {
	handler := testHandler(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rec.Code)
	}

	var resp map[string]string
	decodeResponse(t, rec, &resp)
	if resp["version"] != "test" {
		t.Errorf("version = %q, expected test", resp["version"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := testHandler(t, nil, nil)

	for _, path := range []string{"/api/quote", "/api/eligibility", "/api/quick-check"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s status = %d, expected 405", path, rec.Code)
		}
	}
}

func TestHandleQuoteBadJSON(t *testing.T) {
	handler := testHandler(t, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/quote", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400 for malformed JSON", rec.Code)
	}
}

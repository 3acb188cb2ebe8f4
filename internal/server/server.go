// Package server exposes the quote and eligibility engine over a JSON HTTP
// API and orchestrates the collaborator concerns around it: lead capture,
// quote caching, and rate snapshot access. The engine packages stay pure;
// all sequencing of side effects lives here.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/assetfin/quote-engine/internal/cache"
	"github.com/assetfin/quote-engine/internal/eligibility"
	"github.com/assetfin/quote-engine/internal/quote"
	"github.com/assetfin/quote-engine/internal/ratetable"
	"github.com/assetfin/quote-engine/internal/scheduler"
	"github.com/assetfin/quote-engine/internal/store"
	"github.com/assetfin/quote-engine/pkg/constants"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Options configures the handler.
type Options struct {
	Snapshot      *scheduler.Snapshot
	Bounds        quote.Bounds
	MarkupPercent float64
	Gate          *eligibility.Gate
	Leads         store.LeadRepository
	Cache         cache.QuoteCache
	Logger        *zap.Logger
	MaxBodyBytes  int64
	Version       string
}

type handler struct {
	snapshot      *scheduler.Snapshot
	bounds        quote.Bounds
	markupPercent float64
	gate          *eligibility.Gate
	leads         store.LeadRepository
	cache         cache.QuoteCache
	logger        *zap.Logger
	maxBodyBytes  int64
	version       string
}

// NewHandler constructs the HTTP handler serving the quote API.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = constants.DefaultMaxBodySizeBytes
	}

	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = "dev"
	}

	h := &handler{
		snapshot:      opts.Snapshot,
		bounds:        opts.Bounds,
		markupPercent: opts.MarkupPercent,
		gate:          opts.Gate,
		leads:         opts.Leads,
		cache:         opts.Cache,
		logger:        logger,
		maxBodyBytes:  maxBody,
		version:       version,
	}

	mux := http.NewServeMux()

	// Quote API
	mux.HandleFunc("/api/quote", h.handleQuote)

	// Eligibility API
	mux.HandleFunc("/api/eligibility", h.handleEligibility)
	mux.HandleFunc("/api/quick-check", h.handleQuickCheck)

	// Lead capture
	mux.HandleFunc("/api/leads", h.handleLeads)

	// Rate table snapshot
	mux.HandleFunc("/api/rates", h.handleRates)
	mux.HandleFunc("/api/rates/export", h.handleRatesExport)

	// Version metadata
	mux.HandleFunc("/api/version", h.handleVersion)

	return mux
}

// engine builds a quote engine over the current rate snapshot. The snapshot
// pointer is read once per request so a concurrent reload never produces a
// mixed view.
func (h *handler) engine() *quote.Engine {
	return quote.NewEngine(h.snapshot.Current(), h.bounds, h.markupPercent, h.logger)
}

type quoteRequestPayload struct {
	quote.Request
	Capture *leadContact `json:"capture,omitempty"`
}

type leadContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type quoteResponse struct {
	Quote    quote.Quote `json:"quote"`
	Cached   bool        `json:"cached"`
	LeadID   string      `json:"leadId,omitempty"`
	Duration string      `json:"duration"`
}

func (h *handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()

	var payload quoteRequestPayload
	if !h.decodeBody(w, r, &payload, "server.handleQuote") {
		return
	}

	resp := quoteResponse{}
	generation := h.snapshot.Generation()
	if cached, ok := cache.Lookup(h.cache, generation, payload.Request); ok {
		resp.Quote = cached
		resp.Cached = true
	} else {
		q, err := h.engine().ComputeQuote(payload.Request)
		if err != nil {
			h.respondQuoteError(w, err, "server.handleQuote")
			return
		}
		resp.Quote = q

		if err := cache.Store(h.cache, generation, payload.Request, q); err != nil {
			h.logger.Warn("failed to cache quote",
				zap.String("op", "server.handleQuote"),
				zap.Error(err),
			)
		}
	}

	// Lead capture is sequenced after the computation and is never fatal to
	// the quote itself.
	if payload.Capture != nil && h.leads != nil {
		lead := store.Lead{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			Name:      payload.Capture.Name,
			Email:     payload.Capture.Email,
			Phone:     payload.Capture.Phone,
			Request:   payload.Request,
			Quote:     resp.Quote,
		}
		if err := h.leads.Save(r.Context(), lead); err != nil {
			h.logger.Error("failed to store lead",
				zap.String("op", "server.handleQuote"),
				zap.Error(err),
			)
		} else {
			resp.LeadID = lead.ID
		}
	}

	resp.Duration = time.Since(start).String()
	h.writeJSON(w, http.StatusOK, resp)
}

type eligibilityResponse struct {
	eligibility.Result
	Explanation string `json:"explanation"`
}

func (h *handler) handleEligibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var app eligibility.Application
	if !h.decodeBody(w, r, &app, "server.handleEligibility") {
		return
	}

	result, err := h.gate.Check(&app)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, eligibilityResponse{
		Result:      result,
		Explanation: eligibility.Explain(result),
	})
}

type quickCheckPayload struct {
	LoanAmount     float64 `json:"loanAmount"`
	TermMonths     int     `json:"termMonths"`
	BalloonPercent float64 `json:"balloonPercent"`
}

type quickCheckResponse struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}

func (h *handler) handleQuickCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var payload quickCheckPayload
	if !h.decodeBody(w, r, &payload, "server.handleQuickCheck") {
		return
	}

	passed, issues := h.gate.QuickCheck(payload.LoanAmount, payload.TermMonths, payload.BalloonPercent)
	if issues == nil {
		issues = []string{}
	}
	h.writeJSON(w, http.StatusOK, quickCheckResponse{Passed: passed, Issues: issues})
}

type leadPayload struct {
	leadContact
	Request quote.Request `json:"request"`
}

func (h *handler) handleLeads(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleLeadCreate(w, r)
	case http.MethodGet:
		h.handleLeadList(w, r)
	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *handler) handleLeadCreate(w http.ResponseWriter, r *http.Request) {
	if h.leads == nil {
		h.respondError(w, http.StatusServiceUnavailable, "lead storage is not configured")
		return
	}

	var payload leadPayload
	if !h.decodeBody(w, r, &payload, "server.handleLeadCreate") {
		return
	}
	if payload.Email == "" {
		h.respondError(w, http.StatusBadRequest, "missing contact email")
		return
	}

	q, err := h.engine().ComputeQuote(payload.Request)
	if err != nil {
		h.respondQuoteError(w, err, "server.handleLeadCreate")
		return
	}

	lead := store.Lead{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Name:      payload.Name,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Request:   payload.Request,
		Quote:     q,
	}
	if err := h.leads.Save(r.Context(), lead); err != nil {
		h.logger.Error("failed to store lead",
			zap.String("op", "server.handleLeadCreate"),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to store lead")
		return
	}

	h.writeJSON(w, http.StatusCreated, lead)
}

func (h *handler) handleLeadList(w http.ResponseWriter, r *http.Request) {
	if h.leads == nil {
		h.respondError(w, http.StatusServiceUnavailable, "lead storage is not configured")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	leads, err := h.leads.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list leads",
			zap.String("op", "server.handleLeadList"),
			zap.Error(err),
		)
		h.respondError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	if leads == nil {
		leads = []store.Lead{}
	}
	h.writeJSON(w, http.StatusOK, leads)
}

type ratesResponse struct {
	Rates []ratetable.Entry `json:"rates"`
	Fees  []ratetable.Fee   `json:"fees"`
}

func (h *handler) handleRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	table := h.snapshot.Current()
	h.writeJSON(w, http.StatusOK, ratesResponse{
		Rates: table.Entries(),
		Fees:  table.Fees(),
	})
}

func (h *handler) handleRatesExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	table := h.snapshot.Current()
	export := map[string]interface{}{
		"rates": table.Entries(),
		"fees":  table.Fees(),
	}

	yamlBytes, err := yaml.Marshal(export)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to encode rates: %v", err))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"ratesYaml": string(yamlBytes),
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// decodeBody decodes a JSON request body, writing the error response itself
// when decoding fails.
func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}, op string) bool {
	if h.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxBodyBytes))
			return false
		}
		h.logger.Debug("failed to decode request body",
			zap.String("op", op),
			zap.Error(err),
		)
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err))
		return false
	}
	return true
}

// respondQuoteError maps engine errors onto HTTP statuses: invalid input is
// the caller's problem, a missing rate table is ours.
func (h *handler) respondQuoteError(w http.ResponseWriter, err error, op string) {
	var invalid *quote.InvalidRequestError
	if errors.As(err, &invalid) {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": invalid.Error(),
			"field": invalid.Field,
		})
		return
	}

	h.logger.Error("quote computation failed",
		zap.String("op", op),
		zap.Error(err),
	)
	h.respondError(w, http.StatusInternalServerError, "quote engine is misconfigured")
}

func (h *handler) respondError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response",
			zap.String("op", "server.writeJSON"),
			zap.Error(err),
		)
	}
}

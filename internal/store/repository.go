// Package store persists captured leads. The engine itself owns no storage;
// this package belongs to the calling shell, which sequences lead capture
// after quote computation.
package store

import (
	"context"
	"time"

	"github.com/assetfin/quote-engine/internal/quote"
)

// Lead is one captured lead: contact details plus the request and the quote
// computed for it at capture time.
type Lead struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"createdAt"`
	Name      string        `json:"name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone,omitempty"`
	Request   quote.Request `json:"request"`
	Quote     quote.Quote   `json:"quote"`
}

// LeadRepository stores and lists captured leads.
type LeadRepository interface {
	Save(ctx context.Context, lead Lead) error
	List(ctx context.Context, limit int) ([]Lead, error)
	Close() error
}

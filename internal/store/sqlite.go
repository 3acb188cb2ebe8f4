package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/assetfin/quote-engine/internal/quote"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLeadRepository persists leads to a SQLite database.
type SQLiteLeadRepository struct {
	db *sql.DB
}

// NewSQLiteLeadRepository opens (or creates) the SQLite database and runs
// migrations.
func NewSQLiteLeadRepository(dbPath string) (*SQLiteLeadRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboard reads do not block lead writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteLeadRepository{db: db}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return r, nil
}

func (r *SQLiteLeadRepository) migrate() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS leads (
		id              TEXT PRIMARY KEY,
		created_at      INTEGER NOT NULL,
		name            TEXT NOT NULL,
		email           TEXT NOT NULL,
		phone           TEXT,
		asset_type      TEXT NOT NULL,
		asset_condition TEXT NOT NULL,
		loan_amount     REAL NOT NULL,
		term_months     INTEGER NOT NULL,
		balloon_percent REAL NOT NULL,
		private_sale    INTEGER NOT NULL,
		quote_json      TEXT NOT NULL
	)`)
	return err
}

// Save stores the lead.
func (r *SQLiteLeadRepository) Save(ctx context.Context, lead Lead) error {
	quoteJSON, err := json.Marshal(lead.Quote)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO leads (id, created_at, name, email, phone, asset_type, asset_condition,
			loan_amount, term_months, balloon_percent, private_sale, quote_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.CreatedAt.Unix(), lead.Name, lead.Email, lead.Phone,
		string(lead.Request.AssetType), string(lead.Request.AssetCondition),
		lead.Request.LoanAmount, lead.Request.TermMonths, lead.Request.BalloonPercent,
		boolToInt(lead.Request.PrivateSale), string(quoteJSON))
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// List returns the most recently captured leads, newest first.
func (r *SQLiteLeadRepository) List(ctx context.Context, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, name, email, phone, asset_type, asset_condition,
			loan_amount, term_months, balloon_percent, private_sale, quote_json
		 FROM leads ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var leads []Lead
	for rows.Next() {
		var (
			lead        Lead
			createdAt   int64
			privateSale int
			quoteJSON   string
		)
		err := rows.Scan(&lead.ID, &createdAt, &lead.Name, &lead.Email, &lead.Phone,
			&lead.Request.AssetType, &lead.Request.AssetCondition,
			&lead.Request.LoanAmount, &lead.Request.TermMonths, &lead.Request.BalloonPercent,
			&privateSale, &quoteJSON)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		lead.CreatedAt = time.Unix(createdAt, 0).UTC()
		lead.Request.PrivateSale = privateSale != 0
		var q quote.Quote
		if err := json.Unmarshal([]byte(quoteJSON), &q); err != nil {
			return nil, fmt.Errorf("unmarshal quote for lead %s: %w", lead.ID, err)
		}
		lead.Quote = q
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// Close closes the underlying database.
func (r *SQLiteLeadRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

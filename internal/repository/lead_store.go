package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sales-assistant/internal/domain"
)

// ErrLeadNotFound is returned when a lead id does not exist.
var ErrLeadNotFound = errors.New("repository: lead not found")

const defaultLeadListLimit = 50

// pgxQuerier is satisfied by *pgxpool.Pool and pgxmock pools.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LeadStore persists captured leads in the email_leads table. It is also a
// lead sink, so every captured lead is stored alongside the other deliveries.
type LeadStore struct {
	db  pgxQuerier
	now func() time.Time
}

func NewLeadStore(db pgxQuerier) (*LeadStore, error) {
	if db == nil {
		return nil, errors.New("repository: db must not be nil")
	}
	return &LeadStore{db: db, now: time.Now}, nil
}

func (s *LeadStore) Name() string { return "lead-store" }

const upsertLeadSQL = `
INSERT INTO email_leads (id, email, phone, source, context, session_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 'new', $7, $7)
ON CONFLICT (email) DO UPDATE SET
	phone = COALESCE(EXCLUDED.phone, email_leads.phone),
	context = EXCLUDED.context,
	session_id = EXCLUDED.session_id,
	updated_at = EXCLUDED.updated_at
RETURNING id`

// Deliver upserts the lead on email. Phone-only leads always insert.
func (s *LeadStore) Deliver(ctx context.Context, lead domain.LeadData) (string, error) {
	at := lead.Timestamp
	if at.IsZero() {
		at = s.now()
	}
	var id string
	err := s.db.QueryRow(ctx, upsertLeadSQL,
		lead.ID, nullable(lead.Email), nullable(lead.Phone), lead.Source, lead.Context, nullable(lead.SessionID), at.UTC(),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("repository: upsert lead: %w", err)
	}
	return "stored " + id, nil
}

const listLeadsSQL = `
SELECT id, COALESCE(email, ''), COALESCE(phone, ''), source, context, COALESCE(session_id, ''), status, created_at, updated_at
FROM email_leads
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC
LIMIT $2`

// List returns the newest leads, optionally filtered by status.
func (s *LeadStore) List(ctx context.Context, status domain.LeadStatus, limit int) ([]domain.LeadRecord, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("repository: invalid lead status %q", status)
	}
	if limit <= 0 || limit > 500 {
		limit = defaultLeadListLimit
	}
	rows, err := s.db.Query(ctx, listLeadsSQL, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("repository: list leads: %w", err)
	}
	defer rows.Close()

	var out []domain.LeadRecord
	for rows.Next() {
		var (
			r         domain.LeadRecord
			rowStatus string
		)
		if err := rows.Scan(&r.ID, &r.Email, &r.Phone, &r.Source, &r.Context, &r.SessionID, &rowStatus, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("repository: scan lead: %w", err)
		}
		r.Status = domain.LeadStatus(rowStatus)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: list leads: %w", err)
	}
	return out, nil
}

const updateLeadStatusSQL = `UPDATE email_leads SET status = $2, updated_at = $3 WHERE id = $1`

// UpdateStatus moves a lead to status.
func (s *LeadStore) UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error {
	if !status.Valid() {
		return fmt.Errorf("repository: invalid lead status %q", status)
	}
	tag, err := s.db.Exec(ctx, updateLeadStatusSQL, id, string(status), s.now().UTC())
	if err != nil {
		return fmt.Errorf("repository: update lead status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func nullable(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

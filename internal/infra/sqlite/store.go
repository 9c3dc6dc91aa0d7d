// Package sqlite is the local persistence layer for bills, budgets and
// users, backed by an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"
	tsLayout   = time.RFC3339
)

// Store implements port.BillStore over SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	// dataVersion advances on every bill/budget mutation and drives
	// report cache invalidation. Session-scoped, not persisted.
	dataVersion atomic.Int64
}

// New opens (or creates) the database at dbPath and runs migrations.
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.dataVersion.Store(1)
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DataVersion returns the current data epoch.
func (s *Store) DataVersion() int64 {
	return s.dataVersion.Load()
}

func (s *Store) bumpVersion() {
	s.dataVersion.Add(1)
}

// Ping verifies database connectivity; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ============================================================
// Bills
// ============================================================

const billColumns = "id, user_id, amount, category, date, merchant, account, notes, family_scope, is_deleted, created_at, updated_at"

// ListBills returns non-deleted bills in the inclusive date range,
// widened to family-shared bills for the family scope.
func (s *Store) ListBills(ctx context.Context, userID string, scope domain.ViewScope, from, to time.Time) ([]domain.Bill, error) {
	var (
		query string
		args  []any
	)
	if scope == domain.ScopeFamily {
		query = `SELECT ` + billColumns + ` FROM bills
			WHERE is_deleted = 0 AND date >= ? AND date <= ?
			  AND (user_id = ? OR (family_scope = 1 AND user_id IN (
				SELECT id FROM users WHERE family_id != '' AND family_id =
					(SELECT family_id FROM users WHERE id = ?))))
			ORDER BY date`
		args = []any{from.Format(dateLayout), to.Format(dateLayout), userID, userID}
	} else {
		query = `SELECT ` + billColumns + ` FROM bills
			WHERE user_id = ? AND is_deleted = 0 AND date >= ? AND date <= ?
			ORDER BY date`
		args = []any{userID, from.Format(dateLayout), to.Format(dateLayout)}
	}
	return s.queryBills(ctx, query, args...)
}

// ListAllBills returns every record of the user, tombstones included.
func (s *Store) ListAllBills(ctx context.Context, userID string) ([]domain.Bill, error) {
	return s.queryBills(ctx,
		`SELECT `+billColumns+` FROM bills WHERE user_id = ? ORDER BY date`, userID)
}

// ListBillsSince returns records changed after the watermark, tombstones
// included. A nil watermark means full sync.
func (s *Store) ListBillsSince(ctx context.Context, userID string, since *time.Time) ([]domain.Bill, error) {
	if since == nil {
		return s.ListAllBills(ctx, userID)
	}
	return s.queryBills(ctx,
		`SELECT `+billColumns+` FROM bills WHERE user_id = ? AND updated_at > ? ORDER BY updated_at`,
		userID, since.UTC().Format(tsLayout))
}

// GetBill fetches one bill by id, scoped to the user. Returns nil when
// absent.
func (s *Store) GetBill(ctx context.Context, userID, billID string) (*domain.Bill, error) {
	bills, err := s.queryBills(ctx,
		`SELECT `+billColumns+` FROM bills WHERE id = ? AND user_id = ?`, billID, userID)
	if err != nil {
		return nil, err
	}
	if len(bills) == 0 {
		return nil, nil
	}
	return &bills[0], nil
}

// UpsertBill inserts or fully overwrites a bill row, keyed by id.
func (s *Store) UpsertBill(ctx context.Context, b *domain.Bill) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bills (`+billColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			amount = excluded.amount,
			category = excluded.category,
			date = excluded.date,
			merchant = excluded.merchant,
			account = excluded.account,
			notes = excluded.notes,
			family_scope = excluded.family_scope,
			is_deleted = excluded.is_deleted,
			updated_at = excluded.updated_at`,
		b.ID, b.UserID, b.Amount, b.Category, b.Date.Format(dateLayout),
		b.Merchant, b.Account, b.Notes, boolToInt(b.FamilyScope), boolToInt(b.IsDeleted),
		b.CreatedAt.UTC().Format(tsLayout), b.UpdatedAt.UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert bill: %w", err)
	}
	s.bumpVersion()
	return nil
}

// TombstoneBill soft-deletes a bill: the row stays, is_deleted flips and
// updated_at bumps so other devices observe the deletion.
func (s *Store) TombstoneBill(ctx context.Context, userID, billID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bills SET is_deleted = 1, updated_at = ? WHERE id = ? AND user_id = ?`,
		at.UTC().Format(tsLayout), billID, userID)
	if err != nil {
		return fmt.Errorf("tombstone bill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: "bill", ID: billID}
	}
	s.bumpVersion()
	return nil
}

// ReplaceBills swaps the user's full bill set for the reconciled one,
// in a single transaction.
func (s *Store) ReplaceBills(ctx context.Context, userID string, bills []domain.Bill) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bills WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear bills: %w", err)
	}
	for _, b := range bills {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bills (`+billColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, userID, b.Amount, b.Category, b.Date.Format(dateLayout),
			b.Merchant, b.Account, b.Notes, boolToInt(b.FamilyScope), boolToInt(b.IsDeleted),
			b.CreatedAt.UTC().Format(tsLayout), b.UpdatedAt.UTC().Format(tsLayout),
		); err != nil {
			return fmt.Errorf("insert bill %s: %w", b.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	s.bumpVersion()
	return nil
}

func (s *Store) queryBills(ctx context.Context, query string, args ...any) ([]domain.Bill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0)
	for rows.Next() {
		var (
			b                          domain.Bill
			date, createdAt, updatedAt string
			familyScope, isDeleted     int
		)
		if err := rows.Scan(&b.ID, &b.UserID, &b.Amount, &b.Category, &date,
			&b.Merchant, &b.Account, &b.Notes, &familyScope, &isDeleted,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		b.Date, _ = time.Parse(dateLayout, date)
		b.CreatedAt, _ = time.Parse(tsLayout, createdAt)
		b.UpdatedAt, _ = time.Parse(tsLayout, updatedAt)
		b.FamilyScope = familyScope == 1
		b.IsDeleted = isDeleted == 1
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// ============================================================
// Budgets
// ============================================================

// GetBudget returns the user's budget for one period granularity, or
// nil when none is configured.
func (s *Store) GetBudget(ctx context.Context, userID string, period domain.PeriodType) (*domain.PeriodBudget, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT period, amount, filter_mode, categories FROM budgets WHERE user_id = ? AND period = ?`,
		userID, string(period))

	var (
		b          domain.PeriodBudget
		amount     sql.NullFloat64
		categories string
	)
	err := row.Scan(&b.Period, &amount, &b.FilterMode, &categories)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	if amount.Valid {
		b.Amount = &amount.Float64
	}
	if err := json.Unmarshal([]byte(categories), &b.Categories); err != nil {
		return nil, fmt.Errorf("decode budget categories: %w", err)
	}
	return &b, nil
}

// SetBudget upserts the budget for one period granularity.
func (s *Store) SetBudget(ctx context.Context, userID string, budget *domain.PeriodBudget) error {
	categories, err := json.Marshal(budget.Categories)
	if err != nil {
		return fmt.Errorf("encode budget categories: %w", err)
	}
	var amount any
	if budget.Amount != nil {
		amount = *budget.Amount
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, period, amount, filter_mode, categories)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, period) DO UPDATE SET
			amount = excluded.amount,
			filter_mode = excluded.filter_mode,
			categories = excluded.categories`,
		userID, string(budget.Period), amount, string(budget.FilterMode), string(categories))
	if err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	s.bumpVersion()
	return nil
}

// ============================================================
// Users
// ============================================================

// GetCashBalance returns the user's cash reserve.
func (s *Store) GetCashBalance(ctx context.Context, userID string) (float64, error) {
	var balance float64
	err := s.db.QueryRowContext(ctx,
		`SELECT cash_balance FROM users WHERE id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cash balance: %w", err)
	}
	return balance, nil
}

// SetCashBalance updates the user's cash reserve.
func (s *Store) SetCashBalance(ctx context.Context, userID string, balance float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET cash_balance = ? WHERE id = ?`, balance, userID)
	if err != nil {
		return fmt.Errorf("set cash balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "user", ID: userID}
	}
	s.bumpVersion()
	return nil
}

// CreateUser inserts a user row. Used by seeding tools; the service has
// no self-registration surface.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, family_id, password_hash, cash_balance, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		u.ID, u.Email, u.DisplayName, u.FamilyID, u.PasswordHash, createdAt.Format(tsLayout))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail returns nil when no user matches.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, family_id, password_hash, created_at FROM users WHERE email = ?`, email))
}

// GetUser returns nil when no user matches.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, family_id, password_hash, created_at FROM users WHERE id = ?`, userID))
}

func (s *Store) scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.FamilyID, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(tsLayout, createdAt)
	return &u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

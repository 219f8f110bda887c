package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Every method is one short-lived unit of work; none holds a connection or
// transaction past its return.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetUser retrieves a user by Telegram id. Returns nil, nil if not found.
	GetUser(ctx context.Context, telegramID int64) (*User, error)

	// GetOrCreateUser returns the user with telegramID, refreshing its display
	// fields when they changed, or creates it with subscription_status = false.
	// The boolean reports whether the user was created.
	GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName string) (*User, bool, error)

	// SetSubscriptionStatus updates the informational subscription flag.
	SetSubscriptionStatus(ctx context.Context, telegramID int64, subscribed bool) error

	// CountUsers returns the number of known users.
	CountUsers(ctx context.Context) (int, error)

	// ListUserIDs returns the Telegram ids of all users in registration order.
	ListUserIDs(ctx context.Context) ([]int64, error)

	// GetSparringProfile retrieves the sparring profile of a user. Returns nil, nil if not found.
	GetSparringProfile(ctx context.Context, telegramID int64) (*SparringProfile, error)

	// CountSparringProfiles returns total and active sparring profiles.
	CountSparringProfiles(ctx context.Context) (ProfileCounts, error)

	// CountRateLimitEntries counts admissions of telegramID at or after since.
	CountRateLimitEntries(ctx context.Context, telegramID int64, since time.Time) (int, error)

	// InsertRateLimitEntry appends one admission of telegramID at the given time.
	InsertRateLimitEntry(ctx context.Context, telegramID int64, at time.Time) error

	// DeleteRateLimitEntriesBefore removes admissions older than cutoff.
	DeleteRateLimitEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, telegram_id, username, first_name, created_at, subscription_status`

// GetUser retrieves a user by Telegram id. Returns nil, nil if not found.
func (s *sqlxStore) GetUser(ctx context.Context, telegramID int64) (*User, error) {
	if telegramID == 0 {
		return nil, fmt.Errorf("telegram_id cannot be zero")
	}

	var user User
	query := s.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`)
	err := s.db.GetContext(ctx, &user, query, telegramID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No user found", "telegram_id", telegramID)
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching user",
			"telegram_id", telegramID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user", "telegram_id", telegramID, "error", err)
		return nil, fmt.Errorf("failed to get user %d: %w", telegramID, err)
	}

	return &user, nil
}

// GetOrCreateUser runs lookup, update and insert in a single transaction.
// A concurrent insert of the same id is absorbed by ON CONFLICT DO NOTHING and
// the row is read back.
func (s *sqlxStore) GetOrCreateUser(ctx context.Context, telegramID int64, username, firstName string) (*User, bool, error) {
	if telegramID == 0 {
		return nil, false, fmt.Errorf("telegram_id cannot be zero")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for get-or-create user",
			"telegram_id", telegramID, "error", err)
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	selectQuery := tx.Rebind(`SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`)
	wantUsername, wantFirstName := nullString(username), nullString(firstName)

	var (
		user    User
		created bool
	)
	err = tx.GetContext(ctx, &user, selectQuery, telegramID)
	switch {
	case err == nil:
		if user.Username != wantUsername || user.FirstName != wantFirstName {
			_, err = tx.ExecContext(ctx,
				tx.Rebind(`UPDATE users SET username = ?, first_name = ? WHERE telegram_id = ?`),
				wantUsername, wantFirstName, telegramID)
			if err != nil {
				s.logger.ErrorContext(ctx, "Error updating user display fields", "telegram_id", telegramID, "error", err)
				return nil, false, fmt.Errorf("failed to update user %d: %w", telegramID, err)
			}
			user.Username, user.FirstName = wantUsername, wantFirstName
		}

	case errors.Is(err, sql.ErrNoRows):
		result, insErr := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO users (telegram_id, username, first_name, created_at, subscription_status)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (telegram_id) DO NOTHING`),
			telegramID, wantUsername, wantFirstName, time.Now().UTC(), false)
		if insErr != nil {
			s.logger.ErrorContext(ctx, "Error inserting user", "telegram_id", telegramID, "error", insErr)
			return nil, false, fmt.Errorf("failed to create user %d: %w", telegramID, insErr)
		}
		if affected, affErr := result.RowsAffected(); affErr == nil && affected == 1 {
			created = true
		}
		if err = tx.GetContext(ctx, &user, selectQuery, telegramID); err != nil {
			return nil, false, fmt.Errorf("failed to read back user %d: %w", telegramID, err)
		}

	default:
		s.logger.ErrorContext(ctx, "Error looking up user", "telegram_id", telegramID, "error", err)
		return nil, false, fmt.Errorf("failed to look up user %d: %w", telegramID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "telegram_id", telegramID, "error", err)
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	operation := "found"
	if created {
		operation = "created"
	}
	s.logger.DebugContext(ctx, "User resolved", "operation", operation, "telegram_id", telegramID)
	return &user, created, nil
}

// SetSubscriptionStatus updates the informational subscription flag.
func (s *sqlxStore) SetSubscriptionStatus(ctx context.Context, telegramID int64, subscribed bool) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE users SET subscription_status = ? WHERE telegram_id = ?`),
		subscribed, telegramID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating subscription status", "telegram_id", telegramID, "error", err)
		return fmt.Errorf("failed to update subscription status for %d: %w", telegramID, err)
	}
	return nil
}

// CountUsers returns the number of known users.
func (s *sqlxStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		s.logger.ErrorContext(ctx, "Error counting users", "error", err)
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// ListUserIDs returns the Telegram ids of all users in registration order.
func (s *sqlxStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT telegram_id FROM users ORDER BY id`); err != nil {
		s.logger.ErrorContext(ctx, "Error listing user ids", "error", err)
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	return ids, nil
}

// GetSparringProfile retrieves the sparring profile of a user. Returns nil, nil if not found.
func (s *sqlxStore) GetSparringProfile(ctx context.Context, telegramID int64) (*SparringProfile, error) {
	var profile SparringProfile
	query := s.db.Rebind(`
		SELECT id, telegram_user_id, style, hand, city, weight_kg, experience_years, is_active, created_at, updated_at
		FROM sparring_profiles WHERE telegram_user_id = ?`)

	err := s.db.GetContext(ctx, &profile, query, strconv.FormatInt(telegramID, 10))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting sparring profile", "telegram_id", telegramID, "error", err)
		return nil, fmt.Errorf("failed to get sparring profile for %d: %w", telegramID, err)
	}
	return &profile, nil
}

// CountSparringProfiles returns total and active sparring profiles.
func (s *sqlxStore) CountSparringProfiles(ctx context.Context) (ProfileCounts, error) {
	var counts ProfileCounts
	err := s.db.GetContext(ctx, &counts, `
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN is_active THEN 1 ELSE 0 END), 0) AS active
		FROM sparring_profiles`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error counting sparring profiles", "error", err)
		return ProfileCounts{}, fmt.Errorf("failed to count sparring profiles: %w", err)
	}
	return counts, nil
}

// CountRateLimitEntries counts admissions of telegramID at or after since.
func (s *sqlxStore) CountRateLimitEntries(ctx context.Context, telegramID int64, since time.Time) (int, error) {
	var count int
	query := s.db.Rebind(`SELECT COUNT(*) FROM rate_limit_entries WHERE telegram_id = ? AND created_at >= ?`)
	if err := s.db.GetContext(ctx, &count, query, telegramID, since.UnixMilli()); err != nil {
		return 0, fmt.Errorf("failed to count rate limit entries for %d: %w", telegramID, err)
	}
	return count, nil
}

// InsertRateLimitEntry appends one admission of telegramID at the given time.
func (s *sqlxStore) InsertRateLimitEntry(ctx context.Context, telegramID int64, at time.Time) error {
	entry := RateLimitEntry{TelegramID: telegramID, CreatedAtMillis: at.UnixMilli()}
	query := `INSERT INTO rate_limit_entries (telegram_id, created_at) VALUES (:telegram_id, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to insert rate limit entry for %d: %w", telegramID, err)
	}
	return nil
}

// DeleteRateLimitEntriesBefore removes admissions older than cutoff.
func (s *sqlxStore) DeleteRateLimitEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		s.db.Rebind(`DELETE FROM rate_limit_entries WHERE created_at < ?`), cutoff.UnixMilli())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error pruning rate limit entries", "error", err)
		return 0, fmt.Errorf("failed to prune rate limit entries: %w", err)
	}

	count, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Pruned rate limit entries", "count", count, "cutoff", cutoff)
	return count, nil
}

// RunSQLMaintenance reclaims space: VACUUM on SQLite, VACUUM ANALYZE on Postgres.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	statement := "VACUUM;"
	if s.db.DriverName() == DriverPostgres {
		statement = "VACUUM ANALYZE;"
	}

	s.logger.InfoContext(ctx, "Starting database maintenance", "statement", statement)
	_, err := s.db.ExecContext(ctx, statement)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}

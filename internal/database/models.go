package database

import (
	"database/sql"
	"time"
)

// User is a bot user keyed by the immutable Telegram id.
// Display fields are optional and refreshed on contact.
type User struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`

	TelegramID         int64          `db:"telegram_id"`
	Username           sql.NullString `db:"username"`
	FirstName          sql.NullString `db:"first_name"`
	SubscriptionStatus bool           `db:"subscription_status"`
}

// RateLimitEntry is one admitted request of the persistent rate limiter.
type RateLimitEntry struct {
	ID         int64 `db:"id"`
	TelegramID int64 `db:"telegram_id"`
	// CreatedAtMillis is the admission time in unix milliseconds.
	CreatedAtMillis int64 `db:"created_at"`
}

// CreatedAt returns the admission time.
func (e RateLimitEntry) CreatedAt() time.Time {
	return time.UnixMilli(e.CreatedAtMillis)
}

// SparringProfile is the companion profile maintained by the mini-app.
// TelegramUserID is stored as text by the mini-app.
type SparringProfile struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	TelegramUserID  string          `db:"telegram_user_id"`
	Style           string          `db:"style"`
	Hand            sql.NullString  `db:"hand"`
	City            sql.NullString  `db:"city"`
	WeightKg        sql.NullFloat64 `db:"weight_kg"`
	ExperienceYears sql.NullFloat64 `db:"experience_years"`
	IsActive        bool            `db:"is_active"`
}

// ProfileCounts aggregates sparring profiles for the admin panel.
type ProfileCounts struct {
	Total  int `db:"total"`
	Active int `db:"active"`
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

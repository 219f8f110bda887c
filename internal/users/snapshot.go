package users

import (
	"strconv"
	"strings"
	"time"

	"github.com/armtemiy/armlab-bot/internal/database"
)

// Snapshot is a read-only view of a user assembled from the directory.
// Snapshots returned by the cache are shared; callers must not modify them.
type Snapshot struct {
	TelegramID         int64
	Username           string
	FirstName          string
	CreatedAt          time.Time
	SubscriptionStatus bool
	Sparring           *SparringStats
}

// SparringStats is the display form of an active sparring profile.
type SparringStats struct {
	Style           string
	StyleLabel      string
	WeightKg        *float64
	ExperienceYears *float64
}

var styleLabels = map[string]string{
	"outside": "Аутсайд",
	"inside":  "Инсайд",
	"both":    "Универсал",
}

// StyleLabel maps a style code to its label; unknown codes pass through.
func StyleLabel(code string) string {
	if label, ok := styleLabels[code]; ok {
		return label
	}
	return code
}

// NewSparringStats returns nil for a missing or inactive profile.
func NewSparringStats(p *database.SparringProfile) *SparringStats {
	if p == nil || !p.IsActive {
		return nil
	}
	stats := &SparringStats{
		Style:      p.Style,
		StyleLabel: StyleLabel(p.Style),
	}
	if p.WeightKg.Valid {
		w := p.WeightKg.Float64
		stats.WeightKg = &w
	}
	if p.ExperienceYears.Valid {
		y := p.ExperienceYears.Float64
		stats.ExperienceYears = &y
	}
	return stats
}

// String renders "Универсал, 70кг, стаж 3.5г". Missing numbers are omitted.
func (s *SparringStats) String() string {
	if s == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if s.StyleLabel != "" {
		parts = append(parts, s.StyleLabel)
	}
	if s.WeightKg != nil {
		parts = append(parts, formatNumber(*s.WeightKg)+"кг")
	}
	if s.ExperienceYears != nil {
		parts = append(parts, "стаж "+formatNumber(*s.ExperienceYears)+"г")
	}
	return strings.Join(parts, ", ")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func newSnapshot(user *database.User, profile *database.SparringProfile) *Snapshot {
	return &Snapshot{
		TelegramID:         user.TelegramID,
		Username:           user.Username.String,
		FirstName:          user.FirstName.String,
		CreatedAt:          user.CreatedAt,
		SubscriptionStatus: user.SubscriptionStatus,
		Sparring:           NewSparringStats(profile),
	}
}

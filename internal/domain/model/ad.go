package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"telegram-classifieds-bot/internal/domain"
)

type AdStatus string

const (
	AdStatusPending  AdStatus = "pending"
	AdStatusActive   AdStatus = "active"
	AdStatusInactive AdStatus = "inactive"
	AdStatusArchived AdStatus = "archived"
	AdStatusDeleted  AdStatus = "deleted"
)

// NotificationKey identifies one slot of the expiry-notification schedule.
// The set is closed: sweeps only ever query these three keys.
type NotificationKey string

const (
	NotifyDay3  NotificationKey = "day_3"
	NotifyDay1  NotificationKey = "day_1"
	NotifyHour1 NotificationKey = "hour_1"
)

// NotificationKeyForDays maps a sweep window to its flag key.
func NotificationKeyForDays(daysBefore int) NotificationKey {
	if daysBefore >= 3 {
		return NotifyDay3
	}
	return NotifyDay1
}

// Ad is a single listing with its own lifecycle and channel presence.
// ChannelMessageIDs maps a channel id to the message ids of the published
// copies (media groups produce several messages per channel).
type Ad struct {
	ID          uuid.UUID
	OwnerID     int64
	Region      string
	City        string
	Category    string
	Title       string
	Description string
	Price       *decimal.Decimal
	Status      AdStatus

	ChannelMessageIDs map[string][]int
	PublishedAt       *time.Time
	ExpiresAt         *time.Time

	// Recurring boost state.
	BoostService   string
	BoostRemaining int
	NextBoostAt    *time.Time

	NotificationsSent map[NotificationKey]bool

	RepublishCount    int
	LastExtendedAt    *time.Time
	LastRepublishedAt *time.Time
	ArchivedAt        *time.Time
	DeletedAt         *time.Time

	// Paid feature flags, explicit instead of a free-form attribute map.
	PinnedUntil    *time.Time
	InStoriesUntil *time.Time
	UrgentUntil    *time.Time
	CallButton     bool
	VideoAllowed   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewAd(ownerID int64, region, category, title, description string) (*Ad, error) {
	if ownerID <= 0 || region == "" || category == "" || title == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Ad{
		ID:                uuid.New(),
		OwnerID:           ownerID,
		Region:            region,
		Category:          category,
		Title:             title,
		Description:       description,
		Status:            AdStatusPending,
		ChannelMessageIDs: map[string][]int{},
		NotificationsSent: map[NotificationKey]bool{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// ClearNotifications resets the schedule so a new publication period gets its
// own warnings.
func (a *Ad) ClearNotifications() {
	a.NotificationsSent = map[NotificationKey]bool{}
}

func (a *Ad) NotificationSent(key NotificationKey) bool {
	if a.NotificationsSent == nil {
		return false
	}
	return a.NotificationsSent[key]
}

func (a *Ad) MarkNotificationSent(key NotificationKey) {
	if a.NotificationsSent == nil {
		a.NotificationsSent = map[NotificationKey]bool{}
	}
	a.NotificationsSent[key] = true
}

// Republishable reports whether the ad may be re-published from its current
// state. Deleted ads remain republishable: hard deletion clears channel
// presence but the row survives until external cleanup.
func (a *Ad) Republishable() bool {
	switch a.Status {
	case AdStatusInactive, AdStatusArchived, AdStatusDeleted:
		return true
	}
	return false
}

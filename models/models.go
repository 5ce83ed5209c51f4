package models

import (
	"time"
)

// Content item statuses. Only StatusDisabled is set by this service; the
// others are written by the listing pipeline.
const (
	StatusIncomplete = "incomplete"
	StatusNominated  = "nominated"
	StatusApproved   = "approved"
	StatusDisabled   = "disabled"
)

// Content item types
const (
	TypeExtension  = "extension"
	TypeTheme      = "theme"
	TypeDictionary = "dictionary"
	TypeLangpack   = "langpack"
)

// Version distribution channels
const (
	ChannelListed   = "listed"
	ChannelUnlisted = "unlisted"
)

type Account struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Username    string `gorm:"uniqueIndex"`
	DisplayName string
	Email       string
	Banned      bool `gorm:"index"`
	BannedAt    *time.Time
}

// Name used in notifications: the display name if one is set.
func (a *Account) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}

type ContentItem struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Slug      string `gorm:"uniqueIndex"`
	Name      string
	Type      string `gorm:"not null;default:'extension'"`
	Status    string `gorm:"not null;index"`
	// status to restore when a force-disable is reversed
	PreDisableStatus string
	CurrentVersionID *uint
}

// RestoredStatus is the status a disabled item goes back to when re-enabled.
func (c *ContentItem) RestoredStatus() string {
	if c.PreDisableStatus != "" {
		return c.PreDisableStatus
	}
	return StatusApproved
}

// ContentAuthor is the ordered join between content items and their author accounts.
type ContentAuthor struct {
	ContentItemID uint `gorm:"primarykey"`
	AccountID     uint `gorm:"primarykey;index"`
	Position      int
}

type Version struct {
	ID               uint `gorm:"primarykey"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ContentItemID    uint   `gorm:"index:idx_version_item_number"`
	Number           string `gorm:"index:idx_version_item_number"`
	Channel          string `gorm:"not null;default:'listed'"`
	Deleted          bool
	HumanReviewedAt  *time.Time
	NeedsHumanReview bool
}

type Collection struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Name      string
	Slug      string
	AuthorID  uint `gorm:"index"`
	Deleted   bool
}

type Review struct {
	ID            uint `gorm:"primarykey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ContentItemID uint `gorm:"index"`
	UserID        uint `gorm:"index"`
	Rating        int
	Body          string
	Deleted       bool
}

// AllModels lists every table, for migrations and test fixtures.
func AllModels() []any {
	return []any{
		&Account{},
		&ContentItem{},
		&ContentAuthor{},
		&Version{},
		&Collection{},
		&Review{},
		&Policy{},
		&ReviewJob{},
		&Decision{},
		&DecisionPolicy{},
		&Report{},
		&HumanReviewFlag{},
		&AuditLogEntry{},
		&AuditLogSubject{},
		&BannedContent{},
	}
}

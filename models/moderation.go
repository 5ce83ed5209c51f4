package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Kinds of entity a decision can target, and which audit entries can reference.
const (
	KindAccount     = "account"
	KindContentItem = "content_item"
	KindCollection  = "collection"
	KindReview      = "review"
	KindVersion     = "version"
)

type Policy struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	Name      string `gorm:"not null"`
	Text      string
}

// ReviewJob groups the reports which were reviewed together upstream.
type ReviewJob struct {
	ID         uint `gorm:"primarykey"`
	CreatedAt  time.Time
	ExternalID string `gorm:"uniqueIndex"`
}

type Decision struct {
	ID         uint `gorm:"primarykey"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExternalID string `gorm:"index"`
	Outcome    string `gorm:"not null"`
	TargetKind string `gorm:"not null;index:idx_decision_target"`
	TargetID   uint   `gorm:"not null;index:idx_decision_target"`
	Notes      string
	// true when the decision was triggered by a complaint from someone other than the owner
	ThirdPartyInitiated bool
	ActionDate          *time.Time
	JobID               *uint `gorm:"index"`
	// set when this decision resolves an appeal of an earlier decision
	AppealOfID *uint
	// set once an appeal against this decision has been decided
	AppealDecisionID *uint
}

// DecisionPolicy is the join between decisions and cited policies. The
// autoincrement ID preserves the order policies were attached in.
type DecisionPolicy struct {
	ID         uint `gorm:"primarykey"`
	DecisionID uint `gorm:"index"`
	PolicyID   uint
}

type Report struct {
	ID                 uint `gorm:"primarykey"`
	CreatedAt          time.Time
	JobID              *uint `gorm:"index"`
	ReporterID         *uint
	Reporter           *Account `gorm:"foreignKey:ReporterID"`
	ReporterEmail      string
	ApplicationLocale  string
	ContentVersion     string
	Reason             string
	ReporterAppealDate *time.Time
}

type ReviewReason int

const (
	ReviewReasonUnknown ReviewReason = iota
	ReviewReasonAbuseReport
	ReviewReasonEscalation
	ReviewReasonAppeal
)

func (r ReviewReason) Display() string {
	switch r {
	case ReviewReasonAbuseReport:
		return "Abuse report"
	case ReviewReasonEscalation:
		return "Escalated for further review by the moderation team"
	case ReviewReasonAppeal:
		return "Appeal of a moderation decision"
	default:
		return "Unknown"
	}
}

// HumanReviewFlag puts a version into the human review queue. At most one
// active flag exists per (version, reason).
type HumanReviewFlag struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	VersionID uint         `gorm:"not null;uniqueIndex:idx_review_flag_active,where:is_active"`
	Reason    ReviewReason `gorm:"not null;uniqueIndex:idx_review_flag_active"`
	IsActive  bool         `gorm:"not null"`
}

// AfterCreate marks the version as waiting for review. Flags must be created
// one at a time for this to run.
func (f *HumanReviewFlag) AfterCreate(tx *gorm.DB) error {
	if !f.IsActive {
		return nil
	}
	return tx.Model(&Version{}).Where("id = ?", f.VersionID).Update("needs_human_review", true).Error
}

type AuditCode string

const (
	AuditUserBanned                AuditCode = "USER_BANNED"
	AuditUserUnbanned              AuditCode = "USER_UNBANNED"
	AuditForceDisable              AuditCode = "FORCE_DISABLE"
	AuditForceEnable               AuditCode = "FORCE_ENABLE"
	AuditCollectionDeleted         AuditCode = "COLLECTION_DELETED"
	AuditCollectionUndeleted       AuditCode = "COLLECTION_UNDELETED"
	AuditReviewDeleted             AuditCode = "REVIEW_DELETED"
	AuditReviewUndeleted           AuditCode = "REVIEW_UNDELETED"
	AuditNeedsHumanReviewEscalated AuditCode = "NEEDS_HUMAN_REVIEW_ESCALATION"
)

// Subject references one entity in an audit log entry.
type Subject struct {
	Kind string
	ID   uint
}

func (s Subject) String() string {
	return fmt.Sprintf("%s/%d", s.Kind, s.ID)
}

type AuditLogEntry struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	Action    AuditCode `gorm:"not null;index"`
	Details   datatypes.JSONMap
	Subjects  []AuditLogSubject `gorm:"foreignKey:EntryID"`
}

type AuditLogSubject struct {
	ID       uint   `gorm:"primarykey"`
	EntryID  uint   `gorm:"index"`
	Kind     string `gorm:"not null;index:idx_audit_subject"`
	ObjectID uint   `gorm:"not null;index:idx_audit_subject"`
}

// BannedContent records what a ban cascade took down, so that reversing the
// ban restores exactly that content.
type BannedContent struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	AccountID uint   `gorm:"index"`
	Kind      string `gorm:"not null"`
	ObjectID  uint   `gorm:"not null"`
}

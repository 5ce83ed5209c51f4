// Package action turns a moderation decision into exactly one remediation against its target.
package action

import (
	"context"
	"log/slog"
	"slices"

	"github.com/bluesky-social/marshal/enforcer/gate"
	"github.com/bluesky-social/marshal/models"

	"golang.org/x/text/message"
)

// Action is one executable outcome for one decision.
type Action interface {
	Outcome() Outcome
	Description() string
	Decision() *Decision
	Target() Target
	// Process applies the outcome. It returns the audit entry recorded, or nil if nothing changed.
	// Calling it again after it succeeded is a no-op.
	Process(ctx context.Context) (*models.AuditLogEntry, error)
	// Owners are the accounts notified about the decision. Some outcomes notify nobody.
	Owners() []*models.Account
	TargetName(p *message.Printer) string
	TargetType(p *message.Printer) string
	// ContentVersion is the version owner notices are threaded into, nil for non-content targets.
	ContentVersion() *models.Version
}

// Store is the entity storage actions mutate. Every transition is guarded: it only applies when the
// entity is not already in the end state, and reports whether it changed anything.
type Store interface {
	BanAccount(ctx context.Context, accountID uint) (bool, error)
	UnbanAccount(ctx context.Context, accountID uint) (bool, error)
	DisableContentItem(ctx context.Context, itemID uint) (bool, error)
	EnableContentItem(ctx context.Context, itemID uint) (bool, error)
	DeleteCollection(ctx context.Context, collectionID uint) (bool, error)
	UndeleteCollection(ctx context.Context, collectionID uint) (bool, error)
	DeleteReview(ctx context.Context, reviewID uint) (bool, error)
	UndeleteReview(ctx context.Context, reviewID uint) (bool, error)

	// VersionsForReview returns versions of the item, deleted ones included, whose number is one of
	// numbers and which have no active review flag for reason.
	VersionsForReview(ctx context.Context, itemID uint, numbers []string, reason models.ReviewReason) ([]*models.Version, error)
	// CreateReviewFlag inserts a single flag, running its create hooks.
	CreateReviewFlag(ctx context.Context, flag *models.HumanReviewFlag) error
	// FlagLatestVersions flags the most recent version of each channel and returns the flagged versions.
	FlagLatestVersions(ctx context.Context, itemID uint, reason models.ReviewReason, skipReviewed, uniqueReason bool) ([]*models.Version, error)
}

type AuditLog interface {
	Record(ctx context.Context, code models.AuditCode, subjects []models.Subject, details map[string]any) (*models.AuditLogEntry, error)
}

// Deps are the collaborators an action runs against.
type Deps struct {
	Store  Store
	Audit  AuditLog
	Gates  gate.Gate
	Logger *slog.Logger
}

type variant struct {
	description  string
	validTargets []string
	build        func(b base) Action
}

var allKinds = []string{models.KindAccount, models.KindContentItem, models.KindCollection, models.KindReview}

var registry = map[Outcome]variant{
	OutcomeBanAccount: {
		description:  "Account ban",
		validTargets: []string{models.KindAccount},
		build:        func(b base) Action { return &takedownAction{base: b} },
	},
	OutcomeDisableContent: {
		description:  "Force-disable content",
		validTargets: []string{models.KindContentItem},
		build:        func(b base) Action { return &takedownAction{base: b} },
	},
	OutcomeRejectVersion: {
		description:  "Reject versions",
		validTargets: []string{models.KindContentItem},
		build:        func(b base) Action { return &rejectVersionAction{base: b} },
	},
	OutcomeRejectVersionDelayed: {
		description:  "Reject versions with a delay",
		validTargets: []string{models.KindContentItem},
		build:        func(b base) Action { return &rejectVersionAction{base: b} },
	},
	OutcomeEscalateContent: {
		description:  "Escalate content for human review",
		validTargets: []string{models.KindContentItem},
		build:        func(b base) Action { return &escalateAction{base: b} },
	},
	OutcomeDeleteCollection: {
		description:  "Delete collection",
		validTargets: []string{models.KindCollection},
		build:        func(b base) Action { return &takedownAction{base: b} },
	},
	OutcomeDeleteReview: {
		description:  "Delete review",
		validTargets: []string{models.KindReview},
		build:        func(b base) Action { return &takedownAction{base: b} },
	},
	OutcomeTargetAppealApprove: {
		description:  "Approve appeal and reverse the original action",
		validTargets: allKinds,
		build:        func(b base) Action { return &reverseAction{base: b} },
	},
	OutcomeOverrideApprove: {
		description:  "Override and reverse the original action",
		validTargets: allKinds,
		build:        func(b base) Action { return &reverseAction{base: b} },
	},
	OutcomeApproveNoAction: {
		description:  "No action taken",
		validTargets: allKinds,
		build:        func(b base) Action { return &noopAction{base: b} },
	},
	OutcomeApproveInitialDecision: {
		description:  "Initial decision upheld",
		validTargets: allKinds,
		build:        func(b base) Action { return &noopAction{base: b, notifyOwners: true} },
	},
	OutcomeTargetAppealRemovalAffirmation: {
		description:  "Appeal denied, original action stands",
		validTargets: allKinds,
		build:        func(b base) Action { return &noopAction{base: b, notifyOwners: true} },
	},
}

var notImplemented = variant{
	description:  "Not implemented",
	validTargets: allKinds,
	build:        func(b base) Action { return &noopAction{base: b} },
}

// Outcomes lists every outcome with a dedicated implementation.
func Outcomes() []Outcome {
	out := make([]Outcome, 0, len(registry))
	for o := range registry {
		out = append(out, o)
	}
	slices.Sort(out)
	return out
}

// ValidTargets lists the target kinds an outcome can be applied to.
func ValidTargets(o Outcome) []string {
	v, ok := registry[o]
	if !ok {
		v = notImplemented
	}
	return slices.Clone(v.validTargets)
}

// New selects the implementation for the decision's outcome. A target the outcome can't act on is a
// *ConfigurationError, returned before anything is touched.
//
// A logger passed in deps is used as is; callers are expected to have scoped it to the decision.
func New(dec *Decision, deps Deps) (Action, error) {
	if dec == nil || dec.Target == nil {
		return nil, configErrorf("decision has no target")
	}
	if deps.Store == nil || deps.Audit == nil {
		return nil, configErrorf("action dependencies are missing a store or audit log")
	}
	if deps.Gates == nil {
		deps.Gates = gate.NewStatic()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("system", "action", "decision", dec.ReferenceID(), "outcome", dec.Outcome)
	}

	v, ok := registry[dec.Outcome]
	if !ok {
		v = notImplemented
	}
	kind := dec.Target.Kind()
	if !slices.Contains(v.validTargets, kind) {
		return nil, configErrorf("%s can't be applied to a %s", dec.Outcome, kind)
	}

	return v.build(base{
		dec:         dec,
		deps:        deps,
		description: v.description,
		logger:      logger,
	}), nil
}

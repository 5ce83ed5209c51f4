package action

import (
	"fmt"
	"time"

	"github.com/bluesky-social/marshal/models"
)

type Outcome string

const (
	OutcomeBanAccount                     Outcome = "ban_account"
	OutcomeDisableContent                 Outcome = "disable_content"
	OutcomeRejectVersion                  Outcome = "reject_version"
	OutcomeRejectVersionDelayed           Outcome = "reject_version_delayed"
	OutcomeEscalateContent                Outcome = "escalate_content"
	OutcomeDeleteCollection               Outcome = "delete_collection"
	OutcomeDeleteReview                   Outcome = "delete_review"
	OutcomeTargetAppealApprove            Outcome = "target_appeal_approve"
	OutcomeOverrideApprove                Outcome = "override_approve"
	OutcomeApproveNoAction                Outcome = "approve_no_action"
	OutcomeApproveInitialDecision         Outcome = "approve_initial_decision"
	OutcomeTargetAppealRemovalAffirmation Outcome = "target_appeal_removal_affirmation"
)

// AppealWindow is how long after the action date a decision can be appealed.
const AppealWindow = 184 * 24 * time.Hour

var appealableByOwner = map[Outcome]bool{
	OutcomeBanAccount:           true,
	OutcomeDisableContent:       true,
	OutcomeRejectVersion:        true,
	OutcomeRejectVersionDelayed: true,
	OutcomeDeleteCollection:     true,
	OutcomeDeleteReview:         true,
}

var appealableByReporter = map[Outcome]bool{
	OutcomeApproveNoAction:        true,
	OutcomeApproveInitialDecision: true,
}

// Decision is a stored decision together with everything resolved for it.
type Decision struct {
	ID                  uint
	ExternalID          string
	Outcome             Outcome
	Notes               string
	ThirdPartyInitiated bool
	ActionDate          *time.Time
	AppealOfID          *uint
	// an appeal against this decision has already been decided
	AppealDecided bool

	Target Target
	// in the order they were attached
	Policies []*models.Policy
	Reports  []*models.Report

	// Now defaults to time.Now; tests override it.
	Now func() time.Time
}

func NewDecision(row *models.Decision, target Target, policies []*models.Policy, reports []*models.Report) *Decision {
	return &Decision{
		ID:                  row.ID,
		ExternalID:          row.ExternalID,
		Outcome:             Outcome(row.Outcome),
		Notes:               row.Notes,
		ThirdPartyInitiated: row.ThirdPartyInitiated,
		ActionDate:          row.ActionDate,
		AppealOfID:          row.AppealOfID,
		AppealDecided:       row.AppealDecisionID != nil,
		Target:              target,
		Policies:            policies,
		Reports:             reports,
	}
}

// ReferenceID is the identifier quoted back to owners and reporters.
func (d *Decision) ReferenceID() string {
	if d.ExternalID != "" {
		return d.ExternalID
	}
	return fmt.Sprintf("D-%d", d.ID)
}

// IsAppeal is true when this decision resolves an appeal of an earlier one.
func (d *Decision) IsAppeal() bool {
	return d.AppealOfID != nil
}

// CanBeAppealed reports whether the owner (asReporter false) or the given
// report's author (asReporter true) may still contest the decision.
func (d *Decision) CanBeAppealed(asReporter bool, report *models.Report) bool {
	if d.ActionDate == nil || d.AppealDecided {
		return false
	}
	if d.ActionDate.Before(d.now().Add(-AppealWindow)) {
		return false
	}
	if !asReporter {
		return appealableByOwner[d.Outcome]
	}
	// one appeal per report
	return report != nil &&
		d.ThirdPartyInitiated &&
		report.ReporterAppealDate == nil &&
		appealableByReporter[d.Outcome]
}

func (d *Decision) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

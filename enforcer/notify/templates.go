package notify

import (
	"errors"
	"fmt"

	"github.com/bluesky-social/marshal/enforcer/action"
)

// owner notice template for each outcome which notifies owners
var ownerTemplates = map[action.Outcome]string{
	action.OutcomeBanAccount:                     "owner/ban_account.txt",
	action.OutcomeDisableContent:                 "owner/disable_content.txt",
	action.OutcomeRejectVersion:                  "owner/reject_version.txt",
	action.OutcomeRejectVersionDelayed:           "owner/reject_version_delayed.txt",
	action.OutcomeDeleteCollection:               "owner/delete_collection.txt",
	action.OutcomeDeleteReview:                   "owner/delete_review.txt",
	action.OutcomeTargetAppealApprove:            "owner/appeal_approve.txt",
	action.OutcomeOverrideApprove:                "owner/override_approve.txt",
	action.OutcomeApproveInitialDecision:         "owner/approve_initial_decision.txt",
	action.OutcomeTargetAppealRemovalAffirmation: "owner/appeal_removal_affirmation.txt",
}

// outcomes which never notify owners
var silentOwnerOutcomes = map[action.Outcome]bool{
	action.OutcomeEscalateContent: true,
	action.OutcomeApproveNoAction: true,
}

type reporterTemplate struct {
	normal string
	// used when the decision resolves an appeal
	appeal string
}

var reporterTemplates = map[action.Outcome]reporterTemplate{
	action.OutcomeBanAccount:             {"reporter/takedown_account.txt", "reporter/appeal_takedown.txt"},
	action.OutcomeDisableContent:         {"reporter/takedown_content.txt", "reporter/appeal_takedown.txt"},
	action.OutcomeRejectVersion:          {"reporter/takedown_content.txt", "reporter/appeal_takedown.txt"},
	action.OutcomeRejectVersionDelayed:   {"reporter/takedown_content_delayed.txt", "reporter/appeal_takedown_delayed.txt"},
	action.OutcomeDeleteCollection:       {"reporter/takedown_collection.txt", "reporter/appeal_takedown.txt"},
	action.OutcomeDeleteReview:           {"reporter/takedown_review.txt", "reporter/appeal_takedown.txt"},
	action.OutcomeApproveNoAction:        {"reporter/ignore.txt", "reporter/appeal_ignore.txt"},
	action.OutcomeApproveInitialDecision: {"reporter/ignore.txt", "reporter/appeal_ignore.txt"},
}

func reporterTemplateFor(o action.Outcome, isAppeal bool) string {
	t, ok := reporterTemplates[o]
	if !ok {
		return ""
	}
	if isAppeal {
		return t.appeal
	}
	return t.normal
}

// CheckTemplates verifies that every outcome has its owner notice configured, and that every
// configured template, translations included, parses.
func (n *Notifier) CheckTemplates() error {
	var errs []error
	for _, o := range action.Outcomes() {
		if _, ok := ownerTemplates[o]; !ok && !silentOwnerOutcomes[o] {
			errs = append(errs, &action.ConfigurationError{Reason: fmt.Sprintf("no owner template for %s", o)})
		}
	}

	for _, name := range ownerTemplates {
		if _, err := n.Renderer.Compile(name); err != nil {
			errs = append(errs, err)
		}
	}
	// reporters get the whole notice in their language, never a mix
	for _, t := range reporterTemplates {
		for _, name := range []string{t.normal, t.appeal} {
			if _, err := n.Renderer.Compile(name); err != nil {
				errs = append(errs, err)
			}
			for _, tag := range n.Locales.supported {
				dir := templateDir(tag)
				if dir == "" {
					continue
				}
				if _, err := n.Renderer.Compile(dir + "/" + name); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

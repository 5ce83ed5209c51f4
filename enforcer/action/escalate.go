package action

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/bluesky-social/marshal/enforcer/gate"
	"github.com/bluesky-social/marshal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var versionsFlaggedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marshal_versions_flagged",
	Help: "Number of content versions flagged for human review",
}, []string{"reason", "path"})

// flagForHumanReview puts the versions named in the decision's reports into the human review queue,
// falling back to the latest version of each channel when the reports don't name every version we
// could find, or name none.
func (a *escalateAction) flagForHumanReview(ctx context.Context) error {
	dec := a.dec
	if !a.deps.Gates.IsActive(ctx, gate.EscalationsReview) {
		a.logger.Info("escalation gate is off, not flagging")
		return nil
	}
	if !dec.ThirdPartyInitiated {
		a.logger.Info("decision is not third party initiated, not flagging")
		return nil
	}

	reason := models.ReviewReasonEscalation
	itemID := dec.Target.TargetID()

	// an empty number stands for "reporter didn't say", and still counts as one named version
	seen := make(map[string]bool)
	var named []string
	for _, r := range dec.Reports {
		if !seen[r.ContentVersion] {
			seen[r.ContentVersion] = true
			named = append(named, r.ContentVersion)
		}
	}

	var flagged []*models.Version
	if len(named) > 0 {
		versions, err := a.deps.Store.VersionsForReview(ctx, itemID, named, reason)
		if err != nil {
			return fmt.Errorf("selecting versions for review: %w", err)
		}
		for _, v := range versions {
			// one at a time, so the create hook marks each version
			if err := a.deps.Store.CreateReviewFlag(ctx, &models.HumanReviewFlag{VersionID: v.ID, Reason: reason, IsActive: true}); err != nil {
				return fmt.Errorf("flagging version %d: %w", v.ID, err)
			}
			flagged = append(flagged, v)
		}
		versionsFlaggedCount.WithLabelValues("escalation", "named").Add(float64(len(versions)))
	}

	if len(named) == 0 || len(flagged) != len(named) {
		latest, err := a.deps.Store.FlagLatestVersions(ctx, itemID, reason, false, true)
		if err != nil {
			return fmt.Errorf("flagging latest versions: %w", err)
		}
		versionsFlaggedCount.WithLabelValues("escalation", "latest").Add(float64(len(latest)))
		for _, v := range latest {
			if !slices.ContainsFunc(flagged, func(f *models.Version) bool { return f.ID == v.ID }) {
				flagged = append(flagged, v)
			}
		}
	}

	if len(flagged) == 0 {
		a.logger.Info("no versions needed flagging")
		return nil
	}

	slices.SortFunc(flagged, func(x, y *models.Version) int { return cmp.Compare(x.ID, y.ID) })
	subjects := make([]models.Subject, 0, len(flagged))
	for _, v := range flagged {
		subjects = append(subjects, models.Subject{Kind: models.KindVersion, ID: v.ID})
	}
	entry, err := a.record(ctx, models.AuditNeedsHumanReviewEscalated, subjects, map[string]any{
		"comments": reason.Display(),
	})
	if err != nil {
		return err
	}
	a.logger.Info("flagged versions for human review", "count", len(flagged), "entry", entry.ID)
	return nil
}

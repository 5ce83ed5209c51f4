package action

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/bluesky-social/marshal/enforcer/gate"
	"github.com/bluesky-social/marshal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type fixture struct {
	store      *MemStore
	owner      *models.Account
	coauthor   *models.Account
	item       *models.ContentItem
	soloItem   *models.ContentItem
	versions   []*models.Version
	collection *models.Collection
	review     *models.Review
}

func newFixture() *fixture {
	f := &fixture{
		store:    NewMemStore(),
		owner:    &models.Account{ID: 1, Username: "owner", DisplayName: "Owner One", Email: "owner@example.com"},
		coauthor: &models.Account{ID: 2, Username: "coauthor", Email: "coauthor@example.com"},
		item:     &models.ContentItem{ID: 10, Slug: "tabby", Name: "Tabby Tabs", Type: models.TypeExtension, Status: models.StatusNominated},
		soloItem: &models.ContentItem{ID: 20, Slug: "dark-mode", Name: "Dark Mode", Type: models.TypeTheme, Status: models.StatusApproved},
		versions: []*models.Version{
			{ID: 11, ContentItemID: 10, Number: "1.0", Channel: models.ChannelListed},
			{ID: 12, ContentItemID: 10, Number: "1.1", Channel: models.ChannelUnlisted},
			{ID: 13, ContentItemID: 10, Number: "2.0", Channel: models.ChannelListed},
		},
		collection: &models.Collection{ID: 30, Name: "Favourites", Slug: "faves", AuthorID: 1},
		review:     &models.Review{ID: 40, ContentItemID: 20, UserID: 1, Rating: 1, Body: "meh"},
	}
	f.item.CurrentVersionID = &f.versions[2].ID
	f.store.AddContentItem(f.item, f.owner, f.coauthor)
	f.store.AddContentItem(f.soloItem, f.owner)
	for _, v := range f.versions {
		f.store.AddVersion(v)
	}
	f.store.AddCollection(f.collection)
	f.store.AddReview(f.review)
	return f
}

func (f *fixture) accountTarget() Target {
	return &AccountTarget{Account: f.owner}
}

func (f *fixture) contentTarget() Target {
	return &ContentItemTarget{Item: f.item, Authors: []*models.Account{f.owner, f.coauthor}, CurrentVersion: f.versions[2]}
}

func (f *fixture) collectionTarget() Target {
	return &CollectionTarget{Collection: f.collection, Author: f.owner}
}

func (f *fixture) reviewTarget() Target {
	return &ReviewTarget{Review: f.review, Author: f.owner, Item: f.soloItem}
}

func (f *fixture) targets() map[string]Target {
	return map[string]Target{
		models.KindAccount:     f.accountTarget(),
		models.KindContentItem: f.contentTarget(),
		models.KindCollection:  f.collectionTarget(),
		models.KindReview:      f.reviewTarget(),
	}
}

func (f *fixture) deps(gates ...string) Deps {
	return Deps{Store: f.store, Audit: f.store, Gates: gate.NewStatic(gates...)}
}

func newDecision(outcome Outcome, target Target, reports ...*models.Report) *Decision {
	return &Decision{ID: 7, ExternalID: "ABC123", Outcome: outcome, Target: target, ThirdPartyInitiated: true, Reports: reports}
}

func TestNewRejectsInvalidTargets(t *testing.T) {
	assert := assert.New(t)

	for _, outcome := range Outcomes() {
		valid := ValidTargets(outcome)
		f := newFixture()
		for kind, target := range f.targets() {
			act, err := New(newDecision(outcome, target), f.deps())
			if slices.Contains(valid, kind) {
				assert.NoError(err, "%s on %s", outcome, kind)
				assert.NotNil(act)
				continue
			}
			assert.Nil(act)
			assert.True(IsConfigurationError(err), "%s on %s", outcome, kind)
		}
		assert.Empty(f.store.Entries)
		assert.Equal(models.StatusNominated, f.item.Status)
		assert.False(f.owner.Banned)
	}
}

func TestNewRequiresStore(t *testing.T) {
	f := newFixture()
	_, err := New(newDecision(OutcomeDisableContent, f.contentTarget()), Deps{})
	assert.True(t, IsConfigurationError(err))

	_, err = New(&Decision{Outcome: OutcomeDisableContent}, f.deps())
	assert.True(t, IsConfigurationError(err))
}

func TestTakedownIsIdempotent(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		outcome Outcome
		target  func(f *fixture) Target
		code    models.AuditCode
		check   func(t *testing.T, f *fixture)
	}{
		{
			outcome: OutcomeBanAccount,
			target:  (*fixture).accountTarget,
			code:    models.AuditUserBanned,
			check: func(t *testing.T, f *fixture) {
				assert.True(t, f.owner.Banned)
				assert.NotNil(t, f.owner.BannedAt)
			},
		},
		{
			outcome: OutcomeDisableContent,
			target:  (*fixture).contentTarget,
			code:    models.AuditForceDisable,
			check: func(t *testing.T, f *fixture) {
				assert.Equal(t, models.StatusDisabled, f.item.Status)
				assert.Equal(t, models.StatusNominated, f.item.PreDisableStatus)
			},
		},
		{
			outcome: OutcomeDeleteCollection,
			target:  (*fixture).collectionTarget,
			code:    models.AuditCollectionDeleted,
			check: func(t *testing.T, f *fixture) {
				assert.True(t, f.collection.Deleted)
			},
		},
		{
			outcome: OutcomeDeleteReview,
			target:  (*fixture).reviewTarget,
			code:    models.AuditReviewDeleted,
			check: func(t *testing.T, f *fixture) {
				assert.True(t, f.review.Deleted)
			},
		},
	}

	for _, tc := range tests {
		t.Run(string(tc.outcome), func(t *testing.T) {
			f := newFixture()
			act, err := New(newDecision(tc.outcome, tc.target(f)), f.deps())
			require.NoError(t, err)

			entry, err := act.Process(ctx)
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, tc.code, entry.Action)
			require.Len(t, entry.Subjects, 1)
			assert.Equal(t, act.Target().Kind(), entry.Subjects[0].Kind)
			assert.Equal(t, act.Target().TargetID(), entry.Subjects[0].ObjectID)
			tc.check(t, f)

			entry, err = act.Process(ctx)
			assert.NoError(t, err)
			assert.Nil(t, entry)
			assert.Len(t, f.store.Entries, 1)
			tc.check(t, f)
		})
	}
}

func TestTakedownGuard(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	f := newFixture()
	f.item.Status = models.StatusDisabled
	act, err := New(newDecision(OutcomeDisableContent, f.contentTarget()), f.deps())
	require.NoError(t, err)

	entry, err := act.Process(ctx)
	assert.NoError(err)
	assert.Nil(entry)
	assert.Empty(f.store.Entries)
	assert.Empty(f.item.PreDisableStatus)

	// the store's conditional update is the last word, even when the snapshot is stale
	f = newFixture()
	stale := &models.ContentItem{ID: f.item.ID, Name: f.item.Name, Status: models.StatusApproved}
	f.item.Status = models.StatusDisabled
	act, err = New(newDecision(OutcomeDisableContent, &ContentItemTarget{Item: stale}), f.deps())
	require.NoError(t, err)
	entry, err = act.Process(ctx)
	assert.NoError(err)
	assert.Nil(entry)
	assert.Empty(f.store.Entries)
}

func TestReverseTakedown(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()

	disable, err := New(newDecision(OutcomeDisableContent, f.contentTarget()), f.deps())
	require.NoError(t, err)
	_, err = disable.Process(ctx)
	require.NoError(t, err)

	for _, outcome := range []Outcome{OutcomeTargetAppealApprove, OutcomeOverrideApprove} {
		act, err := New(newDecision(outcome, f.contentTarget()), f.deps())
		require.NoError(t, err)
		entry, err := act.Process(ctx)
		assert.NoError(err)
		if outcome == OutcomeTargetAppealApprove {
			require.NotNil(t, entry)
			assert.Equal(models.AuditForceEnable, entry.Action)
		} else {
			// already re-enabled
			assert.Nil(entry)
		}
		assert.Equal(models.StatusNominated, f.item.Status)
		assert.Empty(f.item.PreDisableStatus)
	}
	assert.Len(f.store.Entries, 2)

	// nothing to reverse on a live target
	act, err := New(newDecision(OutcomeTargetAppealApprove, f.reviewTarget()), f.deps())
	require.NoError(t, err)
	entry, err := act.Process(ctx)
	assert.NoError(err)
	assert.Nil(entry)
}

func TestBanCascade(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()

	ban, err := New(newDecision(OutcomeBanAccount, f.accountTarget()), f.deps())
	require.NoError(t, err)
	entry, err := ban.Process(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)

	// co-authored content stays up
	assert.Equal(models.StatusNominated, f.item.Status)
	assert.Equal(models.StatusDisabled, f.soloItem.Status)
	assert.True(f.collection.Deleted)
	assert.True(f.review.Deleted)
	assert.Len(f.store.Banned, 3)

	unban, err := New(newDecision(OutcomeTargetAppealApprove, f.accountTarget()), f.deps())
	require.NoError(t, err)
	entry, err = unban.Process(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(models.AuditUserUnbanned, entry.Action)

	assert.False(f.owner.Banned)
	assert.Nil(f.owner.BannedAt)
	assert.Equal(models.StatusApproved, f.soloItem.Status)
	assert.False(f.collection.Deleted)
	assert.False(f.review.Deleted)
	assert.Empty(f.store.Banned)
}

func TestOwners(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	owners := func(outcome Outcome, target Target) []*models.Account {
		act, err := New(newDecision(outcome, target), f.deps())
		require.NoError(t, err)
		return act.Owners()
	}

	assert.Equal([]*models.Account{f.owner}, owners(OutcomeBanAccount, f.accountTarget()))
	assert.Equal([]*models.Account{f.owner, f.coauthor}, owners(OutcomeDisableContent, f.contentTarget()))
	assert.Equal([]*models.Account{f.owner, f.coauthor}, owners(OutcomeRejectVersion, f.contentTarget()))
	assert.Equal([]*models.Account{f.owner}, owners(OutcomeDeleteCollection, f.collectionTarget()))
	assert.Equal([]*models.Account{f.owner}, owners(OutcomeDeleteReview, f.reviewTarget()))
	assert.Equal([]*models.Account{f.owner}, owners(OutcomeTargetAppealApprove, f.reviewTarget()))
	assert.Equal([]*models.Account{f.owner}, owners(OutcomeApproveInitialDecision, f.collectionTarget()))
	assert.Equal([]*models.Account{f.owner}, owners(OutcomeTargetAppealRemovalAffirmation, f.accountTarget()))
	assert.Empty(owners(OutcomeEscalateContent, f.contentTarget()))
	assert.Empty(owners(OutcomeApproveNoAction, f.contentTarget()))
	assert.Empty(owners(Outcome("something_new"), f.contentTarget()))
}

func TestRejectVersionIsUnsupported(t *testing.T) {
	f := newFixture()
	for _, outcome := range []Outcome{OutcomeRejectVersion, OutcomeRejectVersionDelayed} {
		act, err := New(newDecision(outcome, f.contentTarget()), f.deps())
		require.NoError(t, err)
		entry, err := act.Process(context.Background())
		assert.True(t, errors.Is(err, ErrUnsupportedOperation))
		assert.Nil(t, entry)
	}
	assert.Equal(t, models.StatusNominated, f.item.Status)
}

func TestNotImplementedFallback(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	act, err := New(newDecision(Outcome("something_new"), f.reviewTarget()), f.deps())
	require.NoError(t, err)
	assert.Equal("Not implemented", act.Description())
	entry, err := act.Process(context.Background())
	assert.NoError(err)
	assert.Nil(entry)
}

func TestTargetLabels(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	p := message.NewPrinter(language.English)

	act, err := New(newDecision(OutcomeDeleteReview, f.reviewTarget()), f.deps())
	require.NoError(t, err)
	assert.Equal("the review for Dark Mode", act.TargetName(p))
	assert.Equal("Review", act.TargetType(p))
	assert.Nil(act.ContentVersion())

	act, err = New(newDecision(OutcomeDisableContent, f.contentTarget()), f.deps())
	require.NoError(t, err)
	assert.Equal("Tabby Tabs", act.TargetName(p))
	assert.Equal("Extension", act.TargetType(p))
	assert.Equal(uint(13), act.ContentVersion().ID)
	assert.Equal("/addon/tabby/", act.Target().URLPath())

	act, err = New(newDecision(OutcomeBanAccount, f.accountTarget()), f.deps())
	require.NoError(t, err)
	assert.Equal("Owner One", act.TargetName(p))
	assert.Equal("User profile", act.TargetType(p))
	assert.Equal("/user/1/", act.Target().URLPath())

	assert.Equal("Theme", (&ContentItemTarget{Item: f.soloItem}).TypeLabel(p))
	assert.Equal("/collections/1/faves/", f.collectionTarget().URLPath())
}

func subjectIDs(entry *models.AuditLogEntry) []uint {
	var ids []uint
	for _, s := range entry.Subjects {
		ids = append(ids, s.ObjectID)
	}
	return ids
}

func TestEscalationFlagsNamedVersionsWithFallback(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := newFixture()

	// three named versions, only 1.0 exists
	reports := []*models.Report{
		{ID: 1, ContentVersion: "1.0"},
		{ID: 2, ContentVersion: "9.9"},
		{ID: 3, ContentVersion: ""},
		{ID: 4, ContentVersion: "1.0"},
	}
	act, err := New(newDecision(OutcomeEscalateContent, f.contentTarget(), reports...), f.deps(gate.EscalationsReview))
	require.NoError(t, err)

	entry, err := act.Process(ctx)
	require.NoError(t, err)
	assert.Nil(entry)

	require.Len(t, f.store.Entries, 1)
	logged := f.store.Entries[0]
	assert.Equal(models.AuditNeedsHumanReviewEscalated, logged.Action)
	assert.Equal([]uint{11, 12, 13}, subjectIDs(logged))
	assert.Equal(models.KindVersion, logged.Subjects[0].Kind)
	assert.Equal(models.ReviewReasonEscalation.Display(), logged.Details["comments"])
	assert.Len(f.store.Flags, 3)
	for _, v := range f.versions {
		assert.True(v.NeedsHumanReview, "version %s", v.Number)
	}

	// everything is flagged already
	_, err = act.Process(ctx)
	require.NoError(t, err)
	assert.Len(f.store.Entries, 1)
	assert.Len(f.store.Flags, 3)
}

func TestEscalationWithoutNamedVersions(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	act, err := New(newDecision(OutcomeEscalateContent, f.contentTarget()), f.deps(gate.EscalationsReview))
	require.NoError(t, err)
	_, err = act.Process(context.Background())
	require.NoError(t, err)

	require.Len(t, f.store.Entries, 1)
	// latest unlisted and latest listed
	assert.Equal([]uint{12, 13}, subjectIDs(f.store.Entries[0]))
	assert.False(f.versions[0].NeedsHumanReview)
}

func TestEscalationAllNamedVersionsFound(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()
	f.versions[0].Deleted = true

	reports := []*models.Report{{ID: 1, ContentVersion: "1.0"}, {ID: 2, ContentVersion: "2.0"}}
	act, err := New(newDecision(OutcomeEscalateContent, f.contentTarget(), reports...), f.deps(gate.EscalationsReview))
	require.NoError(t, err)
	_, err = act.Process(context.Background())
	require.NoError(t, err)

	require.Len(t, f.store.Entries, 1)
	assert.Equal([]uint{11, 13}, subjectIDs(f.store.Entries[0]))
	assert.False(f.versions[1].NeedsHumanReview)
}

func TestEscalationSkipped(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	reports := []*models.Report{{ID: 1, ContentVersion: "1.0"}}

	f := newFixture()
	act, err := New(newDecision(OutcomeEscalateContent, f.contentTarget(), reports...), f.deps())
	require.NoError(t, err)
	_, err = act.Process(ctx)
	assert.NoError(err)
	assert.Empty(f.store.Flags)
	assert.Empty(f.store.Entries)

	dec := newDecision(OutcomeEscalateContent, f.contentTarget(), reports...)
	dec.ThirdPartyInitiated = false
	act, err = New(dec, f.deps(gate.EscalationsReview))
	require.NoError(t, err)
	_, err = act.Process(ctx)
	assert.NoError(err)
	assert.Empty(f.store.Flags)
	assert.Empty(f.store.Entries)
}

func TestNewKeepsCallerLogger(t *testing.T) {
	assert := assert.New(t)
	f := newFixture()

	var buf bytes.Buffer
	deps := f.deps()
	deps.Logger = slog.New(slog.NewTextHandler(&buf, nil)).With("decision", "ABC123", "outcome", OutcomeEscalateContent)
	act, err := New(newDecision(OutcomeEscalateContent, f.contentTarget()), deps)
	require.NoError(t, err)
	_, err = act.Process(context.Background())
	assert.NoError(err)

	line := buf.String()
	assert.Contains(line, "escalation gate is off")
	assert.Equal(1, strings.Count(line, "decision=ABC123"))
	assert.Equal(1, strings.Count(line, "outcome=escalate_content"))
}

func TestCanBeAppealed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-30 * 24 * time.Hour)
	old := now.Add(-200 * 24 * time.Hour)
	appealed := now.Add(-time.Hour)

	tests := []struct {
		name       string
		outcome    Outcome
		actionDate *time.Time
		thirdParty bool
		decided    bool
		asReporter bool
		report     *models.Report
		expected   bool
	}{
		{name: "owner takedown", outcome: OutcomeDisableContent, actionDate: &recent, expected: true},
		{name: "owner ban", outcome: OutcomeBanAccount, actionDate: &recent, thirdParty: true, expected: true},
		{name: "owner reject", outcome: OutcomeRejectVersionDelayed, actionDate: &recent, expected: true},
		{name: "owner too late", outcome: OutcomeDisableContent, actionDate: &old, expected: false},
		{name: "owner not yet actioned", outcome: OutcomeDisableContent, expected: false},
		{name: "owner already decided", outcome: OutcomeDeleteReview, actionDate: &recent, decided: true, expected: false},
		{name: "owner no action", outcome: OutcomeApproveNoAction, actionDate: &recent, expected: false},
		{name: "reporter no action", outcome: OutcomeApproveNoAction, actionDate: &recent, thirdParty: true, asReporter: true, report: &models.Report{ID: 1}, expected: true},
		{name: "reporter upheld", outcome: OutcomeApproveInitialDecision, actionDate: &recent, thirdParty: true, asReporter: true, report: &models.Report{ID: 1}, expected: true},
		{name: "reporter already appealed", outcome: OutcomeApproveNoAction, actionDate: &recent, thirdParty: true, asReporter: true, report: &models.Report{ID: 1, ReporterAppealDate: &appealed}, expected: false},
		{name: "reporter first party", outcome: OutcomeApproveNoAction, actionDate: &recent, asReporter: true, report: &models.Report{ID: 1}, expected: false},
		{name: "reporter takedown", outcome: OutcomeDisableContent, actionDate: &recent, thirdParty: true, asReporter: true, report: &models.Report{ID: 1}, expected: false},
		{name: "reporter without report", outcome: OutcomeApproveNoAction, actionDate: &recent, thirdParty: true, asReporter: true, expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dec := &Decision{
				ID:                  1,
				Outcome:             tc.outcome,
				ActionDate:          tc.actionDate,
				ThirdPartyInitiated: tc.thirdParty,
				AppealDecided:       tc.decided,
				Now:                 func() time.Time { return now },
			}
			assert.Equal(t, tc.expected, dec.CanBeAppealed(tc.asReporter, tc.report))
		})
	}
}

func TestReferenceID(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("ABC123", (&Decision{ID: 5, ExternalID: "ABC123"}).ReferenceID())
	assert.Equal("D-5", (&Decision{ID: 5}).ReferenceID())

	appealOf := uint(4)
	dec := NewDecision(&models.Decision{ID: 5, Outcome: "ban_account", AppealOfID: &appealOf, AppealDecisionID: &appealOf}, nil, nil, nil)
	assert.True(dec.IsAppeal())
	assert.True(dec.AppealDecided)
	assert.Equal(OutcomeBanAccount, dec.Outcome)
}

func TestContactFor(t *testing.T) {
	assert := assert.New(t)

	c := ContactFor(&models.Report{Reporter: &models.Account{ID: 3, Email: "me@example.com"}})
	addr, ok := c.Address()
	assert.IsType(Registered{}, c)
	assert.True(ok)
	assert.Equal("me@example.com", addr)

	c = ContactFor(&models.Report{ReporterEmail: "anon@example.com"})
	addr, ok = c.Address()
	assert.IsType(Anonymous{}, c)
	assert.True(ok)
	assert.Equal("anon@example.com", addr)

	_, ok = ContactFor(&models.Report{}).Address()
	assert.False(ok)
	_, ok = ContactFor(&models.Report{Reporter: &models.Account{ID: 3}}).Address()
	assert.False(ok)
}

package action

import (
	"context"
	"fmt"

	"github.com/bluesky-social/marshal/models"

	"golang.org/x/text/message"
)

// Target is the entity a decision acts on. The set of implementations is
// closed: AccountTarget, ContentItemTarget, CollectionTarget and ReviewTarget.
type Target interface {
	Kind() string
	TargetID() uint
	// Name is the human readable name, in the printer's language.
	Name(p *message.Printer) string
	// TypeLabel describes what kind of thing the target is, in the printer's language.
	TypeLabel(p *message.Printer) string
	URLPath() string
	Owners() []*models.Account
	// TakenDown is true when the target is banned, disabled or deleted.
	TakenDown() bool
	// Version is the content version notifications thread into, if any.
	Version() *models.Version
	Subject() models.Subject

	takedown(ctx context.Context, s Store) (bool, error)
	restore(ctx context.Context, s Store) (bool, error)
	takedownCode() models.AuditCode
	restoreCode() models.AuditCode
}

type AccountTarget struct {
	Account *models.Account
}

func (t *AccountTarget) Kind() string                        { return models.KindAccount }
func (t *AccountTarget) TargetID() uint                      { return t.Account.ID }
func (t *AccountTarget) Name(p *message.Printer) string      { return t.Account.Name() }
func (t *AccountTarget) TypeLabel(p *message.Printer) string { return p.Sprintf("User profile") }
func (t *AccountTarget) URLPath() string                     { return fmt.Sprintf("/user/%d/", t.Account.ID) }
func (t *AccountTarget) Owners() []*models.Account           { return []*models.Account{t.Account} }
func (t *AccountTarget) TakenDown() bool                     { return t.Account.Banned }
func (t *AccountTarget) Version() *models.Version            { return nil }
func (t *AccountTarget) takedownCode() models.AuditCode      { return models.AuditUserBanned }
func (t *AccountTarget) restoreCode() models.AuditCode       { return models.AuditUserUnbanned }

func (t *AccountTarget) Subject() models.Subject {
	return models.Subject{Kind: models.KindAccount, ID: t.Account.ID}
}

func (t *AccountTarget) takedown(ctx context.Context, s Store) (bool, error) {
	changed, err := s.BanAccount(ctx, t.Account.ID)
	if changed {
		t.Account.Banned = true
	}
	return changed, err
}

func (t *AccountTarget) restore(ctx context.Context, s Store) (bool, error) {
	changed, err := s.UnbanAccount(ctx, t.Account.ID)
	if changed {
		t.Account.Banned = false
		t.Account.BannedAt = nil
	}
	return changed, err
}

type ContentItemTarget struct {
	Item *models.ContentItem
	// in position order
	Authors []*models.Account
	// current version, or the most recent one of any channel when there is no current version
	CurrentVersion *models.Version
}

func (t *ContentItemTarget) Kind() string                   { return models.KindContentItem }
func (t *ContentItemTarget) TargetID() uint                 { return t.Item.ID }
func (t *ContentItemTarget) Name(p *message.Printer) string { return t.Item.Name }
func (t *ContentItemTarget) URLPath() string                { return fmt.Sprintf("/addon/%s/", t.Item.Slug) }
func (t *ContentItemTarget) Owners() []*models.Account      { return t.Authors }
func (t *ContentItemTarget) TakenDown() bool                { return t.Item.Status == models.StatusDisabled }
func (t *ContentItemTarget) Version() *models.Version       { return t.CurrentVersion }
func (t *ContentItemTarget) takedownCode() models.AuditCode { return models.AuditForceDisable }
func (t *ContentItemTarget) restoreCode() models.AuditCode  { return models.AuditForceEnable }

func (t *ContentItemTarget) TypeLabel(p *message.Printer) string {
	switch t.Item.Type {
	case models.TypeTheme:
		return p.Sprintf("Theme")
	case models.TypeDictionary:
		return p.Sprintf("Dictionary")
	case models.TypeLangpack:
		return p.Sprintf("Language pack")
	default:
		return p.Sprintf("Extension")
	}
}

func (t *ContentItemTarget) Subject() models.Subject {
	return models.Subject{Kind: models.KindContentItem, ID: t.Item.ID}
}

func (t *ContentItemTarget) takedown(ctx context.Context, s Store) (bool, error) {
	prev := t.Item.Status
	changed, err := s.DisableContentItem(ctx, t.Item.ID)
	if changed && t.Item.Status != models.StatusDisabled {
		t.Item.PreDisableStatus = prev
		t.Item.Status = models.StatusDisabled
	}
	return changed, err
}

func (t *ContentItemTarget) restore(ctx context.Context, s Store) (bool, error) {
	changed, err := s.EnableContentItem(ctx, t.Item.ID)
	if changed && t.Item.Status == models.StatusDisabled {
		t.Item.Status = t.Item.RestoredStatus()
		t.Item.PreDisableStatus = ""
	}
	return changed, err
}

type CollectionTarget struct {
	Collection *models.Collection
	Author     *models.Account
}

func (t *CollectionTarget) Kind() string                        { return models.KindCollection }
func (t *CollectionTarget) TargetID() uint                      { return t.Collection.ID }
func (t *CollectionTarget) Name(p *message.Printer) string      { return t.Collection.Name }
func (t *CollectionTarget) TypeLabel(p *message.Printer) string { return p.Sprintf("Collection") }
func (t *CollectionTarget) TakenDown() bool                     { return t.Collection.Deleted }
func (t *CollectionTarget) Version() *models.Version            { return nil }
func (t *CollectionTarget) takedownCode() models.AuditCode      { return models.AuditCollectionDeleted }
func (t *CollectionTarget) restoreCode() models.AuditCode       { return models.AuditCollectionUndeleted }

func (t *CollectionTarget) URLPath() string {
	return fmt.Sprintf("/collections/%d/%s/", t.Collection.AuthorID, t.Collection.Slug)
}

func (t *CollectionTarget) Owners() []*models.Account {
	if t.Author == nil {
		return nil
	}
	return []*models.Account{t.Author}
}

func (t *CollectionTarget) Subject() models.Subject {
	return models.Subject{Kind: models.KindCollection, ID: t.Collection.ID}
}

func (t *CollectionTarget) takedown(ctx context.Context, s Store) (bool, error) {
	changed, err := s.DeleteCollection(ctx, t.Collection.ID)
	if changed {
		t.Collection.Deleted = true
	}
	return changed, err
}

func (t *CollectionTarget) restore(ctx context.Context, s Store) (bool, error) {
	changed, err := s.UndeleteCollection(ctx, t.Collection.ID)
	if changed {
		t.Collection.Deleted = false
	}
	return changed, err
}

type ReviewTarget struct {
	Review *models.Review
	Author *models.Account
	// the content item the review was written for
	Item *models.ContentItem
}

func (t *ReviewTarget) Kind() string                        { return models.KindReview }
func (t *ReviewTarget) TargetID() uint                      { return t.Review.ID }
func (t *ReviewTarget) TypeLabel(p *message.Printer) string { return p.Sprintf("Review") }
func (t *ReviewTarget) TakenDown() bool                     { return t.Review.Deleted }
func (t *ReviewTarget) Version() *models.Version            { return nil }
func (t *ReviewTarget) takedownCode() models.AuditCode      { return models.AuditReviewDeleted }
func (t *ReviewTarget) restoreCode() models.AuditCode       { return models.AuditReviewUndeleted }

func (t *ReviewTarget) Name(p *message.Printer) string {
	return p.Sprintf("the review for %s", t.Item.Name)
}

func (t *ReviewTarget) URLPath() string {
	return fmt.Sprintf("/addon/%s/reviews/%d/", t.Item.Slug, t.Review.ID)
}

func (t *ReviewTarget) Owners() []*models.Account {
	if t.Author == nil {
		return nil
	}
	return []*models.Account{t.Author}
}

func (t *ReviewTarget) Subject() models.Subject {
	return models.Subject{Kind: models.KindReview, ID: t.Review.ID}
}

func (t *ReviewTarget) takedown(ctx context.Context, s Store) (bool, error) {
	changed, err := s.DeleteReview(ctx, t.Review.ID)
	if changed {
		t.Review.Deleted = true
	}
	return changed, err
}

func (t *ReviewTarget) restore(ctx context.Context, s Store) (bool, error) {
	changed, err := s.UndeleteReview(ctx, t.Review.ID)
	if changed {
		t.Review.Deleted = false
	}
	return changed, err
}

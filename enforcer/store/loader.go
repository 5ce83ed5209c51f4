package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bluesky-social/marshal/enforcer/action"
	"github.com/bluesky-social/marshal/models"

	"gorm.io/gorm"
)

// LoadDecision loads a decision along with its target, cited policies and the reports of its job.
func (s *GormStore) LoadDecision(ctx context.Context, id uint) (*action.Decision, error) {
	db := s.db.WithContext(ctx)

	var row models.Decision
	if err := db.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("decision %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	var policies []*models.Policy
	err := db.Joins("JOIN decision_policies ON decision_policies.policy_id = policies.id").
		Where("decision_policies.decision_id = ?", row.ID).
		Order("decision_policies.id").
		Find(&policies).Error
	if err != nil {
		return nil, fmt.Errorf("loading policies: %w", err)
	}

	var reports []*models.Report
	if row.JobID != nil {
		if err := db.Preload("Reporter").Where("job_id = ?", *row.JobID).Order("id").Find(&reports).Error; err != nil {
			return nil, fmt.Errorf("loading reports: %w", err)
		}
	}

	target, err := s.loadTarget(ctx, row.TargetKind, row.TargetID)
	if err != nil {
		return nil, fmt.Errorf("loading %s %d: %w", row.TargetKind, row.TargetID, err)
	}
	return action.NewDecision(&row, target, policies, reports), nil
}

func (s *GormStore) loadTarget(ctx context.Context, kind string, id uint) (action.Target, error) {
	switch kind {
	case models.KindAccount:
		acct, err := s.account(ctx, id)
		if err != nil {
			return nil, err
		}
		if acct == nil {
			return nil, ErrNotFound
		}
		return &action.AccountTarget{Account: acct}, nil
	case models.KindContentItem:
		item, err := s.contentItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, ErrNotFound
		}
		authors, err := s.authors(ctx, id)
		if err != nil {
			return nil, err
		}
		version, err := s.currentVersion(ctx, item)
		if err != nil {
			return nil, err
		}
		return &action.ContentItemTarget{Item: item, Authors: authors, CurrentVersion: version}, nil
	case models.KindCollection:
		var coll models.Collection
		res := s.db.WithContext(ctx).Limit(1).Find(&coll, id)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
		author, err := s.account(ctx, coll.AuthorID)
		if err != nil {
			return nil, err
		}
		return &action.CollectionTarget{Collection: &coll, Author: author}, nil
	case models.KindReview:
		var review models.Review
		res := s.db.WithContext(ctx).Limit(1).Find(&review, id)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
		author, err := s.account(ctx, review.UserID)
		if err != nil {
			return nil, err
		}
		item, err := s.contentItem(ctx, review.ContentItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, fmt.Errorf("reviewed content item %d: %w", review.ContentItemID, ErrNotFound)
		}
		return &action.ReviewTarget{Review: &review, Author: author, Item: item}, nil
	default:
		return nil, &action.ConfigurationError{Reason: fmt.Sprintf("unknown target kind %q", kind)}
	}
}

// account returns nil if there is no such account.
func (s *GormStore) account(ctx context.Context, id uint) (*models.Account, error) {
	var acct models.Account
	res := s.db.WithContext(ctx).Limit(1).Find(&acct, id)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &acct, nil
}

func (s *GormStore) contentItem(ctx context.Context, id uint) (*models.ContentItem, error) {
	var item models.ContentItem
	res := s.db.WithContext(ctx).Limit(1).Find(&item, id)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &item, nil
}

func (s *GormStore) authors(ctx context.Context, itemID uint) ([]*models.Account, error) {
	var authors []*models.Account
	err := s.db.WithContext(ctx).
		Joins("JOIN content_authors ON content_authors.account_id = accounts.id").
		Where("content_authors.content_item_id = ?", itemID).
		Order("content_authors.position").
		Find(&authors).Error
	return authors, err
}

// currentVersion falls back to the most recent version of any channel, deleted ones included, when the
// item has no current version.
func (s *GormStore) currentVersion(ctx context.Context, item *models.ContentItem) (*models.Version, error) {
	db := s.db.WithContext(ctx)
	var v models.Version
	var res *gorm.DB
	if item.CurrentVersionID != nil {
		res = db.Limit(1).Find(&v, *item.CurrentVersionID)
	} else {
		res = db.Where("content_item_id = ?", item.ID).Order("id DESC").Limit(1).Find(&v)
	}
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &v, nil
}

// Package store persists moderation state in a SQL database through gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/marshal/enforcer/action"
	"github.com/bluesky-social/marshal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

// GormStore implements action.Store and action.AuditLog, and loads decisions for the engine.
//
// Every state transition is a conditional UPDATE, so concurrent or repeated applications of the same
// decision change the row at most once.
type GormStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ action.Store = (*GormStore)(nil)
var _ action.AuditLog = (*GormStore)(nil)

func New(db *gorm.DB, logger *slog.Logger) *GormStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &GormStore{
		db:     db,
		logger: logger.With("system", "store"),
	}
}

func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(models.AllModels()...)
}

func (s *GormStore) BanAccount(ctx context.Context, accountID uint) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Account{}).Where("id = ? AND banned = ?", accountID, false).Updates(map[string]any{
			"banned":    true,
			"banned_at": now,
		})
		if res.Error != nil {
			return fmt.Errorf("banning account: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true

		// content the account is the only author of goes down with it
		soleAuthored := tx.Model(&models.ContentAuthor{}).
			Select("content_item_id").
			Group("content_item_id").
			Having("COUNT(*) = 1 AND MAX(account_id) = ?", accountID)
		var itemIDs, collectionIDs, reviewIDs []uint
		if err := tx.Model(&models.ContentItem{}).Where("id IN (?) AND status <> ?", soleAuthored, models.StatusDisabled).Pluck("id", &itemIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Collection{}).Where("author_id = ? AND deleted = ?", accountID, false).Pluck("id", &collectionIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Review{}).Where("user_id = ? AND deleted = ?", accountID, false).Pluck("id", &reviewIDs).Error; err != nil {
			return err
		}

		var ledger []models.BannedContent
		if len(itemIDs) > 0 {
			if err := tx.Model(&models.ContentItem{}).Where("id IN ?", itemIDs).Updates(map[string]any{
				"pre_disable_status": gorm.Expr("status"),
				"status":             models.StatusDisabled,
			}).Error; err != nil {
				return fmt.Errorf("disabling content: %w", err)
			}
			for _, id := range itemIDs {
				ledger = append(ledger, models.BannedContent{AccountID: accountID, Kind: models.KindContentItem, ObjectID: id})
			}
		}
		if len(collectionIDs) > 0 {
			if err := tx.Model(&models.Collection{}).Where("id IN ?", collectionIDs).Update("deleted", true).Error; err != nil {
				return fmt.Errorf("deleting collections: %w", err)
			}
			for _, id := range collectionIDs {
				ledger = append(ledger, models.BannedContent{AccountID: accountID, Kind: models.KindCollection, ObjectID: id})
			}
		}
		if len(reviewIDs) > 0 {
			if err := tx.Model(&models.Review{}).Where("id IN ?", reviewIDs).Update("deleted", true).Error; err != nil {
				return fmt.Errorf("deleting reviews: %w", err)
			}
			for _, id := range reviewIDs {
				ledger = append(ledger, models.BannedContent{AccountID: accountID, Kind: models.KindReview, ObjectID: id})
			}
		}
		if len(ledger) > 0 {
			if err := tx.Create(&ledger).Error; err != nil {
				return fmt.Errorf("recording banned content: %w", err)
			}
		}
		s.logger.Info("banned account", "account", accountID, "items", len(itemIDs), "collections", len(collectionIDs), "reviews", len(reviewIDs))
		return nil
	})
	return changed, err
}

func (s *GormStore) UnbanAccount(ctx context.Context, accountID uint) (bool, error) {
	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Account{}).Where("id = ? AND banned = ?", accountID, true).Updates(map[string]any{
			"banned":    false,
			"banned_at": nil,
		})
		if res.Error != nil {
			return fmt.Errorf("unbanning account: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		changed = true

		var ledger []models.BannedContent
		if err := tx.Where("account_id = ?", accountID).Find(&ledger).Error; err != nil {
			return err
		}
		byKind := make(map[string][]uint)
		for _, bc := range ledger {
			byKind[bc.Kind] = append(byKind[bc.Kind], bc.ObjectID)
		}
		if ids := byKind[models.KindContentItem]; len(ids) > 0 {
			if err := tx.Model(&models.ContentItem{}).Where("id IN ? AND status = ?", ids, models.StatusDisabled).Updates(restoreStatus()).Error; err != nil {
				return fmt.Errorf("re-enabling content: %w", err)
			}
		}
		if ids := byKind[models.KindCollection]; len(ids) > 0 {
			if err := tx.Model(&models.Collection{}).Where("id IN ?", ids).Update("deleted", false).Error; err != nil {
				return fmt.Errorf("restoring collections: %w", err)
			}
		}
		if ids := byKind[models.KindReview]; len(ids) > 0 {
			if err := tx.Model(&models.Review{}).Where("id IN ?", ids).Update("deleted", false).Error; err != nil {
				return fmt.Errorf("restoring reviews: %w", err)
			}
		}
		return tx.Where("account_id = ?", accountID).Delete(&models.BannedContent{}).Error
	})
	return changed, err
}

// restoreStatus puts a disabled item back into the status it had before, matching
// models.ContentItem.RestoredStatus.
func restoreStatus() map[string]any {
	return map[string]any{
		"status":             gorm.Expr("COALESCE(NULLIF(pre_disable_status, ''), ?)", models.StatusApproved),
		"pre_disable_status": "",
	}
}

func (s *GormStore) DisableContentItem(ctx context.Context, itemID uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.ContentItem{}).Where("id = ? AND status <> ?", itemID, models.StatusDisabled).Updates(map[string]any{
		"pre_disable_status": gorm.Expr("status"),
		"status":             models.StatusDisabled,
	})
	if res.Error != nil {
		return false, fmt.Errorf("disabling content item: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) EnableContentItem(ctx context.Context, itemID uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.ContentItem{}).Where("id = ? AND status = ?", itemID, models.StatusDisabled).Updates(restoreStatus())
	if res.Error != nil {
		return false, fmt.Errorf("enabling content item: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) setDeleted(ctx context.Context, model any, id uint, deleted bool) (bool, error) {
	res := s.db.WithContext(ctx).Model(model).Where("id = ? AND deleted = ?", id, !deleted).Update("deleted", deleted)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) DeleteCollection(ctx context.Context, collectionID uint) (bool, error) {
	return s.setDeleted(ctx, &models.Collection{}, collectionID, true)
}

func (s *GormStore) UndeleteCollection(ctx context.Context, collectionID uint) (bool, error) {
	return s.setDeleted(ctx, &models.Collection{}, collectionID, false)
}

func (s *GormStore) DeleteReview(ctx context.Context, reviewID uint) (bool, error) {
	return s.setDeleted(ctx, &models.Review{}, reviewID, true)
}

func (s *GormStore) UndeleteReview(ctx context.Context, reviewID uint) (bool, error) {
	return s.setDeleted(ctx, &models.Review{}, reviewID, false)
}

func (s *GormStore) VersionsForReview(ctx context.Context, itemID uint, numbers []string, reason models.ReviewReason) ([]*models.Version, error) {
	if len(numbers) == 0 {
		return nil, nil
	}
	flagged := s.db.Model(&models.HumanReviewFlag{}).Select("version_id").Where("is_active = ? AND reason = ?", true, reason)
	var out []*models.Version
	err := s.db.WithContext(ctx).
		Where("content_item_id = ? AND number IN ? AND id NOT IN (?)", itemID, numbers, flagged).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) CreateReviewFlag(ctx context.Context, flag *models.HumanReviewFlag) error {
	return s.db.WithContext(ctx).Create(flag).Error
}

func (s *GormStore) FlagLatestVersions(ctx context.Context, itemID uint, reason models.ReviewReason, skipReviewed, uniqueReason bool) ([]*models.Version, error) {
	var out []*models.Version
	db := s.db.WithContext(ctx)
	for _, channel := range []string{models.ChannelUnlisted, models.ChannelListed} {
		var v models.Version
		res := db.Where("content_item_id = ? AND channel = ?", itemID, channel).Order("id DESC").Limit(1).Find(&v)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		if skipReviewed && v.HumanReviewedAt != nil {
			continue
		}
		if uniqueReason {
			var count int64
			if err := db.Model(&models.HumanReviewFlag{}).Where("version_id = ? AND reason = ? AND is_active = ?", v.ID, reason, true).Count(&count).Error; err != nil {
				return nil, err
			}
			if count > 0 {
				continue
			}
		}
		if err := db.Create(&models.HumanReviewFlag{VersionID: v.ID, Reason: reason, IsActive: true}).Error; err != nil {
			return nil, fmt.Errorf("flagging version %d: %w", v.ID, err)
		}
		v.NeedsHumanReview = true
		out = append(out, &v)
	}
	return out, nil
}

// Record writes an audit log entry. Subjects keep the order they were given in.
func (s *GormStore) Record(ctx context.Context, code models.AuditCode, subjects []models.Subject, details map[string]any) (*models.AuditLogEntry, error) {
	entry := &models.AuditLogEntry{
		Action:  code,
		Details: datatypes.JSONMap(details),
	}
	for _, subj := range subjects {
		entry.Subjects = append(entry.Subjects, models.AuditLogSubject{Kind: subj.Kind, ObjectID: subj.ID})
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

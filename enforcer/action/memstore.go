package action

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/bluesky-social/marshal/models"

	"gorm.io/datatypes"
)

// MemStore is an in-process Store and AuditLog, for tests and dry runs. It follows the same rules as
// the database backed store, including the ban cascade.
type MemStore struct {
	lk sync.Mutex

	Accounts    map[uint]*models.Account
	Items       map[uint]*models.ContentItem
	Versions    map[uint]*models.Version
	Collections map[uint]*models.Collection
	Reviews     map[uint]*models.Review
	// content item ID to author account IDs, in position order
	Authors map[uint][]uint

	Flags   []*models.HumanReviewFlag
	Entries []*models.AuditLogEntry
	Banned  []*models.BannedContent

	lastID uint
}

var _ Store = (*MemStore)(nil)
var _ AuditLog = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		Accounts:    make(map[uint]*models.Account),
		Items:       make(map[uint]*models.ContentItem),
		Versions:    make(map[uint]*models.Version),
		Collections: make(map[uint]*models.Collection),
		Reviews:     make(map[uint]*models.Review),
		Authors:     make(map[uint][]uint),
	}
}

func (s *MemStore) AddAccount(a *models.Account) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.Accounts[a.ID] = a
}

func (s *MemStore) AddContentItem(item *models.ContentItem, authors ...*models.Account) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.Items[item.ID] = item
	for _, a := range authors {
		s.Accounts[a.ID] = a
		s.Authors[item.ID] = append(s.Authors[item.ID], a.ID)
	}
}

func (s *MemStore) AddVersion(v *models.Version) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.Versions[v.ID] = v
}

func (s *MemStore) AddCollection(c *models.Collection) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.Collections[c.ID] = c
}

func (s *MemStore) AddReview(r *models.Review) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.Reviews[r.ID] = r
}

func (s *MemStore) nextID() uint {
	s.lastID++
	return s.lastID
}

func (s *MemStore) BanAccount(ctx context.Context, accountID uint) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	acct, ok := s.Accounts[accountID]
	if !ok {
		return false, fmt.Errorf("account %d not found", accountID)
	}
	if acct.Banned {
		return false, nil
	}
	now := time.Now()
	acct.Banned = true
	acct.BannedAt = &now

	ledger := func(kind string, id uint) {
		s.Banned = append(s.Banned, &models.BannedContent{ID: s.nextID(), CreatedAt: now, AccountID: accountID, Kind: kind, ObjectID: id})
	}
	for itemID, authors := range s.Authors {
		item := s.Items[itemID]
		if item == nil || len(authors) != 1 || authors[0] != accountID || item.Status == models.StatusDisabled {
			continue
		}
		item.PreDisableStatus = item.Status
		item.Status = models.StatusDisabled
		ledger(models.KindContentItem, itemID)
	}
	for _, c := range s.Collections {
		if c.AuthorID == accountID && !c.Deleted {
			c.Deleted = true
			ledger(models.KindCollection, c.ID)
		}
	}
	for _, r := range s.Reviews {
		if r.UserID == accountID && !r.Deleted {
			r.Deleted = true
			ledger(models.KindReview, r.ID)
		}
	}
	return true, nil
}

func (s *MemStore) UnbanAccount(ctx context.Context, accountID uint) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	acct, ok := s.Accounts[accountID]
	if !ok {
		return false, fmt.Errorf("account %d not found", accountID)
	}
	if !acct.Banned {
		return false, nil
	}
	acct.Banned = false
	acct.BannedAt = nil

	var kept []*models.BannedContent
	for _, bc := range s.Banned {
		if bc.AccountID != accountID {
			kept = append(kept, bc)
			continue
		}
		switch bc.Kind {
		case models.KindContentItem:
			if item := s.Items[bc.ObjectID]; item != nil && item.Status == models.StatusDisabled {
				item.Status = item.RestoredStatus()
				item.PreDisableStatus = ""
			}
		case models.KindCollection:
			if c := s.Collections[bc.ObjectID]; c != nil {
				c.Deleted = false
			}
		case models.KindReview:
			if r := s.Reviews[bc.ObjectID]; r != nil {
				r.Deleted = false
			}
		}
	}
	s.Banned = kept
	return true, nil
}

func (s *MemStore) DisableContentItem(ctx context.Context, itemID uint) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	item, ok := s.Items[itemID]
	if !ok {
		return false, fmt.Errorf("content item %d not found", itemID)
	}
	if item.Status == models.StatusDisabled {
		return false, nil
	}
	item.PreDisableStatus = item.Status
	item.Status = models.StatusDisabled
	return true, nil
}

func (s *MemStore) EnableContentItem(ctx context.Context, itemID uint) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	item, ok := s.Items[itemID]
	if !ok {
		return false, fmt.Errorf("content item %d not found", itemID)
	}
	if item.Status != models.StatusDisabled {
		return false, nil
	}
	item.Status = item.RestoredStatus()
	item.PreDisableStatus = ""
	return true, nil
}

func (s *MemStore) setCollectionDeleted(id uint, deleted bool) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	c, ok := s.Collections[id]
	if !ok {
		return false, fmt.Errorf("collection %d not found", id)
	}
	if c.Deleted == deleted {
		return false, nil
	}
	c.Deleted = deleted
	return true, nil
}

func (s *MemStore) DeleteCollection(ctx context.Context, collectionID uint) (bool, error) {
	return s.setCollectionDeleted(collectionID, true)
}

func (s *MemStore) UndeleteCollection(ctx context.Context, collectionID uint) (bool, error) {
	return s.setCollectionDeleted(collectionID, false)
}

func (s *MemStore) setReviewDeleted(id uint, deleted bool) (bool, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	r, ok := s.Reviews[id]
	if !ok {
		return false, fmt.Errorf("review %d not found", id)
	}
	if r.Deleted == deleted {
		return false, nil
	}
	r.Deleted = deleted
	return true, nil
}

func (s *MemStore) DeleteReview(ctx context.Context, reviewID uint) (bool, error) {
	return s.setReviewDeleted(reviewID, true)
}

func (s *MemStore) UndeleteReview(ctx context.Context, reviewID uint) (bool, error) {
	return s.setReviewDeleted(reviewID, false)
}

func (s *MemStore) hasActiveFlag(versionID uint, reason models.ReviewReason) bool {
	return slices.ContainsFunc(s.Flags, func(f *models.HumanReviewFlag) bool {
		return f.IsActive && f.VersionID == versionID && f.Reason == reason
	})
}

func (s *MemStore) itemVersions(itemID uint) []*models.Version {
	var out []*models.Version
	for _, v := range s.Versions {
		if v.ContentItemID == itemID {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(x, y *models.Version) int { return cmp.Compare(x.ID, y.ID) })
	return out
}

func (s *MemStore) VersionsForReview(ctx context.Context, itemID uint, numbers []string, reason models.ReviewReason) ([]*models.Version, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	var out []*models.Version
	for _, v := range s.itemVersions(itemID) {
		if slices.Contains(numbers, v.Number) && !s.hasActiveFlag(v.ID, reason) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *MemStore) CreateReviewFlag(ctx context.Context, flag *models.HumanReviewFlag) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.createFlag(flag)
}

func (s *MemStore) createFlag(flag *models.HumanReviewFlag) error {
	if flag.IsActive && s.hasActiveFlag(flag.VersionID, flag.Reason) {
		return fmt.Errorf("version %d already has an active flag for reason %d", flag.VersionID, flag.Reason)
	}
	flag.ID = s.nextID()
	flag.CreatedAt = time.Now()
	s.Flags = append(s.Flags, flag)
	if v := s.Versions[flag.VersionID]; v != nil && flag.IsActive {
		v.NeedsHumanReview = true
	}
	return nil
}

func (s *MemStore) FlagLatestVersions(ctx context.Context, itemID uint, reason models.ReviewReason, skipReviewed, uniqueReason bool) ([]*models.Version, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	versions := s.itemVersions(itemID)
	var out []*models.Version
	for _, channel := range []string{models.ChannelUnlisted, models.ChannelListed} {
		var latest *models.Version
		for _, v := range versions {
			if v.Channel == channel {
				latest = v
			}
		}
		if latest == nil {
			continue
		}
		if skipReviewed && latest.HumanReviewedAt != nil {
			continue
		}
		if uniqueReason && s.hasActiveFlag(latest.ID, reason) {
			continue
		}
		if err := s.createFlag(&models.HumanReviewFlag{VersionID: latest.ID, Reason: reason, IsActive: true}); err != nil {
			return nil, err
		}
		out = append(out, latest)
	}
	return out, nil
}

func (s *MemStore) Record(ctx context.Context, code models.AuditCode, subjects []models.Subject, details map[string]any) (*models.AuditLogEntry, error) {
	s.lk.Lock()
	defer s.lk.Unlock()

	entry := &models.AuditLogEntry{
		ID:        s.nextID(),
		CreatedAt: time.Now(),
		Action:    code,
		Details:   datatypes.JSONMap(details),
	}
	for _, subj := range subjects {
		entry.Subjects = append(entry.Subjects, models.AuditLogSubject{ID: s.nextID(), EntryID: entry.ID, Kind: subj.Kind, ObjectID: subj.ID})
	}
	s.Entries = append(s.Entries, entry)
	return entry, nil
}

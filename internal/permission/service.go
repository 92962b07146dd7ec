// Package permission reads and writes per-user sub-account access grants.
package permission

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agency-hub/internal/model"
)

var logger = loggo.GetLogger("agencyhub.permission")

const cacheKeyPrefix = "permissions_user_"

// ChangeRequest describes one upsert of a permission record.
type ChangeRequest struct {
	// PermissionID is the record to update. When blank a new id is minted
	// and a record is created.
	PermissionID string
	UserEmail    string
	SubAccountID string
	Access       bool
}

func (r ChangeRequest) Validate() error {
	if strings.TrimSpace(r.UserEmail) == "" {
		return errors.NotValidf("empty user email")
	}
	if strings.TrimSpace(r.SubAccountID) == "" {
		return errors.NotValidf("empty sub-account id")
	}
	return nil
}

type Service struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewService returns a Service whose per-user query results live for ttl.
func NewService(db *gorm.DB, ttl time.Duration) *Service {
	return &Service{
		db:    db,
		cache: cache.New(ttl, 2*ttl),
	}
}

// ForUser returns every permission held by email, each with its sub-account
// loaded. A user without permissions yields an empty slice and no error.
func (s *Service) ForUser(ctx context.Context, email string) ([]model.Permission, error) {
	key := cacheKeyPrefix + email
	if cached, found := s.cache.Get(key); found {
		return clonePermissions(cached.([]model.Permission)), nil
	}

	var perms []model.Permission
	err := s.db.WithContext(ctx).
		Preload("SubAccount").
		Where("user_email = ?", email).
		Order("created_at").
		Find(&perms).Error
	if err != nil {
		return nil, errors.Annotatef(err, "fetching permissions for %s", email)
	}
	if perms == nil {
		perms = []model.Permission{}
	}

	s.cache.Set(key, perms, cache.DefaultExpiration)
	return clonePermissions(perms), nil
}

// Lookup resolves the permission for the (email, subAccountID) pair.
func (s *Service) Lookup(ctx context.Context, email, subAccountID string) (*model.Permission, error) {
	var perm model.Permission
	err := s.db.WithContext(ctx).
		Preload("SubAccount").
		Where("user_email = ? AND sub_account_id = ?", email, subAccountID).
		First(&perm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFoundf("permission of %s for sub-account %s", email, subAccountID)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &perm, nil
}

// Change upserts the record identified by req.PermissionID. An existing
// record only has its Access flag updated; otherwise a record is created
// for the request's (email, sub-account) pair. Creating a second record for
// a pair that already has one fails with an AlreadyExists error, and an id
// that belongs to another pair is NotValid.
func (s *Service) Change(ctx context.Context, req ChangeRequest) (*model.Permission, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.PermissionID == "" {
		req.PermissionID = uuid.NewString()
	}

	var perm model.Permission
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ?", req.PermissionID).First(&perm).Error
		switch {
		case err == nil:
			if perm.UserEmail != req.UserEmail || perm.SubAccountID != req.SubAccountID {
				return errors.NotValidf("permission %s for %s on sub-account %s", req.PermissionID, req.UserEmail, req.SubAccountID)
			}
			return tx.Model(&perm).Update("access", req.Access).Error
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		var sub model.SubAccount
		if err := tx.Where("id = ?", req.SubAccountID).First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.NotFoundf("sub-account %s", req.SubAccountID)
			}
			return err
		}

		var dup int64
		if err := tx.Model(&model.Permission{}).
			Where("user_email = ? AND sub_account_id = ?", req.UserEmail, req.SubAccountID).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return errors.AlreadyExistsf("permission of %s for sub-account %s", req.UserEmail, req.SubAccountID)
		}

		perm = model.Permission{
			ID:           req.PermissionID,
			UserEmail:    req.UserEmail,
			SubAccountID: req.SubAccountID,
			Access:       req.Access,
		}
		return tx.Omit(clause.Associations).Create(&perm).Error
	})
	// The cache may hold a stale view even when the write failed half way.
	s.cache.Delete(cacheKeyPrefix + req.UserEmail)
	if err != nil {
		return nil, errors.Annotatef(err, "changing permission %s", req.PermissionID)
	}

	if err := s.db.WithContext(ctx).Preload("SubAccount").First(&perm, "id = ?", perm.ID).Error; err != nil {
		return nil, errors.Trace(err)
	}
	logger.Debugf("permission %s: %s on %s access=%v", perm.ID, perm.UserEmail, perm.SubAccountID, perm.Access)
	return &perm, nil
}

// Invalidate drops any cached permissions of email.
func (s *Service) Invalidate(email string) {
	s.cache.Delete(cacheKeyPrefix + email)
}

func clonePermissions(perms []model.Permission) []model.Permission {
	out := make([]model.Permission, len(perms))
	copy(out, perms)
	return out
}

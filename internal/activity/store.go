// Package activity records the append-only audit trail of agency changes.
package activity

import (
	"context"
	"strings"

	"github.com/juju/errors"
	"gorm.io/gorm"

	"agency-hub/internal/model"
)

const defaultListLimit = 50

// MaxListLimit is the largest page List returns.
const MaxListLimit = 200

// Entry is one change description waiting to be written.
type Entry struct {
	Description  string
	SubAccountID string
	AgencyID     string
}

func (e Entry) Validate() error {
	if strings.TrimSpace(e.Description) == "" {
		return errors.NotValidf("empty activity description")
	}
	return nil
}

func (e Entry) record() model.ActivityLog {
	return model.ActivityLog{
		Description:  e.Description,
		SubAccountID: optional(e.SubAccountID),
		AgencyID:     optional(e.AgencyID),
	}
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	AgencyID     string
	SubAccountID string
	Limit        int
}

// Store appends and lists activity entries.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, e Entry) (*model.ActivityLog, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	rec := e.record()
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, errors.Annotate(err, "appending activity log")
	}
	return &rec, nil
}

// List returns matching entries, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]model.ActivityLog, error) {
	q := s.db.WithContext(ctx).Model(&model.ActivityLog{})
	if f.AgencyID != "" {
		// Entries written for a sub-account carry no agency id; match them
		// through the sub-account's owner.
		q = q.Where("agency_id = ? OR sub_account_id IN (?)", f.AgencyID,
			s.db.Model(&model.SubAccount{}).Select("id").Where("agency_id = ?", f.AgencyID))
	}
	if f.SubAccountID != "" {
		q = q.Where("sub_account_id = ?", f.SubAccountID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, MaxListLimit)

	var logs []model.ActivityLog
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, errors.Annotate(err, "listing activity logs")
	}
	return logs, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

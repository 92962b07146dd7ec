// Package dbtest provides throwaway in-memory databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"agency-hub/internal/database"
	"agency-hub/internal/model"
)

var seq atomic.Int64

// New opens a private in-memory database and closes it when the test ends.
func New(c *qt.C) *gorm.DB {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(c.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	db, err := database.Open(dsn)
	c.Assert(err, qt.IsNil)

	sqlDB, err := db.DB()
	c.Assert(err, qt.IsNil)
	sqlDB.SetMaxOpenConns(1)
	c.Cleanup(func() { sqlDB.Close() })
	return db
}

// Agency creates an agency with the given sub-account names.
func Agency(c *qt.C, db *gorm.DB, subAccounts ...string) (model.Agency, []model.SubAccount) {
	agency := model.Agency{ID: uuid.NewString(), Name: "Acme"}
	c.Assert(db.Create(&agency).Error, qt.IsNil)

	var subs []model.SubAccount
	for _, name := range subAccounts {
		sub := model.SubAccount{ID: uuid.NewString(), Name: name, AgencyID: agency.ID}
		c.Assert(db.Create(&sub).Error, qt.IsNil)
		subs = append(subs, sub)
	}
	return agency, subs
}

// User creates a user with password "secret" and token version 1.
func User(c *qt.C, db *gorm.DB, agencyID, email string, role model.Role) model.User {
	u := model.User{
		Email:        email,
		Name:         strings.Split(email, "@")[0],
		Password:     "secret",
		TokenVersion: 1,
		Role:         role,
		AgencyID:     agencyID,
	}
	c.Assert(db.Create(&u).Error, qt.IsNil)
	return u
}

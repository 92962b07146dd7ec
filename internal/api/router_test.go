package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agency-hub/internal/activity"
	"agency-hub/internal/api"
	"agency-hub/internal/database/dbtest"
	"agency-hub/internal/model"
	"agency-hub/internal/notify"
	"agency-hub/internal/panel"
	"agency-hub/internal/permission"
)

type env struct {
	c      *qt.C
	db     *gorm.DB
	router http.Handler
	agency model.Agency
	subs   []model.SubAccount
	owner  model.User
	admin  model.User
	member model.User
}

func newEnv(c *qt.C) *env {
	gin.SetMode(gin.TestMode)
	db := dbtest.New(c)
	agency, subs := dbtest.Agency(c, db, "North", "South")
	perms := permission.NewService(db, time.Minute)
	store := activity.NewStore(db)
	recorder := activity.NewRecorder(store, 8)
	hub := notify.NewHub()

	e := &env{
		c:      c,
		db:     db,
		agency: agency,
		subs:   subs,
		owner:  dbtest.User(c, db, agency.ID, "owner@example.com", model.RoleAgencyOwner),
		admin:  dbtest.User(c, db, agency.ID, "admin@example.com", model.RoleAgencyAdmin),
		member: dbtest.User(c, db, agency.ID, "member@example.com", model.RoleSubAccountUser),
	}
	e.router = api.NewRouter(api.Deps{
		DB:          db,
		JWTSecret:   "secret",
		Permissions: perms,
		Activity:    store,
		Recorder:    recorder,
		Panels:      panel.NewRegistry(perms, recorder, hub, time.Minute),
		Hub:         hub,
	})
	return e
}

func (e *env) login(email string) string {
	w := e.do(http.MethodPost, "/api/v1/login", "", map[string]string{"email": email, "password": "secret"})
	e.c.Assert(w.Code, qt.Equals, http.StatusOK, qt.Commentf("%s", w.Body))
	var resp struct{ Token string }
	e.c.Assert(json.Unmarshal(w.Body.Bytes(), &resp), qt.IsNil)
	return resp.Token
}

func (e *env) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		e.c.Assert(json.NewEncoder(&buf).Encode(body), qt.IsNil)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type permissionRows struct {
	Rows []struct {
		SubAccount   model.SubAccount `json:"sub_account"`
		PermissionID string           `json:"permission_id"`
		Access       bool             `json:"access"`
	} `json:"rows"`
	Busy bool `json:"busy"`
}

func (e *env) rows(token string, userID uint) permissionRows {
	w := e.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%d/permissions", userID), token, nil)
	e.c.Assert(w.Code, qt.Equals, http.StatusOK, qt.Commentf("%s", w.Body))
	var rows permissionRows
	e.c.Assert(json.Unmarshal(w.Body.Bytes(), &rows), qt.IsNil)
	return rows
}

func TestPermissionToggleFlow(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	token := e.login(e.owner.Email)
	path := fmt.Sprintf("/api/v1/users/%d/permissions/%s", e.member.ID, e.subs[0].ID)

	rows := e.rows(token, e.member.ID)
	c.Assert(rows.Rows, qt.HasLen, 2)
	for _, r := range rows.Rows {
		c.Check(r.Access, qt.IsFalse)
		c.Check(r.PermissionID, qt.Equals, "")
	}

	w := e.do(http.MethodPut, path, token, map[string]interface{}{"access": true})
	c.Assert(w.Code, qt.Equals, http.StatusOK, qt.Commentf("%s", w.Body))
	var changed struct {
		Permission     model.Permission    `json:"permission"`
		Notification   notify.Notification `json:"notification"`
		ActivityLogged bool                `json:"activity_logged"`
	}
	c.Assert(json.Unmarshal(w.Body.Bytes(), &changed), qt.IsNil)
	c.Check(changed.Permission.Access, qt.IsTrue)
	c.Check(changed.Notification, qt.Equals, notify.Success("The request completed successfully"))
	c.Check(changed.ActivityLogged, qt.IsTrue)

	rows = e.rows(token, e.member.ID)
	c.Check(rows.Rows[0].SubAccount.Name, qt.Equals, "North")
	c.Check(rows.Rows[0].Access, qt.IsTrue)
	c.Check(rows.Rows[0].PermissionID, qt.Equals, changed.Permission.ID)

	w = e.do(http.MethodPut, path, token, map[string]interface{}{
		"access": false, "permission_id": changed.Permission.ID,
	})
	c.Assert(w.Code, qt.Equals, http.StatusOK, qt.Commentf("%s", w.Body))

	var count int64
	c.Assert(e.db.Model(&model.Permission{}).Count(&count).Error, qt.IsNil)
	c.Check(count, qt.Equals, int64(1))
	c.Check(e.rows(token, e.member.ID).Rows[0].Access, qt.IsFalse)

	w = e.do(http.MethodGet, "/api/v1/activity", token, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	var logs []model.ActivityLog
	c.Assert(json.Unmarshal(w.Body.Bytes(), &logs), qt.IsNil)
	c.Assert(logs, qt.HasLen, 2)
	c.Check(logs[0].Description, qt.Equals, "Access revoked from member for | North")
	c.Check(logs[1].Description, qt.Equals, "Access granted to member for | North")
}

func TestSubAccountScopeSkipsActivity(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	token := e.login(e.owner.Email)

	w := e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/permissions/%s?scope=subaccount", e.member.ID, e.subs[1].ID),
		token, map[string]interface{}{"access": true})
	c.Assert(w.Code, qt.Equals, http.StatusOK, qt.Commentf("%s", w.Body))
	c.Check(w.Body.String(), qt.Not(qt.Contains), "activity_logged")

	var n int64
	c.Assert(e.db.Model(&model.ActivityLog{}).Count(&n).Error, qt.IsNil)
	c.Check(n, qt.Equals, int64(0))
}

func TestPermissionPanelOwnersOnly(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	token := e.login(e.admin.Email)

	w := e.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%d/permissions", e.member.ID), token, nil)
	c.Check(w.Code, qt.Equals, http.StatusForbidden)
	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/permissions/%s", e.member.ID, e.subs[0].ID),
		token, map[string]interface{}{"access": true})
	c.Check(w.Code, qt.Equals, http.StatusForbidden)
}

func TestChangePermissionValidation(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	token := e.login(e.owner.Email)
	other, otherSubs := dbtest.Agency(c, e.db, "Elsewhere")
	outsider := dbtest.User(c, e.db, other.ID, "outsider@example.com", model.RoleSubAccountUser)

	// access is required
	w := e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/permissions/%s", e.member.ID, e.subs[0].ID), token, map[string]interface{}{})
	c.Check(w.Code, qt.Equals, http.StatusBadRequest)

	// sub-account of another agency
	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/permissions/%s", e.member.ID, otherSubs[0].ID),
		token, map[string]interface{}{"access": true})
	c.Check(w.Code, qt.Equals, http.StatusNotFound)

	// user of another agency
	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/permissions/%s", outsider.ID, e.subs[0].ID),
		token, map[string]interface{}{"access": true})
	c.Check(w.Code, qt.Equals, http.StatusNotFound)

	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/permissions/%s?scope=global", e.member.ID, e.subs[0].ID),
		token, map[string]interface{}{"access": true})
	c.Check(w.Code, qt.Equals, http.StatusBadRequest)
}

func TestUpdateUserDetails(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	token := e.login(e.owner.Email)

	// The owner has access to one sub-account; the update is logged there.
	grant := e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/permissions/%s?scope=subaccount", e.owner.ID, e.subs[0].ID),
		token, map[string]interface{}{"access": true})
	c.Assert(grant.Code, qt.Equals, http.StatusOK)
	memberGrant := e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/permissions/%s?scope=subaccount", e.member.ID, e.subs[1].ID),
		token, map[string]interface{}{"access": true})
	c.Assert(memberGrant.Code, qt.Equals, http.StatusOK)

	w := e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d", e.member.ID), token, map[string]string{
		"name": "Mia", "email": "mia@example.com", "role": "AGENCY_ADMIN",
	})
	c.Assert(w.Code, qt.Equals, http.StatusOK, qt.Commentf("%s", w.Body))

	var perm model.Permission
	c.Assert(e.db.First(&perm, "sub_account_id = ?", e.subs[1].ID).Error, qt.IsNil)
	c.Check(perm.UserEmail, qt.Equals, "mia@example.com")

	var logs []model.ActivityLog
	c.Assert(e.db.Find(&logs).Error, qt.IsNil)
	c.Assert(logs, qt.HasLen, 1)
	c.Check(logs[0].Description, qt.Equals, "Updated details of Mia")
	c.Check(*logs[0].SubAccountID, qt.Equals, e.subs[0].ID)
	c.Check(logs[0].AgencyID, qt.IsNil)

	// The misspelled admin role is not a role.
	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d", e.member.ID), token, map[string]string{
		"name": "Mia", "email": "mia@example.com", "role": "AGENCY_ADMING",
	})
	c.Check(w.Code, qt.Equals, http.StatusBadRequest)

	// Owner email is read-only.
	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d", e.owner.ID), token, map[string]string{
		"name": "Boss", "email": "boss@example.com", "role": "AGENCY_OWNER",
	})
	c.Check(w.Code, qt.Equals, http.StatusForbidden)
}

func TestAdminCannotPromoteToOwner(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	token := e.login(e.admin.Email)

	w := e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d", e.member.ID), token, map[string]string{
		"name": "member", "email": e.member.Email, "role": "AGENCY_OWNER",
	})
	c.Check(w.Code, qt.Equals, http.StatusForbidden)

	w = e.do(http.MethodPost, "/api/v1/users", token, map[string]string{
		"name": "New", "email": "new@example.com", "password": "longenough", "role": "AGENCY_OWNER",
	})
	c.Check(w.Code, qt.Equals, http.StatusForbidden)

	w = e.do(http.MethodPost, "/api/v1/users", token, map[string]string{
		"name": "New", "email": "new@example.com", "password": "longenough", "role": "SUBACCOUNT_GUEST",
	})
	c.Assert(w.Code, qt.Equals, http.StatusCreated, qt.Commentf("%s", w.Body))
	c.Check(e.login("new@example.com"), qt.Not(qt.Equals), "")
}

func TestSubAccountVisibility(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	ownerToken := e.login(e.owner.Email)
	memberToken := e.login(e.member.Email)

	var subs []model.SubAccount
	w := e.do(http.MethodGet, "/api/v1/subaccounts", memberToken, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(w.Body.Bytes(), &subs), qt.IsNil)
	c.Check(subs, qt.HasLen, 0)

	w = e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/permissions/%s", e.member.ID, e.subs[1].ID),
		ownerToken, map[string]interface{}{"access": true})
	c.Assert(w.Code, qt.Equals, http.StatusOK)

	w = e.do(http.MethodGet, "/api/v1/subaccounts", memberToken, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Assert(json.Unmarshal(w.Body.Bytes(), &subs), qt.IsNil)
	c.Assert(subs, qt.HasLen, 1)
	c.Check(subs[0].Name, qt.Equals, "South")

	// Sub-account users only see the activity of granted sub-accounts.
	c.Check(e.do(http.MethodGet, "/api/v1/activity", memberToken, nil).Code, qt.Equals, http.StatusBadRequest)
	c.Check(e.do(http.MethodGet, "/api/v1/activity?subaccount_id="+e.subs[0].ID, memberToken, nil).Code, qt.Equals, http.StatusForbidden)
	c.Check(e.do(http.MethodGet, "/api/v1/activity?subaccount_id="+e.subs[1].ID, memberToken, nil).Code, qt.Equals, http.StatusOK)

	w = e.do(http.MethodGet, "/api/v1/subaccounts", ownerToken, nil)
	c.Assert(json.Unmarshal(w.Body.Bytes(), &subs), qt.IsNil)
	c.Check(subs, qt.HasLen, 2)
}

func TestCreateSubAccountLogsActivity(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	token := e.login(e.admin.Email)

	w := e.do(http.MethodPost, "/api/v1/subaccounts", token, map[string]string{"name": "East"})
	c.Assert(w.Code, qt.Equals, http.StatusCreated, qt.Commentf("%s", w.Body))
	c.Check(w.Body.String(), qt.Contains, `"activity_logged":true`)

	var logs []model.ActivityLog
	c.Assert(e.db.Find(&logs).Error, qt.IsNil)
	c.Assert(logs, qt.HasLen, 1)
	c.Check(logs[0].Description, qt.Equals, "Created sub-account | East")
}

func TestChangePermissionRejectsForeignPermissionID(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	token := e.login(e.owner.Email)
	other, otherSubs := dbtest.Agency(c, e.db, "Elsewhere")
	victim := dbtest.User(c, e.db, other.ID, "victim@example.com", model.RoleSubAccountUser)
	c.Assert(e.db.Create(&model.Permission{
		ID: "foreign-perm", UserEmail: victim.Email, SubAccountID: otherSubs[0].ID, Access: true,
	}).Error, qt.IsNil)

	w := e.do(http.MethodPut, fmt.Sprintf("/api/v1/users/%d/permissions/%s", e.member.ID, e.subs[0].ID),
		token, map[string]interface{}{"access": false, "permission_id": "foreign-perm"})
	c.Assert(w.Code, qt.Equals, http.StatusBadRequest, qt.Commentf("%s", w.Body))
	c.Check(w.Body.String(), qt.Not(qt.Contains), "victim@example.com")

	var foreign model.Permission
	c.Assert(e.db.First(&foreign, "id = ?", "foreign-perm").Error, qt.IsNil)
	c.Check(foreign.Access, qt.IsTrue)

	var n int64
	c.Assert(e.db.Model(&model.ActivityLog{}).Count(&n).Error, qt.IsNil)
	c.Check(n, qt.Equals, int64(0))
	c.Check(e.rows(token, e.member.ID).Rows[0].Access, qt.IsFalse)
}

func TestActivityLimitIsBounded(t *testing.T) {
	c := qt.New(t)
	e := newEnv(c)
	token := e.login(e.owner.Email)
	logs := make([]model.ActivityLog, activity.MaxListLimit+1)
	for i := range logs {
		logs[i] = model.ActivityLog{Description: "bulk", AgencyID: &e.agency.ID}
	}
	c.Assert(e.db.CreateInBatches(logs, 100).Error, qt.IsNil)

	w := e.do(http.MethodGet, "/api/v1/activity?limit=100000000", token, nil)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	var got []model.ActivityLog
	c.Assert(json.Unmarshal(w.Body.Bytes(), &got), qt.IsNil)
	c.Check(got, qt.HasLen, activity.MaxListLimit)

	c.Check(e.do(http.MethodGet, "/api/v1/activity?limit=-1", token, nil).Code, qt.Equals, http.StatusBadRequest)
}

package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gin-gonic/gin"

	"agency-hub/internal/api/middleware"
	"agency-hub/internal/database/dbtest"
	"agency-hub/internal/model"
)

const secret = "test-secret"

func router(c *qt.C) (*gin.Engine, model.User, model.User) {
	gin.SetMode(gin.TestMode)
	db := dbtest.New(c)
	agency, _ := dbtest.Agency(c, db)
	owner := dbtest.User(c, db, agency.ID, "owner@example.com", model.RoleAgencyOwner)
	guest := dbtest.User(c, db, agency.ID, "guest@example.com", model.RoleSubAccountGuest)

	r := gin.New()
	auth := r.Group("/", middleware.AuthMiddleware(db, secret))
	auth.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": middleware.ActorFrom(c).Email})
	})
	auth.GET("/owners", middleware.RoleCheck(model.RoleAgencyOwner), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, owner, guest
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	c := qt.New(t)
	r, owner, _ := router(c)

	c.Check(do(r, "/me", "").Code, qt.Equals, http.StatusUnauthorized)
	c.Check(do(r, "/me", "garbage").Code, qt.Equals, http.StatusUnauthorized)

	token, err := middleware.NewToken(owner, secret, time.Hour)
	c.Assert(err, qt.IsNil)
	w := do(r, "/me", token)
	c.Assert(w.Code, qt.Equals, http.StatusOK)
	c.Check(w.Body.String(), qt.JSONEquals, map[string]string{"email": "owner@example.com"})

	// Query parameter works for websocket clients.
	c.Check(do(r, "/me?token="+token, "").Code, qt.Equals, http.StatusOK)

	other, err := middleware.NewToken(owner, "other-secret", time.Hour)
	c.Assert(err, qt.IsNil)
	c.Check(do(r, "/me", other).Code, qt.Equals, http.StatusUnauthorized)

	expired, err := middleware.NewToken(owner, secret, -time.Minute)
	c.Assert(err, qt.IsNil)
	c.Check(do(r, "/me", expired).Code, qt.Equals, http.StatusUnauthorized)
}

func TestTokenVersionMismatch(t *testing.T) {
	c := qt.New(t)
	r, owner, _ := router(c)

	owner.TokenVersion++
	token, err := middleware.NewToken(owner, secret, time.Hour)
	c.Assert(err, qt.IsNil)
	c.Check(do(r, "/me", token).Code, qt.Equals, http.StatusUnauthorized)
}

func TestRoleCheck(t *testing.T) {
	c := qt.New(t)
	r, owner, guest := router(c)

	ownerToken, err := middleware.NewToken(owner, secret, time.Hour)
	c.Assert(err, qt.IsNil)
	guestToken, err := middleware.NewToken(guest, secret, time.Hour)
	c.Assert(err, qt.IsNil)

	c.Check(do(r, "/owners", ownerToken).Code, qt.Equals, http.StatusNoContent)
	c.Check(do(r, "/owners", guestToken).Code, qt.Equals, http.StatusForbidden)
}

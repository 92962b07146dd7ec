package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"agency-hub/internal/api/middleware"
	"agency-hub/internal/model"
	"agency-hub/internal/panel"
)

// PermissionRow is one toggle of the permission panel.
type PermissionRow struct {
	SubAccount   model.SubAccount `json:"sub_account"`
	PermissionID string           `json:"permission_id,omitempty"`
	Access       bool             `json:"access"`
}

func panelFor(c *gin.Context, db *gorm.DB, panels *panel.Registry) (*panel.Panel, bool, error) {
	actor := middleware.ActorFrom(c)
	target, err := findAgencyUser(c, db, actor)
	if err != nil {
		return nil, false, err
	}
	scope, err := panel.ParseScope(c.Query("scope"))
	if err != nil {
		return nil, false, err
	}
	p, created := panels.Panel(actor.UserID, panel.Target{Email: target.Email, Name: target.Name}, scope)
	return p, created, nil
}

// GetUserPermissions reloads the panel of the target user and returns one
// row per sub-account of the agency.
func GetUserPermissions(db *gorm.DB, panels *panel.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _, err := panelFor(c, db, panels)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if err := p.Load(c.Request.Context()); err != nil {
			abortWithError(c, err)
			return
		}

		actor := middleware.ActorFrom(c)
		var subs []model.SubAccount
		if err := db.Where("agency_id = ?", actor.AgencyID).Order("name").Find(&subs).Error; err != nil {
			abortWithError(c, err)
			return
		}

		state := p.State()
		rows := make([]PermissionRow, len(subs))
		for i, sub := range subs {
			rows[i] = PermissionRow{SubAccount: sub}
			if perm := model.FindPermission(state.Permissions, sub.ID); perm != nil {
				rows[i].PermissionID = perm.ID
				rows[i].Access = perm.Access
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"rows":    rows,
			"loading": state.Loading,
			"busy":    p.Busy(),
		})
	}
}

// ChangeUserPermission toggles the target user's access to one sub-account.
func ChangeUserPermission(db *gorm.DB, panels *panel.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Access       *bool  `json:"access" binding:"required"`
			PermissionID string `json:"permission_id"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		actor := middleware.ActorFrom(c)
		subAccountID := c.Param("subAccountId")
		var sub model.SubAccount
		if err := db.Where("id = ? AND agency_id = ?", subAccountID, actor.AgencyID).First(&sub).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = errors.NotFoundf("sub-account %s", subAccountID)
			}
			abortWithError(c, err)
			return
		}

		p, created, err := panelFor(c, db, panels)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if created {
			if err := p.Load(c.Request.Context()); err != nil {
				abortWithError(c, err)
				return
			}
		}

		res, err := p.ChangePermission(c.Request.Context(), actor, sub.ID, *input.Access, input.PermissionID)
		if err != nil {
			c.JSON(statusFor(err), gin.H{
				"error":        errorMessage(err),
				"notification": res.Notification,
			})
			return
		}

		body := gin.H{
			"permission":   res.Permission,
			"notification": res.Notification,
		}
		if res.Activity != nil {
			body["activity_logged"] = res.Activity.Stored()
		}
		c.JSON(http.StatusOK, body)
	}
}

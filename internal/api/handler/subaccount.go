package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"agency-hub/internal/activity"
	"agency-hub/internal/api/middleware"
	"agency-hub/internal/model"
)

// ListSubAccounts returns the sub-accounts visible to the actor: all of the
// agency for agency roles, the granted ones otherwise.
func ListSubAccounts(db *gorm.DB, perms PermissionLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFrom(c)
		q := db.Where("agency_id = ?", actor.AgencyID).Order("name")
		if !actor.Role.AgencyScoped() {
			granted, err := perms.ForUser(c.Request.Context(), actor.Email)
			if err != nil {
				abortWithError(c, err)
				return
			}
			ids := []string{}
			for _, p := range granted {
				if p.Access {
					ids = append(ids, p.SubAccountID)
				}
			}
			q = q.Where("id IN ?", ids)
		}

		var subs []model.SubAccount
		if err := q.Find(&subs).Error; err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, subs)
	}
}

func CreateSubAccount(db *gorm.DB, recorder *activity.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		actor := middleware.ActorFrom(c)
		sub := model.SubAccount{
			ID:       uuid.NewString(),
			Name:     input.Name,
			AgencyID: actor.AgencyID,
		}
		if err := db.Create(&sub).Error; err != nil {
			abortWithError(c, err)
			return
		}

		receipt := recorder.Record(c.Request.Context(), activity.Entry{
			Description:  fmt.Sprintf("Created sub-account | %s", sub.Name),
			SubAccountID: sub.ID,
			AgencyID:     actor.AgencyID,
		})
		c.JSON(http.StatusCreated, gin.H{"sub_account": sub, "activity_logged": receipt.Stored()})
	}
}

package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"gorm.io/gorm"

	"agency-hub/internal/activity"
	"agency-hub/internal/api/middleware"
	"agency-hub/internal/model"
	"agency-hub/internal/notify"
)

// PermissionLister is what the user handlers need from the permission service.
type PermissionLister interface {
	ForUser(ctx context.Context, email string) ([]model.Permission, error)
	Invalidate(email string)
}

// findAgencyUser loads the user named by the :id parameter, limited to the
// actor's agency.
func findAgencyUser(c *gin.Context, db *gorm.DB, actor *model.Actor) (*model.User, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return nil, errors.NotValidf("user id %q", c.Param("id"))
	}
	var user model.User
	err = db.WithContext(c.Request.Context()).
		Where("id = ? AND agency_id = ?", id, actor.AgencyID).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFoundf("user %d", id)
	}
	return &user, errors.Trace(err)
}

func ListUsers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := middleware.ActorFrom(c)
		var users []model.User
		if err := db.Where("agency_id = ?", actor.AgencyID).Order("id").Find(&users).Error; err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, users)
	}
}

func CreateUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email      string `json:"email" binding:"required,email"`
			Name       string `json:"name" binding:"required"`
			Password   string `json:"password" binding:"required,min=8"`
			Role       string `json:"role" binding:"required"`
			AvatarURL  string `json:"avatar_url"`
			TelegramID int64  `json:"telegram_id"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		role, err := model.ParseRole(input.Role)
		if err != nil {
			abortWithError(c, err)
			return
		}

		actor := middleware.ActorFrom(c)
		// New users are treated as guests being promoted.
		if !actor.Role.CanAssign(model.RoleSubAccountGuest, role) {
			abortWithError(c, errors.Forbiddenf("%s cannot create %s users", actor.Role, role))
			return
		}

		user := model.User{
			Email:        input.Email,
			Name:         input.Name,
			Password:     input.Password, // BeforeCreate hook will hash this
			TokenVersion: 1,
			Role:         role,
			AgencyID:     actor.AgencyID,
			AvatarURL:    input.AvatarURL,
			TelegramID:   input.TelegramID,
		}
		var existing int64
		if err := db.Model(&model.User{}).Where("email = ?", input.Email).Count(&existing).Error; err != nil {
			abortWithError(c, err)
			return
		}
		if existing > 0 {
			abortWithError(c, errors.AlreadyExistsf("user %s", input.Email))
			return
		}
		if err := db.Create(&user).Error; err != nil {
			abortWithError(c, errors.Annotate(err, "Could not create user"))
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

// UpdateUserDetails saves the details form of a user and records one
// activity entry for every sub-account the acting user can access.
func UpdateUserDetails(db *gorm.DB, perms PermissionLister, recorder *activity.Recorder, onEmailChange func(old string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name      string `json:"name" binding:"required"`
			Email     string `json:"email" binding:"required,email"`
			AvatarURL string `json:"avatar_url"`
			Role      string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		role, err := model.ParseRole(input.Role)
		if err != nil {
			abortWithError(c, err)
			return
		}

		actor := middleware.ActorFrom(c)
		user, err := findAgencyUser(c, db, actor)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if user.Role == model.RoleAgencyOwner && input.Email != user.Email {
			abortWithError(c, errors.Forbiddenf("the email of an agency owner is read-only"))
			return
		}
		if role != user.Role && !actor.Role.CanAssign(user.Role, role) {
			abortWithError(c, errors.Forbiddenf("%s cannot change a %s into %s", actor.Role, user.Role, role))
			return
		}

		oldEmail := user.Email
		err = db.Transaction(func(tx *gorm.DB) error {
			if input.Email != oldEmail {
				var taken int64
				if err := tx.Model(&model.User{}).Where("email = ? AND id <> ?", input.Email, user.ID).Count(&taken).Error; err != nil {
					return err
				}
				if taken > 0 {
					return errors.AlreadyExistsf("user %s", input.Email)
				}
				// Permissions are keyed by email and follow the user.
				if err := tx.Model(&model.Permission{}).Where("user_email = ?", oldEmail).
					Update("user_email", input.Email).Error; err != nil {
					return err
				}
			}
			return tx.Model(user).Updates(map[string]interface{}{
				"name":       input.Name,
				"email":      input.Email,
				"avatar_url": input.AvatarURL,
				"role":       role,
			}).Error
		})
		if err != nil {
			c.JSON(statusFor(err), gin.H{
				"error":        errorMessage(err),
				"notification": notify.Failure("Could not update the user's details"),
			})
			return
		}
		user.Name, user.Email, user.AvatarURL, user.Role = input.Name, input.Email, input.AvatarURL, role
		if oldEmail != input.Email {
			perms.Invalidate(oldEmail)
			perms.Invalidate(input.Email)
			if onEmailChange != nil {
				onEmailChange(oldEmail)
			}
		}

		logged := recordDetailsUpdate(c.Request.Context(), perms, recorder, actor, input.Name)
		c.JSON(http.StatusOK, gin.H{
			"user":            user,
			"notification":    notify.Success("User details updated"),
			"activity_logged": logged,
		})
	}
}

// recordDetailsUpdate writes one entry per sub-account the actor has access
// to and reports whether all of them were stored.
func recordDetailsUpdate(ctx context.Context, perms PermissionLister, recorder *activity.Recorder, actor *model.Actor, name string) bool {
	granted, err := perms.ForUser(ctx, actor.Email)
	if err != nil {
		logger.Warningf("listing permissions of %s for activity: %v", actor.Email, err)
		return false
	}
	all := true
	for _, p := range granted {
		if !p.Access {
			continue
		}
		receipt := recorder.Record(ctx, activity.Entry{
			Description:  fmt.Sprintf("Updated details of %s", name),
			SubAccountID: p.SubAccountID,
		})
		all = all && receipt.Stored()
	}
	return all
}

func errorMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		logger.Errorf("%v", errors.Details(err))
		return "internal error"
	}
	return err.Error()
}

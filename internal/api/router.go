// Package api assembles the HTTP routes of the service.
package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agency-hub/internal/activity"
	"agency-hub/internal/api/handler"
	"agency-hub/internal/api/middleware"
	"agency-hub/internal/model"
	"agency-hub/internal/notify"
	"agency-hub/internal/panel"
	"agency-hub/internal/permission"
)

// Deps are the collaborators shared by the handlers.
type Deps struct {
	DB          *gorm.DB
	JWTSecret   string
	Permissions *permission.Service
	Activity    *activity.Store
	Recorder    *activity.Recorder
	Panels      *panel.Registry
	Hub         *notify.Hub
	// OnAlertChatChange is called after the Telegram settings are saved.
	OnAlertChatChange func(chatID int64)
}

func NewRouter(d Deps) *gin.Engine {
	ginRouter := gin.Default()
	ginRouter.Use(middleware.CORSMiddleware())

	owner := middleware.RoleCheck(model.RoleAgencyOwner)
	managers := middleware.RoleCheck(model.RoleAgencyOwner, model.RoleAgencyAdmin)

	public := ginRouter.Group("/api/v1")
	{
		public.POST("/login", handler.Login(d.DB, d.JWTSecret))
	}

	auth := ginRouter.Group("/api/v1")
	auth.Use(middleware.AuthMiddleware(d.DB, d.JWTSecret))
	{
		// Users
		auth.GET("/users", managers, handler.ListUsers(d.DB))
		auth.POST("/users", managers, handler.CreateUser(d.DB))
		auth.PUT("/users/:id", managers, handler.UpdateUserDetails(d.DB, d.Permissions, d.Recorder, d.Panels.Forget))
		auth.PUT("/me/password", handler.ChangePassword(d.DB))

		// Permission panel, owners only
		auth.GET("/users/:id/permissions", owner, handler.GetUserPermissions(d.DB, d.Panels))
		auth.PUT("/users/:id/permissions/:subAccountId", owner, handler.ChangeUserPermission(d.DB, d.Panels))

		// Sub-accounts
		auth.GET("/subaccounts", handler.ListSubAccounts(d.DB, d.Permissions))
		auth.POST("/subaccounts", managers, handler.CreateSubAccount(d.DB, d.Recorder))

		// Activity
		auth.GET("/activity", handler.ListActivity(d.Activity, d.Permissions))

		// Config
		auth.GET("/config/telegram", owner, handler.GetTelegramConfig(d.DB))
		auth.PUT("/config/telegram", owner, handler.UpdateTelegramConfig(d.DB, d.OnAlertChatChange))
	}

	ws := ginRouter.Group("/ws")
	ws.Use(middleware.AuthMiddleware(d.DB, d.JWTSecret))
	{
		ws.GET("/notifications", handler.Notifications(d.Hub))
	}

	return ginRouter
}

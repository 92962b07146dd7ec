package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"agency-hub/internal/database"
	"agency-hub/internal/model"
)

// GetTelegramConfig retrieves the Telegram settings from the database.
func GetTelegramConfig(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"bot_token":     database.ConfigValue(db, model.ConfigKeyTelegramBotToken),
			"web_app_url":   database.ConfigValue(db, model.ConfigKeyTelegramWebAppURL),
			"alert_chat_id": database.ConfigValue(db, model.ConfigKeyTelegramAlertChatID),
		})
	}
}

// UpdateTelegramConfig stores the Telegram settings. onChange is called with
// the new alert chat so running forwarders can pick it up.
func UpdateTelegramConfig(db *gorm.DB, onChange func(alertChatID int64)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			BotToken    string `json:"bot_token"`
			WebAppURL   string `json:"web_app_url"`
			AlertChatID string `json:"alert_chat_id"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var chatID int64
		if input.AlertChatID != "" {
			var err error
			if chatID, err = strconv.ParseInt(input.AlertChatID, 10, 64); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert chat ID"})
				return
			}
		}

		for key, value := range map[string]string{
			model.ConfigKeyTelegramBotToken:    input.BotToken,
			model.ConfigKeyTelegramWebAppURL:   input.WebAppURL,
			model.ConfigKeyTelegramAlertChatID: input.AlertChatID,
		} {
			if err := database.SetConfigValue(db, key, value); err != nil {
				abortWithError(c, err)
				return
			}
		}
		if onChange != nil {
			onChange(chatID)
		}

		c.JSON(http.StatusOK, gin.H{"message": "Telegram configuration updated successfully"})
	}
}

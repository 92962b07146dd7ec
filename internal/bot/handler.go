package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/telebot.v3"
	"gorm.io/gorm"

	"agency-hub/internal/activity"
	"agency-hub/internal/model"
)

var logger = loggo.GetLogger("agencyhub.bot")

const activityReportSize = 5

// BotHandler holds the bot instance and configuration
type BotHandler struct {
	Bot       *telebot.Bot
	WebAppURL string // URL where the frontend is hosted, e.g., "https://yourdomain.com/app"

	db    *gorm.DB
	store *activity.Store
}

// NewBotHandler initializes and returns a new BotHandler
func NewBotHandler(token, webAppURL string, db *gorm.DB, store *activity.Store) (*BotHandler, error) {
	pref := telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create bot")
	}

	handler := &BotHandler{
		Bot:       b,
		WebAppURL: webAppURL,
		db:        db,
		store:     store,
	}

	handler.setupHandlers()
	return handler, nil
}

func (h *BotHandler) setupHandlers() {
	h.Bot.Handle("/start", h.handleStart)
	h.Bot.Handle("/activity", h.handleActivity)
}

// handleStart responds to the /start command with a Web App button
func (h *BotHandler) handleStart(c telebot.Context) error {
	webAppButton := telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{
			{
				telebot.InlineButton{
					Text:   "Open Agency Hub",
					WebApp: &telebot.WebApp{URL: h.WebAppURL},
				},
			},
		},
	}

	message := fmt.Sprintf("Welcome to Agency Hub, %s! Use the button below to manage your agency.", c.Sender().FirstName)
	return c.Send(message, &webAppButton)
}

func (h *BotHandler) handleActivity(c telebot.Context) error {
	report, err := h.activityReport(context.Background(), c.Sender().ID)
	if err != nil {
		logger.Warningf("activity report for telegram user %d: %v", c.Sender().ID, err)
		if errors.Is(err, errors.NotFound) {
			return c.Send("Your Telegram account is not linked to an Agency Hub user.")
		}
		return c.Send("Could not load recent activity.")
	}
	return c.Send(report)
}

// activityReport renders the latest activity of the agency of the user
// linked to telegramID.
func (h *BotHandler) activityReport(ctx context.Context, telegramID int64) (string, error) {
	var user model.User
	err := h.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", errors.NotFoundf("user with telegram id %d", telegramID)
	}
	if err != nil {
		return "", errors.Trace(err)
	}
	if !user.Role.AgencyScoped() {
		return "", errors.Forbiddenf("%s cannot read the agency activity", user.Role)
	}

	logs, err := h.store.List(ctx, activity.Filter{AgencyID: user.AgencyID, Limit: activityReportSize})
	if err != nil {
		return "", errors.Trace(err)
	}
	if len(logs) == 0 {
		return "No activity yet.", nil
	}
	var b strings.Builder
	b.WriteString("Recent activity:\n")
	for _, l := range logs {
		fmt.Fprintf(&b, "• %s  %s\n", l.CreatedAt.Format("2006-01-02 15:04"), l.Description)
	}
	return b.String(), nil
}

// Start starts the bot poller
func (h *BotHandler) Start() {
	h.Bot.Start()
}

// Stop stops the bot poller
func (h *BotHandler) Stop() {
	h.Bot.Stop()
}

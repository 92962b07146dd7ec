package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/juju/loggo"
	"gorm.io/gorm"

	"agency-hub/internal/activity"
	"agency-hub/internal/api"
	"agency-hub/internal/bot"
	"agency-hub/internal/config"
	"agency-hub/internal/database"
	"agency-hub/internal/model"
	"agency-hub/internal/notify"
	"agency-hub/internal/panel"
	"agency-hub/internal/permission"
)

var logger = loggo.GetLogger("agencyhub")

const configEnv = "AGENCYHUB_CONFIG"

func fatalf(format string, args ...interface{}) {
	logger.Criticalf(format, args...)
	os.Exit(1)
}

func loadOrCreateJWTSecret(path string) string {
	secretBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Infof("JWT secret file not found, generating a new one...")
			newSecret, err := generateRandomString(32)
			if err != nil {
				fatalf("failed to generate JWT secret: %v", err)
			}
			err = os.WriteFile(path, []byte(newSecret), 0600)
			if err != nil {
				fatalf("failed to write JWT secret to file: %v", err)
			}
			logger.Infof("Generated and saved new JWT secret to %s", path)
			return newSecret
		}
		fatalf("failed to read JWT secret file: %v", err)
	}
	logger.Infof("Loaded JWT secret from %s", path)
	return string(secretBytes)
}

func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// startBot wires the Telegram bot and the activity alert forwarder when a
// bot token is configured.
func startBot(db *gorm.DB, store *activity.Store, recorder *activity.Recorder) (*bot.BotHandler, *bot.AlertForwarder) {
	botToken := database.ConfigValue(db, model.ConfigKeyTelegramBotToken)
	if botToken == "" {
		logger.Infof("Telegram Bot Token not configured in DB. Skipping Telegram Bot initialization.")
		return nil, nil
	}

	botHandler, err := bot.NewBotHandler(botToken, database.ConfigValue(db, model.ConfigKeyTelegramWebAppURL), db, store)
	if err != nil {
		logger.Errorf("Failed to initialize Telegram Bot: %v", err)
		return nil, nil
	}

	var chatID int64
	if v := database.ConfigValue(db, model.ConfigKeyTelegramAlertChatID); v != "" {
		if chatID, err = strconv.ParseInt(v, 10, 64); err != nil {
			logger.Warningf("ignoring invalid %s %q", model.ConfigKeyTelegramAlertChatID, v)
			chatID = 0
		}
	}
	alerts := bot.NewAlertForwarder(botHandler.Bot, chatID)
	recorder.AddForwarder(alerts)

	go botHandler.Start()
	logger.Infof("Telegram Bot started.")
	return botHandler, alerts
}

func main() {
	configPath := os.Getenv(configEnv)
	if configPath == "" {
		configPath = "config.yaml"
	}
	conf, created, err := config.LoadOrCreate(configPath)
	if err != nil {
		fatalf("loading config: %v", err)
	}
	if err := loggo.ConfigureLoggers(conf.LogLevel); err != nil {
		fatalf("invalid log_level %q: %v", conf.LogLevel, err)
	}
	if created {
		logger.Infof("Wrote default config to %s", configPath)
	}
	logger.Infof("Agency Hub | config %s", configPath)

	if err := os.MkdirAll(conf.DataDir, 0755); err != nil {
		fatalf("creating data dir: %v", err)
	}
	db, err := database.Open(conf.Database)
	if err != nil {
		fatalf("failed to open database: %v", err)
	}
	if err := database.Bootstrap(db, conf.OwnerEmail, conf.OwnerPassword); err != nil {
		fatalf("bootstrapping database: %v", err)
	}
	jwtSecret := loadOrCreateJWTSecret(filepath.Join(conf.DataDir, ".sk"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	perms := permission.NewService(db, time.Duration(conf.PermissionCacheTTL))
	store := activity.NewStore(db)
	recorder := activity.NewRecorder(store, conf.ActivityQueueSize)
	go recorder.Run(ctx, time.Duration(conf.ActivityRetryInterval))

	hub := notify.NewHub()
	panels := panel.NewRegistry(perms, recorder, hub, time.Duration(conf.PanelIdleTimeout))

	botHandler, alerts := startBot(db, store, recorder)
	if botHandler != nil {
		defer botHandler.Stop()
	}

	router := api.NewRouter(api.Deps{
		DB:          db,
		JWTSecret:   jwtSecret,
		Permissions: perms,
		Activity:    store,
		Recorder:    recorder,
		Panels:      panels,
		Hub:         hub,
		OnAlertChatChange: func(chatID int64) {
			if alerts != nil {
				alerts.SetChat(chatID)
			}
		},
	})

	srv := &http.Server{Addr: conf.ListenAddr, Handler: router}
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
		// Give queued activity entries a last chance.
		if err := recorder.Flush(shutdownCtx); err != nil {
			logger.Errorf("%v", err)
		}
	}()

	logger.Infof("Server listening on %s", conf.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fatalf("Server failed to start: %v", err)
	}
	<-shutdownDone
}

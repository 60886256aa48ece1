// Command discordbot posts case events to a staff Discord channel. It listens on the
// Postgres case_events channel, or on the Redis events channel in lite mode.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"dhportal/main_backend/cases"
	"dhportal/main_backend/config"
	ds "dhportal/main_backend/database_service"
	"dhportal/main_backend/eventbus"
	"dhportal/main_backend/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("❌ %v", err)
	}
	log, closer, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		logrus.Fatalf("❌ %v", err)
	}
	defer closer.Close()
	entry := log.WithField("service", "discordbot")

	if cfg.DiscordBotToken == "" || cfg.DiscordChannelID == "" {
		entry.Fatal("❌ DISCORD_BOT_TOKEN and DISCORD_CHANNEL_ID must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, errs, cleanup, err := subscribe(ctx, cfg)
	if err != nil {
		entry.WithError(err).Fatal("❌ failed to subscribe to case events")
	}
	defer cleanup()

	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		entry.WithError(err).Fatal("❌ failed to create discord session")
	}
	defer session.Close()
	if err := session.Open(); err != nil {
		entry.WithError(err).Fatal("❌ failed to open discord session")
	}
	entry.Info("Discord bot session established ✨")

	r := newRelay(sessionPoster{session}, cfg.DiscordChannelID, cfg.DiscordMessagesPerMinute, entry)
	if err := r.run(ctx, events, errs); err != nil {
		entry.WithError(err).Error("relay stopped")
		return
	}
	entry.Info("relay shut down")
}

func subscribe(ctx context.Context, cfg config.Config) (<-chan cases.Event, <-chan error, func(), error) {
	switch {
	case !cfg.LiteMode():
		db, err := ds.Connect(ctx, cfg.DatabaseURL, 2)
		if err != nil {
			return nil, nil, nil, err
		}
		events, errs, err := db.ListenCaseEvents(ctx)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return events, errs, db.Close, nil
	case cfg.RedisAddr != "":
		bus := eventbus.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.EventsChannel)
		events, errs, err := bus.Subscribe(ctx)
		if err != nil {
			_ = bus.Close()
			return nil, nil, nil, err
		}
		return events, errs, func() { _ = bus.Close() }, nil
	default:
		return nil, nil, nil, errors.New("set DATABASE_URL or REDIS_ADDR")
	}
}

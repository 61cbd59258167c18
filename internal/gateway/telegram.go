package gateway

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/RexForge/quantum-habits/internal/habit"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

// TelegramConfig parameterizes the Telegram driver.
type TelegramConfig struct {
	Token     string
	ChatID    int64
	RateLimit float64 // messages per second; 0 = 1/s
	Burst     int     // 0 = 5
}

// TelegramGateway posts reminders as chat messages. A token-bucket limiter
// drops (not queues) messages over the rate; a dropped reminder is lost,
// which matches the best-effort delivery contract.
type TelegramGateway struct {
	bot     *tele.Bot
	chat    tele.Recipient
	limiter *rate.Limiter
	log     logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*TelegramGateway, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram gateway requires token and chat id")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	limit := rate.Limit(cfg.RateLimit)
	if limit <= 0 {
		limit = rate.Limit(1)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &TelegramGateway{
		bot:     b,
		chat:    tele.ChatID(cfg.ChatID),
		limiter: rate.NewLimiter(limit, burst),
		log:     log,
	}, nil
}

func (g *TelegramGateway) Post(ctx context.Context, r habit.ScheduledReminder) {
	if !g.limiter.Allow() {
		g.log.Warn("reminder dropped by rate limiter", logx.String("id", r.ID))
		return
	}
	if ctx.Err() != nil {
		return
	}

	text := Render(r)
	if habit.IsSnoozeID(r.ID) {
		text += "\n(snoozed reminder)"
	}
	start := time.Now()
	_, err := g.bot.Send(g.chat, text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		g.log.Warn("telegram send failed",
			logx.String("id", r.ID),
			logx.Int("habit_id", r.HabitID),
			logx.Err(err))
		return
	}
	g.log.Debug("reminder delivered",
		logx.String("id", r.ID),
		logx.Duration("took", time.Since(start)))
}

// Package gateway delivers fired reminders to the user. Delivery is
// best-effort: the engine has already persisted the removal, so a failed post
// is logged and dropped rather than retried into a duplicate.
package gateway

import (
	"context"
	"fmt"

	"github.com/RexForge/quantum-habits/internal/habit"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

// Gateway posts one reminder. Implementations must not block indefinitely;
// honor ctx.
type Gateway interface {
	Post(ctx context.Context, r habit.ScheduledReminder)
}

// LogGateway writes reminders to the log. Default driver for headless runs.
type LogGateway struct {
	log logx.Logger
}

func NewLog(log logx.Logger) *LogGateway { return &LogGateway{log: log} }

func (g *LogGateway) Post(ctx context.Context, r habit.ScheduledReminder) {
	g.log.Info("reminder",
		logx.String("id", r.ID),
		logx.Int("habit_id", r.HabitID),
		logx.String("habit", r.HabitName),
		logx.String("message", r.Message),
		logx.String("color", r.HabitColor),
		logx.Time("trigger_at", r.Trigger()))
}

// Render builds the user-facing text for a reminder.
func Render(r habit.ScheduledReminder) string {
	name := r.HabitName
	if name == "" {
		name = fmt.Sprintf("Habit %d", r.HabitID)
	}
	return fmt.Sprintf("🔔 %s\n%s", name, r.Message)
}

// Package server exposes the engine over JSON-RPC 2.0 on a localhost HTTP
// bridge. This is the daemon's command surface: clients (CLI, shortcuts,
// scripts) schedule, cancel, snooze, and complete through it.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/RexForge/quantum-habits/internal/engine"
	"github.com/RexForge/quantum-habits/internal/habit"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

const (
	codeInvalidParams = jrpc2.Code(-32602)
	codeStoreFailure  = jrpc2.Code(-32001)
)

// Config parameterizes the RPC endpoint.
type Config struct {
	Listen  string // host:port; default 127.0.0.1:8823
	Token   string // bearer token; empty serves unauthenticated (localhost only)
	Version string
}

// RPCServer bridges JSON-RPC methods onto the engine.
type RPCServer struct {
	cfg    Config
	eng    *engine.Engine
	log    logx.Logger
	bridge jhttp.Bridge
}

func New(cfg Config, eng *engine.Engine, log logx.Logger) *RPCServer {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8823"
	}
	rs := &RPCServer{cfg: cfg, eng: eng, log: log}

	methods := handler.Map{
		"system.getVersion": handler.New(rs.systemGetVersion),
		"reminder.schedule": handler.New(rs.reminderSchedule),
		"reminder.cancel":   handler.New(rs.reminderCancel),
		"reminder.snooze":   handler.New(rs.reminderSnooze),
		"reminder.complete": handler.New(rs.reminderComplete),
		"reminder.list":     handler.New(rs.reminderList),
	}
	rs.bridge = jhttp.NewBridge(methods, nil)
	return rs
}

// Handler returns the HTTP handler, token check included.
func (rs *RPCServer) Handler() http.Handler {
	if rs.cfg.Token == "" {
		return rs.bridge
	}
	return requireToken(rs.cfg.Token, rs.bridge)
}

// Serve runs the HTTP listener until ctx ends.
func (rs *RPCServer) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", rs.cfg.Listen)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: rs.Handler()}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	rs.log.Info("rpc listening", logx.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		_ = rs.bridge.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ---- Method params/results ----

type VersionResult struct {
	Version string `json:"version"`
}

type ScheduleParams struct {
	Habits []habit.Declaration `json:"habits"`
}

type ScheduleResult struct {
	Scheduled int      `json:"scheduled"`
	Issues    []string `json:"issues,omitempty"`
}

type HabitParam struct {
	HabitID int `json:"habitId"`
}

type CancelResult struct {
	Removed int `json:"removed"`
}

type SnoozeParams struct {
	HabitID    int    `json:"habitId"`
	ReminderID string `json:"reminderId"`
}

type SnoozeResult struct {
	Created  bool                     `json:"created"`
	Reminder *habit.ScheduledReminder `json:"reminder,omitempty"`
}

type ListResult struct {
	Reminders []habit.ScheduledReminder `json:"reminders"`
}

type EmptyResult struct{}

// ---- Methods ----

func (rs *RPCServer) systemGetVersion(_ context.Context) (*VersionResult, error) {
	return &VersionResult{Version: rs.cfg.Version}, nil
}

func (rs *RPCServer) reminderSchedule(ctx context.Context, p *ScheduleParams) (*ScheduleResult, error) {
	if len(p.Habits) == 0 {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: habits"}
	}
	for _, d := range p.Habits {
		if d.HabitID <= 0 {
			return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "habitId must be positive"}
		}
	}
	res, err := rs.eng.Schedule(ctx, p.Habits)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeStoreFailure, Message: err.Error()}
	}
	out := &ScheduleResult{Scheduled: res.Scheduled}
	for _, is := range res.Issues {
		out.Issues = append(out.Issues, is.Error())
	}
	return out, nil
}

func (rs *RPCServer) reminderCancel(ctx context.Context, p *HabitParam) (*CancelResult, error) {
	if p.HabitID <= 0 {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "habitId must be positive"}
	}
	removed, err := rs.eng.Cancel(ctx, p.HabitID)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeStoreFailure, Message: err.Error()}
	}
	return &CancelResult{Removed: removed}, nil
}

func (rs *RPCServer) reminderSnooze(ctx context.Context, p *SnoozeParams) (*SnoozeResult, error) {
	if p.HabitID <= 0 {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "habitId must be positive"}
	}
	if p.ReminderID == "" {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "missing required param: reminderId"}
	}
	sn, err := rs.eng.Snooze(ctx, p.HabitID, p.ReminderID)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeStoreFailure, Message: err.Error()}
	}
	return &SnoozeResult{Created: sn != nil, Reminder: sn}, nil
}

func (rs *RPCServer) reminderComplete(ctx context.Context, p *HabitParam) (*EmptyResult, error) {
	if p.HabitID <= 0 {
		return nil, &jrpc2.Error{Code: codeInvalidParams, Message: "habitId must be positive"}
	}
	if err := rs.eng.Complete(ctx, p.HabitID); err != nil {
		return nil, &jrpc2.Error{Code: codeStoreFailure, Message: err.Error()}
	}
	return &EmptyResult{}, nil
}

func (rs *RPCServer) reminderList(ctx context.Context) (*ListResult, error) {
	entries, err := rs.eng.List(ctx)
	if err != nil {
		return nil, &jrpc2.Error{Code: codeStoreFailure, Message: err.Error()}
	}
	if entries == nil {
		entries = []habit.ScheduledReminder{}
	}
	return &ListResult{Reminders: entries}, nil
}

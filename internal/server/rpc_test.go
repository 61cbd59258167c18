package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/RexForge/quantum-habits/internal/engine"
	"github.com/RexForge/quantum-habits/internal/habit"
	"github.com/RexForge/quantum-habits/internal/store"
	"github.com/RexForge/quantum-habits/pkg/logx"
)

// rpcCall posts one JSON-RPC request and returns the HTTP code and parsed body.
func rpcCall(t *testing.T, h http.Handler, method string, params any, token string) (int, map[string]any) {
	t.Helper()
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      1,
	}
	if params != nil {
		reqBody["params"] = params
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	resp := rr.Result()
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	var result map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatalf("unmarshal response: %v (body: %s)", err, string(body))
		}
	}
	return rr.Code, result
}

func resultOf(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	if errObj, ok := body["error"]; ok {
		t.Fatalf("rpc error: %v", errObj)
	}
	res, ok := body["result"].(map[string]any)
	if !ok {
		t.Fatalf("no result in %v", body)
	}
	return res
}

func newTestHandler(t *testing.T, token string) http.Handler {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "reminders.json"), logx.Nop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	clock := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	eng := engine.New(engine.Config{}, st, nopGateway{}, logx.Nop(),
		engine.WithClock(func() time.Time { return clock }))
	rs := New(Config{Token: token, Version: "1.2.3"}, eng, logx.Nop())
	return rs.Handler()
}

type nopGateway struct{}

func (nopGateway) Post(ctx context.Context, r habit.ScheduledReminder) {}

func scheduleParams() map[string]any {
	return map[string]any{
		"habits": []map[string]any{{
			"habitId":   1,
			"habitName": "Stretch",
			"reminders": []map[string]any{{
				"type":    "specific",
				"enabled": true,
				"times":   []string{"08:00", "20:00"},
			}},
		}},
	}
}

func TestSystemGetVersion(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "")
	code, body := rpcCall(t, h, "system.getVersion", nil, "")
	if code != http.StatusOK {
		t.Fatalf("http %d", code)
	}
	res := resultOf(t, body)
	if res["version"] != "1.2.3" {
		t.Errorf("version = %v", res["version"])
	}
}

func TestScheduleListCancelRoundTrip(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "")

	_, body := rpcCall(t, h, "reminder.schedule", scheduleParams(), "")
	res := resultOf(t, body)
	if res["scheduled"] != float64(2) {
		t.Fatalf("scheduled = %v", res["scheduled"])
	}

	_, body = rpcCall(t, h, "reminder.list", nil, "")
	res = resultOf(t, body)
	reminders, ok := res["reminders"].([]any)
	if !ok || len(reminders) != 2 {
		t.Fatalf("reminders = %v", res["reminders"])
	}

	_, body = rpcCall(t, h, "reminder.cancel", map[string]any{"habitId": 1}, "")
	res = resultOf(t, body)
	if res["removed"] != float64(2) {
		t.Fatalf("removed = %v", res["removed"])
	}

	_, body = rpcCall(t, h, "reminder.list", nil, "")
	res = resultOf(t, body)
	if reminders, _ := res["reminders"].([]any); len(reminders) != 0 {
		t.Fatalf("reminders after cancel = %v", res["reminders"])
	}
}

func TestSnoozeViaRPC(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "")
	rpcCall(t, h, "reminder.schedule", scheduleParams(), "")

	_, body := rpcCall(t, h, "reminder.snooze",
		map[string]any{"habitId": 1, "reminderId": "habit-1-reminder-0-time-0"}, "")
	res := resultOf(t, body)
	if res["created"] != true {
		t.Fatalf("created = %v", res["created"])
	}
	rem, ok := res["reminder"].(map[string]any)
	if !ok {
		t.Fatalf("reminder = %v", res["reminder"])
	}
	if id, _ := rem["id"].(string); id != "habit-1-reminder-0-time-0_snooze" {
		t.Errorf("snooze id = %v", rem["id"])
	}

	// Unknown habit: created=false, no error.
	_, body = rpcCall(t, h, "reminder.snooze",
		map[string]any{"habitId": 99, "reminderId": "habit-99-reminder-0-time-0"}, "")
	res = resultOf(t, body)
	if res["created"] != false {
		t.Errorf("unknown habit created = %v", res["created"])
	}
}

func TestInvalidParamsRejected(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "")

	_, body := rpcCall(t, h, "reminder.schedule", map[string]any{"habits": []any{}}, "")
	if _, ok := body["error"]; !ok {
		t.Error("empty habits accepted")
	}
	_, body = rpcCall(t, h, "reminder.cancel", map[string]any{"habitId": 0}, "")
	if _, ok := body["error"]; !ok {
		t.Error("habitId 0 accepted")
	}
}

func TestBearerTokenEnforced(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t, "sekrit")

	code, _ := rpcCall(t, h, "system.getVersion", nil, "")
	if code != http.StatusUnauthorized {
		t.Fatalf("missing token: http %d", code)
	}
	code, _ = rpcCall(t, h, "system.getVersion", nil, "wrong")
	if code != http.StatusUnauthorized {
		t.Fatalf("wrong token: http %d", code)
	}
	code, body := rpcCall(t, h, "system.getVersion", nil, "sekrit")
	if code != http.StatusOK {
		t.Fatalf("right token: http %d", code)
	}
	resultOf(t, body)
}

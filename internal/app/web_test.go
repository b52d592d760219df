// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/updown_controller/internal/actuator"
	"github.com/relabs-tech/updown_controller/internal/config"
	"github.com/relabs-tech/updown_controller/internal/device"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DeviceName = "blind"
	cfg.TravelDown = 9 * time.Second
	cfg.TravelUp = 11 * time.Second
	cfg.InitialPosition = 0.5
	cfg.HasInitialPosition = true
	return cfg
}

func newTestDevice(t *testing.T) *device.Device {
	t.Helper()
	dev, err := NewDevice(testConfig(), actuator.NewRecordingOutput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return dev
}

func TestStatus(t *testing.T) {
	dev := newTestDevice(t)
	handler := NewWebHandler(dev)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before the first tick, got %d", rec.Code)
	}

	dev.Update()

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var snap device.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if snap.Name != "blind" || snap.State != "stopped" || snap.Position == nil || snap.Position.Position != 0.5 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestSetpoint(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		status   int
		expected *float64
	}{
		{"value", `{"setpoint": 0.3}`, http.StatusAccepted, ptr(0.3)},
		{"end stop", `{"setpoint": 1}`, http.StatusAccepted, ptr(1)},
		{"cancel", `{"setpoint": null}`, http.StatusAccepted, nil},
		{"missing", `{}`, http.StatusBadRequest, ptr(0.9)},
		{"out of range", `{"setpoint": 1.5}`, http.StatusBadRequest, ptr(0.9)},
		{"not json", `0.3`, http.StatusBadRequest, ptr(0.9)},
		{"string", `{"setpoint": "0.3"}`, http.StatusBadRequest, ptr(0.9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newTestDevice(t)
			dev.SetSetpoint(ratioPtr(0.9))
			handler := NewWebHandler(dev)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/setpoint", strings.NewReader(tt.body))
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			got := dev.Setpoint()
			switch {
			case tt.expected == nil && got != nil:
				t.Errorf("expected no setpoint, got %v", *got)
			case tt.expected != nil && (got == nil || got.Float64() != *tt.expected):
				t.Errorf("expected setpoint %v, got %v", *tt.expected, got)
			}
		})
	}
}

func TestSetpoint_BodyTooLarge(t *testing.T) {
	dev := newTestDevice(t)
	body := `{"setpoint": 0.3, "note": "` + strings.Repeat("x", 2*maxSetpointBody) + `"}`

	rec := httptest.NewRecorder()
	NewWebHandler(dev).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/setpoint", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if dev.Setpoint() != nil {
		t.Errorf("expected the oversized request to be ignored, got setpoint %v", *dev.Setpoint())
	}
}

func TestSetpoint_MethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewWebHandler(newTestDevice(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/setpoint", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestWebSocket(t *testing.T) {
	dev := newTestDevice(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dev.Run(ctx)

	srv := httptest.NewServer(NewWebHandler(dev))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"setpoint": 0.6}); err != nil {
		t.Fatalf("write error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var snap device.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			t.Fatalf("read error before the setpoint showed up: %v", err)
		}
		if snap.Setpoint != nil && snap.Setpoint.Float64() == 0.6 {
			if snap.State != "moving" {
				t.Errorf("expected moving towards 0.6, got %s", snap.State)
			}
			return
		}
	}
}

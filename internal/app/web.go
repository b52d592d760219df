// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/updown_controller/internal/bus"
	"github.com/relabs-tech/updown_controller/internal/device"
)

// maxSetpointBody bounds the POST /api/setpoint body.
const maxSetpointBody = 1 << 10

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// setpointRequest is the body of POST /api/setpoint and of websocket
// messages. A null setpoint cancels the current one.
type setpointRequest struct {
	Setpoint json.RawMessage `json:"setpoint"`
}

// NewWebHandler serves the device status and accepts setpoints.
func NewWebHandler(dev *device.Device) http.Handler {
	mux := http.NewServeMux()

	// Latest snapshot
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := dev.Snapshot()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	mux.HandleFunc("POST /api/setpoint", func(w http.ResponseWriter, r *http.Request) {
		var req setpointRequest
		body := http.MaxBytesReader(w, r.Body, maxSetpointBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
			return
		}
		if err := applySetpoint(dev, req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"setpoint": dev.Setpoint()})
	})

	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(dev, w, r)
	})

	return mux
}

func applySetpoint(dev *device.Device, req setpointRequest) error {
	if len(req.Setpoint) == 0 {
		return errors.New("setpoint is required, use null to cancel")
	}
	setpoint, err := bus.ParseSetpoint(req.Setpoint)
	if err != nil {
		return err
	}
	dev.SetSetpoint(setpoint)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// serveWS streams snapshots to the client. Messages from the client are
// setpoint requests.
func serveWS(dev *device.Device, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxSetpointBody)

	snapshots, unsubscribe := dev.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var req setpointRequest
			if err := conn.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("web: websocket read error: %v", err)
				}
				return
			}
			if err := applySetpoint(dev, req); err != nil {
				log.Printf("web: ignoring websocket setpoint: %v", err)
			}
		}
	}()

	if snap, ok := dev.Snapshot(); ok {
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(snap); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}
}

// ServeWeb listens on port until ctx is cancelled.
func ServeWeb(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("web: server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

package server

import (
	"net/http"
	"time"

	"codeberg.org/mutker/senselog/internal/telemetry"
	"github.com/gorilla/websocket"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsWriteWait  = 10 * time.Second
	wsReadLimit  = 512
)

// handleData streams the latest sample line as server-sent events, once on
// connect and then every interval. Nothing is sent before the first sample.
func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.log.Error().Err(err).Msg("Streaming not supported by response writer")
		return
	}

	s.streamOpened()
	defer s.streamClosed()
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("Data stream opened")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if latest, ok := s.store.Latest(); ok {
			if _, err := w.Write([]byte("data:" + latest.Line() + "\n\n")); err != nil {
				s.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("Data stream closed by client")
				return
			}
			if err := rc.Flush(); err != nil {
				s.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("Data stream closed by client")
				return
			}
		}

		select {
		case <-r.Context().Done():
			s.log.Debug().Str("remote", r.RemoteAddr).Msg("Data stream closed")
			return
		case <-ticker.C:
		}
	}
}

// handleWebSocket pushes the latest sample as JSON at the same cadence as
// handleData. All writes happen on this goroutine.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	s.streamOpened()
	defer s.streamClosed()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Incoming messages are ignored; reading is needed to process control
	// frames and to notice the client leaving.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func() error {
		latest, ok := s.store.Latest()
		if !ok {
			return nil
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(telemetry.NewPayload(latest))
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	if err := send(); err != nil {
		s.log.Debug().Err(err).Msg("WebSocket write failed")
		return
	}

	for {
		select {
		case <-r.Context().Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
			return
		case <-gone:
			s.log.Debug().Str("remote", r.RemoteAddr).Msg("WebSocket closed by client")
			return
		case <-ticker.C:
			if err := send(); err != nil {
				s.log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				s.log.Debug().Err(err).Msg("WebSocket ping failed")
				return
			}
		}
	}
}

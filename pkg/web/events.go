package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cloudbro-kube-ai/helix-console/pkg/log"
	"github.com/cloudbro-kube-ai/helix-console/pkg/notify"
	"github.com/cloudbro-kube-ai/helix-console/pkg/ui"
)

const (
	eventWriteWait  = 10 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = (eventPongWait * 9) / 10
)

// originChecker validates WebSocket origins against the allowed list
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // same-origin requests may omit it
		}

		if os.Getenv("HELIX_CONSOLE_DEV") == "true" {
			return true
		}

		// Exact host match so subdomains can't sneak in
		for _, a := range allowed {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			if origin == a || strings.HasPrefix(origin, a+":") || strings.HasPrefix(origin, a+"/") {
				return true
			}
		}
		log.Warnf("[events] rejected websocket origin %s", origin)
		return false
	}
}

// EventMessage is one frame of the event stream: a hub event, plus the
// rendered dialog for dialog.open.
type EventMessage struct {
	notify.Event
	HTML string `json:"html,omitempty"`
}

// ClientMessage is what the browser may send over the event stream. It
// mirrors the dialog and snackbar POST endpoints.
type ClientMessage struct {
	Type   string `json:"type"` // "dialog.close" or "snackbar.dismiss"
	ID     string `json:"id"`
	Result *bool  `json:"result,omitempty"`
	Value  string `json:"value,omitempty"`
}

// handleEvents streams the session's dialog and snackbar events.
// URL: /api/events
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, cookie := sessionID(r)
	var header http.Header
	if cookie != nil {
		header = http.Header{"Set-Cookie": {cookie.String()}}
	}

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		// Upgrade already wrote the error response
		return
	}
	defer conn.Close()

	hub := s.sessions.Acquire(id)
	events, cancel := hub.Subscribe()
	defer cancel()
	log.Debugf("[events] session %s subscribed (%d subscribers)", id, hub.Subscribers())

	readDone := make(chan struct{})
	go s.readEvents(conn, id, hub, readDone)

	ticker := time.NewTicker(eventPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Hub closed: session expired or server stopping
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(eventWriteWait))
				return
			}
			msg := s.eventMessage(ev)
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				log.Debugf("[events] session %s write failed: %v", id, err)
				return
			}
		case <-ticker.C:
			s.sessions.Touch(id)
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteWait)); err != nil {
				return
			}
		case <-readDone:
			return
		}
	}
}

// readEvents handles client frames until the connection fails.
func (s *Server) readEvents(conn *websocket.Conn, id string, hub *notify.Hub, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.sessions.Touch(id)

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debugf("[events] session %s sent invalid frame: %v", id, err)
			continue
		}
		switch msg.Type {
		case notify.EventDialogClose:
			err = hub.CloseDialog(msg.ID, notify.DialogResult{Value: msg.Result, Input: msg.Value})
		case notify.EventSnackBarDismiss:
			err = hub.DismissSnackBar(msg.ID)
		default:
			log.Debugf("[events] session %s sent unknown frame type %q", id, msg.Type)
			continue
		}
		if err != nil {
			log.Debugf("[events] session %s: %s %s: %v", id, msg.Type, msg.ID, err)
		}
	}
}

// eventMessage renders dialog bodies with the shared InputDialog entry component.
func (s *Server) eventMessage(ev notify.Event) EventMessage {
	msg := EventMessage{Event: ev}
	if ev.Type != notify.EventDialogOpen {
		return msg
	}

	var buf bytes.Buffer
	err := s.ui.RenderEntry(&buf, ui.InputDialog, ui.Dialog{
		ID:          ev.ID,
		Title:       ev.Title,
		Message:     ev.Message,
		Placeholder: ev.Placeholder,
		Input:       ev.Kind == notify.KindInput,
		Cancelable:  ev.Kind != notify.KindAlert,
	})
	if err != nil {
		log.Errorf("[events] render dialog %s: %v", ev.ID, err)
		return msg
	}
	msg.HTML = buf.String()
	return msg
}

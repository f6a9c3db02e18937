package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/mbocsi/hostbridge/server"
)

const sseBuffer = 32

var errSubscriberBehind = errors.New("event stream is behind, dropping event")

// sseSubscriber buffers events for one streaming response. Send never blocks;
// events are dropped while the buffer is full.
type sseSubscriber struct {
	id     string
	events chan server.Event
}

func newSSESubscriber() *sseSubscriber {
	return &sseSubscriber{
		id:     "sse-" + uuid.NewString(),
		events: make(chan server.Event, sseBuffer),
	}
}

func (s *sseSubscriber) ID() string { return s.id }

func (s *sseSubscriber) Send(ev server.Event) error {
	select {
	case s.events <- ev:
		return nil
	default:
		return errSubscriberBehind
	}
}

// HandleEvents streams scene events as server-sent events until the client
// goes away or the server shuts down.
func (w *WebServer) HandleEvents(wr http.ResponseWriter, r *http.Request) {
	flusher, ok := wr.(http.Flusher)
	if !ok {
		http.Error(wr, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := newSSESubscriber()
	w.events.Subscribe(server.SceneTopic, sub)
	defer w.events.Unsubscribe(server.SceneTopic, sub)

	wr.Header().Set("Content-Type", "text/event-stream")
	wr.Header().Set("Cache-Control", "no-cache")
	wr.Header().Set("Connection", "keep-alive")
	wr.WriteHeader(http.StatusOK)
	flusher.Flush()

	slog.Debug("Event stream opened", "subscriber", sub.ID(), "remote", r.RemoteAddr)
	defer slog.Debug("Event stream closed", "subscriber", sub.ID())

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-sub.events:
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Warn("Could not encode event", "type", ev.Type, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(wr, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/events"
)

// HeartbeatInterval is how often an idle event stream sends a heartbeat.
const HeartbeatInterval = 30 * time.Second

// EventsStreamHandler streams bus events to clients as Server-Sent Events.
type EventsStreamHandler struct {
	bus       *events.Bus
	heartbeat time.Duration
	log       zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus:       bus,
		heartbeat: HeartbeatInterval,
		log:       log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream. The optional "types" query
// parameter is a comma-separated list of event types to forward.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	types := events.AllTypes()
	if filter := r.URL.Query().Get("types"); filter != "" {
		types = types[:0:0]
		for _, t := range strings.Split(filter, ",") {
			et := events.EventType(strings.TrimSpace(t))
			if !events.Known(et) {
				http.Error(w, fmt.Sprintf("unknown event type %q", et), http.StatusBadRequest)
				return
			}
			types = append(types, et)
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan *events.Event, 100)
	for _, et := range types {
		unsubscribe := h.bus.Subscribe(et, func(event *events.Event) {
			select {
			case ch <- event:
			default:
				h.log.Warn().
					Str("event_type", string(event.Type)).
					Msg("Event channel full, dropping event")
			}
		})
		defer unsubscribe()
	}

	h.log.Info().Int("types", len(types)).Msg("Client connected to event stream")

	h.write(w, map[string]interface{}{"type": "connected"})
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case event := <-ch:
			h.write(w, map[string]interface{}{
				"type":      string(event.Type),
				"timestamp": event.Timestamp.Format(time.RFC3339Nano),
				"data":      event.Data,
			})
			flusher.Flush()

		case <-heartbeat.C:
			h.write(w, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			})
			flusher.Flush()
		}
	}
}

func (h *EventsStreamHandler) write(w http.ResponseWriter, event map[string]interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		data = []byte(`{"error":"failed to encode event"}`)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

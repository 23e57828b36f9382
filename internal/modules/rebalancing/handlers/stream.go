package handlers

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/events"
)

const (
	writeTimeout   = 10 * time.Second
	requestTimeout = 30 * time.Second
	followBuffer   = 64
)

// StreamMessage is one websocket frame of the rebalance stream.
type StreamMessage struct {
	Type   string                 `json:"type"`
	RunID  string                 `json:"run_id,omitempty"`
	Event  *domain.RebalanceEvent `json:"event,omitempty"`
	Events int                    `json:"events,omitempty"`
	Source string                 `json:"source,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// Stream message types.
const (
	MessageStarted  = "started"
	MessagePeriod   = "period"
	MessageComplete = "complete"
	MessageError    = "error"
)

// HandleStream handles GET /api/rebalance/stream.
//
// By default the client sends one RunRequest and receives a period message
// per window followed by complete (or error). With ?follow=scheduled the
// connection instead mirrors every run published on the event bus until the
// client disconnects.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	if r.URL.Query().Get("follow") == "scheduled" {
		h.follow(r.Context(), conn)
		return
	}
	h.stream(r.Context(), conn)
}

func (h *Handler) stream(ctx context.Context, conn *websocket.Conn) {
	readCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	var req RunRequest
	err := wsjson.Read(readCtx, conn, &req)
	cancel()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read stream request")
		conn.Close(websocket.StatusPolicyViolation, "expected a run request")
		return
	}

	history, opts, err := req.build()
	if err != nil {
		h.writeMessage(ctx, conn, StreamMessage{Type: MessageError, Error: err.Error()})
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	opts.Source = "stream"

	h.log.Info().Int("days", history.Len()).Msg("Client started streamed rebalance run")

	evs, err := h.service.Run(ctx, history, opts, func(ev domain.RebalanceEvent) error {
		return h.writeMessage(ctx, conn, StreamMessage{Type: MessagePeriod, RunID: ev.RunID, Event: &ev})
	})
	if err != nil {
		if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
			h.log.Debug().Err(err).Msg("Stream client went away")
			return
		}
		h.writeMessage(ctx, conn, StreamMessage{Type: MessageError, Error: err.Error()})
		conn.Close(websocket.StatusNormalClosure, "")
		return
	}

	done := StreamMessage{Type: MessageComplete, Events: len(evs)}
	if len(evs) > 0 {
		done.RunID = evs[0].RunID
	}
	h.writeMessage(ctx, conn, done)
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) follow(ctx context.Context, conn *websocket.Conn) {
	if h.bus == nil {
		conn.Close(websocket.StatusPolicyViolation, "event stream unavailable")
		return
	}

	// Client frames are ignored; CloseRead cancels ctx when the peer leaves.
	ctx = conn.CloseRead(ctx)

	msgs := make(chan StreamMessage, followBuffer)
	forward := func(e *events.Event) {
		msg, ok := toMessage(e)
		if !ok {
			return
		}
		select {
		case msgs <- msg:
		default:
			h.log.Warn().Str("event_type", string(e.Type)).Msg("Stream buffer full, dropping event")
		}
	}
	for _, t := range []events.EventType{events.RebalanceStarted, events.RebalancePeriod, events.RebalanceCompleted} {
		unsubscribe := h.bus.Subscribe(t, forward)
		defer unsubscribe()
	}

	h.log.Info().Msg("Client following scheduled rebalance runs")
	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Follower disconnected")
			return
		case msg := <-msgs:
			if err := h.writeMessage(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func toMessage(e *events.Event) (StreamMessage, bool) {
	switch d := e.Data.(type) {
	case *events.RebalanceStartedData:
		return StreamMessage{Type: MessageStarted, RunID: d.RunID, Source: d.Source}, true
	case *events.RebalancePeriodData:
		ev := d.RebalanceEvent
		return StreamMessage{Type: MessagePeriod, RunID: ev.RunID, Event: &ev}, true
	case *events.RebalanceCompletedData:
		if d.Error != "" {
			return StreamMessage{Type: MessageError, RunID: d.RunID, Events: d.Events, Error: d.Error}, true
		}
		return StreamMessage{Type: MessageComplete, RunID: d.RunID, Events: d.Events}, true
	default:
		return StreamMessage{}, false
	}
}

func (h *Handler) writeMessage(ctx context.Context, conn *websocket.Conn, msg StreamMessage) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, msg); err != nil {
		h.log.Debug().Err(err).Str("type", msg.Type).Msg("Failed to write stream message")
		return err
	}
	return nil
}

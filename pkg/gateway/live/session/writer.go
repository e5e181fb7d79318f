package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// wsWriter is the write side of a client WebSocket. Tests substitute a fake.
type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// outboundFrame is one JSON envelope queued for the client. Audio frames
// carry the epoch current when they were produced; the writer drops audio
// whose epoch has been superseded by an interruption or a mode switch, so
// stale assistant speech never reaches the speaker.
type outboundFrame struct {
	payload []byte
	isAudio bool
	epoch   int64
}

// outboundWriter owns all writes to the client socket. Frames arrive on two
// queues: priority carries control envelopes (status, errors, interruption
// notices) and preempts normal, which carries the bulk audio and transcript
// stream. Keeping a single writer goroutine also satisfies the websocket
// package's one-concurrent-writer rule.
type outboundWriter struct {
	ws           wsWriter
	ctx          context.Context
	pingInterval time.Duration
	writeTimeout time.Duration
	priority     <-chan outboundFrame
	normal       <-chan outboundFrame
	isStale      func(outboundFrame) bool
}

// Run pumps frames until the context is canceled, both queues close, or a
// write fails. On cancellation it flushes briefly so a final status frame
// still reaches the client, then closes the socket.
func (w *outboundWriter) Run() error {
	if w == nil || w.ws == nil {
		return nil
	}

	pingInterval := w.pingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	writeTimeout := w.writeTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	var pendingNormal *outboundFrame

	for {
		if w.ctx != nil {
			select {
			case <-w.ctx.Done():
				w.flushPriorityOnShutdown(writeTimeout)
				deadline := time.Now().Add(writeTimeout)
				_ = w.ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
				_ = w.ws.Close()
				return nil
			default:
			}
		}

		// Drain every queued priority frame before touching the normal queue.
		select {
		case frame, ok := <-w.priority:
			if !ok {
				w.priority = nil
				continue
			}
			if err := w.writeFrame(frame, writeTimeout); err != nil {
				return err
			}
			continue
		default:
		}

		// A priority frame that arrived while a normal frame was waiting
		// still goes first.
		if pendingNormal != nil {
			select {
			case frame, ok := <-w.priority:
				if !ok {
					w.priority = nil
					continue
				}
				if err := w.writeFrame(frame, writeTimeout); err != nil {
					return err
				}
				continue
			default:
			}
			if err := w.writeFrame(*pendingNormal, writeTimeout); err != nil {
				return err
			}
			pendingNormal = nil
			continue
		}

		if w.priority == nil && w.normal == nil {
			return nil
		}

		select {
		case <-pingTicker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := w.ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return err
			}
		case frame, ok := <-w.priority:
			if !ok {
				w.priority = nil
				continue
			}
			if err := w.writeFrame(frame, writeTimeout); err != nil {
				return err
			}
		case frame, ok := <-w.normal:
			if !ok {
				w.normal = nil
				continue
			}
			pendingNormal = &frame
		}
	}
}

// flushPriorityOnShutdown writes whatever control frames are already queued,
// bounded so a dead socket cannot stall teardown.
func (w *outboundWriter) flushPriorityOnShutdown(writeTimeout time.Duration) {
	if w.priority == nil {
		return
	}
	deadline := time.Now().Add(100 * time.Millisecond)
	for i := 0; i < 8; i++ {
		if time.Now().After(deadline) {
			return
		}
		select {
		case frame, ok := <-w.priority:
			if !ok {
				return
			}
			if err := w.writeFrame(frame, writeTimeout); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (w *outboundWriter) writeFrame(frame outboundFrame, writeTimeout time.Duration) error {
	if len(frame.payload) == 0 {
		return nil
	}
	if frame.isAudio && w.isStale != nil && w.isStale(frame) {
		return nil
	}
	deadline := time.Now().Add(writeTimeout)
	if err := w.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.ws.WriteMessage(websocket.TextMessage, frame.payload)
}

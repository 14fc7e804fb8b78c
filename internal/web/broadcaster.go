package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/geekdrive/internal/logic/drive"
	"github.com/cjeanneret/geekdrive/internal/logic/motion"
)

// StatusEvent represents a single status message for SSE.
type StatusEvent struct {
	Time  string          `json:"t"`
	Level string          `json:"l,omitempty"`
	Msg   string          `json:"msg"`
	Data  *TelemetryEvent `json:"data,omitempty"`
}

// TelemetryEvent is one closed sampling window, sent with level "telemetry".
type TelemetryEvent struct {
	TicksLeft  uint32   `json:"ticks_l"`
	TicksRight uint32   `json:"ticks_r"`
	RPSLeft    float64  `json:"rps_l"`
	RPSRight   float64  `json:"rps_r"`
	CmdLeft    int      `json:"cmd_l"`
	CmdRight   int      `json:"cmd_r"`
	DistanceM  float64  `json:"distance_m"`
	Degrees    float64  `json:"degrees"`
	RangeCm    *int     `json:"range_cm,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Broadcast sends a message to all subscribed clients.
// Messages are sent as JSON: {"t":"...","l":"info","msg":"..."}
// Slow clients may miss messages (non-blocking, buffered).
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{Level: level, Msg: msg})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastTelemetry sends one sampling window of the running primitive.
func (b *StatusBroadcaster) BroadcastTelemetry(tm motion.Telemetry) {
	data := &TelemetryEvent{
		TicksLeft:  tm.Ticks[drive.Left],
		TicksRight: tm.Ticks[drive.Right],
		RPSLeft:    tm.SpeedRPS[drive.Left],
		RPSRight:   tm.SpeedRPS[drive.Right],
		CmdLeft:    tm.Command[drive.Left],
		CmdRight:   tm.Command[drive.Right],
		DistanceM:  tm.DistanceM,
		Degrees:    tm.Degrees,
	}
	if tm.HasRange {
		r := tm.RangeCm
		data.RangeCm = &r
	}
	for _, w := range tm.Warnings {
		data.Warnings = append(data.Warnings, w.Error())
	}
	b.send(StatusEvent{Level: "telemetry", Msg: tm.Primitive, Data: data})
}

func (b *StatusBroadcaster) send(evt StatusEvent) {
	evt.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.BroadcastMsg(msg)
	}
	return len(p), nil
}

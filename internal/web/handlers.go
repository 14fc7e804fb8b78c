package web

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/cjeanneret/geekdrive/internal/debug"
	"github.com/cjeanneret/geekdrive/internal/logic/route"
)

const (
	maxBodyBytes   = 1 << 20
	maxRouteLength = 4096
)

// RunRequest is the body of POST /run.
type RunRequest struct {
	Route string `json:"route"`
}

// RunRouteFunc runs a parsed route.
// It is called from the POST /run handler in a goroutine.
type RunRouteFunc func(ctx context.Context, r *route.Route) error

// Defaults describes the robot for the control page (from config).
type Defaults struct {
	WheelRadiusM     float64 `json:"wheel_radius_m"`
	WheelSpacingM    float64 `json:"wheel_spacing_m"`
	TicksPerRev      int     `json:"ticks_per_rev"`
	MetersPerTick    float64 `json:"meters_per_tick"`
	DegreesPerTick   float64 `json:"degrees_per_tick"`
	WindowMs         int     `json:"window_ms"`
	WallFollowGainUs int     `json:"wall_follow_gain_us"`
	ExampleRoute     string  `json:"example_route"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	RunRoute    RunRouteFunc
	Defaults    Defaults
	// MinInterval is the minimum time between two route starts.
	MinInterval time.Duration

	clock     clock.Clock
	runningMu sync.Mutex
	base      context.Context
	closed    bool
	running   bool
	cancel    context.CancelFunc
	lastStart time.Time
	routes    sync.WaitGroup
	staticFS  fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runRoute is nil, POST /run will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runRoute RunRouteFunc, defaults Defaults, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		RunRoute:    runRoute,
		Defaults:    defaults,
		MinInterval: 5 * time.Second,
		clock:       clock.New(),
		base:        context.Background(),
		staticFS:    staticFS,
	}
}

// ValidateRequest checks the request and parses its route.
func ValidateRequest(req RunRequest) (*route.Route, error) {
	src := strings.TrimSpace(req.Route)
	if src == "" {
		return nil, errors.New("route must not be empty")
	}
	if len(src) > maxRouteLength {
		return nil, errors.Errorf("route must be at most %d bytes", maxRouteLength)
	}
	return route.Parse(src)
}

// HandleConfig returns the robot defaults (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.Defaults)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

// HandleRun handles POST /run to start a route.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	rt, err := ValidateRequest(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.RunRoute == nil {
		http.Error(w, "drive not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.closed {
		h.runningMu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "route already in progress", http.StatusConflict)
		return
	}
	now := h.clock.Now()
	if !h.lastStart.IsZero() && now.Sub(h.lastStart) < h.MinInterval {
		h.runningMu.Unlock()
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	ctx, cancel := context.WithCancel(h.base)
	h.routes.Add(1)
	h.running = true
	h.cancel = cancel
	h.lastStart = now
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer h.routes.Done()
		defer func() {
			cancel()
			h.runningMu.Lock()
			h.running = false
			h.cancel = nil
			h.runningMu.Unlock()
		}()

		if err := h.RunRoute(ctx, rt); err != nil {
			h.Broadcaster.Broadcast("error", "Route failed: "+err.Error())
			debug.Error(errors.Wrap(err, "route failed"))
		} else {
			h.Broadcaster.Broadcast("info", "Route complete")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "started", "steps": len(rt.Steps)})
}

// HandleStop handles POST /stop: the running route is cancelled and the
// robot stops at the next control tick.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.runningMu.Lock()
	cancel := h.cancel
	h.runningMu.Unlock()

	status := "idle"
	if cancel != nil {
		cancel()
		status = "stopping"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// Bind makes ctx the parent of every route started afterwards, so
// cancelling it stops them.
func (h *Handlers) Bind(ctx context.Context) {
	h.runningMu.Lock()
	h.base = ctx
	h.runningMu.Unlock()
}

// Shutdown refuses new routes, cancels the running one and waits until
// it has stopped the robot.
func (h *Handlers) Shutdown() {
	h.runningMu.Lock()
	h.closed = true
	if h.cancel != nil {
		h.cancel()
	}
	h.runningMu.Unlock()
	h.routes.Wait()
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			_, _ = w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

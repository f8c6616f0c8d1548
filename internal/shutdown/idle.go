// Package shutdown provides idle monitoring for scale-to-zero deployments.
package shutdown

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// BackgroundWorkChecker reports whether non-request work is in progress,
// such as open notification streams or queued email tasks.
type BackgroundWorkChecker func() bool

// IdleMonitorConfig holds configuration for the idle monitor.
type IdleMonitorConfig struct {
	Timeout             time.Duration // 0 disables the monitor
	CheckInterval       time.Duration // default: Timeout/6 clamped to [5s, 30s]
	Logger              *slog.Logger
	ExcludePaths        []string // path prefixes that don't count as activity
	BackgroundWorkCheck BackgroundWorkChecker
}

// IdleMonitor tracks request activity and closes ShutdownChan once the
// server has been idle for the configured timeout.
type IdleMonitor struct {
	timeout       time.Duration
	checkInterval time.Duration
	logger        *slog.Logger
	excludePaths  []string
	busy          BackgroundWorkChecker
	now           func() time.Time

	active       atomic.Int64
	mu           sync.Mutex
	lastActivity time.Time

	shutdownChan chan struct{}
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewIdleMonitor creates a new idle monitor.
func NewIdleMonitor(cfg IdleMonitorConfig) *IdleMonitor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = min(max(cfg.Timeout/6, 5*time.Second), 30*time.Second)
	}
	return &IdleMonitor{
		timeout:       cfg.Timeout,
		checkInterval: interval,
		logger:        cfg.Logger.With("component", "idle"),
		excludePaths:  cfg.ExcludePaths,
		busy:          cfg.BackgroundWorkCheck,
		now:           time.Now,
		lastActivity:  time.Now(),
		shutdownChan:  make(chan struct{}),
		stopChan:      make(chan struct{}),
	}
}

// Enabled reports whether a timeout is configured.
func (m *IdleMonitor) Enabled() bool {
	return m.timeout > 0
}

// Start begins monitoring in a background goroutine.
func (m *IdleMonitor) Start() {
	if !m.Enabled() {
		m.logger.Debug("idle monitoring disabled")
		return
	}
	m.logger.Info("idle monitoring started", "timeout", m.timeout, "exclude_paths", m.excludePaths)
	go m.run()
}

// Stop stops the monitor. Safe to call more than once.
func (m *IdleMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// ShutdownChan is closed when the idle timeout is reached.
func (m *IdleMonitor) ShutdownChan() <-chan struct{} {
	return m.shutdownChan
}

// Middleware counts in-flight requests outside the excluded paths.
func (m *IdleMonitor) Middleware(next http.Handler) http.Handler {
	if !m.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.excluded(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		m.active.Add(1)
		m.touch()
		defer func() {
			m.active.Add(-1)
			m.touch()
		}()
		next.ServeHTTP(w, r)
	})
}

func (m *IdleMonitor) excluded(path string) bool {
	for _, prefix := range m.excludePaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *IdleMonitor) touch() {
	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
}

func (m *IdleMonitor) run() {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			if m.idle() {
				close(m.shutdownChan)
				return
			}
		}
	}
}

// idle reports whether the timeout has elapsed with nothing in flight.
// Background work resets the idle clock so a full grace period follows it.
func (m *IdleMonitor) idle() bool {
	active := m.active.Load()
	busy := m.busy != nil && m.busy()
	if active > 0 || busy {
		m.touch()
		m.logger.Debug("idle check", "active_requests", active, "background_busy", busy)
		return false
	}

	m.mu.Lock()
	idleFor := m.now().Sub(m.lastActivity)
	m.mu.Unlock()

	if idleFor < m.timeout {
		m.logger.Debug("idle check", "idle_time", idleFor, "timeout", m.timeout)
		return false
	}
	m.logger.Info("idle timeout reached, signaling graceful shutdown", "idle_time", idleFor, "timeout", m.timeout)
	return true
}

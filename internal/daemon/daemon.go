// Package daemon provides the scheduler that drives the query sync
// engine.
//
// The daemon:
// 1. Runs one refresh cycle at startup
// 2. Fires a cycle on a fixed wall-clock interval
// 3. Drops ticks that arrive while a cycle is still in flight
// 4. Publishes the attention count to the badge server after each cycle
// 5. Hot-reloads the refresh interval when the config file changes
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quarium/quarium/internal/badge"
	"github.com/quarium/quarium/internal/config"
	"github.com/quarium/quarium/internal/engine"
	"github.com/quarium/quarium/internal/gist"
	"github.com/quarium/quarium/internal/schema"
)

// SessionReader is the slice of the session store the daemon needs.
type SessionReader interface {
	Credential() (schema.Credential, error)
	MarkInvalid() error
}

// Notifier receives cycle outcomes for the badge surface.
// Implemented by badge.Server. A nil Notifier disables publishing.
type Notifier interface {
	PublishBadge(attentionCount int)
	PublishSync(data badge.SyncCompleteData)
	PublishError(code int)
}

// Config holds configuration for the daemon.
type Config struct {
	// RefreshInterval is how often to fire a refresh cycle
	RefreshInterval time.Duration

	// ConfigPath, when set, is watched for changes so the interval
	// can be updated without a restart
	ConfigPath string

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval: 5 * time.Minute,
		Logger:          log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates scheduled refresh cycles.
type Daemon struct {
	sessions SessionReader
	engine   engine.Engine
	notifier Notifier
	config   *Config

	// inFlight guards against overlapping cycles: a tick that fires
	// while a cycle is running is dropped, not queued
	inFlight atomic.Bool

	intervalCh chan time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Daemon instance.
func New(sessions SessionReader, eng engine.Engine, notifier Notifier, cfg *Config) (*Daemon, error) {
	if sessions == nil {
		return nil, fmt.Errorf("sessions cannot be nil")
	}
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if cfg.RefreshInterval <= 0 {
		return nil, fmt.Errorf("refresh interval must be positive (got %v)", cfg.RefreshInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		sessions:   sessions,
		engine:     eng,
		notifier:   notifier,
		config:     cfg,
		intervalCh: make(chan time.Duration, 1),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// One cycle runs immediately, then cycles fire on the configured
// interval. This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Printf("Starting daemon (interval %v)", d.config.RefreshInterval)

	// Startup cycle, equivalent to the login-time refresh
	d.runCycle()

	d.wg.Add(1)
	go d.scheduleLoop()

	if d.config.ConfigPath != "" {
		if err := d.watchConfig(); err != nil {
			d.config.Logger.Printf("Warning: config watch disabled: %v", err)
		}
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon. In-flight cycles run to
// completion; no operation is cancelled once issued.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")
	d.cancel()
	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
	return nil
}

// scheduleLoop fires cycles on the interval and applies interval updates
// from the config watcher.
func (d *Daemon) scheduleLoop() {
	defer d.wg.Done()

	interval := d.config.RefreshInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case next := <-d.intervalCh:
			if next != interval {
				d.config.Logger.Printf("Refresh interval changed: %v -> %v", interval, next)
				interval = next
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(interval)
			}

		case <-timer.C:
			// Each tick is independent: run the cycle out of band so
			// a slow cycle never delays the next tick.
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				d.runCycle()
			}()
			timer.Reset(interval)
		}
	}
}

// runCycle performs one refresh cycle. Overlapping invocations are
// dropped. Cycle failures are logged and dropped; they never stop the
// schedule.
func (d *Daemon) runCycle() {
	if !d.inFlight.CompareAndSwap(false, true) {
		d.config.Logger.Println("Previous cycle still in flight, dropping tick")
		return
	}
	defer d.inFlight.Store(false)

	cred, err := d.sessions.Credential()
	if err != nil {
		d.config.Logger.Printf("Error reading credential: %v", err)
		return
	}
	if !cred.Complete() || cred.Invalid {
		// Nothing to do until the user logs in
		return
	}

	start := time.Now()
	result, err := d.engine.LoadAndRefresh(d.ctx, cred)
	if err != nil {
		code := gist.StatusCode(err)
		d.config.Logger.Printf("Refresh cycle failed (status %d): %v", code, err)

		// A rejected credential stays rejected until the next login;
		// any other failure is transient and the tick is dropped.
		if gist.IsAuthFailure(err) {
			if err := d.sessions.MarkInvalid(); err != nil {
				d.config.Logger.Printf("Error marking credential invalid: %v", err)
			}
		}
		if d.notifier != nil {
			d.notifier.PublishError(code)
		}
		return
	}

	if d.notifier != nil {
		d.notifier.PublishBadge(result.AttentionCount)
		d.notifier.PublishSync(badge.SyncCompleteData{
			Queries:  len(result.Map),
			Failed:   result.Failed,
			Saved:    result.Saved,
			Duration: time.Since(start),
		})
	}
}

// watchConfig watches the config file and pushes interval changes to the
// schedule loop.
func (d *Daemon) watchConfig() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory: editors typically replace the file, which
	// would orphan a watch on the file itself.
	if err := watcher.Add(filepath.Dir(d.config.ConfigPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	d.config.Logger.Printf("Watching config: %s", d.config.ConfigPath)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer watcher.Close()

		for {
			select {
			case <-d.ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if filepath.Clean(event.Name) != filepath.Clean(d.config.ConfigPath) {
					continue
				}

				cfg, err := config.Load(d.config.ConfigPath)
				if err != nil {
					d.config.Logger.Printf("Ignoring config change: %v", err)
					continue
				}
				select {
				case d.intervalCh <- cfg.RefreshInterval:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.config.Logger.Printf("Watcher error: %v", err)
			}
		}
	}()

	return nil
}

// Package watch polls watched threads' RSS endpoints and triggers a rescan
// when new comments appear, standing in for a live view of the page.
package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"

	"github.com/slopscope/slopscope/pkg/domain"
	"github.com/slopscope/slopscope/pkg/scanner"
)

// Trigger starts a scan of a thread page
type Trigger interface {
	Scan(ctx context.Context, pageURL string) (*scanner.Result, error)
}

// SettingsProvider supplies the current settings; auto-analyze is re-read on
// every tick so toggling it takes effect without a restart
type SettingsProvider interface {
	Current() domain.Settings
}

// Watcher polls thread feeds and rescans threads that grew new comments
type Watcher struct {
	parser   *gofeed.Parser
	trigger  Trigger
	settings SettingsProvider
	threads  []string
	interval time.Duration
	timeout  time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu   sync.Mutex
	seen map[string]map[string]struct{} // thread -> item GUIDs
}

// Config holds watcher configuration
type Config struct {
	Threads  []string
	Interval time.Duration
	Timeout  time.Duration
}

// NewWatcher creates a watcher over the given threads
func NewWatcher(trigger Trigger, settings SettingsProvider, cfg Config) *Watcher {
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Watcher{
		parser:   gofeed.NewParser(),
		trigger:  trigger,
		settings: settings,
		threads:  cfg.Threads,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		seen:     make(map[string]map[string]struct{}),
	}
}

// Start begins polling. The first poll scans every watched thread; later
// polls only rescan threads with unseen comments.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		// run immediately on start
		w.pollAll(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.pollAll(ctx)
			}
		}
	}()

	lgr.Printf("[INFO] watcher started: %d threads, interval %v", len(w.threads), w.interval)
}

// Stop gracefully stops the watcher
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	lgr.Printf("[INFO] watcher stopped")
}

func (w *Watcher) pollAll(ctx context.Context) {
	if !w.settings.Current().AutoAnalyze {
		lgr.Printf("[DEBUG] auto-analyze off, skipping poll")
		return
	}
	for _, thread := range w.threads {
		if ctx.Err() != nil {
			return
		}
		w.pollThread(ctx, thread)
	}
}

// pollThread fetches the thread's feed and rescans on new comments
func (w *Watcher) pollThread(ctx context.Context, thread string) {
	fctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	feed, err := w.parser.ParseURLWithContext(FeedURL(thread), fctx)
	if err != nil {
		lgr.Printf("[WARN] poll %s: %v", thread, err)
		return
	}

	w.mu.Lock()
	known, primed := w.seen[thread]
	if !primed {
		known = make(map[string]struct{})
		w.seen[thread] = known
	}
	fresh := 0
	for _, item := range feed.Items {
		guid := item.GUID
		if guid == "" {
			guid = item.Link
		}
		if _, ok := known[guid]; !ok {
			known[guid] = struct{}{}
			fresh++
		}
	}
	w.mu.Unlock()

	if primed && fresh == 0 {
		return
	}
	if primed {
		lgr.Printf("[INFO] %d new comments on %s, rescanning", fresh, thread)
	}

	if _, err := w.trigger.Scan(ctx, thread); err != nil && !errors.Is(err, scanner.ErrScanInProgress) {
		lgr.Printf("[WARN] scan %s: %v", thread, err)
	}
}

// FeedURL maps a thread page URL to its RSS endpoint
func FeedURL(thread string) string {
	return strings.TrimSuffix(thread, "/") + ".rss"
}

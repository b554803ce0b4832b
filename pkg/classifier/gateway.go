package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/singleflight"

	"github.com/slopscope/slopscope/pkg/domain"
)

// ErrModelUnavailable indicates the classification model failed to load or
// respond. Callers treat the affected comment as unclassified and move on;
// the error never aborts an enclosing scan.
var ErrModelUnavailable = errors.New("model unavailable")

// Model is a loaded classification model handle
type Model interface {
	Classify(ctx context.Context, text string) (domain.Verdict, error)
}

// Backend loads model handles by identifier
type Backend interface {
	Load(ctx context.Context, modelID string) (Model, error)
}

// SettingsProvider supplies the currently selected model identifier.
// The gateway re-reads it on every Instance call because the selection is
// changed from a different execution context than the one classifying.
type SettingsProvider interface {
	Current() domain.Settings
}

// Gateway caches a lazily loaded model handle keyed by model identifier.
// Concurrent callers for the same identifier share a single in-flight load;
// at most one load per identifier is ever running. A changed selection
// discards the stale handle, forcing a reload on next use.
type Gateway struct {
	backend    Backend
	settings   SettingsProvider
	retryDelay time.Duration

	group singleflight.Group

	mu      sync.Mutex
	modelID string
	model   Model
}

// NewGateway creates a gateway over the given backend. retryDelay is the
// fixed wait before the single retry of session-type failures.
func NewGateway(backend Backend, settings SettingsProvider, retryDelay time.Duration) *Gateway {
	if retryDelay == 0 {
		retryDelay = 3 * time.Second
	}
	return &Gateway{backend: backend, settings: settings, retryDelay: retryDelay}
}

// Instance returns the handle for the currently selected model, loading it
// on first use. The selected identifier is read from settings on every call.
func (g *Gateway) Instance(ctx context.Context) (Model, error) {
	id := g.settings.Current().SelectedModel
	if id == "" {
		id = domain.DefaultModel
	}

	g.mu.Lock()
	if g.model != nil && g.modelID == id {
		m := g.model
		g.mu.Unlock()
		return m, nil
	}
	if g.model != nil {
		// selection changed, drop the stale handle
		lgr.Printf("[INFO] model changed from %s to %s, discarding loaded instance", g.modelID, id)
		g.model = nil
		g.modelID = ""
	}
	g.mu.Unlock()

	v, err, shared := g.group.Do(id, func() (interface{}, error) {
		lgr.Printf("[INFO] loading model %s", id)
		m, err := g.backend.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: load %s: %v", ErrModelUnavailable, id, err)
		}
		g.mu.Lock()
		g.model, g.modelID = m, id
		g.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		lgr.Printf("[DEBUG] joined in-flight load of model %s", id)
	}
	return v.(Model), nil
}

// Classify runs the selected model on the given text. Failures whose message
// mentions a session are retried exactly once after the fixed delay; any
// other failure is terminal for this text.
func (g *Gateway) Classify(ctx context.Context, text string) (domain.Verdict, error) {
	m, err := g.Instance(ctx)
	if err != nil {
		return domain.Verdict{}, err
	}

	verdict, err := m.Classify(ctx, text)
	if err == nil {
		return verdict, nil
	}
	if !isSessionError(err) {
		return domain.Verdict{}, fmt.Errorf("classify: %w", err)
	}

	lgr.Printf("[WARN] session error, retrying once in %v: %v", g.retryDelay, err)
	select {
	case <-time.After(g.retryDelay):
	case <-ctx.Done():
		return domain.Verdict{}, ctx.Err()
	}

	verdict, err = m.Classify(ctx, text)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("classify after retry: %w", err)
	}
	return verdict, nil
}

// Reset discards the loaded handle so the next use reloads the model.
// It is triggered externally when the selected model changes, because the
// change originates in a different execution context.
func (g *Gateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.modelID != "" {
		lgr.Printf("[INFO] resetting model instance %s", g.modelID)
	}
	g.model = nil
	g.modelID = ""
}

// isSessionError matches transient failures worth a single retry
func isSessionError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "session")
}

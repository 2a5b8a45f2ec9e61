package freshness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/clock"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "freshness").Logger()
}

// DefaultThreshold is how old a quote may get before submission re-verifies it
const DefaultThreshold = 10 * time.Second

var (
	// ErrRouteChanged is returned by callers that must stop and ask the user to reconfirm
	ErrRouteChanged = errors.New("route changed since it was quoted")
	// ErrRefreshFailed wraps a failed re-verification. The displayed route stays valid.
	ErrRefreshFailed = errors.New("failed to refresh route")
)

type Outcome int

const (
	Unchanged Outcome = iota
	RouteChanged
)

func (o Outcome) String() string {
	if o == RouteChanged {
		return "route_changed"
	}
	return "unchanged"
}

// Requester re-issues a simulation request
type Requester interface {
	Route(ctx context.Context, req models.RouteRequest) (*models.Route, error)
}

// Check is the outcome of RefreshIfStale
type Check struct {
	Outcome Outcome
	// Route is the new route when it changed, otherwise the route passed in
	Route      *models.Route
	VerifiedAt time.Time
	// Refreshed is set when a request was sent
	Refreshed bool
}

// Guard keeps at most one re-verification in flight per pipeline instance.
type Guard struct {
	router    Requester
	clock     clock.Clock
	threshold time.Duration

	mu                sync.Mutex
	cancel            context.CancelFunc
	seq               uint64
	lastVerified      time.Time
	requiresReconfirm bool

	refreshes metric.Int64Counter
	changes   metric.Int64Counter
}

func NewGuard(router Requester, clk clock.Clock, threshold time.Duration) *Guard {
	if clk == nil {
		clk = clock.System()
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	meter := otel.Meter("github.com/Cogwheel-Validator/spectra-bridge/bridge/freshness")
	refreshes, err := meter.Int64Counter("bridge.route.stale_refreshes")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create refresh counter")
	}
	changes, err := meter.Int64Counter("bridge.route.changed")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create route changed counter")
	}
	return &Guard{
		router:    router,
		clock:     clk,
		threshold: threshold,
		refreshes: refreshes,
		changes:   changes,
	}
}

// RefreshIfStale re-verifies route when the later of quoteVerifiedAt and the last
// successful re-verification is older than the threshold. A new call cancels any
// check still in flight; the cancelled call returns context.Canceled, which
// callers drop silently (see IsCancelled).
func (g *Guard) RefreshIfStale(ctx context.Context, req models.RouteRequest, route *models.Route, quoteVerifiedAt time.Time) (Check, error) {
	g.mu.Lock()
	verifiedAt := quoteVerifiedAt
	if g.lastVerified.After(verifiedAt) {
		verifiedAt = g.lastVerified
	}
	now := g.clock.Now()
	if now.Sub(verifiedAt) <= g.threshold {
		g.mu.Unlock()
		return Check{Outcome: Unchanged, Route: route, VerifiedAt: verifiedAt}, nil
	}

	if g.cancel != nil {
		g.cancel()
	}
	reqCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.seq++
	seq := g.seq
	g.mu.Unlock()
	defer cancel()

	if g.refreshes != nil {
		g.refreshes.Add(ctx, 1)
	}
	fresh, err := g.router.Route(reqCtx, req)

	g.mu.Lock()
	defer g.mu.Unlock()
	if seq != g.seq {
		return Check{Outcome: Unchanged, Route: route, VerifiedAt: verifiedAt}, context.Canceled
	}
	g.cancel = nil

	if err != nil {
		if IsCancelled(err) || reqCtx.Err() != nil {
			return Check{Outcome: Unchanged, Route: route, VerifiedAt: verifiedAt}, context.Canceled
		}
		log.Warn().Err(err).Msg("Route re-verification failed")
		return Check{Outcome: Unchanged, Route: route, VerifiedAt: verifiedAt, Refreshed: true},
			fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	oldSig, err := Signature(route)
	if err != nil {
		return Check{Outcome: Unchanged, Route: route, VerifiedAt: verifiedAt, Refreshed: true}, err
	}
	newSig, err := Signature(fresh)
	if err != nil {
		return Check{Outcome: Unchanged, Route: route, VerifiedAt: verifiedAt, Refreshed: true}, err
	}

	now = g.clock.Now()
	g.lastVerified = now
	if oldSig == newSig {
		return Check{Outcome: Unchanged, Route: route, VerifiedAt: now, Refreshed: true}, nil
	}

	g.requiresReconfirm = true
	if g.changes != nil {
		g.changes.Add(ctx, 1)
	}
	log.Info().Str("old", oldSig[:12]).Str("new", newSig[:12]).Msg("Route changed on re-verification")
	return Check{Outcome: RouteChanged, Route: fresh, VerifiedAt: now, Refreshed: true}, nil
}

// RequiresReconfirm is set after a route change until Reconfirm is called
func (g *Guard) RequiresReconfirm() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requiresReconfirm
}

// Reconfirm records that the user accepted the changed route
func (g *Guard) Reconfirm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requiresReconfirm = false
}

// Cancel aborts any in-flight check, e.g. when the user navigates away
func (g *Guard) Cancel() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.seq++
}

// IsCancelled reports whether err comes from a cancelled check
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

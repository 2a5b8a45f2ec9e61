package simulate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "simulate").Logger()
}

var (
	// ErrZeroAmount is returned without touching the network
	ErrZeroAmount = errors.New("amount is zero")
	// ErrUnknownAsset means the source asset is not in the catalog, so its decimals are unknown
	ErrUnknownAsset = errors.New("unknown source asset")
	// ErrNoRoute is a user-input error: the routing service found nothing for these inputs
	ErrNoRoute = errors.New("no route found")
)

// RouteQuerier is the routing service route endpoint
type RouteQuerier interface {
	Route(ctx context.Context, req models.RouteRequest) (*models.Route, error)
}

// ChainLookup is the registry view the simulator needs
type ChainLookup interface {
	FindChain(ctx context.Context, chainID string) models.ChainDescriptor
	ChainType(chain models.ChainDescriptor) models.ChainType
	FindAsset(ctx context.Context, denom, chainID string) (models.AssetDescriptor, bool)
	Layer1() string
}

// Result is the outcome of one route query
type Result struct {
	Route *models.Route
	Err   error
}

// Selection holds both query outcomes and the one the policy picked.
type Selection struct {
	Route      *models.Route
	Type       models.RouteType
	FellBack   bool
	Default    Result
	OpWithdraw *Result // nil when the transfer is not op-withdraw eligible
	Request    models.RouteRequest
}

// Simulator runs route queries and applies the preference policy.
type Simulator struct {
	router RouteQuerier
	chains ChainLookup

	simulations metric.Int64Counter
	fallbacks   metric.Int64Counter
}

func NewSimulator(router RouteQuerier, chains ChainLookup) *Simulator {
	meter := otel.Meter("github.com/Cogwheel-Validator/spectra-bridge/bridge/simulate")
	simulations, err := meter.Int64Counter("bridge.route.simulations",
		metric.WithDescription("Route simulations by selected route type"))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create simulations counter")
	}
	fallbacks, err := meter.Int64Counter("bridge.route.fallbacks",
		metric.WithDescription("Simulations that fell back to the other route type"))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create fallbacks counter")
	}
	return &Simulator{
		router:      router,
		chains:      chains,
		simulations: simulations,
		fallbacks:   fallbacks,
	}
}

// BuildRequest converts form values into a route request. isOpWithdraw selects the route class.
func (s *Simulator) BuildRequest(ctx context.Context, values models.FormValues, isOpWithdraw bool) (models.RouteRequest, error) {
	if values.IsZeroQuantity() {
		return models.RouteRequest{}, ErrZeroAmount
	}
	if err := values.Validate(); err != nil {
		return models.RouteRequest{}, err
	}
	asset, ok := s.chains.FindAsset(ctx, values.SrcDenom, values.SrcChainID)
	if !ok {
		return models.RouteRequest{}, fmt.Errorf("%w: %s on %s", ErrUnknownAsset, values.SrcDenom, values.SrcChainID)
	}
	amount, err := models.ToBaseUnits(values.Quantity, asset.Decimals)
	if err != nil {
		return models.RouteRequest{}, err
	}
	return models.RouteRequest{
		AmountIn:           amount,
		SourceAssetDenom:   values.SrcDenom,
		SourceAssetChainID: values.SrcChainID,
		DestAssetDenom:     values.DstDenom,
		DestAssetChainID:   values.DstChainID,
		IsOpWithdraw:       isOpWithdraw,
	}, nil
}

// OpWithdrawEligible reports whether the lossless op-bridge withdrawal can run:
// the source is a rollup of the network, the destination is layer 1, both ends
// carry the same symbol and the denom is registered for the op-bridge.
//
// "Same chain on both ends" means the same asset lineage, not the same chain id.
// A withdrawal always leaves a rollup, so a source equal to layer 1 is never
// eligible; layer 1 must be the destination.
func (s *Simulator) OpWithdrawEligible(ctx context.Context, values models.FormValues) bool {
	layer1 := s.chains.Layer1()
	if layer1 == "" || values.DstChainID != layer1 || values.SrcChainID == layer1 {
		return false
	}
	src := s.chains.FindChain(ctx, values.SrcChainID)
	if s.chains.ChainType(src) != models.ChainTypeInitia {
		return false
	}
	srcAsset, ok := s.chains.FindAsset(ctx, values.SrcDenom, values.SrcChainID)
	if !ok {
		return false
	}
	dstAsset, ok := s.chains.FindAsset(ctx, values.DstDenom, values.DstChainID)
	if !ok || srcAsset.Symbol != dstAsset.Symbol {
		return false
	}
	return src.HasOpDenom(values.DstDenom)
}

// Simulate queries the default route and, when eligible, the op-withdraw route in
// parallel. The pick depends only on the preference and on which query failed.
// An empty answer is not a failure and never triggers the fallback.
func (s *Simulator) Simulate(ctx context.Context, values models.FormValues) (*Selection, error) {
	defaultReq, err := s.BuildRequest(ctx, values, false)
	if err != nil {
		return nil, err
	}
	opReq := defaultReq
	opReq.IsOpWithdraw = true

	eligible := s.OpWithdrawEligible(ctx, values)

	var defaultResult, opResult Result
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defaultResult.Route, defaultResult.Err = s.router.Route(gctx, defaultReq)
		return nil
	})
	if eligible {
		g.Go(func() error {
			opResult.Route, opResult.Err = s.router.Route(gctx, opReq)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sel := &Selection{Default: defaultResult, Request: defaultReq}
	if eligible {
		sel.OpWithdraw = &opResult
	}

	preferOp := values.RouteType == models.RouteTypeOpWithdraw && eligible
	preferred, preferredType := defaultResult, models.RouteTypeDefault
	fallback, fallbackType, fallbackEnabled := opResult, models.RouteTypeOpWithdraw, eligible
	if preferOp {
		preferred, preferredType = opResult, models.RouteTypeOpWithdraw
		fallback, fallbackType, fallbackEnabled = defaultResult, models.RouteTypeDefault, true
	}

	chosen, chosenType := preferred, preferredType
	if preferred.Err != nil && fallbackEnabled {
		chosen, chosenType = fallback, fallbackType
		sel.FellBack = true
		s.count(ctx, s.fallbacks, chosenType)
		log.Debug().Err(preferred.Err).Str("fallback", string(fallbackType)).Msg("Preferred route failed")
	}

	sel.Type = chosenType
	if chosenType == models.RouteTypeOpWithdraw {
		sel.Request = opReq
	}
	s.count(ctx, s.simulations, chosenType)

	if chosen.Err != nil {
		return sel, chosen.Err
	}
	if chosen.Route == nil {
		return sel, ErrNoRoute
	}
	sel.Route = chosen.Route
	return sel, nil
}

func (s *Simulator) count(ctx context.Context, counter metric.Int64Counter, routeType models.RouteType) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, metric.WithAttributes(attribute.String("route_type", string(routeType))))
}

// RefreshInterval is how often a displayed quote is re-simulated.
func RefreshInterval(values models.FormValues, layer1 string, srcType models.ChainType) time.Duration {
	if values.SrcChainID == values.DstChainID {
		if values.SrcChainID == layer1 {
			return 5 * time.Second
		}
		if srcType == models.ChainTypeInitia {
			return 2 * time.Second
		}
	}
	return 10 * time.Second
}

// RefreshIntervalFor looks up the chain type and returns RefreshInterval
func (s *Simulator) RefreshIntervalFor(ctx context.Context, values models.FormValues) time.Duration {
	srcType := s.chains.ChainType(s.chains.FindChain(ctx, values.SrcChainID))
	return RefreshInterval(values, s.chains.Layer1(), srcType)
}

package registry

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/clock"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "registry").Logger()
}

// DefaultTTL is how long catalog answers are reused
const DefaultTTL = time.Minute

const (
	keyChains = "chains"
	keyAssets = "assets"
)

// Catalog is the part of the routing service the registry reads from.
type Catalog interface {
	Chains(ctx context.Context) ([]models.ChainDescriptor, error)
	Assets(ctx context.Context, chainIDs ...string) (*models.AssetsResponse, error)
}

// Registry merges the routing service catalog with the fallback registry.
// One Registry is shared by every pipeline instance.
type Registry struct {
	catalog       Catalog
	fallback      *Fallback
	layer1ChainID string

	chains *Cache[[]models.ChainDescriptor]
	assets *Cache[[]models.AssetDescriptor]
}

// Options configures a Registry
type Options struct {
	// Layer1ChainID overrides the layer 1 flag of the fallback registry
	Layer1ChainID string
	TTL           time.Duration
	Clock         clock.Clock
}

func New(catalog Catalog, fallback *Fallback, opts Options) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	layer1 := opts.Layer1ChainID
	if layer1 == "" {
		layer1 = fallback.Layer1()
	}
	return &Registry{
		catalog:       catalog,
		fallback:      fallback,
		layer1ChainID: layer1,
		chains:        NewCache[[]models.ChainDescriptor](opts.TTL, opts.Clock),
		assets:        NewCache[[]models.AssetDescriptor](opts.TTL, opts.Clock),
	}
}

// Chains returns the routing service chains followed by registry-only chains.
// When the routing service is unavailable only registry chains are returned.
func (r *Registry) Chains(ctx context.Context) []models.ChainDescriptor {
	chains, err := r.chains.GetOrLoad(ctx, keyChains, r.loadChains)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("Chain catalog unavailable, using fallback registry")
		}
		return r.fallback.Descriptors()
	}
	return chains
}

func (r *Registry) loadChains(ctx context.Context) ([]models.ChainDescriptor, error) {
	remote, err := r.catalog.Chains(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.ChainDescriptor, 0, len(remote))
	known := make(map[string]bool, len(remote))
	for _, c := range remote {
		// op denoms only live in the registry
		if entry, ok := r.fallback.Lookup(c.ChainID); ok && len(c.OpDenoms) == 0 {
			c.OpDenoms = append([]string(nil), entry.Metadata.OpDenoms...)
		}
		known[c.ChainID] = true
		out = append(out, c)
	}
	for _, c := range r.fallback.Descriptors() {
		if !known[c.ChainID] {
			out = append(out, c)
		}
	}
	log.Debug().Int("remote", len(remote)).Int("total", len(out)).Msg("Chain catalog refreshed")
	return out, nil
}

// FindChain never fails: an unknown chain yields a synthetic descriptor carrying only its id.
func (r *Registry) FindChain(ctx context.Context, chainID string) models.ChainDescriptor {
	for _, c := range r.Chains(ctx) {
		if c.ChainID == chainID {
			return c
		}
	}
	if entry, ok := r.fallback.Lookup(chainID); ok {
		return entry.Descriptor()
	}
	return models.ChainDescriptor{ChainID: chainID, ChainName: chainID, Synthetic: true}
}

// Assets returns the flattened asset list of every known chain
func (r *Registry) Assets(ctx context.Context) ([]models.AssetDescriptor, error) {
	return r.assets.GetOrLoad(ctx, keyAssets, func(ctx context.Context) ([]models.AssetDescriptor, error) {
		resp, err := r.catalog.Assets(ctx)
		if err != nil {
			return nil, err
		}
		order := make([]string, 0)
		for _, c := range r.Chains(ctx) {
			order = append(order, c.ChainID)
		}
		return resp.Flatten(order), nil
	})
}

// FindAsset looks up denom on chainID. The second value is false when the asset is unknown.
func (r *Registry) FindAsset(ctx context.Context, denom, chainID string) (models.AssetDescriptor, bool) {
	assets, err := r.Assets(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("denom", denom).Msg("Asset catalog unavailable")
		}
		return models.AssetDescriptor{Denom: denom, ChainID: chainID, Symbol: denom}, false
	}
	for _, a := range assets {
		if a.Denom == denom && a.ChainID == chainID {
			return a, true
		}
	}
	return models.AssetDescriptor{Denom: denom, ChainID: chainID, Symbol: denom}, false
}

// ChainType classifies a chain. Chains in the canonical registry are always
// initia, whatever the routing service tags them with.
func (r *Registry) ChainType(chain models.ChainDescriptor) models.ChainType {
	if r.fallback.Has(chain.ChainID) {
		return models.ChainTypeInitia
	}
	switch models.ChainType(strings.ToLower(chain.ChainType)) {
	case models.ChainTypeInitia:
		return models.ChainTypeInitia
	case models.ChainTypeEVM:
		return models.ChainTypeEVM
	}
	return models.ChainTypeCosmos
}

// ChainTypeOf classifies the chain with the given id
func (r *Registry) ChainTypeOf(ctx context.Context, chainID string) models.ChainType {
	return r.ChainType(r.FindChain(ctx, chainID))
}

// Layer1 returns the network's layer 1 chain id
func (r *Registry) Layer1() string {
	return r.layer1ChainID
}

// Invalidate drops cached catalog answers so the next read goes to the routing service
func (r *Registry) Invalidate() {
	r.chains.Invalidate(keyChains)
	r.assets.Invalidate(keyAssets)
}

package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
)

var ErrEmptyIntent = errors.New("no asset or chain found in the text")

// Catalog is the registry view the resolver needs. *registry.Registry satisfies it.
type Catalog interface {
	Chains(ctx context.Context) []models.ChainDescriptor
	Assets(ctx context.Context) ([]models.AssetDescriptor, error)
}

// Resolver matches parsed slots against the chain and asset catalogs.
type Resolver struct {
	catalog Catalog
}

func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

func chainKeys(c models.ChainDescriptor) []string {
	return []string{c.PrettyName, c.ChainName, c.ChainID}
}

func assetKeys(a models.AssetDescriptor) []string {
	return []string{a.Symbol, a.Name}
}

// snapshot is the catalog as seen by one Resolve call
type snapshot struct {
	chains []models.ChainDescriptor
	assets []models.AssetDescriptor
}

func (s snapshot) matchChain(text string, worst Tier) (models.ChainDescriptor, bool) {
	if strings.TrimSpace(text) == "" {
		return models.ChainDescriptor{}, false
	}
	ranked := Rank(text, s.chains, chainKeys)
	if len(ranked) == 0 || ranked[0].Tier > worst {
		return models.ChainDescriptor{}, false
	}
	return ranked[0].Item, true
}

func (s snapshot) exactSymbol(text string) bool {
	for _, a := range s.assets {
		if strings.EqualFold(a.Symbol, strings.TrimSpace(text)) {
			return true
		}
	}
	return false
}

func (s snapshot) onChain(chainID string) []models.AssetDescriptor {
	if chainID == "" {
		return s.assets
	}
	out := make([]models.AssetDescriptor, 0)
	for _, a := range s.assets {
		if a.ChainID == chainID {
			out = append(out, a)
		}
	}
	return out
}

// pairing finds the asset carrying symbol on chainID
func (s snapshot) pairing(symbol, chainID string) (models.AssetDescriptor, bool) {
	for _, a := range s.assets {
		if a.ChainID == chainID && strings.EqualFold(a.Symbol, symbol) {
			return a, true
		}
	}
	return models.AssetDescriptor{}, false
}

// splitChainHint pulls chain names out of a multi-word asset query:
// "echelon iusd" becomes the query "iusd" limited to the Echelon chain.
func (s snapshot) splitChainHint(text string) (string, models.ChainDescriptor, bool) {
	words := strings.Fields(text)
	if len(words) < 2 {
		return text, models.ChainDescriptor{}, false
	}
	rest := make([]string, 0, len(words))
	var hint models.ChainDescriptor
	found := false
	for _, w := range words {
		if !found && !s.exactSymbol(w) {
			if chain, ok := s.matchChain(w, TierPrefix); ok {
				hint, found = chain, true
				continue
			}
		}
		rest = append(rest, w)
	}
	if !found || len(rest) == 0 {
		return text, models.ChainDescriptor{}, false
	}
	return strings.Join(rest, " "), hint, true
}

func (s snapshot) matchAsset(text, chainID string) (models.AssetDescriptor, bool) {
	ranked := Rank(text, s.onChain(chainID), assetKeys)
	if len(ranked) == 0 {
		return models.AssetDescriptor{}, false
	}
	return ranked[0].Item, true
}

func setChain(slot *models.IntentSlot, c models.ChainDescriptor) {
	slot.ChainID = c.ChainID
	slot.ChainName = c.DisplayName()
	slot.ChainLogo = c.LogoURI
}

func setAsset(slot *models.IntentSlot, a models.AssetDescriptor) {
	slot.Symbol = a.Symbol
	slot.Denom = a.Denom
	slot.Decimals = a.Decimals
	slot.AssetLogo = a.LogoURI
}

// resolveSlot resolves chain text first, then asset text within that chain.
// Without a chain the asset only fixes the symbol unless a single chain carries it.
func (s snapshot) resolveSlot(slot Slot, chainFallback string) models.IntentSlot {
	var out models.IntentSlot

	if chain, ok := s.matchChain(slot.ChainText, TierSubstring); ok {
		setChain(&out, chain)
	}

	assetText := slot.AssetText
	if out.ChainID == "" {
		if query, hint, ok := s.splitChainHint(assetText); ok {
			assetText = query
			setChain(&out, hint)
		}
	}
	if strings.TrimSpace(assetText) == "" {
		return out
	}
	if out.ChainID == "" && chainFallback != "" {
		if _, ok := s.matchAsset(assetText, chainFallback); ok {
			for _, c := range s.chains {
				if c.ChainID == chainFallback {
					setChain(&out, c)
					break
				}
			}
		}
	}

	if out.ChainID != "" {
		if asset, ok := s.matchAsset(assetText, out.ChainID); ok {
			setAsset(&out, asset)
			return out
		}
	}
	asset, ok := s.matchAsset(assetText, "")
	if !ok {
		return out
	}
	out.Symbol = asset.Symbol
	if out.ChainID != "" {
		// not on this chain; lock rolls the chain back
		return out
	}
	out.AssetLogo = asset.LogoURI
	var carriers []models.AssetDescriptor
	for _, a := range s.assets {
		if strings.EqualFold(a.Symbol, asset.Symbol) {
			carriers = append(carriers, a)
		}
	}
	if len(carriers) == 1 {
		for _, c := range s.chains {
			if c.ChainID == carriers[0].ChainID {
				setChain(&out, c)
				break
			}
		}
		if out.ChainID == "" {
			out.ChainID = carriers[0].ChainID
			out.ChainName = carriers[0].ChainID
		}
		setAsset(&out, carriers[0])
	}
	return out
}

// lock re-validates symbol and chain against the asset list. A slot whose symbol
// does not exist on its chain loses its chain.
func (s snapshot) lock(slot *models.IntentSlot) {
	if slot.ChainID == "" || slot.Symbol == "" {
		slot.Denom = ""
		return
	}
	if asset, ok := s.pairing(slot.Symbol, slot.ChainID); ok {
		if slot.Denom == "" {
			setAsset(slot, asset)
		}
		return
	}
	slot.ChainID = ""
	slot.ChainName = ""
	slot.ChainLogo = ""
	slot.Denom = ""
	slot.Decimals = 0
}

// Resolve turns parsed text into chain ids and denoms. A bare destination that
// names a chain and no asset symbol is read as the destination chain. The
// destination asset defaults to the source symbol and the destination chain to
// the source chain.
func (r *Resolver) Resolve(ctx context.Context, parsed Parsed) (models.ResolvedIntent, error) {
	if parsed.Src.Empty() && parsed.Dst.Empty() {
		return models.ResolvedIntent{}, ErrEmptyIntent
	}
	assets, err := r.catalog.Assets(ctx)
	if err != nil {
		return models.ResolvedIntent{}, fmt.Errorf("failed to load asset catalog: %w", err)
	}
	s := snapshot{chains: r.catalog.Chains(ctx), assets: assets}

	dst := parsed.Dst
	if dst.ChainText == "" && dst.AssetText != "" && !s.exactSymbol(dst.AssetText) {
		if _, ok := s.matchChain(dst.AssetText, TierPrefix); ok {
			dst.ChainText, dst.AssetText = dst.AssetText, ""
		}
	}

	out := models.ResolvedIntent{Amount: parsed.Amount}
	out.Src = s.resolveSlot(parsed.Src, "")

	// only a destination asset was given: stay on the source chain
	chainFallback := ""
	if dst.ChainText == "" && dst.AssetText != "" {
		chainFallback = out.Src.ChainID
	}
	out.Dst = s.resolveSlot(dst, chainFallback)

	if dst.AssetText == "" && out.Src.Symbol != "" && out.Dst.ChainID != "" {
		if asset, ok := s.pairing(out.Src.Symbol, out.Dst.ChainID); ok {
			setAsset(&out.Dst, asset)
		}
	}

	s.lock(&out.Src)
	s.lock(&out.Dst)
	return out, nil
}

// ParseAndResolve runs Parse and Resolve
func (r *Resolver) ParseAndResolve(ctx context.Context, text string) (Parsed, models.ResolvedIntent, error) {
	parsed := Parse(text)
	resolved, err := r.Resolve(ctx, parsed)
	return parsed, resolved, err
}

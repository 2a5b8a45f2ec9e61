package intent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/intent"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/zeebo/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		want intent.Parsed
	}{
		{
			"100 USDC from Ethereum to iUSD on Cabal",
			intent.Parsed{Amount: "100", Src: intent.Slot{AssetText: "USDC", ChainText: "Ethereum"}, Dst: intent.Slot{AssetText: "iUSD", ChainText: "Cabal"}},
		},
		{"ETH -> INIT", intent.Parsed{Src: intent.Slot{AssetText: "ETH"}, Dst: intent.Slot{AssetText: "INIT"}}},
		{"ETH => INIT", intent.Parsed{Src: intent.Slot{AssetText: "ETH"}, Dst: intent.Slot{AssetText: "INIT"}}},
		{"ETH→INIT", intent.Parsed{Src: intent.Slot{AssetText: "ETH"}, Dst: intent.Slot{AssetText: "INIT"}}},
		{
			"1,250.5 usdc on noble to osmosis",
			intent.Parsed{Amount: "1250.5", Src: intent.Slot{AssetText: "usdc", ChainText: "noble"}, Dst: intent.Slot{AssetText: "osmosis"}},
		},
		{
			"swap 2 echelon iusd to usdc",
			intent.Parsed{Amount: "2", Src: intent.Slot{AssetText: "echelon iusd"}, Dst: intent.Slot{AssetText: "usdc"}},
		},
		{"", intent.Parsed{}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.DeepEqual(t, intent.Parse(tt.text), tt.want)
		})
	}
}

type named struct{ name string }

func names(n named) []string { return []string{n.name} }

func TestRankTiers(t *testing.T) {
	items := []named{{"Ethereum"}, {"Celestia"}}

	ranked := intent.Rank("eth", items, names)
	assert.Equal(t, len(ranked), 1)
	assert.Equal(t, ranked[0].Item.name, "Ethereum")
	assert.Equal(t, ranked[0].Tier, intent.TierPrefix)

	ranked = intent.Rank("eum", items, names)
	assert.Equal(t, len(ranked), 1)
	assert.Equal(t, ranked[0].Item.name, "Ethereum")
	assert.Equal(t, ranked[0].Tier, intent.TierSubstring)

	items = []named{{"Wrapped Ether"}, {"ether_fi"}, {"Tether"}, {"Ether"}, {"Ethena USD"}}
	ranked = intent.Rank("ether", items, names)
	got := make([]string, len(ranked))
	for i, m := range ranked {
		got[i] = m.Item.name
	}
	// exact, prefix by length, word boundary, substring
	assert.DeepEqual(t, got, []string{"Ether", "ether_fi", "Wrapped Ether", "Tether"})
}

func TestRankTieBreak(t *testing.T) {
	items := []named{{"xxusdc"}, {"xusdcx"}, {"xusdc"}, {"xusdb"}}
	ranked := intent.Rank("usd", items, names)
	got := make([]string, len(ranked))
	for i, m := range ranked {
		got[i] = m.Item.name
	}
	// earliest position, then shortest, then lexicographic
	assert.DeepEqual(t, got, []string{"xusdb", "xusdc", "xusdcx", "xxusdc"})
}

type catalog struct {
	chains []models.ChainDescriptor
	assets []models.AssetDescriptor
}

func (c catalog) Chains(ctx context.Context) []models.ChainDescriptor { return c.chains }

func (c catalog) Assets(ctx context.Context) ([]models.AssetDescriptor, error) {
	return c.assets, nil
}

func testCatalog() catalog {
	return catalog{
		chains: []models.ChainDescriptor{
			{ChainID: "interwoven-1", ChainName: "initia", PrettyName: "Initia"},
			{ChainID: "42161", ChainName: "arbitrum", PrettyName: "Arbitrum"},
			{ChainID: "1", ChainName: "ethereum", PrettyName: "Ethereum"},
			{ChainID: "cabal-1", ChainName: "cabal", PrettyName: "Cabal"},
			{ChainID: "echelon-1", ChainName: "echelon", PrettyName: "Echelon"},
		},
		assets: []models.AssetDescriptor{
			{Denom: "uinit", ChainID: "interwoven-1", Symbol: "INIT", Decimals: 6},
			{Denom: "ibc/usdc", ChainID: "interwoven-1", Symbol: "USDC", Decimals: 6},
			{Denom: "0xaf88d065e77c8cc2239327c5edb3a432268e5831", ChainID: "42161", Symbol: "USDC", Decimals: 6},
			{Denom: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", ChainID: "1", Symbol: "USDC", Decimals: 6},
			{Denom: "ethereum-native", ChainID: "1", Symbol: "ETH", Decimals: 18},
			{Denom: "l2/iusd-cabal", ChainID: "cabal-1", Symbol: "iUSD", Decimals: 6},
			{Denom: "l2/iusd-echelon", ChainID: "echelon-1", Symbol: "iUSD", Decimals: 6},
		},
	}
}

func TestResolveFullIntent(t *testing.T) {
	r := intent.NewResolver(testCatalog())

	_, got, err := r.ParseAndResolve(context.Background(), "100 USDC from Ethereum to iUSD on Cabal")
	assert.NoError(t, err)
	assert.True(t, got.IsComplete())
	assert.Equal(t, got.Amount, "100")
	assert.Equal(t, got.Src.ChainID, "1")
	assert.Equal(t, got.Src.Denom, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	assert.Equal(t, got.Dst.ChainID, "cabal-1")
	assert.Equal(t, got.Dst.Denom, "l2/iusd-cabal")

	form := got.FormValues()
	assert.Equal(t, form.Quantity, "100")
	assert.Equal(t, form.DstDenom, "l2/iusd-cabal")
}

func TestResolveCarriesSymbolToDestinationChain(t *testing.T) {
	r := intent.NewResolver(testCatalog())

	parsed, got, err := r.ParseAndResolve(context.Background(), "1 USDC from Arbitrum to Initia")
	assert.NoError(t, err)
	assert.Equal(t, parsed.Dst.AssetText, "Initia")
	assert.True(t, got.IsComplete())
	assert.Equal(t, got.Src.ChainID, "42161")
	assert.Equal(t, got.Dst.ChainID, "interwoven-1")
	assert.Equal(t, got.Dst.Symbol, "USDC")
	assert.Equal(t, got.Dst.Denom, "ibc/usdc")
}

func TestResolveDestinationChainDefaultsToSource(t *testing.T) {
	r := intent.NewResolver(testCatalog())

	_, got, err := r.ParseAndResolve(context.Background(), "5 USDC on Initia to INIT")
	assert.NoError(t, err)
	assert.True(t, got.IsComplete())
	assert.Equal(t, got.Dst.ChainID, "interwoven-1")
	assert.Equal(t, got.Dst.Denom, "uinit")
}

func TestResolveMultiWordAsset(t *testing.T) {
	r := intent.NewResolver(testCatalog())

	_, got, err := r.ParseAndResolve(context.Background(), "echelon iusd to cabal")
	assert.NoError(t, err)
	assert.Equal(t, got.Src.ChainID, "echelon-1")
	assert.Equal(t, got.Src.Denom, "l2/iusd-echelon")
	assert.Equal(t, got.Dst.ChainID, "cabal-1")
	assert.Equal(t, got.Dst.Denom, "l2/iusd-cabal")
	assert.True(t, got.IsComplete())
}

func TestResolveAmbiguousSourceStaysIncomplete(t *testing.T) {
	r := intent.NewResolver(testCatalog())

	_, got, err := r.ParseAndResolve(context.Background(), "ETH -> INIT")
	assert.NoError(t, err)
	assert.Equal(t, got.Amount, "")
	// ETH only exists on one chain, INIT as well
	assert.Equal(t, got.Src.ChainID, "1")
	assert.Equal(t, got.Dst.Denom, "uinit")

	_, got, err = r.ParseAndResolve(context.Background(), "USDC to INIT")
	assert.NoError(t, err)
	assert.Equal(t, got.Src.Symbol, "USDC")
	assert.Equal(t, got.Src.ChainID, "")
	assert.False(t, got.IsComplete())
}

func TestResolveRollsBackChainWithoutPairing(t *testing.T) {
	r := intent.NewResolver(testCatalog())

	_, got, err := r.ParseAndResolve(context.Background(), "ETH on Initia to USDC on Arbitrum")
	assert.NoError(t, err)
	assert.Equal(t, got.Src.ChainID, "")
	assert.Equal(t, got.Src.Denom, "")
	assert.Equal(t, got.Dst.ChainID, "42161")
	assert.False(t, got.IsComplete())
}

func TestResolveEmpty(t *testing.T) {
	r := intent.NewResolver(testCatalog())
	_, _, err := r.ParseAndResolve(context.Background(), "42")
	assert.True(t, errors.Is(err, intent.ErrEmptyIntent))
}

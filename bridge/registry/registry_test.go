package registry_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/clock"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/registry"
	"github.com/zeebo/assert"
)

type mockCatalog struct {
	chains     []models.ChainDescriptor
	assets     *models.AssetsResponse
	err        error
	chainCalls int
	assetCalls int
}

func (m *mockCatalog) Chains(ctx context.Context) ([]models.ChainDescriptor, error) {
	m.chainCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.chains, nil
}

func (m *mockCatalog) Assets(ctx context.Context, chainIDs ...string) (*models.AssetsResponse, error) {
	m.assetCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.assets, nil
}

func testFallback() *registry.Fallback {
	return registry.NewFallback([]registry.RegistryChain{
		{
			ChainID:      "interwoven-1",
			ChainName:    "initia",
			PrettyName:   "Initia",
			Bech32Prefix: "init",
			Metadata:     registry.RegistryMetadata{IsL1: true},
		},
		{
			ChainID:      "echelon-1",
			ChainName:    "echelon",
			PrettyName:   "Echelon",
			Bech32Prefix: "init",
			Metadata:     registry.RegistryMetadata{OpDenoms: []string{"uinit"}},
		},
		{
			ChainID:      "yominet-1",
			ChainName:    "yominet",
			PrettyName:   "Yominet",
			Bech32Prefix: "init",
		},
	})
}

func testCatalog() *mockCatalog {
	return &mockCatalog{
		chains: []models.ChainDescriptor{
			{ChainID: "interwoven-1", ChainName: "initia", ChainType: "initia", Bech32Prefix: "init"},
			{ChainID: "echelon-1", ChainName: "echelon", ChainType: "cosmos", Bech32Prefix: "init"},
			{ChainID: "osmosis-1", ChainName: "osmosis", ChainType: "cosmos", Bech32Prefix: "osmo"},
			{ChainID: "1", ChainName: "ethereum", ChainType: "evm"},
		},
		assets: &models.AssetsResponse{ChainToAssetsMap: map[string]models.AssetList{
			"osmosis-1":    {Assets: []models.AssetDescriptor{{Denom: "uosmo", ChainID: "osmosis-1", Symbol: "OSMO", Decimals: 6}}},
			"interwoven-1": {Assets: []models.AssetDescriptor{{Denom: "uinit", ChainID: "interwoven-1", Symbol: "INIT", Decimals: 6}}},
		}},
	}
}

func TestChainTypeClassification(t *testing.T) {
	reg := registry.New(testCatalog(), testFallback(), registry.Options{})
	ctx := context.Background()

	tests := []struct {
		chainID string
		want    models.ChainType
	}{
		{"interwoven-1", models.ChainTypeInitia},
		// appchain tagged cosmos by the routing service is still initia
		{"echelon-1", models.ChainTypeInitia},
		{"osmosis-1", models.ChainTypeCosmos},
		{"1", models.ChainTypeEVM},
		{"unknown-7", models.ChainTypeCosmos},
	}

	for _, tt := range tests {
		t.Run(tt.chainID, func(t *testing.T) {
			assert.Equal(t, reg.ChainTypeOf(ctx, tt.chainID), tt.want)
		})
	}
}

func TestFindChainMergesAndFallsBack(t *testing.T) {
	reg := registry.New(testCatalog(), testFallback(), registry.Options{})
	ctx := context.Background()

	echelon := reg.FindChain(ctx, "echelon-1")
	assert.True(t, echelon.HasOpDenom("uinit"))

	// known only to the registry
	yomi := reg.FindChain(ctx, "yominet-1")
	assert.Equal(t, yomi.PrettyName, "Yominet")
	assert.False(t, yomi.Synthetic)

	missing := reg.FindChain(ctx, "nowhere-1")
	assert.True(t, missing.Synthetic)
	assert.Equal(t, missing.ChainID, "nowhere-1")
	assert.Equal(t, missing.Bech32Prefix, "")

	assert.Equal(t, reg.Layer1(), "interwoven-1")
}

func TestCatalogFailureUsesFallback(t *testing.T) {
	catalog := &mockCatalog{err: errors.New("boom")}
	reg := registry.New(catalog, testFallback(), registry.Options{})

	chains := reg.Chains(context.Background())
	assert.Equal(t, len(chains), 3)

	_, found := reg.FindAsset(context.Background(), "uinit", "interwoven-1")
	assert.False(t, found)
}

func TestCacheTTLWithInjectedClock(t *testing.T) {
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	catalog := testCatalog()
	reg := registry.New(catalog, testFallback(), registry.Options{TTL: time.Minute, Clock: fake})
	ctx := context.Background()

	reg.Chains(ctx)
	reg.Chains(ctx)
	assert.Equal(t, catalog.chainCalls, 1)

	fake.Advance(59 * time.Second)
	reg.Chains(ctx)
	assert.Equal(t, catalog.chainCalls, 1)

	fake.Advance(2 * time.Second)
	reg.Chains(ctx)
	assert.Equal(t, catalog.chainCalls, 2)

	asset, found := reg.FindAsset(ctx, "uosmo", "osmosis-1")
	assert.True(t, found)
	assert.Equal(t, asset.Symbol, "OSMO")
	_, _ = reg.FindAsset(ctx, "uinit", "interwoven-1")
	assert.Equal(t, catalog.assetCalls, 1)
}

func TestInvalidateForcesReload(t *testing.T) {
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	catalog := testCatalog()
	reg := registry.New(catalog, testFallback(), registry.Options{TTL: time.Hour, Clock: fake})
	ctx := context.Background()

	_, err := reg.Assets(ctx)
	assert.NoError(t, err)
	assert.Equal(t, catalog.chainCalls, 1)
	assert.Equal(t, catalog.assetCalls, 1)

	reg.Invalidate()
	_, err = reg.Assets(ctx)
	assert.NoError(t, err)
	assert.Equal(t, catalog.chainCalls, 2)
	assert.Equal(t, catalog.assetCalls, 2)
}

func TestFlattenOrder(t *testing.T) {
	reg := registry.New(testCatalog(), testFallback(), registry.Options{})
	assets, err := reg.Assets(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, len(assets), 2)
	// interwoven-1 comes first in the chain catalog
	assert.Equal(t, assets[0].Denom, "uinit")
}

func TestLoadRegistryFileTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.toml")
	content := `
[[chains]]
chain_id = "interwoven-1"
chain_name = "initia"
pretty_name = "Initia"
bech32_prefix = "init"

[chains.metadata]
is_l1 = true

[[chains]]
chain_id = "minievm-1"
chain_name = "minievm"
bech32_prefix = "init"
evm_chain_id = "2124225178762456"

[chains.metadata]
op_denoms = ["uinit"]

[chains.metadata.minitia]
type = "minievm"
`
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	chains, err := registry.LoadRegistryFile(path)
	assert.NoError(t, err)
	assert.Equal(t, len(chains), 2)
	assert.True(t, chains[0].Metadata.IsL1)
	assert.Equal(t, chains[1].Metadata.Minitia.Type, "minievm")
	assert.Equal(t, chains[1].Metadata.OpDenoms[0], "uinit")

	// a prefix-less minievm rollup is still an initia chain
	evmOnly := chains[1]
	evmOnly.Bech32Prefix = ""
	assert.Equal(t, evmOnly.Descriptor().ChainType, string(models.ChainTypeInitia))
	reg := registry.New(&mockCatalog{err: errors.New("offline")}, registry.NewFallback([]registry.RegistryChain{evmOnly}), registry.Options{})
	assert.Equal(t, reg.ChainTypeOf(context.Background(), "minievm-1"), models.ChainTypeInitia)

	_, err = registry.LoadRegistryFile(filepath.Join(dir, "registry.yaml"))
	assert.Error(t, err)
}

func TestLoadFallbackDownloadsRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"chain_id":"cabal-1","chain_name":"cabal","pretty_name":"Cabal","bech32_prefix":"init"}]`))
	}))
	defer srv.Close()

	fallback, err := registry.LoadFallback(context.Background(), "", srv.URL+"/chains.json", t.TempDir())
	assert.NoError(t, err)
	assert.True(t, fallback.Has("cabal-1"))
}

func TestRecentPairs(t *testing.T) {
	recent := registry.NewRecentPairs(2)
	recent.Add(registry.Pair{ChainID: "a", Denom: "x"})
	recent.Add(registry.Pair{ChainID: "b", Denom: "y"})
	recent.Add(registry.Pair{ChainID: "a", Denom: "x"})
	recent.Add(registry.Pair{ChainID: "c", Denom: "z"})

	list := recent.List()
	assert.Equal(t, len(list), 2)
	assert.Equal(t, list[0].ChainID, "c")
	assert.Equal(t, list[1].ChainID, "a")
}

package models

import "sort"

// ChainType classifies a chain by its address format and derivation rules.
type ChainType string

const (
	ChainTypeInitia ChainType = "initia"
	ChainTypeCosmos ChainType = "cosmos"
	ChainTypeEVM    ChainType = "evm"
)

// ChainDescriptor is the metadata the pipeline needs about a chain.
type ChainDescriptor struct {
	ChainID      string     `json:"chain_id"`
	ChainName    string     `json:"chain_name"`
	PrettyName   string     `json:"pretty_name,omitempty"`
	ChainType    string     `json:"chain_type,omitempty"`    // routing service tag: "cosmos" | "evm" | "initia"
	Bech32Prefix string     `json:"bech32_prefix,omitempty"` // empty for evm chains
	LogoURI      string     `json:"logo_uri,omitempty"`
	EVMChainID   string     `json:"evm_chain_id,omitempty"` // decimal chain id for evm and minievm chains
	FeeAssets    []FeeAsset `json:"fee_assets,omitempty"`
	OpDenoms     []string   `json:"op_denoms,omitempty"` // denoms withdrawable through the op-bridge
	// Synthetic is set when the descriptor was not found anywhere and only carries the id.
	Synthetic bool `json:"synthetic,omitempty"`
}

// DisplayName returns the pretty name when known, falling back to the chain name and id.
func (c ChainDescriptor) DisplayName() string {
	if c.PrettyName != "" {
		return c.PrettyName
	}
	if c.ChainName != "" {
		return c.ChainName
	}
	return c.ChainID
}

// HasOpDenom reports whether denom is registered as op-bridge eligible on this chain.
func (c ChainDescriptor) HasOpDenom(denom string) bool {
	for _, d := range c.OpDenoms {
		if d == denom {
			return true
		}
	}
	return false
}

type FeeAsset struct {
	Denom    string `json:"denom"`
	GasPrice string `json:"gas_price,omitempty"`
}

// AssetDescriptor describes a denomination on a specific chain.
type AssetDescriptor struct {
	Denom         string `json:"denom"`
	ChainID       string `json:"chain_id"`
	Symbol        string `json:"symbol"`
	Name          string `json:"name,omitempty"`
	Decimals      uint32 `json:"decimals"`
	LogoURI       string `json:"logo_uri,omitempty"`
	OriginDenom   string `json:"origin_denom,omitempty"`
	OriginChainID string `json:"origin_chain_id,omitempty"`
	TokenContract string `json:"token_contract,omitempty"` // erc20 address on evm chains
	IsEVM         bool   `json:"is_evm,omitempty"`
}

// ChainsResponse - GET /v2/info/chains
type ChainsResponse struct {
	Chains []ChainDescriptor `json:"chains"`
}

// AssetList wraps the assets known on one chain
type AssetList struct {
	Assets []AssetDescriptor `json:"assets"`
}

// AssetsResponse - GET and POST /v2/fungible/assets
type AssetsResponse struct {
	ChainToAssetsMap map[string]AssetList `json:"chain_to_assets_map"`
}

// Flatten returns every asset of the response. Chains listed in chainOrder come first,
// the rest follow sorted by chain id.
func (r AssetsResponse) Flatten(chainOrder []string) []AssetDescriptor {
	seen := make(map[string]bool, len(r.ChainToAssetsMap))
	out := make([]AssetDescriptor, 0)
	for _, id := range chainOrder {
		list, ok := r.ChainToAssetsMap[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, list.Assets...)
	}

	rest := make([]string, 0)
	for id := range r.ChainToAssetsMap {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		out = append(out, r.ChainToAssetsMap[id].Assets...)
	}
	return out
}

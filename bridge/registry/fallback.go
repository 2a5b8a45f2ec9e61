package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/pelletier/go-toml/v2"
)

// RegistryChain is one entry of the chain registry, either the bundled TOML
// file or the remote chains.json document.
type RegistryChain struct {
	ChainID      string           `json:"chain_id" toml:"chain_id"`
	ChainName    string           `json:"chain_name" toml:"chain_name"`
	PrettyName   string           `json:"pretty_name" toml:"pretty_name"`
	Bech32Prefix string           `json:"bech32_prefix" toml:"bech32_prefix"`
	EVMChainID   string           `json:"evm_chain_id,omitempty" toml:"evm_chain_id"`
	LogoURIs     RegistryLogoURIs `json:"logo_URIs" toml:"logo_uris"`
	Metadata     RegistryMetadata `json:"metadata" toml:"metadata"`
}

type RegistryLogoURIs struct {
	PNG string `json:"png,omitempty" toml:"png"`
	SVG string `json:"svg,omitempty" toml:"svg"`
}

type RegistryMetadata struct {
	IsL1       bool            `json:"is_l1,omitempty" toml:"is_l1"`
	OpBridgeID string          `json:"op_bridge_id,omitempty" toml:"op_bridge_id"`
	OpDenoms   []string        `json:"op_denoms,omitempty" toml:"op_denoms"`
	Minitia    RegistryMinitia `json:"minitia" toml:"minitia"`
}

type RegistryMinitia struct {
	Type string `json:"type,omitempty" toml:"type"` // minievm | minimove | miniwasm
}

// RegistryFile is the bundled registry document
type RegistryFile struct {
	Chains []RegistryChain `toml:"chains"`
}

// Fallback is the secondary chain source. Every chain it holds is part of the
// canonical registry and is classified initia.
type Fallback struct {
	chains map[string]RegistryChain
	order  []string
	layer1 string
}

// NewFallback indexes the given chains. Later entries replace earlier ones with the same id.
func NewFallback(chains ...[]RegistryChain) *Fallback {
	f := &Fallback{chains: make(map[string]RegistryChain)}
	for _, list := range chains {
		for _, c := range list {
			if c.ChainID == "" {
				continue
			}
			if _, seen := f.chains[c.ChainID]; !seen {
				f.order = append(f.order, c.ChainID)
			}
			f.chains[c.ChainID] = c
			if c.Metadata.IsL1 {
				f.layer1 = c.ChainID
			}
		}
	}
	return f
}

// LoadRegistryFile reads chain registry entries from a TOML or JSON file.
//
// Params:
//   - path: the file to read, the extension decides the format
//
// Returns:
//   - []RegistryChain: the chains in the file
//   - error: if the file cannot be read or parsed
func LoadRegistryFile(path string) ([]RegistryChain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var doc RegistryFile
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse TOML registry: %w", err)
		}
		return doc.Chains, nil
	case ".json":
		return parseRegistryJSON(data)
	default:
		return nil, fmt.Errorf("unsupported registry format: %s (use .toml or .json)", filepath.Ext(path))
	}
}

// The remote document is either a bare array or {"chains": [...]}
func parseRegistryJSON(data []byte) ([]RegistryChain, error) {
	var list []RegistryChain
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Chains []RegistryChain `json:"chains"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse JSON registry: %w", err)
	}
	return wrapped.Chains, nil
}

// Has reports whether chainID is part of the canonical registry
func (f *Fallback) Has(chainID string) bool {
	if f == nil {
		return false
	}
	_, ok := f.chains[chainID]
	return ok
}

// Layer1 returns the chain flagged as layer 1, if any
func (f *Fallback) Layer1() string {
	if f == nil {
		return ""
	}
	return f.layer1
}

// Lookup returns the registry entry for chainID
func (f *Fallback) Lookup(chainID string) (RegistryChain, bool) {
	if f == nil {
		return RegistryChain{}, false
	}
	c, ok := f.chains[chainID]
	return c, ok
}

// Descriptors returns the registry chains in load order with reduced metadata
func (f *Fallback) Descriptors() []models.ChainDescriptor {
	if f == nil {
		return nil
	}
	out := make([]models.ChainDescriptor, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.chains[id].Descriptor())
	}
	return out
}

// Descriptor converts the entry into a chain descriptor. Network fields such as
// fee assets are left empty; only the routing service knows them.
func (c RegistryChain) Descriptor() models.ChainDescriptor {
	logo := c.LogoURIs.PNG
	if logo == "" {
		logo = c.LogoURIs.SVG
	}
	// every registry chain is initia, minievm rollups included
	return models.ChainDescriptor{
		ChainID:      c.ChainID,
		ChainName:    c.ChainName,
		PrettyName:   c.PrettyName,
		ChainType:    string(models.ChainTypeInitia),
		Bech32Prefix: c.Bech32Prefix,
		LogoURI:      logo,
		EVMChainID:   c.EVMChainID,
		OpDenoms:     append([]string(nil), c.Metadata.OpDenoms...),
	}
}

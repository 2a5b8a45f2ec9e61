package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNoDerivationPath means the chain needs a public key and none is available
	ErrNoDerivationPath = errors.New("no address derivation path")
	// ErrPublicKeyFetch wraps a failed wallet public key request
	ErrPublicKeyFetch = errors.New("failed to fetch public key")
	// ErrUnresolvedSlot means a hop of the route got no address
	ErrUnresolvedSlot = errors.New("unresolved address slot")
	// ErrInvalidRecipient means the recipient cannot be expressed on the destination chain
	ErrInvalidRecipient = errors.New("invalid recipient address")
)

// Identities are the connected wallet's known identities.
type Identities struct {
	InitiaAddress string // canonical bech32 address, init1...
	HexAddress    string // 0x address of the same key
	// Bech32Address is the address on the route's source chain when it is a cosmos chain
	Bech32Address string
	PublicKey     []byte // secp256k1, empty until fetched
}

// PublicKeyFetcher asks the wallet for the account public key
type PublicKeyFetcher interface {
	FetchPublicKey(ctx context.Context) ([]byte, error)
}

// ChainInfo is the registry view the resolver needs
type ChainInfo interface {
	FindChain(ctx context.Context, chainID string) models.ChainDescriptor
	ChainType(chain models.ChainDescriptor) models.ChainType
}

// Target is a chain an address is needed on, along with the route's source type.
type Target struct {
	Chain      models.ChainDescriptor
	Type       models.ChainType
	SourceType models.ChainType
}

// ResolveAddress derives the wallet's address on target.
func ResolveAddress(target Target, ids Identities) (string, error) {
	switch target.Type {
	case models.ChainTypeInitia:
		if ids.InitiaAddress != "" {
			return ids.InitiaAddress, nil
		}
		if ids.HexAddress != "" {
			return HexToBech32(ids.HexAddress, InitiaPrefix)
		}
		return "", fmt.Errorf("%w: no initia identity for %s", ErrNoDerivationPath, target.Chain.ChainID)

	case models.ChainTypeEVM:
		if ids.HexAddress != "" {
			return ids.HexAddress, nil
		}
		if ids.InitiaAddress != "" {
			return Bech32ToHex(ids.InitiaAddress)
		}
		return "", fmt.Errorf("%w: no hex identity for %s", ErrNoDerivationPath, target.Chain.ChainID)

	case models.ChainTypeCosmos:
		prefix := target.Chain.Bech32Prefix
		if prefix == "" {
			return "", fmt.Errorf("%w: %s has no bech32 prefix", ErrNoDerivationPath, target.Chain.ChainID)
		}
		if target.SourceType == models.ChainTypeCosmos && ids.Bech32Address != "" {
			return ConvertBech32Address(ids.Bech32Address, prefix)
		}
		if len(ids.PublicKey) == 0 {
			return "", fmt.Errorf("%w: public key required for %s", ErrNoDerivationPath, target.Chain.ChainID)
		}
		return PubKeyToBech32(ids.PublicKey, prefix)
	}
	return "", fmt.Errorf("%w: unknown chain type %q", ErrNoDerivationPath, target.Type)
}

// ConvertRecipient expresses a user entered recipient in the destination chain's format.
func ConvertRecipient(recipient string, chain models.ChainDescriptor, chainType models.ChainType) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidRecipient)
	}

	switch chainType {
	case models.ChainTypeEVM:
		if common.IsHexAddress(recipient) {
			return common.HexToAddress(recipient).Hex(), nil
		}
		hex, err := Bech32ToHex(recipient)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
		}
		return hex, nil

	default:
		prefix := chain.Bech32Prefix
		if prefix == "" && chainType == models.ChainTypeInitia {
			prefix = InitiaPrefix
		}
		if common.IsHexAddress(recipient) {
			if prefix == "" {
				return "", fmt.Errorf("%w: %s has no bech32 prefix", ErrInvalidRecipient, chain.ChainID)
			}
			out, err := HexToBech32(recipient, prefix)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
			}
			return out, nil
		}
		if !IsBech32(recipient) {
			return "", fmt.Errorf("%w: %s", ErrInvalidRecipient, recipient)
		}
		if prefix == "" {
			return recipient, nil
		}
		out, err := ConvertBech32Address(recipient, prefix)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
		}
		return out, nil
	}
}

// Resolver builds address lists for routes.
type Resolver struct {
	chains  ChainInfo
	fetcher PublicKeyFetcher
}

// NewResolver creates a resolver. fetcher may be nil when the wallet cannot expose its key.
func NewResolver(chains ChainInfo, fetcher PublicKeyFetcher) *Resolver {
	return &Resolver{chains: chains, fetcher: fetcher}
}

// AddressList returns one address per entry of route.RequiredChainAddresses.
// The last entry is always the recipient. The public key is fetched at most once,
// and only when a non-terminal hop is a cosmos chain and the source is not.
func (r *Resolver) AddressList(ctx context.Context, route *models.Route, ids Identities, recipient string) ([]string, error) {
	hops := route.RequiredChainAddresses
	if len(hops) == 0 {
		return nil, fmt.Errorf("%w: route requires no addresses", ErrUnresolvedSlot)
	}

	sourceType := r.chains.ChainType(r.chains.FindChain(ctx, route.SourceAssetChainID))

	targets := make([]Target, len(hops))
	needsKey := false
	for i, chainID := range hops {
		chain := r.chains.FindChain(ctx, chainID)
		targets[i] = Target{Chain: chain, Type: r.chains.ChainType(chain), SourceType: sourceType}
		if i < len(hops)-1 && targets[i].Type == models.ChainTypeCosmos && sourceType != models.ChainTypeCosmos {
			needsKey = true
		}
	}

	if needsKey && len(ids.PublicKey) == 0 {
		if r.fetcher == nil {
			return nil, fmt.Errorf("%w: wallet does not expose a public key", ErrNoDerivationPath)
		}
		key, err := r.fetcher.FetchPublicKey(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPublicKeyFetch, err)
		}
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: wallet returned an empty key", ErrNoDerivationPath)
		}
		ids.PublicKey = key
	}

	out := make([]string, len(hops))
	last := len(hops) - 1
	for i, target := range targets {
		if i == last {
			addr, err := ConvertRecipient(recipient, target.Chain, target.Type)
			if err != nil {
				return nil, err
			}
			out[i] = addr
			continue
		}

		addr, err := ResolveAddress(target, ids)
		if err != nil {
			return nil, fmt.Errorf("slot %d (%s): %w", i, target.Chain.ChainID, err)
		}
		if addr == "" {
			return nil, fmt.Errorf("%w: slot %d (%s)", ErrUnresolvedSlot, i, target.Chain.ChainID)
		}
		out[i] = addr
	}
	return out, nil
}

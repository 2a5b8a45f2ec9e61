package freshness

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/zeebo/blake3"
)

// volatileKeys never take part in the signature, at any depth
var volatileKeys = map[string]bool{
	"timestamp":         true,
	"timeout_timestamp": true,
	"nonce":             true,
	"expires_at":        true,
	"quote_id":          true,
}

// signedRoute lists the route fields that decide whether two quotes are the same
type signedRoute struct {
	AmountIn               string             `json:"amount_in"`
	AmountOut              string             `json:"amount_out"`
	EstimatedAmountOut     string             `json:"estimated_amount_out"`
	SourceAssetDenom       string             `json:"source_asset_denom"`
	SourceAssetChainID     string             `json:"source_asset_chain_id"`
	DestAssetDenom         string             `json:"dest_asset_denom"`
	DestAssetChainID       string             `json:"dest_asset_chain_id"`
	Operations             []models.Operation `json:"operations"`
	RequiredChainAddresses []string           `json:"required_chain_addresses"`
	DoesSwap               bool               `json:"does_swap"`
	EstimatedFees          []models.Fee       `json:"estimated_fees"`
	Warning                *models.Warning    `json:"warning"`
	DurationSeconds        int64              `json:"estimated_route_duration_seconds"`
	RequiredOpHook         bool               `json:"required_op_hook"`
}

// Signature is a deterministic digest of the amounts, operations, fees, warning,
// duration and hook requirement of a route. Object key order and timestamp-like
// fields do not change it.
func Signature(route *models.Route) (string, error) {
	if route == nil {
		return "", fmt.Errorf("nil route")
	}
	doc := signedRoute{
		AmountIn:               route.AmountIn,
		AmountOut:              route.AmountOut,
		EstimatedAmountOut:     route.EstimatedAmountOut,
		SourceAssetDenom:       route.SourceAssetDenom,
		SourceAssetChainID:     route.SourceAssetChainID,
		DestAssetDenom:         route.DestAssetDenom,
		DestAssetChainID:       route.DestAssetChainID,
		Operations:             route.Operations,
		RequiredChainAddresses: route.RequiredChainAddresses,
		DoesSwap:               route.DoesSwap,
		EstimatedFees:          route.EstimatedFees,
		Warning:                route.Warning,
		DurationSeconds:        route.EstimatedRouteDurationSeconds,
		RequiredOpHook:         route.RequiredOpHook,
	}

	canonical, err := canonicalJSON(doc)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON re-encodes v through a generic tree so maps come out with sorted
// keys, and drops volatile keys on the way.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode route: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("failed to decode route: %w", err)
	}
	return json.Marshal(strip(tree))
}

func strip(node any) any {
	switch n := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			if volatileKeys[k] {
				continue
			}
			out[k] = strip(v)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = strip(v)
		}
		return out
	}
	return node
}

package models

// Fee behaviors reported by the routing service
const (
	FeeBehaviorDeducted   = "FEE_BEHAVIOR_DEDUCTED"
	FeeBehaviorAdditional = "FEE_BEHAVIOR_ADDITIONAL"
)

// RouteRequest - POST /v2/fungible/route
type RouteRequest struct {
	AmountIn           string `json:"amount_in"` // base units
	SourceAssetDenom   string `json:"source_asset_denom"`
	SourceAssetChainID string `json:"source_asset_chain_id"`
	DestAssetDenom     string `json:"dest_asset_denom"`
	DestAssetChainID   string `json:"dest_asset_chain_id"`
	IsOpWithdraw       bool   `json:"is_op_withdraw,omitempty"`
	AllowUnsafe        bool   `json:"allow_unsafe,omitempty"`
	GoFast             bool   `json:"go_fast,omitempty"`
}

type FeeAssetRef struct {
	Denom    string `json:"denom"`
	ChainID  string `json:"chain_id"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint32 `json:"decimals,omitempty"`
}

// Fee is one estimated fee entry of a route
type Fee struct {
	FeeType     string      `json:"fee_type"`
	FeeBehavior string      `json:"fee_behavior"` // FeeBehaviorDeducted | FeeBehaviorAdditional
	Amount      string      `json:"amount"`
	USDAmount   string      `json:"usd_amount,omitempty"`
	OriginAsset FeeAssetRef `json:"origin_asset"`
	ChainID     string      `json:"chain_id,omitempty"`
}

type Warning struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Route is a quote returned by the routing service. Routes are never mutated after
// decoding; a refreshed quote is a new value.
type Route struct {
	AmountIn           string `json:"amount_in"`
	AmountOut          string `json:"amount_out"`
	SourceAssetDenom   string `json:"source_asset_denom"`
	SourceAssetChainID string `json:"source_asset_chain_id"`
	DestAssetDenom     string `json:"dest_asset_denom"`
	DestAssetChainID   string `json:"dest_asset_chain_id"`

	Operations []Operation `json:"operations"`

	// One chain id per address the route needs, in hop order. The last one is the destination.
	RequiredChainAddresses []string `json:"required_chain_addresses"`
	ChainIDs               []string `json:"chain_ids,omitempty"`

	DoesSwap                      bool     `json:"does_swap"`
	EstimatedAmountOut            string   `json:"estimated_amount_out,omitempty"`
	EstimatedFees                 []Fee    `json:"estimated_fees,omitempty"`
	Warning                       *Warning `json:"warning,omitempty"`
	EstimatedRouteDurationSeconds int64    `json:"estimated_route_duration_seconds,omitempty"`
	RequiredOpHook                bool     `json:"required_op_hook,omitempty"`
	USDAmountIn                   string   `json:"usd_amount_in,omitempty"`
	USDAmountOut                  string   `json:"usd_amount_out,omitempty"`

	// Quote time on the routing service side. Not part of the route signature.
	Timestamp string `json:"timestamp,omitempty"`
}

// FeesByBehavior splits the estimated fees into deducted and additional ones.
func (r *Route) FeesByBehavior() (deducted []Fee, additional []Fee) {
	for _, fee := range r.EstimatedFees {
		switch fee.FeeBehavior {
		case FeeBehaviorAdditional:
			additional = append(additional, fee)
		default:
			deducted = append(deducted, fee)
		}
	}
	return deducted, additional
}

// IsOpWithdraw reports whether the route withdraws through the op-bridge.
func (r *Route) IsOpWithdraw() bool {
	for _, op := range r.Operations {
		if op.Kind == OpOPInitTransfer {
			return true
		}
	}
	return false
}

package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RouteType is the user's route class preference for withdrawals.
type RouteType string

const (
	// RouteTypeAuto means the user has not chosen; the default route is preferred.
	RouteTypeAuto       RouteType = ""
	RouteTypeDefault    RouteType = "default"
	RouteTypeOpWithdraw RouteType = "op"
)

var (
	ErrMissingAsset     = errors.New("source and destination chain and asset are required")
	ErrInvalidQuantity  = errors.New("quantity must be a positive decimal")
	ErrTooManyDecimals  = errors.New("quantity has more fractional digits than the asset supports")
	ErrInvalidSlippage  = errors.New("slippage must be greater than 0 and at most 100 percent")
	ErrMissingRecipient = errors.New("recipient is required")
)

// FormValues is the transfer form state.
type FormValues struct {
	SrcChainID      string    `json:"src_chain_id"`
	SrcDenom        string    `json:"src_denom"`
	DstChainID      string    `json:"dst_chain_id"`
	DstDenom        string    `json:"dst_denom"`
	Quantity        string    `json:"quantity"` // human readable decimal, e.g. "1.5"
	Sender          string    `json:"sender,omitempty"`
	Recipient       string    `json:"recipient"`
	SlippagePercent string    `json:"slippage_percent"` // e.g. "0.5"
	RouteType       RouteType `json:"route_type,omitempty"`
}

// DefaultSlippagePercent is used when the form leaves slippage empty
const DefaultSlippagePercent = "0.5"

// Slippage returns the configured slippage or the default.
func (f FormValues) Slippage() string {
	if strings.TrimSpace(f.SlippagePercent) == "" {
		return DefaultSlippagePercent
	}
	return strings.TrimSpace(f.SlippagePercent)
}

// IsZeroQuantity reports whether the quantity is empty, unparsable or zero.
// Route simulation never runs for such a form.
func (f FormValues) IsZeroQuantity() bool {
	q, err := decimal.NewFromString(strings.TrimSpace(f.Quantity))
	if err != nil {
		return true
	}
	return !q.IsPositive()
}

// Validate checks the fields a route simulation needs. The recipient is checked
// separately with ValidateForSubmit since quotes are shown before it is entered.
func (f FormValues) Validate() error {
	if f.SrcChainID == "" || f.SrcDenom == "" || f.DstChainID == "" || f.DstDenom == "" {
		return ErrMissingAsset
	}
	if f.IsZeroQuantity() {
		return ErrInvalidQuantity
	}
	slippage, err := decimal.NewFromString(f.Slippage())
	if err != nil || !slippage.IsPositive() || slippage.GreaterThan(decimal.NewFromInt(100)) {
		return ErrInvalidSlippage
	}
	return nil
}

// ValidateForSubmit runs Validate and also requires a recipient.
func (f FormValues) ValidateForSubmit() error {
	if err := f.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(f.Recipient) == "" {
		return ErrMissingRecipient
	}
	return nil
}

// ToBaseUnits converts a human readable quantity into integer base units.
func ToBaseUnits(quantity string, decimals uint32) (string, error) {
	q, err := decimal.NewFromString(strings.TrimSpace(quantity))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity)
	}
	if q.IsNegative() {
		return "", fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity)
	}
	if -q.Exponent() > int32(decimals) {
		// trailing zeros do not count as precision
		trimmed := q.Shift(int32(decimals))
		if !trimmed.Equal(trimmed.Truncate(0)) {
			return "", fmt.Errorf("%w: %s with %d decimals", ErrTooManyDecimals, quantity, decimals)
		}
	}
	return q.Shift(int32(decimals)).Truncate(0).String(), nil
}

// FromBaseUnits converts integer base units into a human readable quantity.
func FromBaseUnits(amount string, decimals uint32) (string, error) {
	a, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return "", fmt.Errorf("invalid base amount %q: %w", amount, err)
	}
	return a.Shift(-int32(decimals)).String(), nil
}

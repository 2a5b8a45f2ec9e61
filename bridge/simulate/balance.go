package simulate

import (
	"context"
	"errors"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/shopspring/decimal"
)

// ErrInsufficientBalance is a user-input error that blocks submission only
var ErrInsufficientBalance = errors.New("insufficient balance")

// BalanceReader is the routing service balances endpoint
type BalanceReader interface {
	Balances(ctx context.Context, req models.BalancesRequest) (*models.BalancesResponse, error)
}

// CheckBalance verifies sender holds the route input plus every additional fee
// charged in the source denom.
func CheckBalance(ctx context.Context, reader BalanceReader, sender string, route *models.Route) error {
	need, err := decimal.NewFromString(route.AmountIn)
	if err != nil {
		return fmt.Errorf("invalid route amount %q: %w", route.AmountIn, err)
	}
	_, additional := route.FeesByBehavior()
	for _, fee := range additional {
		if fee.OriginAsset.Denom != route.SourceAssetDenom || fee.OriginAsset.ChainID != route.SourceAssetChainID {
			continue
		}
		amount, err := decimal.NewFromString(fee.Amount)
		if err != nil {
			return fmt.Errorf("invalid fee amount %q: %w", fee.Amount, err)
		}
		need = need.Add(amount)
	}

	resp, err := reader.Balances(ctx, models.BalancesRequest{Chains: map[string]models.BalanceQuery{
		route.SourceAssetChainID: {Address: sender, Denoms: []string{route.SourceAssetDenom}},
	}})
	if err != nil {
		return err
	}

	have := decimal.Zero
	if chain, ok := resp.Chains[route.SourceAssetChainID]; ok {
		if bal, ok := chain.Denoms[route.SourceAssetDenom]; ok && bal.Amount != "" {
			have, err = decimal.NewFromString(bal.Amount)
			if err != nil {
				return fmt.Errorf("invalid balance %q: %w", bal.Amount, err)
			}
		}
	}

	if have.LessThan(need) {
		return fmt.Errorf("%w: have %s, need %s %s", ErrInsufficientBalance, have, need, route.SourceAssetDenom)
	}
	return nil
}

package pipeline

import (
	"context"
	"fmt"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
)

// MsgsRequester is the routing service msgs endpoint
type MsgsRequester interface {
	Msgs(ctx context.Context, req models.MsgsRequest) (*models.MsgsResponse, error)
}

// BuildMessages asks the routing service for the transaction of route.
// A route that requires an op hook fails with ErrHookRequired before any request is sent.
func BuildMessages(
	ctx context.Context,
	router MsgsRequester,
	route *models.Route,
	addressList []string,
	hook *models.SignedOpHook,
	slippagePercent string,
) (*models.Tx, error) {
	if route == nil {
		return nil, fmt.Errorf("%w: no route", ErrStageOrder)
	}
	if route.RequiredOpHook && hook == nil {
		return nil, ErrHookRequired
	}
	if slippagePercent == "" {
		slippagePercent = models.DefaultSlippagePercent
	}

	resp, err := router.Msgs(ctx, models.MsgsRequest{
		AddressList:              addressList,
		AmountIn:                 route.AmountIn,
		AmountOut:                route.AmountOut,
		SourceAssetDenom:         route.SourceAssetDenom,
		SourceAssetChainID:       route.SourceAssetChainID,
		DestAssetDenom:           route.DestAssetDenom,
		DestAssetChainID:         route.DestAssetChainID,
		Operations:               route.Operations,
		SlippageTolerancePercent: slippagePercent,
		SignedOpHook:             hook,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build messages: %w", err)
	}
	if resp == nil || len(resp.Txs) != 1 {
		n := 0
		if resp != nil {
			n = len(resp.Txs)
		}
		return nil, fmt.Errorf("%w: expected 1 transaction, got %d", ErrNoTransactionData, n)
	}

	tx := resp.Txs[0]
	if tx.CosmosTx == nil && tx.EVMTx == nil {
		return nil, fmt.Errorf("%w: transaction has neither cosmos nor evm data", ErrNoTransactionData)
	}
	return &tx, nil
}

package routerapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
)

const (
	pathChains   = "/v2/info/chains"
	pathAssets   = "/v2/fungible/assets"
	pathBalances = "/v2/info/balances"
	pathRoute    = "/v2/fungible/route"
	pathMsgs     = "/v2/fungible/msgs"
)

// Chains returns the routing service chain catalog
func (c *Client) Chains(ctx context.Context) ([]models.ChainDescriptor, error) {
	resp, err := doJSON[models.ChainsResponse](ctx, c, "routerapi.Chains", http.MethodGet, pathChains, nil)
	if err != nil {
		return nil, err
	}
	return resp.Chains, nil
}

// Assets returns the assets of the given chains, or of every chain when none are given
func (c *Client) Assets(ctx context.Context, chainIDs ...string) (*models.AssetsResponse, error) {
	path := pathAssets
	if len(chainIDs) > 0 {
		path += "?chain_ids=" + url.QueryEscape(strings.Join(chainIDs, ","))
	}
	return doJSON[models.AssetsResponse](ctx, c, "routerapi.Assets", http.MethodGet, path, nil)
}

// Balances returns balances for the requested addresses and denoms
func (c *Client) Balances(ctx context.Context, req models.BalancesRequest) (*models.BalancesResponse, error) {
	return doJSON[models.BalancesResponse](ctx, c, "routerapi.Balances", http.MethodPost, pathBalances, req)
}

// Route asks for a quote
func (c *Client) Route(ctx context.Context, req models.RouteRequest) (*models.Route, error) {
	return doJSON[models.Route](ctx, c, "routerapi.Route", http.MethodPost, pathRoute, req)
}

// Msgs asks for the transaction messages of a route
func (c *Client) Msgs(ctx context.Context, req models.MsgsRequest) (*models.MsgsResponse, error) {
	return doJSON[models.MsgsResponse](ctx, c, "routerapi.Msgs", http.MethodPost, pathMsgs, req)
}

package models

// SignedOpHook is the pre-signed authorization some routes need before assembly.
type SignedOpHook struct {
	Signer string `json:"signer"`
	Hook   string `json:"hook"` // base64 encoded signed payload
}

// MsgsRequest - POST /v2/fungible/msgs
type MsgsRequest struct {
	AddressList              []string      `json:"address_list"`
	AmountIn                 string        `json:"amount_in"`
	AmountOut                string        `json:"amount_out"`
	SourceAssetDenom         string        `json:"source_asset_denom"`
	SourceAssetChainID       string        `json:"source_asset_chain_id"`
	DestAssetDenom           string        `json:"dest_asset_denom"`
	DestAssetChainID         string        `json:"dest_asset_chain_id"`
	Operations               []Operation   `json:"operations"`
	SlippageTolerancePercent string        `json:"slippage_tolerance_percent"`
	SignedOpHook             *SignedOpHook `json:"signed_op_hook,omitempty"`
}

// MsgsResponse - POST /v2/fungible/msgs
type MsgsResponse struct {
	Txs []Tx `json:"txs"`
}

// Tx is one transaction descriptor. Exactly one of CosmosTx and EVMTx is set.
type Tx struct {
	CosmosTx *CosmosTx `json:"cosmos_tx,omitempty"`
	EVMTx    *EVMTx    `json:"evm_tx,omitempty"`
}

// ChainID returns the chain the transaction is submitted on.
func (t Tx) ChainID() string {
	switch {
	case t.CosmosTx != nil:
		return t.CosmosTx.ChainID
	case t.EVMTx != nil:
		return t.EVMTx.ChainID
	}
	return ""
}

type CosmosMsg struct {
	MsgTypeURL string `json:"msg_type_url"`
	Msg        string `json:"msg"` // json encoded message body
}

type CosmosTx struct {
	ChainID       string      `json:"chain_id"`
	Path          []string    `json:"path,omitempty"`
	SignerAddress string      `json:"signer_address"`
	Msgs          []CosmosMsg `json:"msgs"`
}

// ERC20Approval is an allowance the transaction needs before it can be sent.
type ERC20Approval struct {
	TokenContract string `json:"token_contract"`
	Spender       string `json:"spender"`
	Amount        string `json:"amount"` // base units
}

type EVMTx struct {
	ChainID                string          `json:"chain_id"`
	To                     string          `json:"to"`
	Value                  string          `json:"value"`
	Data                   string          `json:"data"` // hex calldata
	SignerAddress          string          `json:"signer_address"`
	RequiredERC20Approvals []ERC20Approval `json:"required_erc20_approvals,omitempty"`
}

// BalancesRequest - POST /v2/info/balances
type BalancesRequest struct {
	Chains map[string]BalanceQuery `json:"chains"`
}

type BalanceQuery struct {
	Address string   `json:"address"`
	Denoms  []string `json:"denoms"`
}

// BalancesResponse - POST /v2/info/balances
type BalancesResponse struct {
	Chains map[string]ChainBalances `json:"chains"`
}

type ChainBalances struct {
	Denoms map[string]Balance `json:"denoms"`
}

type Balance struct {
	Amount          string `json:"amount"` // base units
	Decimals        uint32 `json:"decimals,omitempty"`
	FormattedAmount string `json:"formatted_amount,omitempty"`
	ValueUSD        string `json:"value_usd,omitempty"`
}

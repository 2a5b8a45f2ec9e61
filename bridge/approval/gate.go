package approval

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sort"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "approval").Logger()
}

const DefaultPollInterval = 2 * time.Second

var (
	// ErrChainSwitch is returned when the wallet refuses or fails to change network
	ErrChainSwitch = errors.New("failed to switch evm network")
	// ErrApprovalFailed covers a rejected, reverted or unconfirmed approval
	ErrApprovalFailed = errors.New("token approval failed")
	// ErrInvalidApproval means the routing service declared an approval we cannot encode
	ErrInvalidApproval = errors.New("invalid approval descriptor")
	// ErrUnsupportedChain means no evm node is configured for the transaction's chain
	ErrUnsupportedChain = errors.New("no evm node for chain")
)

// Node reads allowances and receipts on one evm chain. Satisfied by *ethclient.Client.
type Node interface {
	ethereum.ContractCaller
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Wallet is the connected EVM wallet. Signing happens on its side.
type Wallet interface {
	SwitchChain(ctx context.Context, chainID string) error
	SendTransaction(ctx context.Context, call Call) (common.Hash, error)
}

// Call is an unsigned approve transaction
type Call struct {
	ChainID string `json:"chain_id"`
	From    string `json:"from"`
	To      string `json:"to"`   // token contract
	Data    string `json:"data"` // hex calldata
	Value   string `json:"value"`
}

// Gate decides which ERC-20 approvals an evm transaction still needs and grants them.
// Allowances and receipts are always read on the chain the transaction declares.
type Gate struct {
	token        *erc20
	nodes        map[string]Node // keyed by evm chain id, e.g. "42161"
	pollInterval time.Duration
}

// NewGate builds a gate over one node per evm chain id.
func NewGate(nodes map[string]Node, pollInterval time.Duration) (*Gate, error) {
	token, err := newERC20()
	if err != nil {
		return nil, err
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	byChain := make(map[string]Node, len(nodes))
	for chainID, node := range nodes {
		if node != nil {
			byChain[chainID] = node
		}
	}
	return &Gate{
		token:        token,
		nodes:        byChain,
		pollInterval: pollInterval,
	}, nil
}

// Chains returns the evm chain ids the gate can serve
func (g *Gate) Chains() []string {
	out := make([]string, 0, len(g.nodes))
	for chainID := range g.nodes {
		out = append(out, chainID)
	}
	sort.Strings(out)
	return out
}

func (g *Gate) node(chainID string) (Node, error) {
	node, ok := g.nodes[chainID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedChain, chainID)
	}
	return node, nil
}

func parseApproval(a models.ERC20Approval) (token, spender common.Address, amount *big.Int, err error) {
	if !common.IsHexAddress(a.TokenContract) || !common.IsHexAddress(a.Spender) {
		return token, spender, nil, fmt.Errorf("%w: bad address in %+v", ErrInvalidApproval, a)
	}
	amount, ok := new(big.Int).SetString(a.Amount, 10)
	if !ok || amount.Sign() < 0 {
		return token, spender, nil, fmt.Errorf("%w: bad amount %q", ErrInvalidApproval, a.Amount)
	}
	return common.HexToAddress(a.TokenContract), common.HexToAddress(a.Spender), amount, nil
}

// RequiredApprovals returns the declared approvals whose current allowance is below
// the required amount, in declaration order. Transactions that are not evm or
// declare nothing need no approvals. Reads only, so repeated calls agree until an
// approval lands on chain.
func (g *Gate) RequiredApprovals(ctx context.Context, tx *models.EVMTx) ([]models.ERC20Approval, error) {
	if tx == nil || len(tx.RequiredERC20Approvals) == 0 {
		return nil, nil
	}
	if !common.IsHexAddress(tx.SignerAddress) {
		return nil, fmt.Errorf("%w: signer %q is not an evm address", ErrInvalidApproval, tx.SignerAddress)
	}
	owner := common.HexToAddress(tx.SignerAddress)
	node, err := g.node(tx.ChainID)
	if err != nil {
		return nil, err
	}

	var missing []models.ERC20Approval
	for _, a := range tx.RequiredERC20Approvals {
		token, spender, required, err := parseApproval(a)
		if err != nil {
			return nil, err
		}
		current, err := g.token.allowance(ctx, node, token, owner, spender)
		if err != nil {
			return nil, err
		}
		if current.Cmp(required) < 0 {
			missing = append(missing, a)
		}
	}
	return missing, nil
}

// Calls builds the unsigned approve transactions for missing approvals.
func (g *Gate) Calls(tx *models.EVMTx, missing []models.ERC20Approval) ([]Call, error) {
	calls := make([]Call, 0, len(missing))
	for _, a := range missing {
		token, spender, amount, err := parseApproval(a)
		if err != nil {
			return nil, err
		}
		data, err := g.token.approveData(spender, amount)
		if err != nil {
			return nil, fmt.Errorf("failed to pack approve call: %w", err)
		}
		calls = append(calls, Call{
			ChainID: tx.ChainID,
			From:    tx.SignerAddress,
			To:      token.Hex(),
			Data:    hexutil.Encode(data),
			Value:   "0",
		})
	}
	return calls, nil
}

// ApproveAll grants the missing approvals one at a time in list order. Before each
// one the wallet is switched to the transaction's chain, and the next approval is
// only sent after the previous one is confirmed.
func (g *Gate) ApproveAll(ctx context.Context, wallet Wallet, tx *models.EVMTx, missing []models.ERC20Approval) error {
	if len(missing) == 0 {
		return nil
	}
	node, err := g.node(tx.ChainID)
	if err != nil {
		return err
	}
	calls, err := g.Calls(tx, missing)
	if err != nil {
		return err
	}

	for i, call := range calls {
		if err := wallet.SwitchChain(ctx, tx.ChainID); err != nil {
			return fmt.Errorf("%w to %s: %w", ErrChainSwitch, tx.ChainID, err)
		}
		hash, err := wallet.SendTransaction(ctx, call)
		if err != nil {
			return fmt.Errorf("%w: approval %d for token %s: %w", ErrApprovalFailed, i, call.To, err)
		}
		log.Info().Str("token", call.To).Str("tx", hash.Hex()).Msg("Approval sent, waiting for confirmation")
		if err := g.waitConfirmed(ctx, node, hash); err != nil {
			return fmt.Errorf("approval %d for token %s: %w", i, call.To, err)
		}
	}
	return nil
}

// Satisfy grants whatever is missing and checks the allowances again.
func (g *Gate) Satisfy(ctx context.Context, wallet Wallet, tx *models.EVMTx) error {
	missing, err := g.RequiredApprovals(ctx, tx)
	if err != nil {
		return err
	}
	if err := g.ApproveAll(ctx, wallet, tx, missing); err != nil {
		return err
	}
	still, err := g.RequiredApprovals(ctx, tx)
	if err != nil {
		return err
	}
	if len(still) > 0 {
		return fmt.Errorf("%w: %d allowances still below the required amount", ErrApprovalFailed, len(still))
	}
	return nil
}

func (g *Gate) waitConfirmed(ctx context.Context, node Node, hash common.Hash) error {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := node.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("%w: transaction %s reverted", ErrApprovalFailed, hash.Hex())
			}
			return nil
		case errors.Is(err, ethereum.NotFound):
		default:
			return fmt.Errorf("failed to get receipt for %s: %w", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

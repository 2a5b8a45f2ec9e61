package approval_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/approval"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/assert"
)

var (
	owner    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	spender  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	tokenA   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB   = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	selector = crypto.Keccak256([]byte("approve(address,uint256)"))[:4]
)

// chain fakes the token contracts, the wallet and the receipt endpoint at once
type chain struct {
	mu         sync.Mutex
	allowances map[common.Address]*big.Int
	events     []string
	pending    map[common.Hash]common.Address
	amounts    map[common.Hash]*big.Int
	polls      map[common.Hash]int
	revert     bool
	switchErr  error
}

func newChain() *chain {
	return &chain{
		allowances: map[common.Address]*big.Int{},
		pending:    map[common.Hash]common.Address{},
		amounts:    map[common.Hash]*big.Int{},
		polls:      map[common.Hash]int{},
	}
}

func (c *chain) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(msg.Data) != 4+64 {
		return nil, fmt.Errorf("unexpected calldata length %d", len(msg.Data))
	}
	if common.BytesToAddress(msg.Data[4:36]) != owner || common.BytesToAddress(msg.Data[36:68]) != spender {
		return nil, errors.New("unexpected owner or spender")
	}
	amount, ok := c.allowances[*msg.To]
	if !ok {
		amount = new(big.Int)
	}
	return common.LeftPadBytes(amount.Bytes(), 32), nil
}

func (c *chain) SwitchChain(ctx context.Context, chainID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, "switch:"+chainID)
	return c.switchErr
}

func (c *chain) SendTransaction(ctx context.Context, call approval.Call) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := hexutil.Decode(call.Data)
	if err != nil {
		return common.Hash{}, err
	}
	if string(data[:4]) != string(selector) {
		return common.Hash{}, errors.New("not an approve call")
	}
	token := common.HexToAddress(call.To)
	hash := crypto.Keccak256Hash(data, token.Bytes())
	c.pending[hash] = token
	c.amounts[hash] = new(big.Int).SetBytes(data[36:68])
	c.events = append(c.events, "send:"+token.Hex())
	return hash, nil
}

// TransactionReceipt reports the first poll as not found, the second as mined
func (c *chain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	token, ok := c.pending[hash]
	if !ok {
		return nil, errors.New("unknown transaction")
	}
	c.polls[hash]++
	if c.polls[hash] == 1 {
		return nil, ethereum.NotFound
	}
	c.events = append(c.events, "confirmed:"+token.Hex())
	if c.revert {
		return &types.Receipt{Status: types.ReceiptStatusFailed}, nil
	}
	c.allowances[token] = c.amounts[hash]
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func evmTx() *models.EVMTx {
	return &models.EVMTx{
		ChainID:       "1",
		To:            spender.Hex(),
		SignerAddress: owner.Hex(),
		RequiredERC20Approvals: []models.ERC20Approval{
			{TokenContract: tokenA.Hex(), Spender: spender.Hex(), Amount: "1000"},
			{TokenContract: tokenB.Hex(), Spender: spender.Hex(), Amount: "500"},
		},
	}
}

func newGate(t *testing.T, c *chain) *approval.Gate {
	t.Helper()
	gate, err := approval.NewGate(map[string]approval.Node{"1": c}, time.Millisecond)
	assert.NoError(t, err)
	return gate
}

func TestRequiredApprovalsFiltersAndIsIdempotent(t *testing.T) {
	c := newChain()
	c.allowances[tokenA] = big.NewInt(999)
	c.allowances[tokenB] = big.NewInt(500)
	gate := newGate(t, c)

	first, err := gate.RequiredApprovals(context.Background(), evmTx())
	assert.NoError(t, err)
	assert.Equal(t, len(first), 1)
	assert.Equal(t, first[0].TokenContract, tokenA.Hex())

	second, err := gate.RequiredApprovals(context.Background(), evmTx())
	assert.NoError(t, err)
	assert.DeepEqual(t, first, second)
}

func TestRequiredApprovalsNothingDeclared(t *testing.T) {
	gate := newGate(t, newChain())

	missing, err := gate.RequiredApprovals(context.Background(), &models.EVMTx{ChainID: "1", SignerAddress: owner.Hex()})
	assert.NoError(t, err)
	assert.Equal(t, len(missing), 0)

	missing, err = gate.RequiredApprovals(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, len(missing), 0)
}

func TestRequiredApprovalsRejectsBadDescriptor(t *testing.T) {
	gate := newGate(t, newChain())
	tx := evmTx()
	tx.RequiredERC20Approvals[0].Amount = "lots"

	_, err := gate.RequiredApprovals(context.Background(), tx)
	assert.True(t, errors.Is(err, approval.ErrInvalidApproval))
}

func TestApproveAllIsSequential(t *testing.T) {
	c := newChain()
	gate := newGate(t, c)
	tx := evmTx()

	assert.NoError(t, gate.Satisfy(context.Background(), c, tx))

	want := []string{
		"switch:1", "send:" + tokenA.Hex(), "confirmed:" + tokenA.Hex(),
		"switch:1", "send:" + tokenB.Hex(), "confirmed:" + tokenB.Hex(),
	}
	assert.DeepEqual(t, c.events, want)

	missing, err := gate.RequiredApprovals(context.Background(), tx)
	assert.NoError(t, err)
	assert.Equal(t, len(missing), 0)
}

func TestApproveAllStopsOnRevert(t *testing.T) {
	c := newChain()
	c.revert = true
	gate := newGate(t, c)
	tx := evmTx()

	missing, err := gate.RequiredApprovals(context.Background(), tx)
	assert.NoError(t, err)

	err = gate.ApproveAll(context.Background(), c, tx, missing)
	assert.True(t, errors.Is(err, approval.ErrApprovalFailed))
	assert.DeepEqual(t, c.events, []string{"switch:1", "send:" + tokenA.Hex(), "confirmed:" + tokenA.Hex()})

	still, err := gate.RequiredApprovals(context.Background(), tx)
	assert.NoError(t, err)
	assert.Equal(t, len(still), 2)
}

func TestApproveAllChainSwitchError(t *testing.T) {
	c := newChain()
	c.switchErr = errors.New("user rejected")
	gate := newGate(t, c)
	tx := evmTx()

	err := gate.ApproveAll(context.Background(), c, tx, tx.RequiredERC20Approvals)
	assert.True(t, errors.Is(err, approval.ErrChainSwitch))
	assert.DeepEqual(t, c.events, []string{"switch:1"})
}

func TestAllowancesReadOnDeclaredChain(t *testing.T) {
	mainnet := newChain()
	mainnet.allowances[tokenA] = big.NewInt(1000)
	mainnet.allowances[tokenB] = big.NewInt(500)
	arbitrum := newChain()

	gate, err := approval.NewGate(map[string]approval.Node{"1": mainnet, "42161": arbitrum}, time.Millisecond)
	assert.NoError(t, err)
	assert.DeepEqual(t, gate.Chains(), []string{"1", "42161"})

	tx := evmTx()
	missing, err := gate.RequiredApprovals(context.Background(), tx)
	assert.NoError(t, err)
	assert.Equal(t, len(missing), 0)

	tx.ChainID = "42161"
	missing, err = gate.RequiredApprovals(context.Background(), tx)
	assert.NoError(t, err)
	assert.Equal(t, len(missing), 2)

	// the receipt is polled on the chain the approval was sent to
	assert.NoError(t, gate.ApproveAll(context.Background(), arbitrum, tx, missing[:1]))
	assert.Equal(t, arbitrum.allowances[tokenA].Int64(), int64(1000))
	assert.DeepEqual(t, mainnet.events, []string(nil))
}

func TestUnknownChainIsRejected(t *testing.T) {
	c := newChain()
	gate := newGate(t, c)
	tx := evmTx()
	tx.ChainID = "8453"

	_, err := gate.RequiredApprovals(context.Background(), tx)
	assert.True(t, errors.Is(err, approval.ErrUnsupportedChain))

	err = gate.ApproveAll(context.Background(), c, tx, tx.RequiredERC20Approvals)
	assert.True(t, errors.Is(err, approval.ErrUnsupportedChain))
	// the wallet is never asked to switch to a chain we cannot watch
	assert.DeepEqual(t, c.events, []string(nil))
}

func TestCallsEncodeApprove(t *testing.T) {
	gate := newGate(t, newChain())
	tx := evmTx()

	calls, err := gate.Calls(tx, tx.RequiredERC20Approvals)
	assert.NoError(t, err)
	assert.Equal(t, len(calls), 2)
	assert.Equal(t, calls[1].To, tokenB.Hex())
	assert.Equal(t, calls[1].ChainID, "1")

	data, err := hexutil.Decode(calls[1].Data)
	assert.NoError(t, err)
	assert.Equal(t, len(data), 68)
	assert.Equal(t, common.BytesToAddress(data[4:36]), spender)
	assert.Equal(t, new(big.Int).SetBytes(data[36:68]).Int64(), int64(500))
}

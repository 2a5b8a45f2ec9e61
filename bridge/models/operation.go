package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownOperation is returned when an operation object carries none of the known variants.
var ErrUnknownOperation = errors.New("unknown route operation")

type OperationKind string

const (
	OpTransfer          OperationKind = "transfer"
	OpBankSend          OperationKind = "bank_send"
	OpSwap              OperationKind = "swap"
	OpEVMSwap           OperationKind = "evm_swap"
	OpOPInitTransfer    OperationKind = "op_init_transfer"
	OpGoFastTransfer    OperationKind = "go_fast_transfer"
	OpStargateTransfer  OperationKind = "stargate_transfer"
	OpCCTPTransfer      OperationKind = "cctp_transfer"
	OpHyperlaneTransfer OperationKind = "hyperlane_transfer"
	OpAxelarTransfer    OperationKind = "axelar_transfer"
	OpLayerZeroTransfer OperationKind = "layer_zero_transfer"
)

// OperationBody is implemented by every operation variant. The set is closed.
type OperationBody interface {
	operationKind() OperationKind
	// Chains returns the chain the operation starts on and the chain it ends on.
	Chains() (from string, to string)
}

// TransferOperation is a plain IBC transfer
type TransferOperation struct {
	FromChainID  string `json:"from_chain_id"`
	ToChainID    string `json:"to_chain_id"`
	Port         string `json:"port"`
	Channel      string `json:"channel"`
	DenomIn      string `json:"denom_in"`
	DenomOut     string `json:"denom_out"`
	PFMEnabled   bool   `json:"pfm_enabled,omitempty"`
	SupportsMemo bool   `json:"supports_memo,omitempty"`
	SmartRelay   bool   `json:"smart_relay,omitempty"`
}

// BankSendOperation moves funds inside a single chain
type BankSendOperation struct {
	ChainID string `json:"chain_id"`
	Denom   string `json:"denom"`
}

type SwapVenue struct {
	Name    string `json:"name"`
	ChainID string `json:"chain_id"`
}

// SwapOperation is an AMM swap on a cosmos style chain
type SwapOperation struct {
	ChainID     string      `json:"chain_id"`
	FromChainID string      `json:"from_chain_id"`
	DenomIn     string      `json:"denom_in"`
	DenomOut    string      `json:"denom_out"`
	SwapVenues  []SwapVenue `json:"swap_venues,omitempty"`
}

// EVMSwapOperation is a swap executed through calldata on an evm chain
type EVMSwapOperation struct {
	FromChainID  string `json:"from_chain_id"`
	InputToken   string `json:"input_token"`
	AmountIn     string `json:"amount_in"`
	AmountOut    string `json:"amount_out"`
	SwapCalldata string `json:"swap_calldata"`
	DenomIn      string `json:"denom_in"`
	DenomOut     string `json:"denom_out"`
}

// OPInitTransferOperation deposits to or withdraws from a rollup through the op-bridge
type OPInitTransferOperation struct {
	FromChainID    string `json:"from_chain_id"`
	ToChainID      string `json:"to_chain_id"`
	DenomIn        string `json:"denom_in"`
	DenomOut       string `json:"denom_out"`
	OPInitBridgeID uint64 `json:"op_init_bridge_id"`
	SmartRelay     bool   `json:"smart_relay,omitempty"`
}

// BridgeTransferOperation covers the named third party bridge protocols.
// Protocol tells them apart.
type BridgeTransferOperation struct {
	Protocol    OperationKind `json:"-"`
	FromChainID string        `json:"from_chain_id"`
	ToChainID   string        `json:"to_chain_id"`
	DenomIn     string        `json:"denom_in"`
	DenomOut    string        `json:"denom_out"`
	BridgeID    string        `json:"bridge_id,omitempty"`
	SmartRelay  bool          `json:"smart_relay,omitempty"`
}

func (TransferOperation) operationKind() OperationKind       { return OpTransfer }
func (BankSendOperation) operationKind() OperationKind       { return OpBankSend }
func (SwapOperation) operationKind() OperationKind           { return OpSwap }
func (EVMSwapOperation) operationKind() OperationKind        { return OpEVMSwap }
func (OPInitTransferOperation) operationKind() OperationKind { return OpOPInitTransfer }
func (o BridgeTransferOperation) operationKind() OperationKind {
	return o.Protocol
}

func (o TransferOperation) Chains() (string, string)       { return o.FromChainID, o.ToChainID }
func (o BankSendOperation) Chains() (string, string)       { return o.ChainID, o.ChainID }
func (o SwapOperation) Chains() (string, string)           { return o.FromChainID, o.ChainID }
func (o EVMSwapOperation) Chains() (string, string)        { return o.FromChainID, o.FromChainID }
func (o OPInitTransferOperation) Chains() (string, string) { return o.FromChainID, o.ToChainID }
func (o BridgeTransferOperation) Chains() (string, string) { return o.FromChainID, o.ToChainID }

// Operation is one step of a route. Body holds the variant; the raw object is kept
// so it can be posted back to the routing service untouched.
type Operation struct {
	Kind      OperationKind
	TxIndex   int
	AmountIn  string
	AmountOut string
	Body      OperationBody

	raw json.RawMessage
}

// operation fields shared by every variant
var operationCommonKeys = map[string]bool{
	"tx_index":   true,
	"amount_in":  true,
	"amount_out": true,
}

func decodeAs[T OperationBody](data json.RawMessage) (OperationBody, error) {
	var body T
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to decode operation body: %w", err)
	}
	return body, nil
}

func decodeBody(kind OperationKind, data json.RawMessage) (OperationBody, error) {
	switch kind {
	case OpTransfer:
		return decodeAs[TransferOperation](data)
	case OpBankSend:
		return decodeAs[BankSendOperation](data)
	case OpSwap:
		return decodeAs[SwapOperation](data)
	case OpEVMSwap:
		return decodeAs[EVMSwapOperation](data)
	case OpOPInitTransfer:
		return decodeAs[OPInitTransferOperation](data)
	case OpGoFastTransfer, OpStargateTransfer, OpCCTPTransfer, OpHyperlaneTransfer,
		OpAxelarTransfer, OpLayerZeroTransfer:
		b := BridgeTransferOperation{Protocol: kind}
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, kind)
}

// UnmarshalJSON picks the single variant key out of the operation object.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to decode operation: %w", err)
	}

	var parsed Operation
	if v, ok := fields["tx_index"]; ok {
		if err := json.Unmarshal(v, &parsed.TxIndex); err != nil {
			return fmt.Errorf("failed to decode tx_index: %w", err)
		}
	}
	if v, ok := fields["amount_in"]; ok {
		if err := json.Unmarshal(v, &parsed.AmountIn); err != nil {
			return fmt.Errorf("failed to decode amount_in: %w", err)
		}
	}
	if v, ok := fields["amount_out"]; ok {
		if err := json.Unmarshal(v, &parsed.AmountOut); err != nil {
			return fmt.Errorf("failed to decode amount_out: %w", err)
		}
	}

	variants := make([]string, 0, 1)
	for key := range fields {
		if !operationCommonKeys[key] {
			variants = append(variants, key)
		}
	}
	sort.Strings(variants)

	switch len(variants) {
	case 0:
		return fmt.Errorf("%w: operation has no variant", ErrUnknownOperation)
	case 1:
	default:
		return fmt.Errorf("%w: ambiguous variants %s", ErrUnknownOperation, strings.Join(variants, ","))
	}

	kind := OperationKind(variants[0])
	body, err := decodeBody(kind, fields[variants[0]])
	if err != nil {
		return err
	}

	parsed.Kind = kind
	parsed.Body = body
	parsed.raw = append(json.RawMessage(nil), data...)
	*o = parsed
	return nil
}

// MarshalJSON returns the object as received, or encodes Body when built in code.
func (o Operation) MarshalJSON() ([]byte, error) {
	if len(o.raw) > 0 {
		return o.raw, nil
	}
	if o.Body == nil {
		return nil, fmt.Errorf("%w: operation has no body", ErrUnknownOperation)
	}

	out := map[string]any{
		string(o.Body.operationKind()): o.Body,
		"tx_index":                     o.TxIndex,
	}
	if o.AmountIn != "" {
		out["amount_in"] = o.AmountIn
	}
	if o.AmountOut != "" {
		out["amount_out"] = o.AmountOut
	}
	return json.Marshal(out)
}

// NewOperation builds an operation from a variant body.
func NewOperation(body OperationBody, txIndex int, amountIn, amountOut string) Operation {
	return Operation{
		Kind:      body.operationKind(),
		TxIndex:   txIndex,
		AmountIn:  amountIn,
		AmountOut: amountOut,
		Body:      body,
	}
}

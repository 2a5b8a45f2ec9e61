package pipeline

import (
	"context"
	"errors"
	"net/http"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/address"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/approval"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/freshness"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/routerapi"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/simulate"
)

var (
	// ErrHookRequired means the route needs a signed op hook and none was given.
	// Retrying with the same inputs cannot succeed.
	ErrHookRequired = errors.New("route requires a signed op hook")
	// ErrNoTransactionData means the routing service did not return exactly one transaction
	ErrNoTransactionData = errors.New("no transaction data")
	// ErrStageOrder is returned when a stage is run before the stage it depends on
	ErrStageOrder = errors.New("pipeline stage run out of order")
)

// ErrorKind groups errors by how the caller should present them
type ErrorKind int

const (
	KindUserInput ErrorKind = iota
	KindDerivation
	KindRemote
	KindPrecondition
	KindApproval
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindUserInput:
		return "user_input"
	case KindDerivation:
		return "derivation"
	case KindRemote:
		return "remote"
	case KindPrecondition:
		return "precondition"
	case KindApproval:
		return "approval"
	case KindCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Retryable reports whether retrying the same call can succeed
func (k ErrorKind) Retryable() bool {
	return k == KindRemote
}

// Classify maps err to its kind. Errors nobody recognises are treated as
// integration bugs and classified as precondition errors.
func Classify(err error) ErrorKind {
	var remote *routerapi.RemoteError
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled

	case errors.Is(err, approval.ErrChainSwitch),
		errors.Is(err, approval.ErrApprovalFailed),
		errors.Is(err, approval.ErrInvalidApproval),
		errors.Is(err, approval.ErrUnsupportedChain):
		return KindApproval

	case errors.Is(err, ErrHookRequired),
		errors.Is(err, ErrNoTransactionData),
		errors.Is(err, ErrStageOrder),
		errors.Is(err, models.ErrUnknownOperation):
		return KindPrecondition

	case errors.Is(err, address.ErrNoDerivationPath),
		errors.Is(err, address.ErrPublicKeyFetch),
		errors.Is(err, address.ErrUnresolvedSlot):
		return KindDerivation

	case errors.Is(err, freshness.ErrRefreshFailed),
		errors.Is(err, context.DeadlineExceeded):
		return KindRemote

	case errors.As(err, &remote):
		// a 4xx other than 429 is the routing service rejecting the inputs
		if remote.StatusCode >= http.StatusBadRequest && remote.StatusCode < http.StatusInternalServerError &&
			remote.StatusCode != http.StatusTooManyRequests {
			return KindUserInput
		}
		return KindRemote

	case errors.Is(err, simulate.ErrNoRoute),
		errors.Is(err, simulate.ErrZeroAmount),
		errors.Is(err, simulate.ErrUnknownAsset),
		errors.Is(err, simulate.ErrInsufficientBalance),
		errors.Is(err, freshness.ErrRouteChanged),
		errors.Is(err, address.ErrInvalidRecipient),
		errors.Is(err, models.ErrMissingAsset),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrTooManyDecimals),
		errors.Is(err, models.ErrInvalidSlippage),
		errors.Is(err, models.ErrMissingRecipient):
		return KindUserInput
	}
	return KindPrecondition
}

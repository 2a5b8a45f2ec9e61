package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/address"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/approval"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/freshness"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "pipeline").Logger()
}

var tracer = otel.Tracer("github.com/Cogwheel-Validator/spectra-bridge/bridge/pipeline")

type Stage int

const (
	StageAddressList Stage = iota
	StageSignedHook
	StageMessages
	StageApprovals
	StageSubmit
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageAddressList:
		return "address_list"
	case StageSignedHook:
		return "signed_hook"
	case StageMessages:
		return "messages"
	case StageApprovals:
		return "approvals"
	case StageSubmit:
		return "submit"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// AddressResolver is satisfied by *address.Resolver
type AddressResolver interface {
	AddressList(ctx context.Context, route *models.Route, ids address.Identities, recipient string) ([]string, error)
}

// HookSigner produces the signed op hook for routes that require one
type HookSigner interface {
	SignOpHook(ctx context.Context, route *models.Route, addressList []string) (*models.SignedOpHook, error)
}

// ApprovalGate is satisfied by *approval.Gate
type ApprovalGate interface {
	RequiredApprovals(ctx context.Context, tx *models.EVMTx) ([]models.ERC20Approval, error)
	ApproveAll(ctx context.Context, wallet approval.Wallet, tx *models.EVMTx, missing []models.ERC20Approval) error
}

// FreshnessGuard is satisfied by *freshness.Guard
type FreshnessGuard interface {
	RefreshIfStale(ctx context.Context, req models.RouteRequest, route *models.Route, quoteVerifiedAt time.Time) (freshness.Check, error)
	Reconfirm()
	Cancel()
}

// Submitter signs and broadcasts the final transaction and returns its hash
type Submitter interface {
	Submit(ctx context.Context, tx models.Tx) (string, error)
}

// Deps are the collaborators of a pipeline. Hooks and Wallet are optional:
// without Hooks a route that needs a hook fails at the messages stage, and
// without Wallet missing approvals cannot be granted.
type Deps struct {
	Addresses AddressResolver
	Hooks     HookSigner
	Router    MsgsRequester
	Approvals ApprovalGate
	Wallet    approval.Wallet
	Guard     FreshnessGuard
	Submitter Submitter
}

// Input is what the user confirmed
type Input struct {
	Route      *models.Route
	Request    models.RouteRequest // request that produced Route, reissued on staleness
	QuotedAt   time.Time
	Identities address.Identities
	Recipient  string
	Slippage   string
}

// Pipeline runs AddressList -> SignedHook -> Messages -> Approvals -> Submit.
// Each stage consumes the output of the previous one and keeps its own error.
// A failed stage stays current; later stages never run until it succeeds.
// A pipeline is used from a single goroutine.
type Pipeline struct {
	deps Deps
	in   Input

	stage Stage
	errs  map[Stage]error

	addressList []string
	hook        *models.SignedOpHook
	tx          *models.Tx
	missing     []models.ERC20Approval
	txHash      string

	// route offered for reconfirmation after the freshness check saw a change
	changed *models.Route
}

func New(deps Deps, in Input) *Pipeline {
	return &Pipeline{
		deps:  deps,
		in:    in,
		stage: StageAddressList,
		errs:  make(map[Stage]error),
	}
}

func (p *Pipeline) Stage() Stage { return p.stage }

// Err returns the error of stage from its last run
func (p *Pipeline) Err(stage Stage) error { return p.errs[stage] }

func (p *Pipeline) Route() *models.Route { return p.in.Route }

func (p *Pipeline) AddressList() []string { return p.addressList }

func (p *Pipeline) Tx() *models.Tx { return p.tx }

// MissingApprovals is the approval set found by the last approvals stage run
func (p *Pipeline) MissingApprovals() []models.ERC20Approval { return p.missing }

func (p *Pipeline) TxHash() string { return p.txHash }

// ChangedRoute returns the new route after the submit stage failed with
// freshness.ErrRouteChanged, or nil.
func (p *Pipeline) ChangedRoute() *models.Route { return p.changed }

// Step runs the current stage. On success the pipeline advances; on failure the
// error is recorded for that stage and returned.
func (p *Pipeline) Step(ctx context.Context) error {
	if p.stage == StageDone {
		return nil
	}
	stage := p.stage

	ctx, span := tracer.Start(ctx, "pipeline."+stage.String())
	defer span.End()

	err := p.run(ctx, stage)
	if err != nil {
		p.errs[stage] = err
		kind := Classify(err)
		span.SetAttributes(attribute.String("error.kind", kind.String()))
		if kind != KindCancelled {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Warn().Err(err).Str("stage", stage.String()).Str("kind", kind.String()).Msg("Pipeline stage failed")
		}
		return err
	}
	delete(p.errs, stage)
	p.stage = stage + 1
	return nil
}

// Run steps until the transaction is submitted or a stage fails.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	for p.stage != StageDone {
		if err := p.Step(ctx); err != nil {
			return "", err
		}
	}
	return p.txHash, nil
}

// Reconfirm accepts the route offered after a change and restarts from the
// address list stage, because addresses, hook and messages all depend on it.
func (p *Pipeline) Reconfirm(quotedAt time.Time) error {
	if p.changed == nil {
		return fmt.Errorf("%w: no changed route to reconfirm", ErrStageOrder)
	}
	p.in.Route = p.changed
	p.in.QuotedAt = quotedAt
	p.changed = nil
	p.reset()
	if p.deps.Guard != nil {
		p.deps.Guard.Reconfirm()
	}
	return nil
}

// Cancel aborts the outstanding freshness check, if any.
func (p *Pipeline) Cancel() {
	if p.deps.Guard != nil {
		p.deps.Guard.Cancel()
	}
}

func (p *Pipeline) reset() {
	p.stage = StageAddressList
	p.errs = make(map[Stage]error)
	p.addressList = nil
	p.hook = nil
	p.tx = nil
	p.missing = nil
	p.txHash = ""
}

func (p *Pipeline) run(ctx context.Context, stage Stage) error {
	switch stage {
	case StageAddressList:
		return p.runAddressList(ctx)
	case StageSignedHook:
		return p.runSignedHook(ctx)
	case StageMessages:
		return p.runMessages(ctx)
	case StageApprovals:
		return p.runApprovals(ctx)
	case StageSubmit:
		return p.runSubmit(ctx)
	}
	return fmt.Errorf("%w: %s", ErrStageOrder, stage)
}

func (p *Pipeline) runAddressList(ctx context.Context) error {
	if p.in.Route == nil {
		return fmt.Errorf("%w: no route", ErrStageOrder)
	}
	list, err := p.deps.Addresses.AddressList(ctx, p.in.Route, p.in.Identities, p.in.Recipient)
	if err != nil {
		return err
	}
	p.addressList = list
	return nil
}

func (p *Pipeline) runSignedHook(ctx context.Context) error {
	p.hook = nil
	if !p.in.Route.RequiredOpHook || p.deps.Hooks == nil {
		return nil
	}
	hook, err := p.deps.Hooks.SignOpHook(ctx, p.in.Route, p.addressList)
	if err != nil {
		return fmt.Errorf("failed to sign op hook: %w", err)
	}
	p.hook = hook
	return nil
}

func (p *Pipeline) runMessages(ctx context.Context) error {
	if len(p.addressList) == 0 {
		return fmt.Errorf("%w: address list is empty", ErrStageOrder)
	}
	tx, err := BuildMessages(ctx, p.deps.Router, p.in.Route, p.addressList, p.hook, p.in.Slippage)
	if err != nil {
		return err
	}
	p.tx = tx
	return nil
}

func (p *Pipeline) runApprovals(ctx context.Context) error {
	if p.tx == nil {
		return fmt.Errorf("%w: no transaction", ErrStageOrder)
	}
	p.missing = nil
	if p.tx.EVMTx == nil || p.deps.Approvals == nil {
		return nil
	}

	missing, err := p.deps.Approvals.RequiredApprovals(ctx, p.tx.EVMTx)
	if err != nil {
		return err
	}
	p.missing = missing
	if len(missing) == 0 {
		return nil
	}
	if p.deps.Wallet == nil {
		return fmt.Errorf("%w: %d approvals missing and no wallet connected", approval.ErrApprovalFailed, len(missing))
	}
	if err := p.deps.Approvals.ApproveAll(ctx, p.deps.Wallet, p.tx.EVMTx, missing); err != nil {
		return err
	}

	still, err := p.deps.Approvals.RequiredApprovals(ctx, p.tx.EVMTx)
	if err != nil {
		return err
	}
	p.missing = still
	if len(still) > 0 {
		return fmt.Errorf("%w: %d allowances still below the required amount", approval.ErrApprovalFailed, len(still))
	}
	return nil
}

// runSubmit re-verifies the quote right before submission. A changed route stops
// the pipeline until Reconfirm is called.
func (p *Pipeline) runSubmit(ctx context.Context) error {
	if p.tx == nil {
		return fmt.Errorf("%w: no transaction", ErrStageOrder)
	}
	if p.deps.Guard != nil {
		check, err := p.deps.Guard.RefreshIfStale(ctx, p.in.Request, p.in.Route, p.in.QuotedAt)
		if err != nil {
			return err
		}
		if check.Outcome == freshness.RouteChanged {
			p.changed = check.Route
			return freshness.ErrRouteChanged
		}
		p.in.QuotedAt = check.VerifiedAt
	}

	hash, err := p.deps.Submitter.Submit(ctx, *p.tx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("failed to submit transaction: %w", err)
	}
	p.txHash = hash
	log.Info().Str("chain_id", p.tx.ChainID()).Str("tx", hash).Msg("Transaction submitted")
	return nil
}

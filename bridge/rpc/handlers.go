package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/address"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/approval"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/clock"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/freshness"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/intent"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/pipeline"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/registry"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/reminder"
	"github.com/Cogwheel-Validator/spectra-bridge/bridge/simulate"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type RouteSimulator interface {
	Simulate(ctx context.Context, values models.FormValues) (*simulate.Selection, error)
	RefreshIntervalFor(ctx context.Context, values models.FormValues) time.Duration
}

type IntentResolver interface {
	ParseAndResolve(ctx context.Context, text string) (intent.Parsed, models.ResolvedIntent, error)
}

type ChainLister interface {
	Chains(ctx context.Context) []models.ChainDescriptor
	Invalidate()
}

type AddressLister interface {
	AddressList(ctx context.Context, route *models.Route, ids address.Identities, recipient string) ([]string, error)
}

// Router is the part of the routing service the API forwards to
type Router interface {
	Route(ctx context.Context, req models.RouteRequest) (*models.Route, error)
	Msgs(ctx context.Context, req models.MsgsRequest) (*models.MsgsResponse, error)
}

type ApprovalChecker interface {
	RequiredApprovals(ctx context.Context, tx *models.EVMTx) ([]models.ERC20Approval, error)
	Calls(tx *models.EVMTx, missing []models.ERC20Approval) ([]approval.Call, error)
}

// ClientSettings are the tunables a frontend needs to drive the transfer flow
type ClientSettings struct {
	Layer1ChainID          string `json:"layer1_chain_id"`
	StalenessSeconds       int    `json:"staleness_seconds"`
	DebounceMillis         int    `json:"debounce_millis"`
	DefaultSlippagePercent string `json:"default_slippage_percent"`
}

// Services are the components behind the /v1 API. Approvals, Reminders and
// Recent are optional, their endpoints are not mounted when nil.
type Services struct {
	Simulator RouteSimulator
	Intents   IntentResolver
	Chains    ChainLister
	Addresses AddressLister
	Router    Router
	Approvals ApprovalChecker
	Reminders *reminder.Store
	Recent    *registry.RecentPairs
	// Balances enables the sender balance check on quotes
	Balances  simulate.BalanceReader
	Clock     clock.Clock
	Settings  ClientSettings
}

func (s *Services) mount(r chi.Router) {
	if s.Clock == nil {
		s.Clock = clock.System()
	}
	if s.Settings.DefaultSlippagePercent == "" {
		s.Settings.DefaultSlippagePercent = models.DefaultSlippagePercent
	}
	r.Get("/config", s.handleSettings)
	r.Get("/chains", s.handleChains)
	r.Post("/route", s.handleRoute)
	if s.Recent != nil {
		r.Get("/recent", s.handleRecent)
	}
	r.Post("/route/verify", s.handleVerifyRoute)
	r.Post("/intent", s.handleIntent)
	r.Post("/addresses", s.handleAddresses)
	r.Post("/msgs", s.handleMsgs)
	if s.Approvals != nil {
		r.Post("/approvals", s.handleApprovals)
	}
	if s.Reminders != nil {
		r.Get("/reminders", s.handleListReminders)
		r.Post("/reminders", s.handleObserveReminder)
		r.Post("/reminders/{key}/dismiss", s.handleDismissReminder)
		r.Post("/reminders/{key}/claimed", s.handleClaimedReminder)
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		Logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func statusFor(err error) (int, pipeline.ErrorKind) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, pipeline.KindUserInput
	case errors.Is(err, reminder.ErrNotFound):
		return http.StatusNotFound, pipeline.KindUserInput
	}

	kind := pipeline.Classify(err)
	switch kind {
	case pipeline.KindUserInput:
		return http.StatusBadRequest, kind
	case pipeline.KindDerivation:
		return http.StatusUnprocessableEntity, kind
	case pipeline.KindRemote:
		return http.StatusBadGateway, kind
	case pipeline.KindCancelled:
		return http.StatusRequestTimeout, kind
	}
	return http.StatusConflict, kind
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	event := Logger.Debug()
	if kind == pipeline.KindRemote || kind == pipeline.KindPrecondition {
		event = Logger.Warn()
	}
	event.Err(err).Str("path", r.URL.Path).Str("kind", kind.String()).Msg("Request failed")

	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Kind:      kind.String(),
		Retryable: kind.Retryable(),
	})
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json body: %v", errBadRequest, err)
	}
	return nil
}

func (s *Services) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Settings)
}

// handleChains serves the cached catalog. ?refresh=true drops the cache first.
func (s *Services) handleChains(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		s.Chains.Invalidate()
	}
	writeJSON(w, http.StatusOK, models.ChainsResponse{Chains: s.Chains.Chains(r.Context())})
}

type routeResponse struct {
	Route             *models.Route       `json:"route"`
	RouteType         models.RouteType    `json:"route_type"`
	FellBack          bool                `json:"fell_back"`
	Request           models.RouteRequest `json:"request"`
	RefreshIntervalMs int64               `json:"refresh_interval_ms"`
	QuotedAt          time.Time           `json:"quoted_at"`

	// set when the sender cannot cover the quote, the route is still returned
	BalanceError string `json:"balance_error,omitempty"`
}

func (s *Services) handleRoute(w http.ResponseWriter, r *http.Request) {
	var values models.FormValues
	if err := decodeBody(r, &values); err != nil {
		writeError(w, r, err)
		return
	}

	sel, err := s.Simulator.Simulate(r.Context(), values)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s.Recent != nil {
		s.Recent.Add(registry.Pair{ChainID: values.DstChainID, Denom: values.DstDenom})
		s.Recent.Add(registry.Pair{ChainID: values.SrcChainID, Denom: values.SrcDenom})
	}
	resp := routeResponse{
		Route:             sel.Route,
		RouteType:         sel.Type,
		FellBack:          sel.FellBack,
		Request:           sel.Request,
		RefreshIntervalMs: s.Simulator.RefreshIntervalFor(r.Context(), values).Milliseconds(),
		QuotedAt:          s.Clock.Now(),
	}
	if s.Balances != nil && values.Sender != "" {
		err := simulate.CheckBalance(r.Context(), s.Balances, values.Sender, sel.Route)
		switch {
		case errors.Is(err, simulate.ErrInsufficientBalance):
			resp.BalanceError = err.Error()
		case err != nil:
			Logger.Warn().Err(err).Str("sender", values.Sender).Msg("Balance check failed")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Services) handleRecent(w http.ResponseWriter, r *http.Request) {
	pairs := s.Recent.List()
	if pairs == nil {
		pairs = []registry.Pair{}
	}
	writeJSON(w, http.StatusOK, map[string][]registry.Pair{"pairs": pairs})
}

type verifyRequest struct {
	Request models.RouteRequest `json:"request"`
	Route   *models.Route       `json:"route"`
}

type verifyResponse struct {
	Changed    bool          `json:"changed"`
	Route      *models.Route `json:"route"`
	VerifiedAt time.Time     `json:"verified_at"`
}

// handleVerifyRoute re-queries a displayed route and reports whether anything
// the user agreed to has changed. Timestamps alone never count as a change.
func (s *Services) handleVerifyRoute(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Route == nil {
		writeError(w, r, fmt.Errorf("%w: route is required", errBadRequest))
		return
	}

	fresh, err := s.Router.Route(r.Context(), req.Request)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", freshness.ErrRefreshFailed, err))
		return
	}
	if fresh == nil {
		writeError(w, r, fmt.Errorf("%w: %w", freshness.ErrRefreshFailed, simulate.ErrNoRoute))
		return
	}
	before, err := freshness.Signature(req.Route)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	after, err := freshness.Signature(fresh)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := verifyResponse{Changed: before != after, Route: req.Route, VerifiedAt: s.Clock.Now()}
	if resp.Changed {
		resp.Route = fresh
	}
	writeJSON(w, http.StatusOK, resp)
}

type intentRequest struct {
	Text string `json:"text"`
}

type intentResponse struct {
	Intent   models.ResolvedIntent `json:"intent"`
	Complete bool                  `json:"complete"`
	Form     *models.FormValues    `json:"form,omitempty"`
}

func (s *Services) handleIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	_, resolved, err := s.Intents.ParseAndResolve(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, intent.ErrEmptyIntent) {
			err = fmt.Errorf("%w: %w", errBadRequest, err)
		}
		writeError(w, r, err)
		return
	}

	resp := intentResponse{Intent: resolved, Complete: resolved.IsComplete()}
	if resp.Complete {
		form := resolved.FormValues()
		resp.Form = &form
	}
	writeJSON(w, http.StatusOK, resp)
}

type addressesRequest struct {
	Route         *models.Route `json:"route"`
	InitiaAddress string        `json:"initia_address"`
	HexAddress    string        `json:"hex_address"`
	Bech32Address string        `json:"bech32_address"`
	PublicKey     []byte        `json:"public_key,omitempty"` // base64
	Recipient     string        `json:"recipient"`
}

func (s *Services) handleAddresses(w http.ResponseWriter, r *http.Request) {
	var req addressesRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Route == nil || strings.TrimSpace(req.Recipient) == "" {
		writeError(w, r, fmt.Errorf("%w: route and recipient are required", errBadRequest))
		return
	}

	ids := address.Identities{
		InitiaAddress: req.InitiaAddress,
		HexAddress:    req.HexAddress,
		Bech32Address: req.Bech32Address,
		PublicKey:     req.PublicKey,
	}
	list, err := s.Addresses.AddressList(r.Context(), req.Route, ids, req.Recipient)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"address_list": list})
}

type msgsRequest struct {
	Route           *models.Route        `json:"route"`
	AddressList     []string             `json:"address_list"`
	SignedOpHook    *models.SignedOpHook `json:"signed_op_hook,omitempty"`
	SlippagePercent string               `json:"slippage_percent"`
}

func (s *Services) handleMsgs(w http.ResponseWriter, r *http.Request) {
	var req msgsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Route == nil {
		writeError(w, r, fmt.Errorf("%w: route is required", errBadRequest))
		return
	}

	tx, err := pipeline.BuildMessages(r.Context(), s.Router, req.Route, req.AddressList, req.SignedOpHook, req.SlippagePercent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

type approvalsResponse struct {
	Missing []models.ERC20Approval `json:"missing"`
	Calls   []approval.Call        `json:"calls"`
}

func (s *Services) handleApprovals(w http.ResponseWriter, r *http.Request) {
	var tx models.EVMTx
	if err := decodeBody(r, &tx); err != nil {
		writeError(w, r, err)
		return
	}

	missing, err := s.Approvals.RequiredApprovals(r.Context(), &tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	calls, err := s.Approvals.Calls(&tx, missing)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := approvalsResponse{Missing: missing, Calls: calls}
	if resp.Missing == nil {
		resp.Missing = []models.ERC20Approval{}
	}
	if resp.Calls == nil {
		resp.Calls = []approval.Call{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Services) handleListReminders(w http.ResponseWriter, r *http.Request) {
	addr := r.URL.Query().Get("address")
	if addr == "" {
		writeError(w, r, fmt.Errorf("%w: address is required", errBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, map[string][]models.ReminderRecord{
		"reminders": s.Reminders.Actionable(addr, s.Clock.Now()),
	})
}

type observeRequest struct {
	Route     *models.Route `json:"route"`
	TxHash    string        `json:"tx_hash"`
	Recipient string        `json:"recipient"`
}

func (s *Services) handleObserveReminder(w http.ResponseWriter, r *http.Request) {
	var req observeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TxHash == "" || req.Recipient == "" {
		writeError(w, r, fmt.Errorf("%w: tx_hash and recipient are required", errBadRequest))
		return
	}

	rec, ok := reminder.FromWithdrawal(req.Route, req.TxHash, req.Recipient, s.Clock.Now())
	if !ok {
		writeError(w, r, fmt.Errorf("%w: route is not an op-bridge withdrawal", errBadRequest))
		return
	}
	if err := s.Reminders.Observe(rec); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Services) handleDismissReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.Reminders.Dismiss(chi.URLParam(r, "key")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Services) handleClaimedReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.Reminders.MarkClaimed(chi.URLParam(r, "key"), s.Clock.Now()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

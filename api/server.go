package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"liminal/audit"
	"liminal/core/types"
)

// Orchestrator is the subset of pipeline.Orchestrator the public surface
// drives. Declared locally so this package depends on behavior, not the
// concrete pipeline type, matching the narrow-collaborator-interface idiom
// used throughout this module.
type Orchestrator interface {
	CreateTransaction(ctx context.Context, contextID string, payload types.Payload) *types.Record
	RunDryRunPipeline(ctx context.Context, id string, originTrust float64) (*types.Record, error)
	SignTransaction(ctx context.Context, id string) (*types.Record, error)
	SubmitTransaction(ctx context.Context, id string) (*types.Record, error)
	AbortTransaction(id, reason string) (*types.Record, error)
	GetTransaction(id string) (*types.Record, error)
	GetContextTransactions(contextID string) []*types.Record
	ClearContext(contextID string)
	GetPrivateRailInfo() (types.RailCapabilities, types.RailStatus)
}

// TransactionServer exposes the pipeline orchestrator's operations (spec.md
// §4.8/§6) over HTTP, translating every result into the Envelope shape and
// every error through ToError. Grounded on services/lending/server's
// handler-plus-errors.toStatus pairing, rewired to this package's envelope
// instead of gRPC status codes.
type TransactionServer struct {
	router       chi.Router
	orchestrator Orchestrator
	auditLog     *audit.Log
}

// NewTransactionServer builds the public transaction HTTP surface.
func NewTransactionServer(orchestrator Orchestrator, auditLog *audit.Log) *TransactionServer {
	s := &TransactionServer{orchestrator: orchestrator, auditLog: auditLog}
	r := chi.NewRouter()
	r.Post("/tx", s.handleCreate)
	r.Post("/tx/{id}/dry-run", s.handleDryRun)
	r.Post("/tx/{id}/sign", s.handleSign)
	r.Post("/tx/{id}/submit", s.handleSubmit)
	r.Post("/tx/{id}/abort", s.handleAbort)
	r.Get("/tx/{id}", s.handleGet)
	r.Get("/tx/{id}/receipt", s.handleReceipt)
	r.Get("/context/{contextID}/tx", s.handleGetContextTransactions)
	r.Delete("/context/{contextID}/tx", s.handleClearContext)
	r.Get("/private-rail", s.handlePrivateRailInfo)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *TransactionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type createTransactionRequest struct {
	ContextID string        `json:"contextId"`
	Payload   types.Payload `json:"payload"`
}

func (s *TransactionServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err))
		return
	}
	rec := s.orchestrator.CreateTransaction(r.Context(), req.ContextID, req.Payload)
	writeJSON(w, http.StatusOK, Ok(rec))
}

type dryRunRequest struct {
	OriginTrust float64 `json:"originTrust"`
}

func (s *TransactionServer) handleDryRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req dryRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail(err))
			return
		}
	}
	rec, err := s.orchestrator.RunDryRunPipeline(r.Context(), id, req.OriginTrust)
	s.respond(w, rec, err)
}

func (s *TransactionServer) handleSign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.orchestrator.SignTransaction(r.Context(), id)
	s.respond(w, rec, err)
}

func (s *TransactionServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.orchestrator.SubmitTransaction(r.Context(), id)
	s.respond(w, rec, err)
}

type abortRequest struct {
	Reason string `json:"reason"`
}

func (s *TransactionServer) handleAbort(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req abortRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	rec, err := s.orchestrator.AbortTransaction(id, req.Reason)
	s.respond(w, rec, err)
}

func (s *TransactionServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.orchestrator.GetTransaction(id)
	s.respond(w, rec, err)
}

func (s *TransactionServer) handleReceipt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.orchestrator.GetTransaction(id)
	if err != nil {
		writeJSON(w, statusFor(err), Fail(err))
		return
	}
	_, status := s.orchestrator.GetPrivateRailInfo()
	receipt := audit.BuildReceipt(rec, status, status == types.RailStatusReady, reasonForRailStatus(status))
	writeJSON(w, http.StatusOK, Ok(receipt))
}

func reasonForRailStatus(status types.RailStatus) string {
	if status == types.RailStatusReady {
		return ""
	}
	return "private rail not ready: " + string(status)
}

func (s *TransactionServer) handleGetContextTransactions(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	records := s.orchestrator.GetContextTransactions(contextID)
	writeJSON(w, http.StatusOK, Ok(records))
}

func (s *TransactionServer) handleClearContext(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "contextID")
	s.orchestrator.ClearContext(contextID)
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"cleared": true}))
}

func (s *TransactionServer) handlePrivateRailInfo(w http.ResponseWriter, r *http.Request) {
	capabilities, status := s.orchestrator.GetPrivateRailInfo()
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"capabilities": capabilities,
		"status":       status,
	}))
}

func (s *TransactionServer) respond(w http.ResponseWriter, rec *types.Record, err error) {
	if err != nil {
		writeJSON(w, statusFor(err), Fail(err))
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

func statusFor(err error) int {
	switch ToError(err).Code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvariantViolation, CodeValidationFailure, CodeInvalidTransition:
		return http.StatusConflict
	case CodeCollaboratorFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

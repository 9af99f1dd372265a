package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"liminal/gate"
)

// AdminServer exposes the kill-switch and policy controls over HTTP,
// mirroring the /pause /resume /abort /status surface and bearer-token
// middleware of the teacher's services/payoutd/admin.go.
type AdminServer struct {
	router     chi.Router
	killSwitch *gate.KillSwitch
	policy     *gate.PolicyBits
	token      string
}

// NewAdminServer constructs the admin HTTP surface. An empty token disables
// authentication, intended only for local development.
func NewAdminServer(killSwitch *gate.KillSwitch, policy *gate.PolicyBits, token string) *AdminServer {
	s := &AdminServer{killSwitch: killSwitch, policy: policy, token: token}
	r := chi.NewRouter()
	r.Use(s.requireAuth)
	r.Post("/kill-switch/engage", s.handleEngage)
	r.Post("/kill-switch/disengage", s.handleDisengage)
	r.Post("/policy/private-rail", s.handleSetPrivateRail)
	r.Post("/policy/submission", s.handleSetSubmission)
	r.Get("/status", s.handleStatus)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *AdminServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *AdminServer) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) || strings.TrimPrefix(header, prefix) != s.token {
			writeJSON(w, http.StatusUnauthorized, Envelope{OK: false, Err: &Error{Code: CodeUnknown, Message: "unauthorized"}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *AdminServer) handleEngage(w http.ResponseWriter, r *http.Request) {
	s.killSwitch.Engage()
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"engaged": true}))
}

func (s *AdminServer) handleDisengage(w http.ResponseWriter, r *http.Request) {
	s.killSwitch.Disengage()
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"engaged": false}))
}

type policyToggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *AdminServer) handleSetPrivateRail(w http.ResponseWriter, r *http.Request) {
	var req policyToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err))
		return
	}
	s.policy.SetPrivateRailEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"privateRailEnabled": req.Enabled}))
}

func (s *AdminServer) handleSetSubmission(w http.ResponseWriter, r *http.Request) {
	var req policyToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err))
		return
	}
	s.policy.SetSubmissionEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, Ok(map[string]bool{"submissionEnabled": req.Enabled}))
}

type statusResponse struct {
	KillSwitchEngaged  bool `json:"killSwitchEngaged"`
	PrivateRailEnabled bool `json:"privateRailEnabled"`
	SubmissionEnabled  bool `json:"submissionEnabled"`
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(statusResponse{
		KillSwitchEngaged:  s.killSwitch.Engaged(),
		PrivateRailEnabled: s.policy.PrivateRailEnabled(),
		SubmissionEnabled:  s.policy.SubmissionEnabled(),
	}))
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

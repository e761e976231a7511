package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/rustyeddy/levered/config"
	"github.com/rustyeddy/levered/rebalance"
)

// maxBody caps accept request bodies.
const maxBody = 1 << 20

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeError(w, r, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProposal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := s.proposer.CalculateProposal(r.Context(), id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var p rebalance.Proposal
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&p); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("decode proposal: %v", err))
		return
	}
	if p.PortfolioID != id {
		writeFailure(w, r, &config.ValidationError{
			Field: "portfolio_id",
			Msg:   fmt.Sprintf("%q does not match path portfolio %q", p.PortfolioID, id),
		})
		return
	}

	if err := s.acceptor.Accept(r.Context(), p); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "accepted",
		"proposal_id": p.ID,
		"positions":   len(p.Positions),
	})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *config.ValidationError
	switch {
	case errors.Is(err, rebalance.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rebalance.ErrVersionConflict):
		return http.StatusConflict
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", RequestID(r.Context())).Msg("request failed")
	}
	writeError(w, r, code, err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg, RequestID: RequestID(r.Context())})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

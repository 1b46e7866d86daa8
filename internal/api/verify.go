package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/KeaPin/kami/internal/domain"
)

// verifyRequest is the public redemption request body.
type verifyRequest struct {
	CardKey string `json:"card_key"`
}

// verifyResponse is what a successful redemption returns: post-consume
// card state and the unlocked resources.
type verifyResponse struct {
	Card      verifyCard       `json:"card"`
	Resources []verifyResource `json:"resources"`
}

type verifyCard struct {
	Code          string `json:"code"`
	RemainingUses int    `json:"remaining_uses"`
	Unlimited     bool   `json:"unlimited,omitempty"`
}

type verifyResource struct {
	Name      string `json:"name"`
	TargetURL string `json:"target_url"`
}

// handleVerify redeems one use of a card key.
// POST /api/verify
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeMissingCardKey, "card_key is required")
		return
	}
	if strings.TrimSpace(req.CardKey) == "" {
		writeError(w, http.StatusBadRequest, codeMissingCardKey, "card_key is required")
		return
	}

	result, err := s.engine.Redeem(r.Context(), req.CardKey, clientIP(r))
	switch {
	case errors.Is(err, domain.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, codeInvalidFormat, "card key format is invalid")
		return
	case errors.Is(err, domain.ErrInvalidCard):
		// Unknown, expired, exhausted, and disabled all land here on
		// purpose. The message must not narrow it down.
		writeError(w, http.StatusNotFound, codeInvalidCard, "card key is invalid")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}

	resp := verifyResponse{
		Card:      toVerifyCard(result.Card),
		Resources: make([]verifyResource, 0, len(result.Resources)),
	}
	for _, res := range result.Resources {
		resp.Resources = append(resp.Resources, verifyResource{
			Name:      res.Name,
			TargetURL: res.TargetURL,
		})
	}
	writeData(w, http.StatusOK, resp)
}

func toVerifyCard(card domain.Card) verifyCard {
	if card.MaxUses == domain.UnlimitedUses {
		return verifyCard{Code: card.Code, RemainingUses: domain.UnlimitedUses, Unlimited: true}
	}
	remaining := card.MaxUses - card.CurrentUses
	if remaining < 0 {
		remaining = 0
	}
	return verifyCard{Code: card.Code, RemainingUses: remaining}
}

// clientIP is the audit-trail origin. RealIP middleware has already
// resolved forwarding headers into RemoteAddr.
func clientIP(r *http.Request) string {
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx > 0 {
		addr = addr[:idx]
	}
	return addr
}

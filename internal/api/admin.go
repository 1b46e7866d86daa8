package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/KeaPin/kami/internal/app/redeem"
	"github.com/KeaPin/kami/internal/domain"
)

// ─── Auth ───────────────────────────────────────────────────────────────────

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin exchanges admin credentials for a bearer token.
// POST /api/admin/auth
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "username and password are required")
		return
	}

	session, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, domain.ErrBadCredentials) {
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "invalid username or password")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, session)
}

// ─── Cards ──────────────────────────────────────────────────────────────────

// handleListCards lists cards, optionally filtered by a code/note keyword
// and a lifecycle status.
// GET /api/admin/cards?keyword=&status=
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	status := domain.CardStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.CardActive, domain.CardUsed, domain.CardDisabled:
	default:
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "unknown status filter")
		return
	}

	cards, err := s.store.ListCards(r.Context(), keyword, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"cards": cards,
		"total": len(cards),
	})
}

type createCardsRequest struct {
	Count       int      `json:"count"`
	MaxUses     int      `json:"max_uses"`
	ExpireDays  int      `json:"expire_days"`
	Note        string   `json:"note"`
	ResourceIDs []string `json:"resource_ids"`
}

// handleCreateCards issues a batch of cards bound to the given resources.
// POST /api/admin/cards
func (s *Server) handleCreateCards(w http.ResponseWriter, r *http.Request) {
	var req createCardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "malformed request body")
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	if req.MaxUses == 0 {
		req.MaxUses = 1
	}

	var expiresAt *time.Time
	if req.ExpireDays > 0 {
		t := time.Now().AddDate(0, 0, req.ExpireDays)
		expiresAt = &t
	}

	result, err := s.issuer.IssueBatch(r.Context(), redeem.IssueParams{
		Count:       req.Count,
		MaxUses:     req.MaxUses,
		ExpiresAt:   expiresAt,
		Note:        req.Note,
		ResourceIDs: req.ResourceIDs,
	})
	switch {
	case errors.Is(err, domain.ErrInvalidBatchCount):
		writeError(w, http.StatusBadRequest, codeInvalidCount, "count must be between 1 and 100")
		return
	case errors.Is(err, domain.ErrNoResources):
		writeError(w, http.StatusBadRequest, codeMissingResources, "at least one resource is required")
		return
	case errors.Is(err, domain.ErrInvalidMaxUses):
		writeError(w, http.StatusBadRequest, codeInvalidMaxUses, "max_uses must be positive or -1 for unlimited")
		return
	case errors.Is(err, domain.ErrUnknownResource):
		writeError(w, http.StatusBadRequest, codeUnknownResource, "unknown resource id")
		return
	case errors.Is(err, domain.ErrGenerationExhausted):
		writeError(w, http.StatusInternalServerError, codeGenerationExhausted, "could not generate a unique code")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusCreated, result)
}

// handleGetCard returns one card with its bound resources.
// GET /api/admin/cards/{id}
func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	card, err := s.store.GetCard(r.Context(), id)
	if errors.Is(err, domain.ErrCardNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "card not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}

	resources, err := s.store.BoundResources(r.Context(), card.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"card":      card,
		"resources": resources,
	})
}

// handleDisableCard shuts a card off. Idempotent.
// POST /api/admin/cards/{id}/disable
func (s *Server) handleDisableCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetCard(r.Context(), id); errors.Is(err, domain.ErrCardNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "card not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}

	if err := s.store.DisableCard(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// handleDeleteCard removes a card and its bindings. The usage trail is
// kept.
// DELETE /api/admin/cards/{id}
func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetCard(r.Context(), id); errors.Is(err, domain.ErrCardNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "card not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}

	if err := s.store.DeleteCard(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleCardUsage returns the card's audit trail, oldest first.
// GET /api/admin/cards/{id}/usage
func (s *Server) handleCardUsage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := s.store.UsageEntries(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

// ─── Resources ──────────────────────────────────────────────────────────────

// handleListResources lists all resources.
// GET /api/admin/resources
func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := s.store.ListResources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"resources": resources,
		"total":     len(resources),
	})
}

type createResourceRequest struct {
	Name      string `json:"name"`
	TargetURL string `json:"target_url"`
}

// handleCreateResource registers a new unlockable resource.
// POST /api/admin/resources
func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req createResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "name is required")
		return
	}

	resource, err := s.store.CreateResource(r.Context(), uuid.NewString(), strings.TrimSpace(req.Name), req.TargetURL, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusCreated, resource)
}

// handleDisableResource excludes a resource from future redemption
// results without touching its card bindings.
// POST /api/admin/resources/{id}/disable
func (s *Server) handleDisableResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetResource(r.Context(), id); errors.Is(err, domain.ErrResourceNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}

	if err := s.store.DisableResource(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "disabled"})
}

// handleDeleteResource removes a resource and its card bindings.
// DELETE /api/admin/resources/{id}
func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetResource(r.Context(), id); errors.Is(err, domain.ErrResourceNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}

	if err := s.store.DeleteResource(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ─── Stats ──────────────────────────────────────────────────────────────────

// handleStats returns aggregate usage counts.
// GET /api/admin/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	successes, failures, err := s.store.CountUsage(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"redemptions":     successes,
		"failed_attempts": failures,
	})
}

package server

import (
	"net/http"
	"time"

	"github.com/mwestre/clubgate/internal/audit"
	"github.com/mwestre/clubgate/internal/metrics"
	"github.com/mwestre/clubgate/session"
)

// handleRefresh re-derives the caller's session from the trusted signed
// token and nothing else. The request body is ignored entirely: a client
// cannot smuggle a role past this endpoint because the role is recomputed
// from the verified email against the authoritative membership store.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ident, err := h.resolver.Resolve(r)
	if err != nil {
		h.metrics.Inc(metrics.RefreshUnauthorized)
		h.emit(r, "session.refresh", "", false, "no session found")
		writeError(w, http.StatusUnauthorized, "No session found")
		return
	}

	current, err := h.roles.RoleByEmail(r.Context(), ident.Email)
	if err != nil {
		h.metrics.Inc(metrics.RefreshFailure)
		h.logger.Error("role lookup failed during refresh", "email", ident.Email, "err", err)
		h.emit(r, "session.refresh", ident.Email, false, err.Error())
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}

	sess := session.New(ident, current, h.lifetime)
	if err := h.store.Save(r.Context(), sess, h.lifetime); err != nil {
		h.metrics.Inc(metrics.RefreshFailure)
		h.logger.Error("session persist failed during refresh", "email", ident.Email, "err", err)
		h.emit(r, "session.refresh", ident.Email, false, err.Error())
		writeError(w, http.StatusInternalServerError, "failed to refresh session")
		return
	}

	h.metrics.Inc(metrics.RefreshSuccess)
	h.emit(r, "session.refresh", ident.Email, true, "")
	writeJSON(w, http.StatusOK, session.RefreshResponse{
		Message: "session refreshed",
		User: session.UserPayload{
			ID:    ident.Subject,
			Name:  ident.Name,
			Email: ident.Email,
		},
		Role: current.String(),
	})
}

// handleSession is the read-only echo of the refresh derivation: same
// inputs, same response shape, but nothing is persisted. It exists for
// diagnostic parity with the client-side trigger.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	ident, err := h.resolver.Resolve(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "No session found")
		return
	}

	current, err := h.roles.RoleByEmail(r.Context(), ident.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve session")
		return
	}

	writeJSON(w, http.StatusOK, session.RefreshResponse{
		Message: "session current",
		User: session.UserPayload{
			ID:    ident.Subject,
			Name:  ident.Name,
			Email: ident.Email,
		},
		Role: current.String(),
	})
}

func (h *Handler) emit(r *http.Request, action, email string, success bool, errMsg string) {
	event := audit.Event{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Email:     email,
		IP:        clientIP(r),
		Success:   success,
		Error:     errMsg,
	}
	h.audit.Emit(r.Context(), event)
}

// README: Registration, login, profile and logout handlers for passengers and drivers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/middleware"
	"ridehail/internal/modules/account"
	"ridehail/internal/modules/session"
	"ridehail/internal/types"
)

// Sessions issues and revokes tokens.
type Sessions interface {
	Issue(kind session.Kind, id types.ID) (session.Token, error)
	Revoke(ctx context.Context, p session.Principal) error
}

type AccountHandler struct {
	accounts *account.Service
	sessions Sessions
}

func NewAccountHandler(accounts *account.Service, sessions Sessions) *AccountHandler {
	return &AccountHandler{accounts: accounts, sessions: sessions}
}

func (h *AccountHandler) RegisterPassenger(c *gin.Context) {
	var req account.RegisterPassengerCommand
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.accounts.RegisterPassenger(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	tok, err := h.sessions.Issue(session.KindPassenger, p.ID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"passenger": toPassenger(p), "session": toToken(tok)})
}

func (h *AccountHandler) LoginPassenger(c *gin.Context) {
	var req account.LoginCommand
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.accounts.AuthenticatePassenger(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	tok, err := h.sessions.Issue(session.KindPassenger, p.ID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"passenger": toPassenger(p), "session": toToken(tok)})
}

func (h *AccountHandler) PassengerProfile(c *gin.Context) {
	p, err := h.accounts.Profile(c.Request.Context(), middleware.CallerPrincipal(c).ID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toPassenger(p))
}

func (h *AccountHandler) RegisterDriver(c *gin.Context) {
	var req account.RegisterDriverCommand
	if !bindJSON(c, &req) {
		return
	}
	profile, err := h.accounts.RegisterDriver(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	tok, err := h.sessions.Issue(session.KindDriver, profile.Driver.ID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"driver": toDriver(&profile.Driver, profile.Car), "session": toToken(tok)})
}

func (h *AccountHandler) LoginDriver(c *gin.Context) {
	var req account.LoginCommand
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.accounts.AuthenticateDriver(c.Request.Context(), req)
	if err != nil {
		writeAppError(c, err)
		return
	}
	tok, err := h.sessions.Issue(session.KindDriver, d.ID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver": toDriver(d, nil), "session": toToken(tok)})
}

func (h *AccountHandler) DriverDashboard(c *gin.Context) {
	profile, err := h.accounts.DriverDashboard(c.Request.Context(), middleware.CallerPrincipal(c).ID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDriver(&profile.Driver, profile.Car))
}

func (h *AccountHandler) Logout(c *gin.Context) {
	if err := h.sessions.Revoke(c.Request.Context(), middleware.CallerPrincipal(c)); err != nil {
		writeAppError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

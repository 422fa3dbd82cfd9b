package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mhawash/polar/config"
	"github.com/mhawash/polar/internal/adapters/identity"
	natsadapter "github.com/mhawash/polar/internal/adapters/nats"
	"github.com/mhawash/polar/internal/domain"
	"github.com/mhawash/polar/internal/tokenverify"
	"github.com/mhawash/polar/internal/usecase"
	res "github.com/mhawash/polar/pkg/http"
)

type OAuthHandler struct {
	cfg        *config.Config
	providers  identity.Registry
	reconciler usecase.ReconcileService
	sessions   usecase.SessionService
	signer     usecase.JWTSigner
	jobs       natsadapter.JobClient
}

func NewOAuthHandler(cfg *config.Config, providers identity.Registry, reconciler usecase.ReconcileService, sessions usecase.SessionService, signer usecase.JWTSigner, jobs natsadapter.JobClient) *OAuthHandler {
	return &OAuthHandler{
		cfg:        cfg,
		providers:  providers,
		reconciler: reconciler,
		sessions:   sessions,
		signer:     signer,
		jobs:       jobs,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type revokeRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

// Login redirects the browser to the provider's consent page. The
// state is a signed short-lived token, so no server-side session is
// needed across the round-trip.
func (h *OAuthHandler) Login(c echo.Context) error {
	provider, ok := h.providers.Get(domain.Platform(c.Param("platform")))
	if !ok {
		return res.ErrorJSON(c, http.StatusNotFound, "unknown_platform", "unsupported identity provider", requestIDFromCtx(c), nil)
	}
	payload := usecase.StatePayload{
		Platform:    provider.Platform(),
		ReturnTo:    c.QueryParam("return_to"),
		Attribution: attributionFromQuery(c),
	}
	state, err := h.signer.SignState(payload, h.cfg.OAuthStateTTL)
	if err != nil {
		return res.ErrorJSON(c, http.StatusInternalServerError, "state_failed", err.Error(), requestIDFromCtx(c), nil)
	}
	return c.Redirect(http.StatusTemporaryRedirect, provider.AuthCodeURL(state))
}

// Callback finishes the flow: validate state, exchange the code, then
// either reconcile a sign-in or attach the identity to the link target
// carried in the state.
func (h *OAuthHandler) Callback(c echo.Context) error {
	if errParam := c.QueryParam("error"); errParam != "" {
		return res.ErrorJSON(c, http.StatusBadRequest, "provider_denied", errParam, requestIDFromCtx(c), nil)
	}
	state, err := h.signer.ParseState(c.QueryParam("state"))
	if err != nil {
		return res.ErrorJSON(c, http.StatusBadRequest, "invalid_state", "state validation failed", requestIDFromCtx(c), nil)
	}
	platform := domain.Platform(c.Param("platform"))
	if state.Platform != platform {
		return res.ErrorJSON(c, http.StatusBadRequest, "invalid_state", "state issued for another platform", requestIDFromCtx(c), nil)
	}
	provider, ok := h.providers.Get(platform)
	if !ok {
		return res.ErrorJSON(c, http.StatusNotFound, "unknown_platform", "unsupported identity provider", requestIDFromCtx(c), nil)
	}

	creds, client, err := provider.Exchange(c.Request().Context(), c.QueryParam("code"))
	if err != nil {
		return res.ErrorJSON(c, http.StatusBadGateway, "exchange_failed", err.Error(), requestIDFromCtx(c), nil)
	}

	if state.LinkUserID != "" {
		return h.finishLink(c, client, creds, state.LinkUserID)
	}

	user, created, err := h.reconciler.Reconcile(c.Request().Context(), client, creds, state.Attribution)
	if err != nil {
		return reconcileError(c, err)
	}
	tokens, err := h.sessions.IssueSession(c.Request().Context(), user)
	if err != nil {
		return res.ErrorJSON(c, http.StatusInternalServerError, "session_failed", err.Error(), requestIDFromCtx(c), nil)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, map[string]interface{}{
		"user":      user,
		"created":   created,
		"tokens":    tokens,
		"return_to": state.ReturnTo,
	})
}

func (h *OAuthHandler) finishLink(c echo.Context, client identity.Client, creds domain.OAuthCredentials, linkUserID string) error {
	user, err := h.reconciler.GetUser(c.Request().Context(), linkUserID)
	if err != nil {
		return res.ErrorJSON(c, http.StatusNotFound, "not_found", "link target no longer exists", requestIDFromCtx(c), nil)
	}
	user, err = h.reconciler.LinkExistingAccount(c.Request().Context(), client, user, creds)
	if err != nil {
		return reconcileError(c, err)
	}
	return res.JSON(c, http.StatusOK, user)
}

// StartLink begins a link flow for the signed-in user and returns the
// consent URL instead of redirecting, so SPAs can open it themselves.
func (h *OAuthHandler) StartLink(c echo.Context) error {
	provider, ok := h.providers.Get(domain.Platform(c.Param("platform")))
	if !ok {
		return res.ErrorJSON(c, http.StatusNotFound, "unknown_platform", "unsupported identity provider", requestIDFromCtx(c), nil)
	}
	userID := c.Get("user_id").(string)
	state, err := h.signer.SignState(usecase.StatePayload{Platform: provider.Platform(), LinkUserID: userID}, h.cfg.OAuthStateTTL)
	if err != nil {
		return res.ErrorJSON(c, http.StatusInternalServerError, "state_failed", err.Error(), requestIDFromCtx(c), nil)
	}
	return res.JSON(c, http.StatusOK, map[string]string{"authorization_url": provider.AuthCodeURL(state)})
}

func (h *OAuthHandler) Me(c echo.Context) error {
	userID := c.Get("user_id").(string)
	user, err := h.reconciler.GetUser(c.Request().Context(), userID)
	if err != nil {
		return res.ErrorJSON(c, http.StatusNotFound, "not_found", "user not found", requestIDFromCtx(c), nil)
	}
	return res.JSON(c, http.StatusOK, user)
}

func (h *OAuthHandler) Refresh(c echo.Context) error {
	req := new(refreshRequest)
	if err := c.Bind(req); err != nil {
		return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "invalid payload", requestIDFromCtx(c), nil)
	}
	tokens, err := h.sessions.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return res.ErrorJSON(c, http.StatusUnauthorized, "refresh_failed", err.Error(), requestIDFromCtx(c), nil)
	}
	return c.JSON(http.StatusOK, tokens)
}

func (h *OAuthHandler) Revoke(c echo.Context) error {
	req := new(revokeRequest)
	if err := c.Bind(req); err != nil {
		return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "invalid payload", requestIDFromCtx(c), nil)
	}
	if err := h.sessions.Revoke(c.Request().Context(), req.RefreshToken); err != nil {
		return res.ErrorJSON(c, http.StatusUnauthorized, "revoke_failed", err.Error(), requestIDFromCtx(c), nil)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *OAuthHandler) VerifyToken(c echo.Context) error {
	req := new(verifyTokenRequest)
	if err := c.Bind(req); err != nil {
		return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "invalid payload", requestIDFromCtx(c), nil)
	}
	result, err := tokenverify.Verify(h.signer, req.Token, nil)
	if err != nil {
		return res.ErrorJSON(c, http.StatusUnauthorized, "verify_failed", err.Error(), requestIDFromCtx(c), nil)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user_id": result.UserID,
		"email":   result.Email,
		"claims":  result.Claims,
	})
}

// AccountUnderReview enqueues the under-review job for a payout
// account. Used by the internal review tooling.
func (h *OAuthHandler) AccountUnderReview(c echo.Context) error {
	return h.enqueueAccountJob(c, h.cfg.NATSAccountUnderReviewSubject)
}

func (h *OAuthHandler) AccountReviewed(c echo.Context) error {
	return h.enqueueAccountJob(c, h.cfg.NATSAccountReviewedSubject)
}

func (h *OAuthHandler) enqueueAccountJob(c echo.Context, subject string) error {
	accountID := c.Param("id")
	if accountID == "" {
		return res.ErrorJSON(c, http.StatusBadRequest, "bad_request", "account id required", requestIDFromCtx(c), nil)
	}
	if h.jobs == nil {
		return res.ErrorJSON(c, http.StatusServiceUnavailable, "bus_unavailable", "job bus is not connected", requestIDFromCtx(c), nil)
	}
	if err := h.jobs.Enqueue(c.Request().Context(), subject, map[string]interface{}{"account_id": accountID}); err != nil {
		return res.ErrorJSON(c, http.StatusBadGateway, "enqueue_failed", err.Error(), requestIDFromCtx(c), nil)
	}
	return res.Accepted(c, map[string]string{"status": "enqueued"})
}

func reconcileError(c echo.Context, err error) error {
	var unverified *usecase.CannotLinkUnverifiedEmailError
	switch {
	case errors.Is(err, usecase.ErrNoPrimaryEmail):
		return res.ErrorJSON(c, http.StatusBadRequest, "no_primary_email", err.Error(), requestIDFromCtx(c), nil)
	case errors.As(err, &unverified):
		return res.ErrorJSON(c, http.StatusForbidden, "cannot_link_unverified_email", err.Error(), requestIDFromCtx(c), nil)
	case errors.Is(err, usecase.ErrAccountLinkedToAnotherUser):
		return res.ErrorJSON(c, http.StatusForbidden, "account_linked_to_another_user", err.Error(), requestIDFromCtx(c), nil)
	default:
		return res.ErrorJSON(c, http.StatusInternalServerError, "reconcile_failed", err.Error(), requestIDFromCtx(c), nil)
	}
}

func attributionFromQuery(c echo.Context) *domain.SignupAttribution {
	attribution := &domain.SignupAttribution{
		Intent:      c.QueryParam("intent"),
		UTMSource:   c.QueryParam("utm_source"),
		UTMMedium:   c.QueryParam("utm_medium"),
		UTMCampaign: c.QueryParam("utm_campaign"),
	}
	if *attribution == (domain.SignupAttribution{}) {
		return nil
	}
	return attribution
}

func requestIDFromCtx(c echo.Context) string {
	if reqID := c.Response().Header().Get(echo.HeaderXRequestID); reqID != "" {
		return reqID
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

// Package httptransport exposes the wallet session and onboarding flows to
// the UI layer over JSON.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tradegate/internal/auth/models"
	dErrors "tradegate/pkg/domain-errors"
	authmw "tradegate/pkg/platform/middleware/auth"
	"tradegate/pkg/platform/httputil"
	"tradegate/pkg/requestcontext"
)

// Service is the orchestrator surface the handlers drive.
type Service interface {
	Snapshot() models.Session
	Connect(ctx context.Context) (models.Session, error)
	Disconnect(ctx context.Context)
	SelectTradingLevel(ctx context.Context, level models.TradingLevel) error
	SelectAccountTypeAndComplete(ctx context.Context, accountType models.AccountType) (models.AccountType, error)
}

// TokenIssuer signs session tokens bound to a wallet address.
type TokenIssuer interface {
	GenerateSessionToken(address, accountType string, expiresIn time.Duration) (string, time.Time, error)
}

// Handler wires session and onboarding endpoints to the orchestrator.
type Handler struct {
	service  Service
	tokens   TokenIssuer
	tokenTTL time.Duration
	logger   *slog.Logger
}

// New constructs a handler with its dependencies.
func New(service Service, tokens TokenIssuer, tokenTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		tokens:   tokens,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// Register mounts the public session endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/session", h.HandleGetSession)
	r.Post("/session/connect", h.HandleConnect)
	r.Post("/session/disconnect", h.HandleDisconnect)
}

// RegisterOnboarding mounts the onboarding endpoints. The router must
// already run authmw.RequireSession.
func (h *Handler) RegisterOnboarding(r chi.Router) {
	r.Post("/onboarding/trading-level", h.HandleSelectTradingLevel)
	r.Post("/onboarding/account-type", h.HandleSelectAccountType)
}

// HandleGetSession handles GET /session.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, FromSession(h.service.Snapshot()))
}

// HandleConnect handles POST /session/connect.
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	snap, err := h.service.Connect(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "wallet connect failed",
			"request_id", requestID,
			"client", requestcontext.ClientLabel(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	token, expiresAt, err := h.issueToken(snap)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to sign session token",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token"))
		return
	}

	h.logger.InfoContext(ctx, "wallet connected",
		"request_id", requestID,
		"address", snap.WalletAddress,
		"gate", snap.Gate(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, &ConnectResponse{
		SessionResponse: FromSession(snap),
		Token:           token,
		ExpiresAt:       expiresAt,
	})
}

// HandleDisconnect handles POST /session/disconnect. Disconnecting an already
// disconnected session succeeds.
func (h *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.service.Disconnect(ctx)
	h.logger.InfoContext(ctx, "wallet disconnected",
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, FromSession(h.service.Snapshot()))
}

// HandleSelectTradingLevel handles POST /onboarding/trading-level.
func (h *Handler) HandleSelectTradingLevel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if err := h.requireSessionOwner(ctx); err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[TradingLevelRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SelectTradingLevel(ctx, req.ParsedLevel()); err != nil {
		h.logger.WarnContext(ctx, "trading level selection failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromSession(h.service.Snapshot()))
}

// HandleSelectAccountType handles POST /onboarding/account-type. The response
// carries a fresh token so the account type claim matches the profile.
func (h *Handler) HandleSelectAccountType(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if err := h.requireSessionOwner(ctx); err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[AccountTypeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	accountType, err := h.service.SelectAccountTypeAndComplete(ctx, req.ParsedAccountType())
	if err != nil {
		h.logger.WarnContext(ctx, "onboarding completion failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	snap := h.service.Snapshot()
	token, expiresAt, err := h.issueToken(snap)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token"))
		return
	}

	h.logger.InfoContext(ctx, "onboarding completed",
		"request_id", requestID,
		"address", snap.WalletAddress,
		"account_type", accountType,
	)
	httputil.WriteJSON(w, http.StatusOK, &CompletionResponse{
		AccountType: accountType.String(),
		Route:       models.LandingRoute(models.GateApp, accountType),
		Session:     FromSession(snap),
		Token:       token,
		ExpiresAt:   expiresAt,
	})
}

// requireSessionOwner checks that the bearer token belongs to the wallet the
// session is currently connected with. A token from before an account switch
// no longer qualifies.
func (h *Handler) requireSessionOwner(ctx context.Context) error {
	snap := h.service.Snapshot()
	if !snap.IsConnected || snap.WalletAddress == "" || authmw.GetAddress(ctx) != snap.WalletAddress {
		h.logger.WarnContext(ctx, "session token does not match connected wallet",
			"request_id", requestcontext.RequestID(ctx),
			"token_address", authmw.GetAddress(ctx),
		)
		return dErrors.New(dErrors.CodeUnauthorized, "session token does not match the connected wallet")
	}
	return nil
}

func (h *Handler) issueToken(snap models.Session) (string, time.Time, error) {
	var accountType string
	if snap.Profile != nil {
		accountType = snap.Profile.AccountType.String()
	}
	return h.tokens.GenerateSessionToken(snap.WalletAddress, accountType, h.tokenTTL)
}

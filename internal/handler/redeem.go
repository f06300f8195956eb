package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/DukeRupert/arcana/internal/auth"
	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/service"
	"github.com/go-playground/validator/v10"
)

type redeemRequest struct {
	Code string `json:"code" validate:"max=64"`
}

type redeemResponse struct {
	OK                  bool        `json:"ok"`
	MembershipExpiresAt time.Time   `json:"membership_expires_at"`
	Plan                domain.Plan `json:"plan"`
}

// RedeemHandler serves code redemption.
type RedeemHandler struct {
	redeem   service.RedeemService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRedeemHandler creates a new RedeemHandler.
func NewRedeemHandler(redeem service.RedeemService, validate *validator.Validate, logger *slog.Logger) *RedeemHandler {
	return &RedeemHandler{redeem: redeem, validate: validate, logger: logger}
}

// RegisterRoutes registers the redeem route. limit runs after requireUser
// so guesses are counted per user.
func (h *RedeemHandler) RegisterRoutes(
	mux *http.ServeMux,
	requireUser func(http.Handler) http.Handler,
	limit func(http.Handler) http.Handler,
) {
	mux.Handle("POST /api/codes/redeem", requireUser(limit(http.HandlerFunc(h.Redeem))))
}

// Redeem handles POST /api/codes/redeem. Unknown, spent and expired codes
// render as 400 with the reason.
func (h *RedeemHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	const op = "handler.codes.redeem"

	var req redeemRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	redeemed, err := h.redeem.Redeem(r.Context(), auth.GetUserFromRequest(r), req.Code)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, redeemResponse{
		OK:                  true,
		MembershipExpiresAt: redeemed.MembershipExpiresAt,
		Plan:                redeemed.Plan,
	})
}

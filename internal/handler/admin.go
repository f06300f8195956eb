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

type mintCodesRequest struct {
	Count        int        `json:"count" validate:"min=1,max=100"`
	DurationDays int        `json:"duration_days" validate:"min=1,max=3650"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

type mintCodesResponse struct {
	OK    bool                    `json:"ok"`
	Codes []domain.RedemptionCode `json:"codes"`
}

type statsResponse struct {
	OK bool `json:"ok"`
	*domain.Stats
}

// AdminHandler serves the operator endpoints.
type AdminHandler struct {
	admin    service.AdminService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin service.AdminService, validate *validator.Validate, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes registers admin routes with the provided middleware.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, requireAdmin func(http.Handler) http.Handler) {
	mux.Handle("POST /api/admin/codes", requireAdmin(http.HandlerFunc(h.MintCodes)))
	mux.Handle("GET /api/admin/stats", requireAdmin(http.HandlerFunc(h.Stats)))
}

// MintCodes handles POST /api/admin/codes.
func (h *AdminHandler) MintCodes(w http.ResponseWriter, r *http.Request) {
	const op = "handler.admin.mint_codes"
	user := auth.GetUserFromRequest(r)

	var req mintCodesRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	minted, err := h.admin.MintCodes(r.Context(), domain.MintCodesParams{
		Count:        req.Count,
		DurationDays: req.DurationDays,
		ExpiresAt:    req.ExpiresAt,
		CreatedBy:    user.ID,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("redemption codes minted",
		"admin_id", user.ID,
		"count", len(minted),
		"duration_days", req.DurationDays,
	)
	writeJSON(w, http.StatusOK, mintCodesResponse{OK: true, Codes: minted})
}

// Stats handles GET /api/admin/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{OK: true, Stats: stats})
}

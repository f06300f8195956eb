package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/arcana/internal/auth"
	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/service"
)

type planResponse struct {
	OK    bool                 `json:"ok"`
	Quota *domain.QuotaSummary `json:"quota"`
}

type meResponse struct {
	OK    bool                  `json:"ok"`
	User  *domain.User          `json:"user"`
	Quota *domain.QuotaSummary  `json:"quota"`
	Usage *domain.UsageSnapshot `json:"usage"`
}

// PlanHandler serves the caller's plan and profile.
type PlanHandler struct {
	plans  service.PlanService
	usage  service.UsageService
	logger *slog.Logger
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(plans service.PlanService, usage service.UsageService, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{plans: plans, usage: usage, logger: logger}
}

// RegisterRoutes registers plan routes. /api/plan answers anonymous
// callers with the guest plan; /api/me requires a user.
func (h *PlanHandler) RegisterRoutes(
	mux *http.ServeMux,
	withUser func(http.Handler) http.Handler,
	requireUser func(http.Handler) http.Handler,
) {
	mux.Handle("GET /api/plan", withUser(http.HandlerFunc(h.Plan)))
	mux.Handle("GET /api/me", requireUser(http.HandlerFunc(h.Me)))
}

// Plan handles GET /api/plan.
func (h *PlanHandler) Plan(w http.ResponseWriter, r *http.Request) {
	quota, err := h.plans.PlanFor(r.Context(), auth.GetUserFromRequest(r))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, planResponse{OK: true, Quota: quota})
}

// Me handles GET /api/me.
func (h *PlanHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)

	quota, err := h.plans.QuotaSummary(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	usage, err := h.usage.Today(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		OK:    true,
		User:  user,
		Quota: quota,
		Usage: usage,
	})
}

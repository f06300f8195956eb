package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/arcana/internal/auth"
	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type cardRequest struct {
	Name     string `json:"name" validate:"required,max=64"`
	Arcana   string `json:"arcana" validate:"omitempty,oneof=major minor"`
	Reversed bool   `json:"reversed"`
	Position string `json:"position" validate:"max=64"`
}

type createReadingRequest struct {
	Question string        `json:"question" validate:"max=2000"`
	Language string        `json:"language" validate:"max=35"`
	Spread   int           `json:"spread" validate:"omitempty,min=1,max=10"`
	Cards    []cardRequest `json:"cards" validate:"max=10,dive"`
}

type readingResponse struct {
	OK      bool                  `json:"ok"`
	ID      uuid.UUID             `json:"id"`
	Cards   []domain.Card         `json:"cards"`
	Reading string                `json:"reading"`
	Usage   *domain.UsageConsumed `json:"usage"`
}

// ReadingHandler serves AI readings.
type ReadingHandler struct {
	readings service.ReadingService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewReadingHandler creates a new ReadingHandler.
func NewReadingHandler(readings service.ReadingService, validate *validator.Validate, logger *slog.Logger) *ReadingHandler {
	return &ReadingHandler{readings: readings, validate: validate, logger: logger}
}

// RegisterRoutes registers reading routes.
func (h *ReadingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/readings", requireUser(http.HandlerFunc(h.Create)))
}

// Create handles POST /api/readings.
func (h *ReadingHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handler.reading.create"

	var req createReadingRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var cards []domain.Card
	for _, c := range req.Cards {
		cards = append(cards, domain.Card{
			Name:     c.Name,
			Arcana:   c.Arcana,
			Reversed: c.Reversed,
			Position: c.Position,
		})
	}

	reading, err := h.readings.Create(r.Context(), auth.GetUserFromRequest(r), domain.CreateReadingParams{
		Question: req.Question,
		Language: req.Language,
		Spread:   req.Spread,
		Cards:    cards,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, readingResponse{
		OK:      true,
		ID:      reading.ID,
		Cards:   reading.Cards,
		Reading: reading.Text,
		Usage:   reading.Usage,
	})
}

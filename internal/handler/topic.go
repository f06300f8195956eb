package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/arcana/internal/auth"
	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/service"
	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Request / Response Types
// =============================================================================

type createTopicRequest struct {
	Title           string          `json:"title" validate:"max=200"`
	Language        string          `json:"language" validate:"max=35"`
	BaselineCards   json.RawMessage `json:"baseline_cards"`
	BaselineReading string          `json:"baseline_reading" validate:"max=20000"`
}

type appendEventRequest struct {
	Name    string          `json:"name" validate:"max=200"`
	Cards   json.RawMessage `json:"cards"`
	Reading string          `json:"reading" validate:"max=20000"`
}

type topicResponse struct {
	OK    bool                 `json:"ok"`
	Topic *domain.Topic        `json:"topic"`
	Quota *domain.QuotaSummary `json:"quota"`
}

type topicListResponse struct {
	OK     bool                    `json:"ok"`
	Topics []domain.TopicWithUsage `json:"topics"`
	Quota  *domain.QuotaSummary    `json:"quota"`
}

type topicDetailResponse struct {
	OK         bool                 `json:"ok"`
	Topic      *domain.Topic        `json:"topic"`
	Events     []domain.TopicEvent  `json:"events"`
	Quota      *domain.QuotaSummary `json:"quota"`
	EventUsage domain.EventUsage    `json:"event_usage"`
}

type eventResponse struct {
	OK         bool                 `json:"ok"`
	Event      *domain.TopicEvent   `json:"event"`
	EventUsage domain.EventUsage    `json:"event_usage"`
	Quota      *domain.QuotaSummary `json:"quota"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// =============================================================================
// Handler
// =============================================================================

// TopicHandler serves the topic and event endpoints.
type TopicHandler struct {
	topics   service.TopicService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewTopicHandler creates a new TopicHandler.
func NewTopicHandler(topics service.TopicService, validate *validator.Validate, logger *slog.Logger) *TopicHandler {
	return &TopicHandler{
		topics:   topics,
		validate: validate,
		logger:   logger,
	}
}

// RegisterRoutes registers topic routes. Every route requires a user.
func (h *TopicHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/topics", requireUser(http.HandlerFunc(h.Create)))
	mux.Handle("GET /api/topics", requireUser(http.HandlerFunc(h.List)))
	mux.Handle("GET /api/topics/{id}", requireUser(http.HandlerFunc(h.Get)))
	mux.Handle("DELETE /api/topics/{id}", requireUser(http.HandlerFunc(h.Delete)))
	mux.Handle("POST /api/topics/{id}/events", requireUser(http.HandlerFunc(h.AppendEvent)))
}

// Create handles POST /api/topics.
func (h *TopicHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handler.topic.create"
	user := auth.GetUserFromRequest(r)

	var req createTopicRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	created, err := h.topics.Create(r.Context(), user, domain.CreateTopicParams{
		Title:           req.Title,
		Language:        req.Language,
		BaselineCards:   req.BaselineCards,
		BaselineReading: req.BaselineReading,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, topicResponse{
		OK:    true,
		Topic: created.Topic,
		Quota: created.Quota,
	})
}

// List handles GET /api/topics.
func (h *TopicHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.topics.List(r.Context(), auth.GetUserFromRequest(r))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	topics := list.Topics
	if topics == nil {
		topics = []domain.TopicWithUsage{}
	}
	writeJSON(w, http.StatusOK, topicListResponse{
		OK:     true,
		Topics: topics,
		Quota:  list.Quota,
	})
}

// Get handles GET /api/topics/{id}.
func (h *TopicHandler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handler.topic.get"

	id, err := pathID(r, "id", op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	detail, err := h.topics.Get(r.Context(), auth.GetUserFromRequest(r), id)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	events := detail.Events
	if events == nil {
		events = []domain.TopicEvent{}
	}
	writeJSON(w, http.StatusOK, topicDetailResponse{
		OK:         true,
		Topic:      detail.Topic,
		Events:     events,
		Quota:      detail.Quota,
		EventUsage: detail.EventUsage,
	})
}

// Delete handles DELETE /api/topics/{id}.
func (h *TopicHandler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handler.topic.delete"

	id, err := pathID(r, "id", op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.topics.Delete(r.Context(), auth.GetUserFromRequest(r), id); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// AppendEvent handles POST /api/topics/{id}/events.
func (h *TopicHandler) AppendEvent(w http.ResponseWriter, r *http.Request) {
	const op = "handler.topic.append_event"

	id, err := pathID(r, "id", op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req appendEventRequest
	if err := decodeJSON(w, r, h.validate, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	appended, err := h.topics.AppendEvent(r.Context(), auth.GetUserFromRequest(r), id, domain.AppendEventParams{
		Name:    req.Name,
		Cards:   req.Cards,
		Reading: req.Reading,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, eventResponse{
		OK:         true,
		Event:      appended.Event,
		EventUsage: appended.EventUsage,
		Quota:      appended.Quota,
	})
}

// Package service contains the business logic layer.
//
// This file implements the topic and event quota gates. Gates check and
// then insert without a lock, so two racing requests at the quota boundary
// can both succeed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/metrics"
	"github.com/DukeRupert/arcana/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// =============================================================================
// Interface Definition
// =============================================================================

// TopicStore is the persistence the topic service needs.
type TopicStore interface {
	CreateTopic(ctx context.Context, arg repository.CreateTopicParams) (*domain.Topic, error)
	GetTopic(ctx context.Context, id, userID uuid.UUID) (*domain.Topic, error)
	ListTopicsWithEventCounts(ctx context.Context, userID uuid.UUID) ([]domain.TopicWithUsage, error)
	DeleteTopic(ctx context.Context, id, userID uuid.UUID) error
	TouchTopic(ctx context.Context, id uuid.UUID) error
	CountEvents(ctx context.Context, topicID uuid.UUID) (int, error)
	CreateEvent(ctx context.Context, arg repository.CreateEventParams) (*domain.TopicEvent, error)
	ListEvents(ctx context.Context, topicID uuid.UUID) ([]domain.TopicEvent, error)
}

// TopicService gates topic and event writes on the caller's quota.
type TopicService interface {
	// Create inserts a topic if the current cycle has topic quota left.
	// Returns *domain.Rejection (topic_quota_exhausted) otherwise.
	Create(ctx context.Context, user *domain.User, params domain.CreateTopicParams) (*domain.TopicCreated, error)

	// List returns every topic of the user with its remaining events.
	List(ctx context.Context, user *domain.User) (*domain.TopicList, error)

	// Get returns one topic with its events and usage.
	Get(ctx context.Context, user *domain.User, topicID uuid.UUID) (*domain.TopicDetail, error)

	// Delete removes a topic and its events.
	Delete(ctx context.Context, user *domain.User, topicID uuid.UUID) error

	// AppendEvent inserts an event unless the downgrade lock or the
	// current cycle's per-topic event quota forbids it.
	AppendEvent(ctx context.Context, user *domain.User, topicID uuid.UUID, params domain.AppendEventParams) (*domain.EventAppended, error)
}

// =============================================================================
// Implementation
// =============================================================================

type topicService struct {
	store           TopicStore
	plans           PlanService
	defaultLanguage string
	logger          *slog.Logger
}

// NewTopicService creates a new TopicService.
func NewTopicService(store TopicStore, plans PlanService, defaultLanguage string, logger *slog.Logger) TopicService {
	if defaultLanguage == "" {
		defaultLanguage = "en"
	}
	return &topicService{
		store:           store,
		plans:           plans,
		defaultLanguage: defaultLanguage,
		logger:          logger,
	}
}

// NormalizeLanguage canonicalizes a BCP 47 tag, falling back to def when empty.
func NormalizeLanguage(tag, def string) (string, bool) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		tag = def
	}
	t, err := language.Parse(tag)
	if err != nil {
		return "", false
	}
	return t.String(), true
}

func (s *topicService) Create(ctx context.Context, user *domain.User, params domain.CreateTopicParams) (*domain.TopicCreated, error) {
	const op = "topic.create"

	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, domain.Invalid(op, domain.MsgMissingTitle)
	}
	lang, ok := NormalizeLanguage(params.Language, s.defaultLanguage)
	if !ok {
		return nil, domain.Invalid(op, domain.MsgInvalidLanguage)
	}

	// A missing cycle is a server error, never a quota rejection
	quota, err := s.plans.QuotaSummary(ctx, user)
	if err != nil {
		return nil, err
	}

	if quota.TopicQuotaRemaining <= 0 {
		s.logger.Info("topic quota exhausted",
			"user_id", user.ID,
			"plan", quota.Plan,
			"total", quota.TopicQuotaTotal,
		)
		return nil, domain.Reject(op, domain.ReasonTopicQuotaExhausted, quota)
	}

	cycleID := quota.Cycle.ID
	topic, err := s.store.CreateTopic(ctx, repository.CreateTopicParams{
		UserID:          user.ID,
		CycleID:         &cycleID,
		Title:           title,
		Language:        lang,
		BaselineCards:   params.BaselineCards,
		BaselineReading: params.BaselineReading,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create topic")
	}
	metrics.TopicsCreated.WithLabelValues(string(quota.Plan)).Inc()

	after, err := s.plans.QuotaSummary(ctx, user)
	if err != nil {
		s.logger.Warn("quota recount failed after topic insert",
			"user_id", user.ID,
			"topic_id", topic.ID,
			"error", err,
		)
		after = quota.Decremented()
	}

	return &domain.TopicCreated{Topic: topic, Quota: after}, nil
}

func (s *topicService) List(ctx context.Context, user *domain.User) (*domain.TopicList, error) {
	const op = "topic.list"

	quota, err := s.plans.QuotaSummary(ctx, user)
	if err != nil {
		return nil, err
	}

	topics, err := s.store.ListTopicsWithEventCounts(ctx, user.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list topics")
	}
	if topics == nil {
		topics = []domain.TopicWithUsage{}
	}
	for i := range topics {
		topics[i].EventRemaining = domain.NewEventUsage(topics[i].EventCount, quota.EventQuotaPerTopic).Remaining
	}

	return &domain.TopicList{Topics: topics, Quota: quota}, nil
}

func (s *topicService) Get(ctx context.Context, user *domain.User, topicID uuid.UUID) (*domain.TopicDetail, error) {
	const op = "topic.get"

	topic, err := s.loadTopic(ctx, op, user, topicID)
	if err != nil {
		return nil, err
	}

	events, err := s.store.ListEvents(ctx, topic.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list events")
	}

	quota, err := s.plans.QuotaSummary(ctx, user)
	if err != nil {
		return nil, err
	}

	return &domain.TopicDetail{
		Topic:      topic,
		Events:     events,
		Quota:      quota,
		EventUsage: domain.NewEventUsage(len(events), quota.EventQuotaPerTopic),
	}, nil
}

func (s *topicService) Delete(ctx context.Context, user *domain.User, topicID uuid.UUID) error {
	const op = "topic.delete"

	if err := s.store.DeleteTopic(ctx, topicID, user.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NotFound(op, domain.MsgTopicNotFound)
		}
		return domain.Internal(err, op, "failed to delete topic")
	}

	s.logger.Info("topic deleted", "user_id", user.ID, "topic_id", topicID)
	return nil
}

func (s *topicService) AppendEvent(ctx context.Context, user *domain.User, topicID uuid.UUID, params domain.AppendEventParams) (*domain.EventAppended, error) {
	const op = "topic.append_event"

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, domain.Invalid(op, domain.MsgMissingName)
	}

	topic, err := s.loadTopic(ctx, op, user, topicID)
	if err != nil {
		return nil, err
	}

	// The current cycle decides, not the cycle the topic was created in
	quota, err := s.plans.QuotaSummary(ctx, user)
	if err != nil {
		return nil, err
	}

	if quota.LockedOut(topic.ID) {
		s.logger.Info("event refused by downgrade lock",
			"user_id", user.ID,
			"topic_id", topic.ID,
			"allowed_topic_id", quota.DowngradeLimitedTopicID,
		)
		return nil, domain.Reject(op, domain.ReasonDowngradedTopicLocked, quota)
	}

	used, err := s.store.CountEvents(ctx, topic.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to count events")
	}
	if used >= quota.EventQuotaPerTopic {
		s.logger.Info("event quota exhausted",
			"user_id", user.ID,
			"topic_id", topic.ID,
			"used", used,
			"limit", quota.EventQuotaPerTopic,
		)
		return nil, domain.Reject(op, domain.ReasonEventQuotaExhausted, quota)
	}

	cycleID := topic.CycleID
	if cycleID == nil {
		id := quota.Cycle.ID
		cycleID = &id
	}

	event, err := s.store.CreateEvent(ctx, repository.CreateEventParams{
		TopicID: topic.ID,
		CycleID: cycleID,
		UserID:  user.ID,
		Name:    name,
		Cards:   params.Cards,
		Reading: params.Reading,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create event")
	}
	metrics.EventsAppended.WithLabelValues(string(quota.Plan)).Inc()

	if err := s.store.TouchTopic(ctx, topic.ID); err != nil {
		s.logger.Warn("failed to touch topic", "topic_id", topic.ID, "error", err)
	}

	usage := domain.NewEventUsage(used+1, quota.EventQuotaPerTopic)
	if recount, err := s.store.CountEvents(ctx, topic.ID); err == nil {
		usage = domain.NewEventUsage(recount, quota.EventQuotaPerTopic)
	} else {
		s.logger.Warn("event recount failed", "topic_id", topic.ID, "error", err)
	}

	after, err := s.plans.QuotaSummary(ctx, user)
	if err != nil {
		s.logger.Warn("quota recount failed after event insert", "user_id", user.ID, "error", err)
		after = quota
	}

	return &domain.EventAppended{Event: event, EventUsage: usage, Quota: after}, nil
}

func (s *topicService) loadTopic(ctx context.Context, op string, user *domain.User, topicID uuid.UUID) (*domain.Topic, error) {
	topic, err := s.store.GetTopic(ctx, topicID, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound(op, domain.MsgTopicNotFound)
		}
		return nil, domain.Internal(err, op, "failed to load topic")
	}
	return topic, nil
}

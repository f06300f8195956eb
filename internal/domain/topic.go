// Package domain contains core business types and interfaces.
//
// This file defines topics and their follow-up events.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TopicStatus is the lifecycle state of a topic.
type TopicStatus string

const (
	TopicStatusActive TopicStatus = "active"
)

// Topic is a persisted tarot question with its baseline reading.
// A topic counts against the cycle active when it was created.
type Topic struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	CycleID         *uuid.UUID      `json:"cycle_id"`
	Title           string          `json:"title"`
	Language        string          `json:"language"`
	BaselineCards   json.RawMessage `json:"baseline_cards,omitempty"`
	BaselineReading string          `json:"baseline_reading,omitempty"`
	Status          TopicStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TopicWithUsage decorates a topic with its event consumption.
type TopicWithUsage struct {
	Topic
	EventCount     int `json:"event_count"`
	EventRemaining int `json:"event_remaining"`
}

// TopicEvent is an immutable follow-up reading attached to a topic.
type TopicEvent struct {
	ID        uuid.UUID       `json:"id"`
	TopicID   uuid.UUID       `json:"topic_id"`
	CycleID   *uuid.UUID      `json:"cycle_id"`
	UserID    uuid.UUID       `json:"user_id"`
	Name      string          `json:"name"`
	Cards     json.RawMessage `json:"cards,omitempty"`
	Reading   string          `json:"reading,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EventUsage reports events used and remaining on one topic.
type EventUsage struct {
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// NewEventUsage clamps remaining at zero.
func NewEventUsage(used, quota int) EventUsage {
	remaining := quota - used
	if remaining < 0 {
		remaining = 0
	}
	return EventUsage{Used: used, Remaining: remaining}
}

// CreateTopicParams is the input of the create-topic gate.
type CreateTopicParams struct {
	Title           string
	Language        string
	BaselineCards   json.RawMessage
	BaselineReading string
}

// AppendEventParams is the input of the append-event gate.
type AppendEventParams struct {
	Name    string
	Cards   json.RawMessage
	Reading string
}

// TopicCreated is the success branch of the create-topic gate.
type TopicCreated struct {
	Topic *Topic
	Quota *QuotaSummary
}

// EventAppended is the success branch of the append-event gate.
type EventAppended struct {
	Event      *TopicEvent
	EventUsage EventUsage
	Quota      *QuotaSummary
}

// TopicDetail is a topic with its events and the caller's quota.
type TopicDetail struct {
	Topic      *Topic
	Events     []TopicEvent
	Quota      *QuotaSummary
	EventUsage EventUsage
}

// TopicList is every topic of a user with the caller's quota.
type TopicList struct {
	Topics []TopicWithUsage
	Quota  *QuotaSummary
}

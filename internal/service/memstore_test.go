package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/DukeRupert/arcana/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// In-memory store
// =============================================================================

// memStore implements every store interface of this package on maps.
// All methods take the same lock, so a memStore behaves like a
// serializable database.
type memStore struct {
	mu     sync.Mutex
	now    func() time.Time
	seq    int
	users  map[uuid.UUID]*domain.User
	cycles []domain.MembershipCycle
	topics []domain.Topic
	events []domain.TopicEvent
	usage  map[string]int
	codes  map[string]*domain.RedemptionCode
	ai     []domain.AIUsage

	// failCountTopics makes CountTopicsInCycle fail once it reaches zero.
	failCountTopicsAfter int
}

func newMemStore(clock *fakeClock) *memStore {
	return &memStore{
		now:                  clock.Now,
		users:                make(map[uuid.UUID]*domain.User),
		usage:                make(map[string]int),
		codes:                make(map[string]*domain.RedemptionCode),
		failCountTopicsAfter: -1,
	}
}

func (m *memStore) addUser(u *domain.User) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	m.users[u.ID] = &cp
	return u
}

func (m *memStore) addCode(c domain.RedemptionCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[c.Code] = &c
}

func (m *memStore) cycleCount(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.cycles {
		if c.UserID == userID {
			n++
		}
	}
	return n
}

func (m *memStore) usageCount(userID uuid.UUID, day time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[usageKey(userID, day)]
}

func usageKey(userID uuid.UUID, day time.Time) string {
	return userID.String() + "/" + day.Format(time.DateOnly)
}

// --- users ---

func (m *memStore) UpsertUser(_ context.Context, id domain.Identity) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, u := range m.users {
		if u.ExternalID == id.Subject {
			u.Email = domain.NormalizeEmail(id.Email)
			u.Name = id.Name
			u.UpdatedAt = now
			cp := *u
			return &cp, nil
		}
	}
	u := &domain.User{
		ID:         uuid.New(),
		ExternalID: id.Subject,
		Email:      domain.NormalizeEmail(id.Email),
		Name:       id.Name,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserForUpdate(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) SetMembershipExpiresAt(_ context.Context, id uuid.UUID, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.MembershipExpiresAt = &expiresAt
	return nil
}

// --- cycles ---

func (m *memStore) GetActiveCycle(_ context.Context, userID uuid.UUID, now time.Time) (*domain.MembershipCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []domain.MembershipCycle
	for _, c := range m.cycles {
		if c.UserID == userID && c.ActiveAt(now) {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return nil, repository.ErrNotFound
	}
	// Newest start wins; later inserts break ties
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].StartsAt.After(active[j].StartsAt)
	})
	best := active[0]
	for _, c := range active[1:] {
		if c.StartsAt.Equal(best.StartsAt) && c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	return &best, nil
}

func (m *memStore) CreateCycle(_ context.Context, c *domain.MembershipCycle) (*domain.MembershipCycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	cp := *c
	cp.ID = uuid.New()
	cp.CreatedAt = m.now().Add(time.Duration(m.seq))
	m.cycles = append(m.cycles, cp)
	out := cp
	return &out, nil
}

// --- topics ---

func (m *memStore) CountTopicsInCycle(_ context.Context, userID, cycleID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCountTopicsAfter == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if m.failCountTopicsAfter > 0 {
		m.failCountTopicsAfter--
	}
	n := 0
	for _, t := range m.topics {
		if t.UserID == userID && t.CycleID != nil && *t.CycleID == cycleID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) LatestTopicID(_ context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.topics) - 1; i >= 0; i-- {
		if m.topics[i].UserID == userID {
			id := m.topics[i].ID
			return &id, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateTopic(_ context.Context, arg repository.CreateTopicParams) (*domain.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	t := domain.Topic{
		ID:              uuid.New(),
		UserID:          arg.UserID,
		CycleID:         arg.CycleID,
		Title:           arg.Title,
		Language:        arg.Language,
		BaselineCards:   arg.BaselineCards,
		BaselineReading: arg.BaselineReading,
		Status:          domain.TopicStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.topics = append(m.topics, t)
	return &t, nil
}

func (m *memStore) GetTopic(_ context.Context, id, userID uuid.UUID) (*domain.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.topics {
		if t.ID == id && t.UserID == userID {
			cp := t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ListTopicsWithEventCounts(_ context.Context, userID uuid.UUID) ([]domain.TopicWithUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TopicWithUsage
	for i := len(m.topics) - 1; i >= 0; i-- {
		t := m.topics[i]
		if t.UserID != userID {
			continue
		}
		n := 0
		for _, e := range m.events {
			if e.TopicID == t.ID {
				n++
			}
		}
		out = append(out, domain.TopicWithUsage{Topic: t, EventCount: n})
	}
	return out, nil
}

func (m *memStore) DeleteTopic(_ context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.topics {
		if t.ID == id && t.UserID == userID {
			m.topics = append(m.topics[:i], m.topics[i+1:]...)
			kept := m.events[:0]
			for _, e := range m.events {
				if e.TopicID != id {
					kept = append(kept, e)
				}
			}
			m.events = kept
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) TouchTopic(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.topics {
		if m.topics[i].ID == id {
			m.topics[i].UpdatedAt = m.now()
		}
	}
	return nil
}

// --- events ---

func (m *memStore) CountEvents(_ context.Context, topicID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e.TopicID == topicID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateEvent(_ context.Context, arg repository.CreateEventParams) (*domain.TopicEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := domain.TopicEvent{
		ID:        uuid.New(),
		TopicID:   arg.TopicID,
		CycleID:   arg.CycleID,
		UserID:    arg.UserID,
		Name:      arg.Name,
		Cards:     arg.Cards,
		Reading:   arg.Reading,
		CreatedAt: m.now(),
	}
	m.events = append(m.events, e)
	return &e, nil
}

func (m *memStore) ListEvents(_ context.Context, topicID uuid.UUID) ([]domain.TopicEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.TopicEvent{}
	for _, e := range m.events {
		if e.TopicID == topicID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- daily usage ---

func (m *memStore) IncrementDailyUsage(_ context.Context, userID uuid.UUID, day time.Time, limit int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := usageKey(userID, day)
	if m.usage[key] >= limit {
		return m.usage[key], false, nil
	}
	m.usage[key]++
	return m.usage[key], true, nil
}

func (m *memStore) GetDailyUsage(_ context.Context, userID uuid.UUID, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage[usageKey(userID, day)], nil
}

// --- redemption codes ---

func (m *memStore) GetCodeForUpdate(_ context.Context, code string) (*domain.RedemptionCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) MarkCodeUsed(_ context.Context, code string, userID uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return repository.ErrNotFound
	}
	if c.UsedAt != nil {
		return repository.ErrConflict
	}
	c.UsedAt = &now
	c.UsedBy = &userID
	return nil
}

func (m *memStore) CreateCodes(_ context.Context, codes []domain.RedemptionCode) ([]domain.RedemptionCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.RedemptionCode, 0, len(codes))
	for _, c := range codes {
		c.CreatedAt = m.now()
		m.codes[c.Code] = &c
		out = append(out, c)
	}
	return out, nil
}

// --- stats and AI usage ---

func (m *memStore) CreateAIUsage(_ context.Context, u domain.AIUsage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ai = append(m.ai, u)
	return nil
}

func (m *memStore) GetStats(_ context.Context, now, day time.Time) (*domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &domain.Stats{
		Users:  int64(len(m.users)),
		Topics: int64(len(m.topics)),
		Events: int64(len(m.events)),
	}
	for _, u := range m.users {
		if u.IsMember(now) {
			s.Members++
		}
	}
	for _, c := range m.codes {
		s.CodesIssued++
		if c.UsedAt != nil {
			s.CodesRedeemed++
		}
	}
	suffix := "/" + day.Format(time.DateOnly)
	for k, n := range m.usage {
		if len(k) > len(suffix) && k[len(k)-len(suffix):] == suffix {
			s.ReadingsToday += int64(n)
		}
	}
	return s, nil
}

// =============================================================================
// Helpers
// =============================================================================

// serialTx runs fn under one lock, standing in for a database transaction.
type serialTx struct {
	mu sync.Mutex
}

func (t *serialTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testEnv wires every service over one memStore.
type testEnv struct {
	clock  *fakeClock
	store  *memStore
	plans  PlanService
	topics TopicService
	usage  UsageService
	redeem RedeemService
}

var testLimits = domain.DailyLimits{Free: 2, Member: 50}

func newTestEnv() *testEnv {
	clock := newFakeClock()
	store := newMemStore(clock)
	logger := discardLogger()
	plans := NewPlanService(store, clock.Now, logger)
	return &testEnv{
		clock:  clock,
		store:  store,
		plans:  plans,
		topics: NewTopicService(store, plans, "en", logger),
		usage:  NewUsageService(store, testLimits, time.UTC, clock.Now, logger),
		redeem: NewRedeemService(store, &serialTx{}, clock.Now, logger),
	}
}

func (e *testEnv) freeUser() *domain.User {
	return e.store.addUser(&domain.User{ExternalID: uuid.NewString(), Email: "free@example.com"})
}

func (e *testEnv) memberUser(until time.Duration) *domain.User {
	expires := e.clock.Now().Add(until)
	return e.store.addUser(&domain.User{
		ExternalID:          uuid.NewString(),
		Email:               "member@example.com",
		MembershipExpiresAt: &expires,
	})
}

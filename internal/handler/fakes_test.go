package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/DukeRupert/arcana/internal/auth"
	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/google/uuid"
)

var errNotImplemented = errors.New("not implemented")

// =============================================================================
// Service Fakes
// =============================================================================

type fakeTopicService struct {
	CreateFunc      func(ctx context.Context, user *domain.User, params domain.CreateTopicParams) (*domain.TopicCreated, error)
	ListFunc        func(ctx context.Context, user *domain.User) (*domain.TopicList, error)
	GetFunc         func(ctx context.Context, user *domain.User, topicID uuid.UUID) (*domain.TopicDetail, error)
	DeleteFunc      func(ctx context.Context, user *domain.User, topicID uuid.UUID) error
	AppendEventFunc func(ctx context.Context, user *domain.User, topicID uuid.UUID, params domain.AppendEventParams) (*domain.EventAppended, error)
}

func (f *fakeTopicService) Create(ctx context.Context, user *domain.User, params domain.CreateTopicParams) (*domain.TopicCreated, error) {
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, user, params)
	}
	return nil, errNotImplemented
}

func (f *fakeTopicService) List(ctx context.Context, user *domain.User) (*domain.TopicList, error) {
	if f.ListFunc != nil {
		return f.ListFunc(ctx, user)
	}
	return nil, errNotImplemented
}

func (f *fakeTopicService) Get(ctx context.Context, user *domain.User, topicID uuid.UUID) (*domain.TopicDetail, error) {
	if f.GetFunc != nil {
		return f.GetFunc(ctx, user, topicID)
	}
	return nil, errNotImplemented
}

func (f *fakeTopicService) Delete(ctx context.Context, user *domain.User, topicID uuid.UUID) error {
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, user, topicID)
	}
	return errNotImplemented
}

func (f *fakeTopicService) AppendEvent(ctx context.Context, user *domain.User, topicID uuid.UUID, params domain.AppendEventParams) (*domain.EventAppended, error) {
	if f.AppendEventFunc != nil {
		return f.AppendEventFunc(ctx, user, topicID, params)
	}
	return nil, errNotImplemented
}

type fakeUsageService struct {
	ConsumeFunc func(ctx context.Context, user *domain.User) (*domain.UsageConsumed, error)
	TodayFunc   func(ctx context.Context, user *domain.User) (*domain.UsageSnapshot, error)
}

func (f *fakeUsageService) Consume(ctx context.Context, user *domain.User) (*domain.UsageConsumed, error) {
	if f.ConsumeFunc != nil {
		return f.ConsumeFunc(ctx, user)
	}
	return nil, errNotImplemented
}

func (f *fakeUsageService) Today(ctx context.Context, user *domain.User) (*domain.UsageSnapshot, error) {
	if f.TodayFunc != nil {
		return f.TodayFunc(ctx, user)
	}
	return nil, errNotImplemented
}

type fakeRedeemService struct {
	RedeemFunc func(ctx context.Context, user *domain.User, code string) (*domain.Redeemed, error)
}

func (f *fakeRedeemService) Redeem(ctx context.Context, user *domain.User, code string) (*domain.Redeemed, error) {
	if f.RedeemFunc != nil {
		return f.RedeemFunc(ctx, user, code)
	}
	return nil, errNotImplemented
}

type fakePlanService struct {
	QuotaSummaryFunc func(ctx context.Context, user *domain.User) (*domain.QuotaSummary, error)
}

func (f *fakePlanService) EnsureActiveCycle(ctx context.Context, user *domain.User) (*domain.MembershipCycle, error) {
	return nil, errNotImplemented
}

func (f *fakePlanService) QuotaSummary(ctx context.Context, user *domain.User) (*domain.QuotaSummary, error) {
	if f.QuotaSummaryFunc != nil {
		return f.QuotaSummaryFunc(ctx, user)
	}
	return nil, errNotImplemented
}

func (f *fakePlanService) PlanFor(ctx context.Context, user *domain.User) (*domain.QuotaSummary, error) {
	if user == nil {
		return domain.GuestQuotaSummary(), nil
	}
	return f.QuotaSummary(ctx, user)
}

type fakeReadingService struct {
	CreateFunc func(ctx context.Context, user *domain.User, params domain.CreateReadingParams) (*domain.Reading, error)
}

func (f *fakeReadingService) Create(ctx context.Context, user *domain.User, params domain.CreateReadingParams) (*domain.Reading, error) {
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, user, params)
	}
	return nil, errNotImplemented
}

type fakeAdminService struct {
	MintCodesFunc func(ctx context.Context, params domain.MintCodesParams) ([]domain.RedemptionCode, error)
	StatsFunc     func(ctx context.Context) (*domain.Stats, error)
}

func (f *fakeAdminService) IsAdmin(user *domain.User) bool {
	return user != nil && user.Email == "owner@example.com"
}

func (f *fakeAdminService) MintCodes(ctx context.Context, params domain.MintCodesParams) ([]domain.RedemptionCode, error) {
	if f.MintCodesFunc != nil {
		return f.MintCodesFunc(ctx, params)
	}
	return nil, errNotImplemented
}

func (f *fakeAdminService) Stats(ctx context.Context) (*domain.Stats, error) {
	if f.StatsFunc != nil {
		return f.StatsFunc(ctx)
	}
	return nil, errNotImplemented
}

// =============================================================================
// Request Helpers
// =============================================================================

// requireUserStub mirrors the auth middleware's anonymous branch.
func requireUserStub(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			UnauthorizedResponse(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func passThrough(next http.Handler) http.Handler { return next }

func testUser() *domain.User {
	return &domain.User{ID: uuid.New(), Email: "seer@example.com", Name: "Seer"}
}

// serve routes a request through mux, optionally as user.
func serve(mux *http.ServeMux, user *domain.User, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(auth.SetUser(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func freeQuota(remaining int) *domain.QuotaSummary {
	return &domain.QuotaSummary{
		Plan:                domain.PlanFree,
		TopicQuotaTotal:     domain.FreeTopicQuota,
		TopicQuotaRemaining: remaining,
		EventQuotaPerTopic:  domain.FreeEventQuotaPerTopic,
	}
}

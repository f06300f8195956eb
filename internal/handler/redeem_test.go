package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DukeRupert/arcana/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedeemMux(svc *fakeRedeemService) *http.ServeMux {
	mux := http.NewServeMux()
	NewRedeemHandler(svc, NewValidator(), discardLogger()).RegisterRoutes(mux, requireUserStub, passThrough)
	return mux
}

func TestRedeemHandler_Success(t *testing.T) {
	expires := time.Date(2025, 4, 13, 9, 30, 0, 0, time.UTC)
	var gotCode string
	svc := &fakeRedeemService{
		RedeemFunc: func(ctx context.Context, u *domain.User, code string) (*domain.Redeemed, error) {
			gotCode = code
			return &domain.Redeemed{MembershipExpiresAt: expires, Plan: domain.PlanMember}, nil
		},
	}

	rec := serve(newRedeemMux(svc), testUser(), http.MethodPost, "/api/codes/redeem", `{"code":"abcd-efgh"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abcd-efgh", gotCode, "normalization belongs to the service")
	assert.JSONEq(t, `{"ok":true,"membership_expires_at":"2025-04-13T09:30:00Z","plan":"member"}`, rec.Body.String())
}

func TestRedeemHandler_Rejections(t *testing.T) {
	for _, reason := range []domain.RejectReason{domain.ReasonCodeNotFound, domain.ReasonCodeUsed, domain.ReasonCodeExpired} {
		t.Run(string(reason), func(t *testing.T) {
			svc := &fakeRedeemService{
				RedeemFunc: func(ctx context.Context, u *domain.User, code string) (*domain.Redeemed, error) {
					return nil, domain.Reject("codes.redeem", reason, nil)
				},
			}

			rec := serve(newRedeemMux(svc), testUser(), http.MethodPost, "/api/codes/redeem", `{"code":"X"}`)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"ok":false,"reason":"`+string(reason)+`"}`, rec.Body.String())
		})
	}
}

func TestRedeemHandler_RequiresUser(t *testing.T) {
	rec := serve(newRedeemMux(&fakeRedeemService{}), nil, http.MethodPost, "/api/codes/redeem", `{"code":"X"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

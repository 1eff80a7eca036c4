package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/nutrition-reminders/internal/lib/jwt"
	"github.com/magabrotheeeer/nutrition-reminders/internal/models"
	"github.com/magabrotheeeer/nutrition-reminders/internal/services/entitlement"
)

type MockEntitlements struct {
	mock.Mock
}

func (m *MockEntitlements) Get(ctx context.Context, userUID string) (entitlement.Entitlement, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(entitlement.Entitlement), args.Error(1)
}

type MockEndpoints struct {
	mock.Mock
}

func (m *MockEndpoints) UpsertEndpoint(ctx context.Context, ep models.DeliveryEndpoint) (string, error) {
	args := m.Called(ctx, ep)
	return args.String(0), args.Error(1)
}

type fakePinger struct {
	err error
}

func (p fakePinger) PingContext(_ context.Context) error {
	return p.err
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	router       chi.Router
	entitlements *MockEntitlements
	endpoints    *MockEndpoints
	token        string
}

func newTestEnv(t *testing.T, limiter *rate.Limiter, dbErr error) *testEnv {
	t.Helper()
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwt.Claims{
		UserUID: "11111111-1111-1111-1111-111111111111",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	env := &testEnv{
		router:       chi.NewRouter(),
		entitlements: new(MockEntitlements),
		endpoints:    new(MockEndpoints),
		token:        token,
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	RegisterRoutes(env.router, newNoopLogger(), Deps{
		Entitlements: env.entitlements,
		Endpoints:    env.endpoints,
		DB:           fakePinger{err: dbErr},
		Tokens:       jwt.NewVerifier("test-secret"),
		Limiter:      limiter,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})
	return env
}

func (e *testEnv) do(method, path string, body []byte, auth bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if auth {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	const uid = "11111111-1111-1111-1111-111111111111"

	t.Run("доступ без токена", func(t *testing.T) {
		env := newTestEnv(t, nil, nil)
		rec := env.do(http.MethodGet, "/api/v1/entitlement", nil, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		env.entitlements.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})

	t.Run("доступ с токеном", func(t *testing.T) {
		env := newTestEnv(t, nil, nil)
		env.entitlements.On("Get", mock.Anything, uid).Return(entitlement.Entitlement{
			Tier:          models.PlanFree,
			TrialDaysLeft: 5,
			State:         entitlement.StateTrial,
		}, nil).Once()

		rec := env.do(http.MethodGet, "/api/v1/entitlement", nil, true)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"state":"trial"`)
		env.entitlements.AssertExpectations(t)
	})

	t.Run("регистрация эндпоинта", func(t *testing.T) {
		env := newTestEnv(t, nil, nil)
		env.endpoints.On("UpsertEndpoint", mock.Anything, mock.MatchedBy(func(ep models.DeliveryEndpoint) bool {
			return ep.UserUID == uid && ep.Endpoint == "https://push.example.com/abc"
		})).Return("ep-1", nil).Once()

		body := []byte(`{"endpoint":"https://push.example.com/abc","keys":{"p256dh":"p","auth":"a"}}`)
		rec := env.do(http.MethodPost, "/api/v1/push/endpoints", body, true)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "ep-1")
		env.endpoints.AssertExpectations(t)
	})

	t.Run("превышен лимит запросов", func(t *testing.T) {
		env := newTestEnv(t, rate.NewLimiter(rate.Every(time.Hour), 1), nil)
		env.entitlements.On("Get", mock.Anything, uid).Return(entitlement.Entitlement{State: entitlement.StateTrial}, nil)

		assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/entitlement", nil, true).Code)
		assert.Equal(t, http.StatusTooManyRequests, env.do(http.MethodGet, "/api/v1/entitlement", nil, true).Code)
	})

	t.Run("health и метрики", func(t *testing.T) {
		env := newTestEnv(t, nil, nil)
		assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/health", nil, false).Code)
		assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/metrics", nil, false).Code)
	})

	t.Run("health без базы", func(t *testing.T) {
		env := newTestEnv(t, nil, errors.New("connection refused"))
		assert.Equal(t, http.StatusServiceUnavailable, env.do(http.MethodGet, "/health", nil, false).Code)
	})
}

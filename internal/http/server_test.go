// README: Route-level tests: auth guards, error mapping and handlers over mocked stores.
package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	httpapi "ridehail/internal/http"
	"ridehail/internal/logger"
	"ridehail/internal/modules/account"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/review"
	"ridehail/internal/modules/ride"
	"ridehail/internal/modules/session"
	"ridehail/internal/types"
)

type fixture struct {
	router   *gin.Engine
	mock     pgxmock.PgxPoolIface
	sessions *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	log := logger.Discard()
	prices := pricing.NewService(pricing.NewStore(mock))
	sessions := session.NewManager("test-secret", time.Hour, nil)
	srv := httpapi.NewServer(httpapi.ServerDeps{
		Accounts:       account.NewService(account.NewStore(mock), log),
		Pricing:        prices,
		Rides:          ride.NewService(ride.NewStore(mock), prices, nil, log),
		Reviews:        review.NewService(review.NewStore(mock), nil, log),
		Sessions:       sessions,
		Logger:         log,
		RequestTimeout: 5 * time.Second,
	})
	return &fixture{router: srv.Routes(), mock: mock, sessions: sessions}
}

func (f *fixture) token(t *testing.T, kind session.Kind, id string) string {
	t.Helper()
	tok, err := f.sessions.Issue(kind, types.ID(id))
	require.NoError(t, err)
	return "Bearer " + tok.Value
}

func (f *fixture) do(method, path string, body any, auth string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func tariffRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "base_price", "per_km", "per_minute"}).
		AddRow("economy", "Economy", int64(5000), int64(1000), int64(200))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery("SELECT COUNT").WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	w := f.do(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","tariffs":3}`, w.Body.String())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestHealthStoreDown(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("dial tcp: connection refused"))

	w := f.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "dial tcp")
}

func TestQuote(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery("SELECT .+ FROM tariffs WHERE id =").WithArgs("economy").WillReturnRows(tariffRows())

	w := f.do(http.MethodGet, "/api/tariffs/economy/quote?distance_km=5&duration_min=10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, map[string]any{"amount": "120.00", "currency": "UAH"}, body["total_cost"])
	assert.Equal(t, 5.0, body["distance_km"])
}

func TestQuoteUnknownTariff(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery("SELECT .+ FROM tariffs WHERE id =").WithArgs("rocket").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "base_price", "per_km", "per_minute"}))

	w := f.do(http.MethodGet, "/api/tariffs/rocket/quote", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"tariff not found"}`, w.Body.String())
}

func TestRouteGuards(t *testing.T) {
	f := newFixture(t)
	passenger := f.token(t, session.KindPassenger, "u1")
	driver := f.token(t, session.KindDriver, "d1")

	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"create ride anonymous", http.MethodPost, "/api/rides", "", http.StatusUnauthorized},
		{"create ride as driver", http.MethodPost, "/api/rides", driver, http.StatusForbidden},
		{"list rides as driver", http.MethodGet, "/api/rides", driver, http.StatusForbidden},
		{"review as driver", http.MethodPost, "/api/rides/r1/review", driver, http.StatusForbidden},
		{"accept anonymous", http.MethodPost, "/api/drivers/orders/r1/accept", "", http.StatusUnauthorized},
		{"accept as passenger", http.MethodPost, "/api/drivers/orders/r1/accept", passenger, http.StatusForbidden},
		{"board as passenger", http.MethodGet, "/api/drivers/orders", passenger, http.StatusForbidden},
		{"driver dashboard as passenger", http.MethodGet, "/api/drivers/me", passenger, http.StatusForbidden},
		{"profile anonymous", http.MethodGet, "/api/passengers/me", "", http.StatusUnauthorized},
		{"logout anonymous", http.MethodPost, "/api/logout", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/api/tariffs", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(tc.method, tc.path, map[string]any{}, tc.auth)
			assert.Equal(t, tc.want, w.Code, w.Body.String())
		})
	}
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRegisterPassengerValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/passengers/register", map[string]any{
		"full_name": "Olena",
		"email":     "not-an-email",
		"phone":     "+380501112233",
		"password":  "short",
	}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	msg := decode(t, w)["error"].(string)
	assert.Contains(t, msg, "email")
	assert.Contains(t, msg, "password")
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestInvalidJSON(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/api/passengers/login", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid json"}`, w.Body.String())
}

func TestLoginPassengerIssuesUsableToken(t *testing.T) {
	f := newFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	created := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "full_name", "email", "phone", "password_hash", "created_at"}

	f.mock.ExpectQuery("SELECT .+ FROM users WHERE email =").WithArgs("olena@example.com").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("u1", "Olena", "olena@example.com", "+380501112233", string(hash), created))

	w := f.do(http.MethodPost, "/api/passengers/login", map[string]any{
		"email":    "Olena@Example.com",
		"password": "correct horse",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.NotContains(t, w.Body.String(), "password")
	tok := body["session"].(map[string]any)["token"].(string)

	f.mock.ExpectQuery("SELECT .+ FROM users WHERE id =").WithArgs("u1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("u1", "Olena", "olena@example.com", "+380501112233", string(hash), created))
	w = f.do(http.MethodGet, "/api/passengers/me", nil, "Bearer "+tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Olena", decode(t, w)["full_name"])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	f.mock.ExpectQuery("SELECT .+ FROM users WHERE email =").WithArgs("olena@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "full_name", "email", "phone", "password_hash", "created_at"}).
			AddRow("u1", "Olena", "olena@example.com", "+380501112233", string(hash), time.Now()))

	w := f.do(http.MethodPost, "/api/passengers/login", map[string]any{
		"email":    "olena@example.com",
		"password": "battery staple",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"invalid email or password"}`, w.Body.String())
}

func TestAcceptLostRaceIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectExec("UPDATE rides").
		WithArgs("d1", "accepted", "r1", []string{"new"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	w := f.do(http.MethodPost, "/api/drivers/orders/r1/accept", nil, f.token(t, session.KindDriver, "d1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"ride not found or no longer available"}`, w.Body.String())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestAcceptSucceeds(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectExec("UPDATE rides").
		WithArgs("d1", "accepted", "r1", []string{"new"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	f.mock.ExpectExec("INSERT INTO ride_events").
		WithArgs("r1", "accepted", "driver", "d1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	w := f.do(http.MethodPost, "/api/drivers/orders/r1/accept", nil, f.token(t, session.KindDriver, "d1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ride_id":"r1","status":"accepted"}`, w.Body.String())
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateRideUnknownTariff(t *testing.T) {
	f := newFixture(t)
	f.mock.ExpectQuery("SELECT .+ FROM tariffs WHERE id =").WithArgs("rocket").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "base_price", "per_km", "per_minute"}))

	w := f.do(http.MethodPost, "/api/rides", map[string]any{
		"tariff_id":           "rocket",
		"pickup_address":      "Khreshchatyk 22",
		"destination_address": "Podil",
		"distance_km":         "5km",
		"duration_min":        10,
	}, f.token(t, session.KindPassenger, "u1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"tariff not found"}`, w.Body.String())
}

func TestReviewRatingOutOfRange(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/api/rides/r1/review", map[string]any{"rating": 6},
		f.token(t, session.KindPassenger, "u1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodGet, "/api/tariffs/economy/quote", nil, "Bearer nope")
	w := f.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ridehail_http_requests_total")
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/smallbiznis/bookpay/internal/clock"
	"github.com/smallbiznis/bookpay/internal/config"
	"github.com/smallbiznis/bookpay/internal/notify"
	orderrepo "github.com/smallbiznis/bookpay/internal/order/repository"
	orderservice "github.com/smallbiznis/bookpay/internal/order/service"
	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
	sessionrepo "github.com/smallbiznis/bookpay/internal/session/repository"
	sessionservice "github.com/smallbiznis/bookpay/internal/session/service"
	"github.com/smallbiznis/bookpay/internal/verify"
)

type fakeChannel struct {
	pushes  [][]byte
	actions []string
}

func (f *fakeChannel) Mode() string                    { return "longpoll" }
func (f *fakeChannel) Start(ctx context.Context) error { return nil }
func (f *fakeChannel) Stop(ctx context.Context) error  { return nil }

func (f *fakeChannel) HandlePush(ctx context.Context, payload []byte) error {
	if !json.Valid(payload) {
		return verify.ErrMalformedPush
	}
	f.pushes = append(f.pushes, payload)
	return nil
}

func (f *fakeChannel) ManageWebhook(ctx context.Context, action string) (map[string]any, error) {
	if action != verify.ActionSet && action != verify.ActionInfo && action != verify.ActionDelete {
		return nil, verify.ErrUnknownAction
	}
	f.actions = append(f.actions, action)
	return map[string]any{"ok": true}, nil
}

type testEnv struct {
	server   *Server
	engine   *gin.Engine
	sessions sessiondomain.Service
	channel  *fakeChannel
	clk      *clock.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE payment_sessions (
			session_id TEXT PRIMARY KEY,
			customer_name TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			customer_address TEXT NOT NULL,
			customer_city TEXT NOT NULL DEFAULT '',
			customer_state TEXT NOT NULL DEFAULT '',
			customer_pincode TEXT NOT NULL DEFAULT '',
			original_price BIGINT NOT NULL,
			final_price BIGINT NOT NULL,
			prepaid_amount BIGINT NOT NULL,
			balance_due BIGINT NOT NULL,
			coupon_applied TEXT NOT NULL DEFAULT '',
			payment_status TEXT NOT NULL,
			order_id TEXT,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			verified_at TIMESTAMP,
			rejected_at TIMESTAMP,
			verified_by TEXT NOT NULL DEFAULT '',
			rejected_by TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE orders (
			order_id TEXT PRIMARY KEY,
			payment_session_id TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			customer_address TEXT NOT NULL,
			customer_city TEXT NOT NULL DEFAULT '',
			customer_state TEXT NOT NULL DEFAULT '',
			customer_pincode TEXT NOT NULL DEFAULT '',
			original_price BIGINT NOT NULL,
			final_price BIGINT NOT NULL,
			prepaid_amount BIGINT NOT NULL,
			balance_due BIGINT NOT NULL,
			coupon_applied TEXT NOT NULL DEFAULT '',
			delivery_status TEXT NOT NULL,
			tracking_history TEXT NOT NULL DEFAULT '[]',
			estimated_start TIMESTAMP NOT NULL,
			estimated_end TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_orders_payment_session ON orders(payment_session_id)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}

	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	holder := config.NewStaticReconcileConfigHolder(config.DefaultReconcileConfig())

	sessSvc := sessionservice.New(sessionservice.Params{
		DB:        db,
		Log:       log,
		Clock:     clk,
		Reconcile: holder,
		Repo:      sessionrepo.Provide(),
	})

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	dispatcher := notify.NewDispatcher(notify.Params{
		Log:       log,
		Sender:    notify.NopSender{},
		Reconcile: holder,
	})

	orderSvc := orderservice.New(orderservice.Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Reconcile:   holder,
		Repo:        orderrepo.Provide(),
		SessionSvc:  sessSvc,
		SessionRepo: sessionrepo.Provide(),
		Dispatcher:  dispatcher,
	})

	cfg := config.Config{
		Port:         "8080",
		PublicAppURL: "https://books.example.com",
		Bot: config.BotConfig{
			WebhookSecret: "hook-secret",
		},
		Payment: config.PaymentConfig{
			PrepaidAmount: 600,
			PayeeVPA:      "bookpay@upi",
			PayeeName:     "BookPay",
			Currency:      "INR",
		},
	}

	ch := &fakeChannel{}
	engine := NewEngine(log, prometheus.NewRegistry())
	srv := NewServer(ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		Log:        log,
		SessionSvc: sessSvc,
		OrderSvc:   orderSvc,
		Channel:    ch,
		Dispatcher: dispatcher,
	})

	return &testEnv{server: srv, engine: engine, sessions: sessSvc, channel: ch, clk: clk}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func createSessionBody() map[string]any {
	return map[string]any{
		"customer": map[string]any{
			"name":    "Asha Rao",
			"phone":   "9876543210",
			"address": "12 MG Road",
			"city":    "Bengaluru",
			"state":   "KA",
			"pincode": "560001",
		},
		"pricing": map[string]any{
			"original_price": 1499,
			"final_price":    1199,
			"prepaid_amount": 600,
		},
	}
}

func TestCreatePaymentSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/payment-session", createSessionBody(), nil)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeJSON(t, w)
	sessionID, _ := body["session_id"].(string)
	assert.NotEmpty(t, sessionID)
	assert.Contains(t, body["qr_payload"], "upi://pay?")
	assert.Contains(t, body["qr_payload"], sessionID)
	assert.NotEmpty(t, body["expires_at"])
}

func TestCreatePaymentSessionValidation(t *testing.T) {
	env := newTestEnv(t)

	body := createSessionBody()
	body["customer"].(map[string]any)["name"] = ""
	w := env.do(t, http.MethodPost, "/payment-session", body, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeJSON(t, w)
	errObj := resp["error"].(map[string]any)
	assert.Equal(t, "validation_error", errObj["type"])
}

func TestGetPaymentSessionProjection(t *testing.T) {
	env := newTestEnv(t)

	created := decodeJSON(t, env.do(t, http.MethodPost, "/payment-session", createSessionBody(), nil))
	sessionID := created["session_id"].(string)

	w := env.do(t, http.MethodGet, "/payment-session?sessionId="+sessionID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeJSON(t, w)
	assert.Equal(t, "pending", body["payment_status"])
	assert.NotContains(t, w.Body.String(), "Asha Rao")
	assert.NotContains(t, w.Body.String(), "9876543210")

	w = env.do(t, http.MethodGet, "/payment-session?sessionId=ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetPaymentSessionLazyExpiry(t *testing.T) {
	env := newTestEnv(t)

	created := decodeJSON(t, env.do(t, http.MethodPost, "/payment-session", createSessionBody(), nil))
	sessionID := created["session_id"].(string)

	env.clk.Advance(31 * time.Minute)

	w := env.do(t, http.MethodGet, "/payment-session?sessionId="+sessionID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "expired", decodeJSON(t, w)["payment_status"])
}

func TestUpdatePaymentSession(t *testing.T) {
	env := newTestEnv(t)

	created := decodeJSON(t, env.do(t, http.MethodPost, "/payment-session", createSessionBody(), nil))
	sessionID := created["session_id"].(string)

	w := env.do(t, http.MethodPut, "/payment-session", map[string]any{
		"sessionId":     sessionID,
		"paymentStatus": "submitted",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "submitted", decodeJSON(t, w)["payment_status"])

	// expired is reserved for the expiry machinery.
	w = env.do(t, http.MethodPut, "/payment-session", map[string]any{
		"sessionId":     sessionID,
		"paymentStatus": "expired",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/payment-session", map[string]any{
		"sessionId":     "ghost",
		"paymentStatus": "submitted",
	}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMaterializeOrderFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created := decodeJSON(t, env.do(t, http.MethodPost, "/payment-session", createSessionBody(), nil))
	sessionID := created["session_id"].(string)

	// Not yet verified: 400 with the current status.
	w := env.do(t, http.MethodPost, "/order/materialize", map[string]any{"sessionId": sessionID}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	errObj := decodeJSON(t, w)["error"].(map[string]any)
	assert.Equal(t, "invalid_state", errObj["type"])
	assert.Equal(t, "pending", errObj["current_status"])

	_, err := env.sessions.Transition(ctx, sessionID, sessiondomain.StatusVerified, "telegram:ops")
	require.NoError(t, err)

	w = env.do(t, http.MethodPost, "/order/materialize", map[string]any{"sessionId": sessionID}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeJSON(t, w)
	orderID := first["order_id"].(string)
	assert.Contains(t, orderID, "ORD-")

	// Idempotent repeat.
	w = env.do(t, http.MethodPost, "/order/materialize", map[string]any{"sessionId": sessionID}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, orderID, decodeJSON(t, w)["order_id"])

	w = env.do(t, http.MethodGet, "/order/"+orderID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "processing", decodeJSON(t, w)["delivery_status"])
}

func TestAdminListAndDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created := decodeJSON(t, env.do(t, http.MethodPost, "/payment-session", createSessionBody(), nil))
	sessionID := created["session_id"].(string)

	w := env.do(t, http.MethodGet, "/admin/sessions", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sessionsList := decodeJSON(t, w)["sessions"].([]any)
	require.Len(t, sessionsList, 1)

	_, err := env.sessions.Transition(ctx, sessionID, sessiondomain.StatusVerified, "telegram:ops")
	require.NoError(t, err)

	w = env.do(t, http.MethodPost, "/order/materialize", map[string]any{"sessionId": sessionID}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	orderID := decodeJSON(t, w)["order_id"].(string)

	// Resolved session leaves the open list.
	w = env.do(t, http.MethodGet, "/admin/sessions", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeJSON(t, w)["sessions"])

	w = env.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/delivery", map[string]any{
		"status":  "shipped",
		"message": "Left the warehouse.",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "shipped", decodeJSON(t, w)["delivery_status"])

	w = env.do(t, http.MethodPatch, "/admin/orders/"+orderID+"/delivery", map[string]any{
		"status": "teleported",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerificationWebhookSecret(t *testing.T) {
	env := newTestEnv(t)

	update := map[string]any{"update_id": 1}

	w := env.do(t, http.MethodPost, "/verify/webhook", update, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/verify/webhook", update, map[string]string{
		"X-Telegram-Bot-Api-Secret-Token": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/verify/webhook", update, map[string]string{
		"X-Telegram-Bot-Api-Secret-Token": "hook-secret",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, env.channel.pushes, 1)
}

func TestManageVerificationWebhook(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/verify/webhook?action=set", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"set"}, env.channel.actions)

	w = env.do(t, http.MethodGet, "/verify/webhook?action=nonsense", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGatewayCallbackRedirects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created := decodeJSON(t, env.do(t, http.MethodPost, "/payment-session", createSessionBody(), nil))
	sessionID := created["session_id"].(string)

	w := env.do(t, http.MethodGet, "/payment-session/callback?sessionId="+sessionID+"&status=success", nil, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "https://books.example.com/payment-status")

	got, err := env.sessions.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, sessiondomain.StatusVerified, got.PaymentStatus)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/payway-gateway/internal/config"
	"github.com/akylbek/payment-system/payway-gateway/internal/models"
	"github.com/akylbek/payment-system/payway-gateway/internal/payway"
	"github.com/akylbek/payment-system/payway-gateway/internal/repository"
	"github.com/akylbek/payment-system/payway-gateway/internal/service"
)

type stubProvider struct{}

func (stubProvider) SubmitPurchase(_ context.Context, req payway.PurchaseRequest) *payway.PurchaseResult {
	return &payway.PurchaseResult{Success: true, StatusCode: 200, Data: &payway.PurchaseResponse{QRString: "qr-" + req.TranID}}
}

func (stubProvider) VerifyCallback(models.CallbackPayload) bool { return true }

func setup(t *testing.T, frontendURL string) (*gin.Engine, *repository.MemoryPaymentRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryPaymentRepository()
	cfg := &config.Config{GinMode: gin.TestMode, FrontendURL: frontendURL}
	svc := service.NewPaymentService(repo, stubProvider{}, nil, cfg.PayWay)
	return NewRouter(cfg, svc, nil), repo
}

func request(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	r, _ := setup(t, "")

	tests := []struct {
		method, target, body string
		want                 int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/payment/create", `{"amount":5}`, http.StatusCreated},
		{http.MethodGet, "/api/payment/status?tran_id=TXNNONE", "", http.StatusNotFound},
		{http.MethodPost, "/api/payway/return", `{"tran_id":"TXNNONE","status":"0"}`, http.StatusOK},
		{http.MethodPost, "/api/payway/cancel", `{"tran_id":"TXNNONE"}`, http.StatusOK},
		{http.MethodGet, "/payment/status", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			if w := request(r, tt.method, tt.target, tt.body); w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestPaymentLifecycleOverHTTP(t *testing.T) {
	r, repo := setup(t, "")

	w := request(r, http.MethodPost, "/api/payment/create", `{"amount":"9.99","currency":"KHR"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body)
	}

	var created struct {
		Data struct {
			TranID string `json:"tran_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.Data.TranID == "" {
		t.Fatalf("create body = %s", w.Body)
	}
	tranID := created.Data.TranID

	w = request(r, http.MethodPost, "/api/payway/return", `{"tran_id":"`+tranID+`","status":0}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"success":true`) {
		t.Fatalf("return = %d %s", w.Code, w.Body)
	}

	stored, err := repo.GetByTranID(context.Background(), tranID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.StatusPaid || !stored.Amount.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("stored = %+v", stored)
	}

	w = request(r, http.MethodGet, "/api/payment/status?tran_id="+tranID, "")
	if !strings.Contains(w.Body.String(), `"payment_status":"paid"`) {
		t.Errorf("status body = %s", w.Body)
	}
}

func TestCORS(t *testing.T) {
	r, _ := setup(t, "https://app.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/api/payment/create", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

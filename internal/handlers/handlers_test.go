package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/payway-gateway/internal/models"
	"github.com/akylbek/payment-system/payway-gateway/internal/service"
)

type mockService struct {
	createFunc   func(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResult, error)
	statusFunc   func(ctx context.Context, tranID string) (*models.Payment, error)
	callbackFunc func(ctx context.Context, p models.CallbackPayload) (*models.CallbackResult, error)
	cancelFunc   func(ctx context.Context, tranID string) (*models.CancelResult, error)
}

func (m *mockService) CreatePayment(ctx context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResult, error) {
	return m.createFunc(ctx, req)
}

func (m *mockService) GetStatus(ctx context.Context, tranID string) (*models.Payment, error) {
	return m.statusFunc(ctx, tranID)
}

func (m *mockService) HandleCallback(ctx context.Context, p models.CallbackPayload) (*models.CallbackResult, error) {
	return m.callbackFunc(ctx, p)
}

func (m *mockService) HandleCancel(ctx context.Context, tranID string) (*models.CancelResult, error) {
	return m.cancelFunc(ctx, tranID)
}

func newRouter(svc *mockService, exposeErrors bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ph := NewPaymentHandler(svc, exposeErrors)
	pw := NewPayWayHandler(svc)
	r.POST("/api/payment/create", ph.CreatePayment)
	r.GET("/api/payment/status", ph.GetStatus)
	r.POST("/api/payway/return", pw.Return)
	r.POST("/api/payway/cancel", pw.Cancel)
	return r
}

func do(r http.Handler, method, target, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func TestCreatePaymentHandler(t *testing.T) {
	qr := "000201"
	svc := &mockService{
		createFunc: func(_ context.Context, req models.CreatePaymentRequest) (*models.CreatePaymentResult, error) {
			if req.Amount == nil || req.Amount.StringFixed(2) != "5.00" || req.Currency != "USD" {
				t.Errorf("request = %+v", req)
			}
			return &models.CreatePaymentResult{
				TranID:        "TXNABC",
				Amount:        *req.Amount,
				Currency:      models.CurrencyUSD,
				Status:        models.StatusPending,
				QRString:      &qr,
				PaymentOption: models.OptionKHQRDeeplink,
			}, nil
		},
	}

	w, body := do(newRouter(svc, false), http.MethodPost, "/api/payment/create", "application/json",
		`{"amount":5,"currency":"USD","firstname":"Sok"}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	data, _ := body["data"].(map[string]any)
	if data["tran_id"] != "TXNABC" || data["amount"] != "5.00" || data["payment_status"] != "pending" {
		t.Errorf("data = %v", data)
	}
	if data["qr_string"] != "000201" || data["abapay_deeplink"] != nil {
		t.Errorf("checkout fields = %v / %v", data["qr_string"], data["abapay_deeplink"])
	}
}

func TestCreatePaymentHandlerErrors(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		err          error
		exposeErrors bool
		wantStatus   int
		wantErrors   bool
		wantDetail   bool
	}{
		{"malformed json", `{"amount":`, nil, false, http.StatusUnprocessableEntity, true, false},
		{"bad amount", `{"amount":"abc"}`, nil, false, http.StatusUnprocessableEntity, true, false},
		{"validation", `{"amount":0}`, &service.ValidationError{Fields: map[string]string{"amount": "too small"}}, false, http.StatusUnprocessableEntity, true, false},
		{"provider debug", `{"amount":5}`, &service.ProviderError{StatusCode: 400, Detail: "Wrong hash"}, true, http.StatusInternalServerError, false, true},
		{"provider release", `{"amount":5}`, &service.ProviderError{StatusCode: 400, Detail: "Wrong hash"}, false, http.StatusInternalServerError, false, false},
		{"storage", `{"amount":5}`, errors.New("db down"), true, http.StatusInternalServerError, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{
				createFunc: func(context.Context, models.CreatePaymentRequest) (*models.CreatePaymentResult, error) {
					return nil, tt.err
				},
			}

			w, body := do(newRouter(svc, tt.exposeErrors), http.MethodPost, "/api/payment/create", "application/json", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body)
			}
			if body["success"] != false {
				t.Errorf("success = %v", body["success"])
			}
			if _, ok := body["errors"]; ok != tt.wantErrors {
				t.Errorf("errors present = %v, want %v", ok, tt.wantErrors)
			}
			if _, ok := body["error"]; ok != tt.wantDetail {
				t.Errorf("error detail present = %v, want %v", ok, tt.wantDetail)
			}
		})
	}
}

func TestGetStatusHandler(t *testing.T) {
	paidAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &mockService{
		statusFunc: func(_ context.Context, tranID string) (*models.Payment, error) {
			switch tranID {
			case "TXNPAID":
				return &models.Payment{
					TranID:   tranID,
					Status:   models.StatusPaid,
					Amount:   decimal.RequireFromString("12.5"),
					Currency: models.CurrencyKHR,
					PaidAt:   &paidAt,
				}, nil
			case "TXNBROKEN":
				return nil, errors.New("db down")
			}
			return nil, service.ErrNotFound
		},
	}
	r := newRouter(svc, false)

	tests := []struct {
		target     string
		wantStatus int
	}{
		{"/api/payment/status?tran_id=TXNPAID", http.StatusOK},
		{"/api/payment/status?tran_id=TXNMISSING", http.StatusNotFound},
		{"/api/payment/status", http.StatusUnprocessableEntity},
		{"/api/payment/status?tran_id=TXNBROKEN", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w, body := do(r, http.MethodGet, tt.target, "", "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			data, _ := body["data"].(map[string]any)
			if data["payment_status"] != "paid" || data["amount"] != "12.50" || data["currency"] != "KHR" {
				t.Errorf("data = %v", data)
			}
			if data["paid_at"] != "2025-01-02T03:04:05Z" {
				t.Errorf("paid_at = %v", data["paid_at"])
			}
		})
	}
}

func TestReturnHandlerBodies(t *testing.T) {
	form := url.Values{"tran_id": {"TXNFORM"}, "status": {"0"}, "hash": {"abc"}}.Encode()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantTranID  string
		wantStatus  string
	}{
		{"json numeric status", "application/json", `{"tran_id":"TXNJSON","status":0,"amount":5.5}`, "TXNJSON", "0"},
		{"json string status", "application/json", `{"tran_id":"TXNJSON","status":"3"}`, "TXNJSON", "3"},
		{"form", "application/x-www-form-urlencoded", form, "TXNFORM", "0"},
		{"empty", "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.CallbackPayload
			svc := &mockService{
				callbackFunc: func(_ context.Context, p models.CallbackPayload) (*models.CallbackResult, error) {
					got = p
					return &models.CallbackResult{Outcome: models.CallbackNotFound, Message: "Payment not found"}, nil
				},
			}

			w, _ := do(newRouter(svc, false), http.MethodPost, "/api/payway/return", tt.contentType, tt.body)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if got.TranID != tt.wantTranID || got.Status != tt.wantStatus {
				t.Errorf("payload = %+v", got)
			}
			if !json.Valid(got.Raw) {
				t.Errorf("Raw is not JSON: %s", got.Raw)
			}
		})
	}
}

func TestReturnHandlerOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		result      *models.CallbackResult
		err         error
		wantStatus  int
		wantSuccess bool
	}{
		{"paid", &models.CallbackResult{Outcome: models.CallbackPaid, Success: true, Message: "Payment successful"}, nil, http.StatusOK, true},
		{"failed", &models.CallbackResult{Outcome: models.CallbackFailed, Message: "Payment failed"}, nil, http.StatusOK, false},
		{"bad signature", &models.CallbackResult{Outcome: models.CallbackInvalidSignature, Message: "Invalid signature"}, nil, http.StatusOK, false},
		{"internal", nil, errors.New("db down"), http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{
				callbackFunc: func(context.Context, models.CallbackPayload) (*models.CallbackResult, error) {
					return tt.result, tt.err
				},
			}

			w, body := do(newRouter(svc, false), http.MethodPost, "/api/payway/return", "application/json", `{"tran_id":"TXN1","status":"0"}`)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body["success"] != tt.wantSuccess {
				t.Errorf("success = %v, want %v", body["success"], tt.wantSuccess)
			}
		})
	}
}

func TestCancelHandler(t *testing.T) {
	var got string
	svc := &mockService{
		cancelFunc: func(_ context.Context, tranID string) (*models.CancelResult, error) {
			got = tranID
			return &models.CancelResult{TranID: tranID}, nil
		},
	}

	w, body := do(newRouter(svc, false), http.MethodPost, "/api/payway/cancel?tran_id=TXNQUERY", "", "")

	if w.Code != http.StatusOK || body["message"] != "Payment cancelled" {
		t.Errorf("response = %d %v", w.Code, body)
	}
	if got != "TXNQUERY" {
		t.Errorf("tranID = %q", got)
	}
}

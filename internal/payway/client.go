package payway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payway-gateway/internal/config"
	"github.com/akylbek/payment-system/payway-gateway/internal/models"
	"github.com/akylbek/payment-system/payway-gateway/internal/telemetry"
)

const (
	reqTimeLayout   = "20060102150405"
	purchaseType    = "purchase"
	defaultShipping = "0.00"
	defaultLifetime = 10
)

// PurchaseRequest is one purchase call. Zero-valued optional fields are defaulted by SubmitPurchase.
type PurchaseRequest struct {
	TranID         string
	Amount         decimal.Decimal
	Currency       models.Currency
	PaymentOption  models.PaymentOption
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	Items          []models.Item
	Lifetime       int
	ReturnDeeplink string
	CustomFields   string
	ReturnParams   string
}

func (r PurchaseRequest) withDefaults(returnDeeplink string) PurchaseRequest {
	if r.Currency == "" {
		r.Currency = models.CurrencyUSD
	}
	if r.PaymentOption == "" {
		r.PaymentOption = models.OptionKHQRDeeplink
	}
	if r.FirstName == "" {
		r.FirstName = "Customer"
	}
	if r.LastName == "" {
		r.LastName = "User"
	}
	if r.Email == "" {
		r.Email = "customer@example.com"
	}
	if r.Phone == "" {
		r.Phone = "012345678"
	}
	if len(r.Items) == 0 {
		price, _ := r.Amount.Round(2).Float64()
		r.Items = []models.Item{{Name: "Payment", Quantity: 1, Price: price}}
	}
	if r.Lifetime <= 0 {
		r.Lifetime = defaultLifetime
	}
	if r.ReturnDeeplink == "" {
		r.ReturnDeeplink = returnDeeplink
	}
	return r
}

// PurchaseResponse holds the fields of a PayWay purchase response the gateway uses.
type PurchaseResponse struct {
	QRString       string         `json:"qr_string"`
	ABAPayDeeplink string         `json:"abapay_deeplink"`
	CheckoutQRURL  string         `json:"checkout_qr_url"`
	Raw            map[string]any `json:"-"`
}

// PurchaseResult is the outcome of SubmitPurchase. Failures are reported here, not as errors.
type PurchaseResult struct {
	Success    bool
	StatusCode int
	Data       *PurchaseResponse
	Error      string
}

type field struct {
	key   string
	value string
}

type Client struct {
	cfg    config.PayWay
	signer *Signer
	http   *resty.Client
	now    func() time.Time
}

type Option func(*Client)

// WithClock overrides the request time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithRestyClient replaces the underlying HTTP client. The configured timeout is still applied.
func WithRestyClient(rc *resty.Client) Option {
	return func(c *Client) { c.http = rc }
}

func NewClient(cfg config.PayWay, opts ...Option) *Client {
	c := &Client{
		cfg:    cfg,
		signer: NewSigner(cfg.APIKey),
		http:   resty.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.http.SetTimeout(timeout)

	return c
}

func (c *Client) Signer() *Signer {
	return c.signer
}

// purchaseFields lists the form fields in PayWay's hash order.
func (c *Client) purchaseFields(req PurchaseRequest, reqTime string) ([]field, error) {
	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}

	return []field{
		{"req_time", reqTime},
		{"merchant_id", c.cfg.MerchantID},
		{"tran_id", req.TranID},
		{"amount", req.Amount.StringFixed(2)},
		{"items", base64.StdEncoding.EncodeToString(itemsJSON)},
		{"shipping", defaultShipping},
		{"firstname", req.FirstName},
		{"lastname", req.LastName},
		{"email", req.Email},
		{"phone", req.Phone},
		{"type", purchaseType},
		{"payment_option", string(req.PaymentOption)},
		{"return_url", c.cfg.ReturnURL},
		{"cancel_url", c.cfg.CancelURL},
		{"continue_success_url", c.cfg.ContinueSuccessURL},
		{"return_deeplink", req.ReturnDeeplink},
		{"currency", string(req.Currency)},
		{"custom_fields", req.CustomFields},
		{"return_params", req.ReturnParams},
		{"payout", ""},
		{"lifetime", strconv.Itoa(req.Lifetime)},
		{"additional_params", ""},
		{"google_pay_token", ""},
		{"skip_success_page", ""},
	}, nil
}

// BuildForm returns the signed form body for req.
func (c *Client) BuildForm(req PurchaseRequest) (map[string]string, error) {
	req = req.withDefaults(c.cfg.ReturnDeeplink)
	reqTime := c.now().UTC().Format(reqTimeLayout)

	fields, err := c.purchaseFields(req, reqTime)
	if err != nil {
		return nil, err
	}

	values := make([]string, len(fields))
	form := make(map[string]string, len(fields)+1)
	for i, f := range fields {
		values[i] = f.value
		form[f.key] = f.value
	}
	form["hash"] = c.signer.Sign(values...)

	return form, nil
}

// SubmitPurchase sends a signed purchase to PayWay and normalises the response.
func (c *Client) SubmitPurchase(ctx context.Context, req PurchaseRequest) *PurchaseResult {
	ctx, span := telemetry.Tracer("payway-gateway/payway").Start(ctx, "payway.purchase")
	defer span.End()
	span.SetAttributes(attribute.String("payway.tran_id", req.TranID))

	form, err := c.BuildForm(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return &PurchaseResult{Success: false, Error: err.Error()}
	}

	telemetry.Logger.Info("PayWay purchase request",
		zap.String("tran_id", req.TranID),
		zap.String("amount", form["amount"]),
		zap.String("currency", form["currency"]),
		zap.String("payment_option", form["payment_option"]),
		zap.String("req_time", form["req_time"]),
		zap.Any("fields", redact(form)),
	)

	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetFormData(form).
		Post(c.cfg.PurchaseEndpoint)
	if err != nil {
		telemetry.ProviderRequestDuration.WithLabelValues("transport_error").Observe(time.Since(start).Seconds())
		telemetry.Logger.Error("PayWay purchase error",
			zap.String("tran_id", req.TranID),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		return &PurchaseResult{Success: false, Error: err.Error()}
	}

	result := &PurchaseResult{StatusCode: resp.StatusCode()}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))

	var raw map[string]any
	parseErr := json.Unmarshal(resp.Body(), &raw)
	if parseErr == nil {
		data := &PurchaseResponse{Raw: raw}
		_ = json.Unmarshal(resp.Body(), data)
		result.Data = data
	}

	switch {
	case !resp.IsSuccess():
		result.Error = fmt.Sprintf("provider returned status %d", resp.StatusCode())
		if detail := errorDetail(raw); detail != "" {
			result.Error += ": " + detail
		}
	case parseErr != nil:
		result.Error = fmt.Sprintf("invalid provider response: %v", parseErr)
	default:
		result.Success = true
	}

	outcome := "success"
	if !result.Success {
		outcome = "failure"
		span.SetStatus(codes.Error, result.Error)
	}
	telemetry.ProviderRequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	telemetry.Logger.Info("PayWay purchase response",
		zap.String("tran_id", req.TranID),
		zap.Int("status_code", resp.StatusCode()),
		zap.Bool("success", result.Success),
		zap.Any("response", raw),
	)

	return result
}

// VerifyCallback checks a pushback hash over tran_id, req_time, amount and status.
func (c *Client) VerifyCallback(p models.CallbackPayload) bool {
	if p.Hash == "" {
		return false
	}
	return c.signer.Verify(p.Hash, p.TranID, p.ReqTime, p.Amount, p.Status)
}

func redact(form map[string]string) map[string]string {
	out := make(map[string]string, len(form))
	for k, v := range form {
		out[k] = v
	}
	if _, ok := out["hash"]; ok {
		out["hash"] = "[REDACTED]"
	}
	return out
}

func errorDetail(raw map[string]any) string {
	if raw == nil {
		return ""
	}
	if status, ok := raw["status"].(map[string]any); ok {
		if msg, ok := status["message"].(string); ok && msg != "" {
			return msg
		}
	}
	for _, key := range []string{"description", "message"} {
		if msg, ok := raw[key].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}

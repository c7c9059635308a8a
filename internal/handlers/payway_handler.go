package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payway-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/payway-gateway/internal/models"
	"github.com/akylbek/payment-system/payway-gateway/internal/telemetry"
)

// PayWayHandler serves the endpoints PayWay calls back into.
type PayWayHandler struct {
	service interfaces.PaymentService
}

func NewPayWayHandler(svc interfaces.PaymentService) *PayWayHandler {
	return &PayWayHandler{service: svc}
}

// Return handles the PayWay pushback. Every business outcome answers 200 so the provider does not retry
// rejected or unknown transactions; 500 means the gateway itself failed.
func (h *PayWayHandler) Return(c *gin.Context) {
	fields := readFields(c)
	raw, _ := json.Marshal(fields)

	payload := models.CallbackPayload{
		TranID:  fields["tran_id"],
		Status:  fields["status"],
		Amount:  fields["amount"],
		ReqTime: fields["req_time"],
		Hash:    fields["hash"],
		Raw:     raw,
	}

	result, err := h.service.HandleCallback(c.Request.Context(), payload)
	if err != nil {
		telemetry.Logger.Error("Failed to process PayWay callback",
			zap.String("tran_id", payload.TranID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": result.Success,
		"message": result.Message,
		"tran_id": payload.TranID,
	})
}

func (h *PayWayHandler) Cancel(c *gin.Context) {
	fields := readFields(c)
	tranID := fields["tran_id"]

	if _, err := h.service.HandleCancel(c.Request.Context(), tranID); err != nil {
		telemetry.Logger.Error("Failed to process PayWay cancel",
			zap.String("tran_id", tranID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment cancelled"})
}

// readFields flattens query parameters and a JSON or form body into strings. Body values win.
func readFields(c *gin.Context) map[string]string {
	fields := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	if c.Request.Body == nil {
		return fields
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		return fields
	}

	if strings.HasPrefix(c.ContentType(), "application/json") || json.Valid(body) {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var decoded map[string]any
		if err := dec.Decode(&decoded); err != nil {
			telemetry.Logger.Warn("Unreadable PayWay JSON body", zap.Error(err))
			return fields
		}
		for k, v := range decoded {
			fields[k] = stringify(v)
		}
		return fields
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if err := c.Request.ParseForm(); err != nil {
		telemetry.Logger.Warn("Unreadable PayWay form body", zap.Error(err))
		return fields
	}
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

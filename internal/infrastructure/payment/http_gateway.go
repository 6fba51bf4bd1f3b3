package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/domain/payment"
	"github.com/tuitionhub/backend/internal/infrastructure/config"
)

const (
	chargePath = "/v1/charges"

	// HeaderMerchantID carries the merchant identifier on outgoing requests
	HeaderMerchantID = "X-Merchant-ID"
	// HeaderSignature carries the hex HMAC-SHA256 of the request or callback body
	HeaderSignature = "X-Signature"

	maxResponseBytes = 1 << 20
)

// Gateway adapter errors
var (
	ErrMissingBaseURL    = errors.New("gateway: base URL is required")
	ErrMissingSecret     = errors.New("gateway: secret is required")
	ErrInvalidSignature  = errors.New("gateway: invalid callback signature")
	ErrMalformedCallback = errors.New("gateway: malformed callback body")
	ErrRequestRejected   = errors.New("gateway: request rejected")
)

var _ payment.Gateway = (*HTTPGateway)(nil)

// chargeBody is the JSON body sent to the charge endpoint
type chargeBody struct {
	MerchantID    string          `json:"merchant_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	StudentID     uuid.UUID       `json:"student_id"`
	ClassID       uuid.UUID       `json:"class_id"`
	Description   string          `json:"description,omitempty"`
}

type chargeReply struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type errorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// callbackBody is the subset of the webhook payload the settlement flow consumes
type callbackBody struct {
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes"`
	Reference     string          `json:"reference"`
}

// HTTPGateway talks to the card gateway over signed JSON requests
type HTTPGateway struct {
	baseURL    string
	merchantID string
	secret     []byte
	sandbox    bool
	httpClient *http.Client
	logger     *zap.Logger
}

// GatewayOption configures an HTTPGateway
type GatewayOption func(*HTTPGateway)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *HTTPGateway) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithLogger sets the adapter logger
func WithLogger(logger *zap.Logger) GatewayOption {
	return func(g *HTTPGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewHTTPGateway creates a gateway adapter from configuration. In sandbox mode
// the base URL may be empty, in which case charges are acknowledged locally
// as PENDING and outcomes arrive only through signed callbacks.
func NewHTTPGateway(cfg config.GatewayConfig, opts ...GatewayOption) (*HTTPGateway, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.BaseURL == "" && !cfg.Sandbox {
		return nil, ErrMissingBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	g := &HTTPGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		merchantID: cfg.MerchantID,
		secret:     []byte(cfg.Secret),
		sandbox:    cfg.Sandbox,
		// The caller's context bounds each attempt; this is only a backstop.
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// InitiateCharge submits a charge request
func (g *HTTPGateway) InitiateCharge(ctx context.Context, req *payment.ChargeRequest) (*payment.ChargeResponse, error) {
	if req == nil || req.TransactionID == "" {
		return nil, payment.ErrTransactionIDRequired
	}

	if g.sandbox && g.baseURL == "" {
		g.logger.Debug("Sandbox charge acknowledged locally",
			zap.String("transaction_id", req.TransactionID))
		return &payment.ChargeResponse{
			Reference: "SANDBOX-" + req.TransactionID,
			Status:    payment.GatewayStatusPending,
		}, nil
	}

	body, err := json.Marshal(chargeBody{
		MerchantID:    g.merchantID,
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		StudentID:     req.StudentID,
		ClassID:       req.ClassID,
		Description:   req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to marshal charge: %w", err)
	}

	respBody, err := g.doRequest(ctx, http.MethodPost, chargePath, body)
	if err != nil {
		return nil, err
	}

	var reply chargeReply
	if err := json.Unmarshal(respBody, &reply); err != nil {
		return nil, fmt.Errorf("%w: failed to parse charge response: %v", payment.ErrGatewayUnavailable, err)
	}
	status := payment.GatewayStatus(strings.ToUpper(reply.Status))
	if status == "" {
		status = payment.GatewayStatusPending
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown charge status %q", payment.ErrGatewayUnavailable, reply.Status)
	}
	return &payment.ChargeResponse{Reference: reply.Reference, Status: status}, nil
}

// ParseCallback verifies and decodes a webhook body
func (g *HTTPGateway) ParseCallback(_ context.Context, body []byte, signature string) (*payment.GatewayResult, error) {
	if !g.verify(body, signature) {
		return nil, ErrInvalidSignature
	}

	var cb callbackBody
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	if cb.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction_id", ErrMalformedCallback)
	}
	status := payment.GatewayStatus(strings.ToUpper(cb.Status))
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrMalformedCallback, cb.Status)
	}

	method := payment.Method(strings.ToLower(cb.PaymentMethod))
	if method == "" {
		method = payment.MethodOnline
	}
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrMalformedCallback, cb.PaymentMethod)
	}

	return &payment.GatewayResult{
		TransactionID: cb.TransactionID,
		Status:        status,
		Amount:        cb.Amount,
		PaymentMethod: method,
		RawNotes:      cb.Notes,
		Reference:     cb.Reference,
	}, nil
}

// Sign returns the hex HMAC-SHA256 of body under the gateway secret
func (g *HTTPGateway) Sign(body []byte) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (g *HTTPGateway) verify(body []byte, signature string) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(g.Sign(body))
	return hmac.Equal(got, want)
}

func (g *HTTPGateway) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderMerchantID, g.merchantID)
	req.Header.Set(HeaderSignature, g.Sign(body))

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", payment.ErrGatewayUnavailable, err)
	}

	g.logger.Debug("Gateway request completed",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP %d", payment.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var errResp errorReply
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Code != "" {
			return nil, fmt.Errorf("%w: %s - %s", ErrRequestRejected, errResp.Code, errResp.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d", ErrRequestRejected, resp.StatusCode)
	}
	return respBody, nil
}

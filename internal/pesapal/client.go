// internal/pesapal/client.go
package pesapal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"pesapal-proxy/internal/apperrors"
	"pesapal-proxy/internal/metrics"
	"pesapal-proxy/internal/models"
)

const maxResponseBytes = 1 << 20

// Operation names used in logs and metrics
const (
	OpRequestToken       = "request_token"
	OpSubmitOrder        = "submit_order"
	OpTransactionStatus  = "transaction_status"
	OpRegisterIPN        = "register_ipn"
	defaultIPNNotifyType = "POST"
)

// Credentials is the consumer key pair issued by the gateway
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
}

// Client talks to the Pesapal v3 REST API. It holds no per-order state and is safe for concurrent use.
type Client struct {
	endpoints Endpoints
	creds     Credentials
	http      *http.Client
	logger    *zap.Logger
}

// NewClient creates a client whose every call is bounded by timeout
func NewClient(endpoints Endpoints, creds Credentials, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		endpoints: endpoints,
		creds:     creds,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type tokenRequest struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

type registerIPNRequest struct {
	URL                 string `json:"url"`
	IPNNotificationType string `json:"ipn_notification_type"`
}

type registerIPNResponse struct {
	IPNID string               `json:"ipn_id"`
	URL   string               `json:"url"`
	Error *models.GatewayError `json:"error"`
}

// RequestToken exchanges the credential pair for a bearer token. It is never retried.
func (c *Client) RequestToken(ctx context.Context) (string, error) {
	body := tokenRequest{ConsumerKey: c.creds.ConsumerKey, ConsumerSecret: c.creds.ConsumerSecret}

	status, raw, err := c.do(ctx, OpRequestToken, http.MethodPost, c.endpoints.Auth, "", body)
	if err != nil {
		return "", &apperrors.Error{Kind: apperrors.KindAuth, Message: "token request failed", Cause: err}
	}
	if !isSuccess(status) {
		return "", &apperrors.Error{Kind: apperrors.KindAuth, Message: "token request rejected", StatusCode: status, Raw: raw}
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", &apperrors.Error{Kind: apperrors.KindAuth, Message: "token response is not JSON", StatusCode: status, Raw: raw, Cause: err}
	}
	if gwErr := gatewayError(fields); !gwErr.Empty() {
		return "", &apperrors.Error{Kind: apperrors.KindAuth, Message: describe(gwErr, "token request rejected"), StatusCode: status, Raw: raw}
	}

	token, ok := ExtractToken(fields)
	if !ok {
		return "", &apperrors.Error{Kind: apperrors.KindAuth, Message: "token missing from response", StatusCode: status, Raw: raw}
	}
	return token, nil
}

// SubmitOrder posts the order. Each call may create a new gateway transaction.
func (c *Client) SubmitOrder(ctx context.Context, token string, payload *models.OrderPayload) (*models.OrderResponse, error) {
	status, raw, err := c.do(ctx, OpSubmitOrder, http.MethodPost, c.endpoints.SubmitOrder, token, payload)
	if err != nil {
		return nil, &apperrors.Error{Kind: apperrors.KindOrder, Message: "order submission failed", Cause: err}
	}

	var resp models.OrderResponse
	decodeErr := json.Unmarshal(raw, &resp)
	resp.Raw = raw

	if !isSuccess(status) {
		return nil, orderRejection(status, raw, resp.Error, "order rejected by gateway")
	}
	if decodeErr != nil {
		return nil, &apperrors.Error{Kind: apperrors.KindOrder, Message: "order response is not JSON", StatusCode: status, Raw: raw, Cause: decodeErr}
	}
	if !resp.Error.Empty() {
		return nil, orderRejection(status, raw, resp.Error, "order rejected by gateway")
	}
	if resp.OrderTrackingID == "" {
		return nil, &apperrors.Error{Kind: apperrors.KindOrder, Message: "no order_tracking_id returned", StatusCode: status, Raw: raw}
	}
	return &resp, nil
}

// GetTransactionStatus polls the gateway for the status of a tracking id
func (c *Client) GetTransactionStatus(ctx context.Context, token, trackingID string) (*models.TransactionStatus, error) {
	endpoint := c.endpoints.TransactionStatus + "?" + url.Values{"orderTrackingId": {trackingID}}.Encode()

	status, raw, err := c.do(ctx, OpTransactionStatus, http.MethodGet, endpoint, token, nil)
	if err != nil {
		return nil, &apperrors.Error{Kind: apperrors.KindStatus, Message: "status query failed", Cause: err}
	}
	if !isSuccess(status) {
		return nil, &apperrors.Error{Kind: apperrors.KindStatus, Message: "status query rejected", StatusCode: status, Raw: raw}
	}

	var resp models.TransactionStatus
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &apperrors.Error{Kind: apperrors.KindStatus, Message: "status response is not JSON", StatusCode: status, Raw: raw, Cause: err}
	}
	if !resp.Error.Empty() {
		return nil, &apperrors.Error{Kind: apperrors.KindStatus, Message: describe(resp.Error, "status query rejected"), StatusCode: status, Raw: raw}
	}
	resp.Raw = raw
	return &resp, nil
}

// RegisterIPN registers url as a notification endpoint and returns its notification id
func (c *Client) RegisterIPN(ctx context.Context, token, ipnURL string) (string, error) {
	body := registerIPNRequest{URL: ipnURL, IPNNotificationType: defaultIPNNotifyType}

	status, raw, err := c.do(ctx, OpRegisterIPN, http.MethodPost, c.endpoints.RegisterIPN, token, body)
	if err != nil {
		return "", &apperrors.Error{Kind: apperrors.KindIPN, Message: "IPN registration failed", Cause: err}
	}
	if !isSuccess(status) {
		return "", &apperrors.Error{Kind: apperrors.KindIPN, Message: "IPN registration rejected", StatusCode: status, Raw: raw}
	}

	var resp registerIPNResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", &apperrors.Error{Kind: apperrors.KindIPN, Message: "IPN registration response is not JSON", StatusCode: status, Raw: raw, Cause: err}
	}
	if !resp.Error.Empty() || resp.IPNID == "" {
		return "", &apperrors.Error{Kind: apperrors.KindIPN, Message: describe(resp.Error, "no ipn_id returned"), StatusCode: status, Raw: raw}
	}
	return resp.IPNID, nil
}

// do performs one JSON round trip. A returned error means no HTTP response was
// received; it wraps apperrors.ErrTimeout or apperrors.ErrNetwork.
func (c *Client) do(ctx context.Context, op, method, endpoint, token string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		transport := classifyTransport(op, err)
		outcome := metrics.OutcomeNetwork
		if transport.Kind == apperrors.KindTimeout {
			outcome = metrics.OutcomeTimeout
		}
		metrics.ObserveGatewayCall(op, outcome, time.Since(start))
		c.logger.Warn("gateway call failed",
			zap.String("operation", op),
			zap.String("kind", string(transport.Kind)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return 0, nil, transport
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.ObserveGatewayCall(op, metrics.OutcomeNetwork, time.Since(start))
		return 0, nil, classifyTransport(op, err)
	}

	outcome := metrics.OutcomeSuccess
	if !isSuccess(resp.StatusCode) {
		outcome = metrics.OutcomeRejected
	}
	metrics.ObserveGatewayCall(op, outcome, time.Since(start))
	c.logger.Debug("gateway call completed",
		zap.String("operation", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	return resp.StatusCode, raw, nil
}

func classifyTransport(op string, err error) *apperrors.Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &apperrors.Error{Kind: apperrors.KindTimeout, Message: op + " timed out", Cause: err}
	}
	return &apperrors.Error{Kind: apperrors.KindNetwork, Message: op + " got no response", Cause: err}
}

func orderRejection(status int, raw []byte, gwErr *models.GatewayError, fallback string) *apperrors.Error {
	e := &apperrors.Error{Kind: apperrors.KindOrder, Message: describe(gwErr, fallback), StatusCode: status, Raw: raw}
	if mentionsNotificationID(gwErr, raw) {
		e.Cause = apperrors.ErrInvalidNotificationID
	}
	return e
}

func mentionsNotificationID(gwErr *models.GatewayError, raw []byte) bool {
	text := strings.ToLower(string(raw))
	if !gwErr.Empty() {
		text = strings.ToLower(gwErr.Code + " " + gwErr.Message)
	}
	return strings.Contains(text, "notification_id") ||
		strings.Contains(text, "notification id") ||
		strings.Contains(text, "ipn")
}

// gatewayError pulls the embedded error object out of a decoded response
func gatewayError(fields map[string]any) *models.GatewayError {
	obj, ok := fields["error"].(map[string]any)
	if !ok {
		if s, ok := fields["error"].(string); ok && s != "" {
			return &models.GatewayError{Message: s}
		}
		return nil
	}
	str := func(k string) string {
		s, _ := obj[k].(string)
		return s
	}
	return &models.GatewayError{ErrorType: str("error_type"), Code: str("code"), Message: str("message")}
}

func describe(gwErr *models.GatewayError, fallback string) string {
	if gwErr.Empty() {
		return fallback
	}
	if gwErr.Message != "" {
		return gwErr.Message
	}
	return gwErr.Code
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

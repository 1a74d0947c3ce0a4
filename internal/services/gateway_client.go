package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	authScheme = "IYZWSv2"

	pathBinCheck       = "/payment/bin/check"
	pathAuth           = "/payment/auth"
	path3DSInitialize  = "/payment/3dsecure/initialize"
	path3DSAuth        = "/payment/3dsecure/auth"
	pathRefund         = "/payment/refund"
	pathCancel         = "/payment/cancel"
	nonceRandomDigits  = 8
	maxGatewayBodySize = 4 << 20
)

// PaymentGateway is the set of gateway operations the checkout and
// after-sales flows depend on.
type PaymentGateway interface {
	CheckBin(ctx context.Context, req BinCheckRequest) (*BinCheckResponse, error)
	AuthorizeNon3DS(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	Initialize3DS(ctx context.Context, req PaymentRequest) (*ThreeDSInitResponse, error)
	Confirm3DS(ctx context.Context, req ThreeDSConfirmRequest) (*PaymentResponse, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error)
	Cancel(ctx context.Context, req CancelRequest) (*CancelResponse, error)
}

// GatewayConfig holds credentials for the payment provider.
type GatewayConfig struct {
	BaseURL   string
	APIKey    string
	SecretKey string
	Timeout   time.Duration
}

// GatewayClient signs and sends requests to the payment provider. One
// instance is built at startup and shared; credentials never change.
type GatewayClient struct {
	cfg        GatewayConfig
	httpClient *http.Client
	nonce      func() string
}

func NewGatewayClient(cfg GatewayConfig) *GatewayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GatewayClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		nonce:      newNonce,
	}
}

func (c *GatewayClient) CheckBin(ctx context.Context, req BinCheckRequest) (*BinCheckResponse, error) {
	var resp BinCheckResponse
	if err := c.post(ctx, pathBinCheck, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GatewayClient) AuthorizeNon3DS(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	var resp PaymentResponse
	if err := c.post(ctx, pathAuth, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GatewayClient) Initialize3DS(ctx context.Context, req PaymentRequest) (*ThreeDSInitResponse, error) {
	var resp ThreeDSInitResponse
	if err := c.post(ctx, path3DSInitialize, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GatewayClient) Confirm3DS(ctx context.Context, req ThreeDSConfirmRequest) (*PaymentResponse, error) {
	var resp PaymentResponse
	if err := c.post(ctx, path3DSAuth, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GatewayClient) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	var resp RefundResponse
	if err := c.post(ctx, pathRefund, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *GatewayClient) Cancel(ctx context.Context, req CancelRequest) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.post(ctx, pathCancel, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type enveloped interface {
	envelope() *GatewayResponse
}

// post sends one signed request. It never retries: a repeated payment call
// may charge the card twice.
func (c *GatewayClient) post(ctx context.Context, path string, body any, out enveloped) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal gateway request %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build gateway request %s: %w", path, err)
	}

	nonce := c.nonce()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-iyzi-rnd", nonce)
	req.Header.Set("Authorization", AuthorizationHeader(c.cfg.APIKey, c.cfg.SecretKey, nonce, path, payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrGatewayUnavailable.wrap(fmt.Errorf("gateway request %s: %w", path, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxGatewayBodySize))
	if err != nil {
		return ErrGatewayUnavailable.wrap(fmt.Errorf("read gateway response %s: %w", path, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ErrGatewayUnavailable.wrap(fmt.Errorf("gateway %s: status %d, body: %.200s", path, resp.StatusCode, string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return ErrGatewayUnavailable.wrap(fmt.Errorf("unmarshal gateway response %s: %w", path, err))
	}

	env := out.envelope()
	switch env.Status {
	case gatewayStatusSuccess:
		return nil
	case gatewayStatusFailure:
		return &GatewayError{
			ErrorCode:    env.ErrorCode,
			ErrorMessage: env.ErrorMessage,
			ErrorGroup:   env.ErrorGroup,
		}
	default:
		return ErrGatewayUnavailable.wrap(fmt.Errorf("gateway %s: unexpected status %q", path, env.Status))
	}
}

// AuthorizationHeader builds the request authentication header:
// SCHEME base64("apiKey:K&randomKey:N&signature:hex(HMAC_SHA256(secret, N+path+body)))").
func AuthorizationHeader(apiKey, secretKey, nonce, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(nonce))
	mac.Write([]byte(path))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	params := "apiKey:" + apiKey + "&randomKey:" + nonce + "&signature:" + signature
	return authScheme + " " + base64.StdEncoding.EncodeToString([]byte(params))
}

// newNonce returns current unix millis followed by random digits.
func newNonce() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(time.Now().UnixMilli(), 10))
	for i := 0; i < nonceRandomDigits; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			panic(fmt.Sprintf("crypto/rand failed: %v", err))
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String()
}

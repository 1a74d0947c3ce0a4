package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGatewayClient(GatewayConfig{
		BaseURL:   srv.URL + "/",
		APIKey:    "api-key",
		SecretKey: "secret-key",
		Timeout:   2 * time.Second,
	})
}

func TestAuthorizationHeaderFormat(t *testing.T) {
	header := AuthorizationHeader("api-key", "secret-key", "123", "/payment/auth", []byte(`{"a":1}`))
	require.True(t, strings.HasPrefix(header, "IYZWSv2 "))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "IYZWSv2 "))
	require.NoError(t, err)

	parts := strings.Split(string(raw), "&")
	require.Len(t, parts, 3)
	assert.Equal(t, "apiKey:api-key", parts[0])
	assert.Equal(t, "randomKey:123", parts[1])
	assert.True(t, strings.HasPrefix(parts[2], "signature:"))
	assert.Len(t, strings.TrimPrefix(parts[2], "signature:"), 64)

	other := AuthorizationHeader("api-key", "secret-key", "124", "/payment/auth", []byte(`{"a":1}`))
	assert.NotEqual(t, header, other)
}

func TestNewNonceIsNumericAndFresh(t *testing.T) {
	a, b := newNonce(), newNonce()
	assert.NotEqual(t, a, b)
	for _, c := range a {
		assert.True(t, c >= '0' && c <= '9')
	}
}

func TestGatewayClientSignsRequest(t *testing.T) {
	var gotPath, gotRnd, gotAuth string
	var gotBody []byte

	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRnd = r.Header.Get("x-iyzi-rnd")
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":         "success",
			"paymentId":      "22416035",
			"price":          "212.4",
			"paidPrice":      "212.4",
			"currency":       "TRY",
			"basketId":       "B1",
			"conversationId": "c1",
			"itemTransactions": []map[string]any{
				{"itemId": "v1", "paymentTransactionId": "t1", "price": "106.2", "paidPrice": "106.2", "merchantPayoutAmount": "100"},
			},
		})
	})

	resp, err := gw.AuthorizeNon3DS(context.Background(), PaymentRequest{ConversationID: "c1", Price: d("212.40")})
	require.NoError(t, err)

	assert.Equal(t, pathAuth, gotPath)
	require.NotEmpty(t, gotRnd)
	assert.Equal(t, AuthorizationHeader("api-key", "secret-key", gotRnd, pathAuth, gotBody), gotAuth)

	assert.Equal(t, "22416035", resp.PaymentID)
	assert.True(t, resp.PaidPrice.Equal(d("212.40")))
	require.Len(t, resp.ItemTransactions, 1)
	assert.Equal(t, "t1", resp.ItemTransactions[0].PaymentTransactionID)
}

func TestGatewayClientFailureStatus(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"failure","errorCode":"10051","errorMessage":"Kart limiti yetersiz","errorGroup":"NOT_SUFFICIENT_FUNDS"}`))
	})

	_, err := gw.AuthorizeNon3DS(context.Background(), PaymentRequest{})
	require.Error(t, err)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "10051", gwErr.ErrorCode)
	assert.Equal(t, KindGateway, KindOf(err))
	assert.NotEqual(t, GatewayErrorGeneric.Message["en"], gwErr.UserMessage("en"))
}

func TestGatewayClientUnavailable(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := gw.Cancel(context.Background(), CancelRequest{PaymentID: "p1"})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	garbled := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})
	_, err = garbled.Refund(context.Background(), RefundRequest{})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestGatewayClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	gw := NewGatewayClient(GatewayConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := gw.CheckBin(context.Background(), BinCheckRequest{BinNumber: "554960"})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}

func TestGatewayErrorUnknownCodeFallsBack(t *testing.T) {
	err := &GatewayError{ErrorCode: "99999"}
	assert.Equal(t, GatewayErrorGeneric.Message["tr"], err.UserMessage("tr"))
	assert.Equal(t, GatewayErrorGeneric.Message["en"], err.UserMessage("de"))
}

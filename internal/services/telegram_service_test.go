package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/models"
)

func telegramStub(t *testing.T, status int, got *[]telegramMessage) *TelegramService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/botbot-token/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var msg telegramMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		*got = append(*got, msg)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	svc := NewTelegramService("bot-token", "-100200")
	svc.apiBaseURL = srv.URL
	return svc
}

func TestSendToAdmin(t *testing.T) {
	var sent []telegramMessage
	svc := telegramStub(t, http.StatusOK, &sent)

	require.NoError(t, svc.SendToAdmin(context.Background(), "<b>hello</b>"))
	require.Len(t, sent, 1)
	assert.Equal(t, "-100200", sent[0].ChatID)
	assert.Equal(t, "HTML", sent[0].ParseMode)
	assert.Equal(t, "<b>hello</b>", sent[0].Text)
}

func TestSendToAdminRejectedStatus(t *testing.T) {
	var sent []telegramMessage
	svc := telegramStub(t, http.StatusBadRequest, &sent)

	err := svc.SendToAdmin(context.Background(), "hello")
	assert.ErrorContains(t, err, "status 400")
}

func TestSendToAdminUnconfigured(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	svc := NewTelegramService("", "")
	svc.apiBaseURL = srv.URL
	assert.NoError(t, svc.SendToAdmin(context.Background(), "hello"))
	assert.False(t, called)
}

func TestNotifyOrderPlacedEscapesHTML(t *testing.T) {
	var sent []telegramMessage
	svc := telegramStub(t, http.StatusOK, &sent)

	order := &models.Order{
		OrderNumber:     "260101<X>",
		CardAssociation: "MASTER_CARD",
		CardFamily:      "Bonus & Co",
		LastFourDigits:  "0008",
		Currency:        "TRY",
		PaidPrice:       d("1234.5"),
	}
	require.NoError(t, svc.NotifyOrderPlaced(context.Background(), order))
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "260101&lt;X&gt;")
	assert.Contains(t, sent[0].Text, "Bonus &amp; Co")
	assert.Contains(t, sent[0].Text, "1,234.50 TRY")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "0.00 TRY", FormatPrice(d("0"), "TRY"))
	assert.Equal(t, "1,234,567.89 TRY", FormatPrice(d("1234567.891"), "TRY"))
	assert.Equal(t, "-1,000.00 USD", FormatPrice(d("-1000"), "USD"))
}

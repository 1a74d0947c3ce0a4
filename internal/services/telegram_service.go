package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/models"
)

// OrderNotifier receives order events worth a human's attention.
type OrderNotifier interface {
	NotifyOrderPlaced(ctx context.Context, order *models.Order) error
	NotifyRefundRequested(ctx context.Context, order *models.Order, items []models.OrderItem) error
}

// TelegramService posts admin notifications to a Telegram chat. With no bot
// token or chat configured every call is a no-op.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBaseURL  string
	httpClient  *http.Client
}

func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBaseURL:  "https://api.telegram.org",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendToAdmin sends an HTML message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.botToken == "" || s.adminChatID == "" {
		return nil
	}

	body, err := json.Marshal(telegramMessage{ChatID: s.adminChatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBaseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.Warn("telegram send failed", "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("telegram unexpected status", "status", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// FormatPrice renders an amount with two decimals, thousand separators and currency.
func FormatPrice(amount decimal.Decimal, currency string) string {
	fixed := amount.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}

	var b strings.Builder
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return sign + b.String() + "." + frac + " " + currency
}

func (s *TelegramService) NotifyOrderPlaced(ctx context.Context, order *models.Order) error {
	var items strings.Builder
	for i, item := range order.Items {
		fmt.Fprintf(&items, "%d. <code>%s</code>\n   %d x %s = %s\n",
			i+1,
			item.VariantID,
			item.Quantity,
			FormatPrice(item.Price, order.Currency),
			FormatPrice(item.PaidPrice, order.Currency),
		)
	}

	customer := "guest"
	if order.UserID != nil {
		customer = order.UserID.String()
	}

	message := fmt.Sprintf(`<b>🛒 New order</b>
<b>Order:</b> %s
<b>Customer:</b> %s
<b>Card:</b> %s %s ****%s
<b>Items:</b>
%s
<b>Paid:</b> %s`,
		html.EscapeString(order.OrderNumber),
		customer,
		html.EscapeString(order.CardAssociation),
		html.EscapeString(order.CardFamily),
		html.EscapeString(order.LastFourDigits),
		items.String(),
		FormatPrice(order.PaidPrice, order.Currency),
	)
	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

func (s *TelegramService) NotifyRefundRequested(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	var lines strings.Builder
	var total decimal.Decimal
	for _, item := range items {
		fmt.Fprintf(&lines, "• <code>%s</code> x%d %s\n", item.ID, item.Quantity, FormatPrice(item.RefundAmount, order.Currency))
		total = total.Add(item.RefundAmount)
	}

	reason := ""
	if len(items) > 0 {
		reason = items[0].RefundReason
	}

	message := fmt.Sprintf(`<b>↩️ Refund requested</b>
<b>Order:</b> %s
<b>Items:</b>
%s
<b>Amount:</b> %s
<b>Reason:</b> %s`,
		html.EscapeString(order.OrderNumber),
		lines.String(),
		FormatPrice(total, order.Currency),
		html.EscapeString(reason),
	)
	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}

package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

const testSecret = "sandbox-secret-key"

// fakeGateway answers like the real provider and signs its responses with testSecret.
type fakeGateway struct {
	mu       sync.Mutex
	signer   *SignatureVerifier
	seq      int
	decline  *GatewayError
	tamper   func(*PaymentResponse)
	pending  map[string]PaymentRequest
	cancels  []CancelRequest
	refunds  []RefundRequest
	authHits int
	delay    time.Duration // held before Refund and Cancel answer
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		signer:  NewSignatureVerifier(testSecret),
		pending: map[string]PaymentRequest{},
	}
}

func (g *fakeGateway) nextID() string {
	g.seq++
	return fmt.Sprintf("%d", 22416000+g.seq)
}

func (g *fakeGateway) CheckBin(ctx context.Context, req BinCheckRequest) (*BinCheckResponse, error) {
	resp := &BinCheckResponse{BinNumber: req.BinNumber, CardType: "CREDIT_CARD", CardAssociation: "MASTER_CARD", CardFamily: "Bonus", BankName: "Test Bank"}
	resp.Status = gatewayStatusSuccess
	return resp, nil
}

func (g *fakeGateway) charge(req PaymentRequest) *PaymentResponse {
	resp := &PaymentResponse{
		Price:           req.Price,
		PaidPrice:       req.PaidPrice,
		Installment:     req.Installment,
		PaymentID:       g.nextID(),
		Currency:        req.Currency,
		BasketID:        req.BasketID,
		CardType:        "CREDIT_CARD",
		CardAssociation: "MASTER_CARD",
		CardFamily:      "Bonus",
		BinNumber:       req.PaymentCard.CardNumber[:6],
		LastFourDigits:  req.PaymentCard.CardNumber[len(req.PaymentCard.CardNumber)-4:],
	}
	resp.Status = gatewayStatusSuccess
	resp.ConversationID = req.ConversationID

	ratio := decimal.NewFromInt(1)
	if req.Price.IsPositive() {
		ratio = req.PaidPrice.Div(req.Price)
	}
	for _, item := range req.BasketItems {
		resp.ItemTransactions = append(resp.ItemTransactions, ItemTransaction{
			ItemID:               item.ID,
			PaymentTransactionID: g.nextID(),
			TransactionStatus:    2,
			Price:                item.Price,
			PaidPrice:            item.Price.Mul(ratio).Round(2),
			MerchantPayoutAmount: item.Price.Mul(ratio).Mul(decimal.RequireFromString("0.97")).Round(2),
		})
	}
	return resp
}

func (g *fakeGateway) signPayment(resp *PaymentResponse) {
	resp.Signature = g.signer.Sign(resp.PaymentID, resp.Currency, resp.BasketID, resp.ConversationID,
		resp.PaidPrice.String(), resp.Price.String())
}

func (g *fakeGateway) AuthorizeNon3DS(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authHits++
	if g.decline != nil {
		return nil, g.decline
	}
	resp := g.charge(req)
	g.signPayment(resp)
	if g.tamper != nil {
		g.tamper(resp)
	}
	return resp, nil
}

func (g *fakeGateway) Initialize3DS(ctx context.Context, req PaymentRequest) (*ThreeDSInitResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.decline != nil {
		return nil, g.decline
	}
	paymentID := g.nextID()
	g.pending[paymentID] = req
	resp := &ThreeDSInitResponse{
		PaymentID:          paymentID,
		ThreeDSHTMLContent: base64.StdEncoding.EncodeToString([]byte(`<form action="` + req.CallbackURL + `"></form>`)),
	}
	resp.Status = gatewayStatusSuccess
	resp.ConversationID = req.ConversationID
	resp.Signature = g.signer.Sign(paymentID, req.ConversationID)
	return resp, nil
}

func (g *fakeGateway) Confirm3DS(ctx context.Context, req ThreeDSConfirmRequest) (*PaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	original, ok := g.pending[req.PaymentID]
	if !ok {
		return nil, &GatewayError{ErrorCode: "10219", ErrorMessage: "unknown payment"}
	}
	delete(g.pending, req.PaymentID)
	resp := g.charge(original)
	resp.PaymentID = req.PaymentID
	g.signPayment(resp)
	if g.tamper != nil {
		g.tamper(resp)
	}
	return resp, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	time.Sleep(g.delay)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, req)
	resp := &RefundResponse{
		PaymentID:            g.nextID(),
		PaymentTransactionID: req.PaymentTransactionID,
		Price:                req.Price,
		Currency:             req.Currency,
		HostReference:        "host-" + req.PaymentTransactionID,
	}
	resp.Status = gatewayStatusSuccess
	resp.ConversationID = req.ConversationID
	resp.Signature = g.signer.Sign(resp.PaymentID, resp.Price.String(), resp.Currency, resp.ConversationID)
	return resp, nil
}

func (g *fakeGateway) Cancel(ctx context.Context, req CancelRequest) (*CancelResponse, error) {
	time.Sleep(g.delay)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, req)
	resp := &CancelResponse{
		PaymentID:     req.PaymentID,
		Price:         decimal.RequireFromString("212.4"),
		Currency:      "TRY",
		HostReference: "cancel-" + req.PaymentID,
	}
	resp.Status = gatewayStatusSuccess
	resp.ConversationID = req.ConversationID
	resp.Signature = g.signer.Sign(resp.PaymentID, resp.Price.String(), resp.Currency, resp.ConversationID)
	return resp, nil
}

func (g *fakeGateway) authCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authHits
}

func (g *fakeGateway) refundCounts() map[string]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	counts := map[string]int{}
	for _, r := range g.refunds {
		counts[r.PaymentTransactionID]++
	}
	return counts
}

func (g *fakeGateway) cancelCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cancels)
}

type fixture struct {
	db       *gorm.DB
	gateway  *fakeGateway
	checkout *CheckoutService
	after    *AfterSalesService
	orders   *OrderService
	variant  models.Variant
	user     models.User
	address  models.Address
}

func newFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	product := models.Product{Name: "Saffron", Category: "Spices", TaxRate: d("18")}
	require.NoError(t, db.Create(&product).Error)

	variant := models.Variant{
		ProductID:   product.ID,
		Price:       d("100"),
		Discount:    d("10"),
		Stock:       10,
		IsPublished: true,
		Type:        models.VariantTypeWeight,
		Value:       "5",
		Unit:        strPtr("g"),
	}
	require.NoError(t, db.Create(&variant).Error)
	variant.Product = &product

	user := models.User{Email: "ayse@example.com", FirstName: "Ayse", LastName: "Yilmaz", Phone: "+905350000000", IdentityNumber: "74300864791"}
	require.NoError(t, db.Create(&user).Error)

	address := models.Address{UserID: &user.ID, ContactName: "Ayse Yilmaz", City: "Istanbul", Country: "Turkey", AddressLine: "Nidakule Goztepe", ZipCode: "34732"}
	require.NoError(t, db.Create(&address).Error)

	gw := newFakeGateway()
	verifier := NewSignatureVerifier(testSecret)
	discounts := NewDiscountService(db)

	return &fixture{
		db:      db,
		gateway: gw,
		checkout: NewCheckoutService(db, gw, verifier, discounts, nil, CheckoutConfig{
			Currency:       "TRY",
			Locale:         "en",
			PublicBaseURL:  "https://shop.example.com",
			TempPaymentTTL: 15 * time.Minute,
			Location:       time.UTC,
		}),
		after: NewAfterSalesService(db, gw, verifier, discounts, nil, AfterSalesConfig{
			Locale:       "en",
			Location:     time.UTC,
			RefundWindow: 14 * 24 * time.Hour,
		}),
		orders:  NewOrderService(db),
		variant: variant,
		user:    user,
		address: address,
	}
}

func (f *fixture) request(qty int, code string) CheckoutRequest {
	return CheckoutRequest{
		Card:         testCard(),
		Buyer:        AuthenticatedBuyer{UserID: f.user.ID, AddressID: f.address.ID},
		Lines:        []BasketLine{{VariantID: f.variant.ID, Quantity: qty}},
		DiscountCode: code,
		IP:           "85.34.78.112",
	}
}

func (f *fixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func testCard() CardDetails {
	return CardDetails{
		HolderName:  "John Doe",
		Number:      "5528790000000008",
		ExpireMonth: "12",
		ExpireYear:  "2030",
		CVC:         "123",
	}
}

func strPtr(s string) *string { return &s }

package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/logger"
	"github.com/example/storefront/internal/models"
)

const (
	paymentChannelWeb   = "WEB"
	paymentGroupProduct = "PRODUCT"
	callbackPath        = "/api/payment/3ds/callback"
	mdStatusVerified    = "1"
)

// BuyerIdentity is either an AuthenticatedBuyer or a GuestBuyer.
type BuyerIdentity interface {
	isBuyer()
}

// AuthenticatedBuyer checks out with one of their saved addresses.
type AuthenticatedBuyer struct {
	UserID    uuid.UUID
	AddressID uuid.UUID
}

// GuestBuyer checks out without an account; a fresh address is stored.
type GuestBuyer struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	IdentityNumber string
	Address        GuestAddress
}

type GuestAddress struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	AddressLine string `json:"address"`
	ZipCode     string `json:"zipCode"`
}

func (AuthenticatedBuyer) isBuyer() {}
func (GuestBuyer) isBuyer()         {}

// CardDetails is the card as entered at checkout. It is never persisted.
type CardDetails struct {
	HolderName  string `json:"cardHolderName"`
	Number      string `json:"cardNumber"`
	ExpireMonth string `json:"expireMonth"`
	ExpireYear  string `json:"expireYear"`
	CVC         string `json:"cvc"`
}

// Validate checks the card shape before anything is sent to the gateway.
func (c CardDetails) Validate() error {
	number := strings.ReplaceAll(c.Number, " ", "")
	switch {
	case strings.TrimSpace(c.HolderName) == "":
		return ErrValidation.withMessage("card holder name is required")
	case len(number) < 12 || len(number) > 19 || !isDigits(number):
		return ErrValidation.withMessage("card number is invalid")
	case !isDigits(c.ExpireMonth) || len(c.ExpireMonth) > 2 || atoi(c.ExpireMonth) < 1 || atoi(c.ExpireMonth) > 12:
		return ErrValidation.withMessage("card expiry month is invalid")
	case !isDigits(c.ExpireYear) || (len(c.ExpireYear) != 2 && len(c.ExpireYear) != 4):
		return ErrValidation.withMessage("card expiry year is invalid")
	case !isDigits(c.CVC) || len(c.CVC) < 3 || len(c.CVC) > 4:
		return ErrValidation.withMessage("card security code is invalid")
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// CheckoutRequest is everything a checkout needs from the caller.
type CheckoutRequest struct {
	Card         CardDetails
	Buyer        BuyerIdentity
	Lines        []BasketLine
	DiscountCode string
	IP           string
}

// AuthorizationOutcome is one of Approved, ChallengeRequired or Declined.
type AuthorizationOutcome interface {
	isOutcome()
}

// Approved carries the persisted order.
type Approved struct {
	Order *models.Order
}

// ChallengeRequired carries the issuer challenge page to render in the browser.
type ChallengeRequired struct {
	Token string
	HTML  string
}

// Declined is a business failure reported by the gateway or the issuer.
type Declined struct {
	Err     *GatewayError
	Message string
}

func (Approved) isOutcome()          {}
func (ChallengeRequired) isOutcome() {}
func (Declined) isOutcome()          {}

// ThreeDSCallback is what the issuer posts back after the challenge.
type ThreeDSCallback struct {
	Token            string
	Status           string
	MDStatus         string
	PaymentID        string
	ConversationData string
}

// CheckoutConfig holds the checkout settings taken from configuration.
type CheckoutConfig struct {
	Currency       string
	Locale         string
	PublicBaseURL  string
	TempPaymentTTL time.Duration
	Location       *time.Location
}

// CheckoutService runs both authorization paths and hands successful
// payments to the reconciler.
type CheckoutService struct {
	db        *gorm.DB
	gateway   PaymentGateway
	verifier  *SignatureVerifier
	basket    *BasketAssembler
	discounts *DiscountService
	notifier  OrderNotifier
	cfg       CheckoutConfig
	now       func() time.Time
}

func NewCheckoutService(
	db *gorm.DB,
	gateway PaymentGateway,
	verifier *SignatureVerifier,
	discounts *DiscountService,
	notifier OrderNotifier,
	cfg CheckoutConfig,
) *CheckoutService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.TempPaymentTTL <= 0 {
		cfg.TempPaymentTTL = 15 * time.Minute
	}
	return &CheckoutService{
		db:        db,
		gateway:   gateway,
		verifier:  verifier,
		basket:    NewBasketAssembler(db),
		discounts: discounts,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

// CheckBin returns card metadata for the first digits of a card number.
func (s *CheckoutService) CheckBin(ctx context.Context, bin string) (*BinCheckResponse, error) {
	bin = strings.ReplaceAll(bin, " ", "")
	if len(bin) < 6 || !isDigits(bin) {
		return nil, ErrValidation.withMessage("bin number must have at least 6 digits")
	}
	return s.gateway.CheckBin(ctx, BinCheckRequest{
		Locale:         s.cfg.Locale,
		ConversationID: uuid.NewString(),
		BinNumber:      bin[:6],
	})
}

// QuoteBasket prices a basket the way checkout will charge it.
func (s *CheckoutService) QuoteBasket(ctx context.Context, lines []BasketLine) (*Basket, error) {
	return s.basket.Assemble(ctx, lines)
}

// CheckDiscount validates code against a basket without redeeming it.
func (s *CheckoutService) CheckDiscount(ctx context.Context, code string, lines []BasketLine) (*AppliedDiscount, error) {
	basket, err := s.basket.Assemble(ctx, lines)
	if err != nil {
		return nil, err
	}
	return s.discounts.Validate(ctx, code, basket.VariantIDs())
}

// checkoutPlan is a validated checkout ready to be sent to the gateway.
type checkoutPlan struct {
	payment    PaymentRequest
	userID     *uuid.UUID
	addressID  uuid.UUID
	newAddress *models.Address
	discount   *AppliedDiscount
}

func (s *CheckoutService) prepare(ctx context.Context, req CheckoutRequest) (*checkoutPlan, error) {
	if err := req.Card.Validate(); err != nil {
		return nil, err
	}

	plan := &checkoutPlan{}
	var buyer GatewayBuyer
	var address models.Address

	switch b := req.Buyer.(type) {
	case AuthenticatedBuyer:
		var user models.User
		if err := s.db.WithContext(ctx).First(&user, "id = ?", b.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, fmt.Errorf("load buyer: %w", err)
		}
		if err := s.db.WithContext(ctx).First(&address, "id = ? AND user_id = ?", b.AddressID, b.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrAddressNotFound
			}
			return nil, fmt.Errorf("load buyer address: %w", err)
		}
		plan.userID = &user.ID
		plan.addressID = address.ID
		buyer = GatewayBuyer{
			ID:             user.ID.String(),
			Name:           user.FirstName,
			Surname:        user.LastName,
			GsmNumber:      user.Phone,
			Email:          user.Email,
			IdentityNumber: user.IdentityNumber,
		}
	case GuestBuyer:
		if err := validateGuest(b); err != nil {
			return nil, err
		}
		address = models.Address{
			ContactName: b.Address.ContactName,
			Email:       b.Email,
			Phone:       b.Phone,
			City:        b.Address.City,
			Country:     b.Address.Country,
			AddressLine: b.Address.AddressLine,
			ZipCode:     b.Address.ZipCode,
		}
		if address.ContactName == "" {
			address.ContactName = b.FirstName + " " + b.LastName
		}
		plan.newAddress = &address
		buyer = GatewayBuyer{
			ID:             "guest-" + uuid.NewString(),
			Name:           b.FirstName,
			Surname:        b.LastName,
			GsmNumber:      b.Phone,
			Email:          b.Email,
			IdentityNumber: b.IdentityNumber,
		}
	default:
		return nil, ErrValidation.withMessage("buyer is required")
	}

	buyer.RegistrationAddress = address.AddressLine
	buyer.City = address.City
	buyer.Country = address.Country
	buyer.ZipCode = address.ZipCode
	buyer.IP = req.IP
	if buyer.IdentityNumber == "" {
		// The gateway requires an identity number; 11 digits is its accepted placeholder.
		buyer.IdentityNumber = "11111111111"
	}

	basket, err := s.basket.Assemble(ctx, req.Lines)
	if err != nil {
		return nil, err
	}

	paidPrice := basket.Total
	if strings.TrimSpace(req.DiscountCode) != "" {
		applied, err := s.discounts.Validate(ctx, req.DiscountCode, basket.VariantIDs())
		if err != nil {
			return nil, err
		}
		if paidPrice, err = ApplyDiscount(basket.Total, applied.DiscountType, applied.DiscountAmount); err != nil {
			return nil, err
		}
		plan.discount = applied
	}
	if !paidPrice.IsPositive() {
		return nil, ErrInvalidAmount.withMessage("order total must be positive after discount")
	}

	gwAddress := GatewayAddress{
		ContactName: address.ContactName,
		City:        address.City,
		Country:     address.Country,
		Address:     address.AddressLine,
		ZipCode:     address.ZipCode,
	}
	plan.payment = PaymentRequest{
		Locale:         s.cfg.Locale,
		ConversationID: uuid.NewString(),
		Price:          basket.Total,
		PaidPrice:      paidPrice,
		Currency:       s.cfg.Currency,
		Installment:    1,
		BasketID:       "B" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]),
		PaymentChannel: paymentChannelWeb,
		PaymentGroup:   paymentGroupProduct,
		PaymentCard: PaymentCard{
			CardHolderName: req.Card.HolderName,
			CardNumber:     strings.ReplaceAll(req.Card.Number, " ", ""),
			ExpireMonth:    req.Card.ExpireMonth,
			ExpireYear:     req.Card.ExpireYear,
			CVC:            req.Card.CVC,
		},
		Buyer:           buyer,
		ShippingAddress: gwAddress,
		BillingAddress:  gwAddress,
		BasketItems:     basket.Items,
	}
	return plan, nil
}

func validateGuest(b GuestBuyer) error {
	switch {
	case strings.TrimSpace(b.FirstName) == "" || strings.TrimSpace(b.LastName) == "":
		return ErrValidation.withMessage("guest name is required")
	case !strings.Contains(b.Email, "@"):
		return ErrValidation.withMessage("guest email is invalid")
	case strings.TrimSpace(b.Phone) == "":
		return ErrValidation.withMessage("guest phone is required")
	case strings.TrimSpace(b.Address.City) == "" || strings.TrimSpace(b.Address.Country) == "" || strings.TrimSpace(b.Address.AddressLine) == "":
		return ErrValidation.withMessage("guest address is incomplete")
	}
	return nil
}

func (p *checkoutPlan) discountCode() string {
	if p.discount == nil {
		return ""
	}
	return p.discount.Code
}

// PayNon3DS authorizes the card directly and persists the order.
func (s *CheckoutService) PayNon3DS(ctx context.Context, req CheckoutRequest) (AuthorizationOutcome, error) {
	plan, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.AuthorizeNon3DS(ctx, plan.payment)
	if err != nil {
		return s.declineOrFail(ctx, err, plan.payment.ConversationID)
	}

	order, err := s.settle(ctx, resp, settlement{
		userID:       plan.userID,
		addressID:    plan.addressID,
		newAddress:   plan.newAddress,
		discountCode: plan.discountCode(),
		ip:           req.IP,
		basketID:     plan.payment.BasketID,
		paidPrice:    plan.payment.PaidPrice,
	})
	if err != nil {
		return nil, err
	}
	return Approved{Order: order}, nil
}

// Initialize3DS starts a challenge and stores the continuation that the
// callback resumes. No order exists until the callback confirms.
func (s *CheckoutService) Initialize3DS(ctx context.Context, req CheckoutRequest) (AuthorizationOutcome, error) {
	plan, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	continued := false
	if plan.newAddress != nil {
		if err := s.db.WithContext(ctx).Create(plan.newAddress).Error; err != nil {
			return nil, fmt.Errorf("create guest address: %w", err)
		}
		plan.addressID = plan.newAddress.ID
		defer func() {
			if !continued {
				s.discardGuestAddress(ctx, plan.addressID)
			}
		}()
	}

	token := uuid.NewString()
	plan.payment.CallbackURL = s.cfg.PublicBaseURL + callbackPath + "?token=" + token

	resp, err := s.gateway.Initialize3DS(ctx, plan.payment)
	if err != nil {
		return s.declineOrFail(ctx, err, plan.payment.ConversationID)
	}
	if err := s.verifier.VerifyThreeDSInit(resp); err != nil {
		logger.ErrorContext(ctx, "3ds initialize signature mismatch",
			"payment_id", resp.PaymentID, "conversation_id", plan.payment.ConversationID)
		return nil, err
	}

	page, err := base64.StdEncoding.DecodeString(resp.ThreeDSHTMLContent)
	if err != nil {
		return nil, ErrGatewayUnavailable.wrap(fmt.Errorf("decode 3ds html: %w", err))
	}

	tp := models.TempPayment{
		Token:          token,
		PaymentID:      resp.PaymentID,
		ConversationID: plan.payment.ConversationID,
		BasketID:       plan.payment.BasketID,
		AddressID:      plan.addressID,
		UserID:         plan.userID,
		DiscountCode:   plan.discountCode(),
		Price:          plan.payment.Price,
		PaidPrice:      plan.payment.PaidPrice,
		Currency:       plan.payment.Currency,
		IP:             req.IP,
		ExpiresAt:      s.now().Add(s.cfg.TempPaymentTTL),
	}
	if err := s.db.WithContext(ctx).Create(&tp).Error; err != nil {
		return nil, fmt.Errorf("store 3ds continuation: %w", err)
	}
	continued = true

	logger.InfoContext(ctx, "3ds challenge started",
		"payment_id", tp.PaymentID, "conversation_id", tp.ConversationID, "expires_at", tp.ExpiresAt)
	return ChallengeRequired{Token: token, HTML: string(page)}, nil
}

// Complete3DS resumes a checkout after the issuer challenge. The continuation
// is consumed on the first call, whatever the outcome.
func (s *CheckoutService) Complete3DS(ctx context.Context, cb ThreeDSCallback) (AuthorizationOutcome, error) {
	tp, err := s.claimTempPayment(ctx, cb.Token)
	if err != nil {
		return nil, err
	}
	approved := false
	if tp.UserID == nil {
		defer func() {
			if !approved {
				s.discardGuestAddress(ctx, tp.AddressID)
			}
		}()
	}
	if tp.Expired(s.now()) {
		return nil, ErrTokenExpired
	}

	if cb.Status != gatewayStatusSuccess || cb.MDStatus != mdStatusVerified {
		logger.InfoContext(ctx, "3ds challenge not verified",
			"payment_id", tp.PaymentID, "status", cb.Status, "md_status", cb.MDStatus)
		gwErr := &GatewayError{ErrorCode: "3DS_" + cb.MDStatus, ErrorMessage: "3-D Secure verification failed"}
		return Declined{Err: gwErr, Message: threeDSFailedMessage(s.cfg.Locale)}, nil
	}
	if cb.PaymentID != "" && cb.PaymentID != tp.PaymentID {
		logger.ErrorContext(ctx, "3ds callback payment id mismatch",
			"expected", tp.PaymentID, "got", cb.PaymentID)
		return nil, ErrSignatureMismatch
	}

	resp, err := s.gateway.Confirm3DS(ctx, ThreeDSConfirmRequest{
		Locale:           s.cfg.Locale,
		ConversationID:   tp.ConversationID,
		PaymentID:        tp.PaymentID,
		ConversationData: cb.ConversationData,
	})
	if err != nil {
		return s.declineOrFail(ctx, err, tp.ConversationID)
	}

	order, err := s.settle(ctx, resp, settlement{
		userID:       tp.UserID,
		addressID:    tp.AddressID,
		discountCode: tp.DiscountCode,
		ip:           tp.IP,
		basketID:     tp.BasketID,
		paidPrice:    tp.PaidPrice,
	})
	if err != nil {
		return nil, err
	}
	approved = true
	return Approved{Order: order}, nil
}

// discardGuestAddress deletes a guest address that no order or pending
// continuation uses.
func (s *CheckoutService) discardGuestAddress(ctx context.Context, addressID uuid.UUID) {
	err := s.db.WithContext(context.WithoutCancel(ctx)).
		Where("id = ? AND user_id IS NULL", addressID).
		Where("NOT EXISTS (SELECT 1 FROM orders WHERE orders.address_id = addresses.id)").
		Where("NOT EXISTS (SELECT 1 FROM temp_payments WHERE temp_payments.address_id = addresses.id)").
		Delete(&models.Address{}).Error
	if err != nil {
		logger.WarnContext(ctx, "guest address cleanup failed", "address_id", addressID, "error", err)
	}
}

func (s *CheckoutService) declineOrFail(ctx context.Context, err error, conversationID string) (AuthorizationOutcome, error) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		logger.InfoContext(ctx, "payment declined",
			"conversation_id", conversationID, "error_code", gwErr.ErrorCode, "error_group", gwErr.ErrorGroup)
		return Declined{Err: gwErr, Message: gwErr.UserMessage(s.cfg.Locale)}, nil
	}
	logger.ErrorContext(ctx, "payment gateway call failed", "conversation_id", conversationID, "error", err)
	return nil, err
}

func threeDSFailedMessage(locale string) string {
	if locale == "tr" {
		return "3D Secure doğrulaması başarısız oldu"
	}
	return "3-D Secure verification failed"
}

// paidPriceMatches guards against a validly signed response for a different amount.
func paidPriceMatches(expected, got decimal.Decimal) bool {
	return expected.Equal(got)
}

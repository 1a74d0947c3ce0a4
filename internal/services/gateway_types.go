package services

import (
	"github.com/shopspring/decimal"
)

const (
	gatewayStatusSuccess = "success"
	gatewayStatusFailure = "failure"
)

// GatewayResponse holds the fields every gateway response carries.
type GatewayResponse struct {
	Status         string `json:"status"`
	ErrorCode      string `json:"errorCode,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	ErrorGroup     string `json:"errorGroup,omitempty"`
	Locale         string `json:"locale,omitempty"`
	SystemTime     int64  `json:"systemTime,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Signature      string `json:"signature,omitempty"`
}

func (r *GatewayResponse) envelope() *GatewayResponse {
	return r
}

type PaymentCard struct {
	CardHolderName string `json:"cardHolderName"`
	CardNumber     string `json:"cardNumber"`
	ExpireMonth    string `json:"expireMonth"`
	ExpireYear     string `json:"expireYear"`
	CVC            string `json:"cvc"`
	RegisterCard   int    `json:"registerCard"`
}

type GatewayBuyer struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Surname             string `json:"surname"`
	GsmNumber           string `json:"gsmNumber,omitempty"`
	Email               string `json:"email"`
	IdentityNumber      string `json:"identityNumber"`
	RegistrationAddress string `json:"registrationAddress"`
	IP                  string `json:"ip"`
	City                string `json:"city"`
	Country             string `json:"country"`
	ZipCode             string `json:"zipCode,omitempty"`
}

type GatewayAddress struct {
	ContactName string `json:"contactName"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Address     string `json:"address"`
	ZipCode     string `json:"zipCode,omitempty"`
}

// BasketItem is a single unit in the gateway basket.
type BasketItem struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category1 string          `json:"category1"`
	ItemType  string          `json:"itemType"`
	Price     decimal.Decimal `json:"price"`
}

type PaymentRequest struct {
	Locale          string          `json:"locale"`
	ConversationID  string          `json:"conversationId"`
	Price           decimal.Decimal `json:"price"`
	PaidPrice       decimal.Decimal `json:"paidPrice"`
	Currency        string          `json:"currency"`
	Installment     int             `json:"installment"`
	BasketID        string          `json:"basketId"`
	PaymentChannel  string          `json:"paymentChannel"`
	PaymentGroup    string          `json:"paymentGroup"`
	CallbackURL     string          `json:"callbackUrl,omitempty"`
	PaymentCard     PaymentCard     `json:"paymentCard"`
	Buyer           GatewayBuyer    `json:"buyer"`
	ShippingAddress GatewayAddress  `json:"shippingAddress"`
	BillingAddress  GatewayAddress  `json:"billingAddress"`
	BasketItems     []BasketItem    `json:"basketItems"`
}

type ItemTransaction struct {
	ItemID               string          `json:"itemId"`
	PaymentTransactionID string          `json:"paymentTransactionId"`
	TransactionStatus    int             `json:"transactionStatus"`
	Price                decimal.Decimal `json:"price"`
	PaidPrice            decimal.Decimal `json:"paidPrice"`
	MerchantPayoutAmount decimal.Decimal `json:"merchantPayoutAmount"`
}

type PaymentResponse struct {
	GatewayResponse
	Price            decimal.Decimal   `json:"price"`
	PaidPrice        decimal.Decimal   `json:"paidPrice"`
	Installment      int               `json:"installment"`
	PaymentID        string            `json:"paymentId"`
	FraudStatus      int               `json:"fraudStatus"`
	Currency         string            `json:"currency"`
	BasketID         string            `json:"basketId"`
	CardType         string            `json:"cardType"`
	CardAssociation  string            `json:"cardAssociation"`
	CardFamily       string            `json:"cardFamily"`
	BinNumber        string            `json:"binNumber"`
	LastFourDigits   string            `json:"lastFourDigits"`
	ItemTransactions []ItemTransaction `json:"itemTransactions"`
}

type ThreeDSInitResponse struct {
	GatewayResponse
	PaymentID          string `json:"paymentId"`
	ThreeDSHTMLContent string `json:"threeDSHtmlContent"`
}

type ThreeDSConfirmRequest struct {
	Locale           string `json:"locale"`
	ConversationID   string `json:"conversationId"`
	PaymentID        string `json:"paymentId"`
	ConversationData string `json:"conversationData,omitempty"`
}

type BinCheckRequest struct {
	Locale         string `json:"locale"`
	ConversationID string `json:"conversationId"`
	BinNumber      string `json:"binNumber"`
}

type BinCheckResponse struct {
	GatewayResponse
	BinNumber       string `json:"binNumber"`
	CardType        string `json:"cardType"`
	CardAssociation string `json:"cardAssociation"`
	CardFamily      string `json:"cardFamily"`
	BankName        string `json:"bankName"`
	BankCode        int    `json:"bankCode"`
	Commercial      int    `json:"commercial"`
}

type RefundRequest struct {
	Locale               string          `json:"locale"`
	ConversationID       string          `json:"conversationId"`
	PaymentTransactionID string          `json:"paymentTransactionId"`
	Price                decimal.Decimal `json:"price"`
	IP                   string          `json:"ip"`
	Currency             string          `json:"currency"`
}

type RefundResponse struct {
	GatewayResponse
	PaymentID            string          `json:"paymentId"`
	PaymentTransactionID string          `json:"paymentTransactionId"`
	Price                decimal.Decimal `json:"price"`
	Currency             string          `json:"currency"`
	HostReference        string          `json:"hostReference"`
}

type CancelRequest struct {
	Locale         string `json:"locale"`
	ConversationID string `json:"conversationId"`
	PaymentID      string `json:"paymentId"`
	IP             string `json:"ip"`
	Reason         string `json:"reason,omitempty"`
	Description    string `json:"description,omitempty"`
}

type CancelResponse struct {
	GatewayResponse
	PaymentID     string          `json:"paymentId"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	HostReference string          `json:"hostReference"`
}

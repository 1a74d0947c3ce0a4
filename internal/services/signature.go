package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SignatureVerifier checks the HMAC signature the gateway attaches to
// successful responses.
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secretKey string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secretKey)}
}

// Sign returns hex(HMAC_SHA256(secret, fields joined with ":")).
func (v *SignatureVerifier) Sign(fields ...string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(strings.Join(fields, ":")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares the expected signature for fields with got in constant time.
func (v *SignatureVerifier) Verify(got string, fields ...string) error {
	want := v.Sign(fields...)
	if got == "" || !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return ErrSignatureMismatch.wrap(fmt.Errorf("signature over %d fields does not match", len(fields)))
	}
	return nil
}

// VerifyPayment covers non-3DS authorization and 3DS confirmation responses.
func (v *SignatureVerifier) VerifyPayment(r *PaymentResponse) error {
	return v.Verify(r.Signature,
		r.PaymentID,
		r.Currency,
		r.BasketID,
		r.ConversationID,
		formatAmount(r.PaidPrice),
		formatAmount(r.Price),
	)
}

func (v *SignatureVerifier) VerifyThreeDSInit(r *ThreeDSInitResponse) error {
	return v.Verify(r.Signature, r.PaymentID, r.ConversationID)
}

func (v *SignatureVerifier) VerifyRefund(r *RefundResponse) error {
	return v.Verify(r.Signature, r.PaymentID, formatAmount(r.Price), r.Currency, r.ConversationID)
}

func (v *SignatureVerifier) VerifyCancel(r *CancelResponse) error {
	return v.Verify(r.Signature, r.PaymentID, formatAmount(r.Price), r.Currency, r.ConversationID)
}

// formatAmount renders an amount the way the gateway signs it: no
// trailing zeros after the decimal point.
func formatAmount(d decimal.Decimal) string {
	return d.String()
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedPayment(v *SignatureVerifier) *PaymentResponse {
	r := &PaymentResponse{
		PaymentID: "22416035",
		Currency:  "TRY",
		BasketID:  "B67832",
		Price:     d("212.40"),
		PaidPrice: d("212.40"),
	}
	r.Status = gatewayStatusSuccess
	r.ConversationID = "123456789"
	r.Signature = v.Sign("22416035", "TRY", "B67832", "123456789", "212.4", "212.4")
	return r
}

func TestVerifyPayment(t *testing.T) {
	v := NewSignatureVerifier("sandbox-secret")
	require.NoError(t, v.VerifyPayment(signedPayment(v)))
}

func TestVerifyPaymentRejectsTamperedPaidPrice(t *testing.T) {
	v := NewSignatureVerifier("sandbox-secret")
	r := signedPayment(v)
	r.PaidPrice = d("212.41")

	err := v.VerifyPayment(r)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Equal(t, KindSignature, KindOf(err))
}

func TestVerifyRejectsOtherSecretAndEmptySignature(t *testing.T) {
	v := NewSignatureVerifier("sandbox-secret")
	other := NewSignatureVerifier("another-secret")

	assert.ErrorIs(t, other.VerifyPayment(signedPayment(v)), ErrSignatureMismatch)
	assert.ErrorIs(t, v.Verify("", "a", "b"), ErrSignatureMismatch)
}

func TestVerifyAcceptsUppercaseHex(t *testing.T) {
	v := NewSignatureVerifier("k")
	sig := v.Sign("1", "2")
	require.NoError(t, v.Verify(sig, "1", "2"))
	upper := []byte(sig)
	for i, c := range upper {
		if c >= 'a' && c <= 'f' {
			upper[i] = c - 32
		}
	}
	require.NoError(t, v.Verify(string(upper), "1", "2"))
}

func TestVerifyThreeDSInitRefundCancel(t *testing.T) {
	v := NewSignatureVerifier("sandbox-secret")

	initResp := &ThreeDSInitResponse{PaymentID: "p1"}
	initResp.ConversationID = "c1"
	initResp.Signature = v.Sign("p1", "c1")
	assert.NoError(t, v.VerifyThreeDSInit(initResp))

	refund := &RefundResponse{PaymentID: "p1", Price: d("50.00"), Currency: "TRY"}
	refund.ConversationID = "c2"
	refund.Signature = v.Sign("p1", "50", "TRY", "c2")
	assert.NoError(t, v.VerifyRefund(refund))

	cancel := &CancelResponse{PaymentID: "p1", Price: d("106.20"), Currency: "TRY"}
	cancel.ConversationID = "c3"
	cancel.Signature = v.Sign("p1", "106.2", "TRY", "c3")
	assert.NoError(t, v.VerifyCancel(cancel))

	cancel.Currency = "USD"
	assert.ErrorIs(t, v.VerifyCancel(cancel), ErrSignatureMismatch)
}

func TestFormatAmountTrimsTrailingZeros(t *testing.T) {
	assert.Equal(t, "106.2", formatAmount(d("106.20")))
	assert.Equal(t, "100", formatAmount(d("100.00")))
	assert.Equal(t, "0.05", formatAmount(d("0.05")))
}

package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"adgen/internal/apperrors"
)

type Verification struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// Verifier checks checkout signatures: hex HMAC-SHA256 of
// "<orderId>|<paymentId>" keyed by the merchant secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify succeeds only on an exact signature match.
func (v *Verifier) Verify(in Verification) error {
	if len(v.secret) == 0 {
		return apperrors.PaymentInvalid("payment secret is not configured")
	}
	if in.OrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return apperrors.PaymentInvalid("orderId, paymentId and signature are required")
	}

	expected := v.Sign(in.OrderID, in.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(in.Signature)) {
		return apperrors.PaymentInvalid("signature mismatch")
	}
	return nil
}

package deposit

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// VerifySignature checks the gateway's keyed MAC over the exact event
// payload bytes. It is a pure function so the reconciler can be tested
// without a live gateway.
func VerifySignature(payload []byte, signature string, secret []byte) bool {
	mac := hmac.New(sha512.New, secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignPayload computes the MAC a gateway would attach to the payload.
// Used by tests and the static gateway.
func SignPayload(payload []byte, secret []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

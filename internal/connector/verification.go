package connector

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"hash"

	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/pkg/crypto"
)

// SignatureAlgorithm checks a signature over a message with the merchant's secret
type SignatureAlgorithm interface {
	Verify(secret, signature, message []byte) (bool, error)
}

// HMACSHA256 compares against an HMAC-SHA256 digest of the message
type HMACSHA256 struct{}

func (HMACSHA256) Verify(secret, signature, message []byte) (bool, error) {
	return verifyHMAC(sha256.New, secret, signature, message), nil
}

// HMACSHA512 compares against an HMAC-SHA512 digest of the message
type HMACSHA512 struct{}

func (HMACSHA512) Verify(secret, signature, message []byte) (bool, error) {
	return verifyHMAC(sha512.New, secret, signature, message), nil
}

// RSASHA256 checks a PKCS#1 v1.5 signature. The secret is the
// connector's PEM public key.
type RSASHA256 struct{}

func (RSASHA256) Verify(secret, signature, message []byte) (bool, error) {
	pub, err := crypto.ParseRSAPublicKey(secret)
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeWebhookVerificationSecret, "parse webhook public key", err)
	}
	return crypto.VerifyRSASHA256(pub, message, signature) == nil, nil
}

func verifyHMAC(h func() hash.Hash, secret, signature, message []byte) bool {
	return crypto.VerifyHMAC(h, secret, message, signature)
}

// SignHMACSHA256 returns the hex HMAC-SHA256 of message
func SignHMACSHA256(secret, message []byte) string {
	return hex.EncodeToString(crypto.HMAC(sha256.New, secret, message))
}

// DecodeSignature accepts hex or standard base64 signatures
func DecodeSignature(s string) ([]byte, error) {
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeWebhookSourceVerification, "signature is neither hex nor base64", err)
	}
	return b, nil
}

// VerifyLocal runs a connector's local verification. A missing signature is
// a failed verification, not an error.
func VerifyLocal(v LocalVerification, req WebhookRequest, secret WebhookSecret) (bool, error) {
	signature, err := v.Signature(req)
	if err != nil {
		return false, err
	}
	if len(signature) == 0 {
		return false, nil
	}
	message, err := v.Message(req, secret)
	if err != nil {
		return false, err
	}
	return v.Algorithm().Verify(secret.Secret, signature, message)
}

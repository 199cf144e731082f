package north

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/pkg/crypto"
)

// AuthConfig is a merchant's North credential set
type AuthConfig struct {
	// EPIId is the four-part key CUST_NBR-MERCH_NBR-DBA_NBR-TERMINAL_NBR
	EPIId    string
	EPIKey   string
	Terminal string
}

// authConfig reads North credentials out of a SignatureKey auth type:
// api_key is the EPI-Id, key1 the terminal and api_secret the EPI-Key
func authConfig(a connector.AuthType) (AuthConfig, error) {
	a, err := a.Expect(connector.AuthKindSignatureKey)
	if err != nil {
		return AuthConfig{}, err
	}
	return AuthConfig{EPIId: a.APIKey, EPIKey: a.APISecret, Terminal: a.Key1}, nil
}

// CalculateSignature is the hex HMAC-SHA256 of endpoint+payload under epiKey.
// Requests carry it in EPI-Signature and webhooks are signed the same way.
func CalculateSignature(epiKey, endpoint string, payload []byte) string {
	return hex.EncodeToString(crypto.HMAC(sha256.New, []byte(epiKey), signingMessage(endpoint, payload)))
}

// ValidateSignature checks a hex EPI-Signature in constant time
func ValidateSignature(epiKey, endpoint string, payload []byte, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return crypto.VerifyHMAC(sha256.New, []byte(epiKey), signingMessage(endpoint, payload), sig)
}

func signingMessage(endpoint string, payload []byte) []byte {
	msg := make([]byte, 0, len(endpoint)+len(payload))
	msg = append(msg, endpoint...)
	return append(msg, payload...)
}

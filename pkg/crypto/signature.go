// Package crypto holds the signature primitives used to authenticate
// connector webhooks.
package crypto

import (
	stdcrypto "crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"hash"
)

// ErrNoPEMBlock is returned when the input holds no PEM data
var ErrNoPEMBlock = errors.New("no PEM block found")

// HMAC returns the MAC of message under secret
func HMAC(h func() hash.Hash, secret, message []byte) []byte {
	mac := hmac.New(h, secret)
	mac.Write(message)
	return mac.Sum(nil)
}

// VerifyHMAC compares signature with the MAC of message in constant time
func VerifyHMAC(h func() hash.Hash, secret, message, signature []byte) bool {
	return hmac.Equal(HMAC(h, secret, message), signature)
}

// ParseRSAPublicKey reads a PEM encoded RSA public key. PKIX ("PUBLIC KEY"),
// PKCS#1 ("RSA PUBLIC KEY") and X.509 certificates are accepted.
func ParseRSAPublicKey(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrNoPEMBlock
	}

	var pub any
	switch block.Type {
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS#1 public key: %w", err)
		}
		return key, nil
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		pub = cert.PublicKey
	default:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		pub = key
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key: %T", pub)
	}
	return rsaPub, nil
}

// VerifyRSASHA256 checks a PKCS#1 v1.5 signature over the SHA-256 digest of message
func VerifyRSASHA256(key *rsa.PublicKey, message, signature []byte) error {
	digest := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(key, stdcrypto.SHA256, digest[:], signature)
}

// SignRSASHA256 signs the SHA-256 digest of message with PKCS#1 v1.5
func SignRSASHA256(key *rsa.PrivateKey, message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, stdcrypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return sig, nil
}

// GenerateRSAKey creates a key of the given size and returns it with its
// PKIX PEM public half, the form merchants store as a webhook secret.
func GenerateRSAKey(bits int) (*rsa.PrivateKey, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return key, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

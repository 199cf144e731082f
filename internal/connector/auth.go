package connector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kevin07696/payment-router/internal/domain"
)

// AuthKind tags which credential shape an AuthType carries
type AuthKind string

const (
	AuthKindHeaderKey    AuthKind = "HeaderKey"
	AuthKindBodyKey      AuthKind = "BodyKey"
	AuthKindSignatureKey AuthKind = "SignatureKey"
	AuthKindMultiAuthKey AuthKind = "MultiAuthKey"
	AuthKindCertificate  AuthKind = "CertificateAuth"
	AuthKindMutualTLS    AuthKind = "MutualTLS"
	AuthKindNoKey        AuthKind = "NoKey"
)

// AuthType is the merchant's credential set for one connector.
// Only the fields belonging to Kind are meaningful.
type AuthType struct {
	Kind AuthKind `json:"auth_type"`

	APIKey    string `json:"api_key,omitempty"`
	Key1      string `json:"key1,omitempty"`
	Key2      string `json:"key2,omitempty"`
	APISecret string `json:"api_secret,omitempty"`

	// Certificate and MutualTLS
	Certificate string `json:"certificate,omitempty"`
	PrivateKey  string `json:"private_key,omitempty"`
	CACert      string `json:"ca_certificate,omitempty"`
}

// CredentialStore yields a merchant's credentials for a connector
type CredentialStore interface {
	AuthType(ctx context.Context, merchantID, connectorName string) (AuthType, error)
}

// HeaderKey is a single API key sent in a header
func HeaderKey(apiKey string) AuthType {
	return AuthType{Kind: AuthKindHeaderKey, APIKey: apiKey}
}

// BodyKey is an API key plus a merchant identifier carried in the body
func BodyKey(apiKey, key1 string) AuthType {
	return AuthType{Kind: AuthKindBodyKey, APIKey: apiKey, Key1: key1}
}

// SignatureKey is an API key, identifier and signing secret
func SignatureKey(apiKey, key1, apiSecret string) AuthType {
	return AuthType{Kind: AuthKindSignatureKey, APIKey: apiKey, Key1: key1, APISecret: apiSecret}
}

// MultiAuthKey carries four opaque credential parts
func MultiAuthKey(apiKey, key1, key2, apiSecret string) AuthType {
	return AuthType{Kind: AuthKindMultiAuthKey, APIKey: apiKey, Key1: key1, Key2: key2, APISecret: apiSecret}
}

// CertificateAuth is a client certificate with its private key
func CertificateAuth(certificate, privateKey string) AuthType {
	return AuthType{Kind: AuthKindCertificate, Certificate: certificate, PrivateKey: privateKey}
}

// MutualTLS is a client certificate plus the CA used to pin the processor
func MutualTLS(certificate, privateKey, caCert string) AuthType {
	return AuthType{Kind: AuthKindMutualTLS, Certificate: certificate, PrivateKey: privateKey, CACert: caCert}
}

// NoKey means the connector needs no credentials
func NoKey() AuthType {
	return AuthType{Kind: AuthKindNoKey}
}

// ParseAuthType decodes a stored credential document
func ParseAuthType(raw []byte) (AuthType, error) {
	var a AuthType
	if err := json.Unmarshal(raw, &a); err != nil {
		return AuthType{}, domain.WrapError(domain.ErrorCodeFailedToObtainAuthType, "malformed connector credentials", err)
	}
	if err := a.Validate(); err != nil {
		return AuthType{}, err
	}
	return a, nil
}

// Validate checks that the fields required by Kind are present
func (a AuthType) Validate() error {
	missing := func(field string) error {
		return domain.NewDomainError(domain.ErrorCodeFailedToObtainAuthType,
			fmt.Sprintf("%s credentials missing %s", a.Kind, field))
	}

	switch a.Kind {
	case AuthKindHeaderKey:
		if a.APIKey == "" {
			return missing("api_key")
		}
	case AuthKindBodyKey:
		if a.APIKey == "" || a.Key1 == "" {
			return missing("api_key/key1")
		}
	case AuthKindSignatureKey:
		if a.APIKey == "" || a.Key1 == "" || a.APISecret == "" {
			return missing("api_key/key1/api_secret")
		}
	case AuthKindMultiAuthKey:
		if a.APIKey == "" || a.Key1 == "" || a.Key2 == "" || a.APISecret == "" {
			return missing("api_key/key1/key2/api_secret")
		}
	case AuthKindCertificate:
		if a.Certificate == "" || a.PrivateKey == "" {
			return missing("certificate/private_key")
		}
	case AuthKindMutualTLS:
		if a.Certificate == "" || a.PrivateKey == "" || a.CACert == "" {
			return missing("certificate/private_key/ca_certificate")
		}
	case AuthKindNoKey:
	default:
		return domain.NewDomainError(domain.ErrorCodeFailedToObtainAuthType,
			fmt.Sprintf("unknown auth type %q", a.Kind))
	}
	return nil
}

// Expect returns the credentials when they are of the wanted kind and
// fails fast with a config error otherwise
func (a AuthType) Expect(kind AuthKind) (AuthType, error) {
	if a.Kind != kind {
		return AuthType{}, domain.NewDomainError(domain.ErrorCodeFailedToObtainAuthType,
			fmt.Sprintf("expected %s credentials, got %s", kind, a.Kind))
	}
	if err := a.Validate(); err != nil {
		return AuthType{}, err
	}
	return a, nil
}

// String never prints secrets
func (a AuthType) String() string {
	return fmt.Sprintf("AuthType{%s}", a.Kind)
}

package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/kevin07696/payment-router/internal/connector"
	"github.com/kevin07696/payment-router/internal/domain"
	"github.com/kevin07696/payment-router/internal/domain/ports"
)

// SecretStore yields the merchant's webhook verification material for a connector
type SecretStore interface {
	WebhookSecret(ctx context.Context, merchantID, connectorName string) (connector.WebhookSecret, error)
}

// VerificationPolicy lists the connectors whose webhooks must be authenticated
// before they may change router state
type VerificationPolicy struct {
	mandatory map[string]bool
}

// NewVerificationPolicy marks the named connectors as mandatory
func NewVerificationPolicy(mandatory ...string) VerificationPolicy {
	p := VerificationPolicy{mandatory: make(map[string]bool, len(mandatory))}
	for _, name := range mandatory {
		p.mandatory[name] = true
	}
	return p
}

// IsMandatory reports whether connectorName requires verified webhooks
func (p VerificationPolicy) IsMandatory(connectorName string) bool {
	return p.mandatory[connectorName]
}

// Source is what a verifier needs to know about one incoming webhook
type Source struct {
	MerchantID string
	Connector  string
	Request    connector.WebhookRequest
	Reference  domain.ObjectReferenceID
	Secret     connector.WebhookSecret
}

// LocalVerifier checks a signature over the request without leaving the process
type LocalVerifier struct{}

// Verify runs the connector's signature algorithm against the secret
func (LocalVerifier) Verify(ctx context.Context, wh connector.IncomingWebhook, src Source) (bool, error) {
	lv, ok := wh.(connector.LocalVerification)
	if !ok {
		return false, domain.NewDomainError(domain.ErrorCodeConfigWebhookVerification,
			"connector declares local verification but has no signature algorithm").
			WithDetail("connector", src.Connector)
	}
	return connector.VerifyLocal(lv, src.Request, src.Secret)
}

// RemoteVerifier asks the processor whether it sent the webhook, through the
// connector's VerifyWebhookSource flow
type RemoteVerifier struct {
	registry    *connector.Registry
	executor    *connector.Executor
	credentials connector.CredentialStore
}

// NewRemoteVerifier creates a remote verifier
func NewRemoteVerifier(registry *connector.Registry, executor *connector.Executor, credentials connector.CredentialStore) *RemoteVerifier {
	return &RemoteVerifier{registry: registry, executor: executor, credentials: credentials}
}

// Verify executes FlowVerifyWebhookSource. A business error from the processor
// is an unverified webhook; build and transport failures are errors.
func (v *RemoteVerifier) Verify(ctx context.Context, src Source) (bool, error) {
	integ, err := v.registry.Resolve(src.Connector, domain.FlowVerifyWebhookSource)
	if err != nil {
		return false, err
	}

	auth, err := v.credentials.AuthType(ctx, src.MerchantID, src.Connector)
	if err != nil {
		return false, err
	}

	rd := &connector.RouterData{
		Flow:       domain.FlowVerifyWebhookSource,
		Connector:  src.Connector,
		MerchantID: src.MerchantID,
		Auth:       auth,
		WebhookVerify: &connector.VerifyWebhookSourceRequestData{
			Headers:   src.Request.Headers,
			Body:      src.Request.Body,
			Secret:    src.Secret,
			Reference: src.Reference,
		},
	}

	out, err := v.executor.Execute(ctx, integ, rd, connector.Trigger())
	if err != nil {
		return false, err
	}
	if out.Err != nil || out.WebhookVerified == nil {
		return false, nil
	}
	return *out.WebhookVerified, nil
}

// Verifier dispatches to the strategy each connector declares and applies the
// verification policy
type Verifier struct {
	secrets SecretStore
	local   LocalVerifier
	remote  *RemoteVerifier
	policy  VerificationPolicy
	logger  ports.Logger
}

// NewVerifier creates a verifier. remote may be nil when no connector uses
// remote verification.
func NewVerifier(secrets SecretStore, remote *RemoteVerifier, policy VerificationPolicy, logger ports.Logger) *Verifier {
	return &Verifier{secrets: secrets, remote: remote, policy: policy, logger: logger}
}

// Verify reports whether the webhook's source is authenticated.
//
// For connectors under mandatory verification every failure is returned: a
// missing strategy or secret as a configuration error and a failed check as
// ErrWebhookAuthentication. Other connectors never fail here; problems are
// logged and the webhook is treated as unverified.
func (v *Verifier) Verify(ctx context.Context, wh connector.IncomingWebhook, src Source) (bool, error) {
	mandatory := v.policy.IsMandatory(src.Connector)

	verified, err := v.verify(ctx, wh, src)
	if err != nil {
		if mandatory {
			return false, err
		}
		v.logger.Warn("Webhook source verification errored, continuing unverified",
			ports.String("merchant_id", src.MerchantID),
			ports.String("connector", src.Connector),
			ports.Err(err))
		return false, nil
	}

	if !verified && mandatory {
		return false, domain.ErrWebhookAuthentication
	}
	return verified, nil
}

func (v *Verifier) verify(ctx context.Context, wh connector.IncomingWebhook, src Source) (bool, error) {
	strategy := wh.VerificationStrategy()
	if strategy == connector.VerificationNone || strategy == "" {
		return false, domain.ErrConfigWebhookVerification
	}

	secret, err := v.secrets.WebhookSecret(ctx, src.MerchantID, src.Connector)
	if err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) && de.Code == domain.ErrorCodeWebhookVerificationSecret {
			return false, err
		}
		return false, domain.WrapError(domain.ErrorCodeWebhookVerificationSecret, "failed to fetch webhook secret", err)
	}
	src.Secret = secret

	switch strategy {
	case connector.VerificationLocal:
		return v.local.Verify(ctx, wh, src)
	case connector.VerificationRemote:
		if v.remote == nil {
			return false, domain.NewDomainError(domain.ErrorCodeConfigWebhookVerification, "remote verification is not configured")
		}
		ok, err := v.remote.Verify(ctx, src)
		if domain.IsDomainError(err, domain.ErrorCodeFlowNotSupported) {
			return false, domain.WrapError(domain.ErrorCodeConfigWebhookVerification,
				"connector declares remote verification but has no VerifyWebhookSource flow", err)
		}
		return ok, err
	default:
		return false, domain.NewDomainError(domain.ErrorCodeConfigWebhookVerification,
			fmt.Sprintf("unknown verification strategy %q", strategy))
	}
}

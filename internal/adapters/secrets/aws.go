package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	secretsmanagertypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/kevin07696/payment-router/internal/domain/ports"
)

// AWSConfig contains configuration for AWS Secrets Manager
type AWSConfig struct {
	// AWS Region (e.g., "us-east-1")
	Region string
	// Optional: AWS profile name for local development
	Profile string
	// Optional: custom endpoint, e.g. LocalStack
	Endpoint string
}

// secretsManagerAPI is the part of the SDK client the manager uses
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSManager reads secrets from AWS Secrets Manager
type AWSManager struct {
	client secretsManagerAPI
	logger ports.Logger
}

// NewAWSManager loads the default credential chain and creates a client
func NewAWSManager(ctx context.Context, cfg AWSConfig, logger ports.Logger) (*AWSManager, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOptions []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("AWS Secrets Manager initialized", ports.String("region", cfg.Region))

	return &AWSManager{
		client: secretsmanager.NewFromConfig(awsConfig, clientOptions...),
		logger: logger,
	}, nil
}

// GetSecret retrieves a secret by name or ARN
func (m *AWSManager) GetSecret(ctx context.Context, path string) (*Secret, error) {
	start := time.Now()
	result, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(path),
	})
	if err != nil {
		var notFound *secretsmanagertypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
		}
		m.logger.Error("Failed to retrieve secret",
			ports.String("path", path),
			ports.Err(err))
		return nil, fmt.Errorf("failed to get secret %s: %w", path, err)
	}

	m.logger.Debug("Secret retrieved",
		ports.String("path", path),
		ports.Duration("elapsed", time.Since(start)))

	value := aws.ToString(result.SecretString)
	if result.SecretString == nil && result.SecretBinary != nil {
		value = string(result.SecretBinary)
	}
	return &Secret{Value: value, Version: aws.ToString(result.VersionId)}, nil
}

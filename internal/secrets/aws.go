package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads secrets from AWS Secrets Manager. The secret id is the
// configured prefix followed by the secret name.
type AWSProvider struct {
	client SecretsManagerAPI
	prefix string
}

// NewAWSProvider wraps an existing client.
func NewAWSProvider(client SecretsManagerAPI, prefix string) *AWSProvider {
	return &AWSProvider{client: client, prefix: prefix}
}

// NewAWSProviderFromConfig loads the default AWS credential chain.
func NewAWSProviderFromConfig(ctx context.Context, prefix string) (*AWSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return NewAWSProvider(secretsmanager.NewFromConfig(cfg), prefix), nil
}

func (p *AWSProvider) Name() string { return "aws-secretsmanager" }

func (p *AWSProvider) Resolve(ctx context.Context, name string) (string, error) {
	id := p.prefix + name
	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var rnf *types.ResourceNotFoundException
		if errors.As(err, &rnf) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("secrets manager %s for %s: %s", apiErr.ErrorCode(), id, apiErr.ErrorMessage())
		}
		return "", fmt.Errorf("fetching %s: %w", id, err)
	}

	switch {
	case out.SecretString != nil && *out.SecretString != "":
		return *out.SecretString, nil
	case len(out.SecretBinary) > 0:
		return string(out.SecretBinary), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrEmpty, id)
	}
}

// Package aws implements the cloud.Provider for AWS using caller-supplied
// temporary credentials. Authorize calls STS GetCallerIdentity and GetSecret
// calls Secrets Manager GetSecretValue.
package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/systmms/apivault/internal/cloud"
	apierrors "github.com/systmms/apivault/internal/errors"
	"github.com/systmms/apivault/internal/logging"
)

const (
	authorizeFallback = "Failed to authenticate with AWS. An unknown error occurred"
	getSecretFallback = "Failed to get Secret. An unknown error occurred"
)

// STSAPI is the subset of the STS client used by the provider
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// SecretsManagerAPI is the subset of the Secrets Manager client used by the provider
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Provider talks to AWS with one temporary credential
type Provider struct {
	region   string
	endpoint string
	sts      STSAPI
	sm       SecretsManagerAPI
	logger   *logging.Logger
}

// Option configures a Provider
type Option func(*Provider)

// WithSTSClient sets a custom STS client (for testing)
func WithSTSClient(client STSAPI) Option {
	return func(p *Provider) {
		p.sts = client
	}
}

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerAPI) Option {
	return func(p *Provider) {
		p.sm = client
	}
}

// WithEndpoint points both clients at a custom endpoint such as LocalStack
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(logger *logging.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// New creates a provider for cred. No network calls are made.
func New(cred cloud.AWSTemporaryCredential, opts ...Option) (*Provider, error) {
	p := &Provider{
		region: cred.Region,
		logger: logging.Discard(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.sts != nil && p.sm != nil {
		return p, nil
	}

	// built by hand so AWS_PROFILE and the shared config files cannot
	// override or break the caller's explicit credential
	static := credentials.NewStaticCredentialsProvider(cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken)
	cfg := awssdk.Config{
		Region:      cred.Region,
		Credentials: awssdk.NewCredentialsCache(static),
	}

	if p.sts == nil {
		var stsOpts []func(*sts.Options)
		if p.endpoint != "" {
			stsOpts = append(stsOpts, func(o *sts.Options) {
				o.BaseEndpoint = awssdk.String(p.endpoint)
			})
		}
		p.sts = sts.NewFromConfig(cfg, stsOpts...)
	}
	if p.sm == nil {
		var smOpts []func(*secretsmanager.Options)
		if p.endpoint != "" {
			smOpts = append(smOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = awssdk.String(p.endpoint)
			})
		}
		p.sm = secretsmanager.NewFromConfig(cfg, smOpts...)
	}

	return p, nil
}

// NewFactory returns a cloud.Factory building AWS providers with opts
func NewFactory(opts ...Option) cloud.Factory {
	return func(cred cloud.Credential) (cloud.Provider, error) {
		awsCred, ok := cred.(cloud.AWSTemporaryCredential)
		if !ok {
			if ptr, isPtr := cred.(*cloud.AWSTemporaryCredential); isPtr && ptr != nil {
				awsCred, ok = *ptr, true
			}
		}
		if !ok {
			return nil, apierrors.InvalidArgument("aws provider requires an AWS temporary credential, got %T", cred)
		}
		return New(awsCred, opts...)
	}
}

// Register adds the AWS factory to reg
func Register(reg *cloud.Registry, opts ...Option) {
	reg.Register(cloud.AWS, NewFactory(opts...))
}

// Name implements cloud.Provider
func (p *Provider) Name() cloud.ProviderName {
	return cloud.AWS
}

// Authorize confirms the credential by asking STS who the caller is
func (p *Provider) Authorize(ctx context.Context) cloud.ServiceResult[cloud.Identity] {
	out, err := p.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		p.logger.Debug("GetCallerIdentity failed in %s: %v", p.region, err)
		return cloud.Fail[cloud.Identity](cloud.Normalize(classify(err), messageFor, authorizeFallback))
	}

	return cloud.Ok(cloud.Identity{
		Account: awssdk.ToString(out.Account),
		ARN:     awssdk.ToString(out.Arn),
		UserID:  awssdk.ToString(out.UserId),
	})
}

// GetSecret fetches secretName, pinned by VersionID and VersionStage when set
func (p *Provider) GetSecret(ctx context.Context, secretName string, cfg *cloud.SecretConfig) cloud.ServiceResult[cloud.Secret] {
	input := &secretsmanager.GetSecretValueInput{
		SecretId: awssdk.String(secretName),
	}
	if cfg != nil {
		if cfg.VersionID != "" {
			input.VersionId = awssdk.String(cfg.VersionID)
		}
		if cfg.VersionStage != "" {
			input.VersionStage = awssdk.String(cfg.VersionStage)
		}
	}

	out, err := p.sm.GetSecretValue(ctx, input)
	if err != nil {
		p.logger.Debug("GetSecretValue %s failed: %v", secretName, err)
		return cloud.Fail[cloud.Secret](cloud.Normalize(classify(err), messageFor, getSecretFallback))
	}

	secret := cloud.Secret{
		Name:          awssdk.ToString(out.Name),
		ARN:           awssdk.ToString(out.ARN),
		VersionID:     awssdk.ToString(out.VersionId),
		VersionStages: out.VersionStages,
		SecretString:  awssdk.ToString(out.SecretString),
		SecretBinary:  out.SecretBinary,
		CreatedDate:   out.CreatedDate,
	}
	if secret.Name == "" {
		secret.Name = secretName
	}
	return cloud.Ok(secret)
}

// UniqueCacheKey implements cloud.Provider
func (p *Provider) UniqueCacheKey(secretName string, cfg *cloud.SecretConfig) string {
	return cloud.CacheKey(cloud.AWS, secretName, cfg)
}

package cloud

import (
	"context"
	"fmt"
	"time"
)

// ProviderName identifies a cloud secret provider
type ProviderName string

const (
	AWS   ProviderName = "aws"
	Azure ProviderName = "azure"
	GCP   ProviderName = "gcp"
)

// DisplayName returns the human-readable provider name
func DisplayName(name ProviderName) string {
	switch name {
	case AWS:
		return "AWS"
	case Azure:
		return "Azure"
	case GCP:
		return "GCP"
	default:
		return ""
	}
}

// Credential is implemented by every provider-specific credential type
type Credential interface {
	ProviderName() ProviderName
}

// AWSCredentialType distinguishes the supported AWS credential kinds
type AWSCredentialType string

// AWSTemporaryCredentialType is a set of STS temporary security credentials
const AWSTemporaryCredentialType AWSCredentialType = "temporary"

// AWSTemporaryCredential holds caller-supplied temporary AWS credentials.
// It is request-scoped and never persisted by apivault.
type AWSTemporaryCredential struct {
	Type            AWSCredentialType `json:"type" yaml:"type"`
	AccessKeyID     string            `json:"accessKeyId" yaml:"accessKeyId"`
	SecretAccessKey string            `json:"secretAccessKey" yaml:"secretAccessKey"`
	SessionToken    string            `json:"sessionToken" yaml:"sessionToken"`
	Region          string            `json:"region" yaml:"region"`
}

// ProviderName implements Credential
func (c AWSTemporaryCredential) ProviderName() ProviderName {
	return AWS
}

// String keeps key material out of logs and error messages
func (c AWSTemporaryCredential) String() string {
	return fmt.Sprintf("AWSTemporaryCredential{region=%s, accessKeyId=[REDACTED]}", c.Region)
}

// GoString implements fmt.GoStringer for %#v
func (c AWSTemporaryCredential) GoString() string {
	return c.String()
}

// SecretType says how a fetched secret string should be read
type SecretType string

const (
	SecretTypePlaintext SecretType = "plaintext"
	SecretTypeKeyValue  SecretType = "kv"
)

// SecretConfig carries optional request qualifiers. VersionID and
// VersionStage select what is fetched and take part in the cache key;
// SecretType and SecretKey only select from the fetched payload.
type SecretConfig struct {
	VersionID    string     `json:"versionId,omitempty" yaml:"versionId,omitempty"`
	VersionStage string     `json:"versionStage,omitempty" yaml:"versionStage,omitempty"`
	SecretType   SecretType `json:"secretType,omitempty" yaml:"secretType,omitempty"`
	SecretKey    string     `json:"secretKey,omitempty" yaml:"secretKey,omitempty"`
}

// Identity is the caller identity confirmed by Authorize
type Identity struct {
	Account string `json:"account"`
	ARN     string `json:"arn"`
	UserID  string `json:"userId"`
}

// Secret is a fetched secret value with its version metadata
type Secret struct {
	Name          string     `json:"name"`
	ARN           string     `json:"arn,omitempty"`
	VersionID     string     `json:"versionId,omitempty"`
	VersionStages []string   `json:"versionStages,omitempty"`
	SecretString  string     `json:"secretString,omitempty"`
	SecretBinary  []byte     `json:"secretBinary,omitempty"`
	CreatedDate   *time.Time `json:"createdDate,omitempty"`
}

// Clone returns a deep copy so cached secrets are never shared with callers
func (s Secret) Clone() Secret {
	out := s
	if s.VersionStages != nil {
		out.VersionStages = append([]string(nil), s.VersionStages...)
	}
	if s.SecretBinary != nil {
		out.SecretBinary = append([]byte(nil), s.SecretBinary...)
	}
	if s.CreatedDate != nil {
		t := *s.CreatedDate
		out.CreatedDate = &t
	}
	return out
}

// ServiceError is the normalized failure shape
type ServiceError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.ErrorMessage)
}

// ServiceResult is the uniform return envelope of provider and orchestrator
// operations
type ServiceResult[T any] struct {
	Success bool          `json:"success"`
	Result  *T            `json:"result"`
	Error   *ServiceError `json:"error,omitempty"`
}

// Ok wraps a successful result
func Ok[T any](v T) ServiceResult[T] {
	return ServiceResult[T]{Success: true, Result: &v}
}

// Fail wraps a normalized failure
func Fail[T any](e ServiceError) ServiceResult[T] {
	return ServiceResult[T]{Success: false, Error: &e}
}

// Provider is the capability set every cloud secret provider implements
type Provider interface {
	// Name returns the registry name of the provider
	Name() ProviderName

	// Authorize exchanges the credential for an identity confirmation
	Authorize(ctx context.Context) ServiceResult[Identity]

	// GetSecret fetches a secret, optionally pinned by cfg
	GetSecret(ctx context.Context, secretName string, cfg *SecretConfig) ServiceResult[Secret]

	// UniqueCacheKey derives the cache key for a GetSecret request. It is
	// pure and deterministic.
	UniqueCacheKey(secretName string, cfg *SecretConfig) string
}

package cloud_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/apivault/internal/cloud"
	apierrors "github.com/systmms/apivault/internal/errors"
)

func TestCacheKey(t *testing.T) {
	t.Parallel()

	empty := cloud.CacheKey(cloud.AWS, "db-password", nil)
	assert.Len(t, empty, 32)
	assert.Equal(t, empty, cloud.CacheKey(cloud.AWS, "db-password", &cloud.SecretConfig{}))

	pinned := cloud.CacheKey(cloud.AWS, "db-password", &cloud.SecretConfig{VersionID: "v1"})
	assert.NotEqual(t, empty, pinned)
	assert.Equal(t, pinned, cloud.CacheKey(cloud.AWS, "db-password", &cloud.SecretConfig{VersionID: "v1"}))

	staged := cloud.CacheKey(cloud.AWS, "db-password", &cloud.SecretConfig{VersionStage: "v1"})
	assert.NotEqual(t, pinned, staged, "versionId and versionStage occupy different positions")

	// Selection qualifiers do not change what is fetched
	kv := cloud.CacheKey(cloud.AWS, "db-password", &cloud.SecretConfig{SecretType: cloud.SecretTypeKeyValue, SecretKey: "user"})
	assert.Equal(t, empty, kv)

	assert.NotEqual(t, empty, cloud.CacheKey(cloud.AWS, "other", nil))
	assert.NotEqual(t, empty, cloud.CacheKey(cloud.Azure, "db-password", nil))
}

func TestCacheKeyKnownValue(t *testing.T) {
	t.Parallel()

	// md5 of "aws:x::"
	assert.Equal(t, "617204d2d59ab0ff848fd88b8dc0522b", cloud.CacheKey(cloud.AWS, "x", nil))
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name cloud.ProviderName
		want string
	}{
		{cloud.AWS, "AWS"},
		{cloud.Azure, "Azure"},
		{cloud.GCP, "GCP"},
		{"vault", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cloud.DisplayName(tt.name))
	}
}

func TestCredentialRedaction(t *testing.T) {
	t.Parallel()

	cred := cloud.AWSTemporaryCredential{
		Type:            cloud.AWSTemporaryCredentialType,
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "very-secret-key",
		SessionToken:    "session-token-value",
		Region:          "eu-west-1",
	}

	for _, s := range []string{cred.String(), fmt.Sprintf("%v", cred), fmt.Sprintf("%#v", cred)} {
		assert.NotContains(t, s, "very-secret-key")
		assert.NotContains(t, s, "session-token-value")
		assert.NotContains(t, s, "AKIAEXAMPLE")
		assert.Contains(t, s, "eu-west-1")
	}
	assert.Equal(t, cloud.AWS, cred.ProviderName())
}

func TestSecretClone(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := cloud.Secret{
		Name:          "api-key",
		VersionStages: []string{"AWSCURRENT"},
		SecretBinary:  []byte{1, 2, 3},
		CreatedDate:   &created,
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	clone.VersionStages[0] = "AWSPREVIOUS"
	clone.SecretBinary[0] = 9
	*clone.CreatedDate = created.Add(time.Hour)

	assert.Equal(t, "AWSCURRENT", orig.VersionStages[0])
	assert.Equal(t, byte(1), orig.SecretBinary[0])
	assert.Equal(t, created, *orig.CreatedDate)
}

func TestServiceResultJSON(t *testing.T) {
	t.Parallel()

	ok := cloud.Ok(cloud.Identity{Account: "123456789012"})
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"result":{"account":"123456789012","arn":"","userId":""}}`, string(data))

	fail := cloud.Fail[cloud.Secret](cloud.ServiceError{ErrorCode: "E", ErrorMessage: "m"})
	data, err = json.Marshal(fail)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"result":null,"error":{"errorCode":"E","errorMessage":"m"}}`, string(data))
	assert.EqualError(t, fail.Error, "E: m")
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	messages := func(kind cloud.ErrorKind, providerMessage string) string {
		if kind == cloud.KindResourceNotFound {
			return "not found"
		}
		return providerMessage
	}

	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "classified kind uses mapped message",
			err:      &cloud.TransportError{Kind: cloud.KindResourceNotFound, Code: "ResourceNotFoundException", Message: "raw"},
			wantCode: "ResourceNotFoundException",
			wantMsg:  "not found",
		},
		{
			name:     "wrapped transport error is found",
			err:      fmt.Errorf("call: %w", &cloud.TransportError{Kind: cloud.KindResourceNotFound, Code: "ResourceNotFoundException"}),
			wantCode: "ResourceNotFoundException",
			wantMsg:  "not found",
		},
		{
			name:     "unknown kind keeps provider message",
			err:      &cloud.TransportError{Kind: cloud.KindUnknown, Code: "ExpiredTokenException", Message: "token expired"},
			wantCode: "ExpiredTokenException",
			wantMsg:  "token expired",
		},
		{
			name:     "missing code and message fall back",
			err:      &cloud.TransportError{Kind: cloud.KindUnknown},
			wantCode: cloud.UnknownErrorCode,
			wantMsg:  "fallback",
		},
		{
			name:     "plain error keeps its text",
			err:      fmt.Errorf("dial tcp: i/o timeout"),
			wantCode: cloud.UnknownErrorCode,
			wantMsg:  "dial tcp: i/o timeout",
		},
		{
			name:     "nil error",
			err:      nil,
			wantCode: cloud.UnknownErrorCode,
			wantMsg:  "fallback",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := cloud.Normalize(tt.err, messages, "fallback")
			assert.Equal(t, tt.wantCode, got.ErrorCode)
			assert.Equal(t, tt.wantMsg, got.ErrorMessage)
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("inner")
	err := &cloud.TransportError{Kind: cloud.KindInternalService, Code: "InternalServiceError", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "InternalServiceError")
}

type stubProvider struct {
	cred cloud.Credential
}

func (s *stubProvider) Name() cloud.ProviderName { return cloud.AWS }

func (s *stubProvider) Authorize(ctx context.Context) cloud.ServiceResult[cloud.Identity] {
	return cloud.Ok(cloud.Identity{})
}

func (s *stubProvider) GetSecret(ctx context.Context, name string, cfg *cloud.SecretConfig) cloud.ServiceResult[cloud.Secret] {
	return cloud.Ok(cloud.Secret{Name: name})
}

func (s *stubProvider) UniqueCacheKey(name string, cfg *cloud.SecretConfig) string {
	return cloud.CacheKey(cloud.AWS, name, cfg)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := cloud.NewRegistry()
	reg.Register(cloud.AWS, func(cred cloud.Credential) (cloud.Provider, error) {
		return &stubProvider{cred: cred}, nil
	})

	assert.True(t, reg.IsSupported(cloud.AWS))
	assert.False(t, reg.IsSupported(cloud.GCP))
	assert.Equal(t, []cloud.ProviderName{cloud.AWS}, reg.Names())

	p, err := reg.New(cloud.AWS, cloud.AWSTemporaryCredential{Region: "us-east-1"})
	require.NoError(t, err)
	assert.Equal(t, cloud.AWS, p.Name())

	_, err = reg.New(cloud.Azure, cloud.AWSTemporaryCredential{})
	assert.ErrorIs(t, err, apierrors.ErrUnknownProvider)

	_, err = reg.New(cloud.AWS, nil)
	assert.ErrorIs(t, err, apierrors.ErrInvalidArgument)
}

func TestExtractValue(t *testing.T) {
	t.Parallel()

	kvSecret := cloud.Secret{Name: "db", SecretString: `{"user":"admin","port":5432,"tls":true,"opts":{"a":1}}`}

	tests := []struct {
		name    string
		secret  cloud.Secret
		cfg     *cloud.SecretConfig
		want    string
		wantErr bool
	}{
		{"plaintext without config", cloud.Secret{SecretString: "s3cr3t"}, nil, "s3cr3t", false},
		{"binary payload", cloud.Secret{SecretBinary: []byte("bin")}, nil, "bin", false},
		{"kv without key returns whole payload", kvSecret, &cloud.SecretConfig{SecretType: cloud.SecretTypeKeyValue}, kvSecret.SecretString, false},
		{"kv string field", kvSecret, &cloud.SecretConfig{SecretType: cloud.SecretTypeKeyValue, SecretKey: "user"}, "admin", false},
		{"kv number field", kvSecret, &cloud.SecretConfig{SecretType: cloud.SecretTypeKeyValue, SecretKey: "port"}, "5432", false},
		{"kv bool field", kvSecret, &cloud.SecretConfig{SecretType: cloud.SecretTypeKeyValue, SecretKey: "tls"}, "true", false},
		{"kv object field", kvSecret, &cloud.SecretConfig{SecretType: cloud.SecretTypeKeyValue, SecretKey: "opts"}, `{"a":1}`, false},
		{"kv missing field", kvSecret, &cloud.SecretConfig{SecretType: cloud.SecretTypeKeyValue, SecretKey: "nope"}, "", true},
		{"kv on non-json", cloud.Secret{SecretString: "plain"}, &cloud.SecretConfig{SecretType: cloud.SecretTypeKeyValue, SecretKey: "user"}, "", true},
		{"plaintext ignores key", kvSecret, &cloud.SecretConfig{SecretType: cloud.SecretTypePlaintext, SecretKey: "user"}, kvSecret.SecretString, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := cloud.ExtractValue(tt.secret, tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCredential(t *testing.T) {
	t.Parallel()

	cred, err := cloud.ParseCredential(cloud.AWS, json.RawMessage(`{"accessKeyId":"AKIA","secretAccessKey":"s","region":"eu-west-1"}`))
	require.NoError(t, err)
	aws, ok := cred.(cloud.AWSTemporaryCredential)
	require.True(t, ok)
	assert.Equal(t, cloud.AWSTemporaryCredentialType, aws.Type)
	assert.Equal(t, "eu-west-1", aws.Region)

	tests := []struct {
		name    string
		prov    cloud.ProviderName
		raw     string
		wantErr error
	}{
		{"empty", cloud.AWS, "", apierrors.ErrInvalidArgument},
		{"not json", cloud.AWS, "{", apierrors.ErrInvalidArgument},
		{"wrong type", cloud.AWS, `{"type":"sso","accessKeyId":"a","secretAccessKey":"b"}`, apierrors.ErrInvalidArgument},
		{"missing secret", cloud.AWS, `{"accessKeyId":"a"}`, apierrors.ErrInvalidArgument},
		{"unknown provider", cloud.Azure, `{}`, apierrors.ErrUnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := cloud.ParseCredential(tt.prov, json.RawMessage(tt.raw))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// Package awsfake provides in-memory STS and Secrets Manager clients for
// tests of code built on the aws provider.
package awsfake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// SecretData holds the data for a fake secret
type SecretData struct {
	SecretString  *string
	SecretBinary  []byte
	VersionId     *string
	VersionStages []string
	CreatedDate   *time.Time
}

// SecretsManagerClient is a fake implementation of the Secrets Manager API
type SecretsManagerClient struct {
	mu sync.Mutex
	// Secrets maps secret names to their data
	Secrets map[string]*SecretData
	// Errors maps secret names to errors to return
	Errors map[string]error
	// GetSecretValueFunc allows custom behavior for GetSecretValue
	GetSecretValueFunc func(ctx context.Context, params *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error)

	calls  int
	inputs []*secretsmanager.GetSecretValueInput
}

// NewSecretsManagerClient creates an empty fake Secrets Manager client
func NewSecretsManagerClient() *SecretsManagerClient {
	return &SecretsManagerClient{
		Secrets: make(map[string]*SecretData),
		Errors:  make(map[string]error),
	}
}

// AddSecretString adds a string secret to the fake client
func (f *SecretsManagerClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.Secrets[name] = &SecretData{
		SecretString:  aws.String(value),
		VersionId:     aws.String(fmt.Sprintf("%s-v1", name)),
		VersionStages: []string{"AWSCURRENT"},
		CreatedDate:   &created,
	}
}

// AddError makes lookups of name fail with err
func (f *SecretsManagerClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

// Calls returns how many GetSecretValue calls were made
func (f *SecretsManagerClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastInput returns the most recent GetSecretValue input, or nil
func (f *SecretsManagerClient) LastInput() *secretsmanager.GetSecretValueInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil
	}
	return f.inputs[len(f.inputs)-1]
}

// GetSecretValue implements the Secrets Manager API
func (f *SecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	f.calls++
	f.inputs = append(f.inputs, params)
	fn := f.GetSecretValueFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, params)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if err, exists := f.Errors[name]; exists {
		return nil, err
	}

	data, exists := f.Secrets[name]
	if !exists {
		return nil, &types.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
		}
	}

	return &secretsmanager.GetSecretValueOutput{
		ARN:           aws.String(fmt.Sprintf("arn:aws:secretsmanager:us-east-1:123456789012:secret:%s", name)),
		Name:          aws.String(name),
		SecretString:  data.SecretString,
		SecretBinary:  data.SecretBinary,
		VersionId:     data.VersionId,
		VersionStages: data.VersionStages,
		CreatedDate:   data.CreatedDate,
	}, nil
}

// STSClient is a fake implementation of the STS API
type STSClient struct {
	Account string
	Arn     string
	UserId  string
	// Err is returned by GetCallerIdentity when set
	Err error
	// GetCallerIdentityFunc allows custom behavior for GetCallerIdentity
	GetCallerIdentityFunc func(ctx context.Context, params *sts.GetCallerIdentityInput) (*sts.GetCallerIdentityOutput, error)
}

// NewSTSClient creates a fake STS client with a fixed identity
func NewSTSClient() *STSClient {
	return &STSClient{
		Account: "123456789012",
		Arn:     "arn:aws:sts::123456789012:assumed-role/dev/session",
		UserId:  "AROAEXAMPLE:session",
	}
}

// GetCallerIdentity implements the STS API
func (f *STSClient) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if f.GetCallerIdentityFunc != nil {
		return f.GetCallerIdentityFunc(ctx, params)
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(f.Account),
		Arn:     aws.String(f.Arn),
		UserId:  aws.String(f.UserId),
	}, nil
}

package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Precondition sentinels. These signal programming errors at the call site
// rather than environmental failures, so callers should not retry on them.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownProvider = errors.New("unknown cloud service provider")
)

// InvalidArgument returns an error wrapping ErrInvalidArgument
func InvalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// UnknownProvider returns an error wrapping ErrUnknownProvider
func UnknownProvider(name string) error {
	return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a settings or session file error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// ProviderError enhances provider or vault backend errors with context
func ProviderError(provider string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s error during %s", provider, operation),
		Suggestion: getProviderSuggestion(provider, err),
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on provider and error
func getProviderSuggestion(provider string, err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()

	switch provider {
	case "aws":
		if strings.Contains(errStr, "ExpiredToken") || strings.Contains(errStr, "InvalidClientTokenId") {
			return "Temporary credentials have expired. Request a new session token and update the cloud credential"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:GetSecretValue and sts:GetCallerIdentity"
		}
		if strings.Contains(errStr, "ResourceNotFoundException") {
			return "Verify the secret name or ARN and the credential region"
		}
		if strings.Contains(errStr, "ThrottlingException") {
			return "AWS rate limit exceeded. Wait a moment and try again"
		}

	case "vault":
		if strings.Contains(errStr, "vault key invalid") {
			return "Check the vault key you entered. If it is lost, reset it with 'apivault vault-key reset'"
		}
		if strings.Contains(errStr, "salt") {
			return "Register a vault key first with 'apivault vault-key register'"
		}
		if strings.Contains(errStr, "409") {
			return "A vault key already exists for this account. Use 'apivault vault-key reset' to replace it"
		}
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and backend URL setting"
	}
	if IsRetryable(err) {
		return "This looks like a temporary failure. Try again in a moment"
	}

	return ""
}

// IsRetryable reports whether an error looks transient. Nothing in apivault
// retries automatically; this only shapes the hint given to the user.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	var userErr UserError
	if errors.As(err, &userErr) {
		return err
	}
	var cfgErr ConfigError
	if errors.As(err, &cfgErr) {
		return err
	}

	if errors.Is(err, ErrUnknownProvider) {
		return UserError{
			Message:    "Unsupported cloud service provider",
			Suggestion: "Run 'apivault providers' to list the registered providers",
			Err:        err,
		}
	}

	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}
	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions of the settings and session files",
			Err:        err,
		}
	}

	return err
}

package cloud

import (
	"encoding/json"
	"fmt"
)

// ExtractValue returns the usable value of a fetched secret. For a kv secret
// with a SecretKey it returns that field of the JSON object; otherwise the
// secret string, or the binary payload as a string.
func ExtractValue(secret Secret, cfg *SecretConfig) (string, error) {
	raw := secret.SecretString
	if raw == "" && secret.SecretBinary != nil {
		raw = string(secret.SecretBinary)
	}

	if cfg == nil || cfg.SecretType != SecretTypeKeyValue || cfg.SecretKey == "" {
		return raw, nil
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", fmt.Errorf("secret %q is not a key/value secret: %w", secret.Name, err)
	}

	val, exists := data[cfg.SecretKey]
	if !exists {
		return "", fmt.Errorf("field '%s' not found in secret %q", cfg.SecretKey, secret.Name)
	}

	switch v := val.(type) {
	case string:
		return v, nil
	case float64:
		return fmt.Sprintf("%v", v), nil
	case bool:
		return fmt.Sprintf("%t", v), nil
	case nil:
		return "", nil
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal field '%s': %w", cfg.SecretKey, err)
		}
		return string(bytes), nil
	}
}

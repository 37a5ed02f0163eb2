package vaultkey

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

const (
	vaultKeySize = 32
	saltSize     = 32
	secretSize   = 32
)

// JWK is the exported form of a vault key
type JWK struct {
	Alg    string   `json:"alg"`
	Ext    bool     `json:"ext"`
	K      string   `json:"k"`
	KeyOps []string `json:"key_ops"`
	Kty    string   `json:"kty"`
}

func randomBytes(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return buf, nil
}

// GenerateVaultKey creates a new 256-bit AES-GCM key and returns its
// transport encoding: the JWK as JSON, standard base64 encoded
func GenerateVaultKey() (string, error) {
	return generateVaultKey(rand.Reader)
}

func generateVaultKey(r io.Reader) (string, error) {
	raw, err := randomBytes(r, vaultKeySize)
	if err != nil {
		return "", err
	}

	return Base64Encode(JWK{
		Alg:    "A256GCM",
		Ext:    true,
		K:      base64.RawURLEncoding.EncodeToString(raw),
		KeyOps: []string{"encrypt", "decrypt"},
		Kty:    "oct",
	}), nil
}

// GenerateSalt returns 32 random bytes as hex
func GenerateSalt() (string, error) {
	return generateSalt(rand.Reader)
}

func generateSalt(r io.Reader) (string, error) {
	raw, err := randomBytes(r, saltSize)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// ComputeVerifierHex derives the hex verifier for an account from a hex salt
// and an encoded vault key. The SRP password is the base64-decoded vault key.
func ComputeVerifierHex(saltHex, accountID, vaultKey string) (string, error) {
	salt, err := decodeSalt(saltHex)
	if err != nil {
		return "", err
	}
	password, err := decodeVaultKey(vaultKey)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ComputeVerifier(Group2048, salt, []byte(accountID), password)), nil
}

func decodeSalt(saltHex string) ([]byte, error) {
	if saltHex == "" {
		return nil, ErrSaltMissing
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("%w: salt is not hex", ErrSaltMissing)
	}
	return salt, nil
}

// decodeVaultKey accepts standard or URL-safe base64, padded or not
func decodeVaultKey(vaultKey string) ([]byte, error) {
	if vaultKey == "" {
		return nil, ErrVaultKeyInvalid
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if raw, err := enc.DecodeString(vaultKey); err == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: not base64", ErrVaultKeyInvalid)
}

// Base64Encode encodes a string as UTF-8 base64. Any other value is JSON
// encoded first.
func Base64Encode(v interface{}) string {
	var data []byte
	switch val := v.(type) {
	case string:
		data = []byte(val)
	case []byte:
		data = val
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		data = encoded
	}
	return base64.StdEncoding.EncodeToString(data)
}

// Base64DecodeString decodes s. Input that is not base64 is returned as is.
func Base64DecodeString(s string) string {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	return string(raw)
}

// Base64DecodeJSON decodes s and parses it as JSON. On any failure the
// input string is returned unchanged.
func Base64DecodeJSON(s string) interface{} {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return s
	}
	return out
}

// ParseVaultKey decodes an encoded vault key into its JWK
func ParseVaultKey(vaultKey string) (JWK, error) {
	raw, err := base64.StdEncoding.DecodeString(vaultKey)
	if err != nil {
		return JWK{}, fmt.Errorf("%w: not base64", ErrVaultKeyInvalid)
	}
	var jwk JWK
	if err := json.Unmarshal(raw, &jwk); err != nil {
		return JWK{}, fmt.Errorf("%w: not a JSON web key", ErrVaultKeyInvalid)
	}
	if jwk.Kty != "oct" || jwk.K == "" {
		return JWK{}, fmt.Errorf("%w: not a symmetric key", ErrVaultKeyInvalid)
	}
	return jwk, nil
}

package vaultkey

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVaultKeyFormat(t *testing.T) {
	t.Parallel()

	key, err := generateVaultKey(bytes.NewReader(bytes.Repeat([]byte{0xab}, 32)))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(key)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "A256GCM", fields["alg"])
	assert.Equal(t, true, fields["ext"])
	assert.Equal(t, "oct", fields["kty"])
	assert.Equal(t, []interface{}{"encrypt", "decrypt"}, fields["key_ops"])

	k, err := base64.RawURLEncoding.DecodeString(fields["k"].(string))
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xab}, 32), k)

	jwk, err := ParseVaultKey(key)
	require.NoError(t, err)
	assert.Equal(t, "A256GCM", jwk.Alg)
}

func TestGenerateVaultKeyUnique(t *testing.T) {
	t.Parallel()

	a, err := GenerateVaultKey()
	require.NoError(t, err)
	b, err := GenerateVaultKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGenerateFailsOnShortRandom(t *testing.T) {
	t.Parallel()

	_, err := generateVaultKey(bytes.NewReader([]byte{1, 2, 3}))
	assert.Error(t, err)
	_, err = generateSalt(bytes.NewReader(nil))
	assert.Error(t, err)
}

func TestGenerateSalt(t *testing.T) {
	t.Parallel()

	salt, err := GenerateSalt()
	require.NoError(t, err)
	assert.Len(t, salt, 64)
	_, err = hex.DecodeString(salt)
	assert.NoError(t, err)
}

func TestComputeVerifierHex(t *testing.T) {
	t.Parallel()

	key, err := GenerateVaultKey()
	require.NoError(t, err)
	salt, err := GenerateSalt()
	require.NoError(t, err)

	v1, err := ComputeVerifierHex(salt, "acct", key)
	require.NoError(t, err)
	v2, err := ComputeVerifierHex(salt, "acct", key)
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 512)

	other, err := ComputeVerifierHex(salt, "acct-2", key)
	require.NoError(t, err)
	assert.NotEqual(t, v1, other)

	tests := []struct {
		name    string
		salt    string
		key     string
		wantErr error
	}{
		{"empty salt", "", key, ErrSaltMissing},
		{"bad salt", "not-hex", key, ErrSaltMissing},
		{"empty key", salt, "", ErrVaultKeyInvalid},
		{"bad key", salt, "***", ErrVaultKeyInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ComputeVerifierHex(tt.salt, "acct", tt.key)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeVaultKeyEncodings(t *testing.T) {
	t.Parallel()

	raw := []byte{0xfb, 0xff, 0x01}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		got, err := decodeVaultKey(enc.EncodeToString(raw))
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}
}

func TestBase64Helpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "aGVsbG8=", Base64Encode("hello"))
	assert.Equal(t, "AQI=", Base64Encode([]byte{1, 2}))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte(`{"a":1}`)), Base64Encode(map[string]int{"a": 1}))
	assert.Equal(t, "", Base64Encode(func() {}))

	assert.Equal(t, "hello", Base64DecodeString("aGVsbG8="))
	assert.Equal(t, "not base64!", Base64DecodeString("not base64!"))

	assert.Equal(t, map[string]interface{}{"a": float64(1)}, Base64DecodeJSON(Base64Encode(map[string]int{"a": 1})))
	assert.Equal(t, "aGVsbG8=", Base64DecodeJSON("aGVsbG8="), "valid base64 that is not JSON")
	assert.Equal(t, "%%%", Base64DecodeJSON("%%%"))
}

func TestParseVaultKeyRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"not base64", "%%%"},
		{"not json", Base64Encode("plain")},
		{"wrong kty", Base64Encode(JWK{Kty: "RSA", K: "x"})},
		{"missing k", Base64Encode(JWK{Kty: "oct"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseVaultKey(tt.in)
			assert.ErrorIs(t, err, ErrVaultKeyInvalid)
		})
	}
}

func TestRequestError(t *testing.T) {
	t.Parallel()

	inner := errors.New("dial tcp: connection refused")
	err := &RequestError{Op: "verify-a", Err: inner}
	assert.Equal(t, "vault verify-a request failed: dial tcp: connection refused", err.Error())
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.ErrorIs(t, err, inner)

	err = &RequestError{Op: "create", StatusCode: 409, Message: "exists"}
	assert.Equal(t, "vault create request failed (status 409): exists", err.Error())
}

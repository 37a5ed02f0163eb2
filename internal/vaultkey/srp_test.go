package vaultkey

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestGroup2048(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2048, Group2048.N.BitLen())
	assert.Equal(t, int64(2), Group2048.G.Int64())
	assert.True(t, Group2048.N.ProbablyPrime(20))
	assert.Equal(t, 256, Group2048.length)
}

func TestSRPRoundTrip(t *testing.T) {
	t.Parallel()

	salt := fixed(1)
	identity := []byte("acct_1")
	password := []byte("correct horse")

	verifier := ComputeVerifier(Group2048, salt, identity, password)
	require.Len(t, verifier, 256)

	client := NewClient(Group2048, salt, identity, password, fixed(2))
	server := NewServer(Group2048, verifier, fixed(3))

	require.NoError(t, server.SetA(client.PublicA()))
	require.NoError(t, client.SetB(server.PublicB()))

	m1, err := client.M1()
	require.NoError(t, err)

	m2, ok := server.CheckM1(m1)
	require.True(t, ok)
	assert.True(t, client.VerifyM2(m2))

	clientKey, err := client.SessionKey()
	require.NoError(t, err)
	assert.Equal(t, server.K, clientKey)
}

func TestSRPWrongPassword(t *testing.T) {
	t.Parallel()

	salt := fixed(1)
	identity := []byte("acct_1")
	verifier := ComputeVerifier(Group2048, salt, identity, []byte("right"))

	client := NewClient(Group2048, salt, identity, []byte("wrong"), fixed(2))
	server := NewServer(Group2048, verifier, fixed(3))

	require.NoError(t, server.SetA(client.PublicA()))
	require.NoError(t, client.SetB(server.PublicB()))
	m1, err := client.M1()
	require.NoError(t, err)

	m2, ok := server.CheckM1(m1)
	assert.False(t, ok)
	assert.Nil(t, m2)
}

func TestSRPWrongIdentity(t *testing.T) {
	t.Parallel()

	salt := fixed(1)
	verifier := ComputeVerifier(Group2048, salt, []byte("acct_1"), []byte("pw"))

	client := NewClient(Group2048, salt, []byte("acct_2"), []byte("pw"), fixed(2))
	server := NewServer(Group2048, verifier, fixed(3))

	require.NoError(t, server.SetA(client.PublicA()))
	require.NoError(t, client.SetB(server.PublicB()))
	m1, _ := client.M1()

	_, ok := server.CheckM1(m1)
	assert.False(t, ok)
}

func TestSRPRejectsZeroPublicValues(t *testing.T) {
	t.Parallel()

	zeros := [][]byte{
		{0},
		Group2048.N.Bytes(),
		new(big.Int).Mul(Group2048.N, big.NewInt(2)).Bytes(),
	}

	for _, z := range zeros {
		client := NewClient(Group2048, fixed(1), []byte("id"), []byte("pw"), fixed(2))
		assert.ErrorIs(t, client.SetB(z), ErrInvalidPublicValue)

		server := NewServer(Group2048, fixed(4), fixed(3))
		assert.ErrorIs(t, server.SetA(z), ErrInvalidPublicValue)
	}
}

func TestSRPProtocolOrder(t *testing.T) {
	t.Parallel()

	client := NewClient(Group2048, fixed(1), []byte("id"), []byte("pw"), fixed(2))

	_, err := client.M1()
	assert.ErrorIs(t, err, ErrProtocolOrder)
	_, err = client.SessionKey()
	assert.ErrorIs(t, err, ErrProtocolOrder)
	assert.False(t, client.VerifyM2([]byte("anything")))

	server := NewServer(Group2048, fixed(4), fixed(3))
	_, ok := server.CheckM1([]byte("anything"))
	assert.False(t, ok)
}

func TestSRPPadding(t *testing.T) {
	t.Parallel()

	// a small secret gives an A with leading zero bytes once padded
	client := NewClient(Group2048, fixed(1), []byte("id"), []byte("pw"), []byte{1})
	a := client.PublicA()
	require.Len(t, a, 256)
	assert.Equal(t, byte(2), a[255])
	assert.Equal(t, byte(0), a[0])
}

package vaultkey

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"math/big"
	"strings"
)

// SRP-6a over the RFC 5054 2048-bit group with SHA-256. Every group element
// that is hashed is first left-padded to the byte length of N.

var (
	// ErrInvalidPublicValue is returned for a peer public value that is 0 mod N
	ErrInvalidPublicValue = errors.New("srp: invalid public ephemeral value")
	// ErrInvalidScrambler is returned when u = H(A|B) is zero
	ErrInvalidScrambler = errors.New("srp: scrambling parameter is zero")
	// ErrProtocolOrder is returned when a step runs before its inputs exist
	ErrProtocolOrder = errors.New("srp: protocol step out of order")
)

const rfc5054N2048 = "AC6BDB41324A9A9BF166DE5E1389582FAF72B6651987EE07FC3192943DB56050" +
	"A37329CBB4A099ED8193E0757767A13DD52312AB4B03310DCD7F48A9DA04FD50" +
	"E8083969EDB767B0CF6095179A163AB3661A05FBD5FAAAE82918A9962F0B93B8" +
	"55F97993EC975EEAA80D740ADBF4FF747359D041D5C33EA71D281E446B14773B" +
	"CA97B43A23FB801676BD207A436C6481F1D2B9078717461A5B9D32E688F87748" +
	"544523B524B0D57D5EA77A2775D2ECFA032CFBDBF52FB3786160279004E57AE6" +
	"AF874E7303CE53299CCC041C7BC308D82A5698F3A8D0C38271AE35F8E9DBFBB6" +
	"94B5C803D89F7AE435DE236D525F54759B65E372FCD68EF20FA7111F9E4AFF73"

// Group holds the SRP group parameters
type Group struct {
	N      *big.Int
	G      *big.Int
	k      *big.Int
	length int
}

// Group2048 is the RFC 5054 2048-bit group with generator 2
var Group2048 = newGroup(rfc5054N2048, 2)

func newGroup(nHex string, g int64) *Group {
	n, ok := new(big.Int).SetString(strings.ToLower(nHex), 16)
	if !ok {
		panic("vaultkey: invalid group modulus")
	}

	grp := &Group{
		N:      n,
		G:      big.NewInt(g),
		length: (n.BitLen() + 7) / 8,
	}
	grp.k = new(big.Int).SetBytes(hashBytes(grp.pad(grp.N), grp.pad(grp.G)))
	return grp
}

// pad left-pads x to the byte length of N
func (grp *Group) pad(x *big.Int) []byte {
	out := make([]byte, grp.length)
	return x.FillBytes(out)
}

func hashBytes(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// computeX derives x = H(salt | H(identity | ":" | password))
func computeX(salt, identity, password []byte) *big.Int {
	inner := hashBytes(identity, []byte(":"), password)
	return new(big.Int).SetBytes(hashBytes(salt, inner))
}

// ComputeVerifier returns v = g^x mod N, padded to the length of N
func ComputeVerifier(grp *Group, salt, identity, password []byte) []byte {
	x := computeX(salt, identity, password)
	return grp.pad(new(big.Int).Exp(grp.G, x, grp.N))
}

func computeU(grp *Group, paddedA, paddedB []byte) (*big.Int, error) {
	u := new(big.Int).SetBytes(hashBytes(paddedA, paddedB))
	if u.Sign() == 0 {
		return nil, ErrInvalidScrambler
	}
	return u, nil
}

// Client runs the client side of one SRP exchange
type Client struct {
	grp *Group
	x   *big.Int
	a   *big.Int
	A   []byte

	B  []byte
	S  []byte
	K  []byte
	m1 []byte
}

// NewClient starts an exchange. secret is the random private ephemeral a.
func NewClient(grp *Group, salt, identity, password, secret []byte) *Client {
	a := new(big.Int).SetBytes(secret)
	return &Client{
		grp: grp,
		x:   computeX(salt, identity, password),
		a:   a,
		A:   grp.pad(new(big.Int).Exp(grp.G, a, grp.N)),
	}
}

// PublicA returns A = g^a mod N, padded
func (c *Client) PublicA() []byte {
	return append([]byte(nil), c.A...)
}

// SetB takes the server's public ephemeral and derives S, K and M1
func (c *Client) SetB(b []byte) error {
	grp := c.grp
	B := new(big.Int).SetBytes(b)
	if new(big.Int).Mod(B, grp.N).Sign() == 0 {
		return ErrInvalidPublicValue
	}

	paddedB := grp.pad(new(big.Int).Mod(B, grp.N))
	u, err := computeU(grp, c.A, paddedB)
	if err != nil {
		return err
	}

	// S = (B - k*g^x) ^ (a + u*x) mod N
	gx := new(big.Int).Exp(grp.G, c.x, grp.N)
	kgx := new(big.Int).Mul(grp.k, gx)
	base := new(big.Int).Sub(B, kgx)
	base.Mod(base, grp.N)

	exp := new(big.Int).Mul(u, c.x)
	exp.Add(exp, c.a)

	S := grp.pad(new(big.Int).Exp(base, exp, grp.N))

	c.B = paddedB
	c.S = S
	c.K = hashBytes(S)
	c.m1 = hashBytes(c.A, paddedB, S)
	return nil
}

// M1 returns the client proof H(A | B | S)
func (c *Client) M1() ([]byte, error) {
	if c.m1 == nil {
		return nil, ErrProtocolOrder
	}
	return append([]byte(nil), c.m1...), nil
}

// SessionKey returns K = H(S)
func (c *Client) SessionKey() ([]byte, error) {
	if c.K == nil {
		return nil, ErrProtocolOrder
	}
	return append([]byte(nil), c.K...), nil
}

// VerifyM2 reports whether m2 equals H(A | M1 | K)
func (c *Client) VerifyM2(m2 []byte) bool {
	if c.m1 == nil {
		return false
	}
	want := hashBytes(c.A, c.m1, c.K)
	return subtle.ConstantTimeCompare(want, m2) == 1
}

// Server runs the server side of one SRP exchange
type Server struct {
	grp *Group
	v   *big.Int
	b   *big.Int
	B   []byte

	A  []byte
	K  []byte
	m1 []byte
}

// NewServer starts an exchange for a stored verifier. secret is the random
// private ephemeral b.
func NewServer(grp *Group, verifier, secret []byte) *Server {
	v := new(big.Int).SetBytes(verifier)
	b := new(big.Int).SetBytes(secret)

	// B = (k*v + g^b) mod N
	B := new(big.Int).Mul(grp.k, v)
	B.Add(B, new(big.Int).Exp(grp.G, b, grp.N))
	B.Mod(B, grp.N)

	return &Server{
		grp: grp,
		v:   v,
		b:   b,
		B:   grp.pad(B),
	}
}

// PublicB returns the padded server public ephemeral
func (s *Server) PublicB() []byte {
	return append([]byte(nil), s.B...)
}

// SetA takes the client's public ephemeral and derives the expected M1
func (s *Server) SetA(a []byte) error {
	grp := s.grp
	A := new(big.Int).SetBytes(a)
	if new(big.Int).Mod(A, grp.N).Sign() == 0 {
		return ErrInvalidPublicValue
	}

	paddedA := grp.pad(new(big.Int).Mod(A, grp.N))
	u, err := computeU(grp, paddedA, s.B)
	if err != nil {
		return err
	}

	// S = (A * v^u) ^ b mod N
	base := new(big.Int).Exp(s.v, u, grp.N)
	base.Mul(base, A)
	base.Mod(base, grp.N)
	S := grp.pad(new(big.Int).Exp(base, s.b, grp.N))

	s.A = paddedA
	s.K = hashBytes(S)
	s.m1 = hashBytes(paddedA, s.B, S)
	return nil
}

// CheckM1 verifies the client proof and returns M2 = H(A | M1 | K)
func (s *Server) CheckM1(m1 []byte) ([]byte, bool) {
	if s.m1 == nil || subtle.ConstantTimeCompare(s.m1, m1) != 1 {
		return nil, false
	}
	return hashBytes(s.A, s.m1, s.K), true
}

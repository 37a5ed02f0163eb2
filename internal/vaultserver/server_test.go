package vaultserver_test

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/apivault/internal/vaultkey"
	"github.com/systmms/apivault/internal/vaultserver"
)

const testAccount = "acct-123"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestServer(t *testing.T, opts ...vaultserver.Option) *httptest.Server {
	t.Helper()

	srv, err := vaultserver.New(vaultserver.NewMemoryStore(), opts...)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, account string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set(vaultkey.AccountHeader, account)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

// enroll registers a fresh key and returns the pieces needed to authenticate
func enroll(t *testing.T, ts *httptest.Server) (salt []byte, password []byte) {
	t.Helper()

	vaultKey, err := vaultkey.GenerateVaultKey()
	require.NoError(t, err)
	saltHex, err := vaultkey.GenerateSalt()
	require.NoError(t, err)
	verifier, err := vaultkey.ComputeVerifierHex(saltHex, testAccount, vaultKey)
	require.NoError(t, err)

	resp, _ := post(t, ts, vaultkey.PathCreate, testAccount, vaultkey.Proof{Salt: saltHex, Verifier: verifier})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	salt, err = hex.DecodeString(saltHex)
	require.NoError(t, err)
	password, err = base64.StdEncoding.DecodeString(vaultKey)
	require.NoError(t, err)
	return salt, password
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequiresAccountHeader(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := post(t, ts, vaultkey.PathCreate, "", vaultkey.Proof{Salt: "aa", Verifier: "bb"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], vaultkey.AccountHeader)
}

func TestCreateAndReset(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		proof  vaultkey.Proof
		status int
	}{
		{"create", vaultkey.PathCreate, vaultkey.Proof{Salt: "aa", Verifier: "bb"}, http.StatusOK},
		{"create again same proof", vaultkey.PathCreate, vaultkey.Proof{Salt: "aa", Verifier: "bb"}, http.StatusOK},
		{"create different proof", vaultkey.PathCreate, vaultkey.Proof{Salt: "cc", Verifier: "dd"}, http.StatusConflict},
		{"reset replaces", vaultkey.PathReset, vaultkey.Proof{Salt: "cc", Verifier: "dd"}, http.StatusOK},
		{"create matches reset proof", vaultkey.PathCreate, vaultkey.Proof{Salt: "cc", Verifier: "dd"}, http.StatusOK},
		{"non hex salt", vaultkey.PathReset, vaultkey.Proof{Salt: "zz", Verifier: "dd"}, http.StatusBadRequest},
		{"empty verifier", vaultkey.PathReset, vaultkey.Proof{Salt: "aa"}, http.StatusBadRequest},
	}

	// sequential: each step depends on the previous one
	for _, tt := range tests {
		resp, _ := post(t, ts, tt.path, testAccount, tt.proof)
		assert.Equal(t, tt.status, resp.StatusCode, tt.name)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, ts.URL+vaultkey.PathCreate, strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set(vaultkey.AccountHeader, testAccount)

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerifyAUnknownAccount(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, body := post(t, ts, vaultkey.PathVerifyA, "nobody", vaultkey.VerifyARequest{SRPA: "01"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestVerifyARejectsZeroA(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	enroll(t, ts)

	zero := hex.EncodeToString(vaultkey.Group2048.N.Bytes())
	resp, _ := post(t, ts, vaultkey.PathVerifyA, testAccount, vaultkey.VerifyARequest{SRPA: zero})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func authenticate(t *testing.T, ts *httptest.Server, salt, password []byte) (int, map[string]interface{}, *vaultkey.Client) {
	t.Helper()

	secret := bytes.Repeat([]byte{7}, 32)
	client := vaultkey.NewClient(vaultkey.Group2048, salt, []byte(testAccount), password, secret)

	resp, challenge := post(t, ts, vaultkey.PathVerifyA, testAccount,
		vaultkey.VerifyARequest{SRPA: hex.EncodeToString(client.PublicA())})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	srpB, err := hex.DecodeString(challenge["srpB"].(string))
	require.NoError(t, err)
	require.NoError(t, client.SetB(srpB))
	m1, err := client.M1()
	require.NoError(t, err)

	resp, body := post(t, ts, vaultkey.PathVerifyM1, testAccount, vaultkey.VerifyM1Request{
		SRPM1:            hex.EncodeToString(m1),
		SessionStarterID: challenge["sessionStarterId"].(string),
	})
	return resp.StatusCode, body, client
}

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	salt, password := enroll(t, ts)

	status, body, client := authenticate(t, ts, salt, password)
	require.Equal(t, http.StatusOK, status)

	m2, err := hex.DecodeString(body["srpM2"].(string))
	require.NoError(t, err)
	assert.True(t, client.VerifyM2(m2))
}

func TestVerifyWrongKey(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	salt, password := enroll(t, ts)

	wrong := append([]byte(nil), password...)
	wrong[0] ^= 0xff

	status, body, _ := authenticate(t, ts, salt, wrong)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, vaultkey.ErrVaultKeyInvalid.Error(), body["error"])
}

func TestSessionStarterSingleUse(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	enroll(t, ts)

	resp, _ := post(t, ts, vaultkey.PathVerifyM1, testAccount, vaultkey.VerifyM1Request{
		SRPM1:            "00",
		SessionStarterID: "does-not-exist",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	client := vaultkey.NewClient(vaultkey.Group2048, []byte{1}, []byte(testAccount), []byte{2}, []byte{3})
	resp, challenge := post(t, ts, vaultkey.PathVerifyA, testAccount,
		vaultkey.VerifyARequest{SRPA: hex.EncodeToString(client.PublicA())})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := challenge["sessionStarterId"].(string)

	// first use consumes the starter even when the proof is wrong
	resp, _ = post(t, ts, vaultkey.PathVerifyM1, testAccount, vaultkey.VerifyM1Request{SRPM1: "00", SessionStarterID: id})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = post(t, ts, vaultkey.PathVerifyM1, testAccount, vaultkey.VerifyM1Request{SRPM1: "00", SessionStarterID: id})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionStarterBoundToAccount(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	enroll(t, ts)

	client := vaultkey.NewClient(vaultkey.Group2048, []byte{1}, []byte(testAccount), []byte{2}, []byte{3})
	_, challenge := post(t, ts, vaultkey.PathVerifyA, testAccount,
		vaultkey.VerifyARequest{SRPA: hex.EncodeToString(client.PublicA())})

	resp, _ := post(t, ts, vaultkey.PathVerifyM1, "someone-else", vaultkey.VerifyM1Request{
		SRPM1:            "00",
		SessionStarterID: challenge["sessionStarterId"].(string),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionStarterExpires(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Unix(1700000000, 0)}
	ts := newTestServer(t,
		vaultserver.WithClock(clock.Now),
		vaultserver.WithSessionStarterTTL(time.Minute),
	)
	salt, password := enroll(t, ts)

	client := vaultkey.NewClient(vaultkey.Group2048, salt, []byte(testAccount), password, bytes.Repeat([]byte{9}, 32))
	_, challenge := post(t, ts, vaultkey.PathVerifyA, testAccount,
		vaultkey.VerifyARequest{SRPA: hex.EncodeToString(client.PublicA())})

	srpB, err := hex.DecodeString(challenge["srpB"].(string))
	require.NoError(t, err)
	require.NoError(t, client.SetB(srpB))
	m1, err := client.M1()
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)

	resp, _ := post(t, ts, vaultkey.PathVerifyM1, testAccount, vaultkey.VerifyM1Request{
		SRPM1:            hex.EncodeToString(m1),
		SessionStarterID: challenge["sessionStarterId"].(string),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	resp, err := ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWithMount(t *testing.T) {
	t.Parallel()

	extra := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	ts := newTestServer(t, vaultserver.WithMount("/extra", extra))

	resp, err := ts.Client().Get(ts.URL + "/extra/anything")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

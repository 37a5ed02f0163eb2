package vaultkey

// AccountHeader carries the account id on backend requests
const AccountHeader = "X-Account-Id"

// Backend paths
const (
	PathCreate   = "/vault"
	PathReset    = "/vault/reset"
	PathVerifyA  = "/vault-verify-a"
	PathVerifyM1 = "/vault-verify-m1"
)

// Proof is the registration payload. Both fields are hex.
type Proof struct {
	Salt     string `json:"salt"`
	Verifier string `json:"verifier"`
}

// VerifyARequest opens an authentication
type VerifyARequest struct {
	SRPA string `json:"srpA"`
}

// Challenge is the backend's answer to VerifyARequest
type Challenge struct {
	SessionStarterID string `json:"sessionStarterId"`
	SRPB             string `json:"srpB"`
	Error            string `json:"error,omitempty"`
}

// VerifyM1Request carries the client proof
type VerifyM1Request struct {
	SRPM1            string `json:"srpM1"`
	SessionStarterID string `json:"sessionStarterId"`
}

// VerifyM1Response carries the server proof
type VerifyM1Response struct {
	SRPM2 string `json:"srpM2"`
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the body of a failed backend call
type ErrorResponse struct {
	Error string `json:"error"`
}

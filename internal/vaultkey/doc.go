// Package vaultkey registers, validates and resets a user's vault key
// without the key ever leaving the machine.
//
// The vault key is a random 256-bit AES key. Registration sends only a
// random salt and an SRP-6a verifier derived from (salt, account id, key).
// Authentication proves knowledge of the key with an SRP-6a exchange
// against the backend:
//
//	client                                 backend
//	A = g^a          --- POST /vault-verify-a {srpA} --->
//	                 <-- {sessionStarterId, srpB} -------  B = kv + g^b
//	M1 = H(A|B|S)    --- POST /vault-verify-m1 {srpM1} ->
//	                 <-- {srpM2} ------------------------  M2 = H(A|M1|K)
//	check M2
//
// Engine tracks the local vault state (see State) and keeps the session
// copy of the key encrypted with a local Encryptor.
package vaultkey

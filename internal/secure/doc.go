// Package secure protects key material held by apivault.
//
// SecureBuffer keeps an unlocked vault key or a local encryption key inside
// a memguard enclave, so the plaintext is encrypted while at rest in memory
// and only exposed for the duration of a single use.
//
// Encryptor is the local encrypt-at-rest primitive used for the session
// copy of the vault key. It seals values with XChaCha20-Poly1305 under a
// 256-bit key. An Encryptor built without a key reports that encryption is
// unavailable and passes values through unchanged, which lets callers run
// on machines without an OS credential store.
//
// Call memguard.Purge at process exit to wipe every enclave key.
package secure

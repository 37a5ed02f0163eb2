// Package cloud defines the cloud secret provider abstraction.
//
// A Provider can confirm a credential (Authorize), fetch a secret
// (GetSecret) and derive a stable cache key for a request (UniqueCacheKey).
// Expected failures never surface as Go errors: they come back inside a
// ServiceResult with a normalized ServiceError, so callers can hand the
// result to a UI unchanged. Go errors are reserved for programming errors
// such as asking a Registry for a provider that was never registered.
//
// Providers report transport failures as *TransportError values carrying an
// ErrorKind. Normalize turns those into a ServiceError with a stable code
// and a human-readable message.
package cloud

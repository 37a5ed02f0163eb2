// Package secretcache provides the in-memory cache used for secrets fetched
// from cloud providers.
//
// The cache is bounded in two ways:
//
//   - Size: once MaxSize entries are held, inserting a new key evicts the
//     least recently used entry, regardless of how much TTL it has left.
//   - Time: every entry carries its own expiry. Expired entries are
//     invisible to Has, Get, Len and the listing methods, and are removed
//     lazily on access or when the cache is under capacity pressure.
//
// Nothing is persisted. A Cache lives for as long as the process holds it,
// and is meant to be constructed once and injected where it is needed.
//
// # Concurrency
//
// All methods are safe for concurrent use. Get updates recency, so every
// operation takes the same exclusive lock.
package secretcache

package transmux

import "errors"

// ErrNotConfigured is returned by Push/Flush when called before Configure.
// The spec (§7) leaves this case to implementer discretion ("undefined;
// implementations may assert"); we choose to return an error rather than
// panic, since this is a public library entry point.
var ErrNotConfigured = errors.New("transmux: push before configure")

// ErrDestroyed is returned by any call made after Destroy.
var ErrDestroyed = errors.New("transmux: transmuxer destroyed")

// ErrDecryptionInFlight is returned by Push when called while a previous
// Push's asynchronous decryption has not yet resolved. Invariant 1 (§3)
// allows at most one in-flight asynchronous decryption; the host is
// expected to await the returned Future before issuing the next Push.
var ErrDecryptionInFlight = errors.New("transmux: asynchronous decryption already in flight")

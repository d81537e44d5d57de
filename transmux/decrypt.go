package transmux

import (
	"bytes"
	"context"

	"github.com/zsiec/transmux/internal/aes128"
)

// decryptOutcome is the resolution of an asynchronous (hardware-backed)
// AES-128 decryption.
type decryptOutcome struct {
	plaintext []byte
	err       error
}

// decrypterAdapter wraps the two AES-128 decryption primitives the core
// needs on a single instance (§4.3): a synchronous progressive mode used
// when software AES is enabled, and an asynchronous single-shot mode used
// otherwise. The two modes are mutually exclusive per push; which one is
// used is selected by Options.EnableSoftwareAES, fixed for the adapter's
// lifetime.
//
// The instance is created lazily on first encrypted push and survives
// Configure calls — Configure only resets its progressive cipher state
// (reset), it does not discard the adapter. A change of key/iv between
// segments (normal when EXT-X-KEY rotates per segment) transparently
// rebuilds the underlying cipher while preserving the adapter identity.
type decrypterAdapter struct {
	progressive *aes128.Progressive
	key, iv     []byte // key/iv the current progressive cipher was built with
}

// softwareDecrypt feeds data through the progressive cipher for key/iv,
// rebuilding the cipher first if key or iv changed since the last call
// (a new segment). Returns nil when no full block is yet decryptable —
// never distinguishable from an error; see §9 "maybe result" semantics.
func (d *decrypterAdapter) softwareDecrypt(data, key, iv []byte) ([]byte, error) {
	if d.progressive == nil || !bytes.Equal(d.key, key) || !bytes.Equal(d.iv, iv) {
		p, err := aes128.NewProgressive(key, iv)
		if err != nil {
			return nil, err
		}
		d.progressive = p
		d.key = append([]byte(nil), key...)
		d.iv = append([]byte(nil), iv...)
	}
	return d.progressive.Decrypt(data), nil
}

// flushSoftware drains any residue buffered by the progressive cipher.
func (d *decrypterAdapter) flushSoftware() ([]byte, error) {
	if d.progressive == nil {
		return nil, nil
	}
	return d.progressive.Flush()
}

// reset clears cipher chaining state, invoked from Configure.
func (d *decrypterAdapter) reset() {
	if d.progressive != nil {
		d.progressive.Reset()
	}
}

// webCryptoDecrypt resolves once with the full plaintext of data, used when
// software AES is disabled.
func (d *decrypterAdapter) webCryptoDecrypt(ctx context.Context, data, key, iv []byte) <-chan decryptOutcome {
	ch := make(chan decryptOutcome, 1)
	src := aes128.DecryptAsync(ctx, key, iv, data)
	go func() {
		res := <-src
		ch <- decryptOutcome{plaintext: res.Plaintext, err: res.Err}
		close(ch)
	}()
	return ch
}

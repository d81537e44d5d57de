// Package aes128 implements the two AES-128 CBC decryption primitives the
// transmux core needs: a synchronous progressive decrypter that withholds
// any trailing partial block until more ciphertext or a Flush arrives, and
// an asynchronous single-shot decrypter modeled on a WebCrypto call that
// resolves once with the full plaintext.
//
// PKCS#7 padding is assumed (the HLS AES-128 profile per RFC 8216 §5.2),
// so Flush strips the padding from the final decrypted block.
package aes128

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
)

// ErrInvalidKeyLength is returned when key or iv is not exactly 16 bytes.
var ErrInvalidKeyLength = errors.New("aes128: key and iv must be 16 bytes")

// ErrInvalidPadding is returned by Flush when the final block's PKCS#7
// padding is malformed.
var ErrInvalidPadding = errors.New("aes128: invalid PKCS#7 padding")

const blockSize = aes.BlockSize // 16

// Progressive is a synchronous, software AES-128-CBC decrypter that can be
// fed ciphertext incrementally. Decrypt returns only whole decrypted blocks,
// withholding a trailing partial (or exactly-one-block, since the final
// block may carry padding) remainder until the next call or Flush.
type Progressive struct {
	block cipher.Block
	iv    []byte
	iv0   []byte // iv as given to NewProgressive, restored by Reset
	tail  []byte // buffered undecrypted ciphertext, always < blockSize*2
}

// NewProgressive constructs a Progressive decrypter for the given key/iv.
func NewProgressive(key, iv []byte) (*Progressive, error) {
	if len(key) != blockSize || len(iv) != blockSize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes128: %w", err)
	}
	ivCopy := make([]byte, blockSize)
	copy(ivCopy, iv)
	return &Progressive{block: block, iv: ivCopy, iv0: append([]byte(nil), ivCopy...)}, nil
}

// Decrypt appends data to any buffered tail and decrypts all whole blocks
// except the last one (which is always withheld, since it may carry PKCS#7
// padding only resolvable at Flush). Returns nil if no full block beyond the
// withheld one is yet available — callers must treat nil as "no output
// this call", never as an error.
func (p *Progressive) Decrypt(data []byte) []byte {
	buf := append(p.tail, data...)

	// Always keep at least one full block buffered: it might be the final
	// (padded) block, whose unpadding only happens at Flush.
	decryptableLen := (len(buf) / blockSize) * blockSize
	if decryptableLen >= blockSize {
		decryptableLen -= blockSize
	} else {
		decryptableLen = 0
	}

	if decryptableLen == 0 {
		p.tail = buf
		return nil
	}

	out := make([]byte, decryptableLen)
	mode := cipher.NewCBCDecrypter(p.block, p.iv)
	mode.CryptBlocks(out, buf[:decryptableLen])

	// The CBC chain value for the next call is the last ciphertext block
	// decrypted so far.
	copy(p.iv, buf[decryptableLen-blockSize:decryptableLen])
	p.tail = append([]byte(nil), buf[decryptableLen:]...)

	if len(out) == 0 {
		return nil
	}
	return out
}

// Flush decrypts and unpads the final withheld block, returning the
// plaintext suffix. Returns nil if there is no residue (e.g. Flush called
// twice, or the segment was never encrypted).
func (p *Progressive) Flush() ([]byte, error) {
	if len(p.tail) == 0 {
		return nil, nil
	}
	if len(p.tail)%blockSize != 0 {
		return nil, fmt.Errorf("aes128: residue %d bytes is not block-aligned", len(p.tail))
	}

	out := make([]byte, len(p.tail))
	mode := cipher.NewCBCDecrypter(p.block, p.iv)
	mode.CryptBlocks(out, p.tail)
	p.tail = nil

	return unpadPKCS7(out)
}

// Reset clears all cipher chaining state and buffered ciphertext, as
// invoked from Configure.
func (p *Progressive) Reset() {
	p.tail = nil
	copy(p.iv, p.iv0)
}

func unpadPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, ErrInvalidPadding
	}
	if !bytes.Equal(data[len(data)-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return nil, ErrInvalidPadding
	}
	return data[:len(data)-padLen], nil
}

// DecryptSample decrypts a copy of data using AES-128-CBC with the given
// key/iv and returns it; data itself is not modified. Unlike Progressive/DecryptAsync, it
// follows the SAMPLE-AES convention (RFC 8216bis §5.2): only the leading
// block-aligned portion is encrypted, and any trailing remainder shorter
// than one block is left unencrypted — SAMPLE-AES has no PKCS#7 padding,
// since each sample's exact length is already known from its container
// framing. Returns data unchanged if it is shorter than one block or key/iv
// are malformed.
func DecryptSample(key, iv, data []byte) []byte {
	if len(key) != blockSize || len(iv) != blockSize || len(data) < blockSize {
		return data
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return data
	}
	aligned := (len(data) / blockSize) * blockSize
	out := make([]byte, len(data))
	copy(out, data)
	mode := cipher.NewCBCDecrypter(block, iv)
	mode.CryptBlocks(out[:aligned], data[:aligned])
	return out
}

// AsyncResult is the resolution of a single DecryptAsync call.
type AsyncResult struct {
	Plaintext []byte
	Err       error
}

// DecryptAsync decrypts a complete ciphertext buffer (full segment, PKCS#7
// padded) off the calling goroutine, modeling the browser WebCrypto
// SubtleCrypto.decrypt call the orchestrator falls back to when software AES
// is disabled. The returned channel receives exactly one AsyncResult.
func DecryptAsync(ctx context.Context, key, iv, data []byte) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		defer close(ch)
		if len(key) != blockSize || len(iv) != blockSize {
			ch <- AsyncResult{Err: ErrInvalidKeyLength}
			return
		}
		if len(data) == 0 || len(data)%blockSize != 0 {
			ch <- AsyncResult{Err: fmt.Errorf("aes128: ciphertext length %d is not block-aligned", len(data))}
			return
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			ch <- AsyncResult{Err: fmt.Errorf("aes128: %w", err)}
			return
		}

		select {
		case <-ctx.Done():
			ch <- AsyncResult{Err: ctx.Err()}
			return
		default:
		}

		out := make([]byte, len(data))
		mode := cipher.NewCBCDecrypter(block, iv)
		mode.CryptBlocks(out, data)

		plain, err := unpadPKCS7(out)
		if err != nil {
			ch <- AsyncResult{Err: err}
			return
		}
		ch <- AsyncResult{Plaintext: plain}
	}()
	return ch
}

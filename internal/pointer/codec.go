// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pointer decodes the obfuscated playback pointers handed out by the
// content-detail API into origin manifest URLs.
package pointer

import (
	"bytes"
	"crypto/aes"
	"crypto/md5" // #nosec G501 -- key derivation compatible with the upstream obfuscation, not a security boundary
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSecret is the constant the upstream uses to derive the pointer key.
const DefaultSecret = "aesEncryptionKey"

// ErrDecode is returned for any pointer that cannot be decoded. It is not
// retryable for the same pointer.
var ErrDecode = errors.New("pointer: decode failed")

// DefaultReplacer maps catch-up manifest paths to their live equivalent. Every
// occurrence is rewritten so host and path never disagree.
var DefaultReplacer = strings.NewReplacer("bpaicatchupta", "bpaita")

// DeriveKey derives the AES-128 key from a passphrase the way OpenSSL's
// EVP_BytesToKey does with MD5, one round and no salt. For a 16-byte key that
// is a single MD5 block over the passphrase.
func DeriveKey(secret string) []byte {
	sum := md5.Sum([]byte(secret)) // #nosec G401
	return sum[:]
}

// Codec decodes pointers with a fixed key and applies the URL rewrite.
type Codec struct {
	Key      []byte
	Replacer *strings.Replacer
}

// NewCodec returns a Codec keyed from secret using DefaultReplacer.
func NewCodec(secret string) *Codec {
	return &Codec{Key: DeriveKey(secret), Replacer: DefaultReplacer}
}

// Decode turns a pointer into an origin URL.
func (c *Codec) Decode(ptr string) (string, error) {
	raw, err := Decode(ptr, c.Key)
	if err != nil {
		return "", err
	}
	if c.Replacer != nil {
		raw = c.Replacer.Replace(raw)
	}
	return raw, nil
}

// Decode strips any fragment from ptr, base64-decodes it and decrypts it with
// AES in ECB mode, removing PKCS#7 padding.
func Decode(ptr string, key []byte) (string, error) {
	if i := strings.IndexByte(ptr, '#'); i >= 0 {
		ptr = ptr[:i]
	}
	ciphertext, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ptr))
	if err != nil {
		return "", fmt.Errorf("%w: base64: %v", ErrDecode, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: cipher: %v", ErrDecode, err)
	}
	bs := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%bs != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d is not a multiple of %d", ErrDecode, len(ciphertext), bs)
	}

	plain := make([]byte, len(ciphertext))
	for off := 0; off < len(ciphertext); off += bs {
		block.Decrypt(plain[off:off+bs], ciphertext[off:off+bs])
	}

	plain, err = unpad(plain, bs)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", ErrDecode)
	}
	return string(plain), nil
}

// Encode is the inverse of Decode. The upstream never needs it; operators and
// tests use it to build pointers.
func Encode(rawURL string, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("pointer: cipher: %w", err)
	}
	bs := block.BlockSize()
	plain := pad([]byte(rawURL), bs)
	out := make([]byte, len(plain))
	for off := 0; off < len(plain); off += bs {
		block.Encrypt(out[off:off+bs], plain[off:off+bs])
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

func pad(b []byte, bs int) []byte {
	n := bs - len(b)%bs
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, bs int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > bs || n > len(b) {
		return nil, fmt.Errorf("%w: bad padding", ErrDecode)
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, fmt.Errorf("%w: bad padding", ErrDecode)
		}
	}
	return b[:len(b)-n], nil
}

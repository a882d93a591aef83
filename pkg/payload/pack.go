// verge/pkg/payload/pack.go

package payload

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"verge/pkg/logging"
)

// MaxConfigValueBytes is the hard ceiling the remote config store puts
// on a single item value, measured on the compressed bytes.
const MaxConfigValueBytes = 8000

// RawPrefix marks the legacy uncompressed payload representation:
// "raw:" + base64(json). Kept for payloads written before compression
// existed.
const RawPrefix = "raw:"

// Packed is an immutable packed payload ready for upload.
type Packed struct {
	RulesPacked       string `json:"rules_packed"`
	OriginalSize      int    `json:"originalSize"`
	CompressedSize    int    `json:"compressedSize"`
	Hash              string `json:"contentHash"`
	FitsInConfigStore bool   `json:"fitsInConfigStore"`
}

// Pack compresses canonical graph JSON, encodes it for the config
// store and computes the verification hash over the compressed bytes.
func Pack(canonicalJSON []byte) (*Packed, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(canonicalJSON); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}

	compressed := buf.Bytes()
	p := &Packed{
		RulesPacked:       base64.StdEncoding.EncodeToString(compressed),
		OriginalSize:      len(canonicalJSON),
		CompressedSize:    len(compressed),
		Hash:              ContentHash(compressed),
		FitsInConfigStore: len(compressed) <= MaxConfigValueBytes,
	}

	logging.Logger.Debug().
		Int("original_size", p.OriginalSize).
		Int("compressed_size", p.CompressedSize).
		Str("hash", p.Hash).
		Bool("fits", p.FitsInConfigStore).
		Msg("Packed payload")
	return p, nil
}

// Unpack reverses Pack. It accepts both the compressed form and the
// legacy "raw:" fallback.
func Unpack(rulesPacked string) ([]byte, error) {
	if strings.HasPrefix(rulesPacked, RawPrefix) {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(rulesPacked, RawPrefix))
		if err != nil {
			return nil, fmt.Errorf("decode raw payload: %w", err)
		}
		return raw, nil
	}

	compressed, err := base64.StdEncoding.DecodeString(rulesPacked)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	defer zr.Close()

	jsonData, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return jsonData, nil
}

// HashPacked recomputes the verification hash from the stored string
// form, tolerating the raw fallback (whose hash covers the decoded
// bytes, since there are no compressed bytes to hash).
func HashPacked(rulesPacked string) (string, error) {
	if strings.HasPrefix(rulesPacked, RawPrefix) {
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(rulesPacked, RawPrefix))
		if err != nil {
			return "", fmt.Errorf("decode raw payload: %w", err)
		}
		return ContentHash(raw), nil
	}
	compressed, err := base64.StdEncoding.DecodeString(rulesPacked)
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	return ContentHash(compressed), nil
}

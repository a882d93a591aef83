// verge/pkg/payload/payload_test.go

package payload

import (
	"bytes"
	"compress/gzip"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The hand-built construction must agree byte-for-byte with the
// standard HMAC-SHA256 over an empty key, truncated to 8 bytes.
func TestContentHashMatchesStandardHMAC(t *testing.T) {
	for _, data := range [][]byte{
		{},
		[]byte("hello"),
		[]byte(`{"nodes":[],"edges":[]}`),
		bytes.Repeat([]byte{0xAB}, 1000),
	} {
		mac := hmac.New(sha256.New, []byte{})
		mac.Write(data)
		want := hex.EncodeToString(mac.Sum(nil)[:8])
		assert.Equal(t, want, ContentHash(data))
	}
}

func TestContentHashShape(t *testing.T) {
	h := ContentHash([]byte("x"))
	assert.Len(t, h, 16)
	_, err := hex.DecodeString(h)
	assert.NoError(t, err)
}

func TestContentHashSensitivity(t *testing.T) {
	a := ContentHash([]byte(`{"nodes":[{"id":"a"}]}`))
	b := ContentHash([]byte(`{"nodes":[{"id":"b"}]}`))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, ContentHash([]byte(`{"nodes":[{"id":"a"}]}`)))
}

func TestPackRoundTrip(t *testing.T) {
	jsonData := []byte(`{"nodes":[{"id":"request-1","type":"request"}],"edges":[]}`)

	p, err := Pack(jsonData)
	require.NoError(t, err)
	assert.Equal(t, len(jsonData), p.OriginalSize)
	assert.True(t, p.FitsInConfigStore)
	assert.Len(t, p.Hash, 16)

	back, err := Unpack(p.RulesPacked)
	require.NoError(t, err)
	assert.Equal(t, jsonData, back)
}

// The hash covers the compressed bytes, so recomputing it from the
// stored string must reproduce Pack's value.
func TestHashPackedAgreesWithPack(t *testing.T) {
	p, err := Pack([]byte(`{"nodes":[],"edges":[]}`))
	require.NoError(t, err)

	h, err := HashPacked(p.RulesPacked)
	require.NoError(t, err)
	assert.Equal(t, p.Hash, h)
}

func TestUnpackRawFallback(t *testing.T) {
	jsonData := []byte(`{"nodes":[],"edges":[]}`)
	packed := RawPrefix + base64.StdEncoding.EncodeToString(jsonData)

	back, err := Unpack(packed)
	require.NoError(t, err)
	assert.Equal(t, jsonData, back)

	h, err := HashPacked(packed)
	require.NoError(t, err)
	assert.Equal(t, ContentHash(jsonData), h)
}

func TestUnpackRejectsGarbage(t *testing.T) {
	_, err := Unpack("not-base64!!!")
	assert.Error(t, err)

	// Valid base64 that is not gzip.
	_, err = Unpack(base64.StdEncoding.EncodeToString([]byte("plain")))
	assert.Error(t, err)

	_, err = Unpack(RawPrefix + "also-not-base64!!!")
	assert.Error(t, err)
}

func TestPackSizeCeiling(t *testing.T) {
	// Random-ish incompressible payload well past the ceiling.
	var b strings.Builder
	for i := 0; i < 4000; i++ {
		b.WriteString(ContentHash([]byte{byte(i), byte(i >> 8)}))
	}

	p, err := Pack([]byte(b.String()))
	require.NoError(t, err)
	assert.False(t, p.FitsInConfigStore)
	assert.Greater(t, p.CompressedSize, MaxConfigValueBytes)
}

func TestPackDeterministic(t *testing.T) {
	jsonData := []byte(`{"nodes":[{"id":"a","type":"request"}],"edges":[]}`)

	p1, err := Pack(jsonData)
	require.NoError(t, err)
	p2, err := Pack(jsonData)
	require.NoError(t, err)
	assert.Equal(t, p1.Hash, p2.Hash)
	assert.Equal(t, p1.RulesPacked, p2.RulesPacked)
}

func TestPackedIsGzip(t *testing.T) {
	p, err := Pack([]byte(`{"nodes":[],"edges":[]}`))
	require.NoError(t, err)

	compressed, err := base64.StdEncoding.DecodeString(p.RulesPacked)
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	zr.Close()
}

func TestEnvelopeRoundTrip(t *testing.T) {
	p, err := Pack([]byte(`{"nodes":[],"edges":[]}`))
	require.NoError(t, err)

	env := NewEnvelope("1.0.0", p)
	assert.Equal(t, "1.0.0", env.Version)

	_, err = time.Parse(time.RFC3339, env.DeployedAt)
	assert.NoError(t, err)

	data, err := env.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rules_packed"`)
	assert.Contains(t, string(data), `"deployedAt"`)

	back, err := ParseEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env.RulesPacked, back.RulesPacked)
}

func TestParseEnvelopeRejectsEmptyPayload(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"version":"1.0.0","deployedAt":"2024-01-01T00:00:00Z"}`))
	assert.Error(t, err)

	_, err = ParseEnvelope([]byte(`{not json`))
	assert.Error(t, err)
}

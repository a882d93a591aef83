// verge/pkg/bundle/bundle.go

package bundle

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"time"

	"verge/pkg/logging"
)

// ManifestVersion is the platform package schema version.
const ManifestVersion = 3

// Language tag recorded in the manifest for the compute binary.
const Language = "rust"

// Build packs the compute binary into the platform's distribution
// container: a ustar archive holding the manifest and the binary,
// gzip-compressed and base64-encoded for transport.
//
// Layout:
//
//	<service>/
//	<service>/fastly.toml
//	<service>/bin/
//	<service>/bin/main.wasm
//
// Modification times are wall clock at build time, so output is not
// byte-identical across builds; only extractability is a contract.
func Build(serviceName string, binary []byte) (string, error) {
	if serviceName == "" {
		return "", fmt.Errorf("service name is required")
	}
	if len(binary) == 0 {
		return "", fmt.Errorf("compute binary is empty")
	}

	mtime := time.Now().Unix()
	manifest := Manifest(serviceName)

	var tarBuf bytes.Buffer
	if err := writeEntry(&tarBuf, serviceName+"/", 0755, mtime, typeDir, nil); err != nil {
		return "", err
	}
	if err := writeEntry(&tarBuf, serviceName+"/fastly.toml", 0644, mtime, typeRegular, []byte(manifest)); err != nil {
		return "", err
	}
	if err := writeEntry(&tarBuf, serviceName+"/bin/", 0755, mtime, typeDir, nil); err != nil {
		return "", err
	}
	if err := writeEntry(&tarBuf, serviceName+"/bin/main.wasm", 0644, mtime, typeRegular, binary); err != nil {
		return "", err
	}
	// Archive terminator: two all-zero blocks.
	tarBuf.Write(make([]byte, 2*blockSize))

	var gzBuf bytes.Buffer
	zw := gzip.NewWriter(&gzBuf)
	if _, err := zw.Write(tarBuf.Bytes()); err != nil {
		return "", fmt.Errorf("compress package: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress package: %w", err)
	}

	logging.Logger.Debug().
		Str("service", serviceName).
		Int("binary_size", len(binary)).
		Int("archive_size", tarBuf.Len()).
		Int("compressed_size", gzBuf.Len()).
		Msg("Built compute package")

	return base64.StdEncoding.EncodeToString(gzBuf.Bytes()), nil
}

// BuildGz is Build without the base64 step, for callers that upload the
// raw gzip bytes directly.
func BuildGz(serviceName string, binary []byte) ([]byte, error) {
	b64, err := Build(serviceName, binary)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(b64)
}

// Manifest renders the package manifest text.
func Manifest(serviceName string) string {
	return fmt.Sprintf("manifest_version = %d\nname = %q\nlanguage = %q\n", ManifestVersion, serviceName, Language)
}

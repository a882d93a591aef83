// verge/pkg/bundle/tar.go

package bundle

import (
	"bytes"
	"fmt"
)

// The archive is written by hand rather than through archive/tar: the
// 512-byte header layout is a contract with the hosting platform's
// package reader, verified by byte-level tests, and building it
// directly keeps every offset in one place.
const blockSize = 512

// Header field offsets within a 512-byte block.
const (
	offName     = 0   // 100 bytes
	offMode     = 100 // 8 bytes, octal
	offUID      = 108 // 8 bytes, octal
	offGID      = 116 // 8 bytes, octal
	offSize     = 124 // 12 bytes, octal
	offMtime    = 136 // 12 bytes, octal
	offChecksum = 148 // 8 bytes
	offTypeflag = 156 // 1 byte
	offMagic    = 257 // "ustar\x00"
	offVersion  = 263 // "00"
)

const (
	typeRegular = '0'
	typeDir     = '5'
)

// writeOctal writes v as a NUL-terminated octal string padded with
// leading zeros into a field of the given width.
func writeOctal(field []byte, v int64, width int) {
	s := fmt.Sprintf("%0*o", width-1, v)
	copy(field, s)
	field[width-1] = 0
}

// tarHeader builds one 512-byte ustar header. The checksum field is
// seeded with ASCII spaces, the unsigned byte sum of the whole header
// is computed, and the result is written back as 6 octal digits
// followed by a NUL and a space.
func tarHeader(name string, mode int64, size int64, mtime int64, typeflag byte) ([]byte, error) {
	if len(name) > 100 {
		return nil, fmt.Errorf("entry name %q exceeds 100 bytes", name)
	}

	block := make([]byte, blockSize)
	copy(block[offName:], name)
	writeOctal(block[offMode:], mode, 8)
	writeOctal(block[offUID:], 0, 8)
	writeOctal(block[offGID:], 0, 8)
	writeOctal(block[offSize:], size, 12)
	writeOctal(block[offMtime:], mtime, 12)
	for i := 0; i < 8; i++ {
		block[offChecksum+i] = ' '
	}
	block[offTypeflag] = typeflag
	copy(block[offMagic:], "ustar\x00")
	copy(block[offVersion:], "00")
	// Owner and group names stay blank; the platform ignores them.

	var sum int64
	for _, b := range block {
		sum += int64(b)
	}
	copy(block[offChecksum:], fmt.Sprintf("%06o", sum))
	block[offChecksum+6] = 0
	block[offChecksum+7] = ' '

	return block, nil
}

// writeEntry appends a header and, for regular files, the content
// padded up to the next 512-byte boundary.
func writeEntry(buf *bytes.Buffer, name string, mode int64, mtime int64, typeflag byte, content []byte) error {
	header, err := tarHeader(name, mode, int64(len(content)), mtime, typeflag)
	if err != nil {
		return err
	}
	buf.Write(header)
	if len(content) > 0 {
		buf.Write(content)
		if pad := len(content) % blockSize; pad != 0 {
			buf.Write(make([]byte, blockSize-pad))
		}
	}
	return nil
}

package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Checksum is the SHA-256 digest of a file's data section.
type Checksum [sha256.Size]byte

// String returns the digest in hex.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

func sumSection(data []byte) Checksum {
	return sha256.Sum256(data)
}

func sumSectionReader(r io.Reader) (Checksum, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return Checksum{}, err
	}
	var sum Checksum
	h.Sum(sum[:0])
	return sum, nil
}

func verifyChecksum(computed, stored Checksum) error {
	if computed != stored {
		return fmt.Errorf("%w: stored %.16s, computed %.16s", ErrChecksumMismatch, stored, computed)
	}
	return nil
}

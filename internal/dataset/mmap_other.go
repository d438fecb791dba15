//go:build !unix

package dataset

import (
	"fmt"
	"io"
	"os"
)

// mmapFile reads the whole file on platforms without unix.Mmap.
func mmapFile(f *os.File, size int64) ([]byte, error) {
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return buf, nil
}

func munmapFile([]byte) error {
	return nil
}

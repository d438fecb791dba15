package dataset

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/born-ml/gridstat/internal/ndarray"
)

// MmapReader provides memory-mapped access to a .grds file. Only the header
// is parsed on open; variable data is paged in on demand.
//
// Always call Close when done to unmap the file.
type MmapReader struct {
	file   *os.File
	data   []byte // Mapped region, read-only.
	fixed  fixedHeader
	header Header
	closed bool
}

// OpenMmap maps path with strict validation and checksum verification.
func OpenMmap(path string) (*MmapReader, error) {
	return OpenMmapWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// OpenMmapWithOptions maps path with custom options.
func OpenMmapWithOptions(path string, opts ReaderOptions) (*MmapReader, error) {
	//nolint:gosec // G304: input path comes from the user
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.Size() < FixedHeaderSize {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %d bytes, fixed header needs %d", ErrTruncated, stat.Size(), FixedHeaderSize)
	}

	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	r := &MmapReader{file: file, data: data}
	if err := r.init(opts); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *MmapReader) init(opts ReaderOptions) error {
	var err error
	if r.fixed, err = parseFixedHeader(r.data); err != nil {
		return fmt.Errorf("failed to parse header: %w", err)
	}
	if err := r.fixed.checkExtent(int64(len(r.data))); err != nil {
		return err
	}

	headerEnd := FixedHeaderSize + r.fixed.headerSize
	if err := json.Unmarshal(r.data[FixedHeaderSize:headerEnd], &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if err := ValidateHeader(&r.header, r.fixed.dataSize, opts.ValidationLevel); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if !opts.SkipChecksumValidation {
		if err := verifyChecksum(sumSection(r.section()), r.fixed.checksum); err != nil {
			return err
		}
	}
	return nil
}

// section returns the data section.
func (r *MmapReader) section() []byte {
	start := r.fixed.dataOffset()
	return r.data[start : start+r.fixed.dataSize]
}

// Header returns the file header.
func (r *MmapReader) Header() Header {
	return r.header
}

// Checksum returns the stored SHA-256 of the data section.
func (r *MmapReader) Checksum() Checksum {
	return r.fixed.checksum
}

// Flags returns the flags bitfield.
func (r *MmapReader) Flags() uint32 {
	return r.fixed.flags
}

// Variable returns the metadata of a variable.
func (r *MmapReader) Variable(name string) (*VariableMeta, error) {
	return r.header.Variable(name)
}

// VariableData returns a zero-copy slice of a variable's stored bytes.
// The slice is read-only and valid only while the reader is open.
func (r *MmapReader) VariableData(name string) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.header.Variable(name)
	if err != nil {
		return nil, err
	}
	section := r.section()
	end, err := meta.extent(int64(len(section)))
	if err != nil {
		return nil, err
	}
	return section[meta.Offset:end], nil
}

// Load decodes a variable into a float64 array. The result does not alias
// the mapping.
func (r *MmapReader) Load(name string, opts LoadOptions) (*ndarray.Array, error) {
	meta, err := r.header.Variable(name)
	if err != nil {
		return nil, err
	}
	raw, err := r.VariableData(name)
	if err != nil {
		return nil, err
	}
	return decode(meta, raw, opts)
}

// Close unmaps and closes the file.
func (r *MmapReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.data != nil {
		err = munmapFile(r.data)
		r.data = nil
	}
	if cerr := r.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

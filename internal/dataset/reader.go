package dataset

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/gridstat/internal/ndarray"
)

// Source is a readable dataset. Reader and MmapReader implement it.
type Source interface {
	Header() Header
	Variable(name string) (*VariableMeta, error)
	Load(name string, opts LoadOptions) (*ndarray.Array, error)
	Close() error
}

// ReaderOptions configures how a file is opened.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Faster but less safe.
	ValidationLevel        ValidationLevel // Header validation strictness.
}

// fixedHeader is the decoded 64-byte preamble.
type fixedHeader struct {
	version    uint32
	flags      uint32
	headerSize int64
	dataSize   int64
	checksum   Checksum
}

func parseFixedHeader(b []byte) (fixedHeader, error) {
	var fh fixedHeader
	if len(b) < FixedHeaderSize {
		return fh, fmt.Errorf("%w: %d bytes, fixed header needs %d", ErrTruncated, len(b), FixedHeaderSize)
	}
	if string(b[0:4]) != MagicBytes {
		return fh, fmt.Errorf("%w: got %q, expected %q", ErrInvalidMagic, b[0:4], MagicBytes)
	}
	fh.version = binary.LittleEndian.Uint32(b[4:8])
	if fh.version != FormatVersion {
		return fh, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, fh.version, FormatVersion)
	}
	fh.flags = binary.LittleEndian.Uint32(b[8:12])

	headerSize := binary.LittleEndian.Uint64(b[16:24])
	if headerSize > MaxHeaderSize {
		return fh, ErrHeaderTooLarge
	}
	dataSize := binary.LittleEndian.Uint64(b[24:32])
	if dataSize > 1<<62 {
		return fh, fmt.Errorf("data size too large: %d", dataSize)
	}
	fh.headerSize = int64(headerSize)
	fh.dataSize = int64(dataSize)
	copy(fh.checksum[:], b[ChecksumOffset:ChecksumOffset+ChecksumSize])
	return fh, nil
}

// dataOffset returns where the data section starts.
func (fh fixedHeader) dataOffset() int64 {
	return alignedOffset(fh.headerSize)
}

// checkExtent verifies the file is large enough to hold the data section.
func (fh fixedHeader) checkExtent(fileSize int64) error {
	if end := fh.dataOffset() + fh.dataSize; end > fileSize {
		return fmt.Errorf("%w: data section ends at %d, file size %d", ErrTruncated, end, fileSize)
	}
	return nil
}

// Reader reads a .grds file with positioned reads.
type Reader struct {
	file   *os.File
	fixed  fixedHeader
	header Header
	closed bool
}

// Open opens path with strict validation and checksum verification.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// OpenWithOptions opens path with custom options.
func OpenWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: input path comes from the user
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &Reader{file: file}
	if err := r.init(opts); err != nil {
		_ = file.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) init(opts ReaderOptions) error {
	stat, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	buf := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, buf); err != nil {
		return fmt.Errorf("failed to read fixed header: %w: %w", ErrTruncated, err)
	}
	if r.fixed, err = parseFixedHeader(buf); err != nil {
		return fmt.Errorf("failed to parse header: %w", err)
	}
	if err := r.fixed.checkExtent(stat.Size()); err != nil {
		return err
	}

	headerJSON := make([]byte, r.fixed.headerSize)
	if _, err := io.ReadFull(r.file, headerJSON); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerJSON, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}
	if err := ValidateHeader(&r.header, r.fixed.dataSize, opts.ValidationLevel); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if !opts.SkipChecksumValidation {
		section := io.NewSectionReader(r.file, r.fixed.dataOffset(), r.fixed.dataSize)
		computed, err := sumSectionReader(section)
		if err != nil {
			return fmt.Errorf("failed to read data for checksum: %w", err)
		}
		if err := verifyChecksum(computed, r.fixed.checksum); err != nil {
			return err
		}
	}
	return nil
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Variable returns the metadata of a variable.
func (r *Reader) Variable(name string) (*VariableMeta, error) {
	return r.header.Variable(name)
}

// ReadVariableData reads the stored bytes of a variable.
func (r *Reader) ReadVariableData(name string) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}
	meta, err := r.header.Variable(name)
	if err != nil {
		return nil, err
	}
	if _, err := meta.extent(r.fixed.dataSize); err != nil {
		return nil, err
	}
	data := make([]byte, meta.Size)
	if _, err := r.file.ReadAt(data, r.fixed.dataOffset()+meta.Offset); err != nil {
		return nil, fmt.Errorf("failed to read variable %q: %w", name, err)
	}
	return data, nil
}

// Load decodes a variable into a float64 array.
func (r *Reader) Load(name string, opts LoadOptions) (*ndarray.Array, error) {
	meta, err := r.header.Variable(name)
	if err != nil {
		return nil, err
	}
	raw, err := r.ReadVariableData(name)
	if err != nil {
		return nil, err
	}
	return decode(meta, raw, opts)
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

package dataset

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/born-ml/gridstat/internal/ndarray"
)

// Writer accumulates variables in memory and writes them as one .grds file.
type Writer struct {
	header Header
	dims   map[string]int
	data   [][]byte // Encoded variables, in header order.
	path   string   // Set by Create; written on Close.
	closed bool
}

// NewWriter creates an empty in-memory writer. Use WriteTo or WriteFile to
// produce the file.
func NewWriter() *Writer {
	return &Writer{
		header: Header{FormatVersion: FormatVersion},
		dims:   make(map[string]int),
	}
}

// Create returns a writer that writes to path when closed.
func Create(path string) (*Writer, error) {
	//nolint:gosec // G304: output path comes from the user
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	w := NewWriter()
	w.path = path
	return w, nil
}

// SetAttribute sets a global attribute.
func (w *Writer) SetAttribute(key string, value any) {
	if w.header.Attributes == nil {
		w.header.Attributes = make(Attributes)
	}
	w.header.Attributes[key] = value
}

// AddDimension declares a dimension. Declaring an existing dimension with
// the same length is a no-op.
func (w *Writer) AddDimension(name string, length int) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if length < 0 {
		return fmt.Errorf("dimension %q: negative length %d", name, length)
	}
	if have, ok := w.dims[name]; ok {
		if have != length {
			return fmt.Errorf("%w: dimension %q has length %d, got %d", ErrDimensionMismatch, name, have, length)
		}
		return nil
	}
	w.dims[name] = length
	w.header.Dimensions = append(w.header.Dimensions, Dimension{Name: name, Length: length})
	return nil
}

// AddVariable encodes a and appends it as variable name stored as dt.
//
// Anonymous dimensions of a are named "<name>_dim<i>". Named dimensions are
// declared on first use and must agree in length with earlier declarations.
func (w *Writer) AddVariable(name string, a *ndarray.Array, dt ndarray.DataType, attrs Attributes) error {
	if w.closed {
		return ErrClosed
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, err := w.header.Variable(name); err == nil {
		return &ValidationError{Type: "duplicate_variable", Variable: name, Details: "declared twice"}
	}
	if _, err := ndarray.ParseDataType(dt.String()); err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("variable %q: nil array", name)
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("variable %q: %w", name, err)
	}

	shape := a.Shape()
	dims := a.Dims()
	if len(dims) == 0 && len(shape) > 0 {
		dims = make([]string, len(shape))
		for i := range dims {
			dims[i] = fmt.Sprintf("%s_dim%d", name, i)
		}
	}
	for i, d := range dims {
		if err := w.AddDimension(d, shape[i]); err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
	}

	var offset int64
	if n := len(w.header.Variables); n > 0 {
		last := w.header.Variables[n-1]
		offset = last.Offset + last.Size
	}
	encoded := encode(a.Data(), dt)
	w.header.Variables = append(w.header.Variables, VariableMeta{
		Name:       name,
		DType:      dt.String(),
		Dims:       append([]string{}, dims...),
		Shape:      append([]int{}, shape...),
		Attributes: attrs,
		Offset:     offset,
		Size:       int64(len(encoded)),
	})
	w.data = append(w.data, encoded)
	return nil
}

// WriteTo writes the complete file to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	header := w.header
	header.CreatedAt = time.Now().UTC()
	return writeFile(out, &header, bytes.Join(w.data, nil))
}

// writeFile lays out the fixed header, the JSON header, padding and data.
func writeFile(out io.Writer, header *Header, data []byte) (int64, error) {
	checksum := sumSection(data)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal header: %w", err)
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	var flags uint32
	if len(header.Attributes) > 0 {
		flags |= FlagHasAttributes
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	// 0x0C-0x0F reserved.
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	headerLen := int64(len(headerJSON))
	padding := alignedOffset(headerLen) - FixedHeaderSize - headerLen

	var written int64
	for _, chunk := range [][]byte{fixed, headerJSON, make([]byte, padding), data} {
		n, err := out.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("failed to write dataset: %w", err)
		}
	}
	return written, nil
}

// WriteFile writes the complete file to path.
func (w *Writer) WriteFile(path string) (err error) {
	//nolint:gosec // G304: output path comes from the user
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()
	_, err = w.WriteTo(f)
	return err
}

// Close writes the file when the writer was made by Create. Calling Close
// more than once is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.path == "" {
		return nil
	}
	return w.WriteFile(w.path)
}

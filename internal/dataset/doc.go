// Package dataset reads and writes .grds files, a binary container of named,
// dimensioned variables.
//
//	File layout:
//	  [64 bytes: fixed header]
//	    0x00 magic "GRDS"
//	    0x04 version (uint32 LE)
//	    0x08 flags (uint32 LE)
//	    0x10 JSON header size (uint64 LE)
//	    0x18 data section size (uint64 LE)
//	    0x20 SHA-256 of the data section
//	  [JSON header: dimensions, variables, attributes]
//	  [padding to a 64-byte boundary]
//	  [variable data: little endian, one variable after another]
//
// Variables are stored as float32, float64 or int64 and always decoded to
// float64. Cells equal to a variable's _FillValue attribute can be masked to
// NaN on load.
//
// Example usage:
//
//	w := dataset.NewWriter()
//	_ = w.AddVariable("temperature", arr, ndarray.Float32, dataset.Attributes{"units": "K"})
//	_ = w.WriteFile("data.grds")
//
//	r, err := dataset.OpenMmap("data.grds")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	temp, err := r.Load("temperature", dataset.DefaultLoadOptions())
package dataset

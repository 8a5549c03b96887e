package symbols

import (
	"fmt"

	"github.com/saferwall/pe"

	"github.com/k2io/oakhook/image"
)

type peFile struct {
	pe   *pe.File
	data []byte
}

func openPE(data []byte) (rawFile, error) {
	f, err := pe.NewBytes(data, &pe.Options{})
	if err != nil {
		return nil, err
	}
	if err := f.Parse(); err != nil {
		return nil, err
	}
	return &peFile{pe: f, data: data}, nil
}

func (f *peFile) imageBase() uint64 {
	switch oh := f.pe.NtHeader.OptionalHeader.(type) {
	case pe.ImageOptionalHeader64:
		return oh.ImageBase
	case pe.ImageOptionalHeader32:
		return uint64(oh.ImageBase)
	}
	return 0
}

// Symbols returns the exported functions at their preferred addresses.
// Game executables are stripped, so this is usually empty.
func (f *peFile) Symbols() (map[string]uintptr, error) {
	base := f.imageBase()
	off := make(map[string]uintptr, len(f.pe.Export.Functions))
	for _, fn := range f.pe.Export.Functions {
		if fn.Name != "" {
			off[fn.Name] = uintptr(base + uint64(fn.FunctionRVA))
		}
	}
	return off, nil
}

// Text returns the code section picked by image.TextSection.
func (f *peFile) Text() (*image.Buffer, error) {
	text, err := image.TextSection(f.pe.Sections)
	if err != nil {
		return nil, err
	}
	start, end := uint64(text.PointerToRawData), uint64(text.PointerToRawData)+uint64(text.SizeOfRawData)
	if end > uint64(len(f.data)) {
		return nil, fmt.Errorf("section data at 0x%x exceeds file", start)
	}
	data := append([]byte(nil), f.data[start:end]...)
	return image.NewBuffer(uintptr(f.imageBase()+uint64(text.VirtualAddress)), data), nil
}

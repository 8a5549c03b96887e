package symbols

import (
	"debug/macho"

	"github.com/k2io/oakhook/image"
)

type machoFile struct {
	macho *macho.File
}

func openMacho(data []byte) (rawFile, error) {
	f, err := macho.NewFile(readerAt(data))
	if err != nil {
		return nil, err
	}
	return &machoFile{f}, nil
}

func (f *machoFile) Symbols() (map[string]uintptr, error) {
	if f.macho.Symtab == nil {
		return nil, nil
	}
	off := make(map[string]uintptr, len(f.macho.Symtab.Syms))
	for _, s := range f.macho.Symtab.Syms {
		off[s.Name] = uintptr(s.Value)
	}
	return off, nil
}

func (f *machoFile) Text() (*image.Buffer, error) {
	s := f.macho.Section("__text")
	if s == nil {
		return nil, ErrNoText
	}
	data, err := s.Data()
	if err != nil {
		return nil, err
	}
	return image.NewBuffer(uintptr(s.Addr), data), nil
}

package symbols

import (
	"debug/elf"

	"github.com/k2io/oakhook/image"
)

type elfFile struct {
	elf *elf.File
}

func openElf(data []byte) (rawFile, error) {
	f, err := elf.NewFile(readerAt(data))
	if err != nil {
		return nil, err
	}
	return &elfFile{f}, nil
}

func (e *elfFile) Symbols() (map[string]uintptr, error) {
	elfSyms, err := e.elf.Symbols()
	if err != nil {
		return nil, err
	}
	return getElfOff(elfSyms), nil
}

func getElfOff(stab []elf.Symbol) map[string]uintptr {
	elfOff := make(map[string]uintptr, len(stab))
	for _, k := range stab {
		elfOff[k.Name] = uintptr(k.Value)
	}
	return elfOff
}

func (e *elfFile) Text() (*image.Buffer, error) {
	s := e.elf.Section(".text")
	if s == nil {
		return nil, ErrNoText
	}
	data, err := s.Data()
	if err != nil {
		return nil, err
	}
	return image.NewBuffer(uintptr(s.Addr), data), nil
}

package image

import (
	"errors"
	"fmt"
	"io"

	"github.com/saferwall/pe"
	pelog "github.com/saferwall/pe/log"
)

// ErrNoText means an executable has no executable section.
var ErrNoText = errors.New("no executable section")

const sectionMemExecute = 0x20000000

// TextSection returns .text, or the first executable section when there is
// no section by that name.
func TextSection(sections []pe.Section) (*pe.ImageSectionHeader, error) {
	var text *pe.ImageSectionHeader
	for i := range sections {
		h := &sections[i].Header
		if h.Characteristics&sectionMemExecute == 0 {
			continue
		}
		if sections[i].NameString() == ".text" {
			return h, nil
		}
		if text == nil {
			text = h
		}
	}
	if text == nil {
		return nil, ErrNoText
	}
	return text, nil
}

// mappedText finds the code section of a PE image laid out the way the
// loader maps it. Only the headers at the start of mapped are read.
func mappedText(mapped []byte) (rva uint32, size uint32, err error) {
	f, err := pe.NewBytes(mapped, &pe.Options{Fast: true, Logger: pelog.NewStdLogger(io.Discard)})
	if err != nil {
		return 0, 0, err
	}
	if err := f.Parse(); err != nil {
		return 0, 0, err
	}
	h, err := TextSection(f.Sections)
	if err != nil {
		return 0, 0, err
	}
	size = h.VirtualSize
	if size == 0 {
		size = h.SizeOfRawData
	}
	if uint64(h.VirtualAddress)+uint64(size) > uint64(len(mapped)) {
		return 0, 0, fmt.Errorf("section at 0x%x exceeds image", h.VirtualAddress)
	}
	return h.VirtualAddress, size, nil
}

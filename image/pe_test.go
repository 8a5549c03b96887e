package image

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/saferwall/pe"
	"github.com/stretchr/testify/require"
)

const (
	sectionCode = 0x60000020 // code, execute, read
	sectionData = 0xc0000040 // initialized data, read, write
)

func section(name string, rva, size, flags uint32) pe.ImageSectionHeader {
	h := pe.ImageSectionHeader{
		VirtualSize:      size,
		VirtualAddress:   rva,
		SizeOfRawData:    size,
		PointerToRawData: rva - 0xc00,
		Characteristics:  flags,
	}
	copy(h.Name[:], name)
	return h
}

// mappedImage lays out the headers of a 0x4000 byte PE32+ image at its
// start, as the loader leaves them.
func mappedImage(t *testing.T, sections ...pe.ImageSectionHeader) []byte {
	var buf bytes.Buffer
	write := func(v any) { require.NoError(t, binary.Write(&buf, binary.LittleEndian, v)) }
	write(pe.ImageDOSHeader{Magic: pe.ImageDOSSignature, AddressOfNewEXEHeader: 0x80})
	buf.Write(make([]byte, 0x80-buf.Len()))
	write(uint32(pe.ImageNTSignature))
	write(pe.ImageFileHeader{
		Machine:              pe.ImageFileMachineAMD64,
		NumberOfSections:     uint16(len(sections)),
		SizeOfOptionalHeader: uint16(binary.Size(pe.ImageOptionalHeader64{})),
		Characteristics:      0x22,
	})
	write(pe.ImageOptionalHeader64{
		Magic:               pe.ImageNtOptionalHeader64Magic,
		ImageBase:           0x140000000,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfImage:         0x4000,
		SizeOfHeaders:       0x400,
		NumberOfRvaAndSizes: 16,
	})
	for _, s := range sections {
		write(s)
	}
	out := make([]byte, 0x4000)
	copy(out, buf.Bytes())
	return out
}

func Test_MappedText(t *testing.T) {
	img := mappedImage(t,
		section(".rdata", 0x1000, 0x800, sectionData),
		section(".text", 0x2000, 0xa10, sectionCode),
		section(".data", 0x3000, 0x200, sectionData))
	rva, size, err := mappedText(img)
	require.NoError(t, err)
	require.Equal(t, uint32(0x2000), rva)
	require.Equal(t, uint32(0xa10), size)

	// no .text: the first executable section
	img = mappedImage(t,
		section(".rdata", 0x1000, 0x800, sectionData),
		section("CODE", 0x2000, 0x400, sectionCode),
		section("INIT", 0x3000, 0x100, sectionCode))
	rva, size, err = mappedText(img)
	require.NoError(t, err)
	require.Equal(t, uint32(0x2000), rva)
	require.Equal(t, uint32(0x400), size)
}

func Test_MappedTextFailures(t *testing.T) {
	_, _, err := mappedText(mappedImage(t, section(".data", 0x1000, 0x200, sectionData)))
	require.ErrorIs(t, err, ErrNoText)

	_, _, err = mappedText(mappedImage(t, section(".text", 0x3000, 0x2000, sectionCode)))
	require.ErrorContains(t, err, "exceeds image")

	_, _, err = mappedText(make([]byte, 0x1000))
	require.Error(t, err)
}

// Package symbols reads the code section and symbol table of an executable
// on disk, so signatures can be checked without running the game.
package symbols

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/edsrzf/mmap-go"
	"go.uber.org/zap"

	"github.com/k2io/oakhook/image"
	"github.com/k2io/oakhook/internal/log"
)

// ErrNoText means the file has no executable section.
var ErrNoText = image.ErrNoText

type rawFile interface {
	Symbols() (map[string]uintptr, error)
	// Text returns the code section placed at its preferred address.
	Text() (*image.Buffer, error)
}

var objType = []func([]byte) (rawFile, error){
	openPE,
	openElf,
	openMacho,
}

// File is an executable mapped read-only.
type File struct {
	Name string
	f    *os.File
	data mmap.MMap
	raw  rawFile
}

func Open(name string) (*File, error) {
	r, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(r, mmap.RDONLY, 0)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("map %s: %w", name, err)
	}
	for _, try := range objType {
		raw, err := try(data)
		if err == nil {
			return &File{Name: name, f: r, data: data, raw: raw}, nil
		}
		log.L().Debug("not this object format", zap.String("file", name), zap.Error(err))
	}
	data.Unmap()
	r.Close()
	return nil, fmt.Errorf("open %s: unrecognized object file", name)
}

func (f *File) Text() (*image.Buffer, error) {
	return f.raw.Text()
}

func (f *File) Symbols() (map[string]uintptr, error) {
	return f.raw.Symbols()
}

func (f *File) Close() error {
	err := f.data.Unmap()
	if cerr := f.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadSymbols returns the symbols of the executable called name.
func ReadSymbols(name string) (map[string]uintptr, error) {
	f, err := Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Symbols()
}

func readerAt(data []byte) io.ReaderAt {
	return bytes.NewReader(data)
}

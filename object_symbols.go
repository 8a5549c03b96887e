package oakhook

import (
	"github.com/k2io/oakhook/image"
	sym "github.com/k2io/oakhook/internal/objSymbols"
)

func GetSymbols(name string) (map[string]uintptr, error) {
	return sym.ReadSymbols(name)
}

// ReadText loads the code section of the executable called name, placed at
// its preferred address, for scanning without a running process.
func ReadText(name string) (*image.Buffer, error) {
	f, err := sym.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.Text()
}

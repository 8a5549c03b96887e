package sigscan

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/k2io/oakhook/image"
	"github.com/k2io/oakhook/internal/log"
)

// Read says how the bytes at a signature's resolved location are interpreted.
type Read string

const (
	// ReadAddress uses the location itself.
	ReadAddress Read = ""
	// ReadRel32 follows the rel32 operand of a CALL or JMP.
	ReadRel32 Read = "rel32"
	// ReadPointer loads an absolute pointer.
	ReadPointer Read = "pointer"
	// ReadInt32 loads an embedded 32-bit displacement, such as a field offset.
	ReadInt32 Read = "int32"
	// ReadInt8 loads an embedded 8-bit displacement.
	ReadInt8 Read = "int8"
)

var (
	// ErrUnknownBase means a signature refers to a base that does not exist
	ErrUnknownBase = errors.New("unknown base signature")
	// ErrBaseCycle means signature bases refer to each other
	ErrBaseCycle = errors.New("signature base cycle")
)

// Signature describes how to find one address in the image.
//
// Either Pattern or Base is set. With Pattern, the image is scanned and the
// match is the start of the braced capture, or of the pattern if there is no
// capture. With Base, the match of another signature is reused, so several
// values can be pulled out of one scan. The location match+Offset is then
// interpreted according to Read.
type Signature struct {
	Name    string
	Pattern string
	// Fallback is scanned when Pattern has no unique match, for code that
	// differs between builds.
	Fallback string
	Base     string
	Offset   int
	Read     Read
	// Optional signatures resolve to 0 rather than failing.
	Optional bool
}

// Addresses holds resolved signatures by name.
type Addresses map[string]uintptr

// Int returns a resolved int32/int8 displacement as an int.
func (a Addresses) Int(name string) int {
	return int(int64(a[name]))
}

// Resolve scans for every signature. Any required signature that cannot be
// found fails the whole resolution: every later call depends on these.
func Resolve(img image.Image, sigs []Signature) (Addresses, error) {
	byName := make(map[string]*Signature, len(sigs))
	for i := range sigs {
		byName[sigs[i].Name] = &sigs[i]
	}
	r := &resolver{
		img:     img,
		sigs:    byName,
		matches: make(map[string]uintptr),
		out:     make(Addresses, len(sigs)),
		active:  make(map[string]bool),
	}
	for i := range sigs {
		if _, err := r.resolve(&sigs[i]); err != nil {
			return nil, err
		}
	}
	return r.out, nil
}

type resolver struct {
	img     image.Image
	sigs    map[string]*Signature
	matches map[string]uintptr
	out     Addresses
	active  map[string]bool
}

// match returns the pattern match of s, before offset and read are applied.
func (r *resolver) match(s *Signature) (uintptr, error) {
	if m, ok := r.matches[s.Name]; ok {
		return m, nil
	}
	if r.active[s.Name] {
		return 0, fmt.Errorf("%s: %w", s.Name, ErrBaseCycle)
	}
	r.active[s.Name] = true
	defer delete(r.active, s.Name)

	var m uintptr
	if s.Base != "" {
		base, ok := r.sigs[s.Base]
		if !ok {
			return 0, fmt.Errorf("%s: %w %q", s.Name, ErrUnknownBase, s.Base)
		}
		bm, err := r.match(base)
		if err != nil {
			return 0, err
		}
		if bm == 0 {
			if !s.Optional {
				return 0, fmt.Errorf("%s: base %s: %w", s.Name, s.Base, ErrPatternNotFound)
			}
			r.matches[s.Name] = 0
			return 0, nil
		}
		m = bm
	} else {
		p, err := Parse(s.Pattern)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", s.Name, err)
		}
		m, err = Scan(r.img, p)
		if errors.Is(err, ErrPatternNotFound) && s.Fallback != "" {
			log.L().Debug("pattern missing, trying fallback", zap.String("sig", s.Name))
			if p, err = Parse(s.Fallback); err != nil {
				return 0, fmt.Errorf("%s: %w", s.Name, err)
			}
			m, err = Scan(r.img, p)
		}
		if err != nil {
			// ambiguity fails optional signatures too
			if s.Optional && errors.Is(err, ErrPatternNotFound) {
				log.L().Debug("optional pattern not found", zap.String("sig", s.Name), zap.Error(err))
				r.matches[s.Name] = 0
				return 0, nil
			}
			return 0, fmt.Errorf("%s: %w", s.Name, err)
		}
		if off, _, ok := p.Capture(); ok {
			m += uintptr(off)
		}
	}
	r.matches[s.Name] = m
	return m, nil
}

func (r *resolver) resolve(s *Signature) (uintptr, error) {
	if v, ok := r.out[s.Name]; ok {
		return v, nil
	}
	m, err := r.match(s)
	if err != nil {
		return 0, err
	}
	if m == 0 {
		r.out[s.Name] = 0
		return 0, nil
	}
	at := uintptr(int64(m) + int64(s.Offset))
	v, err := read(r.img, at, s.Read)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.Name, err)
	}
	log.L().Debug("resolved signature", zap.String("sig", s.Name),
		zap.String("addr", fmt.Sprintf("0x%x", v)))
	r.out[s.Name] = v
	return v, nil
}

func read(img image.Image, at uintptr, how Read) (uintptr, error) {
	switch how {
	case ReadAddress:
		return at, nil
	case ReadRel32:
		return image.ResolveRelative(img, at)
	case ReadPointer:
		return image.ReadPointer(img, at)
	case ReadInt32:
		v, err := image.Read[int32](img, at)
		return uintptr(int64(v)), err
	case ReadInt8:
		v, err := image.Read[int8](img, at)
		return uintptr(int64(v)), err
	default:
		return 0, fmt.Errorf("unknown read %q", how)
	}
}

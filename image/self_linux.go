package image

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Self returns the executable mapping of the current process's main binary.
func Self() (*Module, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	if p, err := filepath.EvalSymlinks(exe); err == nil {
		exe = p
	}
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		// 00400000-00452000 r-xp 00000000 08:02 173521 /usr/bin/foo
		fields := strings.Fields(sc.Text())
		if len(fields) < 6 || fields[5] != exe || !strings.Contains(fields[1], "x") {
			continue
		}
		lo, hi, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}
		start, err := strconv.ParseUint(lo, 16, 64)
		if err != nil {
			return nil, err
		}
		end, err := strconv.ParseUint(hi, 16, 64)
		if err != nil {
			return nil, err
		}
		return NewModule(filepath.Base(exe), uintptr(start), int(end-start)), nil
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("no executable mapping for %s", exe)
}

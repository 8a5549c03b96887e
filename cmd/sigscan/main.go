// Command sigscan checks a signature table against a game executable on
// disk, or against the executable of a running game.
//
// For CLI usage instructions:
//
//	sigscan -help
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/k2io/oakhook"
	"github.com/k2io/oakhook/config"
	"github.com/k2io/oakhook/image"
	"github.com/k2io/oakhook/internal/log"
	"github.com/k2io/oakhook/sigscan"
)

var scanCmd = &cobra.Command{
	Use:          "sigscan [exe]",
	Short:        "Resolves every signature of the mod menu in a game executable",
	Args:         cobra.MaximumNArgs(1),
	RunE:         scanCommand,
	SilenceUsage: true,
}

var (
	configFlag  string
	pidFlag     int32
	allFlag     bool
	verboseFlag bool
)

func init() {
	scanCmd.Flags().StringVarP(&configFlag, "config", "c", "", "signature table to use instead of the built-in one")
	scanCmd.Flags().Int32VarP(&pidFlag, "pid", "p", 0, "scan the executable of this running process")
	scanCmd.Flags().BoolVarP(&allFlag, "all", "a", false, "list every match of each pattern")
	scanCmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", false, "log each resolution step")
}

func main() {
	if err := scanCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func scanCommand(cmd *cobra.Command, args []string) error {
	level := "warn"
	if verboseFlag {
		level = "debug"
	}
	logger, err := log.New(level, "stderr")
	if err != nil {
		return err
	}
	log.Set(logger)
	defer logger.Sync()

	cfg := config.Default()
	if configFlag != "" {
		if cfg, err = config.Load(configFlag); err != nil {
			return err
		}
	}

	var exe string
	switch {
	case len(args) == 1:
		exe = args[0]
	case pidFlag != 0:
		if exe, err = processExe(pidFlag); err != nil {
			return err
		}
	default:
		return fmt.Errorf("need an executable or --pid")
	}

	img, err := oakhook.ReadText(exe)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: .text at 0x%x, 0x%x bytes\n", exe, img.Base(), img.Len())
	syms, err := oakhook.GetSymbols(exe)
	if err != nil {
		log.L().Warn("no symbols", zap.String("exe", exe), zap.Error(err))
	}
	return check(cmd.OutOrStdout(), img, cfg, syms, allFlag)
}

func processExe(pid int32) (string, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return "", fmt.Errorf("process %d: %w", pid, err)
	}
	exe, err := p.Exe()
	if err != nil {
		return "", fmt.Errorf("process %d executable: %w", pid, err)
	}
	return exe, nil
}

// check resolves each signature on its own, so one broken signature does
// not hide the state of the others. It fails if any required one fails.
//
// Unstripped builds export some routines under their signature names; a
// symbol disagreeing with its signature is shown next to it.
func check(w io.Writer, img image.Image, cfg *config.Config, symbols map[string]uintptr, all bool) error {
	failed := 0
	for _, s := range cfg.Signatures {
		addr, err := resolve(img, cfg, s)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(w, "FAILED  %-60s %v\n", s.Name, err)
		case s.Optional && addr == 0:
			fmt.Fprintf(w, "missing %s\n", s.Name)
		default:
			fmt.Fprintf(w, "ok      %-60s 0x%x", s.Name, addr)
			if sym, ok := symbols[s.Name]; ok && sym != addr {
				fmt.Fprintf(w, " (symbol 0x%x)", sym)
			}
			fmt.Fprintln(w)
		}
		if all && s.Pattern != "" {
			listMatches(w, img, s)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d signatures failed", failed, len(cfg.Signatures))
	}
	return nil
}

func resolve(img image.Image, cfg *config.Config, s sigscan.Signature) (uintptr, error) {
	sigs, err := withBases(cfg, s)
	if err != nil {
		return 0, err
	}
	addrs, err := sigscan.Resolve(img, sigs)
	if err != nil {
		return 0, err
	}
	return addrs[s.Name], nil
}

// withBases returns s preceded by the chain of signatures it is based on.
func withBases(cfg *config.Config, s sigscan.Signature) ([]sigscan.Signature, error) {
	out := []sigscan.Signature{s}
	seen := map[string]bool{s.Name: true}
	for s.Base != "" {
		base, ok := cfg.Signature(s.Base)
		if !ok {
			return nil, fmt.Errorf("%s: %w %q", s.Name, sigscan.ErrUnknownBase, s.Base)
		}
		if seen[base.Name] {
			return nil, fmt.Errorf("%s: %w", s.Name, sigscan.ErrBaseCycle)
		}
		seen[base.Name] = true
		out = append([]sigscan.Signature{base}, out...)
		s = base
	}
	return out, nil
}

func listMatches(w io.Writer, img image.Image, s sigscan.Signature) {
	for _, text := range []string{s.Pattern, s.Fallback} {
		if text == "" {
			continue
		}
		p, err := sigscan.Parse(text)
		if err != nil {
			continue
		}
		matches, err := sigscan.ScanAll(img, p)
		if err != nil {
			fmt.Fprintf(w, "        %v\n", err)
			continue
		}
		for _, m := range matches {
			fmt.Fprintf(w, "        0x%x\n", m)
		}
	}
}

// Package it holds the integration harness that drives the built hashring
// binary end to end.
package it

import (
	"fmt"
	"os/exec"
	"strings"
)

// Harness runs hashring subcommands against one store location.
type Harness struct {
	binaryPath string
	location   string
}

// NewHarness creates a harness for the binary at binaryPath operating on
// the LevelDB store at location.
func NewHarness(binaryPath, location string) *Harness {
	return &Harness{binaryPath: binaryPath, location: location}
}

// Run executes one raw invocation and returns the trimmed combined output.
func (h *Harness) Run(args ...string) (string, error) {
	cmd := exec.Command(h.binaryPath, args...)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, fmt.Errorf("hashring %s: %w (output: %s)", strings.Join(args, " "), err, output)
	}
	return output, nil
}

// RunRing executes a subcommand against the harness store. Flags come
// before positional arguments, so extra args go after the store flags.
func (h *Harness) RunRing(subcommand string, args ...string) (string, error) {
	full := append([]string{subcommand, "-b", "leveldb", "-l", h.location}, args...)
	return h.Run(full...)
}

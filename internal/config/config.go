// Package config holds the CLI configuration: flag defaults loaded from an
// optional TOML file, and pnode list parsing.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// File holds defaults for the CLI flags. Flags given on the command line
// take precedence over values from the file.
type File struct {
	Location  string   `toml:"location"`
	Backend   string   `toml:"backend"`
	Algorithm string   `toml:"algorithm"`
	Vnodes    int      `toml:"vnodes"`
	Pnodes    []string `toml:"pnodes"`
}

// Load reads a TOML config file.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return &f, nil
}

// ParsePnodes parses a comma-separated pnode list in the format:
// "10.0.0.1:2020,10.0.0.2:2020"
func ParsePnodes(pnodesStr string) ([]string, error) {
	if strings.TrimSpace(pnodesStr) == "" {
		return nil, fmt.Errorf("pnode list cannot be empty")
	}

	parts := strings.Split(pnodesStr, ",")
	pnodes := make([]string, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty pnode in list: %q", pnodesStr)
		}
		pnodes = append(pnodes, part)
	}

	return pnodes, nil
}

// ParseVnodeIDs parses a comma-separated list of vnode ids ("0,2,4").
func ParseVnodeIDs(vnodesStr string) ([]int, error) {
	if strings.TrimSpace(vnodesStr) == "" {
		return nil, fmt.Errorf("vnode list cannot be empty")
	}

	parts := strings.Split(vnodesStr, ",")
	vnodes := make([]int, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid vnode id %q", part)
		}
		vnodes = append(vnodes, v)
	}

	return vnodes, nil
}

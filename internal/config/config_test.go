package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParsePnodes_Valid(t *testing.T) {
	pnodes, err := ParsePnodes("10.0.0.1:2020, 10.0.0.2:2020 ,10.0.0.3:2020")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	want := []string{"10.0.0.1:2020", "10.0.0.2:2020", "10.0.0.3:2020"}
	if !reflect.DeepEqual(pnodes, want) {
		t.Errorf("ParsePnodes = %v, want %v", pnodes, want)
	}
}

func TestParsePnodes_Single(t *testing.T) {
	pnodes, err := ParsePnodes("P1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !reflect.DeepEqual(pnodes, []string{"P1"}) {
		t.Errorf("ParsePnodes = %v, want [P1]", pnodes)
	}
}

func TestParsePnodes_Invalid(t *testing.T) {
	cases := []string{"", "  ", "P1,,P2", "P1, ,P2"}
	for _, input := range cases {
		if _, err := ParsePnodes(input); err == nil {
			t.Errorf("Expected error for input %q", input)
		}
	}
}

func TestParseVnodeIDs_Valid(t *testing.T) {
	vnodes, err := ParseVnodeIDs("0, 2,4")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !reflect.DeepEqual(vnodes, []int{0, 2, 4}) {
		t.Errorf("ParseVnodeIDs = %v, want [0 2 4]", vnodes)
	}
}

func TestParseVnodeIDs_Invalid(t *testing.T) {
	cases := []string{"", "a", "1,b", "1,", "1.5"}
	for _, input := range cases {
		if _, err := ParseVnodeIDs(input); err == nil {
			t.Errorf("Expected error for input %q", input)
		}
	}
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashring.toml")
	content := `
location = "/var/db/ring"
backend = "leveldb"
algorithm = "sha256"
vnodes = 1024
pnodes = ["10.0.0.1:2020", "10.0.0.2:2020"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	conf, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if conf.Location != "/var/db/ring" || conf.Backend != "leveldb" || conf.Algorithm != "sha256" || conf.Vnodes != 1024 {
		t.Errorf("unexpected config: %+v", conf)
	}
	if !reflect.DeepEqual(conf.Pnodes, []string{"10.0.0.1:2020", "10.0.0.2:2020"}) {
		t.Errorf("pnodes = %v", conf.Pnodes)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

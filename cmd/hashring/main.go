// Command hashring manages consistent hashing rings: create, mutate, and
// inspect ring topologies persisted in a LevelDB store or held in memory.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"hashring/internal/config"
	"hashring/internal/hashspace"
	"hashring/internal/ring"
	"hashring/internal/storage"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("hashring: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	if os.Args[1] == "-h" || os.Args[1] == "help" {
		usage()
		return
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: hashring <command> [flags] [args]

commands:
  create                    create a new ring (-a, -v count, -p pnodes, -b, -l)
  deserialize-ring          rebuild a ring from a topology file (-f, -b, -l)
  add-data                  attach data to a vnode (-v id, -d data; "null" clears)
  remap-vnode               reassign vnodes to a pnode (-p pnode, -v ids)
  remove-pnode              remove an empty pnode (-p pnode)
  get-pnodes                print the pnode set
  get-vnodes                print the vnodes owned by a pnode (-p pnode)
  get-vnode-pnode-and-data  print the owner and data of a vnode (-v id)
  get-data-vnodes           print the vnodes carrying data
  get-node                  resolve a key to its owner (key argument)
  print-hash                print the hash of a key (-a algorithm, key argument)
  diff                      diff two topology files (two file arguments)

flags:
  -l location   store location (required for the leveldb backend)
  -b backend    leveldb or memory (default leveldb)
  -a algorithm  hash algorithm (default sha256)
  -v value      vnode count (create) or vnode id(s)
  -p pnode      pnode, or comma-separated pnode list
  -f file       input topology file
  -d data       vnode data; the literal null clears
  -o            print the serialized ring after a mutation
  -c file       TOML config file with flag defaults
`)
}

type cliFlags struct {
	location  string
	backend   string
	algorithm string
	vnodes    string
	pnode     string
	file      string
	data      string
	output    bool
	confPath  string
	args      []string
}

func parseFlags(cmd string, args []string) (*cliFlags, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fl := &cliFlags{}
	fs.StringVar(&fl.location, "l", "", "store location")
	fs.StringVar(&fl.backend, "b", "", "backend: leveldb or memory")
	fs.StringVar(&fl.algorithm, "a", "", "hash algorithm")
	fs.StringVar(&fl.vnodes, "v", "", "vnode count or vnode id(s)")
	fs.StringVar(&fl.pnode, "p", "", "pnode, or comma-separated pnode list")
	fs.StringVar(&fl.file, "f", "", "input topology file")
	fs.StringVar(&fl.data, "d", "", "vnode data; the literal null clears")
	fs.BoolVar(&fl.output, "o", false, "print the serialized ring after a mutation")
	fs.StringVar(&fl.confPath, "c", "", "TOML config file with flag defaults")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fl.args = fs.Args()

	if fl.confPath != "" {
		conf, err := config.Load(fl.confPath)
		if err != nil {
			return nil, err
		}
		if fl.location == "" {
			fl.location = conf.Location
		}
		if fl.backend == "" {
			fl.backend = conf.Backend
		}
		if fl.algorithm == "" {
			fl.algorithm = conf.Algorithm
		}
		if fl.vnodes == "" && conf.Vnodes > 0 {
			fl.vnodes = strconv.Itoa(conf.Vnodes)
		}
		if fl.pnode == "" && len(conf.Pnodes) > 0 {
			joined := ""
			for i, p := range conf.Pnodes {
				if i > 0 {
					joined += ","
				}
				joined += p
			}
			fl.pnode = joined
		}
	}
	if fl.backend == "" {
		fl.backend = "leveldb"
	}
	if fl.algorithm == "" {
		fl.algorithm = "sha256"
	}
	return fl, nil
}

func run(cmd string, args []string) error {
	fl, err := parseFlags(cmd, args)
	if err != nil {
		return err
	}

	switch cmd {
	case "create":
		return runCreate(fl)
	case "deserialize-ring":
		return runDeserialize(fl)
	case "add-data":
		return runAddData(fl)
	case "remap-vnode":
		return runRemap(fl)
	case "remove-pnode":
		return runRemovePnode(fl)
	case "get-pnodes":
		return withRing(fl, func(r *ring.Ring) error {
			return printJSON(r.GetPnodes())
		})
	case "get-vnodes":
		return withRing(fl, func(r *ring.Ring) error {
			if fl.pnode == "" {
				return fmt.Errorf("get-vnodes requires -p pnode")
			}
			vnodes, err := r.GetVnodes(fl.pnode)
			if err != nil {
				return err
			}
			return printJSON(vnodes)
		})
	case "get-vnode-pnode-and-data":
		return withRing(fl, func(r *ring.Ring) error {
			v, err := strconv.Atoi(fl.vnodes)
			if err != nil {
				return fmt.Errorf("get-vnode-pnode-and-data requires -v vnode-id")
			}
			placement, err := r.GetVnodeData(v)
			if err != nil {
				return err
			}
			return printJSON(placement)
		})
	case "get-data-vnodes":
		return withRing(fl, func(r *ring.Ring) error {
			return printJSON(r.GetDataVnodes())
		})
	case "get-node":
		return withRing(fl, func(r *ring.Ring) error {
			if len(fl.args) != 1 {
				return fmt.Errorf("get-node requires a key argument")
			}
			return printJSON(r.GetNode([]byte(fl.args[0])))
		})
	case "print-hash":
		return runPrintHash(fl)
	case "diff":
		return runDiff(fl)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func openBackend(fl *cliFlags) (storage.Backend, error) {
	switch fl.backend {
	case "leveldb":
		if fl.location == "" {
			return nil, fmt.Errorf("leveldb backend requires -l location")
		}
		return storage.OpenLevelDB(fl.location)
	case "memory":
		return storage.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (leveldb or memory)", fl.backend)
	}
}

// withRing opens the ring at the configured location, runs fn, and closes.
func withRing(fl *cliFlags, fn func(*ring.Ring) error) error {
	backend, err := openBackend(fl)
	if err != nil {
		return err
	}
	r, err := ring.Load(backend)
	if err != nil {
		backend.Close()
		return err
	}
	defer r.Close()
	return fn(r)
}

func runCreate(fl *cliFlags) error {
	count, err := strconv.Atoi(fl.vnodes)
	if err != nil {
		return fmt.Errorf("create requires -v vnode-count")
	}
	pnodes, err := config.ParsePnodes(fl.pnode)
	if err != nil {
		return err
	}
	backend, err := openBackend(fl)
	if err != nil {
		return err
	}
	r, err := ring.Create(ring.Options{
		Algorithm: fl.algorithm,
		Vnodes:    count,
		Pnodes:    pnodes,
		Backend:   backend,
	})
	if err != nil {
		backend.Close()
		return err
	}
	defer r.Close()
	return maybePrintRing(r, fl)
}

func runDeserialize(fl *cliFlags) error {
	if fl.file == "" {
		return fmt.Errorf("deserialize-ring requires -f topology-file")
	}
	raw, err := os.ReadFile(fl.file)
	if err != nil {
		return err
	}
	backend, err := openBackend(fl)
	if err != nil {
		return err
	}
	r, err := ring.Deserialize(raw, backend)
	if err != nil {
		backend.Close()
		return err
	}
	defer r.Close()
	return maybePrintRing(r, fl)
}

func runAddData(fl *cliFlags) error {
	return withRing(fl, func(r *ring.Ring) error {
		v, err := strconv.Atoi(fl.vnodes)
		if err != nil {
			return fmt.Errorf("add-data requires -v vnode-id")
		}
		var value []byte
		if fl.data != "null" {
			// make keeps an empty -d distinguishable from the clearing nil.
			value = make([]byte, len(fl.data))
			copy(value, fl.data)
		}
		if err := r.AddData(v, value); err != nil {
			return err
		}
		return maybePrintRing(r, fl)
	})
}

func runRemap(fl *cliFlags) error {
	return withRing(fl, func(r *ring.Ring) error {
		if fl.pnode == "" {
			return fmt.Errorf("remap-vnode requires -p target-pnode")
		}
		vnodes, err := config.ParseVnodeIDs(fl.vnodes)
		if err != nil {
			return err
		}
		changes, err := r.Remap(fl.pnode, vnodes)
		if err != nil {
			return err
		}
		if err := printJSON(changes); err != nil {
			return err
		}
		return maybePrintRing(r, fl)
	})
}

func runRemovePnode(fl *cliFlags) error {
	return withRing(fl, func(r *ring.Ring) error {
		if fl.pnode == "" {
			return fmt.Errorf("remove-pnode requires -p pnode")
		}
		if err := r.RemovePnode(fl.pnode); err != nil {
			return err
		}
		return maybePrintRing(r, fl)
	})
}

func runPrintHash(fl *cliFlags) error {
	if len(fl.args) != 1 {
		return fmt.Errorf("print-hash requires a key argument")
	}
	space, err := hashspace.New(fl.algorithm, 1)
	if err != nil {
		return err
	}
	fmt.Println(space.Sum([]byte(fl.args[0])).Text(16))
	return nil
}

func runDiff(fl *cliFlags) error {
	files := fl.args
	if fl.file != "" {
		files = append([]string{fl.file}, files...)
	}
	if len(files) != 2 {
		return fmt.Errorf("diff requires two topology files")
	}

	load := func(path string) (*ring.Ring, error) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return ring.Deserialize(raw, storage.NewMemoryBackend())
	}

	a, err := load(files[0])
	if err != nil {
		return err
	}
	defer a.Close()
	b, err := load(files[1])
	if err != nil {
		return err
	}
	defer b.Close()

	changes, err := ring.Diff(a, b)
	if err != nil {
		return err
	}
	return printJSON(changes)
}

func maybePrintRing(r *ring.Ring, fl *cliFlags) error {
	if !fl.output {
		return nil
	}
	raw, err := r.Serialize()
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

func printJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}

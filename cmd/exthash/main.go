package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/docopt/docopt-go"

	"github.com/hupe1980/exthash"
)

type Opts struct {
	Demo    bool
	Status  bool
	Put     bool
	Get     bool
	Remove  bool
	Dir     string
	Key     string
	Value   string
	Keys    int  `docopt:"--keys"`
	Cap     int  `docopt:"--capacity"`
	Batch   bool `docopt:"--batch"`
	Verbose bool `docopt:"-v"`
}

func main() {
	os.Exit(run())
}

func run() (rc int) {
	usage := `exthash - persistent extendible-hash index

Usage:
  exthash demo <dir> [--keys=<n>] [--capacity=<n>] [--batch] [-v]
  exthash status <dir>
  exthash put <dir> <key> <value>
  exthash get <dir> <key>
  exthash remove <dir> <key>

Options:
  --keys=<n>      Number of demo keys to insert [default: 100].
  --capacity=<n>  Bucket capacity [default: 4].
  --batch         Batch durability: persist on save instead of per mutation.
  -v              Verbose logging.
  -h --help       Show this screen.
  --version       Show version.
`
	parser := &docopt.Parser{OptionsFirst: false}
	o, _ := parser.ParseArgs(usage, os.Args[1:], "0.1")
	var opts Opts
	if err := o.Bind(&opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	switch {
	case opts.Demo:
		return demo(opts)
	case opts.Status:
		return status(opts)
	case opts.Put:
		return put(opts)
	case opts.Get:
		return get(opts)
	case opts.Remove:
		return remove(opts)
	}
	return 0
}

func demo(opts Opts) int {
	logger := exthash.NoopLogger()
	if opts.Verbose {
		logger = exthash.NewTextLogger(slog.LevelDebug)
	}

	tableOpts := []exthash.Option{
		exthash.WithBucketCapacity(opts.Cap),
		exthash.WithLogger(logger),
	}
	if opts.Batch {
		tableOpts = append(tableOpts, exthash.WithDurability(exthash.DurabilityBatch))
	}

	table, err := exthash.New[string, string](opts.Dir, exthash.XXH64String, tableOpts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	for i := 0; i < opts.Keys; i++ {
		key := fmt.Sprintf("key-%04d", i)
		if _, _, err := table.Put(key, fmt.Sprintf("value-%04d", i)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	if err := table.Save(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	fmt.Println(table.Status())
	return 0
}

func load(dir string) (*exthash.Table[string, string], error) {
	return exthash.Load[string, string](dir, exthash.XXH64String)
}

func status(opts Opts) int {
	table, err := load(opts.Dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(table.Status())
	return 0
}

func put(opts Opts) int {
	table, err := load(opts.Dir)
	if errors.Is(err, exthash.ErrCorruptMetadata) {
		table, err = exthash.New[string, string](opts.Dir, exthash.XXH64String)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if _, _, err := table.Put(opts.Key, opts.Value); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := table.Save(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func get(opts Opts) int {
	table, err := load(opts.Dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	v, ok := table.Get(opts.Key)
	if !ok {
		fmt.Fprintf(os.Stderr, "key %q not found\n", opts.Key)
		return 1
	}
	fmt.Println(v)
	return 0
}

func remove(opts Opts) int {
	table, err := load(opts.Dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if _, existed, err := table.Remove(opts.Key); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	} else if !existed {
		fmt.Fprintf(os.Stderr, "key %q not found\n", opts.Key)
		return 1
	}
	if err := table.Save(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

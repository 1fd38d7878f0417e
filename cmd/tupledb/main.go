// Command tupledb inspects and edits a tupledb store from the shell.
//
// Usage:
//
//	tupledb [flags] init
//	tupledb [flags] entries
//	tupledb [flags] get KEY [FIELD]
//	tupledb [flags] put KEY field=value...
//	tupledb [flags] new KEY field=value...
//	tupledb [flags] incr KEY FIELD [DELTA]
//	tupledb [flags] import FILE
//
// Values are parsed as JSON and fall back to plain strings. Settings come
// from flags layered over an optional YAML config file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/sync/errgroup"

	"github.com/andreyvit/tupledb"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "tupledb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	cfg := defaultConfig()
	configPath := flag.String("config", "tupledb.yaml", "YAML config file")
	dbPath := flag.String("db", "", "Store location (file path or URL for json, file path for bolt)")
	backend := flag.String("backend", "", "Backend: json or bolt")
	ordering := flag.String("ordering", "", "Job ordering: global or key")
	schemaSpec := flag.String("schema", "", `Schema for a new store, e.g. score=0,name,tags=["a","b"] (commas inside JSON defaults do not split)`)
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	verbose := flag.Bool("v", false, "Log every job")
	flag.Parse()

	explicitConfig := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})
	if err := loadConfig(&cfg, *configPath, explicitConfig); err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DB = *dbPath
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *ordering != "" {
		cfg.Ordering = *ordering
	}
	if *schemaSpec != "" {
		cfg.Schema = splitList(*schemaSpec)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *verbose {
		cfg.Verbose = true
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	scm, err := cfg.schema()
	if err != nil {
		return err
	}
	opt, err := cfg.options(logger)
	if err != nil {
		return err
	}
	st, closeBackend, err := openStore(ctx, &cfg, scm, opt)
	if err != nil {
		return err
	}
	defer closeBackend()

	runErr := run(ctx, st, args, os.Stdout)
	// Stop must not be cut short by the signal context, or pending writes are lost.
	stopErr := st.Stop(context.Background())
	return errors.Join(runErr, stopErr)
}

func openStore(ctx context.Context, cfg *config, scm *tupledb.Schema, opt tupledb.Options) (*tupledb.Store, func(), error) {
	switch cfg.Backend {
	case "", "json":
		st, err := tupledb.OpenFile(ctx, cfg.DB, scm, opt)
		return st, func() {}, err
	case "bolt":
		bb, err := tupledb.OpenBolt(cfg.DB, tupledb.BoltOptions{})
		if err != nil {
			return nil, nil, err
		}
		st, err := tupledb.Open(ctx, bb, scm, opt)
		if err != nil {
			bb.Close()
			return nil, nil, err
		}
		return st, func() { bb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func run(ctx context.Context, st *tupledb.Store, args []string, w io.Writer) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "init":
		return printJSON(w, st.Schema().Fields())

	case "entries":
		keys, err := st.Entries(ctx)
		if err != nil {
			return err
		}
		return printJSON(w, keys)

	case "get":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("usage: get KEY [FIELD]")
		}
		if len(args) == 2 {
			v, err := st.Get(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(w, v)
		}
		view, err := st.GetEntry(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(w, view)

	case "put", "new":
		if len(args) < 1 {
			return fmt.Errorf("usage: %s KEY field=value...", cmd)
		}
		fields, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		if cmd == "new" {
			return st.NewEntry(ctx, args[0], fields)
		}
		return st.Put(ctx, args[0], fields)

	case "incr":
		if len(args) < 2 || len(args) > 3 {
			return errors.New("usage: incr KEY FIELD [DELTA]")
		}
		delta := 1.0
		if len(args) == 3 {
			var err error
			delta, err = strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid delta %q: %w", args[2], err)
			}
		}
		v, err := increment(ctx, st, args[0], args[1], delta)
		if err != nil {
			return err
		}
		return printJSON(w, v)

	case "import":
		if len(args) != 1 {
			return errors.New("usage: import FILE")
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		n, err := importEntries(ctx, st, raw)
		if err != nil {
			return err
		}
		slog.Info("imported", "entries", n)
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func increment(ctx context.Context, st *tupledb.Store, key, field string, delta float64) (float64, error) {
	if _, ok := st.Schema().Index(field); !ok {
		return 0, fmt.Errorf("unknown field %q", field)
	}
	return tupledb.Perform(ctx, st, key, func(ctx context.Context, view tupledb.View) (float64, error) {
		cur, err := toFloat(view[field])
		if err != nil {
			return 0, fmt.Errorf("%s.%s: %w", key, field, err)
		}
		cur += delta
		view[field] = cur
		return cur, nil
	})
}

// importEntries applies a JSON object of {key: {field: value}} as puts.
func importEntries(ctx context.Context, st *tupledb.Store, raw []byte) (int, error) {
	var doc map[string]map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("invalid import document: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for key, fields := range doc {
		g.Go(func() error {
			return st.Put(ctx, key, fields)
		})
	}
	return len(doc), g.Wait()
}

func toFloat(v any) (float64, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"davstore/internal/config"
	"davstore/internal/remote"
	"davstore/internal/storage"
)

// commonFlags are registered on every subcommand's flag set.
type commonFlags struct {
	configPath string
	envPath    string
	logJSON    bool
	verbose    bool
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "config.yaml", "Path to config file")
	fs.StringVar(&c.envPath, "env", ".env", "Path to .env file (ignored if missing)")
	fs.BoolVar(&c.logJSON, "log-json", false, "Emit logs as JSON")
	fs.BoolVar(&c.verbose, "v", false, "Enable debug logging")
	return fs, c
}

func (c *commonFlags) logger(stderr io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if c.verbose {
		opts.Level = slog.LevelDebug
	}
	if c.logJSON {
		return slog.New(slog.NewJSONHandler(stderr, opts))
	}
	return slog.New(slog.NewTextHandler(stderr, opts))
}

func (c *commonFlags) load() (*config.Config, error) {
	if err := config.LoadDotEnv(c.envPath); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// session is the parsed state shared by the single-name commands.
type session struct {
	name   string
	store  storage.Storage
	logger *slog.Logger
}

// open parses args, loads configuration and builds the storage client.
// It returns a non-zero exit code when the command cannot proceed.
func open(fs *flag.FlagSet, c *commonFlags, args []string, stderr io.Writer) (*session, int) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, 0
		}
		return nil, 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "%s: exactly one file name is required\n", fs.Name())
		fs.Usage()
		return nil, 2
	}

	logger := c.logger(stderr)
	cfg, err := c.load()
	if err != nil {
		logger.Error("configuration failed", "err", err)
		return nil, 1
	}

	store, err := remote.NewStorage(context.Background(), cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to create storage", "type", cfg.Storage.Type, "err", err)
		return nil, 1
	}
	return &session{name: fs.Arg(0), store: store, logger: logger}, 0
}

func fail(logger *slog.Logger, op, name string, err error) int {
	logger.Error(op+" failed", "name", name, "err", err)
	return 1
}

func handleExists(args []string, _ io.Reader, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("exists", stderr)
	s, code := open(fs, c, args, stderr)
	if s == nil {
		return code
	}

	ok, err := s.store.Exists(context.Background(), s.name)
	if err != nil {
		return fail(s.logger, "exists", s.name, err)
	}
	fmt.Fprintln(stdout, strconv.FormatBool(ok))
	return 0
}

func handleStat(args []string, _ io.Reader, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("stat", stderr)
	s, code := open(fs, c, args, stderr)
	if s == nil {
		return code
	}

	st, err := s.store.Stat(context.Background(), s.name)
	if err != nil {
		return fail(s.logger, "stat", s.name, err)
	}
	fmt.Fprintf(stdout, "exists=%t status=%d\n", st.Exists, st.Status)
	return 0
}

func handleSize(args []string, _ io.Reader, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("size", stderr)
	s, code := open(fs, c, args, stderr)
	if s == nil {
		return code
	}

	n, err := s.store.Size(context.Background(), s.name)
	if err != nil {
		return fail(s.logger, "size", s.name, err)
	}
	fmt.Fprintln(stdout, n)
	return 0
}

func handleGet(args []string, _ io.Reader, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("get", stderr)
	output := fs.String("o", "", "Write content to this file instead of stdout")
	s, code := open(fs, c, args, stderr)
	if s == nil {
		return code
	}

	f, err := s.store.Open(context.Background(), s.name, os.O_RDONLY)
	if err != nil {
		return fail(s.logger, "open", s.name, err)
	}
	defer f.Close()

	if *output == "" {
		if _, err := io.Copy(stdout, f); err != nil {
			return fail(s.logger, "get", s.name, err)
		}
		return 0
	}

	n, err := writeFile(*output, f)
	if err != nil {
		return fail(s.logger, "get", s.name, err)
	}
	s.logger.Debug("downloaded", "name", s.name, "bytes", n)
	return 0
}

// writeFile copies r into path. The Close error is returned too.
func writeFile(path string, r io.Reader) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func handlePut(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("put", stderr)
	input := fs.String("i", "", "Read content from this file instead of stdin")
	s, code := open(fs, c, args, stderr)
	if s == nil {
		return code
	}

	var r io.Reader = stdin
	if *input != "" {
		in, err := os.Open(*input)
		if err != nil {
			return fail(s.logger, "put", s.name, err)
		}
		defer in.Close()
		r = in
	}

	stored, err := s.store.Save(context.Background(), s.name, r)
	if err != nil {
		return fail(s.logger, "put", s.name, err)
	}
	fmt.Fprintln(stdout, stored)
	return 0
}

func handleRemove(args []string, _ io.Reader, _, stderr io.Writer) int {
	fs, c := newFlagSet("rm", stderr)
	s, code := open(fs, c, args, stderr)
	if s == nil {
		return code
	}

	if err := s.store.Delete(context.Background(), s.name); err != nil {
		return fail(s.logger, "rm", s.name, err)
	}
	return 0
}

func handleURL(args []string, _ io.Reader, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("url", stderr)
	s, code := open(fs, c, args, stderr)
	if s == nil {
		return code
	}

	fmt.Fprintln(stdout, s.store.URL(s.name))
	return 0
}

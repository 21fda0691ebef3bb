// Command dsarchive inspects and builds record containers.
//
// Usage:
//
//	dsarchive [global flags] <command> [flags] <source>
//
// Commands:
//
//	count    print the number of records
//	types    print the type code of every record
//	inspect  print offset, size and digest of every record
//	raw      write the stored bytes of one record to stdout
//	verify   check one record against a digest
//	pack     write files as records of a new container
//
// A source is a file path or an http(s) URL served with range support.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/dsarchive"
	"github.com/meigma/dsarchive/codec/dataset"
	dshttp "github.com/meigma/dsarchive/http"
)

// exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// globals are the flags shared by every command.
type globals struct {
	verbose bool
	mode    string
	comp    string
	tag     string
	prefix  string
	partial bool
	maxSize uint64
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var g globals
	fs := flag.NewFlagSet("dsarchive", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&g.verbose, "v", false, "log diagnostics to stderr")
	fs.StringVar(&g.mode, "mode", "auto", "container layout: auto, flat or archive")
	fs.StringVar(&g.comp, "compression", "", "flat stream compression: none, gzip, zstd, s2 or lz4 (sniffed when empty)")
	fs.StringVar(&g.tag, "tag", dsarchive.DefaultRecordTag, "record boundary tag of flat containers")
	fs.StringVar(&g.prefix, "prefix", dsarchive.DefaultEntryPrefix, "record entry prefix of archives")
	fs.BoolVar(&g.partial, "partial", false, "keep the records before a nesting violation instead of failing")
	fs.Uint64Var(&g.maxSize, "max-record-size", dsarchive.DefaultMaxRecordSize, "largest record read into memory (0 = no limit)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: dsarchive [flags] count|types|inspect|raw|verify|pack [flags] <source>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	logger := slog.New(slog.DiscardHandler)
	if g.verbose {
		logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch cmd {
	case "count":
		err = cmdCount(ctx, g, logger, rest, stdout, stderr)
	case "types":
		err = cmdTypes(ctx, g, logger, rest, stdout, stderr)
	case "inspect":
		err = cmdInspect(ctx, g, logger, rest, stdout, stderr)
	case "raw":
		err = cmdRaw(ctx, g, logger, rest, stdout, stderr)
	case "verify":
		err = cmdVerify(ctx, g, logger, rest, stdout, stderr)
	case "pack":
		err = cmdPack(g, logger, rest, stderr)
	default:
		fmt.Fprintf(stderr, "dsarchive: unknown command %q\n", cmd)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		return exitUsage
	default:
		fmt.Fprintf(stderr, "dsarchive %s: %v\n", cmd, err)
		return exitError
	}
}

// subcommand parses the flags of a command that takes one source argument.
func subcommand(name string, stderr io.Writer, args []string, setup func(*flag.FlagSet)) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	if setup != nil {
		setup(fs)
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(stderr, "usage: dsarchive %s [flags] <source>\n", name)
		return "", errUsage
	}
	return fs.Arg(0), nil
}

// open opens the container named by location with the global options.
func open(ctx context.Context, g globals, logger *slog.Logger, location string) (*dsarchive.Container[*dataset.DataSet], error) {
	opts := []dsarchive.Option{
		dsarchive.WithRecordTag(g.tag),
		dsarchive.WithEntryPrefix(g.prefix),
		dsarchive.WithMaxRecordSize(g.maxSize),
		dsarchive.WithLogger(logger),
	}
	mode, err := parseMode(g.mode)
	if err != nil {
		return nil, err
	}
	opts = append(opts, dsarchive.WithMode(mode))
	if g.comp != "" {
		comp, err := parseCompression(g.comp)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dsarchive.WithCompression(comp))
	}
	if g.partial {
		opts = append(opts, dsarchive.WithNestingPolicy(dsarchive.FailOpenWithPartialIndex))
	}

	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		src, err := dshttp.NewSource(ctx, location, dshttp.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return dsarchive.New[*dataset.DataSet](src, dataset.Codec{}, opts...)
	}
	return dsarchive.Open[*dataset.DataSet](location, dataset.Codec{}, opts...)
}

func cmdCount(ctx context.Context, g globals, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	location, err := subcommand("count", stderr, args, nil)
	if err != nil {
		return err
	}
	c, err := open(ctx, g, logger, location)
	if err != nil {
		return err
	}
	defer c.Close()
	_, err = fmt.Fprintln(stdout, c.Count())
	return err
}

func cmdTypes(ctx context.Context, g globals, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	location, err := subcommand("types", stderr, args, nil)
	if err != nil {
		return err
	}
	c, err := open(ctx, g, logger, location)
	if err != nil {
		return err
	}
	defer c.Close()

	for i := range c.Count() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code, err := c.ProbeType(i)
		if err != nil {
			fmt.Fprintf(stdout, "%d\t!%v\n", i, err)
			continue
		}
		fmt.Fprintf(stdout, "%d\t%s\n", i, code)
	}
	return nil
}

func cmdInspect(ctx context.Context, g globals, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	var workers int
	location, err := subcommand("inspect", stderr, args, func(fs *flag.FlagSet) {
		fs.IntVar(&workers, "workers", 0, "concurrent inspections (0 = GOMAXPROCS, <0 = serial)")
	})
	if err != nil {
		return err
	}
	c, err := open(ctx, g, logger, location)
	if err != nil {
		return err
	}
	defer c.Close()

	infos, err := c.InspectAll(ctx, workers)
	if err != nil {
		return err
	}
	for _, info := range infos {
		where := info.Name
		if where == "" {
			where = fmt.Sprintf("@%d", info.Offset)
		}
		if !info.Closed {
			where += " (unclosed)"
		}
		fmt.Fprintf(stdout, "%d\t%s\t%d\t%s\t%016x\n", info.Index, where, info.Size, info.Digest, info.Checksum)
	}
	return nil
}

func cmdRaw(ctx context.Context, g globals, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	var index int
	location, err := subcommand("raw", stderr, args, func(fs *flag.FlagSet) {
		fs.IntVar(&index, "i", 0, "record index")
	})
	if err != nil {
		return err
	}
	c, err := open(ctx, g, logger, location)
	if err != nil {
		return err
	}
	defer c.Close()

	data, err := c.FetchRaw(index)
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

func cmdVerify(ctx context.Context, g globals, logger *slog.Logger, args []string, stdout, stderr io.Writer) error {
	var (
		index int
		want  string
	)
	location, err := subcommand("verify", stderr, args, func(fs *flag.FlagSet) {
		fs.IntVar(&index, "i", 0, "record index")
		fs.StringVar(&want, "digest", "", "expected digest, e.g. sha256:...")
	})
	if err != nil {
		return err
	}
	c, err := open(ctx, g, logger, location)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Verify(index, digest.Digest(want)); err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "%d\tok\n", index)
	return err
}

func cmdPack(g globals, logger *slog.Logger, args []string, stderr io.Writer) error {
	var (
		out    string
		header string
	)
	fs := flag.NewFlagSet("pack", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&out, "o", "", "output file")
	fs.StringVar(&header, "header", "", "file written before the records (flat) or as the header entry (archive)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if out == "" || fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: dsarchive pack -o <output> [-header file] <record files...>")
		return errUsage
	}

	opts := []dsarchive.WriterOption{
		dsarchive.WriteWithRecordTag(g.tag),
		dsarchive.WriteWithEntryPrefix(g.prefix),
		dsarchive.WriteWithLogger(logger),
	}
	mode, err := parseMode(g.mode)
	if err != nil {
		return err
	}
	opts = append(opts, dsarchive.WriteWithMode(mode))
	if g.comp != "" {
		comp, err := parseCompression(g.comp)
		if err != nil {
			return err
		}
		opts = append(opts, dsarchive.WriteWithCompression(comp))
	}
	if header != "" {
		data, err := os.ReadFile(header)
		if err != nil {
			return err
		}
		opts = append(opts, dsarchive.WriteWithHeader("", data))
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := pack(f, fs.Args(), opts); err != nil {
		f.Close()
		return errors.Join(err, os.Remove(out))
	}
	return f.Close()
}

func pack(dst io.Writer, files []string, opts []dsarchive.WriterOption) error {
	w, err := dsarchive.NewWriter(dst, opts...)
	if err != nil {
		return err
	}
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		if err := w.Add(trimNewline(data)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return w.Close()
}

// trimNewline drops the line ending most editors leave after the record.
func trimNewline(data []byte) []byte {
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	return data
}

func parseMode(s string) (dsarchive.Mode, error) {
	for _, m := range []dsarchive.Mode{dsarchive.ModeAuto, dsarchive.ModeFlat, dsarchive.ModeArchive} {
		if s == m.String() {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func parseCompression(s string) (dsarchive.Compression, error) {
	for _, c := range []dsarchive.Compression{
		dsarchive.CompressionNone,
		dsarchive.CompressionGzip,
		dsarchive.CompressionZstd,
		dsarchive.CompressionS2,
		dsarchive.CompressionLZ4,
	} {
		if s == c.String() {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q", s)
}

// Package process implements command line actions.
package process

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"csscc/archive"
	"csscc/compiler"
	"csscc/config"
	"csscc/encode/bin"
	"csscc/encode/text"
	"csscc/ir"
	"csscc/state"
)

// Compile is the action of compile command.
func Compile(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Logger().Named("compile")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	dst := cmd.Args().Get(1)
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	if cmd.IsSet("to") {
		format, err := config.ParseOutputFormat(cmd.String("to"))
		if err != nil {
			log.Warn("Unknown output format requested, keeping configured one", zap.Stringer("format", env.Format), zap.Error(err))
		} else {
			env.Format = format
		}
	}
	if cmd.IsSet("strict") {
		env.Strict = cmd.Bool("strict")
	}
	if cmd.IsSet("overwrite") {
		env.Overwrite = cmd.Bool("overwrite")
	}
	env.ID = cmd.String("id")

	return Run(ctx, src, dst)
}

// Run compiles stylesheet file, all matching files under directory or
// inside zip archive src into dst directory (working directory when empty).
// Failure on a single stylesheet does not stop processing, all failures are
// returned at the end.
func Run(ctx context.Context, src, dst string) (err error) {
	env := state.EnvFromContext(ctx)
	log := env.Logger().Named("compile")

	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}

	sources, err := collectSources(ctx, src, pattern(env))
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		log.Info("Nothing to process", zap.String("source", src))
		return nil
	}
	if len(env.ID) > 0 && len(sources) > 1 {
		log.Warn("Stylesheet id ignored when compiling multiple stylesheets", zap.String("id", env.ID))
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst),
		zap.Stringer("format", env.Format), zap.Int("files", len(sources)))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	comp := compiler.New(log)
	var failed int
	for _, s := range sources {
		if cerr := ctx.Err(); cerr != nil {
			return multierr.Append(cerr, failures(failed, len(sources), err))
		}
		id := env.ID
		if len(id) == 0 || len(sources) > 1 {
			id = stylesheetID(env, s.rel)
		}
		if e := compileFile(env, comp, s, id, dst, log); e != nil {
			log.Error("Unable to compile stylesheet", zap.String("file", s.rel), zap.Error(e))
			failed++
			err = multierr.Append(err, fmt.Errorf("%s: %w", s.rel, e))
		}
	}
	return failures(failed, len(sources), err)
}

func failures(failed, total int, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("unable to compile %d of %d stylesheet(s): %w", failed, total, err)
}

func pattern(env *state.LocalEnv) string {
	if env.Cfg == nil || len(env.Cfg.Compiler.Pattern) == 0 {
		return "*.css"
	}
	return env.Cfg.Compiler.Pattern
}

// source is a stylesheet to compile. Files are read when needed, archive
// entries are kept in memory.
type source struct {
	rel  string // relative to the walked root, defines output path and id
	path string // empty for archive entries
	data []byte
}

func (s source) read() ([]byte, error) {
	if len(s.path) == 0 {
		return s.data, nil
	}
	return os.ReadFile(s.path)
}

// collectSources returns stylesheets in natural order of relative paths.
// src is a file, a directory or a zip archive optionally followed by path
// inside it.
func collectSources(ctx context.Context, src, pattern string) ([]source, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad file pattern %q: %w", pattern, err)
	}

	if arc, inside, ok := splitArchivePath(src); ok {
		entries, err := archive.Load(ctx, arc, inside, pattern)
		if err != nil {
			return nil, fmt.Errorf("unable to process archive: %w", err)
		}
		sources := make([]source, 0, len(entries))
		for _, e := range entries {
			sources = append(sources, source{rel: filepath.FromSlash(e.Name), data: e.Data})
		}
		return sources, nil
	}

	fi, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("input source was not found: %w", err)
	}
	if fi.Mode().IsRegular() {
		return []source{{rel: filepath.Base(src), path: src}}, nil
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("unexpected path mode for (%s)", src)
	}

	var files []string
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); !ok {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(natural.StringSlice(files))

	sources := make([]source, 0, len(files))
	for _, rel := range files {
		sources = append(sources, source{rel: rel, path: filepath.Join(src, rel)})
	}
	return sources, nil
}

// splitArchivePath finds zip archive in src: "themes.zip/dark" gives
// "themes.zip" and "dark".
func splitArchivePath(src string) (string, string, bool) {
	for head := src; ; {
		if fi, err := os.Stat(head); err == nil {
			if !fi.Mode().IsRegular() || !strings.EqualFold(filepath.Ext(head), ".zip") {
				return "", "", false
			}
			inside := strings.TrimPrefix(strings.TrimPrefix(src, head), string(filepath.Separator))
			return head, filepath.ToSlash(inside), true
		}
		parent := filepath.Dir(head)
		if parent == head {
			return "", "", false
		}
		head = parent
	}
}

// stylesheetID derives id from relative path: "themes/Dark Mode.css" with
// prefix "site-" becomes "site-themes-dark-mode".
func stylesheetID(env *state.LocalEnv, rel string) string {
	var prefix string
	if env.Cfg != nil {
		prefix = env.Cfg.Compiler.IDPrefix
	}
	name := strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
	id := slug.Make(name)
	if len(id) == 0 {
		id = "stylesheet"
	}
	return prefix + id
}

// outputPath keeps relative layout of the source under dst.
func outputPath(rel, dst string, format config.OutputFormat) string {
	base := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	return filepath.Join(dst, filepath.Dir(rel), config.OutputBaseName(base)+format.Ext())
}

func compileFile(env *state.LocalEnv, comp *compiler.Compiler, s source, id, dst string, log *zap.Logger) error {
	data, err := s.read()
	if err != nil {
		return err
	}
	name := filepath.ToSlash(filepath.Join("sources", s.rel))
	if len(s.path) > 0 {
		if err := env.Rpt.StoreCopy(name, s.path); err != nil {
			log.Warn("Unable to add source to report", zap.String("file", s.path), zap.Error(err))
		}
	} else {
		env.Rpt.StoreData(name, data)
	}

	src, enc, err := decodeSource(data)
	if err != nil {
		return err
	}
	if enc != encUnknown {
		log.Debug("Source decoded", zap.String("file", s.rel), zap.Stringer("encoding", enc))
	}

	res, err := comp.Compile(id, src)
	if err != nil {
		return err
	}
	env.Rpt.StoreData(filepath.ToSlash(filepath.Join("dumps", s.rel+".txt")), []byte(res.IR.Dump()))

	out, err := encode(res.IR, env.Format)
	if err != nil {
		return err
	}
	outName := outputPath(s.rel, dst, env.Format)
	if err := writeOutput(outName, out, env.Overwrite, log); err != nil {
		return err
	}
	log.Debug("Stylesheet written", zap.String("id", id), zap.String("to", outName), zap.Int("diagnostics", len(res.Diagnostics)))

	if env.Strict && len(res.Diagnostics) > 0 {
		return fmt.Errorf("%d problem(s) in strict mode: %w", len(res.Diagnostics), res.Err())
	}
	return nil
}

func encode(ss *ir.Stylesheet, format config.OutputFormat) ([]byte, error) {
	switch format {
	case config.OutputFormatBinary:
		return bin.Encode(ss)
	case config.OutputFormatText:
		return text.Encode(ss)
	default:
		return nil, fmt.Errorf("unsupported output format %s", format)
	}
}

func writeOutput(name string, data []byte, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(name); err == nil {
		if !overwrite {
			return fmt.Errorf("output file already exists: %s", name)
		}
		log.Warn("Overwriting existing file", zap.String("file", name))
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return os.WriteFile(name, data, 0644)
}

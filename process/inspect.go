package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"csscc/compiler"
	"csscc/css"
	"csscc/diag"
	"csscc/encode/bin"
	"csscc/encode/text"
	"csscc/ir"
	"csscc/state"
)

// Decode is the action of decode command: IR in any form is validated and
// written as structured text.
func Decode(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)
	log := env.Logger().Named("decode")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	ss, err := load(src, log)
	if err != nil {
		return err
	}
	data, err := text.Encode(ss)
	if err != nil {
		return fmt.Errorf("unable to encode stylesheet: %w", err)
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		_, err = os.Stdout.Write(data)
		return err
	}
	return writeOutput(dst, data, env.Overwrite || cmd.Bool("overwrite"), log)
}

// Tree is the action of tree command, it prints IR dump of a stylesheet.
func Tree(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := state.EnvFromContext(ctx)
	log := env.Logger().Named("tree")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	return PrintTree(os.Stdout, src, log)
}

// PrintTree writes IR dump of file at path to w. CSS source is preceded by
// its syntax tree and followed by diagnostics.
func PrintTree(w io.Writer, path string, log *zap.Logger) error {
	if !strings.EqualFold(filepath.Ext(path), ".css") {
		ss, err := load(path, log)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, ss.Dump())
		return err
	}

	src, err := readSource(path)
	if err != nil {
		return err
	}
	toks, err := css.Tokenize(src)
	if err != nil {
		return fmt.Errorf("unable to tokenize %s: %w", path, err)
	}
	sheet, _ := css.NewParser(log).Parse(toks)
	res, err := compiler.New(log).Compile(sourceID(path), src)
	if err != nil {
		return err
	}

	out := sheet.Dump() + res.IR.Dump()
	for _, d := range res.Diagnostics {
		out += fmt.Sprintf("%s: %v\n", diag.Category(d), d)
	}
	_, err = io.WriteString(w, out)
	return err
}

// load reads IR from path. CSS sources are compiled, ".irb" and ".irt" are
// decoded, anything else is recognized by the leading version byte of the
// binary form.
func load(path string, log *zap.Logger) (*ir.Stylesheet, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".css" {
		res, err := compileSource(path, log)
		if err != nil {
			return nil, err
		}
		return res.IR, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	binary := ext == ".irb" || (ext != ".irt" && len(data) > 0 && data[0] == bin.Version)

	var ss *ir.Stylesheet
	if binary {
		ss, err = bin.Decode(data)
	} else {
		ss, err = text.Decode(data)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", path, err)
	}
	log.Debug("Stylesheet decoded", zap.String("file", path), zap.Bool("binary", binary), zap.Int("rules", len(ss.Rules)))
	return ss, nil
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	src, _, err := decodeSource(data)
	return src, err
}

func sourceID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func compileSource(path string, log *zap.Logger) (*compiler.Result, error) {
	src, err := readSource(path)
	if err != nil {
		return nil, err
	}
	return compiler.New(log).Compile(sourceID(path), src)
}

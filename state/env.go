// Package state defines shared program state.
package state

import (
	"context"
	"time"

	"go.uber.org/zap"

	"csscc/config"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// command line overrides for compile subcommand
	Format    config.OutputFormat
	Strict    bool
	Overwrite bool
	ID        string

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}

// Logger never returns nil, so actions could be run with partially
// initialized environment.
func (e *LocalEnv) Logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// ApplyConfig copies compiler defaults from loaded configuration, command
// line flags are applied on top of them afterwards.
func (e *LocalEnv) ApplyConfig(cfg *config.Config) {
	e.Cfg = cfg
	if cfg == nil {
		return
	}
	e.Format = cfg.Compiler.Output
	e.Strict = cfg.Compiler.Strict
	e.Overwrite = cfg.Compiler.Overwrite
}

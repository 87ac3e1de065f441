// Command nebula is the reference host for the scripting runtime: a
// compiler/VM driver that can run, compile, disassemble, and REPL
// scripts, and a small illustrative ship/planet Context demo standing in
// for a real game host.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/alecthomas/kong"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nebula-lang/nebula/internal/config"
)

// Context carries state shared across every subcommand's Run method,
// following banksean-sand's cmd/sand Context pattern of one struct built
// once in main and threaded through kong.
type Context struct {
	Logger   *slog.Logger
	Optimize int
	Debug    bool
	Config   *config.Config
}

// CLI is the top-level flag/subcommand set parsed by kong. LogLevel and
// Optimize default from nebula.yaml when present (via the ${loglevel}/
// ${optimize} kong.Vars main() injects), falling back to "warn"/1 — CLI
// flags still win since kong only applies a default when the flag is
// absent from argv.
type CLI struct {
	LogLevel string `default:"${loglevel}" placeholder:"<debug|info|warn|error>" help:"logging level for the runtime's diagnostic log"`
	LogFile  string `placeholder:"<path>" help:"rotate diagnostic logs to this file instead of stderr"`
	Optimize int    `default:"${optimize}" placeholder:"<0|1>" help:"peephole optimizer level (0 disables it)"`
	Debug    bool   `help:"dump compiled BCO/Value internals with go-spew alongside normal output"`

	Run      RunCmd      `cmd:"" help:"compile and run a .neb source file or .nbc bytecode file"`
	Repl     ReplCmd     `cmd:"" help:"start an interactive read-eval-print loop"`
	Compile  CompileCmd  `cmd:"" help:"compile a .neb source file to .nbc bytecode"`
	Disasm   DisasmCmd   `cmd:"" help:"disassemble a .nbc bytecode file"`
	Demo     DemoCmd     `cmd:"" help:"run a script against the illustrative ship/planet context demo"`
	Complete CompleteCmd `cmd:"" help:"list completion candidates for a partial script line"`
	Version  VersionCmd  `cmd:"" help:"print version information"`
}

// initLogger builds the process-wide slog.Logger, rotating to LogFile
// via lumberjack when set rather than os.Stderr directly, following
// banksean-sand's initSlog pattern of always handing subsystems a live
// *slog.Logger.
func (c *CLI) initLogger() *slog.Logger {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	var out io.Writer = os.Stderr
	if c.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

const description = `Embedded scripting runtime: tokenizer, Pratt expression parser,
statement compiler, bytecode VM, and cooperative process scheduler.`

func main() {
	cfg, err := config.Load("nebula.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "nebula: %v\n", err)
		os.Exit(1)
	}

	vars := kong.Vars{"loglevel": "warn", "optimize": "1"}
	if cfg.LogLevel != "" {
		vars["loglevel"] = cfg.LogLevel
	}
	if cfg.Optimize != nil {
		vars["optimize"] = strconv.Itoa(*cfg.Optimize)
	}

	var cli CLI
	kctx := kong.Parse(&cli, kong.Description(description), vars)

	logger := cli.initLogger()

	err = kctx.Run(&Context{
		Logger:   logger,
		Optimize: cli.Optimize,
		Debug:    cli.Debug,
		Config:   cfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "nebula: %v\n", err)
		os.Exit(1)
	}
}

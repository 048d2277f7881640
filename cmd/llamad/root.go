package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llamad/internal/config"
)

// app carries state shared by every subcommand once the persistent flags are resolved.
type app struct {
	configFile string
	envFile    string
	logLevel   string
	logFormat  string
	modelsFile string
	keysFile   string

	cfg config.Config
	log zerolog.Logger
}

// buildRootCmd constructs the command tree. Output of informational commands goes to out.
func buildRootCmd(out io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "llamad",
		Short:         "Supervise a llama.cpp process and serve it over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before LLAMAD_* variables are read")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults LLAMAD_LOG_LEVEL or info)")
	pf.StringVar(&a.logFormat, "log-format", "", "Log format: console|json (defaults LLAMAD_LOG_FORMAT or console)")
	pf.StringVar(&a.modelsFile, "models-file", "", "Model catalog file (defaults LLAMAD_MODELS_FILE or "+config.DefaultModelsFile+")")
	pf.StringVar(&a.keysFile, "auth-keys-file", "", "API key file; auth is disabled when empty")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.resolve(cmd)
	}

	root.AddCommand(
		buildServeCmd(a),
		buildKeysCmd(a),
		buildModelsCmd(a),
		buildArgsCmd(a),
		buildCompletionCmd(root),
	)
	return root
}

// resolve layers configuration: dotenv, config file, environment, then flags.
func (a *app) resolve(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}
	var cfg config.Config
	if a.configFile != "" {
		c, err := config.Load(a.configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	if err := config.FromEnv(&cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if flags.Changed("models-file") {
		cfg.ModelsFile = a.modelsFile
	}
	if flags.Changed("auth-keys-file") {
		cfg.AuthKeysFile = a.keysFile
	}
	cfg.ApplyDefaults()
	if err := cfg.ExpandPaths(); err != nil {
		return err
	}

	l, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = l
	return nil
}

// newLogger builds the process logger. Console output is meant for terminals, json for collectors.
func newLogger(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
	}
	switch strings.ToLower(format) {
	case "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q", format)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

// buildCompletionCmd mirrors cobra's default completion command but skips config resolution.
func buildCompletionCmd(root *cobra.Command) *cobra.Command {
	completionCmd := &cobra.Command{
		Use:               "completion",
		Short:             "Generate the autocompletion script for the specified shell",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	}
	completionCmd.AddCommand(
		&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }},
		&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }},
		&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }},
		&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error {
			return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}},
	)
	return completionCmd
}

func main() {
	if err := buildRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

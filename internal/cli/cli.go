package cli

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/gobblego/internal/app"
	"github.com/spf13/cobra"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

type flags struct {
	env        string
	cwd        string
	tmpDir     string
	vars       map[string]string
	logFormat  string
	logLevel   string
	debounce   time.Duration
	healthPort int
	notifyURL  string
	dest       string
	force      bool
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var (
		f      flags
		result *app.Config
	)
	runTask := func(task app.Task) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config(task, args[0])
			if err != nil {
				return err
			}
			result = cfg
			return nil
		}
	}

	rootCmd := &cobra.Command{
		Use:   "gobble",
		Short: "An incremental build tool for directory trees",
		Long: `gobble builds an output directory from source directories through a
graph of transforms, observers and merges described in an HCL or YAML
build definition. Only the files a change touches are rebuilt.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	if args == nil {
		// cobra falls back to os.Args on nil.
		args = []string{}
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(output)
	rootCmd.SetErr(output)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.env, "env", "", "Environment name exposed to build definitions as env (default $GOBBLE_ENV or 'development').")
	pf.StringVar(&f.cwd, "cwd", "", "Directory relative paths are resolved against (default $GOBBLE_CWD or the working directory).")
	pf.StringVar(&f.tmpDir, "tmp-dir", "", "Scratch directory for intermediate results (default $GOBBLE_TMP_DIR or .gobble-<task>).")
	pf.StringToStringVar(&f.vars, "var", nil, "Definition variable as NAME=VALUE, available as var.NAME. Repeatable.")
	pf.StringVar(&f.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.StringVar(&f.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.DurationVar(&f.debounce, "debounce", 0, "Default quiet period before a source reports changes (default 100ms).")
	pf.IntVar(&f.healthPort, "healthcheck-port", 0, "Port for the /health and /metrics HTTP server. 0 is disabled.")
	pf.StringVar(&f.notifyURL, "notify-url", "", "socket.io URL of a dev server to push build events to.")

	buildCmd := &cobra.Command{
		Use:   "build DEFINITION",
		Short: "Build once into the destination directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runTask(app.TaskBuild),
	}
	buildCmd.Flags().StringVarP(&f.dest, "dest", "d", "", "Destination directory. Required.")
	buildCmd.Flags().BoolVarP(&f.force, "force", "f", false, "Empty a non-empty destination instead of failing.")

	watchCmd := &cobra.Command{
		Use:   "watch DEFINITION",
		Short: "Rebuild into the destination directory whenever sources or the definition change",
		Args:  cobra.ExactArgs(1),
		RunE:  runTask(app.TaskWatch),
	}
	watchCmd.Flags().StringVarP(&f.dest, "dest", "d", "", "Destination directory, replaced after every build. Required.")

	graphCmd := &cobra.Command{
		Use:   "graph DEFINITION",
		Short: "Print the build graph in topological order",
		Args:  cobra.ExactArgs(1),
		RunE:  runTask(app.TaskGraph),
	}

	rootCmd.AddCommand(buildCmd, watchCmd, graphCmd)

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*ExitError); ok {
			return nil, false, exitErr
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if result == nil {
		// Help or bare invocation; cobra already printed usage.
		return nil, true, nil
	}

	slog.Debug("CLI parser finished successfully.", "task", result.Task, "definition", result.DefinitionPath)
	return result, false, nil
}

func (f *flags) config(task app.Task, definition string) (*app.Config, error) {
	logFormat := strings.ToLower(f.logFormat)
	if logFormat != "text" && logFormat != "json" {
		return nil, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(f.logLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg := app.Config{
		DefinitionPath:  definition,
		Task:            task,
		Dest:            f.dest,
		Force:           f.force,
		Cwd:             f.cwd,
		TmpDir:          f.tmpDir,
		Env:             f.env,
		Vars:            f.vars,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		Debounce:        f.debounce,
		HealthcheckPort: f.healthPort,
		NotifyURL:       f.notifyURL,
	}
	app.LoadEnv(&cfg)

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	return config, nil
}

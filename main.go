// Package main provides the entry point for the engrepeat CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/engrepeat/internal/config"
	"github.com/dgnsrekt/engrepeat/internal/lesson"
	"github.com/dgnsrekt/engrepeat/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile    string
	mouse         bool
	debug         bool
	fromClipboard bool

	// cfg is loaded in PersistentPreRunE, before any command runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "engrepeat [FILE]",
		Short: "Practice English pronunciation by repetition",
		Long: paragraph(
			fmt.Sprintf("\nPaste English text, pick a sentence and %s it ten times, with Vietnamese translation and IPA alongside.", keyword("hear")),
		),
		Example: paragraph("engrepeat\nengrepeat notes.md\npbpaste | engrepeat"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"md", "markdown", "txt"}, cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
		RunE: execute,
	}
)

// loadConfig reads the explicit --config file, if any, and decodes viper
// into cfg.
func loadConfig(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") && configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	c, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if debug {
		c.Log.Level = "debug"
	}
	if lvl, err := log.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	mouse = viper.GetBool("mouse")
	cfg = c
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readPassage returns the passage named by args, piped on stdin, or held in
// the clipboard. Markdown files are reduced to their prose. An empty result
// with a nil error means no passage was given.
func readPassage(args []string, useClipboard bool) (string, error) {
	if useClipboard {
		text, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("unable to read clipboard: %w", err)
		}
		return strings.TrimSpace(text), nil
	}

	if len(args) == 0 || args[0] == "-" {
		pipe, err := stdinIsPipe()
		if err != nil {
			return "", err
		}
		if !pipe && len(args) == 0 {
			return "", nil
		}
		return readSource(os.Stdin, "")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return "", fmt.Errorf("unable to open file: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return readSource(f, args[0])
}

func readSource(r io.Reader, path string) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("unable to read from reader: %w", err)
	}
	if path != "" && lesson.IsMarkdownFile(path) {
		text, err := lesson.PlainText(b)
		if err != nil {
			return "", fmt.Errorf("unable to read markdown: %w", err)
		}
		return text, nil
	}
	return strings.TrimSpace(string(b)), nil
}

func execute(cmd *cobra.Command, args []string) error {
	passage, err := readPassage(args, fromClipboard)
	if err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("engrepeat needs a terminal; use `engrepeat learn` for plain output")
	}

	return runTUI(cmd, passage)
}

func runTUI(cmd *cobra.Command, passage string) error {
	// Read environment to get debugging stuff
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.EnableMouse = mouse
	uiCfg.Passage = passage
	uiCfg.RepeatLimit = cfg.Practice.RepeatLimit

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	deps := ui.Deps{
		Analyzer: a.builder,
		Practice: a.controller,
	}
	if a.history != nil {
		deps.History = a.history
	}

	if _, err := ui.NewProgram(uiCfg, deps).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")
	rootCmd.PersistentFlags().IntP("repeat", "r", 0, "times each sentence is played")
	rootCmd.PersistentFlags().Duration("delay", 0, "pause between repeats")
	rootCmd.PersistentFlags().String("voice", "", "speech voice name")
	rootCmd.PersistentFlags().Bool("mock-audio", false, "play into a simulated audio device")
	rootCmd.PersistentFlags().String("metrics", "", "serve Prometheus metrics on this address")
	rootCmd.Flags().BoolVarP(&fromClipboard, "clipboard", "c", false, "read the passage from the clipboard")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("practice.repeat_limit", rootCmd.PersistentFlags().Lookup("repeat"))
	_ = viper.BindPFlag("practice.repeat_delay", rootCmd.PersistentFlags().Lookup("delay"))
	_ = viper.BindPFlag("gemini.voice", rootCmd.PersistentFlags().Lookup("voice"))
	_ = viper.BindPFlag("audio.mock", rootCmd.PersistentFlags().Lookup("mock-audio"))
	_ = viper.BindPFlag("metrics.listen", rootCmd.PersistentFlags().Lookup("metrics"))

	rootCmd.AddCommand(configCmd, manCmd, learnCmd, wordCmd, practiceCmd, historyCmd)
}

// configDirs lists where engrepeat looks for its config file, most
// specific first.
func configDirs() ([]string, error) {
	dirs, err := gap.NewScope(gap.User, config.AppName).ConfigDirs()
	if err != nil {
		return nil, err
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, config.AppName)}, dirs...)
	}
	if c := os.Getenv("ENGREPEAT_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

func tryLoadConfigFromDefaultPlaces() {
	// A missing .env is the common case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Could not parse .env file", "err", err)
	}

	dirs, err := configDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(config.AppName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	config.SetDefaults(viper.GetViper())
	if err := config.BindEnv(viper.GetViper()); err != nil {
		log.Warn("Could not bind environment", "err", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], config.AppName+".yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phishguard/phish-detector/internal/di"
	"github.com/phishguard/phish-detector/internal/ports"
)

// rootOptions holds the flags shared by every command
type rootOptions struct {
	configFile string
	backend    string
	rulesFile  string
	verbose    bool
	jsonLog    bool
	noColor    bool
}

// overrides turns explicit flags into configuration overrides. Commands that
// print results keep logs at warn unless --verbose is set.
func (o *rootOptions) overrides(quiet bool) map[string]any {
	values := make(map[string]any)
	if o.backend != "" {
		values["rules.backend"] = o.backend
	}
	if o.rulesFile != "" {
		values["rules.file_path"] = o.rulesFile
	}
	if o.verbose {
		values["logging.level"] = "debug"
	} else if quiet {
		values["logging.level"] = "warn"
	}
	if o.jsonLog {
		values["logging.format"] = "json"
	}
	return values
}

// run builds the container, invokes fn and releases the rule store
func (o *rootOptions) run(quiet bool, fn any) error {
	if o.noColor {
		color.NoColor = true
	}

	container, err := di.BuildContainer(o.configFile, o.overrides(quiet))
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}

	runErr := container.Invoke(fn)

	closeErr := container.Invoke(func(store ports.RuleStore, logger *zap.Logger) error {
		defer logger.Sync()
		return store.Close()
	})
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "phish-detector",
		Short: "Rule-based phishing email classifier",
		Long: `phish-detector labels emails as Phishing or Safe using explainable rules:
a sender whitelist, positional keyword scoring, lookalike sender domains and
suspicious links. Every score comes with the reasons behind it.

Examples:
  phish-detector classify --sender a@paypa1.com --subject "Verify your account"
  phish-detector classify --file message.eml --json
  phish-detector batch < emails.jsonl > results.jsonl
  phish-detector rules add legit_domains example.com
  phish-detector serve`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Configuration file path (YAML)")
	flags.StringVar(&opts.backend, "backend", "", "Rule store backend: file, sqlite or postgres")
	flags.StringVar(&opts.rulesFile, "rules-file", "", "Rule file for the file backend (.json or .yaml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&opts.jsonLog, "json-log", false, "Output logs in JSON format")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newClassifyCmd(opts))
	cmd.AddCommand(newBatchCmd(opts))
	cmd.AddCommand(newRulesCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

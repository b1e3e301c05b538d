package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/phishguard/phish-detector/internal/application"
	"github.com/phishguard/phish-detector/internal/domain"
)

func newRulesCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and edit the rule configuration",
		Long: `Inspect and edit the rule lists and thresholds.

Lists: legit_domains, keywords, known_brands, safe_terms, shortener_domains,
freemail_domains

Examples:
  phish-detector rules list                       # Show everything
  phish-detector rules list keywords              # Show one list
  phish-detector rules add legit_domains corp.com # Whitelist a domain
  phish-detector rules remove keywords click      # Drop a keyword
  phish-detector rules set phish_score 8          # Tune a threshold
  phish-detector rules reset                      # Back to defaults`,
	}

	cmd.AddCommand(newRulesListCmd(root))
	cmd.AddCommand(newRulesEditCmd(root, "add", "Add values to a list"))
	cmd.AddCommand(newRulesEditCmd(root, "remove", "Remove values from a list"))
	cmd.AddCommand(newRulesSetCmd(root))
	cmd.AddCommand(newRulesResetCmd(root))
	return cmd
}

func newRulesListCmd(root *rootOptions) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list [list]",
		Short: "Show rule lists and thresholds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var only domain.RuleList
			if len(args) == 1 {
				list, err := domain.ParseRuleList(args[0])
				if err != nil {
					return fmt.Errorf("%w: %s", err, args[0])
				}
				only = list
			}

			return root.run(true, func(manager *application.RuleManager) error {
				rules := manager.Snapshot()
				out := cmd.OutOrStdout()

				if jsonOut {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if only != "" {
						values, _ := rules.List(only)
						return enc.Encode(map[string][]string{string(only): values})
					}
					return enc.Encode(rules)
				}

				printRules(out, rules, only)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func printRules(w io.Writer, rules *domain.RuleConfig, only domain.RuleList) {
	for _, list := range domain.RuleLists() {
		if only != "" && list != only {
			continue
		}
		values, _ := rules.List(list)
		headerColor.Fprintf(w, "%s (%d)\n", list, len(values))
		for _, v := range values {
			fmt.Fprintf(w, "  %s\n", v)
		}
	}
	if only != "" {
		return
	}

	headerColor.Fprintln(w, "thresholds")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	values := rules.Thresholds.Values()
	for _, name := range domain.ThresholdNames() {
		fmt.Fprintf(tw, "  %s\t%g\n", name, values[name])
	}
	tw.Flush()
}

func newRulesEditCmd(root *rootOptions, verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <list> <value>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := domain.ParseRuleList(args[0])
			if err != nil {
				return fmt.Errorf("%w: %s (expected one of %s)", err, args[0], listNames())
			}

			return root.run(true, func(manager *application.RuleManager) error {
				edit, past := manager.Add, "Added"
				if verb == "remove" {
					edit, past = manager.Remove, "Removed"
				}

				changed, err := edit(cmd.Context(), list, args[1:]...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d value(s) in %s\n", past, changed, len(args)-1, list)
				return nil
			})
		},
	}
}

func newRulesSetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <threshold> <value>",
		Short: "Change a threshold",
		Long: "Change a threshold. Names: " + strings.Join(domain.ThresholdNames(), ", ") + `

lookalike_full_domain takes 1 (compare whole domains) or 0 (compare
second-level labels).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid threshold value %q: %w", args[1], err)
			}

			return root.run(true, func(manager *application.RuleManager) error {
				if err := manager.SetThreshold(cmd.Context(), args[0], value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %g\n", args[0], value)
				return nil
			})
		},
	}
}

func newRulesResetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.run(true, func(manager *application.RuleManager) error {
				if err := manager.Reset(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rules reset to defaults")
				return nil
			})
		},
	}
}

func listNames() string {
	names := make([]string, 0, len(domain.RuleLists()))
	for _, list := range domain.RuleLists() {
		names = append(names, string(list))
	}
	return strings.Join(names, ", ")
}

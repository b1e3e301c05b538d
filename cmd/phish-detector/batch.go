package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phishguard/phish-detector/internal/application"
	"github.com/phishguard/phish-detector/internal/domain"
)

// maxLineBytes bounds a single JSON line; bodies can be large
const maxLineBytes = 16 << 20

func newBatchCmd(root *rootOptions) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Classify JSON lines from stdin",
		Long: `Read one JSON object per line ({"sender": ..., "subject": ..., "body": ...})
and write one JSON result per line, in input order. All emails are judged
against the same rule snapshot. A summary is printed to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return fmt.Errorf("failed to open input: %w", err)
				}
				defer f.Close()
				r = f
			}

			samples, err := readSamples(r)
			if err != nil {
				return err
			}

			return root.run(true, func(service *application.ClassificationService) error {
				results, err := service.ClassifyBatch(cmd.Context(), samples)
				if err != nil {
					return fmt.Errorf("batch classification interrupted: %w", err)
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				phishing := 0
				for i, result := range results {
					if result.IsPhishing() {
						phishing++
					}
					if err := enc.Encode(newResultJSON(samples[i], result)); err != nil {
						return fmt.Errorf("failed to write result: %w", err)
					}
				}

				fmt.Fprintf(cmd.ErrOrStderr(), "Classified %d emails: %d phishing, %d safe\n",
					len(results), phishing, len(results)-phishing)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input file (default stdin)")
	return cmd
}

// readSamples parses JSON lines, skipping blank ones
func readSamples(r io.Reader) ([]domain.EmailSample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	samples := make([]domain.EmailSample, 0)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var sample domain.EmailSample
		if err := json.Unmarshal([]byte(line), &sample); err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", lineNo, err)
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return samples, nil
}

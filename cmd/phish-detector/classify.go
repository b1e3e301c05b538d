package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/phishguard/phish-detector/internal/application"
	"github.com/phishguard/phish-detector/internal/domain"
)

type classifyOptions struct {
	sender     string
	senderName string
	subject    string
	body       string
	file       string
	jsonOut    bool
	exitCode   bool
}

// errPhishing makes the process exit non-zero under --exit-code
var errPhishing = errors.New("email classified as phishing")

func newClassifyCmd(root *rootOptions) *cobra.Command {
	opts := &classifyOptions{}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a single email",
		Long: `Classify one email given as flags or as an RFC 5322 message file.

With --file, sender, display name, subject and body are taken from the
message ("-" reads stdin). Multipart bodies are reduced to their text/plain
parts and transfer encodings are decoded. Explicit flags still win.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sample, err := opts.sample(cmd)
			if err != nil {
				return err
			}

			return root.run(true, func(service *application.ClassificationService) error {
				result := service.ClassifySample(sample)

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					if err := writeResultJSON(out, sample, result); err != nil {
						return err
					}
				} else {
					printResult(out, sample, result)
				}

				if opts.exitCode && result.IsPhishing() {
					cmd.SilenceErrors = true
					return errPhishing
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.sender, "sender", "", "Sender address")
	cmd.Flags().StringVar(&opts.senderName, "sender-name", "", "Sender display name")
	cmd.Flags().StringVar(&opts.subject, "subject", "", "Subject line")
	cmd.Flags().StringVar(&opts.body, "body", "", "Body text")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "RFC 5322 message file, - for stdin")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the result as JSON")
	cmd.Flags().BoolVar(&opts.exitCode, "exit-code", false, "Exit with status 1 when the email is phishing")
	return cmd
}

// sample assembles the email from --file and the explicit flags
func (o *classifyOptions) sample(cmd *cobra.Command) (domain.EmailSample, error) {
	var sample domain.EmailSample

	if o.file != "" {
		var r io.Reader
		if o.file == "-" {
			r = cmd.InOrStdin()
		} else {
			f, err := os.Open(o.file)
			if err != nil {
				return sample, fmt.Errorf("failed to open message file: %w", err)
			}
			defer f.Close()
			r = f
		}

		parsed, err := parseMessage(r)
		if err != nil {
			return sample, err
		}
		sample = parsed
	}

	if cmd.Flags().Changed("sender") {
		sample.Sender = o.sender
	}
	if cmd.Flags().Changed("sender-name") {
		sample.SenderName = o.senderName
	}
	if cmd.Flags().Changed("subject") {
		sample.Subject = o.subject
	}
	if cmd.Flags().Changed("body") {
		sample.Body = o.body
	}
	return sample, nil
}

// parseMessage extracts sender, display name, decoded subject and body text
func parseMessage(r io.Reader) (domain.EmailSample, error) {
	msg, err := mail.ReadMessage(bufio.NewReader(r))
	if err != nil {
		return domain.EmailSample{}, fmt.Errorf("failed to parse email: %w", err)
	}

	body, err := messageText(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return domain.EmailSample{}, fmt.Errorf("failed to read email body: %w", err)
	}

	// Prefer the bare address; fall back to the raw header when it does not parse
	from := msg.Header.Get("From")
	var name string
	if addr, err := mail.ParseAddress(from); err == nil {
		from = addr.Address
		name = addr.Name
	}

	subject := msg.Header.Get("Subject")
	dec := new(mime.WordDecoder)
	if decoded, err := dec.DecodeHeader(subject); err == nil {
		subject = decoded
	}

	return domain.EmailSample{
		Sender:     from,
		SenderName: name,
		Subject:    subject,
		Body:       body,
	}, nil
}

// messageText returns the readable text of a message body. Multipart bodies
// contribute their text/plain parts, or their text/html parts when there is
// no plain text at all. Attachments are skipped.
func messageText(contentType, encoding string, body io.Reader) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		data, err := io.ReadAll(decodeTransfer(encoding, body))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	var plain, html strings.Builder
	if err := collectParts(multipart.NewReader(body, params["boundary"]), &plain, &html); err != nil {
		return "", err
	}
	if plain.Len() > 0 {
		return plain.String(), nil
	}
	return html.String(), nil
}

func collectParts(mr *multipart.Reader, plain, html *strings.Builder) error {
	for {
		// NextPart already undoes quoted-printable
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read message part: %w", err)
		}

		if disposition, _, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition")); disposition == "attachment" {
			continue
		}

		mediaType, params, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if err != nil {
			mediaType = "text/plain"
		}

		switch {
		case strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "":
			if err := collectParts(multipart.NewReader(part, params["boundary"]), plain, html); err != nil {
				return err
			}
		case mediaType == "text/plain":
			if err := appendPart(plain, part); err != nil {
				return err
			}
		case mediaType == "text/html":
			if err := appendPart(html, part); err != nil {
				return err
			}
		}
	}
}

func appendPart(dst *strings.Builder, part *multipart.Part) error {
	data, err := io.ReadAll(decodeTransfer(part.Header.Get("Content-Transfer-Encoding"), part))
	if err != nil {
		return fmt.Errorf("failed to decode message part: %w", err)
	}
	if dst.Len() > 0 {
		dst.WriteString("\n")
	}
	dst.Write(data)
	return nil
}

func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

// resultJSON is the machine-readable output of classify and batch
type resultJSON struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	domain.ClassificationResult
	Reasons []string `json:"reasons"`
}

func newResultJSON(sample domain.EmailSample, result domain.ClassificationResult) resultJSON {
	return resultJSON{
		Sender:               sample.Sender,
		Subject:              sample.Subject,
		ClassificationResult: result,
		Reasons:              result.Reasons(),
	}
}

func writeResultJSON(w io.Writer, sample domain.EmailSample, result domain.ClassificationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newResultJSON(sample, result))
}

var (
	phishingColor = color.New(color.FgRed, color.Bold)
	safeColor     = color.New(color.FgGreen, color.Bold)
	errorColor    = color.New(color.FgYellow, color.Bold)
	headerColor   = color.New(color.FgCyan, color.Bold)
)

func printResult(w io.Writer, sample domain.EmailSample, result domain.ClassificationResult) {
	headerColor.Fprintln(w, "=== Classification ===")
	fmt.Fprintf(w, "Sender:  %s\n", sample.Sender)
	fmt.Fprintf(w, "Subject: %s\n", sample.Subject)

	switch {
	case result.TotalScore == domain.ErrorScore:
		errorColor.Fprintf(w, "Label:   %s (inconclusive, classification failed)\n", result.Label)
	case result.IsPhishing():
		phishingColor.Fprintf(w, "Label:   %s\n", strings.ToUpper(string(result.Label)))
	default:
		safeColor.Fprintf(w, "Label:   %s\n", strings.ToUpper(string(result.Label)))
	}
	fmt.Fprintf(w, "Score:   %g\n", result.TotalScore)
	if result.Whitelisted {
		fmt.Fprintln(w, "Sender is whitelisted, other detectors skipped")
	}
	fmt.Fprintln(w)

	headerColor.Fprintln(w, "=== Breakdown ===")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range domain.DetectorOrder {
		res, ok := result.Breakdown[name]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "  %s\t%g\n", name, res.Score)
		for _, reason := range res.Reasons {
			fmt.Fprintf(tw, "\t  - %s\n", reason)
		}
	}
	tw.Flush()
}

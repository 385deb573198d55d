package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-veriai/internal/application"
	"github.com/ahrav/go-veriai/internal/domain"
	"github.com/ahrav/go-veriai/internal/report"
)

// errVerificationFailed is returned when at least one input failed; the
// details were already written to the output.
var errVerificationFailed = errors.New("verification failed")

type verifyOptions struct {
	files       []string
	example     bool
	output      string
	concurrency int
}

func newVerifyCmd(a *app) *cobra.Command {
	var opts verifyOptions

	cmd := &cobra.Command{
		Use:   "verify [text]",
		Short: "Fact-check text and print a report",
		Long: `Verifies the text given as arguments, the built-in example, or the
contents of one or more files ("-" reads standard input). Each input is
verified independently; several inputs run concurrently.`,
		Example: `  veriai verify "The Eiffel Tower is in Berlin."
  veriai verify --example --output json
  veriai verify --file a.txt --file b.txt --concurrency 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.verify(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.files, "file", "f", nil, `read text from file ("-" for stdin); repeatable`)
	cmd.Flags().BoolVar(&opts.example, "example", false, "verify the built-in example text")
	cmd.Flags().StringVarP(&opts.output, "output", "o", string(report.FormatText), "output format: text, json or yaml")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", application.DefaultBatchConcurrency, "maximum concurrent verifications")
	return cmd
}

type input struct {
	label string
	text  string
}

func (a *app) verify(cmd *cobra.Command, args []string, opts verifyOptions) error {
	format, err := report.ParseFormat(opts.output)
	if err != nil {
		return err
	}

	inputs, err := collectInputs(cmd.InOrStdin(), args, opts)
	if err != nil {
		return err
	}

	verifier, err := a.buildVerifier(nil)
	if err != nil {
		return err
	}

	texts := make([]string, len(inputs))
	for i, in := range inputs {
		texts[i] = in.text
	}
	items, err := application.VerifyBatch(cmd.Context(), verifier, texts, opts.concurrency)
	if err != nil && len(items) == 0 {
		return err
	}

	out := cmd.OutOrStdout()
	renderer := report.NewRenderer()
	failed := 0
	for i, item := range items {
		if len(items) > 1 && format == report.FormatText {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "== %s ==\n", inputs[i].label)
		}
		if item.Err != nil {
			failed++
			if rerr := renderer.RenderError(out, item.Text, item.Err, format); rerr != nil {
				return rerr
			}
			continue
		}
		if rerr := renderer.Render(out, item.Result, format); rerr != nil {
			return rerr
		}
	}

	if failed > 0 {
		if len(items) == 1 {
			return errVerificationFailed
		}
		return fmt.Errorf("%w: %d of %d inputs", errVerificationFailed, failed, len(items))
	}
	return nil
}

func collectInputs(stdin io.Reader, args []string, opts verifyOptions) ([]input, error) {
	var inputs []input
	if opts.example {
		inputs = append(inputs, input{label: "example", text: domain.ExampleText})
	}
	if len(args) > 0 {
		inputs = append(inputs, input{label: "arguments", text: strings.Join(args, " ")})
	}

	readStdin := false
	for _, path := range opts.files {
		var (
			data []byte
			err  error
		)
		if path == "-" {
			if readStdin {
				return nil, errors.New("standard input can only be read once")
			}
			readStdin = true
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		inputs = append(inputs, input{label: path, text: string(data)})
	}

	if len(inputs) == 0 {
		return nil, errors.New("nothing to verify: pass text, --file or --example")
	}
	return inputs, nil
}

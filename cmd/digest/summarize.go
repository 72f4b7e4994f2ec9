package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/helixir/paper-digest-service/internal/app"
	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/pipeline"
	"github.com/helixir/paper-digest-service/internal/render"
)

var (
	summarizeMode      string
	summarizeLang      string
	summarizeFormat    string
	summarizeOutDir    string
	summarizeNoArchive bool
	summarizeByTitle   bool
)

func init() {
	summarizeCmd.Flags().StringVarP(&summarizeMode, "mode", "m", "", "Summary mode: simple or detailed (default from config)")
	summarizeCmd.Flags().StringVarP(&summarizeLang, "lang", "l", "", "Output language: en, zh, ja, ko, de, fr, es (default from config)")
	summarizeCmd.Flags().StringVarP(&summarizeFormat, "format", "f", render.FormatMarkdown, "Output format: markdown, json, yaml")
	summarizeCmd.Flags().StringVarP(&summarizeOutDir, "out", "o", "", "Write reports under this directory instead of stdout")
	summarizeCmd.Flags().BoolVar(&summarizeNoArchive, "no-archive", false, "Do not store reports in the archive")
	summarizeCmd.Flags().BoolVarP(&summarizeByTitle, "query", "q", false, "Treat arguments as exact paper titles and look them up on arXiv")
	rootCmd.AddCommand(summarizeCmd)
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <reference|title>...",
	Short: "Summarize one or more arXiv papers",
	Long: `Summarize one or more arXiv papers.

A reference is a bare identifier (2401.12345, 2401.12345v2, hep-th/9901001),
an arxiv: prefixed identifier, or a URL whose path ends in the identifier
(arxiv.org abs/pdf/html pages and their mirrors). With --query each argument
is an exact paper title, matched without regard to case; a title arXiv does
not list verbatim fails rather than summarizing a near miss.

With --out the report is written to <out>/<year>/week_<NN>/<title>_<LANG>_<mode>.<ext>
using the ISO week of the run; otherwise it is printed to stdout.

Examples:
  digest summarize 1706.03762
  digest summarize https://arxiv.org/abs/2401.12345v2 --mode detailed --lang ja
  digest summarize 2401.12345 2402.00001 --format json --out reports/
  digest summarize --query "Attention Is All You Need" --mode detailed`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSummarize,
}

func runSummarize(cmd *cobra.Command, args []string) error {
	renderer, err := render.New(summarizeFormat)
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig(true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []app.Option{app.WithoutMetrics()}
	if summarizeNoArchive {
		opts = append(opts, app.WithoutArchive())
	}
	a, err := app.New(ctx, cfg, logger, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	var failed int
	for _, ref := range args {
		if err := summarizeOne(ctx, a, renderer, ref); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "error: %s: %v (stage %s)\n", ref, err, domain.StageOf(err))
			if ctx.Err() != nil {
				break
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d papers failed", failed, len(args))
	}
	return nil
}

func summarizeOne(ctx context.Context, a *app.App, renderer render.Renderer, ref string) error {
	if summarizeByTitle {
		meta, err := a.Catalog.FindByTitle(ctx, ref)
		if err != nil {
			return err
		}
		ref = meta.ID
	}

	report, err := a.Pipeline.Run(ctx, pipeline.Request{
		Reference: ref,
		Mode:      summarizeMode,
		Language:  summarizeLang,
	})
	if err != nil {
		return err
	}

	if summarizeOutDir == "" {
		out, err := renderer.Render(report)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	path, err := render.WriteFile(summarizeOutDir, report, renderer)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, path)
	return nil
}

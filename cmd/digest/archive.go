package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/helixir/paper-digest-service/internal/app"
	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/llm"
	"github.com/helixir/paper-digest-service/internal/render"
	"github.com/helixir/paper-digest-service/internal/repository"
)

// ListTitleTruncateLen bounds titles in the archive table.
const ListTitleTruncateLen = 60

var (
	archiveArxivID string
	archiveMode    string
	archiveLang    string
	archiveLimit   int
	archiveJSON    bool
	archiveFormat  string
)

func init() {
	archiveListCmd.Flags().StringVar(&archiveArxivID, "arxiv-id", "", "Only reports for this arXiv identifier")
	archiveListCmd.Flags().StringVarP(&archiveMode, "mode", "m", "", "Only reports in this mode")
	archiveListCmd.Flags().StringVarP(&archiveLang, "lang", "l", "", "Only reports in this language")
	archiveListCmd.Flags().IntVar(&archiveLimit, "limit", 20, "Maximum results to return")
	archiveListCmd.Flags().BoolVar(&archiveJSON, "json", false, "Print JSON instead of a table")

	archiveShowCmd.Flags().StringVarP(&archiveFormat, "format", "f", render.FormatMarkdown, "Output format: markdown, json, yaml")

	archiveCmd.AddCommand(archiveListCmd, archiveShowCmd, archiveDeleteCmd)
	rootCmd.AddCommand(archiveCmd)
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Browse stored reports",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reports, newest first",
	Long: `List stored reports, newest first.

Examples:
  digest archive list
  digest archive list --arxiv-id 1706.03762 --json`,
	Args: cobra.NoArgs,
	RunE: runArchiveList,
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Render a stored report",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveShow,
}

var archiveDeleteCmd = &cobra.Command{
	Use:   "delete <report-id>",
	Short: "Delete a stored report",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveDelete,
}

// openArchive builds an App without the language model and returns its
// report archive.
func openArchive(ctx context.Context) (*app.App, repository.ReportRepository, error) {
	cfg, logger, err := loadConfig(false)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, logger, app.WithoutMetrics(), app.WithoutEvents(), app.WithCompleter(offlineCompleter{}))
	if err != nil {
		return nil, nil, err
	}
	if a.Reports == nil {
		a.Close()
		return nil, nil, fmt.Errorf("no archive configured (archive.driver is %q)", cfg.Archive.Driver)
	}
	return a, a.Reports, nil
}

func runArchiveList(cmd *cobra.Command, _ []string) error {
	filter := repository.ReportFilter{ArxivID: archiveArxivID, Limit: archiveLimit}
	if archiveMode != "" {
		mode, err := domain.ParseMode(archiveMode)
		if err != nil {
			return err
		}
		filter.Mode = mode
	}
	if archiveLang != "" {
		lang, err := domain.ParseLanguage(archiveLang)
		if err != nil {
			return err
		}
		filter.Language = lang
	}

	a, reports, err := openArchive(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	list, total, err := reports.List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("listing reports: %w", err)
	}

	if archiveJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if list == nil {
			list = []*domain.Report{}
		}
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Println("No reports in archive")
		return nil
	}
	fmt.Printf("%d reports (showing %d):\n\n", total, len(list))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tARXIV\tMODE\tLANG\tCREATED\tTITLE")
	for _, r := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Paper.ID, r.Summary.Mode, r.Summary.Language,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			truncateString(r.Paper.Title, ListTitleTruncateLen))
	}
	return w.Flush()
}

func runArchiveShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid report id %q", args[0])
	}
	renderer, err := render.New(archiveFormat)
	if err != nil {
		return err
	}

	a, reports, err := openArchive(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := reports.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	out, err := renderer.Render(report)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func runArchiveDelete(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid report id %q", args[0])
	}

	a, reports, err := openArchive(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := reports.Delete(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "deleted %s\n", id)
	return nil
}

// offlineCompleter stands in for the language model in commands that only
// read the archive.
type offlineCompleter struct{}

func (offlineCompleter) Complete(context.Context, llm.Request) (*llm.Completion, error) {
	return nil, fmt.Errorf("language model not available in archive commands")
}
func (offlineCompleter) Provider() string { return "offline" }
func (offlineCompleter) Model() string    { return "offline" }

func truncateString(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

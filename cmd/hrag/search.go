package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hrag/internal/domain"
	"hrag/internal/retrieval"
)

var (
	searchOpts  buildFlags
	searchLevel int
	searchHigh  int
	searchLow   int
	searchCite  bool
	searchTrace bool
)

var searchCmd = &cobra.Command{
	Use:   "search <document> <query>",
	Short: "Run a retrieval operation without a reasoning model",
	Long: `Search one level, narrow across a range of levels, or cite raw passages.

Modes:
  --level N           search level N only
  --high H --low L    narrow from level H down to level L
  --cite --high H     narrow from level H down to level 1 and print pages

Examples:
  hrag search report.pdf "quarterly revenue" --level 4
  hrag search report.pdf "quarterly revenue" --high 5 --low 2
  hrag search report.pdf "revenue" --cite --high 3 --trace`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func init() {
	addBuildFlags(searchCmd, &searchOpts)
	searchCmd.Flags().IntVar(&searchLevel, "level", 0, "Single level to search")
	searchCmd.Flags().IntVar(&searchHigh, "high", 0, "Level to start narrowing from")
	searchCmd.Flags().IntVar(&searchLow, "low", 0, "Level to stop narrowing at")
	searchCmd.Flags().BoolVar(&searchCite, "cite", false, "Cite level-1 passages with their pages")
	searchCmd.Flags().BoolVar(&searchTrace, "trace", false, "Print the narrowing descent")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchLevel == 0 && searchHigh == 0 {
		return errors.New("one of --level or --high is required")
	}
	if searchLevel != 0 && searchHigh != 0 {
		return errors.New("--level cannot be combined with --high")
	}
	if searchHigh != 0 && !searchCite && searchLow == 0 {
		return errors.New("--high requires --low or --cite")
	}

	cfg, log, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	sys, closeSys, err := openSystem(cmd.Context(), cfg, args[0], searchOpts, log)
	if err != nil {
		return err
	}
	defer closeSys()

	ctx := cmd.Context()
	query := args[1]
	out := cmd.OutOrStdout()

	var text string
	var descent *retrieval.Descent
	switch {
	case searchLevel != 0:
		chunks, err := sys.Engine.ByLevel(ctx, query, searchLevel)
		if err != nil {
			return err
		}
		text = retrieval.FormatPassages(chunks)
	case searchCite:
		citations, d, err := sys.Engine.Cite(ctx, query, searchHigh)
		if err != nil {
			return rangeError(err)
		}
		text, descent = retrieval.FormatCitations(citations), d
	default:
		chunks, d, err := sys.Engine.AcrossLevels(ctx, query, searchHigh, searchLow)
		if err != nil {
			return rangeError(err)
		}
		text, descent = retrieval.FormatPassages(chunks), d
	}

	if searchTrace && descent != nil {
		data, _ := json.MarshalIndent(descent, "", "  ")
		fmt.Fprintln(out, string(data))
		fmt.Fprintln(out, strings.Repeat("-", 40))
	}
	fmt.Fprintln(out, text)
	return nil
}

func rangeError(err error) error {
	var rangeErr *domain.InvalidRangeError
	if errors.As(err, &rangeErr) {
		return errors.New(retrieval.InvalidRangeMessage)
	}
	return err
}

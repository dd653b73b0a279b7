package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hrag/internal/domain"
)

var buildOpts buildFlags

var buildCmd = &cobra.Command{
	Use:   "build <document>",
	Short: "Build and index the level hierarchy of a document",
	Long: `Load a document (.pdf, .docx, .txt, .md, .html), split it into level-1
chunks, summarize them into levels 2 to 5 and embed every level.

Levels found in the backup directory are reused unless --rebuild is given.

Examples:
  hrag build report.pdf
  hrag build report.pdf --rebuild
  hrag build report.pdf --reindex`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	addBuildFlags(buildCmd, &buildOpts)
	rootCmd.AddCommand(buildCmd)
}

func addBuildFlags(cmd *cobra.Command, f *buildFlags) {
	cmd.Flags().BoolVar(&f.rebuild, "rebuild", false, "Ignore backups and regenerate every level")
	cmd.Flags().BoolVar(&f.reindex, "reindex", false, "Re-embed levels already present in the vector store")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	sys, closeSys, err := openSystem(cmd.Context(), cfg, args[0], buildOpts, log)
	if err != nil {
		return err
	}
	defer closeSys()

	counts := sys.Counts()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages\n", sys.Document.Path, len(sys.Document.Pages))
	for level := domain.MinLevel; level <= domain.MaxLevel; level++ {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d chunks\n", domain.LevelName(level), counts[level])
	}
	return nil
}

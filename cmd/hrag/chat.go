package main

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"hrag/internal/agent"
	"hrag/internal/tui"
)

var (
	chatOpts    buildFlags
	chatLogFile string
)

var chatCmd = &cobra.Command{
	Use:   "chat <document>",
	Short: "Chat with a document in the terminal",
	Long: `Open an interactive chat over a document. Logs are written to a file
so they do not corrupt the terminal UI.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	addBuildFlags(chatCmd, &chatOpts)
	chatCmd.Flags().StringVar(&chatLogFile, "log-file", "hrag.log", "Log file used while the UI is running")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	switch cfg.Log.Output {
	case "", "stderr", "stdout":
		cfg.Log.Output = chatLogFile
	}
	log, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	sys, closeSys, err := openSystem(cmd.Context(), cfg, args[0], chatOpts, log)
	if err != nil {
		return err
	}
	defer closeSys()

	reasoner, err := newReasoner(cfg)
	if err != nil {
		return err
	}
	prompt, err := agent.LoadSystemPrompt(cfg.Agent.PromptFile, log)
	if err != nil {
		return err
	}
	session := sys.NewSession(reasoner, prompt, cfg.Agent.MaxTurns)

	m := tui.New(session, tui.Summary(sys.Document.Path, sys.Counts()), time.Duration(cfg.Agent.TurnTimeoutSecs)*time.Second)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

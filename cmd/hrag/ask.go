package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hrag/internal/agent"
)

var askOpts buildFlags

var askCmd = &cobra.Command{
	Use:   "ask <document> <question>",
	Short: "Answer one question with the reasoning model",
	Args:  cobra.ExactArgs(2),
	RunE:  runAsk,
}

func init() {
	addBuildFlags(askCmd, &askOpts)
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	sys, closeSys, err := openSystem(cmd.Context(), cfg, args[0], askOpts, log)
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

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Agent.TurnTimeoutSecs)*time.Second)
	defer cancel()
	answer, err := session.Ask(ctx, args[1])
	if err != nil {
		log.Error("Question failed", "error", err)
		answer = agent.DegradedReply(err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

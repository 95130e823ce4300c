// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"strings"

	"github.com/AleutianAI/askdesk/cmd/askdesk/config"
	"github.com/AleutianAI/askdesk/pkg/ux"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags plus the loaded configuration.
type rootOptions struct {
	configPath       string
	personalityLevel string // UX personality level (full/standard/minimal/machine)
	verbose          bool

	cfg config.AskdeskConfig
}

type loginOptions struct {
	username string
	password string
}

type askOptions struct {
	followUps []string
	vote      string
}

// newRootCmd builds the command tree. Each call returns fresh flag state.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "askdesk",
		Short: "Ask questions of your document desk from the terminal",
		Long: `askdesk sends questions to a document question-answering service,
streams the answer and shows the sources it was drawn from.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ux.Out = cmd.OutOrStdout()
			ux.ErrOut = cmd.ErrOrStderr()

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			// Initialize UX personality from flag, environment or config
			if opts.personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(opts.personalityLevel))
			} else {
				ux.InitPersonality(cfg.UI.Personality)
			}
			ux.SetShowHints(cfg.UI.ShowHints)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.askdesk/askdesk.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.personalityLevel, "personality", "", "Output style: full, standard, minimal or machine")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Also write logs to stderr")

	// login / logout / status
	login := &loginOptions{}
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
			return runLogin(cmd, a, login)
		}),
	}
	loginCmd.Flags().StringVarP(&login.username, "username", "u", "", "Username (prompted when omitted)")
	loginCmd.Flags().StringVarP(&login.password, "password", "p", "", "Password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session token",
		Args:  cobra.NoArgs,
		RunE:  withApp(opts, false, runLogout),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether a session token is stored and when it expires",
		Args:  cobra.NoArgs,
		RunE:  withApp(opts, false, runStatus),
	})

	// ask: one exchange, printed
	ask := &askOptions{}
	askCmd := &cobra.Command{
		Use:     "ask [question]",
		Short:   "Ask a question and print the answer with its sources",
		Aliases: []string{"a"},
		Args:    cobra.MinimumNArgs(1),
		RunE: withApp(opts, false, func(cmd *cobra.Command, a *app, args []string) error {
			return runAsk(cmd, a, strings.Join(args, " "), ask)
		}),
	}
	askCmd.Flags().StringArrayVar(&ask.followUps, "then", nil, "Follow-up question asked in the same session (repeatable)")
	askCmd.Flags().StringVar(&ask.vote, "vote", "", "Rate the answer: up or down")
	rootCmd.AddCommand(askCmd)

	// chat: the interactive application
	rootCmd.AddCommand(&cobra.Command{
		Use:   "chat",
		Short: "Start the interactive question and answer screen",
		Args:  cobra.NoArgs,
		RunE:  withApp(opts, true, runChat),
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "suggestions",
		Short: "List the common questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ux.NewChatUIWithWriter(cmd.OutOrStdout(), ux.GetPersonality().Level, opts.cfg.UI.SummaryWords).
				Suggestions(opts.cfg.UI.SuggestedQueries)
			return nil
		},
	})

	return rootCmd
}

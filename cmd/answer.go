package main

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var answerCompact bool

var answerCmd = &cobra.Command{
	Use:   "answer [question]",
	Short: "Answer one question and print the response JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Answerer.Ask(ctx, strings.Join(args, " "))
		if err != nil {
			return eris.Wrap(err, "answer")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		if !answerCompact {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(resp)
	},
}

func init() {
	answerCmd.Flags().BoolVar(&answerCompact, "compact", false, "print single-line JSON")
	rootCmd.AddCommand(answerCmd)
}

package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fredqa/internal/eval"
	"github.com/sells-group/fredqa/internal/model"
	"github.com/sells-group/fredqa/internal/verify"
)

var (
	verifyCaseID string
	verifyCases  []string
)

var verifyCmd = &cobra.Command{
	Use:   "verify [response.json]",
	Short: "Verify one response JSON file against a case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "verify: read %s", args[0])
		}

		paths := verifyCases
		if len(paths) == 0 {
			paths = []string{cfg.Eval.Golden, cfg.Eval.Refusals}
		}
		cases, err := eval.LoadCases(paths...)
		if err != nil {
			return err
		}
		c, err := findCase(cases, verifyCaseID)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		suite, err := initSuite(cfg, newEngine(st), nil)
		if err != nil {
			return err
		}
		return verifyRaw(ctx, cmd.OutOrStdout(), suite, c, raw)
	},
}

func findCase(cases []model.Case, id string) (model.Case, error) {
	for _, c := range cases {
		if c.ID == id {
			return c, nil
		}
	}
	return model.Case{}, eris.Errorf("verify: case %q not found", id)
}

// verifyRaw prints the failures for raw as JSON and returns an error when
// there are any.
func verifyRaw(ctx context.Context, w io.Writer, suite *verify.Suite, c model.Case, raw []byte) error {
	failures := suite.Verify(ctx, c, raw)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"case_id":  c.ID,
		"passed":   len(failures) == 0,
		"failures": failures,
	}); err != nil {
		return eris.Wrap(err, "verify: encode")
	}
	if len(failures) > 0 {
		return eris.Errorf("verify: %d failure(s) for case %s", len(failures), c.ID)
	}
	return nil
}

func init() {
	verifyCmd.Flags().StringVar(&verifyCaseID, "case", "", "case id to verify against")
	verifyCmd.Flags().StringSliceVar(&verifyCases, "cases", nil, "JSONL case files (default eval.golden and eval.refusals)")
	_ = verifyCmd.MarkFlagRequired("case")
	rootCmd.AddCommand(verifyCmd)
}

package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fredqa/internal/cards"
)

var (
	cardsDir    string
	cardsRecent int
)

var cardsCmd = &cobra.Command{
	Use:   "cards",
	Short: "Render a Markdown card for every stored series",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recent := cardsRecent
		if recent <= 0 {
			recent = cfg.Cards.Recent
		}
		dir := cardsDir
		if dir == "" {
			dir = cfg.Cards.Dir
		}

		docs, err := cards.Build(ctx, st, recent)
		if err != nil {
			return err
		}
		if err := cards.WriteDir(dir, docs); err != nil {
			return err
		}

		zap.L().Info("cards written", zap.Int("count", len(docs)), zap.String("dir", dir))
		return nil
	},
}

func init() {
	cardsCmd.Flags().StringVar(&cardsDir, "dir", "", "output directory (default cards.dir)")
	cardsCmd.Flags().IntVar(&cardsRecent, "recent", 0, "observations per card (default cards.recent)")
	rootCmd.AddCommand(cardsCmd)
}

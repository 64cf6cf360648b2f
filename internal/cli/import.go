package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"quizbot/internal/config"
	"quizbot/internal/infra/file"
	"quizbot/internal/infra/postgres"
)

// NewImportRoundsCmd copies round files into the postgres question bank.
func NewImportRoundsCmd(configPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "import-rounds",
		Short: "Upsert round_<n>.yaml|json files into postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory holding round files (defaults to rounds.dir)")
	return cmd
}

func runImport(ctx context.Context, configPath, dir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	if dir == "" {
		dir = cfg.Rounds.Dir
	}
	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}

	paths, err := file.NewRoundLoader(dir).Paths()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no round files in %s", dir)
	}
	numbers := make([]int, 0, len(paths))
	for n := range paths {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	db := postgres.OpenDB(cfg.Postgres.URL)
	defer db.Close()
	writer := postgres.NewRoundWriter(db)

	for _, n := range numbers {
		round, err := file.ReadRound(paths[n], n)
		if err != nil {
			return fmt.Errorf("round %d: %w", n, err)
		}
		if err := writer.Upsert(ctx, round); err != nil {
			return err
		}
		logger.Info().Int("round", n).Int("questions", round.Len()).Str("file", paths[n]).Msg("round imported")
	}
	return nil
}

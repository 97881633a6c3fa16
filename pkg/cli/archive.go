package cli

import (
	"context"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/opsmith-lab/taskmill/pkg/cli/config"
	"github.com/opsmith-lab/taskmill/pkg/usecase"
	"github.com/opsmith-lab/taskmill/pkg/utils/logging"
	"github.com/opsmith-lab/taskmill/pkg/utils/safe"
)

func cmdArchive() *cli.Command {
	var olderThan time.Duration
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:        "older-than",
			Usage:       "Archive tasks untouched for longer than this duration",
			Required:    true,
			Sources:     cli.EnvVars("TASKMILL_ARCHIVE_OLDER_THAN"),
			Destination: &olderThan,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "archive",
		Aliases: []string{"a"},
		Usage:   "Run a one-shot archival of stale tasks",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if olderThan < 0 {
				return goerr.New("older-than must not be negative", goerr.V("older-than", olderThan))
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			uc := usecase.New(repo)
			cutoff := time.Now().UTC().Add(-olderThan)

			logging.Default().Info("Starting archival run", "cutoff", cutoff)

			startTime := time.Now()
			moved, err := uc.Archival.ArchiveTasksOlderThan(ctx, cutoff)
			if err != nil {
				color.New(color.FgRed).Printf("✗ Archival run failed: %v\n", err)
				return err
			}

			if moved == 0 {
				color.New(color.FgYellow).Println("No stale tasks to archive")
			} else {
				color.New(color.FgGreen).Printf("✓ Archived %d task(s) in %s\n", moved, time.Since(startTime).Round(time.Millisecond))
			}
			return nil
		},
	}
}

package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/opsmith-lab/taskmill/pkg/cli/config"
	httpctrl "github.com/opsmith-lab/taskmill/pkg/controller/http"
	"github.com/opsmith-lab/taskmill/pkg/service/worker"
	"github.com/opsmith-lab/taskmill/pkg/usecase"
	"github.com/opsmith-lab/taskmill/pkg/utils/logging"
	"github.com/opsmith-lab/taskmill/pkg/utils/safe"
)

func cmdServe() *cli.Command {
	var addr string
	var bootstrapPath string
	var opTimeout time.Duration
	var archivalRetention time.Duration
	var archivalInterval time.Duration
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("TASKMILL_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "bootstrap-file",
			Usage:       "TOML file declaring tenants and users to provision at startup",
			Sources:     cli.EnvVars("TASKMILL_BOOTSTRAP_FILE"),
			Destination: &bootstrapPath,
		},
		&cli.DurationFlag{
			Name:        "operation-timeout",
			Usage:       "Deadline for each mutating operation",
			Value:       usecase.DefaultOperationTimeout,
			Sources:     cli.EnvVars("TASKMILL_OPERATION_TIMEOUT"),
			Destination: &opTimeout,
		},
		&cli.DurationFlag{
			Name:        "archival-retention",
			Usage:       "Tasks untouched for longer than this are archived",
			Value:       30 * 24 * time.Hour,
			Sources:     cli.EnvVars("TASKMILL_ARCHIVAL_RETENTION"),
			Destination: &archivalRetention,
		},
		&cli.DurationFlag{
			Name:        "archival-interval",
			Usage:       "How often the archival worker runs",
			Value:       time.Hour,
			Sources:     cli.EnvVars("TASKMILL_ARCHIVAL_INTERVAL"),
			Destination: &archivalInterval,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server and archival worker",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			uc := usecase.New(repo, usecase.WithOperationTimeout(opTimeout))

			if bootstrapPath != "" {
				bootstrap, err := config.LoadBootstrap(bootstrapPath)
				if err != nil {
					return goerr.Wrap(err, "failed to load bootstrap file")
				}
				if err := bootstrap.Apply(ctx, uc); err != nil {
					return goerr.Wrap(err, "failed to apply bootstrap")
				}
			}

			archivalWorker := worker.NewArchivalWorker(uc.Archival, archivalRetention, archivalInterval)
			if err := archivalWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start archival worker")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			eg, egCtx := errgroup.WithContext(sigCtx)

			eg.Go(func() error {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return goerr.Wrap(err, "failed to start server")
				}
				return nil
			})

			eg.Go(func() error {
				<-egCtx.Done()
				logging.Default().Info("Shutting down")

				archivalWorker.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}
				return nil
			})

			if err := eg.Wait(); err != nil {
				return err
			}

			logging.Default().Info("Server shutdown completed")
			return nil
		},
	}
}

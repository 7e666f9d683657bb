// Command mofpipe drives the MOF characterization pipeline: batch
// submission, result aggregation, and the distributed worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "embed"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	_ "github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/gormstore/drivers/mysql"
	_ "github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/gormstore/drivers/postgres"
	_ "github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/gormstore/drivers/sqlite"

	"github.com/karstlab/mofpipe/pkg/pipeline/aggregate"
	"github.com/karstlab/mofpipe/pkg/pipeline/app"
	config "github.com/karstlab/mofpipe/pkg/pipeline/core/config"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/store"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/usecase"
	inframetrics "github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/metrics"
	"github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/remote"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

// embeddedConfig embeds the default application configuration. Values are
// overridden by an application.yaml next to the binary and by MOFPIPE_*
// environment variables.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

var envFilePath string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "mofpipe",
		Short:         "MOF characterization pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFilePath, "env-file", ".env", "path to an env file loaded before configuration")

	root.AddCommand(newSubmitCmd())
	root.AddCommand(newAggregateCmd())
	root.AddCommand(newWorkerCmd())

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func newSubmitCmd() *cobra.Command {
	var (
		tag  string
		mode string
	)
	cmd := &cobra.Command{
		Use:   "submit [structure files...]",
		Short: "Submit a batch of structure files to the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				cfg      *config.Config
				launcher *usecase.BatchLauncher
			)
			a, err := app.New(ctx, envFilePath, embeddedConfig, &cfg, &launcher)
			if err != nil {
				return err
			}
			defer shutdown(a)

			if mode == "" {
				mode = cfg.Mofpipe.Batch.Mode
			}
			report, err := launcher.Submit(ctx, usecase.SubmitRequest{
				Paths:    args,
				BatchTag: tag,
				Mode:     mode,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "batch tag grouping this submission")
	cmd.Flags().StringVar(&mode, "mode", "", "execution mode: local or distributed (default from configuration)")
	cobra.CheckErr(cmd.MarkFlagRequired("tag"))
	return cmd
}

func newAggregateCmd() *cobra.Command {
	var (
		tag           string
		afterSequence int64
		wait          bool
	)
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Fold a batch's records into summaries and write the artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				cfg         *config.Config
				resultStore store.ResultStore
				aggregator  *aggregate.BatchAggregator
			)
			a, err := app.New(ctx, envFilePath, embeddedConfig, &cfg, &resultStore, &aggregator)
			if err != nil {
				return err
			}
			defer shutdown(a)

			if wait {
				batch := cfg.Mofpipe.Batch
				filter := store.Where(
					store.Eq("metadata."+model.MetaBatchTag, tag),
					store.Eq("metadata."+model.MetaJobInfo, model.JobInfoMOFDiscovery),
				)
				count, err := remote.AwaitQuiescence(ctx, resultStore, filter,
					time.Duration(batch.PollingIntervalSeconds)*time.Second, batch.IdlePolls)
				if err != nil {
					return err
				}
				logger.Infof("Batch '%s' settled at %d records.", tag, count)
			}

			report, _, err := aggregator.Run(ctx, tag, afterSequence)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "batch tag to aggregate")
	cmd.Flags().Int64Var(&afterSequence, "after-sequence", 0, "only fold records with a higher sequence")
	cmd.Flags().BoolVar(&wait, "wait", false, "poll the result store until the batch stops growing before aggregating")
	cobra.CheckErr(cmd.MarkFlagRequired("tag"))
	return cmd
}

func newWorkerCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a distributed execution worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				server   *remote.QueueServer
				recorder *inframetrics.PrometheusRecorder
			)
			a, err := app.New(ctx, envFilePath, embeddedConfig, &server, &recorder)
			if err != nil {
				return err
			}
			defer shutdown(a)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(recorder.GetRegistry(), promhttp.HandlerOpts{}))
			mux.Handle("/", server.Handler())

			httpServer := &http.Server{Addr: listen, Handler: mux}
			errCh := make(chan error, 1)
			go func() {
				logger.Infof("Worker listening on %s.", listen)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(drainCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warnf("HTTP shutdown: %v", err)
			}
			return server.Shutdown(drainCtx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":8080", "address the worker serves submissions and /metrics on")
	return cmd
}

// shutdown stops the container outside the command's (possibly canceled)
// context so close hooks still run.
func shutdown(a *app.Application) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		logger.Warnf("Shutdown: %v", err)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

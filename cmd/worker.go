/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/control-eventos/apiserver/internal/db"
	"github.com/control-eventos/apiserver/internal/metrics"
	"github.com/control-eventos/apiserver/internal/mq"
	"github.com/control-eventos/apiserver/internal/services"
	"github.com/control-eventos/apiserver/internal/store"
	"github.com/control-eventos/apiserver/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var workerMetricsAddr string

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consumes check-in messages and reconciles attendance history",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("worker requires MQ_BACKEND to be rabbitmq or pubsub")
		}
		defer func() { err = multierr.Append(err, broker.Close()) }()

		dbConn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, dbConn.Close()) }()

		m := metrics.New()
		if workerMetricsAddr != "" {
			metricsServer := &http.Server{
				Addr:              workerMetricsAddr,
				Handler:           m.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if serveErr := metricsServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
					log.Error(ctx, "worker metrics server failed", serveErr)
				}
			}()
			defer func() { _ = metricsServer.Close() }()
		}

		eventRepo := store.NewEventRepository(dbConn)
		attendance := services.NewAttendanceService(
			store.NewAttendanceRepository(dbConn),
			eventRepo,
			store.NewCardRepository(dbConn),
			nil,
			m,
			log,
		)

		channel := mq.NewAttendanceChannel(broker, cfg.MQ.AttendanceChannel)
		if runErr := worker.New(channel, attendance, log).Run(ctx); runErr != nil {
			return fmt.Errorf("worker: %w", runErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.Flags().StringVar(&workerMetricsAddr, "metrics-addr", ":9090", "address for the worker's /metrics listener; empty disables it")
}

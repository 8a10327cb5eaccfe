// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	apexlog "github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/mrdp/mrdp/internal/api"
	"github.com/mrdp/mrdp/internal/config"
	"github.com/mrdp/mrdp/internal/db"
	"github.com/mrdp/mrdp/internal/ingest"
	"github.com/mrdp/mrdp/internal/meta"
	"github.com/mrdp/mrdp/internal/server"
)

// Listen addresses of the two services.
const (
	DefaultAPIAddr    = ":5000"
	DefaultIngestAddr = ":8080"
)

// listenAddr honors the PORT variable the services were deployed with
// unless --addr or MRDP_ADDR is given.
func listenAddr(cmd *cli.Command) string {
	if !cmd.IsSet("addr") {
		if port := os.Getenv("PORT"); port != "" {
			return ":" + port
		}
	}
	return cmd.String("addr")
}

// serveUntilSignal runs srv on addr until SIGINT or SIGTERM.
func serveUntilSignal(ctx context.Context, srv *server.Server, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, addr)
}

func serveAPIAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "serve"

	if ShortCircuitTLDR(ctx, cmd, "serve-api") {
		return nil
	}

	conn, err := NewClients(cmd).OpenDB(ctx, rdsEndpoint)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger := apexlog.WithField("service", api.ServiceName)
	store := &api.SQLStore{DB: db.NewLogging(conn, logger, cmd.Bool("log-queries"))}

	srv := server.New(api.ServiceName)
	api.New(store).Routes(srv.Router)
	return serveUntilSignal(ctx, srv, listenAddr(cmd))
}

func serveIngestAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "serve"

	if ShortCircuitTLDR(ctx, cmd, "serve-ingest") {
		return nil
	}

	bucket := cmd.String("raw-bucket")
	if bucket == "" {
		return errors.New("--raw-bucket (or S3_RAW_BUCKET) is required")
	}

	clients := NewClients(cmd)
	s3, err := clients.S3(ctx)
	if err != nil {
		return err
	}
	conn, err := clients.OpenDB(ctx, rdsEndpoint)
	if err != nil {
		return err
	}
	defer conn.Close()

	logger := apexlog.WithField("service", ingest.ServiceName)
	store := &ingest.SQLStore{DB: db.NewLogging(conn, logger, cmd.Bool("log-queries"))}

	srv := server.New(ingest.ServiceName)
	ingest.New(s3, bucket, store).Routes(srv.Router, srv.Registry)
	return serveUntilSignal(ctx, srv, listenAddr(cmd))
}

func serveCommandBuilder(meta meta.Meta) *cli.Command {
	ns, path := "serve", meta.Config.Source

	common := func(addr string) []cli.Flag {
		flags := []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "listen address",
				Value:   addr,
				Sources: cli.EnvVars("MRDP_ADDR"),
			},
			&cli.BoolFlag{
				Name:    "log-queries",
				Usage:   "log every SQL statement at debug level",
				Sources: Sources(ns, "log-queries", path),
			},
			newTLDRFlag(),
		}
		flags = append(flags, rdsEndpoint.NewDBFlags(ns, path)...)
		return append(flags, NewAWSFlags(ns, path)...)
	}

	ingestFlags := append(common(DefaultIngestAddr),
		NewBucketFlag("raw-bucket", "bucket receiving telemetry and batches", "S3_RAW_BUCKET", ns, path))

	return &cli.Command{
		Name:      "serve",
		Usage:     "run one of the platform HTTP services",
		UsageText: "mrdp serve <api|ingest> [options]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			{
				Name:      "api",
				Usage:     "serve the read-only query API",
				UsageText: "mrdp serve api [--addr :5000] [options]",
				Metadata: map[string]any{
					"meta": meta,
				},
				Flags:  common(DefaultAPIAddr),
				Action: serveAPIAction,
			},
			{
				Name:      "ingest",
				Usage:     "serve the telemetry and procedure ingestion API",
				UsageText: "mrdp serve ingest [--addr :8080] [options]",
				Metadata: map[string]any{
					"meta": meta,
				},
				Flags:  ingestFlags,
				Action: serveIngestAction,
			},
		},
	}
}

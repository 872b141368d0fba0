// Command stfd hosts the block state-transition runtime over a pebble
// ledger and serves it to a node over gRPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	stfgrpc "github.com/blockberries/stf/grpc"
	"github.com/blockberries/stf/ledger"
	"github.com/blockberries/stf/runtime"
	"github.com/blockberries/stf/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLoggers(cfg.DebugLevel)
	ctx := context.Background()

	store, err := ledger.OpenPebble(cfg.DataDir, ledger.PebbleOptions{InMemory: cfg.InMemory})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.ErrorS(ctx, "Closing ledger", err)
		}
	}()

	rt, err := runtime.New(runtime.Config{
		RequireTimestamp:    cfg.RequireTimestamp,
		MaxTransactionsSize: cfg.MaxBlockBytes,
	})
	if err != nil {
		return err
	}

	var metrics *server.Metrics
	if cfg.MetricsListen != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		metrics = server.NewMetrics(reg)
		go serveMetrics(ctx, cfg.MetricsListen, reg)
	}

	srv := server.New(rt, store, metrics)
	if cfg.Genesis != "" {
		g, err := loadGenesis(cfg.Genesis)
		if err != nil {
			return err
		}
		srv.UseGenesis(g)
	}

	lis, err := net.Listen("tcp", cfg.RPCListen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.RPCListen, err)
	}
	gs := grpc.NewServer()
	stfgrpc.NewGRPCServer(srv).Register(gs)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.InfoS(ctx, "Shutting down", "signal", sig.String())
		gs.GracefulStop()
	}()

	log.InfoS(ctx, "Serving runtime",
		"rpc", cfg.RPCListen,
		"datadir", cfg.DataDir,
		"in_memory", cfg.InMemory)
	if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.InfoS(ctx, "Serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.ErrorS(ctx, "Metrics server stopped", err)
	}
}

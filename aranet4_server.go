package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/version"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aranet4/api"
	"github.com/alepar/aranet4/aranet"
	"github.com/alepar/aranet4/aranet/goble"
	"github.com/alepar/aranet4/config"
	"github.com/alepar/aranet4/history"
	"github.com/alepar/aranet4/poller"
)

const program = "aranet4_server"

func init() {
	poller.MustRegister(prometheus.DefaultRegisterer)

	// Add Go module build info.
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())
	prometheus.MustRegister(version.NewCollector(program))

	//logging
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
}

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("invalid configuration: %s", err)
	}
	if cfg.ShowVersion {
		fmt.Println(version.Print(program))
		return
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	log.Infof("starting Aranet4 HTTP server %s", version.Info())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := history.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open history: %s", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Errorf("db close error: %s", err)
		}
	}()

	latest := &aranet.Latest{}
	reader := aranet.NewReader(
		goble.NewManager(cfg.ConnectTimeout),
		aranet.WithNamePrefix(cfg.NamePrefix),
		aranet.WithScanDuration(cfg.ScanDuration),
	)
	p, err := poller.New(reader, latest, store, cfg.ReadInterval)
	if err != nil {
		log.Fatalf("failed to create poller: %s", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()

	if err := api.Serve(ctx, cfg.ListenAddress, api.NewHandler(latest, store).Routes()); err != nil {
		log.Errorf("http server failed: %s", err)
		stop()
	}

	// a read cycle in flight finishes before the poller notices
	wg.Wait()
	log.Info("shutdown complete")
}

package main

import (
	"context"
	_ "embed"
	"errors"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"
	"github.com/caarlos0/env/v11"
	georitm "github.com/caarlos0/georitm-bridge"
	"github.com/caarlos0/georitm-bridge/internal/dispatch"
	"github.com/caarlos0/georitm-bridge/internal/entity"
	"github.com/caarlos0/georitm-bridge/internal/mqtt"
	"github.com/caarlos0/georitm-bridge/internal/poll"
	"github.com/caarlos0/georitm-bridge/internal/state"
	logp "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed index.html
var index []byte

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "bridge",
})

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log.Info(
		"georitm-bridge",
		"version", version,
		"commit", commit,
		"date", date,
		"info", "HomeKit and Home Assistant bridge for GeoRITM security systems",
	)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(
			"could not parse env",
			"err",
			strings.TrimPrefix(strings.ReplaceAll(err.Error(), "; ", "\n"), "env: ")+"\n",
		)
	}

	level, err := cfg.logLevel()
	if err != nil {
		log.Fatal("invalid config", "err", err)
	}
	log.SetLevel(level)
	georitm.SetLogLevel(level)

	labels, err := cfg.labels()
	if err != nil {
		log.Fatal("invalid config", "err", err)
	}
	creds, err := cfg.credentials()
	if err != nil {
		log.Fatal("invalid config", "err", err)
	}

	cli, err := georitm.New(creds, georitm.Options{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
	})
	if err != nil {
		log.Fatal("could not create client", "err", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-c
		log.Info("stopping server")
		signal.Stop(c)
		cancel()
	}()

	if _, err := cli.Login(ctx); err != nil {
		log.Fatal("could not login", "err", err)
	}

	api := vendor{execute: newExecutor(cli, defaultBackoff)}
	devices, err := loadDevices(ctx, api)
	if err != nil {
		log.Fatal("could not get devices", "err", err)
	}
	devices = cfg.filterDevices(devices)
	if len(devices) == 0 {
		log.Warn("no devices to expose, restart the bridge once the account has some")
	}
	log.Info("loading accessories", "devices", allDevices(devices).String())

	store, err := openStore(cfg.StateDB)
	if err != nil {
		log.Fatal("could not open state store", "err", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("could not close state store", "err", err)
		}
	}()
	store.Watch(observe)

	sensors := entity.Build(devices, labels)
	poller := poll.New(api, store, sensors, log)
	commander := countingCommander{dispatch.New(api, store, log)}

	if err := poller.Prune(); err != nil {
		log.Error("could not prune state store", "err", err)
	}

	homekit := newHomeKit(sensors, store, commander)
	store.Watch(homekit.Update)

	var lastRefresh atomic.Value
	refreshed := func(d time.Duration, err error) {
		pollDurationGauge.Set(d.Seconds())
		lastRefresh.Store(time.Now())
		if err != nil {
			pollErrorCounter.Inc()
		}
	}

	t := time.Now()
	err = poller.Refresh(ctx)
	if err != nil {
		log.Error("could not refresh", "err", err)
	}
	refreshed(time.Since(t), err)

	if cfg.MQTT.Broker != "" {
		mq, err := mqtt.NewBridge(cfg.mqtt(), sensors, store, commander, log)
		if err != nil {
			log.Fatal("could not connect to mqtt", "err", err)
		}
		mq.Start()
		defer mq.Stop()
	}

	go poller.Run(ctx, cfg.PollInterval, refreshed)

	bridge := accessory.NewBridge(accessory.Info{
		Name:         "GeoRITM Bridge",
		Manufacturer: manufacturer,
		Firmware:     version,
	})

	fs := hap.NewFsStore("./db")

	server, err := hap.NewServer(fs, bridge.A, homekit.Accessories()...)
	if err != nil {
		log.Fatal("fail to create server", "error", err)
	}
	server.Pin = cfg.Pin
	server.Addr = cfg.Address
	server.ServeMux().Handle("/metrics", promhttp.Handler())
	tpl := template.Must(template.New("index").Parse(string(index)))
	server.ServeMux().Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last, _ := lastRefresh.Load().(time.Time)
		_ = tpl.Execute(w, struct {
			Version     string
			LastRefresh string
			Items       []PageItem
		}{
			Version:     version,
			LastRefresh: last.Format(time.Kitchen),
			Items:       homekit.page(),
		})
	}))

	log.Info("starting server", "addr", server.Addr)
	if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("failed to close server", "err", err)
	}
}

type deviceLister interface {
	Devices(ctx context.Context) ([]georitm.Device, error)
}

// loadDevices lists the devices. An empty answer only renews the session, so
// it asks once more after one.
func loadDevices(ctx context.Context, api deviceLister) ([]georitm.Device, error) {
	devices, err := api.Devices(ctx)
	if err != nil || len(devices) > 0 {
		return devices, err
	}
	log.Warn("no devices found, asking again")
	return api.Devices(ctx)
}

// openStore opens the bolt store at path, or an in memory one if path is
// empty.
func openStore(path string) (state.Store, error) {
	if path == "" {
		return state.NewMemory(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return state.OpenBolt(path)
}

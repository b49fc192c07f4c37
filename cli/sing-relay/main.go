package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	sing "github.com/sagernet/sing-relay"
	E "github.com/sagernet/sing-relay/common/exceptions"
	"github.com/sagernet/sing-relay/common/log"
	"github.com/sagernet/sing-relay/common/poll"
	"github.com/sagernet/sing-relay/conf"
	"github.com/sagernet/sing-relay/transport/relay"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type flags struct {
	ConfigFile    string
	Listen        string
	Upstream      string
	AcceptProxy   bool
	SendProxy     bool
	MetricsListen string
	Verbose       bool
}

// registerDebug is set by debug builds.
var registerDebug func(mux *http.ServeMux)

func main() {
	f := new(flags)

	command := &cobra.Command{
		Use:     "sing-relay",
		Short:   "PROXY protocol aware TCP relay",
		Version: sing.Version,
	}
	runCommand := &cobra.Command{
		Use:   "run",
		Short: "Run relays",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
	}
	runCommand.Flags().StringVarP(&f.ConfigFile, "config", "c", "", "Use a configuration file.")
	runCommand.Flags().StringVarP(&f.Listen, "listen", "l", "", "Set the listen address of a single relay.")
	runCommand.Flags().StringVarP(&f.Upstream, "upstream", "u", "", "Set the upstream address of a single relay.")
	runCommand.Flags().BoolVar(&f.AcceptProxy, "accept-proxy", false, "Expect a PROXY line from every client.")
	runCommand.Flags().BoolVar(&f.SendProxy, "send-proxy", false, "Send a PROXY line to the upstream.")
	runCommand.Flags().StringVar(&f.MetricsListen, "metrics", "", "Serve prometheus metrics on this address.")
	runCommand.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "Enable verbose mode.")

	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("sing-relay", sing.Version, runtime.Version(), runtime.GOOS+"/"+runtime.GOARCH)
		},
	}
	command.AddCommand(runCommand, versionCommand)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := command.ExecuteContext(ctx)
	if err != nil {
		logrus.Fatal(err)
	}
}

func loadConfig(f *flags) (*conf.Config, error) {
	var config *conf.Config
	if f.ConfigFile != "" {
		loaded, err := conf.Load(f.ConfigFile)
		if err != nil {
			return nil, err
		}
		config = loaded
	} else {
		config = new(conf.Config)
	}
	if f.Listen != "" || f.Upstream != "" {
		config.Relays = append(config.Relays, conf.RelayConfig{
			Name:        "cli",
			Listen:      f.Listen,
			Upstream:    f.Upstream,
			AcceptProxy: f.AcceptProxy,
			SendProxy:   f.SendProxy,
		})
	}
	if f.MetricsListen != "" {
		config.Metrics.Listen = f.MetricsListen
	}
	if f.Verbose {
		config.LogLevel = "debug"
	}
	return config, nil
}

func run(ctx context.Context, f *flags) error {
	config, err := loadConfig(f)
	if err != nil {
		return err
	}
	err = log.SetLevel(config.LogLevel)
	if err != nil {
		return err
	}
	options, err := config.Options()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := relay.NewMetrics(registry)

	poller, err := poll.NewPoller()
	if err != nil {
		return err
	}
	var listeners []*relay.Listener
	closeAll := func() error {
		var errs []error
		for _, listener := range listeners {
			errs = append(errs, listener.Close())
		}
		errs = append(errs, poller.Close())
		return E.Errors(errs...)
	}
	for _, relayOptions := range options {
		listener, err := relay.NewListener(poller, relayOptions, metrics)
		if err != nil {
			closeAll()
			return err
		}
		err = listener.Start()
		if err != nil {
			listener.Close()
			closeAll()
			return E.Cause(err, "start relay ", relayOptions.Name)
		}
		listeners = append(listeners, listener)
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := poller.Run(ctx)
		// sessions are owned by the polling goroutine, so tear them down here
		return E.Errors(err, closeAll())
	})
	if config.Metrics.Listen != "" {
		group.Go(func() error {
			return serveMetrics(ctx, config.Metrics, registry)
		})
	}
	err = group.Wait()
	if err != nil && !E.IsClosedOrCanceled(err) {
		return err
	}
	logrus.Info("stopped")
	return nil
}

func serveMetrics(ctx context.Context, config conf.MetricsConfig, gatherer prometheus.Gatherer) error {
	path := config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if registerDebug != nil {
		registerDebug(mux)
	}
	server := &http.Server{
		Addr:              config.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
	logrus.Info("metrics server listening on ", config.Listen)
	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return E.Cause(err, "metrics server")
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/logging"
	"github.com/muurk/tigerscale/internal/publish"
	"github.com/muurk/tigerscale/internal/session"
	"github.com/muurk/tigerscale/internal/state"
	"github.com/muurk/tigerscale/internal/ui"
)

// Watch flags
var (
	metricsAddr  string
	mqttBroker   string
	mqttTopic    string
	mqttUser     string
	mqttPassword string
	mqttRetain   bool
	noPush       bool
)

// watchCmd follows a scale until interrupted
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the state of a scale",
	Long: `Keep a live view of the scale, combining periodic status polls with
the scale's WebSocket push channel, and print a line whenever it changes.

Optionally expose Prometheus metrics and publish every change to an MQTT
broker: the full state as JSON on <topic>/state and each changed field on
<topic>/<field>.`,
	Example: `  # Print changes
  tigerscale watch

  # Serve metrics on :9110/metrics
  tigerscale watch --metrics-addr :9110

  # Mirror the scale to MQTT
  tigerscale watch --mqtt-broker tcp://localhost:1883 --mqtt-topic workshop/scale`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	watchCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL (e.g. tcp://localhost:1883)")
	watchCmd.Flags().StringVar(&mqttTopic, "mqtt-topic", publish.DefaultTopic, "MQTT topic prefix")
	watchCmd.Flags().StringVar(&mqttUser, "mqtt-user", "", "MQTT username")
	watchCmd.Flags().StringVar(&mqttPassword, "mqtt-password", "", "MQTT password")
	watchCmd.Flags().BoolVar(&mqttRetain, "mqtt-retain", false, "Publish MQTT messages as retained")
	watchCmd.Flags().BoolVar(&noPush, "no-push", false, "Poll only; do not open the push channel")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dev, err := resolveDevice(registry.Preferences.DiscoverTimeoutDuration())
	if err != nil {
		return err
	}

	sess := session.New(newClient(dev), session.Options{
		PollInterval: registry.Preferences.PollInterval(),
		DisablePush:  noPush,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		srv := newMetricsServer(metricsAddr, sess)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(os.Stderr, "Serving metrics on http://%s/metrics\n", metricsAddr)
	}

	if mqttBroker != "" {
		pub, err := publish.NewMQTTPublisher(publish.MQTTConfig{
			Broker:   mqttBroker,
			Topic:    mqttTopic,
			Username: mqttUser,
			Password: mqttPassword,
			QoS:      1,
			Retain:   mqttRetain,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		defer pub.Close()

		cancel := sess.State.Subscribe(func(c state.Change) {
			if err := pub.PublishChange(c); err != nil {
				logging.Warn("MQTT publish failed", zap.Error(err))
			}
		})
		defer cancel()
		fmt.Fprintf(os.Stderr, "Publishing to %s under %s/\n", mqttBroker, mqttTopic)
	}

	out := cmd.OutOrStdout()
	lines := make(chan string, 16)
	emit := func() {
		view := ui.StatusView{Addr: dev.Addr(), State: sess.State.State(), Health: sess.Health(), Now: time.Now()}
		line := view.RenderCompact()
		if outputFormat == "json" {
			data, err := json.Marshal(publish.NewStatePayload(view.State))
			if err != nil {
				return
			}
			line = string(data)
		}
		select {
		case lines <- line:
		default:
		}
	}
	cancelSub := sess.State.Subscribe(func(state.Change) { emit() })
	defer cancelSub()

	var (
		mu        sync.Mutex
		wasOnline bool
	)
	sess.OnHealth(func(h session.Health) {
		mu.Lock()
		defer mu.Unlock()
		if h.Online() == wasOnline {
			return
		}
		wasOnline = h.Online()
		if wasOnline {
			fmt.Fprintf(os.Stderr, "Connected to %s\n", dev.Addr())
		} else {
			fmt.Fprintf(os.Stderr, "Lost contact with %s: %v\n", dev.Addr(), h.LastError)
		}
	})

	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl+C to stop)\n", dev.Addr())

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	// Lines are written from here so subscriber callbacks never block on
	// the terminal.
	last := ""
	for {
		select {
		case line := <-lines:
			if line != last {
				fmt.Fprintln(out, line)
				last = line
			}
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}
	}
}

// newMetricsServer serves the session metrics under /metrics.
func newMetricsServer(addr string, sess *session.Session) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", sess.Metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if !sess.Health().Online() {
			http.Error(w, "scale offline", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

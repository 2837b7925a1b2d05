// Command ngsi-listen subscribes to a broker and prints every entity the
// broker pushes back.
//
// Usage:
//
//	ngsi-listen [flags]
//
// Flags:
//
//	-config string      YAML configuration file
//	-broker string      Broker base URL, e.g. http://localhost:1026
//	-discover           Find the broker via mDNS instead of -broker
//	-iface string       Network interface used for discovery
//	-listen string      Listen address for notifications (default ":8666")
//	-public-url string  URL the broker posts notifications to
//	-type string        Entity type to subscribe to
//	-id-pattern string  Entity id pattern (default ".*")
//	-attrs string       Comma separated attributes to watch
//	-trace string       Protocol trace file (.ntrace)
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-interactive        Start an interactive shell instead of a single subscription
//
// Every flag can also be set through an NGSI_ prefixed environment
// variable, e.g. NGSI_BROKER or NGSI_PUBLIC_URL.
//
// Examples:
//
//	# Watch all rooms on a local broker
//	ngsi-listen -broker http://localhost:1026 -type Room -public-url http://10.0.0.5:8666/notify
//
//	# Discover the broker and open a shell
//	ngsi-listen -discover -interactive
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"

	"github.com/ngsi-go/ngsi/pkg/client"
	"github.com/ngsi-go/ngsi/pkg/config"
	"github.com/ngsi-go/ngsi/pkg/discovery"
	"github.com/ngsi-go/ngsi/pkg/model"
	"github.com/ngsi-go/ngsi/pkg/version"
)

// Options holds the command line settings.
type Options struct {
	ConfigFile  string
	Broker      string
	Discover    bool
	Interface   string
	Listen      string
	PublicURL   string
	Type        string
	IDPattern   string
	Attrs       string
	Trace       string
	LogLevel    string
	Interactive bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (Options, error) {
	var opts Options
	fs := flag.NewFlagSet("ngsi-listen", flag.ContinueOnError)
	fs.StringVar(&opts.ConfigFile, "config", "", "YAML configuration file")
	fs.StringVar(&opts.Broker, "broker", "", "Broker base URL")
	fs.BoolVar(&opts.Discover, "discover", false, "Find the broker via mDNS")
	fs.StringVar(&opts.Interface, "iface", "", "Network interface used for discovery")
	fs.StringVar(&opts.Listen, "listen", "", "Listen address for notifications")
	fs.StringVar(&opts.PublicURL, "public-url", "", "URL the broker posts notifications to")
	fs.StringVar(&opts.Type, "type", "", "Entity type to subscribe to")
	fs.StringVar(&opts.IDPattern, "id-pattern", "", "Entity id pattern")
	fs.StringVar(&opts.Attrs, "attrs", "", "Comma separated attributes to watch")
	fs.StringVar(&opts.Trace, "trace", "", "Protocol trace file")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.BoolVar(&opts.Interactive, "interactive", false, "Start an interactive shell")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("NGSI")); err != nil {
		return Options{}, err
	}
	if opts.Broker != "" && opts.Discover {
		return Options{}, errors.New("-broker and -discover are mutually exclusive")
	}
	return opts, nil
}

// buildConfig merges the configuration file with the flags. Flags win.
func buildConfig(opts Options) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigFile != "" {
		loaded, err := config.Load(opts.ConfigFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if opts.Broker != "" {
		cfg.Broker.URL = opts.Broker
	}
	if opts.Discover {
		cfg.Discovery.Enabled = true
	}
	if opts.Listen != "" {
		cfg.Listener.Address = opts.Listen
	}
	if opts.PublicURL != "" {
		cfg.Listener.PublicURL = opts.PublicURL
	}
	if opts.Trace != "" {
		cfg.ProtocolLog.Path = opts.Trace
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", s)
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func run(opts Options) error {
	level, err := parseLevel(opts.LogLevel)
	if err != nil {
		return err
	}
	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var shell *Shell
	var out io.Writer = os.Stdout
	logOut := io.Writer(os.Stderr)
	if opts.Interactive {
		shell, err = NewShell()
		if err != nil {
			return err
		}
		defer shell.Close()
		out = shell.Stdout()
		logOut = shell.Stderr()
	}
	logger := newLogger(logOut, level)

	if cfg.Broker.URL == "" && cfg.Discovery.Enabled {
		svc, err := discoverBroker(ctx, cfg, opts.Interface)
		if err != nil {
			return err
		}
		cfg.Broker.URL = svc.URL()
		logger.Info("discovered broker", "instance", svc.InstanceName, "url", cfg.Broker.URL, "version", svc.Version)
	}

	c, err := client.New(cfg, client.WithLogger(logger))
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return err
	}

	printer := &entityPrinter{w: out}
	if shell != nil {
		shell.Attach(c, printer)
		go shell.Run(ctx, cancel)
	} else {
		id, err := c.SubscribeDynamic(ctx, printer.Print, subscribeOptions(opts.Type, opts.IDPattern, opts.Attrs)...)
		if err != nil {
			_ = c.Stop(context.Background(), false)
			return err
		}
		logger.Info("subscribed", "subscription", id)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return c.Stop(shutdownCtx, true)
}

func discoverBroker(ctx context.Context, cfg config.Config, iface string) (*discovery.BrokerService, error) {
	browser, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{
		BrowseTimeout: cfg.Discovery.Timeout,
		Interface:     iface,
	})
	if err != nil {
		return nil, err
	}
	defer browser.Stop()
	return browser.FindBroker(ctx, version.Current)
}

func subscribeOptions(typ, idPattern, attrs string) []client.SubscribeOption {
	var opts []client.SubscribeOption
	if typ != "" {
		opts = append(opts, client.ForType(typ))
	}
	if idPattern != "" {
		opts = append(opts, client.ForIDPattern(idPattern))
	}
	if names := splitList(attrs); len(names) > 0 {
		opts = append(opts, client.OnChangeOf(names...))
	}
	opts = append(opts, client.WithDescription("ngsi-listen"))
	return opts
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// entityPrinter writes received entities, one attribute per line.
type entityPrinter struct {
	w io.Writer
}

func (p *entityPrinter) Print(subscriptionID string, e *model.DynamicEntity) {
	fmt.Fprint(p.w, formatEntity(subscriptionID, e))
}

func formatEntity(subscriptionID string, e *model.DynamicEntity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [sub:%s] %s (%s)\n", time.Now().Format("15:04:05.000"), subscriptionID, e.ID, e.Type)
	for _, name := range e.AttributeNames() {
		attr, _ := e.Get(name)
		if attr.Type != "" {
			fmt.Fprintf(&b, "  %s = %s (%s)\n", name, attr.Value.String(), attr.Type)
		} else {
			fmt.Fprintf(&b, "  %s = %s\n", name, attr.Value.String())
		}
	}
	return b.String()
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ngsi-go/ngsi/pkg/client"
	"github.com/ngsi-go/ngsi/pkg/model"
)

// Shell is the interactive command loop of ngsi-listen.
type Shell struct {
	rl      *readline.Instance
	client  *client.Client
	printer *entityPrinter
}

// NewShell creates a shell reading from the terminal.
func NewShell() (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ngsi> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("subscribe"),
			readline.PcItem("unsubscribe"),
			readline.PcItem("list"),
			readline.PcItem("get"),
			readline.PcItem("status"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{rl: rl}, nil
}

// Stdout returns a writer that coordinates with the prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Stderr returns a writer that coordinates with the prompt.
func (s *Shell) Stderr() io.Writer {
	return s.rl.Stderr()
}

// Close restores the terminal.
func (s *Shell) Close() error {
	return s.rl.Close()
}

// Attach sets the client commands operate on.
func (s *Shell) Attach(c *client.Client, p *entityPrinter) {
	s.client = c
	s.printer = p
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		if !s.execute(ctx, line) {
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}
	}
}

// execute runs one command line. It returns false when the shell should exit.
func (s *Shell) execute(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "subscribe", "sub", "s":
		s.cmdSubscribe(ctx, args)
	case "unsubscribe", "unsub", "u":
		s.cmdUnsubscribe(ctx, args)
	case "list", "ls":
		s.cmdList()
	case "get", "g":
		s.cmdGet(ctx, args)
	case "status":
		s.cmdStatus()
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
NGSI Listener Commands:
  subscribe <type> [id-pattern] [attr,...] - Subscribe to entities of a type
  unsubscribe <subscription-id>            - Remove a subscription
  list                                     - List active subscriptions
  get <entity-id> [type]                   - Fetch an entity from the broker
  status                                   - Show listener and dispatcher counters
  help                                     - Show this help
  quit                                     - Remove subscriptions and exit`)
}

func (s *Shell) cmdSubscribe(ctx context.Context, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: subscribe <type> [id-pattern] [attr,...]")
		fmt.Fprintln(s.rl.Stdout(), "  Example: subscribe Room urn:room:.* temperature,humidity")
		return
	}
	var idPattern, attrs string
	if len(args) > 1 {
		idPattern = args[1]
	}
	if len(args) > 2 {
		attrs = args[2]
	}
	id, err := s.client.SubscribeDynamic(ctx, s.printer.Print, subscribeOptions(args[0], idPattern, attrs)...)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Subscribe failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "Subscribed: %s\n", id)
}

func (s *Shell) cmdUnsubscribe(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: unsubscribe <subscription-id>")
		return
	}
	if err := s.client.Unsubscribe(ctx, args[0]); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Unsubscribe failed: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), "OK")
}

func (s *Shell) cmdList() {
	ids := s.client.Subscriptions()
	if len(ids) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "No subscriptions")
		return
	}
	fmt.Fprintf(s.rl.Stdout(), "\nSubscriptions (%d):\n", len(ids))
	fmt.Fprintln(s.rl.Stdout(), "-------------------------------------------")
	for _, id := range ids {
		sub, ok := s.client.Subscription(id)
		if !ok {
			continue
		}
		fmt.Fprintf(s.rl.Stdout(), "  %s  %-8s %s\n", id, sub.State(), sub.Description)
	}
}

func (s *Shell) cmdGet(ctx context.Context, args []string) {
	if len(args) == 0 || len(args) > 2 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: get <entity-id> [type]")
		return
	}
	var typ string
	if len(args) == 2 {
		typ = args[1]
	}
	e, err := client.Get[*model.DynamicEntity](ctx, s.client, args[0], typ)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprint(s.rl.Stdout(), formatEntity("-", e))
}

func (s *Shell) cmdStatus() {
	l := s.client.Listener()
	stats := s.client.Dispatcher().Stats()
	fmt.Fprintln(s.rl.Stdout(), "\nStatus:")
	fmt.Fprintf(s.rl.Stdout(), "  Broker:        %s\n", s.client.Config().Broker.URL)
	if l.Running() {
		fmt.Fprintf(s.rl.Stdout(), "  Listener:      %s%s\n", l.Addr(), l.Path())
	} else {
		fmt.Fprintln(s.rl.Stdout(), "  Listener:      stopped")
	}
	fmt.Fprintf(s.rl.Stdout(), "  Requests:      %d\n", l.Received())
	fmt.Fprintf(s.rl.Stdout(), "  Subscriptions: %d\n", len(s.client.Subscriptions()))
	fmt.Fprintf(s.rl.Stdout(), "  Received:      %d\n", stats.Received)
	fmt.Fprintf(s.rl.Stdout(), "  Delivered:     %d\n", stats.Delivered)
	fmt.Fprintf(s.rl.Stdout(), "  Failed:        %d\n", stats.Failed)
	fmt.Fprintf(s.rl.Stdout(), "  Dropped:       %d\n", stats.Dropped)
}

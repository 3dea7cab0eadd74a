// Command gatectl is the terminal client for gate attendants.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"parkgate/internal/client"
	"parkgate/internal/logger"
	"parkgate/internal/session"
)

type command struct {
	name    string
	summary string
	run     func(a *app, args []string) error
}

var commands = []command{
	{"login", "Sign in and remember the session", runLogin},
	{"logout", "Forget the stored session", runLogout},
	{"whoami", "Show the signed-in user", runWhoami},
	{"zones", "List a gate's zones, optionally following live updates", runZones},
	{"checkin", "Admit a vehicle at a gate", runCheckin},
	{"checkout", "Check a ticket out", runCheckout},
	{"audit", "Follow administrative changes (admin scope)", runAudit},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(os.Stdout)
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			a := &app{out: os.Stdout, in: bufio.NewReader(os.Stdin)}
			return cmd.run(a, args[1:])
		}
	}
	usage(os.Stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: gatectl <command> [flags]")
	fmt.Fprintln(w)
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.summary)
	}
}

// app is what every command shares: endpoints, the REST client and the
// session store
type app struct {
	apiURL   string
	wsURL    string
	stateDir string
	logLevel string

	api   *client.Client
	store *session.Store
	out   io.Writer
	in    *bufio.Reader
}

func (a *app) flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&a.apiURL, "api", envOr("PARKGATE_API", "http://localhost:3000/api/v1"), "API base URL")
	fs.StringVar(&a.wsURL, "ws", os.Getenv("PARKGATE_WS"), "live feed URL (derived from --api when empty)")
	fs.StringVar(&a.stateDir, "state-dir", envOr("PARKGATE_STATE_DIR", defaultStateDir()), "where the session is kept")
	fs.StringVar(&a.logLevel, "log-level", "warn", "log level")
	return fs
}

// init builds the client and session after flags are parsed
func (a *app) init() error {
	logger.InitWriter(os.Stderr, a.logLevel, "text")

	durable, err := session.NewFileStorage(a.stateDir)
	if err != nil {
		return err
	}
	a.api = client.New(client.Config{BaseURL: a.apiURL, Timeout: 15 * time.Second},
		client.TokenFunc(func() string { return a.store.Token() }))
	a.store = session.New(a.api, durable, session.NewMemoryStorage())

	if a.wsURL == "" {
		a.wsURL, err = feedURL(a.apiURL)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) requireLogin() error {
	if !a.store.Auth().IsAuthenticated {
		return errors.New("not signed in, run gatectl login first")
	}
	return nil
}

// feedURL maps http(s)://host/api/v1 to ws(s)://host/ws
func feedURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil {
		return "", fmt.Errorf("invalid --api: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid --api scheme %q", u.Scheme)
	}
	u.Path, u.RawQuery = "/ws", ""
	return u.String(), nil
}

func (a *app) confirm(prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	line, _ := a.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "parkgate")
	}
	return ".parkgate"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

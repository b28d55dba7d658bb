// Package main provides the hotviz command: a terminal visualizer for
// two-tier HotStuff consensus traces, and a relay that records live engine
// events and serves them to viewers.
//
// Subcommands:
//
//	hotviz view    play a trace file, an engine session or a recorded session
//	hotviz serve   record engine events and relay them over gRPC
//	hotviz layout  print the node layout of a topology
//	hotviz stats   compare message complexity across algorithms
//	hotviz import  store a trace file as a session
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/pterm/pterm"

	"github.com/salahayoub/hotviz/pkg/logging"
	"github.com/salahayoub/hotviz/pkg/storage"
	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/trace"
	"github.com/salahayoub/hotviz/pkg/transport"
	"github.com/salahayoub/hotviz/pkg/tui"
	"github.com/salahayoub/hotviz/pkg/types"
)

const usage = `usage: hotviz <command> [flags]

commands:
  view    play a trace file, an engine session or a recorded session
  serve   record engine events and relay them to viewers
  layout  print the node layout of a topology
  stats   compare message complexity across algorithms
  import  store a trace file as a session

run "hotviz <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run dispatches to a subcommand and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	commands := map[string]func([]string, io.Writer, io.Writer) int{
		"view":   runView,
		"serve":  runServe,
		"layout": runLayout,
		"stats":  runStats,
		"import": runImport,
	}
	switch args[0] {
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	return cmd(args[1:], stdout, stderr)
}

// newFlagSet creates a flag set that reports errors instead of exiting.
func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("hotviz "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parseFailed reports a flag or validation error and returns its exit code.
func parseFailed(stderr io.Writer, err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	fmt.Fprintf(stderr, "%s\n", pterm.Error.Sprint(err.Error()))
	return 2
}

func fail(stderr io.Writer, format string, args ...interface{}) int {
	fmt.Fprintf(stderr, "%s\n", pterm.Error.Sprintf(format, args...))
	return 1
}

// openStore opens the BoltDB file inside dir, creating dir when create is
// set.
func openStore(dir string, create bool) (*storage.BoltStore, error) {
	if create {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	} else if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("store directory %s: %w", dir, err)
	}
	return storage.NewBoltStore(filepath.Join(dir, dbFilename))
}

// ============================================================================
// view
// ============================================================================

// sessionRecorder records live events into a store. A session_config event
// also updates the stored session.
type sessionRecorder struct {
	store *storage.BoltStore
}

func (r sessionRecorder) AppendEvent(session string, ev types.Event) (uint64, error) {
	if ev.Kind == types.EventSessionConfig && ev.Config != nil {
		if err := r.store.SaveSession(session, *ev.Config); err != nil {
			return 0, err
		}
	}
	return r.store.AppendEvent(session, ev)
}

func runView(args []string, stdout, stderr io.Writer) int {
	cfg, err := ParseViewFlags(newFlagSet("view", stderr), args)
	if err != nil {
		return parseFailed(stderr, err)
	}
	if err := cfg.Validate(); err != nil {
		return parseFailed(stderr, err)
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer logFile.Close()
	logging.Init(cfg.LogLevel, logFile, false)

	if cfg.NoColor || !tui.DetectColorSupport() {
		tui.CurrentStyles = tui.MonochromeStyles()
	}

	var fetcher tui.TraceFetcher
	switch {
	case cfg.Trace != "":
		f, err := tui.NewFileFetcher(cfg.Trace)
		if err != nil {
			return fail(stderr, "%v", err)
		}
		fetcher = f
	case cfg.Engine != "":
		fetcher = tui.NewHTTPTraceFetcher(cfg.Engine, cfg.Session)
	default:
		store, err := openStore(cfg.Store, false)
		if err != nil {
			return fail(stderr, "%v", err)
		}
		defer store.Close()
		fetcher = tui.NewStoreFetcher(store, cfg.Session)
	}

	opts := tui.AppOptions{
		FPS:      cfg.FPS,
		Step:     cfg.Step,
		Session:  cfg.Session,
		Autoplay: cfg.Autoplay,
	}

	if cfg.Record != "" {
		store, err := openStore(cfg.Record, true)
		if err != nil {
			return fail(stderr, "%v", err)
		}
		defer store.Close()
		sessionCfg, err := fetcher.FetchSession()
		if err != nil {
			slog.Warn("recording without an initial session config", "error", err)
			sessionCfg = &types.SessionConfig{}
		}
		if err := store.SaveSession(cfg.Session, *sessionCfg); err != nil {
			return fail(stderr, "failed to create session %s: %v", cfg.Session, err)
		}
		opts.Recorder = sessionRecorder{store: store}
		slog.Info("recording live events", "store", cfg.Record, "session", cfg.Session)
	}

	if cfg.Events != "" {
		client, err := transport.Dial(cfg.Events)
		if err != nil {
			return fail(stderr, "%v", err)
		}
		defer client.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sub, err := client.Subscribe(ctx, transport.SubscribeRequest{Session: cfg.Session})
		if err != nil {
			return fail(stderr, "%v", err)
		}
		opts.Events = sub.Events()
		slog.Info("subscribed to relay", "addr", cfg.Events, "session", cfg.Session)
	}

	app := tui.NewApp(fetcher, opts)
	if err := app.Run(); err != nil {
		return fail(stderr, "%v", err)
	}
	return 0
}

// ============================================================================
// serve
// ============================================================================

func runServe(args []string, stdout, stderr io.Writer) int {
	cfg, err := ParseServeFlags(newFlagSet("serve", stderr), args)
	if err != nil {
		return parseFailed(stderr, err)
	}
	if err := cfg.Validate(); err != nil {
		return parseFailed(stderr, err)
	}
	logging.Init(cfg.LogLevel, stderr, tui.DetectColorSupport())

	store, err := openStore(cfg.Store, true)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	slog.Info("opened store", "path", store.Path())

	relay, err := transport.NewServer(cfg.GRPCAddr, storeBacklog(store))
	if err != nil {
		store.Close()
		return fail(stderr, "%v", err)
	}
	slog.Info("event relay listening", "addr", relay.LocalAddr())

	handler := NewHandler(store, relay, cfg.Session)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpErr := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("received signal, shutting down", "signal", sig.String())
	case err := <-httpErr:
		slog.Error("HTTP server failed", "error", err)
	}
	return gracefulShutdown(httpServer, handler, relay, store)
}

// storeBacklog replays recorded events to new relay subscribers.
func storeBacklog(store *storage.BoltStore) transport.BacklogFunc {
	return func(session string, after uint64) ([]types.Event, error) {
		if session == "" {
			return nil, nil
		}
		stored, err := store.EventsSince(session, after)
		if err != nil {
			if errors.Is(err, storage.ErrSessionNotFound) {
				return nil, nil
			}
			return nil, err
		}
		events := make([]types.Event, len(stored))
		for i, se := range stored {
			events[i] = se.Event
		}
		return events, nil
	}
}

// gracefulShutdown stops accepting HTTP requests, closes the relay and
// closes the store. Returns 0 on success, 1 on error.
func gracefulShutdown(httpServer *http.Server, h *Handler, relay transport.Publisher, store *storage.BoltStore) int {
	exitCode := 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("error shutting down HTTP server", "error", err)
		exitCode = 1
	}
	h.Close()

	if err := relay.Close(); err != nil {
		slog.Error("error closing event relay", "error", err)
		exitCode = 1
	}
	if err := store.Close(); err != nil {
		slog.Error("error closing store", "error", err)
		exitCode = 1
	}

	if exitCode == 0 {
		slog.Info("shutdown completed")
	} else {
		slog.Warn("shutdown completed with errors")
	}
	return exitCode
}

// ============================================================================
// layout
// ============================================================================

func runLayout(args []string, stdout, stderr io.Writer) int {
	cfg, err := ParseLayoutFlags(newFlagSet("layout", stderr), args)
	if err != nil {
		return parseFailed(stderr, err)
	}
	if err := cfg.Validate(); err != nil {
		return parseFailed(stderr, err)
	}

	params := topology.ParamsFromConfig(cfg.Session)
	layout := topology.ComputeLayout(params, topology.DefaultCanvas)
	nodes := layout.Nodes()

	if cfg.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(nodes); err != nil {
			return fail(stderr, "%v", err)
		}
		return 0
	}

	data := pterm.TableData{{"Node", "Role", "Group", "X", "Y", "Color", "Byzantine"}}
	for _, n := range nodes {
		byz := ""
		if topology.IsByzantine(n.ID, cfg.Session.NodeCount, cfg.Session.ByzantineCount) {
			byz = pterm.LightRed("yes")
		}
		data = append(data, []string{
			strconv.Itoa(int(n.ID)),
			n.Role,
			strconv.Itoa(n.Group),
			fmt.Sprintf("%.1f", n.X),
			fmt.Sprintf("%.1f", n.Y),
			n.Color,
			byz,
		})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fail(stderr, "%v", err)
	}

	title := fmt.Sprintf("%s, leader %d", layout.Mode, layout.Leader())
	fmt.Fprintln(stdout, pterm.DefaultBox.WithTitle(title).Sprint(table))
	return 0
}

// ============================================================================
// stats
// ============================================================================

func runStats(args []string, stdout, stderr io.Writer) int {
	cfg, err := ParseStatsFlags(newFlagSet("stats", stderr), args)
	if err != nil {
		return parseFailed(stderr, err)
	}
	if err := cfg.Validate(); err != nil {
		return parseFailed(stderr, err)
	}

	session := cfg.Session
	var rounds []trace.RoundStats
	if cfg.Trace != "" {
		t, err := trace.LoadFile(cfg.Trace)
		if err != nil {
			return fail(stderr, "%v", err)
		}
		session = t.Config
		rounds = trace.Summarize(t)
	}

	actual := cfg.Actual
	if actual == 0 {
		if rounds != nil {
			for _, rs := range rounds {
				actual += rs.Units
			}
		} else {
			actual = 8 * session.NodeCount
		}
	}

	cmp := trace.Compare(session.NodeCount, session.BranchCount, actual)
	data := pterm.TableData{{"Algorithm", "Complexity", "Theoretical", "Actual", "Ratio"}}
	for _, a := range cmp.Algorithms {
		name := a.Name
		if a.Current {
			name = pterm.LightGreen(name)
		}
		ratio := "-"
		if a.Ratio > 0 {
			ratio = fmt.Sprintf("%.2fx", a.Ratio)
		}
		data = append(data, []string{name, a.Complexity, strconv.Itoa(a.Theoretical), strconv.Itoa(a.Actual), ratio})
	}
	table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fail(stderr, "%v", err)
	}
	title := fmt.Sprintf("n=%d k=%d, f=%d, quorum %d", session.NodeCount, session.BranchCount,
		trace.FaultTolerance(session.NodeCount), trace.Quorum(session.NodeCount))
	fmt.Fprintln(stdout, pterm.DefaultBox.WithTitle(title).Sprint(table))

	if rounds == nil {
		return 0
	}
	data = pterm.TableData{{"Round", "View", "Leader", "Batches", "Units", "Dropped", "Consensus"}}
	for _, rs := range rounds {
		data = append(data, []string{
			strconv.Itoa(rs.Round),
			strconv.Itoa(rs.View),
			strconv.Itoa(int(rs.Leader)),
			strconv.Itoa(rs.Batches),
			strconv.Itoa(rs.Units),
			strconv.Itoa(rs.Dropped),
			rs.Consensus,
		})
	}
	table, err = pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fail(stderr, "%v", err)
	}
	fmt.Fprintln(stdout, pterm.DefaultBox.WithTitle("Rounds").Sprint(table))
	return 0
}

// ============================================================================
// import
// ============================================================================

func runImport(args []string, stdout, stderr io.Writer) int {
	cfg, err := ParseImportFlags(newFlagSet("import", stderr), args)
	if err != nil {
		return parseFailed(stderr, err)
	}
	if err := cfg.Validate(); err != nil {
		return parseFailed(stderr, err)
	}

	t, err := trace.LoadFile(cfg.Trace)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	store, err := openStore(cfg.Store, true)
	if err != nil {
		return fail(stderr, "%v", err)
	}
	defer store.Close()

	if err := store.SaveSession(cfg.Session, t.Config); err != nil {
		return fail(stderr, "failed to create session %s: %v", cfg.Session, err)
	}
	for i, r := range t.Rounds {
		if r.Number == 0 {
			r.Number = i + 1
		}
		if err := store.SaveRound(cfg.Session, r); err != nil {
			return fail(stderr, "failed to store round %d: %v", r.Number, err)
		}
	}

	fmt.Fprint(stdout, pterm.Success.Sprintfln("imported %d rounds into session %s", len(t.Rounds), cfg.Session))
	return 0
}

package tui

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/salahayoub/hotviz/pkg/anim"
	"github.com/salahayoub/hotviz/pkg/phase"
	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/trace"
	"github.com/salahayoub/hotviz/pkg/types"
)

// KeyEvent represents a keyboard event.
type KeyEvent struct {
	Key  tcell.Key
	Rune rune
	Mod  tcell.ModMask
}

// AppOptions configure an App.
type AppOptions struct {
	// FPS is the playback frame rate. Zero means 30.
	FPS int
	// Step is the unit progress per frame. Zero means anim.DefaultStep.
	Step float64
	// Session names the session in the header and in recorded events.
	Session string
	// Events is an optional live event stream.
	Events <-chan types.Event
	// Recorder persists live events when set.
	Recorder EventRecorder
	// Clock drives annotation expiry. Nil means phase.RealClock.
	Clock phase.Clock
	// Screen replaces the terminal, typically a simulation screen in tests.
	Screen tcell.Screen
	// Autoplay starts playback of every round once the trace is loaded.
	Autoplay bool
}

// App is the main TUI application controller.
//
// The frame ticker, live events, key handling and annotation expiry all
// mutate state under mu, so the canvas has a single writer.
type App struct {
	model   *Model
	view    *View
	canvas  *Canvas
	fetcher TraceFetcher
	screen  tcell.Screen
	opts    AppOptions

	seq     *anim.Sequencer
	tracker *phase.Tracker

	// Channels
	stopChan chan struct{}
	keyChan  chan KeyEvent

	// Synchronization
	mu      sync.Mutex
	running bool

	// Reconnection settings
	reconnectInterval time.Duration
	reconnectTimeout  time.Duration

	// Key debouncing
	now         func() time.Time
	lastKeyTime time.Time
	lastKey     tcell.Key
	lastRune    rune
}

// NewApp creates a new TUI application reading rounds from fetcher.
func NewApp(fetcher TraceFetcher, opts AppOptions) *App {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Step <= 0 {
		opts.Step = anim.DefaultStep
	}

	a := &App{
		model:             NewModel(),
		view:              NewView(),
		canvas:            NewCanvas(52, 20),
		fetcher:           fetcher,
		screen:            opts.Screen,
		opts:              opts,
		stopChan:          make(chan struct{}),
		keyChan:           make(chan KeyEvent, 10),
		reconnectInterval: 5 * time.Second,
		reconnectTimeout:  30 * time.Second,
		now:               time.Now,
	}
	a.model.Session = opts.Session
	a.seq = anim.NewSequencer(a.canvas, a.currentLayout)
	a.tracker = phase.NewTracker(0, opts.Clock)
	a.tracker.OnExpire = a.render
	return a
}

// currentLayout is handed to the sequencer. Callers hold mu.
func (a *App) currentLayout() *topology.Layout {
	return a.model.Layout
}

// Run starts the TUI application main loop.
// It initializes the terminal, loads the trace, and runs the frame, event,
// refresh and reconnect loops until quit.
func (a *App) Run() error {
	if a.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("failed to create screen: %w", err)
		}
		a.screen = screen
	}
	if err := a.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	a.screen.DisableMouse()
	a.screen.Clear()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	a.mu.Lock()
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Load(); err != nil {
		slog.Warn("initial load failed", "error", err)
	}
	if a.opts.Autoplay {
		a.mu.Lock()
		a.playFrom(0, -1)
		a.mu.Unlock()
	}
	a.render()

	var wg sync.WaitGroup
	loops := []func(context.Context){a.pollEvents, a.frameLoop, a.refreshLoop, a.reconnectLoop}
	if a.opts.Events != nil {
		loops = append(loops, a.eventLoop)
	}
	for _, loop := range loops {
		wg.Add(1)
		go func(loop func(context.Context)) {
			defer wg.Done()
			loop(ctx)
		}(loop)
	}

	shutdown := func() error {
		cancel()
		// Fini unblocks PollEvent.
		a.cleanup()
		wg.Wait()
		a.tracker.Stop()
		return nil
	}

	for {
		select {
		case <-a.stopChan:
			return shutdown()

		case <-sigChan:
			return shutdown()

		case event := <-a.keyChan:
			if a.handleKeyEvent(event) {
				a.Stop()
				return shutdown()
			}
			a.render()
		}
	}
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		close(a.stopChan)
		a.running = false
	}
}

// cleanup restores the terminal state.
func (a *App) cleanup() {
	if a.screen != nil {
		a.screen.Fini()
	}
}

// pollEvents polls for terminal events and sends them to the key channel.
func (a *App) pollEvents(ctx context.Context) {
	for {
		ev := a.screen.PollEvent()
		if ev == nil {
			return
		}

		switch e := ev.(type) {
		case *tcell.EventKey:
			select {
			case a.keyChan <- KeyEvent{Key: e.Key(), Rune: e.Rune(), Mod: e.Modifiers()}:
			case <-ctx.Done():
				return
			}
		case *tcell.EventResize:
			a.screen.Sync()
			a.render()
		}
	}
}

// frameLoop ticks the sequencer at the configured frame rate.
func (a *App) frameLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(a.opts.FPS))
	defer ticker.Stop()

	wasActive := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active := a.tick()
			if active || wasActive {
				a.render()
			}
			wasActive = active
		}
	}
}

// tick advances playback by one frame and mirrors its progress into the
// model. It reports whether a playback is still running.
func (a *App) tick() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	active := a.seq.Tick()
	a.syncPlaybackLocked()
	return active
}

func (a *App) syncPlaybackLocked() {
	p := a.seq.Current()
	if p == nil {
		a.model.Playing = false
		return
	}
	a.model.Playing = p.Active()
	a.model.PlayRound, a.model.PlayTotal = p.Round()
	a.model.BatchProgress = p.BatchProgress()
}

// eventLoop applies live events until the stream closes.
func (a *App) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.opts.Events:
			if !ok {
				a.mu.Lock()
				a.model.Note(a.now(), "live stream closed")
				a.mu.Unlock()
				a.render()
				return
			}
			a.HandleEvent(ev)
			a.render()
		}
	}
}

// HandleEvent feeds one live event to the phase tracker, the event log and
// the recorder.
func (a *App) HandleEvent(ev types.Event) {
	if ev.Time.IsZero() {
		ev.Time = a.now()
	}

	ann, shown := a.tracker.Apply(ev)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.model.AddEvent(FormatEvent(ev))
	if shown {
		a.model.Note(ev.Time, "%s", ann.String())
	}

	switch ev.Kind {
	case types.EventSessionConfig:
		if ev.Config != nil {
			a.model.Config = *ev.Config
			a.rebuildLayoutLocked(topology.NormalizeLeader(ev.Config.LeaderID, ev.Config.NodeCount))
		}
	case types.EventConsensusResult:
		if ev.Result != nil {
			a.model.Consensus = ev.Result.Status
		}
	}

	if a.opts.Recorder != nil {
		if _, err := a.opts.Recorder.AppendEvent(a.opts.Session, ev); err != nil {
			slog.Warn("failed to record event", "kind", ev.Kind, "error", err)
		}
	}
}

// refreshLoop periodically picks up rounds the source added since the last
// load.
func (a *App) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(a.model.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.refreshRounds() {
				a.render()
			}
		}
	}
}

// reconnectLoop handles automatic reconnection when disconnected.
func (a *App) reconnectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.reconnectInterval):
			a.mu.Lock()
			connected := a.model.Connected
			a.mu.Unlock()

			if !connected {
				a.attemptReconnect()
				a.render()
			}
		}
	}
}

// attemptReconnect tries to reach the trace source again.
func (a *App) attemptReconnect() {
	a.mu.Lock()
	a.model.ReconnectAttempts++
	a.model.LastReconnect = a.now()
	attempts := a.model.ReconnectAttempts
	a.mu.Unlock()

	if attempts > int(a.reconnectTimeout/a.reconnectInterval) {
		a.mu.Lock()
		a.model.ErrorMessage = "Connection failed after 30 seconds. Check that the engine is running and accessible."
		a.mu.Unlock()
		return
	}

	if err := a.fetcher.Reconnect(); err != nil {
		a.mu.Lock()
		a.model.ErrorMessage = fmt.Sprintf("Reconnection attempt %d failed: %v", attempts, err)
		a.mu.Unlock()
		return
	}

	a.mu.Lock()
	a.model.Connected = true
	a.model.ReconnectAttempts = 0
	a.model.ErrorMessage = ""
	a.mu.Unlock()

	if err := a.Load(); err != nil {
		slog.Warn("reload after reconnect failed", "error", err)
	}
}

// Load fetches the session configuration and every round. Fetching happens
// without the lock held.
func (a *App) Load() error {
	cfg, err := a.fetcher.FetchSession()
	if err != nil {
		a.setDisconnected(err)
		return fmt.Errorf("fetch session: %w", err)
	}
	rounds, err := a.fetchRounds(nil)
	if err != nil {
		a.setDisconnected(err)
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.model.Config = *cfg
	a.model.Rounds = rounds
	a.model.Connected = a.fetcher.IsConnected()
	if a.model.RoundIndex >= len(rounds) {
		a.model.RoundIndex = 0
	}
	a.tracker.SetNodeCount(cfg.NodeCount)

	leader := topology.NormalizeLeader(cfg.LeaderID, cfg.NodeCount)
	if len(rounds) > 0 {
		leader = topology.NormalizeLeader(rounds[a.model.RoundIndex].Leader, cfg.NodeCount)
	}
	a.rebuildLayoutLocked(leader)
	slog.Info("trace loaded", "nodes", cfg.NodeCount, "branches", cfg.BranchCount, "rounds", len(rounds))
	return nil
}

// fetchRounds fetches every round whose number is not in have.
func (a *App) fetchRounds(have map[int]bool) ([]types.Round, error) {
	numbers, err := a.fetcher.FetchRoundNumbers()
	if err != nil {
		return nil, fmt.Errorf("fetch rounds: %w", err)
	}
	rounds := make([]types.Round, 0, len(numbers))
	for _, n := range numbers {
		if have[n] {
			continue
		}
		r, err := a.fetcher.FetchRound(n)
		if err != nil {
			return nil, fmt.Errorf("fetch round %d: %w", n, err)
		}
		rounds = append(rounds, *r)
	}
	return rounds, nil
}

// refreshRounds appends rounds that appeared at the source. It reports
// whether anything changed.
func (a *App) refreshRounds() bool {
	if !a.fetcher.IsConnected() {
		a.mu.Lock()
		changed := a.model.Connected
		a.model.Connected = false
		a.mu.Unlock()
		return changed
	}

	a.mu.Lock()
	have := make(map[int]bool, len(a.model.Rounds))
	for _, r := range a.model.Rounds {
		have[r.Number] = true
	}
	a.mu.Unlock()

	fresh, err := a.fetchRounds(have)
	if err != nil {
		slog.Warn("round refresh failed", "error", err)
		return false
	}
	if len(fresh) == 0 {
		return false
	}

	a.mu.Lock()
	a.model.Rounds = append(a.model.Rounds, fresh...)
	a.model.Note(a.now(), "%d new round(s) available", len(fresh))
	a.mu.Unlock()
	return true
}

func (a *App) setDisconnected(err error) {
	a.mu.Lock()
	a.model.Connected = false
	a.model.ErrorMessage = err.Error()
	a.mu.Unlock()
}

// rebuildLayoutLocked recomputes the layout with leader as root and redraws
// the idle canvas.
func (a *App) rebuildLayoutLocked(leader types.NodeID) {
	p := topology.ParamsFromConfig(a.model.Config)
	p.Leader = leader
	a.model.Layout = topology.ComputeLayout(p, topology.DefaultCanvas)
	if pb := a.seq.Current(); pb == nil || !pb.Active() {
		a.canvas.DrawTopology(a.model.Layout)
	}
}

// leaderLocked returns the root of the current layout.
func (a *App) leaderLocked() types.NodeID {
	if a.model.Layout == nil {
		return topology.NormalizeLeader(a.model.Config.LeaderID, a.model.Config.NodeCount)
	}
	return a.model.Layout.Leader()
}

// playFrom starts playback at round index from. count limits the number of
// rounds; a negative count plays to the end. Callers hold mu.
func (a *App) playFrom(from, count int) {
	rounds := a.model.Rounds
	if from < 0 || from >= len(rounds) {
		a.model.ErrorMessage = "no rounds to play"
		return
	}
	end := len(rounds)
	if count >= 0 && from+count < end {
		end = from + count
	}
	selected := rounds[from:end]
	cfg := a.model.Config

	playlist := make([]anim.Round, len(selected))
	for i, r := range selected {
		batches := trace.BuildBatches(r, cfg)
		ar := make(anim.Round, len(batches))
		for j, b := range batches {
			ar[j] = anim.Batch(b)
		}
		playlist[i] = ar
	}

	a.model.RoundIndex = from
	a.model.Consensus = ""
	a.model.LastDropped = 0
	a.canvas.ClearConsensus()
	a.rebuildLayoutLocked(topology.NormalizeLeader(selected[0].Leader, cfg.NodeCount))
	a.canvas.DrawTopology(a.model.Layout)

	a.seq.Play(playlist, anim.Options{
		Step:     a.opts.Step,
		Expected: cfg.ProposalValue,
		Decided:  cfg.ProposalValue,
		OnRoundComplete: func(i int) {
			done := selected[i]
			if done.Consensus != "" {
				a.model.Consensus = done.Consensus
			}
			if i+1 < len(selected) {
				next := selected[i+1]
				a.model.RoundIndex = from + i + 1
				a.rebuildLayoutLocked(topology.NormalizeLeader(next.Leader, cfg.NodeCount))
			}
		},
		OnDone: func() {
			a.model.Note(a.now(), "playback finished, consensus value %d", cfg.ProposalValue)
		},
		OnDropped: func(i, n int) {
			a.model.LastDropped = n
			a.model.TotalDropped += n
			a.model.Note(a.now(), "round %d: dropped %d message(s) with unknown nodes", selected[i].Number, n)
			slog.Warn("dropped messages", "round", selected[i].Number, "count", n)
		},
	})
	a.syncPlaybackLocked()
}

// render draws the current state to the screen.
func (a *App) render() {
	if a.screen == nil {
		return
	}
	state := a.tracker.State()
	ann, annotated := a.tracker.Annotation()

	a.mu.Lock()
	a.model.State = state
	a.model.Annotation = ""
	if annotated {
		a.model.Annotation = ann.String()
	}
	width, height := a.screen.Size()
	inner := a.view.CanvasRect(a.model, width, height)
	a.canvas.Resize(inner.W, inner.H)
	buf := a.view.Render(a.model, a.canvas, width, height)
	a.mu.Unlock()

	buf.ApplyToScreen(a.screen, 0, 0)
	a.screen.Show()
}

// IsRunning returns whether the application is currently running.
func (a *App) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// GetModel returns the current model (for testing).
func (a *App) GetModel() *Model {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model
}

// handleKeyEvent processes a keyboard event and updates the model.
// Returns true if the application should exit.
func (a *App) handleKeyEvent(event KeyEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Debounce: ignore same key within 200ms to prevent keyboard repeat
	// from triggering multiple actions
	now := a.now()
	if now.Sub(a.lastKeyTime) < 200*time.Millisecond &&
		a.lastKey == event.Key && a.lastRune == event.Rune {
		return false
	}
	a.lastKeyTime = now
	a.lastKey = event.Key
	a.lastRune = event.Rune

	if event.Key == tcell.KeyCtrlC {
		return true
	}

	inCommand := a.model.ActivePanel == PanelCommand

	// 'q' quits unless it is being typed into a command
	if event.Rune == 'q' && (!inCommand || a.model.CommandInput == "") {
		return true
	}

	if event.Key == tcell.KeyTab {
		if event.Mod&tcell.ModShift != 0 {
			a.model.PrevPanel()
		} else {
			a.model.NextPanel()
		}
		return false
	}
	if event.Key == tcell.KeyBacktab {
		a.model.PrevPanel()
		return false
	}

	if inCommand {
		return a.handleCommandInput(event)
	}

	if event.Key != tcell.KeyRune {
		return false
	}
	switch event.Rune {
	case ':':
		a.model.ActivePanel = PanelCommand
		a.model.CommandInput = ""
		a.model.ErrorMessage = ""
	case ' ':
		a.playFrom(0, -1)
	case 'n':
		if a.model.RoundIndex+1 < len(a.model.Rounds) {
			a.playFrom(a.model.RoundIndex+1, 1)
		}
	case 'p':
		if a.model.RoundIndex > 0 {
			a.playFrom(a.model.RoundIndex-1, 1)
		}
	}
	return false
}

// handleCommandInput processes keyboard input for the command panel.
// Returns true if the application should exit.
func (a *App) handleCommandInput(event KeyEvent) bool {
	switch event.Key {
	case tcell.KeyEnter:
		a.executeCommand()

	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(a.model.CommandInput) > 0 {
			a.model.CommandInput = a.model.CommandInput[:len(a.model.CommandInput)-1]
		}

	case tcell.KeyEscape:
		if a.model.CommandInput == "" {
			a.model.ActivePanel = PanelCanvas
		}
		a.model.CommandInput = ""
		a.model.ErrorMessage = ""

	case tcell.KeyRune:
		a.model.CommandInput += string(event.Rune)
	}
	return false
}

// executeCommand parses and executes the current command input.
func (a *App) executeCommand() {
	input := a.model.CommandInput
	if input == "" {
		return
	}
	a.model.CommandInput = ""

	cmd, err := ParseCommand(input)
	if err != nil {
		a.model.ErrorMessage = err.Error()
		a.model.CommandOutput = ""
		return
	}
	a.model.ErrorMessage = ""

	cfg := &a.model.Config
	switch cmd.Type {
	case CommandPlay:
		a.playFrom(0, -1)
		a.model.CommandOutput = fmt.Sprintf("playing %d round(s)", len(a.model.Rounds))

	case CommandRound:
		idx, ok := a.model.RoundIndexOf(cmd.Arg)
		if !ok {
			a.model.ErrorMessage = fmt.Sprintf("round %d not found", cmd.Arg)
			a.model.CommandOutput = ""
			return
		}
		a.playFrom(idx, 1)
		a.model.CommandOutput = fmt.Sprintf("playing round %d", cmd.Arg)

	case CommandLeader:
		a.seq.Stop()
		cfg.LeaderID = topology.NormalizeLeader(types.NodeID(cmd.Arg), cfg.NodeCount)
		a.rebuildLayoutLocked(cfg.LeaderID)
		a.model.CommandOutput = fmt.Sprintf("leader set to node %d", cfg.LeaderID)

	case CommandBranches:
		a.seq.Stop()
		cfg.BranchCount = cmd.Arg
		a.rebuildLayoutLocked(a.leaderLocked())
		a.model.CommandOutput = fmt.Sprintf("%d branch(es), %s", cmd.Arg, topology.ModeFor(cfg.NodeCount, cfg.BranchCount))

	case CommandByzantine:
		a.seq.Stop()
		cfg.ByzantineCount = cmd.Arg
		a.rebuildLayoutLocked(a.leaderLocked())
		a.model.CommandOutput = fmt.Sprintf("%d byzantine node(s)", cmd.Arg)
	}
	a.syncPlaybackLocked()
}

// Package tui renders trace playback, protocol state and the live event log
// in the terminal.
package tui

import (
	"fmt"
	"sort"
	"sync"

	"github.com/salahayoub/hotviz/pkg/storage"
	"github.com/salahayoub/hotviz/pkg/trace"
	"github.com/salahayoub/hotviz/pkg/types"
)

// TraceFetcher defines the interface for retrieving session traces.
// Abstracted as an interface to enable testing with mock implementations
// and to support different sources (trace file, recorded store, engine API).
type TraceFetcher interface {
	// FetchSession retrieves the session configuration.
	FetchSession() (*types.SessionConfig, error)

	// FetchRoundNumbers lists the rounds available, ascending.
	FetchRoundNumbers() ([]int, error)

	// FetchRound retrieves one round.
	FetchRound(number int) (*types.Round, error)

	// IsConnected returns whether the source is reachable.
	IsConnected() bool

	// Reconnect attempts to reach the source again.
	Reconnect() error
}

// StaticFetcher serves an in-memory trace, typically loaded from a file.
type StaticFetcher struct {
	trace   *types.Trace
	byNum   map[int]int
	numbers []int
}

// NewStaticFetcher creates a fetcher over t. Rounds are addressed by their
// round number; rounds without a number are numbered by position from 1.
func NewStaticFetcher(t *types.Trace) *StaticFetcher {
	f := &StaticFetcher{trace: t, byNum: make(map[int]int, len(t.Rounds))}
	for i := range t.Rounds {
		if t.Rounds[i].Number == 0 {
			t.Rounds[i].Number = i + 1
		}
		if _, dup := f.byNum[t.Rounds[i].Number]; dup {
			continue
		}
		f.byNum[t.Rounds[i].Number] = i
		f.numbers = append(f.numbers, t.Rounds[i].Number)
	}
	sort.Ints(f.numbers)
	return f
}

// NewFileFetcher loads a trace file and serves it.
func NewFileFetcher(path string) (*StaticFetcher, error) {
	t, err := trace.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStaticFetcher(t), nil
}

func (f *StaticFetcher) FetchSession() (*types.SessionConfig, error) {
	cfg := f.trace.Config
	return &cfg, nil
}

func (f *StaticFetcher) FetchRoundNumbers() ([]int, error) {
	return append([]int(nil), f.numbers...), nil
}

func (f *StaticFetcher) FetchRound(number int) (*types.Round, error) {
	i, ok := f.byNum[number]
	if !ok {
		return nil, fmt.Errorf("round %d not in trace", number)
	}
	r := f.trace.Rounds[i]
	return &r, nil
}

func (f *StaticFetcher) IsConnected() bool { return true }

func (f *StaticFetcher) Reconnect() error { return nil }

// StoreFetcher reads a recorded session from a BoltStore.
type StoreFetcher struct {
	store   *storage.BoltStore
	session string

	mu        sync.RWMutex
	connected bool
}

// NewStoreFetcher creates a fetcher for session in store.
func NewStoreFetcher(store *storage.BoltStore, session string) *StoreFetcher {
	return &StoreFetcher{store: store, session: session, connected: true}
}

func (f *StoreFetcher) setConnected(ok bool) {
	f.mu.Lock()
	f.connected = ok
	f.mu.Unlock()
}

// FetchSession retrieves the recorded session configuration.
func (f *StoreFetcher) FetchSession() (*types.SessionConfig, error) {
	rec, err := f.store.GetSession(f.session)
	if err != nil {
		f.setConnected(false)
		return nil, err
	}
	f.setConnected(true)
	return &rec.Config, nil
}

// FetchRoundNumbers lists the recorded rounds.
func (f *StoreFetcher) FetchRoundNumbers() ([]int, error) {
	rounds, err := f.store.Rounds(f.session)
	if err != nil {
		return nil, err
	}
	numbers := make([]int, len(rounds))
	for i, r := range rounds {
		numbers[i] = r.Number
	}
	return numbers, nil
}

// FetchRound retrieves one recorded round.
func (f *StoreFetcher) FetchRound(number int) (*types.Round, error) {
	r, err := f.store.GetRound(f.session, number)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// IsConnected reports whether the last session lookup succeeded.
func (f *StoreFetcher) IsConnected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

// Reconnect checks that the session exists.
func (f *StoreFetcher) Reconnect() error {
	_, err := f.FetchSession()
	return err
}

// EventRecorder persists live events. *storage.BoltStore satisfies it.
type EventRecorder interface {
	AppendEvent(session string, ev types.Event) (uint64, error)
}

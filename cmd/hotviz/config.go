package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/salahayoub/hotviz/pkg/anim"
	"github.com/salahayoub/hotviz/pkg/types"
)

const (
	// dbFilename is the name of the BoltDB file inside a store directory.
	dbFilename = "hotviz.db"
	// logFilename is the default log file while the terminal is in use.
	logFilename = "hotviz.log"
)

// FileConfig is the optional YAML file given with --config. Flags set on
// the command line take precedence over its values.
type FileConfig struct {
	types.SessionConfig `yaml:",inline"`

	FPS      int     `yaml:"fps"`
	Step     float64 `yaml:"step"`
	LogLevel string  `yaml:"logLevel"`
}

// LoadFileConfig reads a YAML config file. Unknown keys are rejected.
func LoadFileConfig(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	var fc FileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &fc, nil
}

// sessionFlags registers the topology flags shared by several subcommands.
func sessionFlags(fs *flag.FlagSet, cfg *types.SessionConfig) {
	fs.IntVar(&cfg.NodeCount, "nodes", 7, "Number of nodes")
	fs.IntVar(&cfg.BranchCount, "branches", 2, "Number of branches (groups)")
	leader := (*int)(&cfg.LeaderID)
	fs.IntVar(leader, "leader", 0, "Root (leader) node id")
	fs.IntVar(&cfg.ByzantineCount, "byzantine", 0, "Number of Byzantine nodes")
	fs.IntVar(&cfg.ProposalValue, "value", 0, "Proposed value")
}

// setFlags returns the names of flags given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// mergeSession copies file values into cfg for every flag that was not
// given explicitly.
func mergeSession(set map[string]bool, cfg *types.SessionConfig, fc *FileConfig) {
	if !set["nodes"] && fc.NodeCount != 0 {
		cfg.NodeCount = fc.NodeCount
	}
	if !set["branches"] && fc.BranchCount != 0 {
		cfg.BranchCount = fc.BranchCount
	}
	if !set["leader"] {
		cfg.LeaderID = fc.LeaderID
	}
	if !set["byzantine"] {
		cfg.ByzantineCount = fc.ByzantineCount
	}
	if !set["value"] {
		cfg.ProposalValue = fc.ProposalValue
	}
}

// validateSession appends topology errors to errs.
func validateSession(cfg types.SessionConfig, errs []string) []string {
	if cfg.NodeCount < 1 {
		errs = append(errs, "--nodes must be at least 1")
	}
	if cfg.BranchCount < 1 {
		errs = append(errs, "--branches must be at least 1")
	}
	if cfg.ByzantineCount < 0 {
		errs = append(errs, "--byzantine must not be negative")
	}
	if cfg.LeaderID < 0 {
		errs = append(errs, "--leader must not be negative")
	}
	return errs
}

func joinErrors(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ============================================================================
// view
// ============================================================================

// ViewConfig holds parsed configuration for the view subcommand.
type ViewConfig struct {
	Trace   string // Trace file (--trace)
	Engine  string // Engine base URL (--engine)
	Store   string // Store directory to replay (--store)
	Session string // Session id for --engine and --store (--session)

	Events string // Relay address for live events (--events)
	Record string // Store directory to record live events into (--record)

	FPS      int     // Frame rate (--fps)
	Step     float64 // Unit progress per frame (--step)
	Autoplay bool    // Start playback on load (--autoplay)
	NoColor  bool    // Disable colors (--no-color)

	LogFile  string // Log file (--log-file)
	LogLevel string // Log level (--log-level)
	Config   string // YAML config file (--config)
}

// ParseViewFlags parses the view subcommand flags.
func ParseViewFlags(fs *flag.FlagSet, args []string) (*ViewConfig, error) {
	cfg := &ViewConfig{}

	fs.StringVar(&cfg.Trace, "trace", "", "Trace file to play (YAML or JSON)")
	fs.StringVar(&cfg.Engine, "engine", "", "Protocol engine base URL")
	fs.StringVar(&cfg.Store, "store", "", "Store directory with a recorded session")
	fs.StringVar(&cfg.Session, "session", "", "Session id (with --engine or --store)")
	fs.StringVar(&cfg.Events, "events", "", "Relay address to subscribe to live events")
	fs.StringVar(&cfg.Record, "record", "", "Store directory to record live events into")
	fs.IntVar(&cfg.FPS, "fps", 30, "Frames per second (1-120)")
	fs.Float64Var(&cfg.Step, "step", anim.DefaultStep, "Marker progress per frame")
	fs.BoolVar(&cfg.Autoplay, "autoplay", false, "Start playback once loaded")
	fs.BoolVar(&cfg.NoColor, "no-color", false, "Disable colors")
	fs.StringVar(&cfg.LogFile, "log-file", "", "Log file (defaults to hotviz.log in the store or working directory)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Config, "config", "", "YAML config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.Config != "" {
		fc, err := LoadFileConfig(cfg.Config)
		if err != nil {
			return nil, err
		}
		set := setFlags(fs)
		if !set["fps"] && fc.FPS != 0 {
			cfg.FPS = fc.FPS
		}
		if !set["step"] && fc.Step != 0 {
			cfg.Step = fc.Step
		}
		if !set["log-level"] && fc.LogLevel != "" {
			cfg.LogLevel = fc.LogLevel
		}
	}

	if cfg.LogFile == "" {
		dir := cfg.Record
		if dir == "" {
			dir = cfg.Store
		}
		cfg.LogFile = filepath.Join(dir, logFilename)
	}
	return cfg, nil
}

// Validate checks that exactly one source is given and that playback
// settings are in range.
func (c *ViewConfig) Validate() error {
	var errs []string

	sources := 0
	for _, s := range []string{c.Trace, c.Engine, c.Store} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		errs = append(errs, "exactly one of --trace, --engine or --store is required")
	}
	if (c.Engine != "" || c.Store != "") && c.Session == "" {
		errs = append(errs, "missing required flag: --session")
	}
	if c.Record != "" && c.Session == "" {
		errs = append(errs, "--record requires --session")
	}
	if c.Record != "" && c.Record == c.Store {
		errs = append(errs, "--record and --store must differ")
	}
	if c.FPS < 1 || c.FPS > 120 {
		errs = append(errs, "--fps must be between 1 and 120")
	}
	if c.Step <= 0 || c.Step > 1 {
		errs = append(errs, "--step must be in (0, 1]")
	}
	return joinErrors(errs)
}

// ============================================================================
// serve
// ============================================================================

// ServeConfig holds parsed configuration for the serve subcommand.
type ServeConfig struct {
	Store    string // Store directory (--store)
	Session  string // Default session for /status and /layout (--session)
	HTTPAddr string // HTTP listen address (--http)
	GRPCAddr string // gRPC relay listen address (--grpc)
	LogLevel string // Log level (--log-level)
}

// ParseServeFlags parses the serve subcommand flags.
func ParseServeFlags(fs *flag.FlagSet, args []string) (*ServeConfig, error) {
	cfg := &ServeConfig{}

	fs.StringVar(&cfg.Store, "store", "", "Store directory (required)")
	fs.StringVar(&cfg.Session, "session", "", "Default session id (required)")
	fs.StringVar(&cfg.HTTPAddr, "http", ":8080", "HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc", ":9090", "gRPC event relay listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required fields are present.
func (c *ServeConfig) Validate() error {
	var errs []string
	if c.Store == "" {
		errs = append(errs, "missing required flag: --store")
	}
	if c.Session == "" {
		errs = append(errs, "missing required flag: --session")
	}
	if c.HTTPAddr == "" {
		errs = append(errs, "missing required flag: --http")
	}
	if c.GRPCAddr == "" {
		errs = append(errs, "missing required flag: --grpc")
	}
	return joinErrors(errs)
}

// ============================================================================
// layout
// ============================================================================

// LayoutConfig holds parsed configuration for the layout subcommand.
type LayoutConfig struct {
	Session types.SessionConfig
	JSON    bool   // Print the layout document instead of a table (--json)
	Config  string // YAML config file (--config)
}

// ParseLayoutFlags parses the layout subcommand flags.
func ParseLayoutFlags(fs *flag.FlagSet, args []string) (*LayoutConfig, error) {
	cfg := &LayoutConfig{}
	sessionFlags(fs, &cfg.Session)
	fs.BoolVar(&cfg.JSON, "json", false, "Print JSON instead of a table")
	fs.StringVar(&cfg.Config, "config", "", "YAML config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.Config != "" {
		fc, err := LoadFileConfig(cfg.Config)
		if err != nil {
			return nil, err
		}
		mergeSession(setFlags(fs), &cfg.Session, fc)
	}
	return cfg, nil
}

// Validate checks the topology parameters.
func (c *LayoutConfig) Validate() error {
	return joinErrors(validateSession(c.Session, nil))
}

// ============================================================================
// stats
// ============================================================================

// StatsConfig holds parsed configuration for the stats subcommand.
type StatsConfig struct {
	Session types.SessionConfig
	Actual  int    // Measured message count (--actual)
	Trace   string // Trace file to summarize (--trace)
	Config  string // YAML config file (--config)
}

// ParseStatsFlags parses the stats subcommand flags.
func ParseStatsFlags(fs *flag.FlagSet, args []string) (*StatsConfig, error) {
	cfg := &StatsConfig{}
	sessionFlags(fs, &cfg.Session)
	fs.IntVar(&cfg.Actual, "actual", 0, "Measured message count (defaults to 8n, or the trace total)")
	fs.StringVar(&cfg.Trace, "trace", "", "Trace file to summarize per round")
	fs.StringVar(&cfg.Config, "config", "", "YAML config file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.Config != "" {
		fc, err := LoadFileConfig(cfg.Config)
		if err != nil {
			return nil, err
		}
		mergeSession(setFlags(fs), &cfg.Session, fc)
	}
	return cfg, nil
}

// Validate checks the topology parameters.
func (c *StatsConfig) Validate() error {
	var errs []string
	if c.Trace == "" {
		errs = validateSession(c.Session, errs)
	}
	if c.Actual < 0 {
		errs = append(errs, "--actual must not be negative")
	}
	return joinErrors(errs)
}

// ============================================================================
// import
// ============================================================================

// ImportConfig holds parsed configuration for the import subcommand.
type ImportConfig struct {
	Trace   string // Trace file (--trace)
	Store   string // Store directory (--store)
	Session string // Session id to create (--session)
}

// ParseImportFlags parses the import subcommand flags.
func ParseImportFlags(fs *flag.FlagSet, args []string) (*ImportConfig, error) {
	cfg := &ImportConfig{}
	fs.StringVar(&cfg.Trace, "trace", "", "Trace file (required)")
	fs.StringVar(&cfg.Store, "store", "", "Store directory (required)")
	fs.StringVar(&cfg.Session, "session", "", "Session id (required)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that all required fields are present.
func (c *ImportConfig) Validate() error {
	var errs []string
	if c.Trace == "" {
		errs = append(errs, "missing required flag: --trace")
	}
	if c.Store == "" {
		errs = append(errs, "missing required flag: --store")
	}
	if c.Session == "" {
		errs = append(errs, "missing required flag: --session")
	}
	return joinErrors(errs)
}

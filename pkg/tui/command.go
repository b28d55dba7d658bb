package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CommandType represents the type of command.
type CommandType int

const (
	CommandPlay CommandType = iota
	CommandRound
	CommandLeader
	CommandBranches
	CommandByzantine
)

// String returns the command keyword.
func (c CommandType) String() string {
	switch c {
	case CommandPlay:
		return "play"
	case CommandRound:
		return "round"
	case CommandLeader:
		return "leader"
	case CommandBranches:
		return "branches"
	case CommandByzantine:
		return "byzantine"
	default:
		return "unknown"
	}
}

// Command represents a parsed command with its numeric argument.
type Command struct {
	Type CommandType
	Arg  int // Unused for play
}

// Common parsing errors.
var (
	ErrEmptyCommand    = errors.New("empty command")
	ErrUnknownCommand  = errors.New("unknown command: expected play, round, leader, branches or byzantine")
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

// minArg is the smallest accepted argument per command.
var minArg = map[CommandType]int{
	CommandRound:     0,
	CommandLeader:    0,
	CommandBranches:  1,
	CommandByzantine: 0,
}

// ParseCommand parses a command string and returns a structured Command.
// Supported syntax:
//   - "play" - replay every round from the first
//   - "round N" - play round N
//   - "leader N" - make node N the root
//   - "branches N" - regroup into N branches
//   - "byzantine N" - mark the last N nodes Byzantine
//
// A leading ':' is ignored.
func ParseCommand(input string) (*Command, error) {
	parts := strings.Fields(strings.TrimPrefix(strings.TrimSpace(input), ":"))
	if len(parts) == 0 {
		return nil, ErrEmptyCommand
	}

	var cmdType CommandType
	switch strings.ToLower(parts[0]) {
	case "play":
		return &Command{Type: CommandPlay}, nil
	case "round":
		cmdType = CommandRound
	case "leader":
		cmdType = CommandLeader
	case "branches":
		cmdType = CommandBranches
	case "byzantine":
		cmdType = CommandByzantine
	default:
		return nil, ErrUnknownCommand
	}

	if len(parts) < 2 {
		return nil, fmt.Errorf("%w for %s", ErrMissingArgument, cmdType)
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < minArg[cmdType] {
		return nil, fmt.Errorf("%w for %s: %q", ErrInvalidArgument, cmdType, parts[1])
	}
	return &Command{Type: cmdType, Arg: n}, nil
}

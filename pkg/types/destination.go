package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DestKind distinguishes a literal node destination from the symbolic ones.
type DestKind int

const (
	DestNode DestKind = iota
	DestAll
	DestGroupLeaders
	DestGroupMembers
)

// Symbolic destination spellings accepted on the wire.
const (
	dstAll          = "all"
	dstGroupLeaders = "group_leaders"
	dstGroupMembers = "group_members"
)

// ErrInvalidDestination is returned when a destination is neither a node id
// nor one of the symbolic group names.
var ErrInvalidDestination = errors.New("invalid message destination")

// Destination is the dst field of a Message: a single node id or a symbolic
// group that is expanded by the fan-out resolver.
type Destination struct {
	Kind DestKind
	Node NodeID
}

// Predefined symbolic destinations.
var (
	ToAll          = Destination{Kind: DestAll}
	ToGroupLeaders = Destination{Kind: DestGroupLeaders}
	ToGroupMembers = Destination{Kind: DestGroupMembers}
)

// ToNode returns a literal destination for id.
func ToNode(id NodeID) Destination {
	return Destination{Kind: DestNode, Node: id}
}

// IsSymbolic reports whether d names a group rather than a node.
func (d Destination) IsSymbolic() bool {
	return d.Kind != DestNode
}

// String returns the wire spelling of the destination.
func (d Destination) String() string {
	switch d.Kind {
	case DestAll:
		return dstAll
	case DestGroupLeaders:
		return dstGroupLeaders
	case DestGroupMembers:
		return dstGroupMembers
	default:
		return strconv.Itoa(int(d.Node))
	}
}

// ParseDestination parses "all", "group_leaders", "group_members" (case-insensitive)
// or a decimal node id.
func ParseDestination(s string) (Destination, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case dstAll:
		return ToAll, nil
	case dstGroupLeaders:
		return ToGroupLeaders, nil
	case dstGroupMembers:
		return ToGroupMembers, nil
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return Destination{}, fmt.Errorf("%w: %q", ErrInvalidDestination, s)
	}
	return ToNode(NodeID(id)), nil
}

// MarshalJSON encodes node destinations as numbers and symbolic ones as strings.
func (d Destination) MarshalJSON() ([]byte, error) {
	if d.Kind == DestNode {
		return json.Marshal(int(d.Node))
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (d *Destination) UnmarshalJSON(data []byte) error {
	var id int
	if err := json.Unmarshal(data, &id); err == nil {
		*d = ToNode(NodeID(id))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDestination, string(data))
	}
	parsed, err := ParseDestination(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (d Destination) MarshalYAML() (interface{}, error) {
	if d.Kind == DestNode {
		return int(d.Node), nil
	}
	return d.String(), nil
}

// UnmarshalYAML accepts a scalar node id or group name.
func (d *Destination) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d", ErrInvalidDestination, value.Line)
	}
	parsed, err := ParseDestination(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

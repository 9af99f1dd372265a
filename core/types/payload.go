package types

import "strings"

// MetaValue is a closed tagged-variant value used by classification metadata.
// It exists instead of an open interface{} bag so that classification output
// stays comparable and serializable without reflection.
type MetaValue struct {
	Kind   MetaKind
	Str    string
	Int    int64
	Float  float64
	Bool   bool
}

// MetaKind enumerates the supported MetaValue payloads.
type MetaKind string

const (
	MetaKindString MetaKind = "string"
	MetaKindInt    MetaKind = "int"
	MetaKindFloat  MetaKind = "float"
	MetaKindBool   MetaKind = "bool"
)

// MetaString constructs a string-valued metadata entry.
func MetaString(v string) MetaValue { return MetaValue{Kind: MetaKindString, Str: v} }

// MetaInt constructs an integer-valued metadata entry.
func MetaInt(v int64) MetaValue { return MetaValue{Kind: MetaKindInt, Int: v} }

// MetaFloat constructs a real-valued metadata entry.
func MetaFloat(v float64) MetaValue { return MetaValue{Kind: MetaKindFloat, Float: v} }

// MetaBool constructs a boolean-valued metadata entry.
func MetaBool(v bool) MetaValue { return MetaValue{Kind: MetaKindBool, Bool: v} }

// Equal reports whether two metadata values carry the same kind and payload.
func (m MetaValue) Equal(other MetaValue) bool {
	if m.Kind != other.Kind {
		return false
	}
	switch m.Kind {
	case MetaKindString:
		return m.Str == other.Str
	case MetaKindInt:
		return m.Int == other.Int
	case MetaKindFloat:
		return m.Float == other.Float
	case MetaKindBool:
		return m.Bool == other.Bool
	default:
		return false
	}
}

// Payload is the immutable candidate transaction submitted by a collaborator.
// Equality is value equality over every field, including the ordered account
// list, so callers must not mutate a Payload after construction.
type Payload struct {
	ProgramID        string
	InstructionData  string // hex-encoded opaque instruction bytes
	InstructionCount int
	Accounts         []string
	EstimatedAmount  float64
	Origin           string
}

// Clone returns a deep copy of the payload so stored records never alias a
// caller-owned slice.
func (p Payload) Clone() Payload {
	accounts := make([]string, len(p.Accounts))
	copy(accounts, p.Accounts)
	p.Accounts = accounts
	return p
}

// Equal reports value equality over every field of the payload.
func (p Payload) Equal(other Payload) bool {
	if p.ProgramID != other.ProgramID ||
		p.InstructionData != other.InstructionData ||
		p.InstructionCount != other.InstructionCount ||
		p.EstimatedAmount != other.EstimatedAmount ||
		p.Origin != other.Origin {
		return false
	}
	if len(p.Accounts) != len(other.Accounts) {
		return false
	}
	for i := range p.Accounts {
		if p.Accounts[i] != other.Accounts[i] {
			return false
		}
	}
	return true
}

// InstructionDataTrimmed returns the instruction data with surrounding
// whitespace removed, the form every classification rule matches against.
func (p Payload) InstructionDataTrimmed() string {
	return strings.TrimSpace(p.InstructionData)
}

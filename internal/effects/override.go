package effects

import "strings"

// Override is an explicit user declaration that particular effect properties
// hold, decoupled from the inferred lattice and finer-grained on termination.
// It carries no merge algebra of its own; composing a declaration with
// inferred effects is the annotation processor's responsibility.
type Override struct {
	Consistent         bool
	EffectFree         bool
	NoThrow            bool
	TerminatesGlobally bool
	TerminatesLocally  bool
	NoTaskState        bool
	NoGlobal           bool
}

// Override byte layout, one bit per flag in declaration order. Bit 7 is
// reserved and ignored on decode.
const (
	overrideConsistent = 1 << iota
	overrideEffectFree
	overrideNoThrow
	overrideTerminatesGlobally
	overrideTerminatesLocally
	overrideNoTaskState
	overrideNoGlobal
)

// Any reports whether at least one property is declared, letting callers
// skip applying a no-op override.
func (o Override) Any() bool {
	return o.Consistent || o.EffectFree || o.NoThrow ||
		o.TerminatesGlobally || o.TerminatesLocally ||
		o.NoTaskState || o.NoGlobal
}

// Encode packs the declaration into a single byte for annotation storage.
func (o Override) Encode() uint8 {
	var b uint8

	set := func(v bool, bit uint8) {
		if v {
			b |= bit
		}
	}

	set(o.Consistent, overrideConsistent)
	set(o.EffectFree, overrideEffectFree)
	set(o.NoThrow, overrideNoThrow)
	set(o.TerminatesGlobally, overrideTerminatesGlobally)
	set(o.TerminatesLocally, overrideTerminatesLocally)
	set(o.NoTaskState, overrideNoTaskState)
	set(o.NoGlobal, overrideNoGlobal)

	return b
}

// DecodeOverride is the exact inverse of Encode for the seven flag bits.
// Every byte is valid input; the reserved bit 7 is ignored.
func DecodeOverride(b uint8) Override {
	return Override{
		Consistent:         b&overrideConsistent != 0,
		EffectFree:         b&overrideEffectFree != 0,
		NoThrow:            b&overrideNoThrow != 0,
		TerminatesGlobally: b&overrideTerminatesGlobally != 0,
		TerminatesLocally:  b&overrideTerminatesLocally != 0,
		NoTaskState:        b&overrideNoTaskState != 0,
		NoGlobal:           b&overrideNoGlobal != 0,
	}
}

// String lists the declared properties by name.
func (o Override) String() string {
	if !o.Any() {
		return "none"
	}

	var parts []string

	add := func(v bool, name string) {
		if v {
			parts = append(parts, name)
		}
	}

	add(o.Consistent, "consistent")
	add(o.EffectFree, "effect_free")
	add(o.NoThrow, "nothrow")
	add(o.TerminatesGlobally, "terminates_globally")
	add(o.TerminatesLocally, "terminates_locally")
	add(o.NoTaskState, "notaskstate")
	add(o.NoGlobal, "noglobal")

	return strings.Join(parts, ",")
}

// Package effects implements the effect lattice used by abstract interpretation
// to track the semantic guarantees a method offers. Per-statement assessments are
// merged into a whole-method aggregate that later optimization stages query to
// decide whether a computation may be folded, reordered, or eliminated.
package effects

import (
	"strings"
)

// ConsistencyFlags is a small flag register describing the consistency verdict
// of a computation. The zero value means the computation is guaranteed to
// return equal results for equal inputs, unconditionally. Qualifier bits may
// accumulate; NotConsistent overrides everything once set.
type ConsistencyFlags uint8

const (
	// NotConsistent records a definitive negative verdict. Once set, the
	// qualifier bits below carry no meaning.
	NotConsistent ConsistencyFlags = 1 << iota
	// ConsistentIfNotReturned qualifies consistency on the return value not
	// being a newly allocated mutable object.
	ConsistentIfNotReturned
	// ConsistentIfNoGlobal qualifies consistency on no mutable global state
	// being read.
	ConsistentIfNoGlobal
)

// consistencyMask covers the three meaningful bits of the register.
const consistencyMask = NotConsistent | ConsistentIfNotReturned | ConsistentIfNoGlobal

// IsConsistent reports whether the verdict is unconditional consistency.
func (cf ConsistencyFlags) IsConsistent() bool {
	return cf == 0
}

// Has reports whether all bits in flag are set. Callers testing qualifier
// bits must use this rather than equality, since qualifiers may coexist.
func (cf ConsistencyFlags) Has(flag ConsistencyFlags) bool {
	return cf&flag == flag
}

// String returns the string representation of the consistency register.
func (cf ConsistencyFlags) String() string {
	if cf == 0 {
		return "consistent"
	}

	if cf.Has(NotConsistent) {
		return "inconsistent"
	}

	var parts []string
	if cf.Has(ConsistentIfNotReturned) {
		parts = append(parts, "if-notreturned")
	}

	if cf.Has(ConsistentIfNoGlobal) {
		parts = append(parts, "if-noglobal")
	}

	return "consistent(" + strings.Join(parts, ",") + ")"
}

// mergeConsistency combines two consistency verdicts. Qualifier bits
// accumulate by union, but a definitive NotConsistent verdict on either side
// absorbs the combination: it must not be diluted back into qualifiers.
func mergeConsistency(a, b ConsistencyFlags) ConsistencyFlags {
	if a.Has(NotConsistent) || b.Has(NotConsistent) {
		return NotConsistent
	}

	return (a | b) & consistencyMask
}

// Effects is one effect assessment. It is an immutable value: every
// derivation and merge produces a fresh value, so aggregates may be built
// concurrently without coordination.
//
// All fields are monotone within one aggregation: they start optimistic
// (booleans true, Consistent zero) and may only move toward pessimistic
// values as more code is observed. Construct values via NewEffects, the
// package presets, or the WithX derivation methods; the zero Effects value
// is maximally pessimistic on the booleans and is not a meaningful seed.
type Effects struct {
	// Consistent holds the consistency verdict register.
	Consistent ConsistencyFlags
	// EffectFree reports no externally observable side effects.
	EffectFree bool
	// NoThrow reports the computation is guaranteed not to raise.
	NoThrow bool
	// Terminates reports the computation is guaranteed to terminate.
	Terminates bool
	// NoTaskState reports no access to state private to the calling
	// execution context.
	NoTaskState bool
	// NoGlobal reports no access to mutable global state.
	NoGlobal bool
	// NonOverlayed reports that only non-overridden definitions are
	// transitively called.
	NonOverlayed bool
	// NoInbounds reports the assessment is not tainted by bounds-check
	// elision. It is a transient taint: it participates in merging but is
	// excluded from the persisted encoding and defaults to true.
	NoInbounds bool
}

// NewEffects constructs an assessment from explicit field values.
// NoInbounds takes its optimistic default; use WithNoInbounds to taint it.
func NewEffects(consistent ConsistencyFlags, effectFree, noThrow, terminates, noTaskState, noGlobal, nonOverlayed bool) Effects {
	return Effects{
		Consistent:   consistent & consistencyMask,
		EffectFree:   effectFree,
		NoThrow:      noThrow,
		Terminates:   terminates,
		NoTaskState:  noTaskState,
		NoGlobal:     noGlobal,
		NonOverlayed: nonOverlayed,
		NoInbounds:   true,
	}
}

// Preset assessments used as analysis seeds and fallbacks.
var (
	// Total holds every guarantee: the maximally permissive assessment and
	// the identity element of Merge.
	Total = NewEffects(0, true, true, true, true, true, true)

	// Throws is Total except the computation may raise.
	Throws = NewEffects(0, true, false, true, true, true, true)

	// Unknown is the conservative fallback for code the interpreter cannot
	// assess, retaining only the knowledge that no overlayed definition is
	// reachable.
	Unknown = NewEffects(NotConsistent, false, false, false, false, false, true)

	// Arbitrary holds no guarantee at all.
	Arbitrary = NewEffects(NotConsistent, false, false, false, false, false, false)
)

// WithConsistent returns a copy with the consistency register replaced.
func (e Effects) WithConsistent(cf ConsistencyFlags) Effects {
	e.Consistent = cf & consistencyMask
	return e
}

// WithEffectFree returns a copy with EffectFree replaced.
func (e Effects) WithEffectFree(v bool) Effects {
	e.EffectFree = v
	return e
}

// WithNoThrow returns a copy with NoThrow replaced.
func (e Effects) WithNoThrow(v bool) Effects {
	e.NoThrow = v
	return e
}

// WithTerminates returns a copy with Terminates replaced.
func (e Effects) WithTerminates(v bool) Effects {
	e.Terminates = v
	return e
}

// WithNoTaskState returns a copy with NoTaskState replaced.
func (e Effects) WithNoTaskState(v bool) Effects {
	e.NoTaskState = v
	return e
}

// WithNoGlobal returns a copy with NoGlobal replaced.
func (e Effects) WithNoGlobal(v bool) Effects {
	e.NoGlobal = v
	return e
}

// WithNonOverlayed returns a copy with NonOverlayed replaced.
func (e Effects) WithNonOverlayed(v bool) Effects {
	e.NonOverlayed = v
	return e
}

// WithNoInbounds returns a copy with NoInbounds replaced.
func (e Effects) WithNoInbounds(v bool) Effects {
	e.NoInbounds = v
	return e
}

// Merge combines two assessments into their conservative join: a guarantee
// holds for the combination only if it holds for both sides, and consistency
// follows the register algebra of mergeConsistency. Merge is commutative and
// associative, so aggregates converge regardless of traversal order.
func Merge(a, b Effects) Effects {
	return Effects{
		Consistent:   mergeConsistency(a.Consistent, b.Consistent),
		EffectFree:   a.EffectFree && b.EffectFree,
		NoThrow:      a.NoThrow && b.NoThrow,
		Terminates:   a.Terminates && b.Terminates,
		NoTaskState:  a.NoTaskState && b.NoTaskState,
		NoGlobal:     a.NoGlobal && b.NoGlobal,
		NonOverlayed: a.NonOverlayed && b.NonOverlayed,
		NoInbounds:   a.NoInbounds && b.NoInbounds,
	}
}

// Merge combines the receiver with another assessment. See the package-level
// Merge for the algebra.
func (e Effects) Merge(other Effects) Effects {
	return Merge(e, other)
}

// IsConsistent reports unconditional consistency.
func (e Effects) IsConsistent() bool {
	return e.Consistent.IsConsistent()
}

// IsConsistentIfNotReturned reports whether consistency holds provided the
// return value is not a newly allocated mutable object. The bit is tested by
// mask, independent of any other qualifier.
func (e Effects) IsConsistentIfNotReturned() bool {
	return e.Consistent.Has(ConsistentIfNotReturned)
}

// IsConsistentIfNoGlobal reports whether consistency holds provided no
// mutable global state is read. The bit is tested by mask, independent of
// any other qualifier.
func (e Effects) IsConsistentIfNoGlobal() bool {
	return e.Consistent.Has(ConsistentIfNoGlobal)
}

// IsEffectFree reports absence of externally observable side effects.
func (e Effects) IsEffectFree() bool { return e.EffectFree }

// IsNoThrow reports the no-raise guarantee.
func (e Effects) IsNoThrow() bool { return e.NoThrow }

// IsTerminating reports the termination guarantee.
func (e Effects) IsTerminating() bool { return e.Terminates }

// IsNoTaskState reports task-state independence.
func (e Effects) IsNoTaskState() bool { return e.NoTaskState }

// IsNoGlobal reports global-state independence.
func (e Effects) IsNoGlobal() bool { return e.NoGlobal }

// IsNonOverlayed reports that no overlayed definition is reachable.
func (e Effects) IsNonOverlayed() bool { return e.NonOverlayed }

// IsNoInbounds reports absence of the bounds-check-elision taint.
func (e Effects) IsNoInbounds() bool { return e.NoInbounds }

// IsFoldable reports whether a call may be replaced with its statically
// known result: it must be consistent, effect-free, and terminating.
func (e Effects) IsFoldable() bool {
	return e.IsConsistent() && e.EffectFree && e.Terminates
}

// IsTotal reports whether a call may be replaced or reordered without
// preserving error behavior: foldable and additionally guaranteed not to
// raise. IsTotal strictly implies IsFoldable.
func (e Effects) IsTotal() bool {
	return e.IsFoldable() && e.NoThrow
}

// IsRemovableIfUnused reports whether the computation may be deleted when
// its result is never read. Consistency is not required here since the value
// is never observed, so this may hold when IsFoldable does not.
func (e Effects) IsRemovableIfUnused() bool {
	return e.EffectFree && e.Terminates && e.NoThrow
}

// Subsumes reports whether e is at least as strong an assessment as other on
// every field: every guarantee other offers, e offers too, and e's
// consistency qualifiers are a subset of other's. Callers use this to prefer
// a cached aggregate over a freshly inferred one.
func (e Effects) Subsumes(other Effects) bool {
	// Any verdict subsumes a definitive negative one; otherwise e must carry
	// no negative verdict and no qualifier other does not already carry.
	if !other.Consistent.Has(NotConsistent) {
		if e.Consistent.Has(NotConsistent) || e.Consistent&^other.Consistent != 0 {
			return false
		}
	}

	return (e.EffectFree || !other.EffectFree) &&
		(e.NoThrow || !other.NoThrow) &&
		(e.Terminates || !other.Terminates) &&
		(e.NoTaskState || !other.NoTaskState) &&
		(e.NoGlobal || !other.NoGlobal) &&
		(e.NonOverlayed || !other.NonOverlayed) &&
		(e.NoInbounds || !other.NoInbounds)
}

// String returns a compact rendering, one signed letter per property:
// c (consistency; "?c" when only conditionally consistent),
// e (effect-free), n (nothrow), t (terminates), s (no task state),
// m (no global mutation), u (non-overlayed), i (no inbounds taint).
func (e Effects) String() string {
	var sb strings.Builder

	switch {
	case e.IsConsistent():
		sb.WriteString("+c")
	case e.Consistent.Has(NotConsistent):
		sb.WriteString("-c")
	default:
		sb.WriteString("?c")
	}

	appendFlag := func(set bool, letter string) {
		if set {
			sb.WriteString(",+")
		} else {
			sb.WriteString(",-")
		}

		sb.WriteString(letter)
	}

	appendFlag(e.EffectFree, "e")
	appendFlag(e.NoThrow, "n")
	appendFlag(e.Terminates, "t")
	appendFlag(e.NoTaskState, "s")
	appendFlag(e.NoGlobal, "m")
	appendFlag(e.NonOverlayed, "u")
	appendFlag(e.NoInbounds, "i")

	return sb.String()
}

// Package effects tests the effect lattice: merge algebra, derived
// predicates, and both wire codecs.
package effects

import (
	"math/rand"
	"testing"
)

// allEncodable enumerates every value reachable through the persisted wire
// format: all 2^9 combinations of the nine encoded bits.
func allEncodable() []Effects {
	values := make([]Effects, 0, 1<<9)
	for word := uint32(0); word < 1<<9; word++ {
		values = append(values, DecodeEffects(word))
	}

	return values
}

// TestConsistencyFlags tests the flag register queries and rendering.
func TestConsistencyFlags(t *testing.T) {
	tests := []struct {
		flags      ConsistencyFlags
		consistent bool
		expected   string
	}{
		{0, true, "consistent"},
		{NotConsistent, false, "inconsistent"},
		{ConsistentIfNotReturned, false, "consistent(if-notreturned)"},
		{ConsistentIfNoGlobal, false, "consistent(if-noglobal)"},
		{ConsistentIfNotReturned | ConsistentIfNoGlobal, false, "consistent(if-notreturned,if-noglobal)"},
	}

	for _, test := range tests {
		if got := test.flags.IsConsistent(); got != test.consistent {
			t.Errorf("ConsistencyFlags(%d).IsConsistent() = %v, expected %v", test.flags, got, test.consistent)
		}

		if got := test.flags.String(); got != test.expected {
			t.Errorf("ConsistencyFlags(%d).String() = %q, expected %q", test.flags, got, test.expected)
		}
	}
}

// TestMergeCommutative tests merge commutativity over the full encodable space.
func TestMergeCommutative(t *testing.T) {
	values := allEncodable()
	for _, a := range values {
		for _, b := range values {
			if Merge(a, b) != Merge(b, a) {
				t.Fatalf("Merge not commutative for %v and %v", a, b)
			}
		}
	}
}

// TestMergeAssociative tests merge associativity over representative triples.
func TestMergeAssociative(t *testing.T) {
	values := []Effects{
		Total,
		Throws,
		Unknown,
		Arbitrary,
		Total.WithConsistent(ConsistentIfNotReturned),
		Total.WithConsistent(ConsistentIfNoGlobal),
		Total.WithConsistent(ConsistentIfNotReturned | ConsistentIfNoGlobal),
		Total.WithConsistent(NotConsistent),
		Total.WithEffectFree(false),
		Total.WithTerminates(false),
		Total.WithNoGlobal(false).WithNoTaskState(false),
		Total.WithNonOverlayed(false).WithNoInbounds(false),
	}

	for _, a := range values {
		for _, b := range values {
			for _, c := range values {
				left := Merge(Merge(a, b), c)
				right := Merge(a, Merge(b, c))

				if left != right {
					t.Fatalf("Merge not associative for %v, %v, %v: %v != %v", a, b, c, left, right)
				}
			}
		}
	}
}

// wellFormed reports whether the consistency register is canonical: analysis
// never pairs the definitive negative verdict with qualifier bits, and merge
// normalizes any such decoded word down to plain NotConsistent.
func wellFormed(e Effects) bool {
	return !e.Consistent.Has(NotConsistent) || e.Consistent == NotConsistent
}

// TestMergeIdentity tests that Total is a two-sided identity for merge over
// every well-formed value.
func TestMergeIdentity(t *testing.T) {
	for _, v := range allEncodable() {
		if !wellFormed(v) {
			continue
		}

		if Merge(Total, v) != v {
			t.Errorf("Merge(Total, %v) != %v", v, v)
		}

		if Merge(v, Total) != v {
			t.Errorf("Merge(%v, Total) != %v", v, v)
		}
	}
}

// TestMergeIdempotent tests that merging a well-formed value with itself is
// a no-op.
func TestMergeIdempotent(t *testing.T) {
	for _, v := range allEncodable() {
		if !wellFormed(v) {
			continue
		}

		if Merge(v, v) != v {
			t.Errorf("Merge(%v, %v) != %v", v, v, v)
		}
	}
}

// TestMergeNormalizesConsistency tests that a decoded word pairing the
// negative verdict with qualifier bits collapses to plain NotConsistent.
func TestMergeNormalizesConsistency(t *testing.T) {
	odd := DecodeEffects(uint32(NotConsistent | ConsistentIfNoGlobal))
	if got := Merge(odd, Total).Consistent; got != NotConsistent {
		t.Errorf("merged consistency = %v, expected plain NotConsistent", got)
	}
}

// TestMergeTotalWithThrows tests the predicate pattern of the Total/Throws join.
func TestMergeTotalWithThrows(t *testing.T) {
	merged := Merge(Total, Throws)

	if merged.NoThrow {
		t.Error("Total merged with Throws should not be nothrow")
	}

	if !merged.EffectFree || !merged.Terminates || !merged.NoTaskState ||
		!merged.NoGlobal || !merged.NonOverlayed || !merged.NoInbounds {
		t.Errorf("Total merged with Throws lost an unrelated guarantee: %v", merged)
	}

	if !merged.IsConsistent() {
		t.Error("Total merged with Throws should remain consistent")
	}

	if !merged.IsFoldable() {
		t.Error("Total merged with Throws should be foldable")
	}

	if merged.IsTotal() {
		t.Error("Total merged with Throws should not be total")
	}

	if merged.IsRemovableIfUnused() {
		t.Error("Total merged with Throws should not be removable when unused")
	}
}

// TestMergeNotConsistentAbsorbs tests that a definitive negative consistency
// verdict absorbs qualifier bits instead of being diluted by them.
func TestMergeNotConsistentAbsorbs(t *testing.T) {
	inconsistent := Total.WithConsistent(NotConsistent)
	qualified := Total.WithConsistent(ConsistentIfNotReturned | ConsistentIfNoGlobal)

	for _, other := range []Effects{Total, Throws, Unknown, Arbitrary, qualified} {
		if got := Merge(inconsistent, other).Consistent; got != NotConsistent {
			t.Errorf("Merge(inconsistent, %v).Consistent = %v, expected NotConsistent", other, got)
		}

		if got := Merge(other, inconsistent).Consistent; got != NotConsistent {
			t.Errorf("Merge(%v, inconsistent).Consistent = %v, expected NotConsistent", other, got)
		}
	}
}

// TestMergeQualifiersAccumulate tests that distinct qualifiers coexist.
func TestMergeQualifiersAccumulate(t *testing.T) {
	a := Total.WithConsistent(ConsistentIfNotReturned)
	b := Total.WithConsistent(ConsistentIfNoGlobal)
	merged := Merge(a, b)

	expected := ConsistentIfNotReturned | ConsistentIfNoGlobal
	if merged.Consistent != expected {
		t.Errorf("merged consistency = %v, expected %v", merged.Consistent, expected)
	}
}

// TestConditionalConsistencyIndependent tests that the two conditional
// checks report per-bit, independent of each other.
func TestConditionalConsistencyIndependent(t *testing.T) {
	both := Total.WithConsistent(ConsistentIfNotReturned | ConsistentIfNoGlobal)

	if !both.IsConsistentIfNotReturned() {
		t.Error("both-qualifier value should report if-notreturned consistency")
	}

	if !both.IsConsistentIfNoGlobal() {
		t.Error("both-qualifier value should report if-noglobal consistency")
	}

	if both.IsConsistent() {
		t.Error("qualified value should not report unconditional consistency")
	}

	onlyReturned := Total.WithConsistent(ConsistentIfNotReturned)
	if onlyReturned.IsConsistentIfNoGlobal() {
		t.Error("if-notreturned value should not report if-noglobal consistency")
	}
}

// TestPredicateLayering tests the implication structure of the predicates.
func TestPredicateLayering(t *testing.T) {
	for _, v := range allEncodable() {
		if v.IsTotal() && !v.IsFoldable() {
			t.Fatalf("IsTotal without IsFoldable for %v", v)
		}
	}

	// Removability is independent of consistency.
	removableOnly := Total.WithConsistent(NotConsistent)
	if removableOnly.IsFoldable() {
		t.Error("inconsistent value should not be foldable")
	}

	if !removableOnly.IsRemovableIfUnused() {
		t.Error("inconsistent but effect-free/terminating/nothrow value should be removable when unused")
	}
}

// TestEffectsRoundTrip tests the codec over every reachable combination.
func TestEffectsRoundTrip(t *testing.T) {
	for word := uint32(0); word < 1<<9; word++ {
		decoded := DecodeEffects(word)

		if !decoded.NoInbounds {
			t.Fatalf("DecodeEffects(%#x).NoInbounds = false, expected true", word)
		}

		if got := decoded.Encode(); got != word {
			t.Fatalf("Encode(DecodeEffects(%#x)) = %#x", word, got)
		}
	}
}

// TestEncodeDropsInboundsTaint tests that the taint never reaches the wire.
func TestEncodeDropsInboundsTaint(t *testing.T) {
	tainted := Total.WithNoInbounds(false)
	clean := Total

	if tainted.Encode() != clean.Encode() {
		t.Error("NoInbounds should not participate in the encoded word")
	}

	if !DecodeEffects(tainted.Encode()).NoInbounds {
		t.Error("decoded value should reset NoInbounds to its optimistic default")
	}
}

// TestDecodeIgnoresHighBits tests that decode is total over all 32 bits.
func TestDecodeIgnoresHighBits(t *testing.T) {
	word := Throws.Encode()
	if DecodeEffects(word|0xfffffe00) != DecodeEffects(word) {
		t.Error("bits beyond the layout should be ignored")
	}
}

// TestNewEffectsDefaults tests the constructor's NoInbounds default.
func TestNewEffectsDefaults(t *testing.T) {
	e := NewEffects(NotConsistent, false, false, false, false, false, false)
	if !e.NoInbounds {
		t.Error("NewEffects should default NoInbounds to true")
	}

	if e != Arbitrary {
		t.Errorf("fully pessimistic construction = %v, expected Arbitrary", e)
	}
}

// TestPresets tests the published preset values.
func TestPresets(t *testing.T) {
	if !Total.IsTotal() || !Total.IsFoldable() || !Total.IsRemovableIfUnused() {
		t.Error("Total should satisfy every layered predicate")
	}

	if Throws.IsNoThrow() {
		t.Error("Throws should not guarantee nothrow")
	}

	if !Throws.IsFoldable() || Throws.IsTotal() {
		t.Error("Throws should be foldable but not total")
	}

	if !Unknown.IsNonOverlayed() {
		t.Error("Unknown should retain the non-overlayed guarantee")
	}

	if Arbitrary.IsNonOverlayed() {
		t.Error("Arbitrary should hold no guarantee")
	}

	if Unknown.IsFoldable() || Unknown.IsRemovableIfUnused() {
		t.Error("Unknown should license no optimization")
	}
}

// TestWithDerivation tests the single-field derivation methods.
func TestWithDerivation(t *testing.T) {
	base := Total

	derived := base.WithNoThrow(false)
	if derived.NoThrow {
		t.Error("WithNoThrow(false) should clear the field")
	}

	if derived.WithNoThrow(true) != base {
		t.Error("derivation should leave every other field untouched")
	}

	if base != Total {
		t.Error("derivation must not mutate the base value")
	}
}

// TestSubsumes tests the partial-order comparison.
func TestSubsumes(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Effects
		expected bool
	}{
		{"total over throws", Total, Throws, true},
		{"throws over total", Throws, Total, false},
		{"total over unknown", Total, Unknown, true},
		{"anything over arbitrary", Throws, Arbitrary, true},
		{"reflexive", Throws, Throws, true},
		{"unqualified over qualified", Total, Total.WithConsistent(ConsistentIfNoGlobal), true},
		{"qualified over unqualified", Total.WithConsistent(ConsistentIfNoGlobal), Total, false},
		{"fewer qualifiers over more", Total.WithConsistent(ConsistentIfNoGlobal), Total.WithConsistent(ConsistentIfNoGlobal | ConsistentIfNotReturned), true},
		{"disjoint qualifiers", Total.WithConsistent(ConsistentIfNoGlobal), Total.WithConsistent(ConsistentIfNotReturned), false},
	}

	for _, test := range tests {
		if got := test.a.Subsumes(test.b); got != test.expected {
			t.Errorf("%s: Subsumes = %v, expected %v", test.name, got, test.expected)
		}
	}

	// Merging can only weaken: the inputs always subsume their join.
	values := allEncodable()
	for i := 0; i < 1000; i++ {
		a := values[rand.Intn(len(values))]
		b := values[rand.Intn(len(values))]
		merged := Merge(a, b)

		if !a.Subsumes(merged) || !b.Subsumes(merged) {
			t.Fatalf("merge inputs %v, %v do not subsume join %v", a, b, merged)
		}
	}
}

// TestEffectsString tests the compact rendering.
func TestEffectsString(t *testing.T) {
	tests := []struct {
		effects  Effects
		expected string
	}{
		{Total, "+c,+e,+n,+t,+s,+m,+u,+i"},
		{Throws, "+c,+e,-n,+t,+s,+m,+u,+i"},
		{Unknown, "-c,-e,-n,-t,-s,-m,+u,+i"},
		{Arbitrary, "-c,-e,-n,-t,-s,-m,-u,+i"},
		{Total.WithConsistent(ConsistentIfNoGlobal), "?c,+e,+n,+t,+s,+m,+u,+i"},
	}

	for _, test := range tests {
		if got := test.effects.String(); got != test.expected {
			t.Errorf("String() = %q, expected %q", got, test.expected)
		}
	}
}

// BenchmarkMerge benchmarks the full-struct merge operator.
func BenchmarkMerge(b *testing.B) {
	values := allEncodable()
	acc := Total

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		acc = Merge(acc, values[i%len(values)])
	}

	_ = acc
}

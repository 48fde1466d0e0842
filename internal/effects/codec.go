package effects

// Wire layout of an encoded Effects word. Nine bits are persisted; the
// NoInbounds taint is deliberately excluded since it is transient and only
// meaningful before an aggregate is finalized.
const (
	shiftConsistent   = 0 // 3 bits
	shiftEffectFree   = 3
	shiftNoThrow      = 4
	shiftTerminates   = 5
	shiftNoTaskState  = 6
	shiftNoGlobal     = 7
	shiftNonOverlayed = 8
)

// Encode packs the assessment into a 32-bit word at fixed bit offsets for
// storage in cached method metadata. NoInbounds is not persisted.
func (e Effects) Encode() uint32 {
	word := uint32(e.Consistent&consistencyMask) << shiftConsistent
	word |= boolBit(e.EffectFree) << shiftEffectFree
	word |= boolBit(e.NoThrow) << shiftNoThrow
	word |= boolBit(e.Terminates) << shiftTerminates
	word |= boolBit(e.NoTaskState) << shiftNoTaskState
	word |= boolBit(e.NoGlobal) << shiftNoGlobal
	word |= boolBit(e.NonOverlayed) << shiftNonOverlayed

	return word
}

// DecodeEffects is the exact inverse of Encode for the nine persisted bits.
// Every word is valid input: any 3-bit consistency value is a legal flag
// combination, and bits beyond the layout are ignored. NoInbounds always
// comes back at its optimistic default.
func DecodeEffects(word uint32) Effects {
	return Effects{
		Consistent:   ConsistencyFlags(word>>shiftConsistent) & consistencyMask,
		EffectFree:   word>>shiftEffectFree&1 != 0,
		NoThrow:      word>>shiftNoThrow&1 != 0,
		Terminates:   word>>shiftTerminates&1 != 0,
		NoTaskState:  word>>shiftNoTaskState&1 != 0,
		NoGlobal:     word>>shiftNoGlobal&1 != 0,
		NonOverlayed: word>>shiftNonOverlayed&1 != 0,
		NoInbounds:   true,
	}
}

func boolBit(v bool) uint32 {
	if v {
		return 1
	}

	return 0
}

package idgen

import (
	"fmt"
	"strings"
)

// orderKeyAlphabet is the restricted, lexicographically ordered digit set
// order keys are built from: a base36 alphabet used as a fractional-indexing
// digit set rather than a big.Int encoding target.
const orderKeyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const orderKeyBase = len(orderKeyAlphabet)

// maxOrderKeyLen bounds pathological inputs (e.g. two keys that share an
// enormous common prefix); exceeding it is treated as a fatal error for the
// caller rather than looping forever.
const maxOrderKeyLen = 256

func digitIndex(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	default:
		return -1
	}
}

// KeyBetween returns an order key strictly between before and after. Either
// bound may be nil, meaning open-ended (no lower / no upper bound
// respectively). Each call takes the midpoint digit at the first position
// with room, so repeated insertion against the same neighbor never collides,
// but it adds one character about every five insertions: key length grows
// linearly, not logarithmically, in the number of such insertions.
func KeyBetween(before, after *string) (string, error) {
	lo := ""
	if before != nil {
		lo = *before
	}
	hiOpen := after == nil
	hi := ""
	if after != nil {
		hi = *after
	}

	if !hiOpen && lo >= hi {
		return "", fmt.Errorf("idgen: order key bounds out of order: %q >= %q", lo, hi)
	}
	for _, c := range []byte(lo) {
		if digitIndex(c) < 0 {
			return "", fmt.Errorf("idgen: invalid order key character %q in %q", c, lo)
		}
	}
	for _, c := range []byte(hi) {
		if digitIndex(c) < 0 {
			return "", fmt.Errorf("idgen: invalid order key character %q in %q", c, hi)
		}
	}

	// hiBound tracks whether hi still constrains the digit at the current
	// position. It starts true whenever hi is closed, and drops to false
	// the moment an emitted digit falls strictly below hi's digit at that
	// position: every completion from here on already sorts below hi
	// regardless of hi's remaining digits, so hi stops applying.
	hiBound := !hiOpen

	var sb strings.Builder
	for i := 0; ; i++ {
		if i >= maxOrderKeyLen {
			return "", fmt.Errorf("idgen: could not derive an order key between %q and %q within %d characters", lo, hi, maxOrderKeyLen)
		}

		loDigit := 0
		if i < len(lo) {
			loDigit = digitIndex(lo[i])
		}

		hiDigit := orderKeyBase // sentinel: "one past the last digit", i.e. unbounded above
		if hiBound {
			if i < len(hi) {
				hiDigit = digitIndex(hi[i])
			} else {
				// hi ended before this position while still tied with the
				// digits emitted so far. Since lo < hi, this happens only
				// when hi is lo followed by '0' digits (e.g. "a" and "a0"),
				// which leaves no key strictly between them.
				return "", fmt.Errorf("idgen: order key bounds collided while deriving a key between %q and %q", lo, hi)
			}
		}

		if hiDigit-loDigit >= 2 {
			mid := loDigit + (hiDigit-loDigit)/2
			sb.WriteByte(orderKeyAlphabet[mid])
			return sb.String(), nil
		}

		// Digits equal, or adjacent with hi unbounded: emit lo's digit at
		// this position and recurse one level deeper to find room to be
		// strictly greater than lo while staying below hi. If hi's digit
		// was strictly greater than lo's (the adjacent case), hi no longer
		// bounds subsequent positions.
		sb.WriteByte(orderKeyAlphabet[loDigit])
		if hiBound && hiDigit != loDigit {
			hiBound = false
		}
	}
}

// FirstKey returns an order key suitable for the sole/initial item in a
// sibling list.
func FirstKey() string {
	k, _ := KeyBetween(nil, nil)
	return k
}

// CompareOrderKeys reports the lexicographic ordering of two order keys,
// following the same semantics as strings.Compare.
func CompareOrderKeys(a, b string) int {
	return strings.Compare(a, b)
}

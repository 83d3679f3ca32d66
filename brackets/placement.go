package brackets

import "math"

// eliminationRounds returns ceil(log2(n)) for n >= 2.
func eliminationRounds(n int) int {
	return int(math.Ceil(math.Log2(float64(n))))
}

// seedPositions returns, for a full bracket of the given power-of-two size,
// the seed occupying each bracket position under standard placement: seeds 1
// and 2 land in opposite halves and meet no earlier than the final. Position
// p (0-based) holds 1-based seed seedPositions(size)[p].
func seedPositions(size int) []int {
	positions := []int{1}
	for len(positions) < size {
		mirror := len(positions)*2 + 1
		next := make([]int, 0, len(positions)*2)
		for _, s := range positions {
			next = append(next, s, mirror-s)
		}
		positions = next
	}
	return positions
}

// slotOrderPositions places n entrants into a bracket of the given size in
// list order, granting the byes (size-n of them) to the front of the list:
// each of the first size-n entrants is paired against an empty position.
// The returned slice holds the 1-based entrant index per position, 0 for a
// bye position.
func slotOrderPositions(size, n int) []int {
	numByes := size - n
	positions := make([]int, 0, size)
	entrant := 1
	for i := 0; i < numByes; i++ {
		positions = append(positions, entrant, 0)
		entrant++
	}
	for entrant <= n {
		positions = append(positions, entrant)
		entrant++
	}
	for len(positions) < size {
		positions = append(positions, 0)
	}
	return positions
}

// bracketPositions resolves the placement method to a per-position entrant
// index (1-based, 0 = bye).
func bracketPositions(size, n int, ranked bool) []int {
	if !ranked {
		return slotOrderPositions(size, n)
	}
	positions := seedPositions(size)
	out := make([]int, size)
	for p, seed := range positions {
		if seed <= n {
			out[p] = seed
		}
	}
	return out
}

package schedule

// Rand is the randomness Shuffle draws from. *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Shuffle randomly swaps slot contents between mutually compatible nearby
// slots. For each slot in time order the candidates are the following slots
// that still lie in the current occupant's working period (all following
// slots when the current slot is empty), restricted to those whose own
// occupant would accept the current slot's time. One of {self} ∪ candidates
// is picked uniformly; picking self leaves the slot unchanged.
//
// Shuffle never moves a task outside its working period.
func (s *Schedule[T, P]) Shuffle(rng Rand) {
	items := s.Slots.items
	var cands []int
	for i := range items {
		at := items[i].At
		wp, bounded := s.window(items[i].TaskID)

		cands = cands[:0]
		for j := i + 1; j < len(items); j++ {
			if bounded && !wp.Contains(items[j].At) {
				break
			}
			if other, ok := s.window(items[j].TaskID); ok && !other.Contains(at) {
				continue
			}
			cands = append(cands, j)
		}
		if len(cands) == 0 {
			continue
		}
		k := rng.Intn(len(cands) + 1)
		if k == 0 {
			continue
		}
		j := cands[k-1]
		items[i].TaskID, items[j].TaskID = items[j].TaskID, items[i].TaskID
	}
}

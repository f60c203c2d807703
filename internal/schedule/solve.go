package schedule

import (
	"cmp"
	"slices"
)

// Schedule recomputes slot occupancy for the current task table and slot keys
// and returns the IDs of tasks left unsatisfied, sorted. It never fails;
// infeasibility is reported through the returned IDs.
func (s *Schedule[T, P]) Schedule() []string {
	// need[id] is the outstanding requirement: slots still wanted.
	need := make(map[string]int, len(s.Tasks))
	for id, t := range s.Tasks {
		need[id] = s.Required(t)
	}

	s.reclaim(need)
	s.seed(need)
	s.preempt(need)

	out := make([]string, 0)
	for id, n := range need {
		if n > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// reclaim keeps, in time order, at most the required number of valid slots per
// task and frees the rest.
func (s *Schedule[T, P]) reclaim(need map[string]int) {
	for i := range s.Slots.items {
		sl := &s.Slots.items[i]
		if sl.Empty() {
			continue
		}
		wp, ok := s.window(sl.TaskID)
		if !ok || !wp.Contains(sl.At) || need[sl.TaskID] <= 0 {
			sl.TaskID = ""
			continue
		}
		need[sl.TaskID]--
	}
}

// seed lets each task take empty slots in its own window, narrowest window
// first so long-lived tasks don't exhaust slots a time-constrained task needs.
func (s *Schedule[T, P]) seed(need map[string]int) {
	order := make([]string, 0, len(s.Tasks))
	for id := range s.Tasks {
		order = append(order, id)
	}
	slices.SortFunc(order, func(a, b string) int {
		ta, tb := s.Tasks[a], s.Tasks[b]
		if c := cmp.Compare(ta.WorkingPeriod().Len(), tb.WorkingPeriod().Len()); c != 0 {
			return c
		}
		if c := cmp.Compare(tb.Priority(), ta.Priority()); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	for _, id := range order {
		s.fillEmpty(id, need)
	}
}

// fillEmpty assigns empty slots in the task's window until its need is met.
// It reports whether any slot was claimed.
func (s *Schedule[T, P]) fillEmpty(id string, need map[string]int) bool {
	if need[id] <= 0 {
		return false
	}
	claimed := false
	lo, hi := s.Slots.Range(s.Tasks[id].WorkingPeriod())
	for i := lo; i < hi && need[id] > 0; i++ {
		if s.Slots.items[i].Empty() {
			s.Slots.items[i].TaskID = id
			need[id]--
			claimed = true
		}
	}
	return claimed
}

// preempt runs eviction passes until a pass changes nothing. Every change
// either fills an empty slot or hands a slot to a strictly higher priority
// task, so the loop terminates.
func (s *Schedule[T, P]) preempt(need map[string]int) {
	type candidate struct {
		idx  int
		prio P
	}
	var cands []candidate

	for {
		progress := false

		pending := make([]string, 0)
		for id, n := range need {
			if n > 0 {
				pending = append(pending, id)
			}
		}
		slices.SortFunc(pending, func(a, b string) int {
			if c := cmp.Compare(s.Tasks[b].Priority(), s.Tasks[a].Priority()); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})

		for _, id := range pending {
			if s.fillEmpty(id, need) {
				progress = true
			}
			if need[id] <= 0 {
				continue
			}

			task := s.Tasks[id]
			prio := task.Priority()
			lo, hi := s.Slots.Range(task.WorkingPeriod())
			cands = cands[:0]
			for i := lo; i < hi; i++ {
				occ, ok := s.Tasks[s.Slots.items[i].TaskID]
				if !ok {
					continue
				}
				if p := occ.Priority(); p < prio {
					cands = append(cands, candidate{idx: i, prio: p})
				}
			}
			// Weakest occupant first; earlier slot on ties.
			slices.SortStableFunc(cands, func(a, b candidate) int { return cmp.Compare(a.prio, b.prio) })

			for _, c := range cands {
				victim := s.Slots.items[c.idx].TaskID
				need[victim]++
				need[id]--
				s.Slots.items[c.idx].TaskID = id
				progress = true
				if need[id] == 0 {
					break
				}
			}
		}

		if !progress {
			return
		}
	}
}

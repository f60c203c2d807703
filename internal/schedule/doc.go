// Package schedule is the constraint-respecting slot allocator.
//
// A Schedule owns a task table (ID -> task) and an ordered slot map
// (slot start -> task ID or empty). Slots hold IDs only; the task table is the
// single owner of task values. A slot naming a task that no longer exists is
// tolerated and is cleared by the next call to Schedule.
//
// # Invariants
//
// After Schedule, and after any number of Shuffle calls:
//   - every occupied slot lies inside its occupant's working period
//   - no task occupies more slots than DividedInto(task, TimesliceLength)
//
// # Allocation
//
// Schedule recomputes occupancy in three phases:
//
//  1. Reclaim: free slots held by unknown tasks, by tasks whose working period no
//     longer covers the slot, and surplus slots of tasks that already have enough.
//  2. Seed: tasks claim empty slots inside their own window in time order,
//     narrowest window first (ties: higher priority, then lower ID).
//  3. Preempt: repeated passes over unsatisfied tasks (higher priority first,
//     ties by ID). A task first claims any empty slot in its window, then evicts
//     occupants of strictly lower priority, weakest first (ties: earlier slot).
//     Evicted tasks become unsatisfied and get their turn on the next pass. The
//     loop ends after a pass that changes nothing.
//
// Equal priorities never preempt each other. The result is a heuristic, not a
// provably optimal assignment.
package schedule

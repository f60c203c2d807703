package eventbus

const (
	// TypePlanSolved follows every scheduling pass. Data is SolvedEvent.
	TypePlanSolved = "plan.solved"
	// TypePlanOptimized follows a committed optimization run. Data is OptimizedEvent.
	TypePlanOptimized = "plan.optimized"
)

type SolvedEvent struct {
	Unsatisfied []string `json:"unsatisfied"`
	Slots       int      `json:"slots"`
	Tasks       int      `json:"tasks"`
}

type OptimizedEvent struct {
	Strategy   string  `json:"strategy"`
	Score      float64 `json:"score"`
	Iterations int     `json:"iterations"`
}

package tree

import (
	"sort"
	"strings"
)

// Scoring heuristics for candidate ordering. Reconnaissance is pushed
// early, vulnerability follow-ups once recon has completed, and
// high-risk actions are deferred. The ordering is a heuristic, not an
// optimum, and must stay exactly reproducible for a given tree state.
const (
	reconBoost        = 3
	vulnFollowupBoost = 2
	highRiskPenalty   = 2

	// Recon boost applies only while the tree has fewer completed
	// nodes than this.
	earlyStageThreshold = 5
)

var reconKeywords = []string{"scan", "recon", "enumerat", "discover"}

// PrioritizeTasks orders candidates by descending score. The sort is
// stable: ties keep their input order.
func (t *TaskTree) PrioritizeTasks(tasks []*TaskNode) []*TaskNode {
	completed := t.CompletedCount()
	reconDone := t.hasCompletedRecon()

	ordered := make([]*TaskNode, len(tasks))
	copy(ordered, tasks)

	sort.SliceStable(ordered, func(i, j int) bool {
		return t.taskScore(ordered[i], completed, reconDone) > t.taskScore(ordered[j], completed, reconDone)
	})
	return ordered
}

func (t *TaskTree) taskScore(task *TaskNode, completedCount int, reconDone bool) int {
	score := task.Priority

	desc := strings.ToLower(task.Description)
	if strings.Contains(desc, "recon") || strings.Contains(desc, "scan") {
		if completedCount < earlyStageThreshold {
			score += reconBoost
		}
	}
	if strings.Contains(desc, "vuln") && reconDone {
		score += vulnFollowupBoost
	}
	if task.RiskLevel == RiskHigh {
		score -= highRiskPenalty
	}

	return score
}

// hasCompletedRecon reports whether any completed node looks like
// basic reconnaissance.
func (t *TaskTree) hasCompletedRecon() bool {
	for _, node := range t.Nodes {
		if node.Status != StatusCompleted {
			continue
		}
		desc := strings.ToLower(node.Description)
		for _, keyword := range reconKeywords {
			if strings.Contains(desc, keyword) {
				return true
			}
		}
	}
	return false
}

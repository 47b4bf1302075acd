// Package reasoning turns tree state into oracle-facing requests and
// recovers structured decisions from oracle free text. Oracle replies
// are not guaranteed to be well-formed JSON; the recovery pipeline in
// extract.go absorbs that, so nothing in this package returns a parse
// error to the caller.
package reasoning

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexInt decodes from a JSON number or a numeric string. Oracles are
// told to reply with integers but quoting happens often enough.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		// Tolerate floats ("7.0") and anything else non-numeric.
		if fv, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			*f = FlexInt(int(fv))
			return nil
		}
		*f = 0
		return nil
	}
	*f = FlexInt(v)
	return nil
}

// Int returns the plain value.
func (f FlexInt) Int() int { return int(f) }

// FlexStrings decodes from a JSON string or an array of strings. The
// update schema asks for a findings summary string, but oracles
// sometimes itemize.
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*f = nil
		} else {
			*f = FlexStrings{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*f = FlexStrings(many)
		return nil
	}
	*f = nil
	return nil
}

// StructureElement is one organizational grouping proposed during
// initialization (a phase or category to hang tasks under).
type StructureElement struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Justification string `json:"justification"`
}

// ProposedTask is a task suggested by the oracle, either as part of
// the initial plan (Parent names a structure element or "root") or as
// a follow-up after execution (ParentPhase names a phase).
type ProposedTask struct {
	Description    string  `json:"description"`
	Parent         string  `json:"parent,omitempty"`
	ParentPhase    string  `json:"parent_phase,omitempty"`
	ToolSuggestion string  `json:"tool_suggestion,omitempty"`
	Priority       FlexInt `json:"priority,omitempty"`
	RiskLevel      string  `json:"risk_level,omitempty"`
	Rationale      string  `json:"rationale,omitempty"`
}

// ParentRef returns whichever parent reference the oracle filled in.
func (p ProposedTask) ParentRef() string {
	if p.ParentPhase != "" {
		return p.ParentPhase
	}
	return p.Parent
}

// InitializationPlan is the oracle's answer to the initialization
// request: an assessment, optional structure, and seed tasks.
type InitializationPlan struct {
	Analysis     string             `json:"analysis"`
	Structure    []StructureElement `json:"structure"`
	InitialTasks []ProposedTask     `json:"initial_tasks"`
}

// NextAction is the oracle's selection from the candidate list.
// SelectedTaskIndex is 1-based into the presented candidates.
type NextAction struct {
	SelectedTaskIndex    FlexInt `json:"selected_task_index"`
	Rationale            string  `json:"rationale"`
	Command              string  `json:"command"`
	Tool                 string  `json:"tool"`
	ExpectedOutcome      string  `json:"expected_outcome"`
	AlternativeIfBlocked FlexInt `json:"alternative_if_blocked"`
}

// NodeUpdateDecision carries the oracle's classification of an
// executed node.
type NodeUpdateDecision struct {
	Status        string      `json:"status"`
	Findings      FlexStrings `json:"findings"`
	OutputSummary string      `json:"output_summary"`
}

// UpdateDecision is the oracle's answer to the update request.
// NodeUpdates is nil when the reply carried no node_updates object.
type UpdateDecision struct {
	NodeUpdates *NodeUpdateDecision `json:"node_updates"`
	NewTasks    []ProposedTask      `json:"new_tasks"`
	Insights    string              `json:"insights"`
}

// GoalCheck is the oracle's goal-achievement verdict.
type GoalCheck struct {
	GoalAchieved        bool    `json:"goal_achieved"`
	Confidence          FlexInt `json:"confidence"`
	Evidence            string  `json:"evidence"`
	RemainingObjectives string  `json:"remaining_objectives"`
	Recommendations     string  `json:"recommendations"`
	ScopeWarning        string  `json:"scope_warning"`
}

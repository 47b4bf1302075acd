package agent

import (
	"context"
	"strings"

	"specter/internal/knowledge"
	"specter/internal/oracle"
	"specter/internal/tree"
)

// --- mockOracle ---

// mockOracle routes each request kind to its own func field, so tests
// script exactly the interactions they care about. Unset fields reply
// with empty text, which every call site must absorb.
type mockOracle struct {
	InvokeFunc func(ctx context.Context, prompt string, tools []string, history []oracle.Dialogue) (string, error)

	InitFunc      func(prompt string) (string, error)
	NextFunc      func(prompt string) (string, error)
	ExecuteFunc   func(prompt string) (string, error)
	UpdateFunc    func(prompt string) (string, error)
	GoalCheckFunc func(prompt string) (string, error)

	calls []string
}

func (m *mockOracle) Invoke(ctx context.Context, prompt string, tools []string, history []oracle.Dialogue) (string, error) {
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, prompt, tools, history)
	}
	kind := classifyPrompt(prompt)
	m.calls = append(m.calls, kind)
	switch kind {
	case "init":
		if m.InitFunc != nil {
			return m.InitFunc(prompt)
		}
	case "next":
		if m.NextFunc != nil {
			return m.NextFunc(prompt)
		}
	case "update":
		if m.UpdateFunc != nil {
			return m.UpdateFunc(prompt)
		}
	case "goal":
		if m.GoalCheckFunc != nil {
			return m.GoalCheckFunc(prompt)
		}
	default:
		if m.ExecuteFunc != nil {
			return m.ExecuteFunc(prompt)
		}
	}
	return "", nil
}

func (m *mockOracle) Model() string { return "mock" }

func (m *mockOracle) callCount(kind string) int {
	n := 0
	for _, c := range m.calls {
		if c == kind {
			n++
		}
	}
	return n
}

func classifyPrompt(prompt string) string {
	switch {
	case strings.Contains(prompt, "initializing a Pentesting Task Tree"):
		return "init"
	case strings.Contains(prompt, "select the next action"):
		return "next"
	case strings.Contains(prompt, "A task has been executed"):
		return "update"
	case strings.Contains(prompt, "PRIMARY GOAL has been achieved"):
		return "goal"
	default:
		return "execute"
	}
}

// --- mockToolSource ---

type mockToolSource struct {
	tools []string
}

func (m *mockToolSource) Available() []string { return m.tools }

func (m *mockToolSource) IsAvailable(name string) bool {
	if name == SentinelManualTool || name == "generic" {
		return true
	}
	for _, t := range m.tools {
		if t == name {
			return true
		}
	}
	return false
}

// --- mockSearcher ---

type mockSearcher struct {
	SearchFunc func(ctx context.Context, query string, limit int) ([]knowledge.Chunk, error)
}

func (m *mockSearcher) Search(ctx context.Context, query string, limit int) ([]knowledge.Chunk, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, limit)
	}
	return nil, nil
}

// --- mockSnapshotStore ---

type mockSnapshotStore struct {
	saved int
	last  *tree.TaskTree
}

func (m *mockSnapshotStore) SaveSnapshot(ptt *tree.TaskTree) (string, error) {
	m.saved++
	m.last = ptt
	return "ptt_state_test.json", nil
}

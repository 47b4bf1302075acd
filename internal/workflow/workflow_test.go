package workflow

import (
	"strings"
	"testing"

	"specter/internal/tree"
)

func TestAllWorkflows(t *testing.T) {
	wfs := All()
	if len(wfs) != 4 {
		t.Fatalf("expected 4 built-in workflows, got %d", len(wfs))
	}

	wantKeys := []string{"reconnaissance", "web_application", "network_infrastructure", "full_penetration_test"}
	keys := Keys()
	for i, want := range wantKeys {
		if keys[i] != want {
			t.Errorf("workflow %d: expected key %q, got %q", i, want, keys[i])
		}
	}

	for _, wf := range wfs {
		if wf.Name == "" || wf.Description == "" {
			t.Errorf("workflow %s missing name or description", wf.Key)
		}
		if len(wf.Steps) == 0 {
			t.Errorf("workflow %s has no steps", wf.Key)
		}
	}
}

func TestGet(t *testing.T) {
	wf, ok := Get("web_application")
	if !ok {
		t.Fatal("expected to find web_application workflow")
	}
	if wf.Name != "Web Application Security Assessment" {
		t.Errorf("unexpected name: %s", wf.Name)
	}

	if _, ok := Get("social_engineering"); ok {
		t.Error("expected lookup miss for unknown key")
	}
}

func TestInstantiate(t *testing.T) {
	wf, _ := Get("reconnaissance")
	steps := wf.Instantiate("10.0.0.5")

	if !strings.Contains(steps[0], "10.0.0.5") {
		t.Errorf("first step should mention the target: %s", steps[0])
	}
	if strings.Contains(strings.Join(steps, " "), "{target}") {
		t.Error("instantiated steps still contain the {target} placeholder")
	}
	// The source definition must stay untouched.
	if !strings.Contains(wf.Steps[0], "{target}") {
		t.Error("Instantiate mutated the workflow definition")
	}
}

func TestSeed(t *testing.T) {
	ptt := tree.New()
	if _, err := ptt.Initialize("assess the lab network", "192.168.56.0/24", nil); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	wf, _ := Get("network_infrastructure")
	phaseID, err := Seed(ptt, wf, "192.168.56.0/24")
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	phase := ptt.GetNode(phaseID)
	if phase == nil {
		t.Fatal("phase node not found")
	}
	if phase.NodeType != tree.TypePhase {
		t.Errorf("expected phase node, got %s", phase.NodeType)
	}
	if phase.ParentID != ptt.RootID {
		t.Error("phase should hang off the root")
	}

	steps := ptt.GetChildren(phaseID)
	if len(steps) != len(wf.Steps) {
		t.Fatalf("expected %d step nodes, got %d", len(wf.Steps), len(steps))
	}
	if !strings.Contains(steps[0].Description, "192.168.56.0/24") {
		t.Errorf("first step not templated: %s", steps[0].Description)
	}

	// Dependency chaining releases exactly one step at a time.
	candidates := ptt.GetCandidateTasks()
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].ID != steps[0].ID {
		t.Errorf("expected the first step as candidate, got %s", candidates[0].Description)
	}

	if !ptt.SetStatus(steps[0].ID, tree.StatusCompleted) {
		t.Fatal("failed to complete the first step")
	}
	candidates = ptt.GetCandidateTasks()
	if len(candidates) != 1 || candidates[0].ID != steps[1].ID {
		t.Errorf("expected the second step to unlock, got %v", candidates)
	}
}

func TestSeedUninitialized(t *testing.T) {
	wf, _ := Get("reconnaissance")
	if _, err := Seed(tree.New(), wf, "10.0.0.5"); err == nil {
		t.Error("expected error seeding an uninitialized tree")
	}
}

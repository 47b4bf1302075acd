// Package workflow holds the predefined assessment playbooks. A
// workflow seeds the task tree with a fixed phase of ordered steps
// instead of asking the oracle to plan from scratch, which keeps
// well-understood engagements repeatable.
package workflow

import (
	"fmt"
	"strings"

	"specter/internal/logging"
	"specter/internal/tree"
)

// Workflow is one predefined playbook. Steps may reference {target},
// filled in when the workflow is seeded.
type Workflow struct {
	Key         string
	Name        string
	Description string
	Steps       []string
}

// builtins are ordered for display; keys are stable identifiers used
// on the command line.
var builtins = []Workflow{
	{
		Key:         "reconnaissance",
		Name:        "Reconnaissance and Discovery",
		Description: "Comprehensive information gathering and target profiling",
		Steps: []string{
			"Perform comprehensive reconnaissance on {target}",
			"Discover subdomains and DNS information",
			"Scan for open ports and services",
			"Identify technology stack and fingerprints",
			"Gather historical data and archived content",
		},
	},
	{
		Key:         "web_application",
		Name:        "Web Application Security Assessment",
		Description: "Comprehensive web application penetration testing",
		Steps: []string{
			"Discover web directories and hidden content on {target}",
			"Test for SQL injection vulnerabilities",
			"Scan for web application vulnerabilities and misconfigurations",
			"Analyze SSL/TLS configuration and security",
			"Test for authentication and session management flaws",
			"Check for file inclusion and upload vulnerabilities",
		},
	},
	{
		Key:         "network_infrastructure",
		Name:        "Network Infrastructure Penetration Test",
		Description: "Network-focused penetration testing and exploitation",
		Steps: []string{
			"Scan network range {target} for live hosts and services",
			"Perform detailed service enumeration and version detection",
			"Scan for known vulnerabilities in discovered services",
			"Test for network service misconfigurations",
			"Attempt exploitation of discovered vulnerabilities",
			"Assess network segmentation and access controls",
		},
	},
	{
		Key:         "full_penetration_test",
		Name:        "Complete Penetration Test",
		Description: "Full-scope penetration testing methodology",
		Steps: []string{
			"Quick port scan to identify open services on {target}",
			"Service version detection on discovered ports",
			"Web service discovery and directory enumeration",
			"Focused vulnerability scanning of services",
			"Targeted exploitation of discovered vulnerabilities",
			"Post-exploitation enumeration if access gained",
			"Compile findings and remediation recommendations",
		},
	},
}

// All returns the built-in workflows in display order.
func All() []Workflow {
	out := make([]Workflow, len(builtins))
	copy(out, builtins)
	return out
}

// Keys returns the workflow identifiers in display order.
func Keys() []string {
	keys := make([]string, len(builtins))
	for i, wf := range builtins {
		keys[i] = wf.Key
	}
	return keys
}

// Get looks a workflow up by key.
func Get(key string) (Workflow, bool) {
	for _, wf := range builtins {
		if wf.Key == key {
			return wf, true
		}
	}
	return Workflow{}, false
}

// Instantiate returns the workflow steps with {target} filled in.
func (w Workflow) Instantiate(target string) []string {
	steps := make([]string, len(w.Steps))
	for i, step := range w.Steps {
		steps[i] = strings.ReplaceAll(step, "{target}", target)
	}
	return steps
}

// Seed plants the workflow under the tree root: one phase node plus a
// task node per step, each task depending on the one before it so
// candidate selection releases them strictly in order. Returns the
// phase node id.
func Seed(ptt *tree.TaskTree, w Workflow, target string) (string, error) {
	if ptt.RootID == "" {
		return "", fmt.Errorf("task tree is not initialized")
	}

	phase := tree.NewNode(w.Name, ptt.RootID, tree.TypePhase)
	if err := ptt.AddNode(phase); err != nil {
		return "", fmt.Errorf("failed to add workflow phase: %w", err)
	}

	prevID := ""
	for _, step := range w.Instantiate(target) {
		task := tree.NewTaskNode(step, phase.ID)
		if prevID != "" {
			task.Dependencies = []string{prevID}
		}
		if err := ptt.AddNode(task); err != nil {
			return "", fmt.Errorf("failed to add workflow step: %w", err)
		}
		prevID = task.ID
	}

	logging.Tree("seeded workflow %s with %d steps for %s", w.Key, len(w.Steps), target)
	return phase.ID, nil
}

// Package report turns a finished assessment into a professional
// Markdown report. The oracle distills the task tree and dialogue
// into structured findings; when it is unavailable or unparseable the
// report falls back to what the tree alone can prove.
package report

import (
	"encoding/json"
	"fmt"
	"sort"

	"specter/internal/reasoning"
	"specter/internal/tree"
)

// Severity labels, ordered for report sections.
var severityOrder = []string{"Critical", "High", "Medium", "Low", "Informational"}

// Priority labels for recommendation grouping.
var priorityOrder = []string{"Immediate", "Short-term", "Medium-term", "Long-term"}

// KeyStatistics summarize the assessment numerically.
type KeyStatistics struct {
	TotalVulnerabilities reasoning.FlexInt `json:"total_vulnerabilities"`
	CriticalCount        reasoning.FlexInt `json:"critical_count"`
	HighCount            reasoning.FlexInt `json:"high_count"`
	MediumCount          reasoning.FlexInt `json:"medium_count"`
	LowCount             reasoning.FlexInt `json:"low_count"`
	SystemsTested        reasoning.FlexInt `json:"systems_tested"`
	SystemsCompromised   reasoning.FlexInt `json:"systems_compromised"`
}

// Vulnerability is one reported weakness.
type Vulnerability struct {
	Severity        string                `json:"severity"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Impact          string                `json:"impact"`
	AffectedSystems reasoning.FlexStrings `json:"affected_systems"`
	Remediation     string                `json:"remediation"`
	Evidence        string                `json:"evidence"`
	CVSSScore       string                `json:"cvss_score,omitempty"`
	References      reasoning.FlexStrings `json:"references"`
}

// CompromisedSystem records access gained during the assessment.
type CompromisedSystem struct {
	System      string `json:"system"`
	AccessLevel string `json:"access_level"`
	Method      string `json:"method"`
	Evidence    string `json:"evidence"`
}

// AttackPath is a demonstrated chain of steps.
type AttackPath struct {
	PathDescription string                `json:"path_description"`
	Impact          string                `json:"impact"`
	Steps           reasoning.FlexStrings `json:"steps"`
}

// Recommendation is one remediation item.
type Recommendation struct {
	Priority              string `json:"priority"`
	Category              string `json:"category"`
	Recommendation        string `json:"recommendation"`
	BusinessJustification string `json:"business_justification,omitempty"`
}

// Findings is the structured analysis a report is rendered from.
type Findings struct {
	ExecutiveSummary   string                `json:"executive_summary"`
	KeyStatistics      KeyStatistics         `json:"key_statistics"`
	Vulnerabilities    []Vulnerability       `json:"vulnerabilities"`
	CompromisedSystems []CompromisedSystem   `json:"compromised_systems"`
	AttackPaths        []AttackPath          `json:"attack_paths"`
	Recommendations    []Recommendation      `json:"recommendations"`
	ToolsUsed          reasoning.FlexStrings `json:"tools_used"`
	Methodology        string                `json:"methodology"`
	ScopeLimitations   string                `json:"scope_limitations,omitempty"`
	Conclusion         string                `json:"conclusion"`
}

// ParseFindings extracts structured findings from an oracle reply.
// ok is false when the reply had no usable analysis, in which case a
// minimal placeholder is returned.
func ParseFindings(reply string) (Findings, bool) {
	payload, ok := reasoning.Extract(reply)
	if ok {
		var findings Findings
		if err := json.Unmarshal(payload, &findings); err == nil && findings.ExecutiveSummary != "" {
			return findings, true
		}
	}
	return Findings{
		ExecutiveSummary: "Assessment completed. See technical findings for details.",
		Methodology:      "Autonomous task tree driven penetration testing methodology.",
		Conclusion:       "Unable to parse detailed findings from the analysis reply.",
	}, false
}

// FallbackFindings builds findings from the tree alone, used when no
// oracle is reachable. Vulnerable nodes become medium-severity
// entries; everything else informs the summary counts.
func FallbackFindings(ptt *tree.TaskTree, toolsUsed []string) Findings {
	var vulns []Vulnerability
	completed := 0
	failed := 0

	for _, node := range ptt.OrderedNodes() {
		switch node.Status {
		case tree.StatusCompleted:
			completed++
		case tree.StatusFailed:
			failed++
		case tree.StatusVulnerable:
			vulns = append(vulns, Vulnerability{
				Title:           node.Description,
				Description:     joinFindings(node),
				Severity:        "Medium",
				AffectedSystems: reasoning.FlexStrings{ptt.Target},
				Evidence:        node.OutputSummary,
				Remediation:     "Review and patch the identified weakness",
			})
		}
	}

	findings := Findings{
		ExecutiveSummary: fmt.Sprintf(
			"Autonomous penetration testing completed against %s. Goal: %s. %d tasks completed successfully, %d vulnerabilities identified.",
			ptt.Target, ptt.Goal, completed, len(vulns)),
		Vulnerabilities: vulns,
		KeyStatistics: KeyStatistics{
			TotalVulnerabilities: reasoning.FlexInt(len(vulns)),
			MediumCount:          reasoning.FlexInt(len(vulns)),
			SystemsTested:        1,
		},
		ToolsUsed:   toolsUsed,
		Methodology: "Autonomous penetration testing using a goal-directed task tree with intelligent prioritization.",
	}

	if len(vulns) > 0 {
		findings.KeyStatistics.SystemsCompromised = 1
		findings.Conclusion = "Assessment successfully identified security weaknesses. Immediate remediation recommended."
		findings.Recommendations = []Recommendation{
			{
				Category:              "Patch Management",
				Recommendation:        "Apply security patches to all identified vulnerable services",
				Priority:              "Immediate",
				BusinessJustification: "Prevents exploitation of known vulnerabilities",
			},
			{
				Category:              "Monitoring",
				Recommendation:        "Implement monitoring for the services and ports identified during reconnaissance",
				Priority:              "Short-term",
				BusinessJustification: "Early detection of potential security incidents",
			},
		}
	} else {
		findings.Conclusion = "Assessment completed without identifying critical vulnerabilities. Continue monitoring and regular assessments."
		findings.Recommendations = []Recommendation{
			{
				Category:              "Continued Security",
				Recommendation:        "Maintain current security posture and conduct regular assessments",
				Priority:              "Medium-term",
				BusinessJustification: "Proactive security maintenance",
			},
		}
	}
	return findings
}

// ToolsFromTree lists the distinct tools recorded on executed nodes,
// sorted. The "manual" marker denotes operator-injected tasks rather
// than a tool and is skipped.
func ToolsFromTree(ptt *tree.TaskTree) []string {
	seen := make(map[string]bool)
	for _, node := range ptt.OrderedNodes() {
		if node.ToolUsed == "" || node.ToolUsed == "manual" {
			continue
		}
		seen[node.ToolUsed] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func joinFindings(node *tree.TaskNode) string {
	if len(node.Findings) == 0 {
		return "No description available"
	}
	out := node.Findings[0]
	for _, f := range node.Findings[1:] {
		out += "; " + f
	}
	return out
}

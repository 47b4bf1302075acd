package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"specter/internal/logging"
	"specter/internal/oracle"
	"specter/internal/tree"
)

// Generator produces assessment reports under one output directory.
type Generator struct {
	client oracle.Client
	dir    string
}

// NewGenerator creates a report generator. client may be nil, in
// which case every report uses the tree-derived fallback analysis.
func NewGenerator(client oracle.Client, dir string) *Generator {
	return &Generator{client: client, dir: dir}
}

// Generate analyzes the assessment and writes the Markdown report,
// returning its path. dialogue is the exported oracle conversation for
// live runs; snapshot-born reports pass "".
func (g *Generator) Generate(ctx context.Context, ptt *tree.TaskTree, toolsUsed []string, dialogue string) (string, error) {
	timer := logging.StartTimer(logging.CategoryReport, "Generate")
	defer timer.Stop()

	findings := g.analyze(ctx, ptt, toolsUsed, dialogue)
	markdown := Render(findings, ptt, time.Now())
	return g.save(markdown, ptt.Target)
}

func (g *Generator) analyze(ctx context.Context, ptt *tree.TaskTree, toolsUsed []string, dialogue string) Findings {
	if g.client == nil {
		logging.ReportDebug("no oracle configured, using tree-derived analysis")
		return FallbackFindings(ptt, toolsUsed)
	}

	prompt := BuildAnalysisPrompt(ptt, toolsUsed, dialogue)
	reply, err := g.client.Invoke(ctx, prompt, toolsUsed, nil)
	if err != nil {
		logging.Get(logging.CategoryReport).Warn("analysis query failed, using tree-derived analysis: %v", err)
		return FallbackFindings(ptt, toolsUsed)
	}

	findings, ok := ParseFindings(reply)
	if !ok {
		logging.Get(logging.CategoryReport).Warn("analysis reply had no usable findings")
	}
	return findings
}

// BuildAnalysisPrompt asks the oracle to distill the finished tree
// into the structured findings schema. The dialogue log, when present,
// gives the oracle the raw command outputs the tree summaries elide;
// the history type already bounds its size.
func BuildAnalysisPrompt(ptt *tree.TaskTree, toolsUsed []string, dialogue string) string {
	stats := ptt.GetStatistics()
	statsJSON, _ := json.Marshal(map[string]int{
		"total_nodes":     stats.TotalNodes,
		"completed":       stats.StatusCounts[tree.StatusCompleted],
		"failed":          stats.StatusCounts[tree.StatusFailed],
		"vulnerable":      stats.StatusCounts[tree.StatusVulnerable],
		"not_vulnerable":  stats.StatusCounts[tree.StatusNotVulnerable],
		"pending":         stats.StatusCounts[tree.StatusPending],
		"candidate_tasks": stats.CandidateTasks,
	})

	var keyFindings []string
	for _, node := range ptt.OrderedNodes() {
		if (node.Status == tree.StatusCompleted || node.Status == tree.StatusVulnerable) && len(node.Findings) > 0 {
			keyFindings = append(keyFindings, fmt.Sprintf("- %s: %s", node.Description, strings.Join(node.Findings, "; ")))
		}
	}
	findingsText := "No significant findings recorded"
	if len(keyFindings) > 0 {
		findingsText = strings.Join(keyFindings, "\n")
	}

	toolsText := "Various security tools"
	if len(toolsUsed) > 0 {
		toolsText = strings.Join(toolsUsed, ", ")
	}

	dialogueSection := ""
	if dialogue != "" {
		dialogueSection = fmt.Sprintf("\nASSESSMENT DIALOGUE LOG:\n%s\n", dialogue)
	}

	return fmt.Sprintf(`You are analyzing the results of an autonomous penetration test conducted with a goal-directed task tree.

ASSESSMENT DETAILS:
Goal: %s
Target: %s
Date: %s
Tools Used: %s
Statistics: %s

TASK TREE:
%s

KEY FINDINGS:
%s
%s
Based on this assessment, provide a comprehensive security analysis in the following JSON format:

{
    "executive_summary": "Professional executive summary of the assessment",
    "key_statistics": {
        "total_vulnerabilities": 0,
        "critical_count": 0,
        "high_count": 0,
        "medium_count": 0,
        "low_count": 0,
        "systems_tested": 0,
        "systems_compromised": 0
    },
    "vulnerabilities": [
        {
            "title": "Vulnerability name",
            "description": "Detailed description",
            "severity": "Critical|High|Medium|Low|Informational",
            "impact": "Business impact description",
            "affected_systems": ["system1"],
            "evidence": "Include actual commands used and key outputs. Format as: 'Command: [command] Output: [relevant output]'",
            "remediation": "Specific remediation steps",
            "references": ["CVE numbers, links"]
        }
    ],
    "compromised_systems": [
        {
            "system": "system identifier",
            "access_level": "user|admin|root|system",
            "method": "exploitation method",
            "evidence": "proof of compromise"
        }
    ],
    "attack_paths": [
        {
            "path_description": "Attack path name",
            "impact": "potential impact",
            "steps": ["step1", "step2"]
        }
    ],
    "recommendations": [
        {
            "category": "Network|Application|System|Process",
            "recommendation": "specific recommendation",
            "priority": "Immediate|Short-term|Medium-term|Long-term",
            "business_justification": "why this matters to business"
        }
    ],
    "methodology": "Description of the methodology used",
    "scope_limitations": "Any scope limitations or areas not tested",
    "conclusion": "Professional conclusion of the assessment"
}

Focus on extracting real findings from the task tree. If no vulnerabilities were found, that is also valuable information. Be accurate and professional.`,
		ptt.Goal, ptt.Target, ptt.CreatedAt.Format("2006-01-02"), toolsText, statsJSON,
		ptt.RenderText(), findingsText, dialogueSection)
}

var unsafePathChars = regexp.MustCompile(`[^\w\-.]`)

// save writes the report atomically and returns its path.
func (g *Generator) save(markdown, target string) (string, error) {
	if err := os.MkdirAll(g.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	safeTarget := unsafePathChars.ReplaceAllString(target, "_")
	if safeTarget == "" {
		safeTarget = "assessment"
	}
	path := filepath.Join(g.dir, fmt.Sprintf("specter_report_%s_%d.md", safeTarget, time.Now().Unix()))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(markdown), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize report: %w", err)
	}

	logging.Get(logging.CategoryReport).Info("report saved to %s", path)
	return path, nil
}

// Preview renders the Markdown report for terminal display.
func Preview(markdown string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(markdown)
}

package report

import (
	"fmt"
	"strings"
	"time"

	"specter/internal/tree"
)

// Render produces the sectioned Markdown report.
func Render(findings Findings, ptt *tree.TaskTree, now time.Time) string {
	var b strings.Builder

	writeTitle(&b, findings, ptt, now)
	writeTableOfContents(&b)
	writeExecutiveSummary(&b, findings)
	writeOverview(&b, findings, ptt)
	writeKeyFindings(&b, findings)
	writeVulnerabilityDetails(&b, findings)
	writeCompromisedSystems(&b, findings)
	writeAttackPaths(&b, findings)
	writeRecommendations(&b, findings)
	writeMethodology(&b, findings)
	writeConclusion(&b, findings, now)

	return b.String()
}

func writeTitle(b *strings.Builder, findings Findings, ptt *tree.TaskTree, now time.Time) {
	fmt.Fprintf(b, "# Penetration Testing Report\n\n")
	fmt.Fprintf(b, "## Agent Assessment: %s\n\n", ptt.Goal)
	fmt.Fprintf(b, "**Target:** %s  \n", ptt.Target)
	fmt.Fprintf(b, "**Assessment Date:** %s  \n", ptt.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(b, "**Report Generated:** %s  \n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(b, "**Report ID:** SPECTER-%d  \n", ptt.CreatedAt.Unix())
	b.WriteString("\n---\n\n")
}

func writeTableOfContents(b *strings.Builder) {
	b.WriteString("## Table of Contents\n\n")
	sections := []string{
		"1. [Executive Summary](#1-executive-summary)",
		"2. [Assessment Overview](#2-assessment-overview)",
		"3. [Key Findings](#3-key-findings)",
		"4. [Vulnerability Details](#4-vulnerability-details)",
		"5. [Compromised Systems](#5-compromised-systems)",
		"6. [Attack Paths](#6-attack-paths)",
		"7. [Recommendations](#7-recommendations)",
		"8. [Technical Methodology](#8-technical-methodology)",
		"9. [Conclusion](#9-conclusion)",
	}
	b.WriteString(strings.Join(sections, "\n"))
	b.WriteString("\n\n---\n\n")
}

func writeExecutiveSummary(b *strings.Builder, findings Findings) {
	b.WriteString("## 1. Executive Summary\n\n")
	summary := findings.ExecutiveSummary
	if summary == "" {
		summary = "Assessment completed successfully."
	}
	b.WriteString(summary)
	b.WriteString("\n\n---\n\n")
}

func writeOverview(b *strings.Builder, findings Findings, ptt *tree.TaskTree) {
	b.WriteString("## 2. Assessment Overview\n\n")
	b.WriteString("### Scope\n")
	fmt.Fprintf(b, "- **Primary Target:** %s\n", ptt.Target)
	fmt.Fprintf(b, "- **Objective:** %s\n", ptt.Goal)
	fmt.Fprintf(b, "- **Testing Window:** %s\n", ptt.CreatedAt.Format("2006-01-02"))

	if len(findings.ToolsUsed) > 0 {
		b.WriteString("\n### Tools Used\n")
		for _, tool := range findings.ToolsUsed {
			fmt.Fprintf(b, "- %s\n", tool)
		}
	}

	stats := findings.KeyStatistics
	b.WriteString("\n### Key Statistics\n")
	fmt.Fprintf(b, "- **Total Vulnerabilities:** %d\n", stats.TotalVulnerabilities.Int())
	fmt.Fprintf(b, "- **Critical Severity:** %d\n", stats.CriticalCount.Int())
	fmt.Fprintf(b, "- **High Severity:** %d\n", stats.HighCount.Int())
	fmt.Fprintf(b, "- **Systems Compromised:** %d\n", stats.SystemsCompromised.Int())
	b.WriteString("\n---\n\n")
}

func groupBySeverity(vulns []Vulnerability) map[string][]Vulnerability {
	groups := make(map[string][]Vulnerability)
	for _, v := range vulns {
		severity := v.Severity
		if severity == "" {
			severity = "Low"
		}
		groups[severity] = append(groups[severity], v)
	}
	return groups
}

func writeKeyFindings(b *strings.Builder, findings Findings) {
	b.WriteString("## 3. Key Findings\n\n")

	if len(findings.Vulnerabilities) == 0 {
		b.WriteString("No significant vulnerabilities were identified during the assessment.\n\n---\n\n")
		return
	}

	groups := groupBySeverity(findings.Vulnerabilities)
	b.WriteString("### Vulnerability Summary\n\n")
	b.WriteString("| Severity | Count | Description |\n")
	b.WriteString("|----------|-------|-------------|\n")
	for _, severity := range severityOrder {
		vulns := groups[severity]
		if len(vulns) == 0 {
			continue
		}
		titles := make([]string, 0, 3)
		for i, v := range vulns {
			if i == 3 {
				break
			}
			titles = append(titles, v.Title)
		}
		desc := strings.Join(titles, ", ")
		if len(vulns) > 3 {
			desc += fmt.Sprintf(" (and %d more)", len(vulns)-3)
		}
		fmt.Fprintf(b, "| %s | %d | %s |\n", severity, len(vulns), desc)
	}
	b.WriteString("\n---\n\n")
}

func writeVulnerabilityDetails(b *strings.Builder, findings Findings) {
	b.WriteString("## 4. Vulnerability Details\n\n")

	if len(findings.Vulnerabilities) == 0 {
		b.WriteString("No vulnerabilities were identified during this assessment.\n\n---\n\n")
		return
	}

	groups := groupBySeverity(findings.Vulnerabilities)
	for _, severity := range severityOrder {
		vulns := groups[severity]
		if len(vulns) == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s Severity Vulnerabilities\n\n", severity)
		for i, vuln := range vulns {
			title := vuln.Title
			if title == "" {
				title = "Unknown Vulnerability"
			}
			fmt.Fprintf(b, "#### %s-%03d: %s\n\n", strings.ToUpper(severity), i+1, title)
			fmt.Fprintf(b, "**Description:** %s\n\n", fallbackText(vuln.Description, "No description provided"))
			fmt.Fprintf(b, "**Impact:** %s\n\n", fallbackText(vuln.Impact, "Impact assessment pending"))
			if len(vuln.AffectedSystems) > 0 {
				fmt.Fprintf(b, "**Affected Systems:** %s\n\n", strings.Join(vuln.AffectedSystems, ", "))
			}
			fmt.Fprintf(b, "**Remediation:** %s\n\n", fallbackText(vuln.Remediation, "Remediation steps pending"))
			if vuln.Evidence != "" {
				b.WriteString("**Evidence:**\n```\n")
				b.WriteString(vuln.Evidence)
				b.WriteString("\n```\n\n")
			}
			if vuln.CVSSScore != "" {
				fmt.Fprintf(b, "**CVSS Score:** %s\n\n", vuln.CVSSScore)
			}
			if len(vuln.References) > 0 {
				fmt.Fprintf(b, "**References:** %s\n\n", strings.Join(vuln.References, ", "))
			}
		}
	}
	b.WriteString("---\n\n")
}

func writeCompromisedSystems(b *strings.Builder, findings Findings) {
	b.WriteString("## 5. Compromised Systems\n\n")

	if len(findings.CompromisedSystems) == 0 {
		b.WriteString("No systems were successfully compromised during the assessment.\n\n---\n\n")
		return
	}

	b.WriteString("| System | Access Level | Method | Evidence |\n")
	b.WriteString("|--------|--------------|--------|----------|\n")
	for _, sys := range findings.CompromisedSystems {
		evidence := sys.Evidence
		if len(evidence) > 50 {
			evidence = evidence[:50] + "..."
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n",
			fallbackText(sys.System, "Unknown"),
			fallbackText(sys.AccessLevel, "Unknown"),
			fallbackText(sys.Method, "Unknown"),
			fallbackText(evidence, "See technical details"))
	}
	b.WriteString("\n---\n\n")
}

func writeAttackPaths(b *strings.Builder, findings Findings) {
	b.WriteString("## 6. Attack Paths\n\n")

	if len(findings.AttackPaths) == 0 {
		b.WriteString("No specific attack paths were identified or documented.\n\n---\n\n")
		return
	}

	for i, path := range findings.AttackPaths {
		fmt.Fprintf(b, "### Attack Path %d: %s\n\n", i+1, fallbackText(path.PathDescription, "Unknown Path"))
		fmt.Fprintf(b, "**Impact:** %s\n\n", fallbackText(path.Impact, "Unknown impact"))
		if len(path.Steps) > 0 {
			b.WriteString("**Steps:**\n")
			for n, step := range path.Steps {
				fmt.Fprintf(b, "%d. %s\n", n+1, step)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("---\n\n")
}

func writeRecommendations(b *strings.Builder, findings Findings) {
	b.WriteString("## 7. Recommendations\n\n")

	if len(findings.Recommendations) == 0 {
		b.WriteString("Continue following security best practices and conduct regular assessments.\n\n---\n\n")
		return
	}

	groups := make(map[string][]Recommendation)
	for _, rec := range findings.Recommendations {
		priority := rec.Priority
		if priority == "" {
			priority = "Medium-term"
		}
		groups[priority] = append(groups[priority], rec)
	}

	for _, priority := range priorityOrder {
		recs := groups[priority]
		if len(recs) == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s Priority\n\n", priority)
		for _, rec := range recs {
			fmt.Fprintf(b, "**%s:** %s\n", fallbackText(rec.Category, "General"), fallbackText(rec.Recommendation, "No recommendation provided"))
			if rec.BusinessJustification != "" {
				fmt.Fprintf(b, "  \n*Business Justification:* %s\n", rec.BusinessJustification)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("---\n\n")
}

func writeMethodology(b *strings.Builder, findings Findings) {
	b.WriteString("## 8. Technical Methodology\n\n")
	b.WriteString(fallbackText(findings.Methodology, "Standard penetration testing methodology was followed."))
	b.WriteString("\n")
	if findings.ScopeLimitations != "" {
		b.WriteString("\n### Scope Limitations\n\n")
		b.WriteString(findings.ScopeLimitations)
		b.WriteString("\n")
	}
	b.WriteString("\n---\n\n")
}

func writeConclusion(b *strings.Builder, findings Findings, now time.Time) {
	b.WriteString("## 9. Conclusion\n\n")
	b.WriteString(fallbackText(findings.Conclusion, "Assessment completed successfully."))
	b.WriteString("\n\n---\n")
	fmt.Fprintf(b, "*Report generated by specter*  \n*%s*\n", now.Format("2006-01-02 15:04:05"))
}

func fallbackText(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

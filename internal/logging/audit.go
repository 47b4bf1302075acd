// Audit logging for assessment accountability. Every command the agent
// executes against a target, every scope decision, and every goal
// verdict is recorded as an append-only JSONL event, independent of
// debug mode. Assessments need a defensible record of what was run.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType defines the type of audit event.
type AuditEventType string

const (
	AuditSessionStart   AuditEventType = "session_start"
	AuditSessionEnd     AuditEventType = "session_end"
	AuditTaskSelected   AuditEventType = "task_selected"
	AuditTaskExecuted   AuditEventType = "task_executed"
	AuditTaskCompleted  AuditEventType = "task_completed"
	AuditTaskFailed     AuditEventType = "task_failed"
	AuditScopeViolation AuditEventType = "scope_violation"
	AuditGoalCheck      AuditEventType = "goal_check"
	AuditSnapshotSaved  AuditEventType = "snapshot_saved"
	AuditManualTask     AuditEventType = "manual_task"
)

// AuditEvent is a single audit record.
type AuditEvent struct {
	Timestamp string                 `json:"ts"`
	Type      AuditEventType         `json:"type"`
	NodeID    string                 `json:"node_id,omitempty"`
	Detail    string                 `json:"detail,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditMu     sync.Mutex
	auditFile   *os.File
	auditFailed bool
)

// InitAudit opens the audit log under the workspace. Unlike category
// logs, the audit trail is written even when debug mode is off.
func InitAudit(workspace string) error {
	auditMu.Lock()
	defer auditMu.Unlock()

	dir := filepath.Join(workspace, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	path := filepath.Join(dir, "audit.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	auditFile = f
	auditFailed = false
	return nil
}

// Audit appends one event. Safe to call before InitAudit (silent no-op)
// and after a write failure (fails once, then stays quiet).
func Audit(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile == nil || auditFailed {
		return
	}
	if event.Timestamp == "" {
		event.Timestamp = time.Now().Format(time.RFC3339)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if _, err := auditFile.Write(append(data, '\n')); err != nil {
		auditFailed = true
		fmt.Fprintf(os.Stderr, "[logging] Warning: audit write failed: %v\n", err)
	}
}

// AuditExecution records a command dispatched for a node.
func AuditExecution(nodeID, tool, command string) {
	Audit(AuditEvent{
		Type:   AuditTaskExecuted,
		NodeID: nodeID,
		Fields: map[string]interface{}{"tool": tool, "command": command},
	})
}

// AuditScope records a proposed task dropped by scope containment.
func AuditScope(description, reason string) {
	Audit(AuditEvent{
		Type:   AuditScopeViolation,
		Detail: description,
		Fields: map[string]interface{}{"reason": reason},
	})
}

// AuditGoal records a goal-check verdict.
func AuditGoal(achieved bool, confidence int) {
	Audit(AuditEvent{
		Type:   AuditGoalCheck,
		Fields: map[string]interface{}{"achieved": achieved, "confidence": confidence},
	})
}

// CloseAudit closes the audit log (call at shutdown).
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

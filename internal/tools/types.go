// Package tools tracks the security tooling available for an
// assessment. The registry file declares what the operator has
// installed or wired up; availability probing decides what the
// reasoning oracle is told it can use. How a command actually runs is
// the executor's concern, not this package's.
package tools

import "fmt"

// Kind classifies how a tool is reached.
type Kind string

const (
	// KindBinary is an executable on PATH, probed with exec.LookPath.
	KindBinary Kind = "binary"

	// KindMCP is an external tool server. Configured means available;
	// no connection is attempted here.
	KindMCP Kind = "mcp"

	// KindManual is a step the operator performs by hand. Always
	// available.
	KindManual Kind = "manual"
)

// Sentinel tool names the oracle may select even when no registry
// entry matches. "manual" hands the step to the operator, "generic"
// lets the executor improvise a shell command.
const (
	SentinelManual  = "manual"
	SentinelGeneric = "generic"
)

// Tool is one registry entry.
type Tool struct {
	// Name is the unique identifier the oracle selects by.
	Name string `yaml:"name"`

	// Description is surfaced in oracle prompts and the tools listing.
	Description string `yaml:"description,omitempty"`

	// Command is the executable to probe for binary tools, or the
	// launch command for MCP servers.
	Command string `yaml:"command,omitempty"`

	// Args are default arguments, recorded for the executor.
	Args []string `yaml:"args,omitempty"`

	// Kind defaults to binary when omitted.
	Kind Kind `yaml:"kind,omitempty"`
}

// Validate checks the entry is usable.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	switch t.Kind {
	case KindBinary, KindMCP, KindManual, "":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownToolKind, t.Kind)
	}
}

// DefaultTools is the starter registry written when none exists.
func DefaultTools() []Tool {
	return []Tool{
		{Name: "nmap", Description: "Network scanner for host discovery, port scanning and service version detection", Command: "nmap", Kind: KindBinary},
		{Name: "nikto", Description: "Web server scanner for dangerous files and outdated software", Command: "nikto", Kind: KindBinary},
		{Name: "gobuster", Description: "Directory, DNS and virtual host enumeration", Command: "gobuster", Kind: KindBinary},
		{Name: "whatweb", Description: "Web technology fingerprinting", Command: "whatweb", Kind: KindBinary},
		{Name: "curl", Description: "HTTP requests, header inspection and banner grabbing", Command: "curl", Kind: KindBinary},
		{Name: "sqlmap", Description: "SQL injection detection and exploitation", Command: "sqlmap", Kind: KindBinary},
		{Name: "hydra", Description: "Network logon brute forcing", Command: "hydra", Kind: KindBinary},
		{Name: "metasploit", Description: "Exploitation framework console", Command: "msfconsole", Kind: KindBinary},
		{Name: "manual", Description: "Operator performs the step by hand and reports the result", Kind: KindManual},
	}
}

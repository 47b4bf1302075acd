package tools

import "errors"

// Tool registry errors.
var (
	// ErrToolNameEmpty is returned when a registry entry has no name.
	ErrToolNameEmpty = errors.New("tool name cannot be empty")

	// ErrUnknownToolKind is returned for kinds the registry does not know.
	ErrUnknownToolKind = errors.New("unknown tool kind")

	// ErrDuplicateTool is returned when the registry file repeats a name.
	ErrDuplicateTool = errors.New("duplicate tool entry")
)

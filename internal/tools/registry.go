package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"specter/internal/logging"
)

type registryFile struct {
	Tools []Tool `yaml:"tools"`
}

// Registry holds the configured tools and their probed availability.
// It is thread-safe; the file watcher reloads it in the background
// while the agent reads it.
type Registry struct {
	mu        sync.RWMutex
	path      string
	tools     map[string]Tool
	available map[string]bool
}

// NewRegistry creates an empty registry backed by the YAML file at
// path. Call Load, then Probe.
func NewRegistry(path string) *Registry {
	return &Registry{
		path:      path,
		tools:     make(map[string]Tool),
		available: make(map[string]bool),
	}
}

// Path returns the registry file location.
func (r *Registry) Path() string { return r.path }

// Load reads the registry file. A missing file is not an error, the
// assessment just proceeds without configured tools.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.ToolsWarn("registry file %s not found, proceeding without configured tools", r.path)
			r.mu.Lock()
			r.tools = make(map[string]Tool)
			r.available = make(map[string]bool)
			r.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read tool registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse tool registry: %w", err)
	}

	tools := make(map[string]Tool, len(file.Tools))
	for _, tool := range file.Tools {
		if err := tool.Validate(); err != nil {
			return fmt.Errorf("invalid tool in %s: %w", r.path, err)
		}
		if _, exists := tools[tool.Name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, tool.Name)
		}
		if tool.Kind == "" {
			tool.Kind = KindBinary
		}
		tools[tool.Name] = tool
	}

	r.mu.Lock()
	r.tools = tools
	// Availability is stale until the next Probe.
	r.available = make(map[string]bool)
	r.mu.Unlock()

	logging.ToolsDebug("loaded %d tools from %s", len(tools), r.path)
	return nil
}

// Save writes the current entries back to the registry file.
func (r *Registry) Save() error {
	r.mu.RLock()
	file := registryFile{Tools: r.sortedLocked()}
	r.mu.RUnlock()

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to marshal tool registry: %w", err)
	}
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create registry directory: %w", err)
		}
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write tool registry: %w", err)
	}
	return nil
}

// Probe checks every entry for availability in parallel. Binary tools
// are looked up on PATH, MCP tools count as available when configured
// with a command, manual tools always pass.
func (r *Registry) Probe(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryTools, "Probe")
	defer timer.Stop()

	r.mu.RLock()
	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	r.mu.RUnlock()

	var mu sync.Mutex
	available := make(map[string]bool, len(tools))

	eg, egCtx := errgroup.WithContext(ctx)
	for _, tool := range tools {
		tool := tool
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			default:
			}
			ok := probe(tool)
			mu.Lock()
			available[tool.Name] = ok
			mu.Unlock()
			if !ok {
				logging.ToolsDebug("tool %s (%s) not available", tool.Name, tool.Kind)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	r.mu.Lock()
	r.available = available
	r.mu.Unlock()

	logging.Get(logging.CategoryTools).Info("probed %d tools, %d available", len(tools), countAvailable(available))
	return nil
}

func probe(tool Tool) bool {
	switch tool.Kind {
	case KindManual:
		return true
	case KindMCP:
		return tool.Command != ""
	default:
		command := tool.Command
		if command == "" {
			command = tool.Name
		}
		_, err := exec.LookPath(command)
		return err == nil
	}
}

func countAvailable(m map[string]bool) int {
	n := 0
	for _, ok := range m {
		if ok {
			n++
		}
	}
	return n
}

// Reload re-reads the registry file and re-probes availability.
func (r *Registry) Reload(ctx context.Context) error {
	if err := r.Load(); err != nil {
		return err
	}
	return r.Probe(ctx)
}

// Available returns the names of probed-available tools, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.available))
	for name, ok := range r.available {
		if ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// IsAvailable reports whether the named tool can be used. The manual
// and generic sentinels always can.
func (r *Registry) IsAvailable(name string) bool {
	if name == SentinelManual || name == SentinelGeneric {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.available[name]
}

// Get returns the registry entry for name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Has reports whether a tool with the given name is configured.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// All returns every entry sorted by name, probed or not.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked()
}

// Names returns all configured tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of configured tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

func (r *Registry) sortedLocked() []Tool {
	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// EnsureDefault writes the starter registry to path when no file
// exists there yet.
func EnsureDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	r := NewRegistry(path)
	r.mu.Lock()
	for _, tool := range DefaultTools() {
		r.tools[tool.Name] = tool
	}
	r.mu.Unlock()
	logging.Get(logging.CategoryTools).Info("writing starter tool registry to %s", path)
	return r.Save()
}

// Package scanner defines the per-service scanner capability and its
// registry. Scanners discover raw records through the command execution
// substrate and transform them into normalized resources.
package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/kartta-io/kartta/executor"
	"github.com/kartta-io/kartta/types"
)

// Scanner is the capability every resource family implements.
// Discover invokes the command substrate and parses its output; an empty
// result set is valid and must not be an error. Transform is pure and
// deterministic: it performs no I/O beyond what discovery already captured.
type Scanner interface {
	// ServiceName returns the service identifier (e.g., "compute")
	ServiceName() string

	// Discover lists the raw records for one account/region
	Discover(ctx context.Context, sc types.ScanContext) ([]types.RawRecord, error)

	// Transform converts one raw record into a normalized resource
	Transform(record types.RawRecord, sc types.ScanContext) (types.Resource, error)
}

// Validator is an optional per-family sanity check applied after transform.
type Validator interface {
	Validate(r types.Resource) error
}

// Registry holds registered scanners.
var (
	registry = make(map[string]Scanner)
	mu       sync.RWMutex
)

// Register adds a scanner to the registry.
func Register(s Scanner) {
	mu.Lock()
	defer mu.Unlock()
	registry[s.ServiceName()] = s
}

// Get returns a scanner by service name.
func Get(name string) (Scanner, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[name]
	return s, ok
}

// Names returns all registered service names.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Clear removes all scanners from the registry. Used for testing.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]Scanner)
}

// ParseError reports discovery output that could not be decoded.
type ParseError struct {
	Snippet string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse discovery output: %v (output: %q)", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error { return e.Err }

const snippetLen = 200

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > snippetLen {
		return s[:snippetLen]
	}
	return s
}

// runCLI invokes the cloud CLI through the executor and decodes its JSON
// output into out. A nonzero exit surfaces as *executor.ExitError, undecodable
// output as *ParseError. Empty output with exit 0 leaves out untouched.
func runCLI(ctx context.Context, exec executor.Executor, sc types.ScanContext, args []string, out any) error {
	cmd := executor.Command{
		Name:    "aws",
		Args:    append(args, "--output", "json"),
		Profile: sc.CredentialProfile,
		Region:  sc.Region,
	}

	result, err := exec.Execute(ctx, cmd)
	if err != nil {
		return fmt.Errorf("execute %s: %w", strings.Join(args, " "), err)
	}

	if result.ExitCode != 0 {
		return &executor.ExitError{
			ExitCode: result.ExitCode,
			Stderr:   snippet(result.Stderr),
		}
	}

	if strings.TrimSpace(result.Stdout) == "" {
		return nil
	}

	if err := json.Unmarshal([]byte(result.Stdout), out); err != nil {
		return &ParseError{Snippet: snippet(result.Stdout), Err: err}
	}

	return nil
}

// stringField walks nested maps and returns the string at the given path.
func stringField(m map[string]any, keys ...string) string {
	var cur any = m
	for _, k := range keys {
		mm, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = mm[k]
	}
	s, _ := cur.(string)
	return s
}

// boolField walks nested maps and returns the bool at the given path.
func boolField(m map[string]any, keys ...string) bool {
	var cur any = m
	for _, k := range keys {
		mm, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		cur = mm[k]
	}
	b, _ := cur.(bool)
	return b
}

// tagMap converts a provider tag list ([{Key, Value}, ...]) into a map.
func tagMap(v any) map[string]string {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	tags := make(map[string]string, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		key, _ := entry["Key"].(string)
		value, _ := entry["Value"].(string)
		if key != "" {
			tags[key] = value
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

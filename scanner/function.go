package scanner

import (
	"context"
	"fmt"

	"github.com/kartta-io/kartta/executor"
	"github.com/kartta-io/kartta/types"
)

// FunctionScanner discovers serverless functions.
type FunctionScanner struct {
	exec executor.Executor
}

// NewFunctionScanner creates a function scanner backed by the given executor
func NewFunctionScanner(exec executor.Executor) *FunctionScanner {
	return &FunctionScanner{exec: exec}
}

// ServiceName returns the service identifier
func (s *FunctionScanner) ServiceName() string { return "function" }

// Discover lists functions via the command substrate
func (s *FunctionScanner) Discover(ctx context.Context, sc types.ScanContext) ([]types.RawRecord, error) {
	var output struct {
		Functions []map[string]any `json:"Functions"`
	}

	if err := runCLI(ctx, s.exec, sc, []string{"lambda", "list-functions"}, &output); err != nil {
		return nil, err
	}

	records := make([]types.RawRecord, 0, len(output.Functions))
	for _, fn := range output.Functions {
		records = append(records, types.RawRecord{
			Service: "function",
			Kind:    "function",
			Payload: fn,
		})
	}

	return records, nil
}

// Transform converts one raw function record into a normalized resource
func (s *FunctionScanner) Transform(record types.RawRecord, sc types.ScanContext) (types.Resource, error) {
	name := stringField(record.Payload, "FunctionName")
	if name == "" {
		return types.Resource{}, fmt.Errorf("function record has no FunctionName")
	}

	status := stringField(record.Payload, "State")
	if status == "" {
		// list-functions omits State for older runtimes
		status = "Active"
	}

	metadata := map[string]string{}
	if runtime := stringField(record.Payload, "Runtime"); runtime != "" {
		metadata["runtime"] = runtime
	}
	if memory, ok := record.Payload["MemorySize"].(float64); ok {
		metadata["memory_mb"] = fmt.Sprintf("%.0f", memory)
	}

	return types.Resource{
		Type:        "function.function",
		ExternalID:  name,
		AccountID:   sc.AccountID,
		Region:      sc.Region,
		Service:     "function",
		ARN:         stringField(record.Payload, "FunctionArn"),
		Name:        name,
		Status:      status,
		Constraints: types.Constraints{Metadata: metadata},
	}, nil
}

package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/toolbox/internal/config"
	"github.com/roach88/toolbox/internal/engine"
	"github.com/roach88/toolbox/internal/ir"
)

// Scenario defines a scripted cart session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Policy is the engine quantity policy: "trust" (default) or "clamp".
	Policy string `yaml:"policy,omitempty"`

	// Catalog is the inventory the steps draw items from.
	Catalog []ir.CatalogItem `yaml:"catalog"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Final validates the cart after the last step. Optional.
	Final *FinalClause `yaml:"final,omitempty"`
}

// Step is one cart operation.
type Step struct {
	Op string `yaml:"op"`

	// Item is the catalog id for add, update, remove and set_stock.
	Item string `yaml:"item,omitempty"`

	// Quantity for add (default 1) and update (required).
	Quantity *int `yaml:"quantity,omitempty"`

	Notes string `yaml:"notes,omitempty"`

	// Balance and Status for set_stock. A nil balance clears it.
	Balance *int   `yaml:"balance,omitempty"`
	Status  string `yaml:"status,omitempty"`

	// EmployeeID and Location for context.
	EmployeeID string `yaml:"employee_id,omitempty"`
	Location   string `yaml:"location,omitempty"`

	// History is the index into the history list for restore.
	History int `yaml:"history,omitempty"`

	// Duration for advance, e.g. "2h" or "31d".
	Duration string `yaml:"duration,omitempty"`

	// Expect validates the step outcome. If nil, only the trace records it.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	Success         *bool  `yaml:"success,omitempty"`
	Quantity        *int   `yaml:"quantity,omitempty"`
	WarningContains string `yaml:"warning_contains,omitempty"`
	ErrorContains   string `yaml:"error_contains,omitempty"`
}

// FinalClause specifies the expected cart after all steps.
// Unset fields are not checked.
type FinalClause struct {
	Absent     bool           `yaml:"absent,omitempty"`
	TotalItems *int           `yaml:"total_items,omitempty"`
	Lines      map[string]int `yaml:"lines,omitempty"`
	HistoryLen *int           `yaml:"history_len,omitempty"`
	SessionID  string         `yaml:"session_id,omitempty"`
}

// Step operations.
const (
	OpAdd          = "add"
	OpUpdate       = "update"
	OpRemove       = "remove"
	OpClear        = "clear"
	OpCheckout     = "checkout"
	OpContext      = "context"
	OpSetStock     = "set_stock"
	OpReconcile    = "reconcile"
	OpRestore      = "restore"
	OpExportImport = "export_import"
	OpAdvance      = "advance"
	OpLoad         = "load"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if _, err := engine.ParseQuantityPolicy(s.Policy); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	for i, item := range s.Catalog {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("catalog[%d]: %w", i, err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d] (%s): %w", i, step.Op, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Op {
	case OpAdd, OpRemove, OpSetStock:
		if step.Item == "" {
			return fmt.Errorf("item is required")
		}
	case OpUpdate:
		if step.Item == "" {
			return fmt.Errorf("item is required")
		}
		if step.Quantity == nil {
			return fmt.Errorf("quantity is required")
		}
	case OpAdvance:
		if _, err := config.ParseDuration(step.Duration); err != nil {
			return err
		}
	case OpRestore:
		if step.History < 0 {
			return fmt.Errorf("history index must not be negative")
		}
	case OpClear, OpCheckout, OpContext, OpReconcile, OpExportImport, OpLoad:
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
	return nil
}

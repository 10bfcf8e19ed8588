package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
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
	if s.StartDate == "" {
		return fmt.Errorf("start_date is required")
	}
	if _, err := time.Parse("2006-01-02", s.StartDate); err != nil {
		return fmt.Errorf("start_date: %w", err)
	}
	if len(s.Roster) == 0 {
		return fmt.Errorf("roster is required and must be non-empty")
	}
	for i, m := range s.Roster {
		if m.Name == "" {
			return fmt.Errorf("roster[%d]: name is required", i)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	for i, doc := range s.Remote {
		if doc.Collection == "" || doc.Doc == "" {
			return fmt.Errorf("remote[%d]: collection and doc are required", i)
		}
	}
	for i, entry := range s.Mirror {
		if entry.Key == "" {
			return fmt.Errorf("mirror[%d]: key is required", i)
		}
	}
	return nil
}

func validateStep(step Step) error {
	switch step.Action {
	case ActionSetOnline:
		return requireArg(step, "online")
	case ActionSetAuth:
		return requireArg(step, "authenticated")
	case ActionNavigate:
		if err := requireArg(step, "date"); err != nil {
			return err
		}
		date, _ := step.Args["date"].(string)
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return fmt.Errorf("action %s: date: %w", step.Action, err)
		}
		return nil
	case ActionStepDate:
		return requireArg(step, "delta")
	case ActionToggle:
		return requireArg(step, "member")
	case ActionSetTitle:
		return requireArg(step, "title")
	case ActionPushRemote:
		if err := requireArg(step, "collection"); err != nil {
			return err
		}
		return requireArg(step, "doc")
	case ActionSelectAll, ActionSave, ActionNotifyOnline, ActionNotifyVisible:
		return nil
	case "":
		return fmt.Errorf("action is required")
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func requireArg(step Step, key string) error {
	if _, ok := step.Args[key]; !ok {
		return fmt.Errorf("action %s: arg %q is required", step.Action, key)
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertQueueLen, AssertRecordCount:
		if a.Count < 0 {
			return fmt.Errorf("%s: count must not be negative", a.Type)
		}
		return nil
	case AssertPresentIDs, AssertDayTitle:
		return nil
	case AssertRemoteDoc:
		if a.Collection == "" || a.Doc == "" {
			return fmt.Errorf("remote_doc: collection and doc are required")
		}
		if !a.Absent && len(a.Expect) == 0 {
			return fmt.Errorf("remote_doc: expect is required unless absent")
		}
		return nil
	case AssertMirrorKey:
		if a.Key == "" {
			return fmt.Errorf("mirror_key: key is required")
		}
		return nil
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

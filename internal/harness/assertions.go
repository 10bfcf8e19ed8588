package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// EvaluateAssertions checks every assertion against the final state and
// returns the failure messages.
func EvaluateAssertions(h *Harness, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(h, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d] %s: %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(h *Harness, a Assertion) error {
	switch a.Type {
	case AssertQueueLen:
		if got := h.queue.Len(); got != a.Count {
			return fmt.Errorf("expected %d queued entries, got %d", a.Count, got)
		}
	case AssertRecordCount:
		if got := len(h.state.Records()); got != a.Count {
			return fmt.Errorf("expected %d cached records, got %d", a.Count, got)
		}
	case AssertPresentIDs:
		got := h.state.CurrentPresentIDs()
		slices.Sort(got)
		want := slices.Clone(a.IDs)
		slices.Sort(want)
		if !slices.Equal(got, want) {
			return fmt.Errorf("expected present ids %v, got %v", want, got)
		}
	case AssertDayTitle:
		if got := h.state.DayTitle(); got != a.Title {
			return fmt.Errorf("expected day title %q, got %q", a.Title, got)
		}
	case AssertRemoteDoc:
		doc, err := h.remote.FetchOne(context.Background(), a.Collection, a.Doc)
		if err != nil {
			return fmt.Errorf("fetch %s/%s: %w", a.Collection, a.Doc, err)
		}
		if a.Absent {
			if doc != nil {
				return fmt.Errorf("expected %s/%s to be absent, found %v", a.Collection, a.Doc, doc)
			}
			return nil
		}
		if doc == nil {
			return fmt.Errorf("expected %s/%s to exist", a.Collection, a.Doc)
		}
		return matchSubset(doc, a.Expect)
	case AssertMirrorKey:
		raw, ok := h.mirror.Get(a.Key)
		if a.Absent {
			if ok {
				return fmt.Errorf("expected mirror key %q to be absent, found %q", a.Key, raw)
			}
			return nil
		}
		if !ok {
			return fmt.Errorf("expected mirror key %q to exist", a.Key)
		}
		if len(a.Expect) > 0 {
			var doc map[string]interface{}
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				return fmt.Errorf("mirror key %q is not a JSON document: %w", a.Key, err)
			}
			return matchSubset(doc, a.Expect)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// matchSubset checks that every expected field matches the actual
// document. Only the listed fields are compared; values are normalized
// through JSON so YAML ints and decoded floats compare equal.
func matchSubset(doc map[string]interface{}, expect map[string]interface{}) error {
	for key, want := range expect {
		got, ok := doc[key]
		if !ok {
			return fmt.Errorf("field %q missing (document: %v)", key, doc)
		}
		gotJSON, err := canonicalJSON(got)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		wantJSON, err := canonicalJSON(want)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if gotJSON != wantJSON {
			return fmt.Errorf("field %q: expected %s, got %s", key, wantJSON, gotJSON)
		}
	}
	return nil
}

// canonicalJSON round-trips a value through JSON to erase type
// differences between YAML-parsed and JSON-decoded data.
func canonicalJSON(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var norm interface{}
	if err := json.Unmarshal(raw, &norm); err != nil {
		return "", err
	}
	out, err := json.Marshal(norm)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

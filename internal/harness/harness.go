// Package harness runs YAML sync scenarios end to end: a fresh mirror,
// an in-memory remote store and a real engine plus projection, driven by
// scripted connectivity changes, edits and remote pushes. Traces are
// compared against golden files for regression coverage.
package harness

import (
	"context"
	"fmt"
	"slices"
	"time"

	"choirsync/internal/domain"
	"choirsync/internal/engine"
	"choirsync/internal/mirror"
	"choirsync/internal/projection"
	"choirsync/internal/queue"
	"choirsync/internal/remote"
	"choirsync/internal/testutil"
)

// Harness holds the assembled world for one scenario run.
type Harness struct {
	mirror *mirror.Store
	queue  *queue.Queue
	remote *remote.MemoryStore
	engine *engine.Engine
	state  *projection.State
	clock  *testutil.FixedClock
}

// scenarioEpoch is the fixed wall-clock time scenarios run at, so
// updatedAt stamps are reproducible.
var scenarioEpoch = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// Run executes a scenario and returns the result. Each scenario runs in
// a fresh in-memory mirror for isolation; the event loop is processed
// synchronously after every step so traces are deterministic.
func Run(scenario *Scenario) (*Result, error) {
	m, err := mirror.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory mirror: %w", err)
	}
	defer m.Close()

	for _, entry := range scenario.Mirror {
		m.Put(entry.Key, entry.Value)
	}

	r := remote.NewMemoryStore()
	for _, doc := range scenario.Remote {
		r.Push(doc.Collection, doc.Doc, remote.Document(doc.Data))
	}
	r.Push(domain.CollectionAppData, domain.DocMembersList, rosterDocument(scenario.Roster))
	if scenario.Online != nil {
		r.SetOnline(*scenario.Online)
	}

	clock := testutil.NewFixedClock(scenarioEpoch)
	q := queue.Open(m)
	eng := engine.New(m, q, r, r, engine.WithClock(clock))
	defer eng.Stop()

	h := &Harness{
		mirror: m,
		queue:  q,
		remote: r,
		engine: eng,
		state:  projection.New(eng, m, projection.WithClock(clock)),
		clock:  clock,
	}

	ctx := context.Background()
	h.mirror.Put(mirror.KeyLastOpenedDate, scenario.StartDate)
	h.state.Start(ctx)
	h.engine.ProcessPending(ctx)

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step); err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Action, err)
		}
		h.engine.ProcessPending(ctx)
		result.Trace = append(result.Trace, h.traceEvent(i+1, step))
	}

	for _, errMsg := range EvaluateAssertions(h, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

func (h *Harness) executeStep(ctx context.Context, step Step) error {
	switch step.Action {
	case ActionSetOnline:
		online, ok := step.Args["online"].(bool)
		if !ok {
			return fmt.Errorf("arg online must be a bool")
		}
		h.remote.SetOnline(online)
	case ActionSetAuth:
		authed, ok := step.Args["authenticated"].(bool)
		if !ok {
			return fmt.Errorf("arg authenticated must be a bool")
		}
		h.remote.SetAuthenticated(authed)
	case ActionNavigate:
		date, _ := step.Args["date"].(string)
		parsed, err := time.ParseInLocation("2006-01-02", date, time.Local)
		if err != nil {
			return err
		}
		h.state.SetDate(parsed)
	case ActionStepDate:
		delta, ok := step.Args["delta"].(int)
		if !ok {
			return fmt.Errorf("arg delta must be an int")
		}
		h.state.StepDate(delta)
	case ActionToggle:
		member, _ := step.Args["member"].(string)
		h.state.ToggleMember(member)
	case ActionSelectAll:
		h.state.SelectAll()
	case ActionSetTitle:
		title, _ := step.Args["title"].(string)
		h.state.SetTitle(title)
	case ActionSave:
		h.state.SaveAttendance(ctx)
	case ActionPushRemote:
		collection, _ := step.Args["collection"].(string)
		docID, _ := step.Args["doc"].(string)
		var doc remote.Document
		if data, ok := step.Args["data"].(map[string]interface{}); ok {
			doc = remote.Document(data)
		}
		h.remote.Push(collection, docID, doc)
	case ActionNotifyOnline:
		h.engine.NotifyOnline()
	case ActionNotifyVisible:
		h.engine.NotifyVisible()
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
	return nil
}

// traceEvent snapshots the observable state after a step settled.
func (h *Harness) traceEvent(seq int, step Step) TraceEvent {
	present := h.state.CurrentPresentIDs()
	if present == nil {
		present = []string{}
	}
	slices.Sort(present)
	return TraceEvent{
		Seq:        seq,
		Action:     step.Action,
		Args:       step.Args,
		PresentIDs: present,
		QueueLen:   h.queue.Len(),
	}
}

// rosterDocument builds the members_list document for seeded rosters.
func rosterDocument(entries []RosterEntry) remote.Document {
	members := make([]domain.Member, len(entries))
	for i, e := range entries {
		members[i] = domain.Member{
			ID:           e.ID,
			Name:         e.Name,
			VoiceType:    e.Voice,
			AtCebu:       e.AtCebu,
			MostlyAbsent: e.MostlyAbsent,
		}
	}
	list := domain.MembersList{Members: domain.NormalizeRoster(members, "")}
	doc, err := list.ToDocument()
	if err != nil {
		// Seed rosters come from validated scenarios; this cannot fail
		// for JSON-representable members.
		panic(err)
	}
	return doc
}

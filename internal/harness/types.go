package harness

// Scenario is one end-to-end sync scenario loaded from YAML: an initial
// world (roster, remote documents, mirror entries, connectivity), a list
// of steps, and assertions on the final state.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// StartDate is the date the scenario opens on (YYYY-MM-DD).
	StartDate string `yaml:"start_date"`

	// Roster seeds the remote members_list document before startup.
	Roster []RosterEntry `yaml:"roster"`

	// Remote pre-seeds documents in the remote store.
	Remote []RemoteDoc `yaml:"remote,omitempty"`

	// Mirror pre-seeds raw mirror keys, for cold-cache and migration
	// scenarios.
	Mirror []MirrorEntry `yaml:"mirror,omitempty"`

	// Online is the initial connectivity. Defaults to true.
	Online *bool `yaml:"online,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// RosterEntry is one seeded member.
type RosterEntry struct {
	ID           string `yaml:"id,omitempty"`
	Name         string `yaml:"name"`
	Voice        string `yaml:"voice,omitempty"`
	AtCebu       bool   `yaml:"at_cebu,omitempty"`
	MostlyAbsent bool   `yaml:"mostly_absent,omitempty"`
}

// RemoteDoc is one pre-seeded remote document.
type RemoteDoc struct {
	Collection string                 `yaml:"collection"`
	Doc        string                 `yaml:"doc"`
	Data       map[string]interface{} `yaml:"data"`
}

// MirrorEntry is one pre-seeded mirror key.
type MirrorEntry struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Step is one scenario action. Args are action-specific.
type Step struct {
	Action string                 `yaml:"action"`
	Args   map[string]interface{} `yaml:"args,omitempty"`
}

// Step action constants.
const (
	ActionSetOnline    = "set_online"    // args: online (bool)
	ActionSetAuth      = "set_auth"      // args: authenticated (bool)
	ActionNavigate     = "navigate"      // args: date (YYYY-MM-DD)
	ActionStepDate     = "step_date"     // args: delta (int)
	ActionToggle       = "toggle"        // args: member (id)
	ActionSelectAll    = "select_all"
	ActionSetTitle     = "set_title"     // args: title (string)
	ActionSave         = "save"
	ActionPushRemote   = "push_remote"   // args: collection, doc, data (omit data for deletion)
	ActionNotifyOnline = "notify_online"
	ActionNotifyVisible = "notify_visible"
)

// Assertion checks one aspect of the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// remote_doc / mirror_key addressing.
	Collection string `yaml:"collection,omitempty"`
	Doc        string `yaml:"doc,omitempty"`
	Key        string `yaml:"key,omitempty"`

	// Expect contains expected field values (subset match).
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Absent asserts the document or key does not exist.
	Absent bool `yaml:"absent,omitempty"`

	// Count is used by queue_len and record_count.
	Count int `yaml:"count,omitempty"`

	// IDs is used by present_ids.
	IDs []string `yaml:"ids,omitempty"`

	// Title is used by day_title.
	Title string `yaml:"title,omitempty"`
}

// Assertion type constants.
const (
	AssertQueueLen    = "queue_len"
	AssertPresentIDs  = "present_ids"
	AssertDayTitle    = "day_title"
	AssertRemoteDoc   = "remote_doc"
	AssertMirrorKey   = "mirror_key"
	AssertRecordCount = "record_count"
)

// TraceEvent records one executed step plus the observable state after
// the event loop settled. The trace is what golden files snapshot.
type TraceEvent struct {
	Seq        int                    `json:"seq"`
	Action     string                 `json:"action"`
	Args       map[string]interface{} `json:"args,omitempty"`
	PresentIDs []string               `json:"present_ids"`
	QueueLen   int                    `json:"queue_len"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

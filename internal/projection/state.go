package projection

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"choirsync/internal/domain"
	"choirsync/internal/engine"
	"choirsync/internal/mirror"
	"choirsync/internal/remote"
)

// State is the application state projection.
//
// All mutations run under one mutex: engine apply callbacks arrive on the
// engine's event loop goroutine while user actions arrive from the caller.
type State struct {
	engine *engine.Engine
	mirror *mirror.Store
	clock  engine.Clock
	prefix string

	mu                sync.Mutex
	members           []domain.Member
	records           map[string]*domain.AttendanceRecord
	currentDate       time.Time
	currentPresentIDs []string
	dayTitle          string
	onChange          func()
}

// Option configures a State.
type Option func(*State)

// WithClock overrides the wall clock used for updatedAt stamping.
func WithClock(c engine.Clock) Option {
	return func(s *State) { s.clock = c }
}

// WithIDPrefix overrides the member ID prefix used at roster ingestion.
func WithIDPrefix(p string) Option {
	return func(s *State) { s.prefix = p }
}

// New creates a State over the given engine and mirror.
func New(eng *engine.Engine, m *mirror.Store, opts ...Option) *State {
	s := &State{
		engine:      eng,
		mirror:      m,
		clock:       engine.SystemClock(),
		prefix:      domain.DefaultIDPrefix,
		records:     make(map[string]*domain.AttendanceRecord),
		currentDate: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers the re-render hook, invoked after every applied
// remote change and local mutation.
func (s *State) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Start loads the record cache (running the startup migration when
// reachable), subscribes to the roster document, restores the last opened
// date and targets its live subscription.
func (s *State) Start(ctx context.Context) {
	docs := s.engine.LoadCollection(ctx, domain.CollectionAttendance)

	s.mu.Lock()
	s.records = make(map[string]*domain.AttendanceRecord, len(docs))
	for id, doc := range docs {
		rec, err := domain.RecordFromDocument(id, doc)
		if err != nil {
			slog.Warn("skipping undecodable attendance record", "doc", id, "error", err)
			continue
		}
		s.records[rec.Key()] = rec
	}
	s.recomputeStatsLocked()

	date := s.currentDate
	if saved, ok := s.mirror.Get(mirror.KeyLastOpenedDate); ok {
		if parsed, err := time.ParseInLocation("2006-01-02", saved, time.Local); err == nil {
			date = parsed
		}
	}
	s.mu.Unlock()

	// Subscriptions only deliver future changes, so the roster is loaded
	// once before listening. Loading through the collection path also
	// migrates a locally-seeded roster that never reached the remote.
	if doc, ok := s.engine.LoadCollection(ctx, domain.CollectionAppData)[domain.DocMembersList]; ok {
		s.applyRoster(doc)
	}
	s.engine.SubscribeLatest(engine.SubscriptionSpec{
		Collection: domain.CollectionAppData,
		DocID:      domain.DocMembersList,
		Apply:      s.applyRoster,
	})

	s.SetDate(date)
}

// SetDate navigates to a date: the selection is unconditionally reloaded
// from the cached record for that date (or reset to empty), the live
// subscription is retargeted, and the date is bookmarked.
func (s *State) SetDate(date time.Time) {
	key := domain.DateKey(date)

	s.mu.Lock()
	s.currentDate = date
	if rec, ok := s.records[key]; ok {
		s.currentPresentIDs = slices.Clone(rec.PresentIDs)
		s.dayTitle = rec.Title
	} else {
		s.currentPresentIDs = nil
		s.dayTitle = ""
	}
	// Per-date title override retained independently of the record.
	if s.dayTitle == "" {
		if saved, ok := s.mirror.Get(mirror.TitleKey(key)); ok {
			s.dayTitle = saved
		}
	}
	s.applySelectionLocked()
	s.mu.Unlock()

	s.mirror.Put(mirror.KeyLastOpenedDate, key)

	s.engine.SubscribeLatest(engine.SubscriptionSpec{
		Collection:  domain.CollectionAttendance,
		DocID:       key,
		Fingerprint: incomingFingerprint,
		Current:     s.currentFingerprint,
		Apply: func(doc remote.Document) {
			s.applyAttendance(key, doc)
		},
	})

	s.notify()
}

// StepDate moves to the next (delta > 0) or previous weekend day: sessions
// only happen on Saturdays (practice) and Sundays (service).
func (s *State) StepDate(delta int) {
	s.mu.Lock()
	date := s.currentDate
	s.mu.Unlock()

	step := 1
	if delta < 0 {
		step = -1
	}
	for {
		date = date.AddDate(0, 0, step)
		if wd := date.Weekday(); wd == time.Sunday || wd == time.Saturday {
			break
		}
	}
	s.SetDate(date)
}

// CurrentDate returns the currently-viewed date.
func (s *State) CurrentDate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentDate
}

// CurrentPresentIDs returns a copy of the current selection.
func (s *State) CurrentPresentIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.currentPresentIDs)
}

// DayTitle returns the current date's session title.
func (s *State) DayTitle() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dayTitle
}

// Members returns a copy of the roster.
func (s *State) Members() []domain.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.members)
}

// Records returns the cached records sorted by date key.
func (s *State) Records() []*domain.AttendanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.AttendanceRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// ToggleMember flips a member's presence on the current date.
func (s *State) ToggleMember(id string) {
	s.mu.Lock()
	if i := slices.Index(s.currentPresentIDs, id); i >= 0 {
		s.currentPresentIDs = slices.Delete(s.currentPresentIDs, i, i+1)
	} else {
		s.currentPresentIDs = append(s.currentPresentIDs, id)
	}
	s.applySelectionLocked()
	s.mu.Unlock()
	s.notify()
}

// SetPresent replaces the current selection. IDs not on the roster are
// dropped; the selection keeps roster order.
func (s *State) SetPresent(ids []string) {
	s.mu.Lock()
	s.currentPresentIDs = nil
	for _, m := range s.members {
		if slices.Contains(ids, m.ID) {
			s.currentPresentIDs = append(s.currentPresentIDs, m.ID)
		}
	}
	s.applySelectionLocked()
	s.mu.Unlock()
	s.notify()
}

// SelectAll marks every non-exempt member present on the current date.
func (s *State) SelectAll() {
	s.mu.Lock()
	s.currentPresentIDs = s.currentPresentIDs[:0]
	for _, m := range s.members {
		if !m.AtCebu {
			s.currentPresentIDs = append(s.currentPresentIDs, m.ID)
		}
	}
	s.applySelectionLocked()
	s.mu.Unlock()
	s.notify()
}

// SetTitle updates the current date's session title and persists the
// per-date override.
func (s *State) SetTitle(title string) {
	s.mu.Lock()
	s.dayTitle = title
	key := domain.DateKey(s.currentDate)
	s.mu.Unlock()

	if title == "" {
		s.mirror.Remove(mirror.TitleKey(key))
	} else {
		s.mirror.Put(mirror.TitleKey(key), title)
	}
	s.notify()
}

// SaveAttendance persists the current date's selection.
//
// A selection with no present members is a logical deletion: the record is
// purged from the cache, the mirror, the retry queue and the remote store
// rather than saved as an empty placeholder.
func (s *State) SaveAttendance(ctx context.Context) {
	s.mu.Lock()
	key := domain.DateKey(s.currentDate)
	rec := s.buildRecordLocked(key)

	if rec.IsEmpty() {
		delete(s.records, key)
		s.recomputeStatsLocked()
		s.mu.Unlock()

		slog.Info("deleting empty attendance record", "doc", key)
		s.engine.DeleteDocument(ctx, domain.CollectionAttendance, key)
		s.notify()
		return
	}

	s.records[key] = rec
	s.recomputeStatsLocked()
	s.mu.Unlock()

	doc, err := rec.ToDocument()
	if err != nil {
		slog.Warn("cannot encode attendance record", "doc", key, "error", err)
		return
	}
	s.engine.SaveDocument(ctx, domain.CollectionAttendance, key, doc)
	s.notify()
}

// buildRecordLocked assembles the full record for the current selection:
// derived absent/exempt sets, point-in-time member snapshots and the
// headline stats block.
func (s *State) buildRecordLocked(key string) *domain.AttendanceRecord {
	var present, absent, exempt []string
	snapshots := make([]domain.MemberSnapshot, 0, len(s.members))

	for _, m := range s.members {
		selected := slices.Contains(s.currentPresentIDs, m.ID)
		status := "absent"
		switch {
		case selected:
			present = append(present, m.ID)
			status = "present"
		case m.AtCebu:
			exempt = append(exempt, m.ID)
			status = "exempt"
		default:
			absent = append(absent, m.ID)
		}

		snapshots = append(snapshots, domain.MemberSnapshot{
			ID:    m.ID,
			Name:  m.Name,
			Voice: m.VoiceType,
			Labels: domain.SnapshotLabels{
				AtCebu:       m.AtCebu,
				MostlyAbsent: m.MostlyAbsent,
				IsLeader:     m.IsLeader,
				IsDirector:   m.IsDirector,
			},
			Status: status,
		})
	}

	return &domain.AttendanceRecord{
		ID:         key,
		Date:       key,
		Title:      s.dayTitle,
		PresentIDs: present,
		AbsentIDs:  absent,
		ExemptIDs:  exempt,
		Members:    snapshots,
		Stats: &domain.RecordStats{
			Present: len(present),
			Absent:  len(absent),
			Exempt:  len(exempt),
		},
		UpdatedAt: engine.Timestamp(s.clock.Now()),
	}
}

// applyAttendance handles an authoritative remote record for the given
// date key (nil means deleted remotely).
func (s *State) applyAttendance(key string, doc remote.Document) {
	s.mu.Lock()
	if doc == nil {
		slog.Info("remote record removed, resetting local state", "doc", key)
		delete(s.records, key)
		if domain.DateKey(s.currentDate) == key {
			s.currentPresentIDs = nil
			s.dayTitle = ""
			s.applySelectionLocked()
		}
		s.recomputeStatsLocked()
		s.mu.Unlock()
		s.notify()
		return
	}

	rec, err := domain.RecordFromDocument(key, doc)
	if err != nil {
		slog.Warn("dropping undecodable remote record", "doc", key, "error", err)
		s.mu.Unlock()
		return
	}

	s.records[rec.Key()] = rec
	if domain.DateKey(s.currentDate) == rec.Key() {
		s.currentPresentIDs = slices.Clone(rec.PresentIDs)
		s.dayTitle = rec.Title
		s.applySelectionLocked()
	}
	s.recomputeStatsLocked()
	s.mu.Unlock()
	s.notify()
}

// applyRoster handles an authoritative roster document.
func (s *State) applyRoster(doc remote.Document) {
	if doc == nil {
		slog.Warn("roster document absent remotely; keeping current roster")
		return
	}
	list, err := domain.MembersListFromDocument(doc)
	if err != nil {
		slog.Warn("dropping undecodable roster document", "error", err)
		return
	}

	s.mu.Lock()
	s.members = domain.NormalizeRoster(list.Members, s.prefix)
	s.applySelectionLocked()
	s.recomputeStatsLocked()
	s.mu.Unlock()
	s.notify()
}

// SetMemberAtCebu updates a member's exemption flag and saves the roster.
// The flags are mutually exclusive; see domain.Member.
func (s *State) SetMemberAtCebu(ctx context.Context, id string, v bool) {
	s.updateMember(ctx, id, func(m *domain.Member) { m.SetAtCebu(v) })
}

// SetMemberMostlyAbsent updates a member's mostly-absent flag and saves
// the roster.
func (s *State) SetMemberMostlyAbsent(ctx context.Context, id string, v bool) {
	s.updateMember(ctx, id, func(m *domain.Member) { m.SetMostlyAbsent(v) })
}

func (s *State) updateMember(ctx context.Context, id string, mutate func(*domain.Member)) {
	s.mu.Lock()
	found := false
	for i := range s.members {
		if s.members[i].ID == id {
			mutate(&s.members[i])
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return
	}
	list := domain.MembersList{
		Members:   slices.Clone(s.members),
		UpdatedAt: engine.Timestamp(s.clock.Now()),
	}
	s.recomputeStatsLocked()
	s.mu.Unlock()

	doc, err := list.ToDocument()
	if err != nil {
		slog.Warn("cannot encode roster", "error", err)
		return
	}
	s.engine.SaveDocument(ctx, domain.CollectionAppData, domain.DocMembersList, doc)
	s.notify()
}

// SeedRoster installs a roster when none exists remotely, writing it
// through the engine so it reaches the remote store (or the queue).
func (s *State) SeedRoster(ctx context.Context, members []domain.Member) {
	s.mu.Lock()
	s.members = domain.NormalizeRoster(members, s.prefix)
	list := domain.MembersList{
		Members:   slices.Clone(s.members),
		UpdatedAt: engine.Timestamp(s.clock.Now()),
	}
	s.recomputeStatsLocked()
	s.mu.Unlock()

	doc, err := list.ToDocument()
	if err != nil {
		slog.Warn("cannot encode roster", "error", err)
		return
	}
	s.engine.SaveDocument(ctx, domain.CollectionAppData, domain.DocMembersList, doc)
	s.notify()
}

// currentFingerprint is the CurrentState hook for the flicker shield.
func (s *State) currentFingerprint() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp := domain.RecordFingerprint(s.currentPresentIDs, s.dayTitle)
	empty := len(s.currentPresentIDs) == 0 && s.dayTitle == ""
	return fp, empty
}

// incomingFingerprint computes the canonical form of an incoming push.
func incomingFingerprint(doc remote.Document) string {
	rec, err := domain.RecordFromDocument("incoming", doc)
	if err != nil {
		return ""
	}
	return rec.Fingerprint()
}

// applySelectionLocked projects currentPresentIDs onto member Selected
// flags. Callers must hold s.mu.
func (s *State) applySelectionLocked() {
	for i := range s.members {
		s.members[i].Selected = slices.Contains(s.currentPresentIDs, s.members[i].ID)
	}
}

func (s *State) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

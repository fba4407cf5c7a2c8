// Package session holds the per-user scenario editing state machine.
//
// A Session is either idle (NoScenario), editing a scenario that does not
// exist yet (EditingNew), editing a stored scenario (EditingExisting), or
// viewing a stored scenario without tracking edits (ViewOnly). Saving passes
// through Saved and immediately returns to NoScenario.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"optiguide/internal/model"
	"optiguide/internal/store"
)

type State string

const (
	NoScenario      State = "no_scenario"
	EditingNew      State = "editing_new"
	EditingExisting State = "editing_existing"
	ViewOnly        State = "view_only"
	Saved           State = "saved"
)

// Editing reports whether changes are buffered in this state.
func (s State) Editing() bool { return s == EditingNew || s == EditingExisting }

// ErrNotEditing is returned by Save outside an editing state.
var ErrNotEditing = errors.New("session is not editing a scenario")

// ValidationError reports a missing or bad request field. Nothing has been
// written when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }

// Persister is the part of the store a session saves through.
type Persister interface {
	SaveScenario(ctx context.Context, req store.SaveRequest) (model.Scenario, error)
}

// Session is the explicit per-user state. It is serialized to the session
// backend between requests.
type Session struct {
	ID           string         `json:"id"`
	State        State          `json:"state"`
	ScenarioID   int64          `json:"scenario_id,omitempty"`
	ScenarioName string         `json:"scenario_name,omitempty"`
	ScenarioType string         `json:"scenario_type,omitempty"`
	Changes      []model.Change `json:"changes"`
	UpdatedAt    time.Time      `json:"updated_at"`

	onTransition func(s *Session, from, to State)
}

func newSession(id string) *Session {
	return &Session{ID: id, State: NoScenario, Changes: []model.Change{}, UpdatedAt: time.Now().UTC()}
}

func (s *Session) transition(to State) {
	from := s.State
	s.State = to
	s.UpdatedAt = time.Now().UTC()
	if s.onTransition != nil {
		s.onTransition(s, from, to)
	}
}

// Start begins editing a scenario that will be created on save.
func (s *Session) Start(name, typ string) {
	s.ScenarioID = 0
	s.ScenarioName = strings.TrimSpace(name)
	s.ScenarioType = typ
	s.Changes = []model.Change{}
	s.transition(EditingNew)
}

// StartExisting begins editing sc with an empty buffer; saving replaces
// whatever sc had stored.
func (s *Session) StartExisting(sc model.Scenario) {
	s.ScenarioID = sc.ID
	s.ScenarioName = sc.Name
	s.ScenarioType = sc.Type
	s.Changes = []model.Change{}
	s.transition(EditingExisting)
}

// Edit continues editing sc, re-hydrating the buffer from its stored
// overrides. Any buffer for a previous scenario is dropped.
func (s *Session) Edit(sc model.Scenario, stored []model.Override) {
	s.ScenarioID = sc.ID
	s.ScenarioName = sc.Name
	s.ScenarioType = sc.Type
	s.Changes = make([]model.Change, 0, len(stored))
	for _, o := range stored {
		s.Changes = append(s.Changes, model.ChangeFromOverride(o))
	}
	s.transition(EditingExisting)
}

// Load opens scenarioID for viewing. The buffer is cleared and later edits
// are ignored until the session enters an editing state.
func (s *Session) Load(sc model.Scenario) {
	s.ScenarioID = sc.ID
	s.ScenarioName = sc.Name
	s.ScenarioType = sc.Type
	s.Changes = []model.Change{}
	s.transition(ViewOnly)
}

// Apply appends changes to the buffer while editing and reports whether they
// were taken.
func (s *Session) Apply(changes ...model.Change) bool {
	if !s.State.Editing() {
		return false
	}
	s.Changes = append(s.Changes, changes...)
	s.UpdatedAt = time.Now().UTC()
	return true
}

// Pending returns the buffer as override rows for the active scenario.
func (s *Session) Pending() []model.Override {
	out := make([]model.Override, 0, len(s.Changes))
	for _, c := range s.Changes {
		out = append(out, c.AsOverride(s.ScenarioID))
	}
	return out
}

// Save persists the buffer as the scenario's complete override set. name and
// typ, when set, override what Start recorded. On success the session passes
// through Saved and is reset.
func (s *Session) Save(ctx context.Context, p Persister, name, typ string) (model.Scenario, error) {
	if !s.State.Editing() {
		return model.Scenario{}, ErrNotEditing
	}
	if n := strings.TrimSpace(name); n != "" {
		s.ScenarioName = n
	}
	if typ != "" {
		s.ScenarioType = typ
	}
	if s.State == EditingNew && s.ScenarioName == "" {
		return model.Scenario{}, &ValidationError{Field: "scenario_name", Reason: "required for a new scenario"}
	}
	sc, err := p.SaveScenario(ctx, store.SaveRequest{
		ScenarioID: s.ScenarioID,
		Name:       s.ScenarioName,
		Type:       s.ScenarioType,
		Overrides:  s.Pending(),
	})
	if err != nil {
		return model.Scenario{}, err
	}
	s.ScenarioID = sc.ID
	s.transition(Saved)
	s.Reset()
	return sc, nil
}

// Reset returns to NoScenario with an empty buffer.
func (s *Session) Reset() {
	s.ScenarioID = 0
	s.ScenarioName = ""
	s.ScenarioType = ""
	s.Changes = []model.Change{}
	s.transition(NoScenario)
}

func (s *Session) clone() *Session {
	c := *s
	c.Changes = append([]model.Change{}, s.Changes...)
	return &c
}

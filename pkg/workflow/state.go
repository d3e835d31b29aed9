// Package workflow drives the scan, search, select and navigate sequence.
//
// Transition is a pure function of (Session, Event) returning the next
// Session and the effects to run. Controller owns the single event loop that
// applies transitions and executes effects against the camera, decoder,
// directory, presenter and view.
package workflow

import (
	"fmt"

	"github.com/1F47E/qr-navigator/pkg/models"
)

// DefaultTrigger is the payload that reveals the destination menu
const DefaultTrigger = "DEST_MENU"

// State is the workflow phase
type State int

const (
	Idle State = iota
	Scanning
	MenuRevealed
	Searching
	DestinationChosen
	NavigationShown
)

var stateNames = [...]string{
	Idle:              "idle",
	Scanning:          "scanning",
	MenuRevealed:      "menu-revealed",
	Searching:         "searching",
	DestinationChosen: "destination-chosen",
	NavigationShown:   "navigation-shown",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState is the inverse of State.String
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return Idle, fmt.Errorf("unknown state %q", name)
}

// Session is the whole state of one scan-to-navigate session
type Session struct {
	ID           string
	State        State
	Trigger      string
	Scan         models.ScanSession
	Query        models.DestinationQuery
	Destinations []string
	// Listed is the query Destinations answers, set once its results apply
	Listed string
	// Pending is the destination whose lookup is in flight
	Pending string
	// Target is nil until a lookup succeeds
	Target    *models.Vec3
	Line      models.LineState
	UserStart models.Vec3

	searchGen uint64
	lookupGen uint64
}

// NewSession creates an idle session. An empty trigger selects DefaultTrigger.
func NewSession(id string, userStart models.Vec3, trigger string) Session {
	if trigger == "" {
		trigger = DefaultTrigger
	}
	return Session{
		ID:        id,
		State:     Idle,
		Trigger:   trigger,
		UserStart: userStart,
	}
}

// MenuRevealed reports whether the search field and list are visible
func (s Session) MenuRevealed() bool {
	return s.State >= MenuRevealed
}

// Clone returns a deep copy
func (s Session) Clone() Session {
	out := s
	out.Destinations = append([]string(nil), s.Destinations...)
	out.Line.Corners = append([]models.Vec3(nil), s.Line.Corners...)
	if s.Target != nil {
		t := *s.Target
		out.Target = &t
	}
	return out
}

// Event is an input to Transition
type Event interface {
	isEvent()
}

// StartScan is the scan button press
type StartScan struct{}

// CancelScan closes an open scan without a match
type CancelScan struct{}

// FrameDecoded is the decoder result for one polled frame
type FrameDecoded struct {
	Text string
	OK   bool
}

// InputChanged is a settled edit of the search field
type InputChanged struct {
	Text string
}

// SearchCompleted carries a directory search result
type SearchCompleted struct {
	Generation uint64
	Query      string
	Names      []string
	Err        error
}

// DestinationSelected is a pick from the destination list
type DestinationSelected struct {
	Index int
}

// LookupCompleted carries a directory lookup result
type LookupCompleted struct {
	Generation uint64
	Name       string
	Target     models.Vec3
	Err        error
}

// PathPresented carries the presenter output
type PathPresented struct {
	Line     models.LineState
	Overview *models.Pose
}

func (StartScan) isEvent()           {}
func (CancelScan) isEvent()          {}
func (FrameDecoded) isEvent()        {}
func (InputChanged) isEvent()        {}
func (SearchCompleted) isEvent()     {}
func (DestinationSelected) isEvent() {}
func (LookupCompleted) isEvent()     {}
func (PathPresented) isEvent()       {}

// Effect is an action requested by Transition
type Effect interface {
	isEffect()
}

// OpenCamera opens the frame source and starts the scan task
type OpenCamera struct{}

// CloseCamera stops the scan task and closes the frame source
type CloseCamera struct{}

// ShowPreview toggles the live preview
type ShowPreview struct {
	Visible bool
}

// RevealMenu shows the search field and destination list
type RevealMenu struct{}

// IssueSearch queries the directory
type IssueSearch struct {
	Generation uint64
	Text       string
}

// SetDestinations replaces the list contents. Nil clears it.
type SetDestinations struct {
	Names []string
}

// IssueLookup fetches a destination coordinate
type IssueLookup struct {
	Generation uint64
	Name       string
}

// PresentPath asks the presenter for the next line state
type PresentPath struct {
	Target models.Vec3
	Start  models.Vec3
	Prev   models.LineState
}

// DrawLine renders the line state
type DrawLine struct {
	Line models.LineState
}

// MoveOverview repositions the overview camera
type MoveOverview struct {
	Pose models.Pose
}

// Level is the severity of a Report
type Level int

const (
	LevelDebug Level = iota
	LevelError
)

// Report is a diagnostic line
type Report struct {
	Level Level
	Msg   string
	Err   error
}

func (OpenCamera) isEffect()      {}
func (CloseCamera) isEffect()     {}
func (ShowPreview) isEffect()     {}
func (RevealMenu) isEffect()      {}
func (IssueSearch) isEffect()     {}
func (SetDestinations) isEffect() {}
func (IssueLookup) isEffect()     {}
func (PresentPath) isEffect()     {}
func (DrawLine) isEffect()        {}
func (MoveOverview) isEffect()    {}
func (Report) isEffect()          {}

func debugf(format string, args ...interface{}) []Effect {
	return []Effect{Report{Level: LevelDebug, Msg: fmt.Sprintf(format, args...)}}
}

func failure(err error, format string, args ...interface{}) []Effect {
	return []Effect{Report{Level: LevelError, Msg: fmt.Sprintf(format, args...), Err: err}}
}

// Transition applies ev to s
func Transition(s Session, ev Event) (Session, []Effect) {
	switch e := ev.(type) {
	case StartScan:
		if s.State != Idle {
			return s, debugf("start scan ignored in state %s", s.State)
		}
		s.State = Scanning
		s.Scan = models.ScanSession{Scanning: true}
		return s, []Effect{OpenCamera{}, ShowPreview{Visible: true}}

	case CancelScan:
		if s.State != Scanning {
			return s, nil
		}
		s.State = Idle
		s.Scan = models.ScanSession{}
		return s, []Effect{CloseCamera{}, ShowPreview{Visible: false}}

	case FrameDecoded:
		if s.State != Scanning || !s.Scan.Scanning || !e.OK {
			return s, nil
		}
		if e.Text != s.Trigger {
			s.Scan.LastDecoded = e.Text
			return s, debugf("ignoring payload %q", e.Text)
		}
		s.State = MenuRevealed
		s.Scan = models.ScanSession{LastDecoded: e.Text}
		return s, []Effect{CloseCamera{}, ShowPreview{Visible: false}, RevealMenu{}}

	case InputChanged:
		if !s.MenuRevealed() {
			return s, debugf("input ignored before menu is revealed")
		}
		s.Query = models.DestinationQuery{RawInput: e.Text}
		// advancing the generation also invalidates in-flight searches on clear
		s.searchGen++
		if e.Text == "" {
			s.Destinations = nil
			s.Listed = ""
			if s.State == Searching {
				s.State = MenuRevealed
			}
			return s, []Effect{SetDestinations{Names: nil}}
		}
		s.State = Searching
		return s, []Effect{IssueSearch{Generation: s.searchGen, Text: e.Text}}

	case SearchCompleted:
		if e.Generation != s.searchGen {
			return s, debugf("dropping stale search result for %q", e.Query)
		}
		if e.Err != nil {
			return s, failure(e.Err, "error fetching destinations for %q", e.Query)
		}
		s.Destinations = e.Names
		s.Listed = e.Query
		return s, []Effect{SetDestinations{Names: e.Names}}

	case DestinationSelected:
		if !s.MenuRevealed() {
			return s, nil
		}
		if e.Index < 0 || e.Index >= len(s.Destinations) {
			return s, failure(nil, "selection %d out of range (%d destinations)", e.Index, len(s.Destinations))
		}
		name := s.Destinations[e.Index]
		s.lookupGen++
		s.Pending = name
		return s, []Effect{IssueLookup{Generation: s.lookupGen, Name: name}}

	case LookupCompleted:
		if e.Generation != s.lookupGen {
			return s, debugf("dropping stale lookup result for %q", e.Name)
		}
		s.Pending = ""
		if e.Err != nil {
			return s, failure(e.Err, "error fetching target position for %q", e.Name)
		}
		target := e.Target
		s.Target = &target
		s.State = DestinationChosen
		return s, []Effect{PresentPath{Target: target, Start: s.UserStart, Prev: s.Line}}

	case PathPresented:
		s.Line = e.Line
		effects := []Effect{DrawLine{Line: e.Line}}
		if !e.Line.Visible {
			s.State = DestinationChosen
			return s, effects
		}
		s.State = NavigationShown
		if e.Overview != nil {
			effects = append(effects, MoveOverview{Pose: *e.Overview})
		}
		return s, effects
	}

	return s, debugf("unhandled event %T", ev)
}

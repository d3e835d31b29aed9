package workflow

import (
	"errors"
	"testing"

	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apply(s Session, events ...Event) (Session, []Effect) {
	var effects []Effect
	for _, ev := range events {
		var out []Effect
		s, out = Transition(s, ev)
		effects = append(effects, out...)
	}
	return s, effects
}

func revealed(t *testing.T) Session {
	t.Helper()
	s, _ := apply(NewSession("test", models.Vec3{}, ""), StartScan{}, FrameDecoded{Text: DefaultTrigger, OK: true})
	require.Equal(t, MenuRevealed, s.State)
	return s
}

func hasErrorReport(effects []Effect) bool {
	for _, e := range effects {
		if r, ok := e.(Report); ok && r.Level == LevelError {
			return true
		}
	}
	return false
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "navigation-shown", NavigationShown.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestParseState(t *testing.T) {
	for _, st := range []State{Idle, Scanning, MenuRevealed, Searching, DestinationChosen, NavigationShown} {
		got, err := ParseState(st.String())
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
	_, err := ParseState("flying")
	assert.Error(t, err)
}

func TestStartScan(t *testing.T) {
	s, effects := Transition(NewSession("a", models.Vec3{}, ""), StartScan{})
	assert.Equal(t, Scanning, s.State)
	assert.True(t, s.Scan.Scanning)
	assert.Equal(t, []Effect{OpenCamera{}, ShowPreview{Visible: true}}, effects)

	// a second press while scanning opens nothing
	s, effects = Transition(s, StartScan{})
	assert.Equal(t, Scanning, s.State)
	assert.NotContains(t, effects, OpenCamera{})
}

func TestCancelScan(t *testing.T) {
	s, _ := apply(NewSession("a", models.Vec3{}, ""), StartScan{})
	s, effects := Transition(s, CancelScan{})
	assert.Equal(t, Idle, s.State)
	assert.False(t, s.Scan.Scanning)
	assert.Equal(t, []Effect{CloseCamera{}, ShowPreview{Visible: false}}, effects)

	s, effects = Transition(s, CancelScan{})
	assert.Equal(t, Idle, s.State)
	assert.Empty(t, effects)
}

func TestFrameDecoded(t *testing.T) {
	testCases := []struct {
		name      string
		frame     FrameDecoded
		wantState State
	}{
		{"trigger", FrameDecoded{Text: DefaultTrigger, OK: true}, MenuRevealed},
		{"other payload", FrameDecoded{Text: "https://example.com", OK: true}, Scanning},
		{"case differs", FrameDecoded{Text: "dest_menu", OK: true}, Scanning},
		{"miss", FrameDecoded{}, Scanning},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := apply(NewSession("a", models.Vec3{}, ""), StartScan{})
			s, effects := Transition(s, tc.frame)
			assert.Equal(t, tc.wantState, s.State)
			if tc.wantState == MenuRevealed {
				assert.False(t, s.Scan.Scanning)
				assert.Equal(t, []Effect{CloseCamera{}, ShowPreview{Visible: false}, RevealMenu{}}, effects)
			} else {
				assert.True(t, s.Scan.Scanning)
				assert.NotContains(t, effects, RevealMenu{})
			}
		})
	}
}

func TestFrameDecodedWhileIdle(t *testing.T) {
	s, effects := Transition(NewSession("a", models.Vec3{}, ""), FrameDecoded{Text: DefaultTrigger, OK: true})
	assert.Equal(t, Idle, s.State)
	assert.Empty(t, effects)
}

func TestCustomTrigger(t *testing.T) {
	s, _ := apply(NewSession("a", models.Vec3{}, "LOBBY"), StartScan{}, FrameDecoded{Text: DefaultTrigger, OK: true})
	assert.Equal(t, Scanning, s.State)

	s, _ = Transition(s, FrameDecoded{Text: "LOBBY", OK: true})
	assert.Equal(t, MenuRevealed, s.State)
}

func TestInputBeforeMenu(t *testing.T) {
	s, effects := Transition(NewSession("a", models.Vec3{}, ""), InputChanged{Text: "Room"})
	assert.Equal(t, Idle, s.State)
	assert.Empty(t, s.Query.RawInput)
	assert.False(t, hasErrorReport(effects))
	for _, e := range effects {
		_, isSearch := e.(IssueSearch)
		assert.False(t, isSearch)
	}
}

func TestInputIssuesSearch(t *testing.T) {
	s := revealed(t)

	s, effects := Transition(s, InputChanged{Text: "Lib"})
	assert.Equal(t, Searching, s.State)
	assert.Equal(t, "Lib", s.Query.RawInput)
	require.Len(t, effects, 1)
	first := effects[0].(IssueSearch)
	assert.Equal(t, "Lib", first.Text)

	s, effects = Transition(s, InputChanged{Text: "Libr"})
	second := effects[0].(IssueSearch)
	assert.Greater(t, second.Generation, first.Generation)

	s, effects = Transition(s, SearchCompleted{Generation: second.Generation, Query: "Libr", Names: []string{"Library A"}})
	assert.Equal(t, []string{"Library A"}, s.Destinations)
	assert.Equal(t, []Effect{SetDestinations{Names: []string{"Library A"}}}, effects)
}

func TestEmptyInputClears(t *testing.T) {
	s := revealed(t)
	s, effects := apply(s, InputChanged{Text: "Lib"})
	search := effects[0].(IssueSearch)
	s, _ = Transition(s, SearchCompleted{Generation: search.Generation, Query: "Lib", Names: []string{"Library A", "Library B"}})
	require.Len(t, s.Destinations, 2)

	s, effects = Transition(s, InputChanged{Text: ""})
	assert.Equal(t, MenuRevealed, s.State)
	assert.Empty(t, s.Destinations)
	assert.Equal(t, []Effect{SetDestinations{Names: nil}}, effects)

	// the in-flight answer for the old text no longer applies
	s, _ = Transition(s, SearchCompleted{Generation: search.Generation, Query: "Lib", Names: []string{"Library A"}})
	assert.Empty(t, s.Destinations)
}

func TestStaleSearchDropped(t *testing.T) {
	s := revealed(t)
	s, effects := Transition(s, InputChanged{Text: "Lib"})
	slow := effects[0].(IssueSearch)
	s, effects = Transition(s, InputChanged{Text: "Room"})
	fast := effects[0].(IssueSearch)

	s, _ = Transition(s, SearchCompleted{Generation: fast.Generation, Query: "Room", Names: []string{"Room 101"}})
	s, effects = Transition(s, SearchCompleted{Generation: slow.Generation, Query: "Lib", Names: []string{"Library A"}})
	assert.Equal(t, []string{"Room 101"}, s.Destinations)
	for _, e := range effects {
		_, isSet := e.(SetDestinations)
		assert.False(t, isSet)
	}
}

func TestSearchFailureKeepsList(t *testing.T) {
	s := revealed(t)
	s, effects := Transition(s, InputChanged{Text: "Room"})
	gen := effects[0].(IssueSearch).Generation
	s, _ = Transition(s, SearchCompleted{Generation: gen, Query: "Room", Names: []string{"Room 101"}})

	s, effects = Transition(s, InputChanged{Text: "Roo"})
	gen = effects[0].(IssueSearch).Generation
	s, effects = Transition(s, SearchCompleted{Generation: gen, Query: "Roo", Err: errors.New("connection refused")})
	assert.Equal(t, []string{"Room 101"}, s.Destinations)
	assert.True(t, hasErrorReport(effects))
}

func TestEmptyResultMarksListed(t *testing.T) {
	s := revealed(t)
	s, effects := Transition(s, InputChanged{Text: "Zoo"})
	gen := effects[0].(IssueSearch).Generation
	assert.Empty(t, s.Listed)

	s, effects = Transition(s, SearchCompleted{Generation: gen, Query: "Zoo", Names: []string{}})
	assert.Equal(t, "Zoo", s.Listed)
	assert.Empty(t, s.Destinations)
	assert.Equal(t, []Effect{SetDestinations{Names: []string{}}}, effects)

	s, _ = Transition(s, InputChanged{Text: ""})
	assert.Empty(t, s.Listed)
}

func withList(t *testing.T, names ...string) Session {
	t.Helper()
	s := revealed(t)
	s, effects := Transition(s, InputChanged{Text: "x"})
	gen := effects[0].(IssueSearch).Generation
	s, _ = Transition(s, SearchCompleted{Generation: gen, Query: "x", Names: names})
	return s
}

func TestSelection(t *testing.T) {
	s := withList(t, "Room 101", "Room 102")

	s, effects := Transition(s, DestinationSelected{Index: 1})
	require.Len(t, effects, 1)
	lookup := effects[0].(IssueLookup)
	assert.Equal(t, "Room 102", lookup.Name)
	assert.Equal(t, "Room 102", s.Pending)

	testCases := []int{-1, 2, 99}
	for _, idx := range testCases {
		next, effects := Transition(s, DestinationSelected{Index: idx})
		assert.True(t, hasErrorReport(effects), "index %d", idx)
		assert.Equal(t, s, next)
	}
}

func TestLookupPresents(t *testing.T) {
	s := withList(t, "Room 101")
	s.UserStart = models.Vec3{X: 0.5}
	s, effects := Transition(s, DestinationSelected{Index: 0})
	gen := effects[0].(IssueLookup).Generation

	target := models.Vec3{X: 1, Z: 2}
	s, effects = Transition(s, LookupCompleted{Generation: gen, Name: "Room 101", Target: target})
	assert.Equal(t, DestinationChosen, s.State)
	require.NotNil(t, s.Target)
	assert.Equal(t, target, *s.Target)
	assert.Empty(t, s.Pending)
	assert.Equal(t, []Effect{PresentPath{Target: target, Start: models.Vec3{X: 0.5}}}, effects)
}

func TestLookupFailureNoChange(t *testing.T) {
	s := withList(t, "Room 101")
	s, effects := Transition(s, DestinationSelected{Index: 0})
	gen := effects[0].(IssueLookup).Generation
	before := s.State

	s, effects = Transition(s, LookupCompleted{Generation: gen, Name: "Room 101", Err: errors.New("404")})
	assert.Equal(t, before, s.State)
	assert.Nil(t, s.Target)
	assert.True(t, hasErrorReport(effects))
	for _, e := range effects {
		_, isPresent := e.(PresentPath)
		assert.False(t, isPresent)
	}
}

func TestStaleLookupDropped(t *testing.T) {
	s := withList(t, "Room 101", "Library A")
	s, effects := Transition(s, DestinationSelected{Index: 0})
	first := effects[0].(IssueLookup)
	s, effects = Transition(s, DestinationSelected{Index: 1})
	second := effects[0].(IssueLookup)

	s, effects = Transition(s, LookupCompleted{Generation: first.Generation, Name: first.Name, Target: models.Vec3{X: 1}})
	assert.Nil(t, s.Target)
	assert.Equal(t, "Library A", s.Pending)

	s, _ = Transition(s, LookupCompleted{Generation: second.Generation, Name: second.Name, Target: models.Vec3{X: 4}})
	require.NotNil(t, s.Target)
	assert.Equal(t, models.Vec3{X: 4}, *s.Target)
}

func TestPathPresented(t *testing.T) {
	s := withList(t, "Room 101")
	pose := models.Pose{Position: models.Vec3{Y: 10}}
	line := models.LineState{
		Visible:   true,
		Corners:   []models.Vec3{{}, {X: 1, Z: 2}},
		Target:    models.Vec3{X: 1, Z: 2},
		HasTarget: true,
	}

	s, effects := Transition(s, PathPresented{Line: line, Overview: &pose})
	assert.Equal(t, NavigationShown, s.State)
	assert.Equal(t, line, s.Line)
	assert.Equal(t, []Effect{DrawLine{Line: line}, MoveOverview{Pose: pose}}, effects)

	hidden := line
	hidden.Visible = false
	s, effects = Transition(s, PathPresented{Line: hidden})
	assert.Equal(t, DestinationChosen, s.State)
	assert.Equal(t, []Effect{DrawLine{Line: hidden}}, effects)
}

func TestClone(t *testing.T) {
	s := withList(t, "Room 101")
	target := models.Vec3{X: 1}
	s.Target = &target
	s.Line.Corners = []models.Vec3{{X: 1}}

	c := s.Clone()
	c.Destinations[0] = "changed"
	c.Line.Corners[0].X = 9
	c.Target.X = 9
	assert.Equal(t, "Room 101", s.Destinations[0])
	assert.Equal(t, 1.0, s.Line.Corners[0].X)
	assert.Equal(t, 1.0, s.Target.X)
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/1F47E/qr-navigator/pkg/camera"
	"github.com/1F47E/qr-navigator/pkg/decoder"
	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/google/uuid"
)

// DefaultScanInterval is the delay between decode attempts
const DefaultScanInterval = 500 * time.Millisecond

const eventBuffer = 64

// ErrNotRunning is returned when posting to a controller whose loop has exited
var ErrNotRunning = errors.New("workflow: controller not running")

// ErrAlreadyRun is returned by a second call to Run
var ErrAlreadyRun = errors.New("workflow: controller already run")

// Directory resolves destination names and coordinates
type Directory interface {
	Search(ctx context.Context, text string) ([]string, error)
	Lookup(ctx context.Context, name string) (models.Vec3, error)
}

// PathPresenter computes the line state following a selection
type PathPresenter interface {
	Present(prev models.LineState, target, start models.Vec3) (models.LineState, *models.Pose)
}

// Config tunes a controller
type Config struct {
	Trigger      string
	ScanInterval time.Duration
	UserStart    models.Vec3
	Debounce     time.Duration
	Verbose      bool
}

// Deps are the collaborators a controller drives
type Deps struct {
	Source    camera.Source
	Decoder   decoder.Decoder
	Directory Directory
	Presenter PathPresenter
	View      View
	Logger    *log.Logger
}

// Controller runs one session. All transitions happen on the goroutine
// executing Run.
type Controller struct {
	cfg    Config
	deps   Deps
	logger *log.Logger
	search *SearchAdapter

	events  chan Event
	stopped chan struct{}
	ran     atomic.Bool

	mu       sync.RWMutex
	session  Session
	onChange func(Session)

	// owned by the loop goroutine
	ctx        context.Context
	scanCancel context.CancelFunc
	tasks      sync.WaitGroup
}

// NewController creates a controller with a fresh session id
func NewController(cfg Config, deps Deps) *Controller {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = DefaultScanInterval
	}
	if deps.View == nil {
		deps.View = NopView{}
	}
	base := deps.Logger
	if base == nil {
		base = log.New(io.Discard, "", 0)
	}

	id := uuid.NewString()
	c := &Controller{
		cfg:     cfg,
		deps:    deps,
		logger:  log.New(base.Writer(), fmt.Sprintf("%s[%s] ", base.Prefix(), id[:8]), base.Flags()),
		events:  make(chan Event, eventBuffer),
		stopped: make(chan struct{}),
		session: NewSession(id, cfg.UserStart, cfg.Trigger),
	}
	c.search = NewSearchAdapter(cfg.Debounce, func(text string) {
		c.post(InputChanged{Text: text})
	})
	return c
}

// OnChange registers fn to receive a snapshot after every event. It must be
// called before Run and must not block.
func (c *Controller) OnChange(fn func(Session)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Snapshot returns a copy of the current session
func (c *Controller) Snapshot() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Clone()
}

// Logger returns the session logger
func (c *Controller) Logger() *log.Logger {
	return c.logger
}

// StartScan requests a scan
func (c *Controller) StartScan() error {
	return c.post(StartScan{})
}

// CancelScan abandons an open scan
func (c *Controller) CancelScan() error {
	return c.post(CancelScan{})
}

// InputChanged feeds a search field edit through the debounce adapter
func (c *Controller) InputChanged(text string) {
	c.search.Changed(text)
}

// Select picks the destination at index in the current list
func (c *Controller) Select(index int) error {
	return c.post(DestinationSelected{Index: index})
}

func (c *Controller) post(ev Event) error {
	select {
	case <-c.stopped:
		return ErrNotRunning
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.stopped:
		return ErrNotRunning
	}
}

// postFrom delivers an event from a background task, giving up when ctx ends
func (c *Controller) postFrom(ctx context.Context, ev Event) {
	select {
	case c.events <- ev:
	case <-ctx.Done():
	case <-c.stopped:
	}
}

// Run processes events until ctx is cancelled. A controller runs once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	c.ctx = ctx
	c.logger.Printf("session started, trigger %q", c.Snapshot().Trigger)
	defer func() {
		close(c.stopped)
		c.search.Stop()
		c.stopScan()
		c.tasks.Wait()
		c.logger.Printf("session ended")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.dispatch(ev)
		}
	}
}

// dispatch applies ev and every synchronous follow-up event it produces
func (c *Controller) dispatch(ev Event) {
	queue := []Event{ev}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		c.mu.Lock()
		prevState := c.session.State
		s, effects := Transition(c.session, next)
		c.session = s
		onChange := c.onChange
		c.mu.Unlock()

		if s.State != prevState {
			c.debugf("state %s -> %s", prevState, s.State)
		}
		for _, eff := range effects {
			queue = append(queue, c.execute(eff)...)
		}
		if onChange != nil {
			onChange(s.Clone())
		}
	}
}

func (c *Controller) execute(eff Effect) []Event {
	switch e := eff.(type) {
	case OpenCamera:
		if err := c.startScan(); err != nil {
			c.logger.Printf("error: %v", err)
			return []Event{CancelScan{}}
		}
	case CloseCamera:
		c.stopScan()
	case ShowPreview:
		c.deps.View.ShowPreview(e.Visible)
	case RevealMenu:
		c.deps.View.RevealMenu()
	case SetDestinations:
		c.deps.View.SetDestinations(e.Names)
	case IssueSearch:
		c.issueSearch(e)
	case IssueLookup:
		c.issueLookup(e)
	case PresentPath:
		line, pose := c.deps.Presenter.Present(e.Prev, e.Target, e.Start)
		return []Event{PathPresented{Line: line, Overview: pose}}
	case DrawLine:
		c.deps.View.DrawLine(e.Line)
	case MoveOverview:
		c.deps.View.MoveOverview(e.Pose)
	case Report:
		c.report(e)
	}
	return nil
}

func (c *Controller) report(r Report) {
	if r.Level == LevelDebug {
		c.debugf("%s", r.Msg)
		return
	}
	if r.Err != nil {
		c.logger.Printf("error: %s: %v", r.Msg, r.Err)
		return
	}
	c.logger.Printf("error: %s", r.Msg)
}

func (c *Controller) debugf(format string, args ...interface{}) {
	if c.cfg.Verbose {
		c.logger.Printf("debug: "+format, args...)
	}
}

func (c *Controller) startScan() error {
	if c.deps.Source == nil || c.deps.Decoder == nil {
		return errors.New("no camera configured")
	}
	if err := c.deps.Source.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.scanCancel = cancel
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		c.scanLoop(ctx)
	}()
	c.logger.Printf("scanning every %s", c.cfg.ScanInterval)
	return nil
}

func (c *Controller) stopScan() {
	if c.scanCancel == nil {
		return
	}
	c.scanCancel()
	c.scanCancel = nil
	if err := c.deps.Source.Close(); err != nil {
		c.logger.Printf("error: close camera: %v", err)
	}
}

// scanLoop decodes one frame per tick, starting immediately
func (c *Controller) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		if text, ok := c.grab(); ok {
			c.postFrom(ctx, FrameDecoded{Text: text, OK: true})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *Controller) grab() (string, bool) {
	frame, err := c.deps.Source.Frame()
	if err != nil {
		if !errors.Is(err, camera.ErrClosed) {
			c.debugf("frame: %v", err)
		}
		return "", false
	}
	if frame == nil {
		return "", false
	}
	return c.deps.Decoder.Decode(frame)
}

func (c *Controller) issueSearch(e IssueSearch) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		start := time.Now()
		names, err := c.deps.Directory.Search(c.ctx, e.Text)
		c.debugf("search %q: %d results in %v", e.Text, len(names), time.Since(start))
		c.postFrom(c.ctx, SearchCompleted{Generation: e.Generation, Query: e.Text, Names: names, Err: err})
	}()
}

func (c *Controller) issueLookup(e IssueLookup) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		pos, err := c.deps.Directory.Lookup(c.ctx, e.Name)
		if err == nil {
			c.logger.Printf("target %q at %s", e.Name, pos)
		}
		c.postFrom(c.ctx, LookupCompleted{Generation: e.Generation, Name: e.Name, Target: pos, Err: err})
	}()
}

package workflow

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/draw"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/1F47E/qr-navigator/pkg/camera"
	"github.com/1F47E/qr-navigator/pkg/decoder"
	"github.com/1F47E/qr-navigator/pkg/directory"
	"github.com/1F47E/qr-navigator/pkg/models"
	"github.com/1F47E/qr-navigator/pkg/navmesh"
	"github.com/1F47E/qr-navigator/pkg/presenter"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recordingView struct {
	mu       sync.Mutex
	previews []bool
	reveals  int
	lists    [][]string
	lines    []models.LineState
	poses    []models.Pose
}

func (v *recordingView) ShowPreview(visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.previews = append(v.previews, visible)
}

func (v *recordingView) RevealMenu() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reveals++
}

func (v *recordingView) SetDestinations(names []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lists = append(v.lists, names)
}

func (v *recordingView) DrawLine(line models.LineState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lines = append(v.lines, line)
}

func (v *recordingView) MoveOverview(pose models.Pose) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.poses = append(v.poses, pose)
}

func (v *recordingView) snapshot() (reveals int, poses int, lines []models.LineState) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reveals, len(v.poses), append([]models.LineState(nil), v.lines...)
}

// fixedDecoder reports text for every frame
type fixedDecoder struct {
	text string
}

func (d fixedDecoder) Decode(frame image.Image) (string, bool) {
	return d.text, frame != nil
}

// fakeDirectory answers from a map and can hold searches until released
type fakeDirectory struct {
	mu       sync.Mutex
	searches []string
	lookups  []string
	results  map[string][]string
	targets  map[string]models.Vec3
	gates    map[string]chan struct{}
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		results: map[string][]string{"Room": {"Room 101"}, "Lib": {"Library A", "Library B"}},
		targets: map[string]models.Vec3{"Room 101": {X: 1, Z: 2}},
		gates:   map[string]chan struct{}{},
	}
}

func (d *fakeDirectory) hold(query string) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{})
	d.gates[query] = ch
	return ch
}

func (d *fakeDirectory) Search(ctx context.Context, text string) ([]string, error) {
	d.mu.Lock()
	d.searches = append(d.searches, text)
	gate := d.gates[text]
	names := d.results[text]
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (d *fakeDirectory) Lookup(ctx context.Context, name string) (models.Vec3, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups = append(d.lookups, name)
	pos, ok := d.targets[name]
	if !ok {
		return models.Vec3{}, directory.ErrNotFound
	}
	return pos, nil
}

func (d *fakeDirectory) searchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.searches)
}

type failingSource struct{}

func (failingSource) Open() error                 { return errors.New("no device") }
func (failingSource) Frame() (image.Image, error) { return nil, camera.ErrClosed }
func (failingSource) Close() error                { return nil }

type harness struct {
	ctrl *Controller
	view *recordingView
	logs *syncBuffer
}

func start(t *testing.T, cfg Config, deps Deps) *harness {
	t.Helper()
	h := &harness{view: &recordingView{}, logs: &syncBuffer{}}
	if cfg.ScanInterval == 0 {
		cfg.ScanInterval = tick
	}
	if deps.View == nil {
		deps.View = h.view
	}
	if deps.Presenter == nil {
		deps.Presenter = presenter.New(presenter.Straight{}, presenter.ToggleOnReselect, presenter.DefaultOverviewOffset, navmesh.AllAreas)
	}
	if deps.Source == nil {
		deps.Source = camera.NewSequenceSource(image.NewGray(image.Rect(0, 0, 1, 1)))
	}
	if deps.Decoder == nil {
		deps.Decoder = fixedDecoder{text: DefaultTrigger}
	}
	deps.Logger = log.New(h.logs, "", 0)
	h.ctrl = NewController(cfg, deps)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.ctrl.Snapshot().State == want
	}, waitFor, tick, "state never reached %s (at %s)", want, h.ctrl.Snapshot().State)
}

func (h *harness) reveal(t *testing.T) {
	t.Helper()
	require.NoError(t, h.ctrl.StartScan())
	h.waitState(t, MenuRevealed)
}

func encodeQR(t *testing.T, text string) image.Image {
	t.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 240, 240, nil)
	require.NoError(t, err)
	img := image.NewRGBA(image.Rect(0, 0, 240, 240))
	draw.Draw(img, img.Bounds(), matrix, image.Point{}, draw.Src)
	return img
}

func TestEndToEnd(t *testing.T) {
	store := directory.NewMemoryStore(
		directory.Destination{Name: "Room 101", Position: models.Vec3{X: 1, Y: 0, Z: 2}},
		directory.Destination{Name: "Library A", Position: models.Vec3{X: 4, Y: 0, Z: 9}},
	)
	srv := httptest.NewServer(directory.NewServer(store, "", log.New(&bytes.Buffer{}, "", 0)).Router())
	defer srv.Close()

	client, err := directory.NewClient(srv.URL + directory.DefaultPath)
	require.NoError(t, err)

	source := camera.NewSequenceSource(
		image.NewGray(image.Rect(0, 0, 64, 64)),
		encodeQR(t, "https://example.com/other"),
		encodeQR(t, DefaultTrigger),
	)
	userStart := models.Vec3{X: 0, Y: 0, Z: 0}
	h := start(t, Config{UserStart: userStart}, Deps{
		Source:    source,
		Decoder:   decoder.NewQRDecoder(decoder.DefaultOptions()),
		Directory: client,
	})

	h.reveal(t)
	require.Eventually(t, func() bool { return !source.IsOpen() }, waitFor, tick, "camera closes once the trigger is read")
	assert.Equal(t, DefaultTrigger, h.ctrl.Snapshot().Scan.LastDecoded)

	h.ctrl.InputChanged("Room")
	require.Eventually(t, func() bool {
		return len(h.ctrl.Snapshot().Destinations) == 1
	}, waitFor, tick)
	assert.Equal(t, []string{"Room 101"}, h.ctrl.Snapshot().Destinations)

	require.NoError(t, h.ctrl.Select(0))
	h.waitState(t, NavigationShown)

	s := h.ctrl.Snapshot()
	assert.True(t, s.Line.Visible)
	assert.Equal(t, []models.Vec3{userStart, {X: 1, Y: 0, Z: 2}}, s.Line.Corners)
	require.NotNil(t, s.Target)
	assert.Equal(t, models.Vec3{X: 1, Y: 0, Z: 2}, *s.Target)

	require.Eventually(t, func() bool {
		reveals, poses, _ := h.view.snapshot()
		return reveals == 1 && poses == 1
	}, waitFor, tick)

	// selecting the shown destination again hides the line
	require.NoError(t, h.ctrl.Select(0))
	h.waitState(t, DestinationChosen)
	assert.False(t, h.ctrl.Snapshot().Line.Visible)
	require.Eventually(t, func() bool {
		_, _, lines := h.view.snapshot()
		return len(lines) == 2 && lines[1].Renderable() == nil
	}, waitFor, tick)
}

func TestNonTriggerKeepsScanning(t *testing.T) {
	h := start(t, Config{}, Deps{Decoder: fixedDecoder{text: "SOMETHING_ELSE"}, Directory: newFakeDirectory()})

	require.NoError(t, h.ctrl.StartScan())
	h.waitState(t, Scanning)
	require.Eventually(t, func() bool {
		return h.ctrl.Snapshot().Scan.LastDecoded == "SOMETHING_ELSE"
	}, waitFor, tick)

	time.Sleep(5 * tick)
	assert.Equal(t, Scanning, h.ctrl.Snapshot().State)

	require.NoError(t, h.ctrl.CancelScan())
	h.waitState(t, Idle)
}

func TestCameraOpenFailure(t *testing.T) {
	h := start(t, Config{}, Deps{Source: failingSource{}, Directory: newFakeDirectory()})

	require.NoError(t, h.ctrl.StartScan())
	require.Eventually(t, func() bool {
		return strings.Contains(h.logs.String(), "open camera: no device")
	}, waitFor, tick)
	h.waitState(t, Idle)
}

func TestEmptyInputNoNetwork(t *testing.T) {
	dir := newFakeDirectory()
	h := start(t, Config{}, Deps{Directory: dir})
	h.reveal(t)

	h.ctrl.InputChanged("Lib")
	require.Eventually(t, func() bool {
		return len(h.ctrl.Snapshot().Destinations) == 2
	}, waitFor, tick)

	h.ctrl.InputChanged("")
	require.Eventually(t, func() bool {
		return len(h.ctrl.Snapshot().Destinations) == 0
	}, waitFor, tick)
	assert.Equal(t, MenuRevealed, h.ctrl.Snapshot().State)
	assert.Equal(t, 1, dir.searchCount())
}

func TestNoMatchesSettles(t *testing.T) {
	dir := newFakeDirectory()
	h := start(t, Config{}, Deps{Directory: dir})
	h.reveal(t)

	h.ctrl.InputChanged("Zoo")
	require.Eventually(t, func() bool {
		return h.ctrl.Snapshot().Listed == "Zoo"
	}, waitFor, tick)
	assert.Empty(t, h.ctrl.Snapshot().Destinations)
}

func TestStaleResponseDropped(t *testing.T) {
	dir := newFakeDirectory()
	release := dir.hold("Lib")
	h := start(t, Config{Verbose: true}, Deps{Directory: dir})
	h.reveal(t)

	h.ctrl.InputChanged("Lib")
	require.Eventually(t, func() bool { return dir.searchCount() == 1 }, waitFor, tick)
	h.ctrl.InputChanged("Room")
	require.Eventually(t, func() bool {
		return len(h.ctrl.Snapshot().Destinations) == 1
	}, waitFor, tick)

	close(release)
	require.Eventually(t, func() bool {
		return strings.Contains(h.logs.String(), `dropping stale search result for "Lib"`)
	}, waitFor, tick)
	assert.Equal(t, []string{"Room 101"}, h.ctrl.Snapshot().Destinations)
}

func TestDebouncedInput(t *testing.T) {
	dir := newFakeDirectory()
	h := start(t, Config{Debounce: 20 * time.Millisecond}, Deps{Directory: dir})
	h.reveal(t)

	for _, text := range []string{"R", "Ro", "Roo", "Room"} {
		h.ctrl.InputChanged(text)
	}
	require.Eventually(t, func() bool {
		return len(h.ctrl.Snapshot().Destinations) == 1
	}, waitFor, tick)
	assert.Equal(t, 1, dir.searchCount())
}

func TestLookupFailureLogged(t *testing.T) {
	dir := newFakeDirectory()
	dir.results["Gone"] = []string{"Gone"}
	h := start(t, Config{}, Deps{Directory: dir})
	h.reveal(t)

	h.ctrl.InputChanged("Gone")
	require.Eventually(t, func() bool {
		return len(h.ctrl.Snapshot().Destinations) == 1
	}, waitFor, tick)

	require.NoError(t, h.ctrl.Select(0))
	require.Eventually(t, func() bool {
		return strings.Contains(h.logs.String(), `error fetching target position for "Gone"`)
	}, waitFor, tick)

	s := h.ctrl.Snapshot()
	assert.Equal(t, Searching, s.State)
	assert.Nil(t, s.Target)
	assert.False(t, s.Line.Visible)
}

func TestSelectOutOfRange(t *testing.T) {
	h := start(t, Config{}, Deps{Directory: newFakeDirectory()})
	h.reveal(t)

	require.NoError(t, h.ctrl.Select(3))
	require.Eventually(t, func() bool {
		return strings.Contains(h.logs.String(), "selection 3 out of range")
	}, waitFor, tick)
	assert.Equal(t, MenuRevealed, h.ctrl.Snapshot().State)
}

func TestSessionPrefix(t *testing.T) {
	h := start(t, Config{}, Deps{Directory: newFakeDirectory()})
	id := h.ctrl.Snapshot().ID
	require.Len(t, id, 36)
	require.Eventually(t, func() bool {
		return strings.Contains(h.logs.String(), "["+id[:8]+"] session started")
	}, waitFor, tick)
}

func TestPostAfterStop(t *testing.T) {
	c := NewController(Config{}, Deps{Directory: newFakeDirectory()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Run(ctx), context.Canceled)
	assert.ErrorIs(t, c.StartScan(), ErrNotRunning)
	assert.ErrorIs(t, c.Select(0), ErrNotRunning)
}

func TestRunOnce(t *testing.T) {
	c := NewController(Config{}, Deps{Directory: newFakeDirectory()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Run(ctx), context.Canceled)
	assert.NotPanics(t, func() {
		assert.ErrorIs(t, c.Run(context.Background()), ErrAlreadyRun)
	})
}

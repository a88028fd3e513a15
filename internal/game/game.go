// Package game drives the state machine from ebiten's frame loop and draws
// the stimuli.
package game

import (
	"context"
	"fmt"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/aforren1/replan-2finger/internal/clock"
	"github.com/aforren1/replan-2finger/internal/input"
	"github.com/aforren1/replan-2finger/internal/machine"
)

type Window struct {
	Title      string
	Width      int
	Height     int
	Fullscreen bool
	Debug      bool
}

type Deps struct {
	Machine      *machine.Machine
	Frames       *clock.Frames
	Clock        clock.Clock
	Presentation Presentation
	Device       input.Device
	Buffer       *input.Buffer
	Logger       *zap.Logger
	// Context is cancelled, with the failure as its cause, when a
	// background input reader stops.
	Context context.Context
}

// Game runs one tick of the experiment per displayed frame.
type Game struct {
	Deps
	window  Window
	session machine.Session
	drawn   bool
	started time.Time
}

func New(deps Deps, window Window) *Game {
	return &Game{
		Deps:    deps,
		window:  window,
		session: machine.NewSession(),
		started: time.Now(),
	}
}

// NewKeyboard returns a device reading the keys of layout in order.
func NewKeyboard(layout string, clk clock.Clock) (input.Device, error) {
	return newKeyboard(layout, clk)
}

// Session is the state after the last tick.
func (g *Game) Session() machine.Session { return g.session }

func (g *Game) Update() error {
	if err := g.inputFailure(); err != nil {
		g.Logger.Error("Input failed", zap.Error(err), zap.Stringer("phase", g.session.Phase))
		return err
	}

	// Update runs once per refresh, so the frame drawn last time has just
	// been presented.
	if g.drawn {
		g.Frames.Commit(g.Clock.Now())
		g.session = g.Machine.Flipped(g.session)
		g.drawn = false
	}

	sample, ok := g.Device.Read()
	reading := g.Buffer.Update(sample, ok)
	g.Presentation.SetInput(reading.Active)

	s, err := g.Machine.Tick(g.session, reading, g.aborted())
	if err != nil {
		g.Logger.Error("Session stopped", zap.Error(err), zap.Stringer("phase", g.session.Phase))
		return err
	}
	g.session = s
	if s.Phase.Terminal() {
		return ebiten.Termination
	}
	return nil
}

func (g *Game) inputFailure() error {
	if g.Context == nil {
		return nil
	}
	select {
	case <-g.Context.Done():
		return errors.Wrap(context.Cause(g.Context), "input device")
	default:
		return nil
	}
}

// aborted reports an escape key, any mouse click or a request to close the
// window.
func (g *Game) aborted() bool {
	return inpututil.IsKeyJustPressed(ebiten.KeyEscape) ||
		inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) ||
		inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) ||
		ebiten.IsWindowBeingClosed()
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.Presentation.Draw(screen)
	if g.window.Debug {
		status := fmt.Sprintf("%s | trial %d | %.1f Hz | %s",
			g.session.Phase, g.session.TrialIndex,
			1/g.Frames.FramePeriod(), formatDuration(time.Since(g.started)))
		ebitenutil.DebugPrintAt(screen, status, 12, 12)
	}
	g.drawn = true
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

// Run opens the window and blocks until the session reaches cleanup or
// fails.
func Run(g *Game) error {
	ebiten.SetWindowSize(g.window.Width, g.window.Height)
	ebiten.SetWindowTitle(g.window.Title)
	ebiten.SetFullscreen(g.window.Fullscreen)
	ebiten.SetWindowClosingHandled(true)
	ebiten.SetCursorMode(ebiten.CursorModeHidden)
	ebiten.SetVsyncEnabled(true)
	ebiten.SetTPS(ebiten.SyncWithFPS)

	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

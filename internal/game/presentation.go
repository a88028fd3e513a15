package game

import (
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/aforren1/replan-2finger/internal/machine"
	"github.com/aforren1/replan-2finger/internal/trial"
)

// debug font cell
const (
	charWidth  = 6
	lineHeight = 16
)

var (
	background   = rgb(-1, -1, -1)
	neutral      = rgb(0, 0, 0)
	white        = rgb(1, 1, 1)
	correctFill  = rgb(-0.3, 0.7, -0.3)
	wrongFill    = rgb(0.7, -0.3, -0.3)
	goodText     = rgb(-1, 1, 0.2)
	badText      = rgb(1, -1, -1)
	fingerTarget = rgb(0.3, -0.2, -0.2)
)

// Presentation is a stimulus variant the driver can draw.
type Presentation interface {
	machine.Presentation
	// SetInput colours the input indicator.
	SetInput(active bool)
	Draw(screen *ebiten.Image)
}

// FingerNames lists ids 0-9 from the left pinky to the right pinky.
var FingerNames = []string{
	"left pinky", "left ring", "left middle", "left index", "left thumb",
	"right thumb", "right index", "right middle", "right ring", "right pinky",
}

// Prompt is the start screen text naming the fingers the table uses.
func Prompt(table *trial.Table) string {
	var names []string
	for _, id := range table.FirstStimuli() {
		if id >= 0 && id < len(FingerNames) {
			names = append(names, FingerNames[id])
		}
	}
	return "Press a key to start.\nKeys are:\n" + strings.Join(names, ", ")
}

// view maps coordinates in units of screen height, origin at the centre
// and y up, onto pixels.
type view struct {
	w, h float64
}

func viewOf(screen *ebiten.Image) view {
	b := screen.Bounds()
	return view{w: float64(b.Dx()), h: float64(b.Dy())}
}

func (v view) point(x, y float64) (float32, float32) {
	return float32(v.w/2 + x*v.h), float32(v.h/2 - y*v.h)
}

func (v view) length(l float64) float32 { return float32(l * v.h) }

// label caches the rendered image of a block of debug-font text.
type label struct {
	text string
	img  *ebiten.Image
}

func (l *label) set(text string) {
	if text == l.text {
		return
	}
	l.text = text
	if l.img != nil {
		l.img.Deallocate()
		l.img = nil
	}
}

// draw centres the text on (x, y) in view units; size is the line height
// in the same units.
func (l *label) draw(dst *ebiten.Image, v view, x, y, size float64, clr color.Color) {
	if l.text == "" {
		return
	}
	lines := strings.Split(l.text, "\n")
	if l.img == nil {
		cols := 0
		for _, line := range lines {
			cols = max(cols, len(line))
		}
		l.img = ebiten.NewImage(cols*charWidth, len(lines)*lineHeight)
		for i, line := range lines {
			ebitenutil.DebugPrintAt(l.img, line, (cols-len(line))*charWidth/2, i*lineHeight)
		}
	}
	b := l.img.Bounds()
	scale := size * v.h / lineHeight
	px, py := v.point(x, y)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(float64(px)-float64(b.Dx())*scale/2, float64(py)-float64(b.Dy())*scale/2)
	op.ColorScale.ScaleWithColor(clr)
	dst.DrawImage(l.img, op)
}

// scene holds what both variants share: the start prompt, fixation, the
// input indicator and the timing message.
type scene struct {
	prompt       label
	message      label
	messageColor color.Color
	started      bool
	active       bool
}

func (s *scene) Begin() { s.started = true }

func (s *scene) SetInput(active bool) { s.active = active }

func (s *scene) showTiming(t machine.Timing) {
	switch t {
	case machine.OnTime:
		s.message.set("Good timing!")
		s.messageColor = goodText
	case machine.TooFast:
		s.message.set("Too fast.")
		s.messageColor = badText
	default:
		s.message.set("Too slow.")
		s.messageColor = badText
	}
}

func (s *scene) clear() { s.message.set("") }

func (s *scene) draw(screen *ebiten.Image, v view) {
	screen.Fill(background)
	if !s.started {
		s.prompt.draw(screen, v, 0, 0, 0.05, white)
		return
	}
	dot := background
	if s.active {
		dot = neutral
	}
	x, y := v.point(0, 0)
	vector.DrawFilledCircle(screen, x, y, v.length(0.05), dot, true)
	vector.DrawFilledCircle(screen, x, y, v.length(0.025), white, true)
	// text sits at 0.4 of the half height above centre
	s.message.draw(screen, v, 0, 0.2, 0.05, s.messageColor)
}

// TwoChoice shows a square on the left or right. The larger stimulus id of
// the table is the right side.
type TwoChoice struct {
	scene
	right   int
	visible [2]bool
	fill    color.Color
}

func NewTwoChoice(table *trial.Table) *TwoChoice {
	p := &TwoChoice{right: table.MaxStimulus(), fill: neutral}
	p.prompt.set(Prompt(table))
	return p
}

func (p *TwoChoice) side(id int) int {
	if id == p.right {
		return 1
	}
	return 0
}

func (p *TwoChoice) ShowFirst(spec trial.Spec) {
	p.visible[p.side(spec.First)] = true
}

func (p *TwoChoice) ShowSecond(spec trial.Spec) {
	p.visible[p.side(spec.First)] = false
	p.visible[p.side(spec.Second)] = true
}

func (p *TwoChoice) ShowFeedback(correct bool, timing machine.Timing) {
	p.fill = wrongFill
	if correct {
		p.fill = correctFill
	}
	p.showTiming(timing)
}

func (p *TwoChoice) Reset() {
	p.visible = [2]bool{}
	p.fill = neutral
	p.clear()
}

func (p *TwoChoice) Draw(screen *ebiten.Image) {
	v := viewOf(screen)
	p.draw(screen, v)
	if !p.started {
		return
	}
	const size = 0.5
	for i, x := range []float64{-0.6, 0.6} {
		if !p.visible[i] {
			continue
		}
		px, py := v.point(x-size/2, size/2)
		vector.DrawFilledRect(screen, px, py, v.length(size), v.length(size), p.fill, false)
	}
}

// fingerPositions are the fingertips of two hands, left pinky to right
// pinky.
var fingerPositions = func() [][2]float64 {
	right := [][2]float64{{0.3075, -0.1525}, {0.1775, -0.06125}, {0.14375, 0.02375}, {0.1775, 0.0925}, {0.2475, 0.1525}}
	out := make([][2]float64, 0, 2*len(right))
	for i := len(right) - 1; i >= 0; i-- {
		out = append(out, [2]float64{-right[i][0], right[i][1]})
	}
	return append(out, right...)
}()

// MultiChoice marks one fingertip at a time on an outline of both hands.
// Stimulus ids index the fingertips directly.
type MultiChoice struct {
	scene
	target int
	fill   color.Color
}

func NewMultiChoice(table *trial.Table) *MultiChoice {
	p := &MultiChoice{target: -1, fill: fingerTarget}
	p.prompt.set(Prompt(table))
	return p
}

func (p *MultiChoice) ShowFirst(spec trial.Spec) { p.target = spec.First }

func (p *MultiChoice) ShowSecond(spec trial.Spec) { p.target = spec.Second }

func (p *MultiChoice) ShowFeedback(correct bool, timing machine.Timing) {
	p.fill = wrongFill
	if correct {
		p.fill = correctFill
	}
	p.showTiming(timing)
}

func (p *MultiChoice) Reset() {
	p.target = -1
	p.fill = fingerTarget
	p.clear()
}

func (p *MultiChoice) Draw(screen *ebiten.Image) {
	v := viewOf(screen)
	p.draw(screen, v)
	if !p.started {
		return
	}
	for i, pos := range fingerPositions {
		x, y := v.point(pos[0], pos[1])
		if i == p.target {
			vector.DrawFilledCircle(screen, x, y, v.length(0.025), p.fill, true)
			continue
		}
		vector.StrokeCircle(screen, x, y, v.length(0.025), 1, neutral, true)
	}
}

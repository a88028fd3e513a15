package game

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/pkg/errors"

	"github.com/aforren1/replan-2finger/internal/clock"
	"github.com/aforren1/replan-2finger/internal/input"
)

var letterKeys = map[rune]ebiten.Key{
	'a': ebiten.KeyA, 'b': ebiten.KeyB, 'c': ebiten.KeyC, 'd': ebiten.KeyD,
	'e': ebiten.KeyE, 'f': ebiten.KeyF, 'g': ebiten.KeyG, 'h': ebiten.KeyH,
	'i': ebiten.KeyI, 'j': ebiten.KeyJ, 'k': ebiten.KeyK, 'l': ebiten.KeyL,
	'm': ebiten.KeyM, 'n': ebiten.KeyN, 'o': ebiten.KeyO, 'p': ebiten.KeyP,
	'q': ebiten.KeyQ, 'r': ebiten.KeyR, 's': ebiten.KeyS, 't': ebiten.KeyT,
	'u': ebiten.KeyU, 'v': ebiten.KeyV, 'w': ebiten.KeyW, 'x': ebiten.KeyX,
	'y': ebiten.KeyY, 'z': ebiten.KeyZ,
}

// keyboard reports key transitions polled once per Update. Key i of the
// layout is response channel i.
type keyboard struct {
	keys  []ebiten.Key
	clock clock.Clock
}

func newKeyboard(layout string, clk clock.Clock) (*keyboard, error) {
	k := &keyboard{clock: clk}
	for _, r := range layout {
		key, ok := letterKeys[r]
		if !ok {
			return nil, errors.Errorf("no key for %q in layout %q", r, layout)
		}
		k.keys = append(k.keys, key)
	}
	return k, nil
}

func (k *keyboard) Read() (input.Sample, bool) {
	var changes []input.KeyChange
	for i, key := range k.keys {
		switch {
		case inpututil.IsKeyJustPressed(key):
			changes = append(changes, input.KeyChange{Index: i, Pressed: true})
		case inpututil.IsKeyJustReleased(key):
			changes = append(changes, input.KeyChange{Index: i, Pressed: false})
		}
	}
	if len(changes) == 0 {
		return nil, false
	}
	return input.Keyboard{Timestamp: k.clock.Now(), Changes: changes}, true
}

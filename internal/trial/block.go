package trial

import (
	"encoding/csv"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/pkg/errors"
)

// BlockOptions describes a generated block. Switch times are drawn as whole
// frames between MinTime and MaxTime at FrameRate.
type BlockOptions struct {
	Trials     int
	PropSwitch float64
	MinTime    float64
	MaxTime    float64
	FrameRate  float64
	Practice   bool
}

func DefaultBlockOptions() BlockOptions {
	return BlockOptions{
		Trials:     120,
		PropSwitch: 0.35,
		MinTime:    0.1,
		MaxTime:    0.45,
		FrameRate:  60,
		Practice:   true,
	}
}

func (o BlockOptions) split() (switches, others int) {
	switches = int(float64(o.Trials) * o.PropSwitch)
	return switches, o.Trials - switches
}

func (o BlockOptions) switchTimes(rng *rand.Rand, n int) []float64 {
	minFrames := int(o.MinTime * o.FrameRate)
	maxFrames := int(o.MaxTime * o.FrameRate)
	out := make([]float64, n)
	for i := range out {
		frames := minFrames + rng.IntN(maxFrames-minFrames+1)
		out[i] = float64(frames) / o.FrameRate
	}
	return out
}

func (o BlockOptions) validate() error {
	if o.Trials <= 0 {
		return errors.New("trials must be positive")
	}
	if o.PropSwitch < 0 || o.PropSwitch > 1 {
		return errors.Errorf("switch proportion %v outside [0, 1]", o.PropSwitch)
	}
	if o.FrameRate <= 0 {
		return errors.New("frame rate must be positive")
	}
	if o.MaxTime < o.MinTime {
		return errors.New("max switch time below min switch time")
	}
	return nil
}

// MakeBlock builds a two-stimulus block: half the switch trials go a→b, half
// b→a, and the rest repeat a or b. Four practice repeats lead the block.
func MakeBlock(pair [2]int, o BlockOptions, rng *rand.Rand) ([]Spec, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	switches, others := o.split()
	if switches%2 != 0 {
		return nil, errors.New("switch trials must split evenly between both directions")
	}
	a, b := pair[0], pair[1]
	times := o.switchTimes(rng, switches)

	var specs []Spec
	for i := 0; i < switches/2; i++ {
		specs = append(specs, Spec{First: a, Second: b, SwitchTime: times[i]})
		specs = append(specs, Spec{First: b, Second: a, SwitchTime: times[switches/2+i]})
	}
	for i := 0; i < others/2; i++ {
		specs = append(specs, Spec{First: a, Second: a}, Spec{First: b, Second: b})
	}
	rng.Shuffle(len(specs), func(i, j int) { specs[i], specs[j] = specs[j], specs[i] })

	if !o.Practice {
		return specs, nil
	}
	practice := []Spec{{First: a, Second: a}, {First: b, Second: b}, {First: a, Second: a}, {First: b, Second: b}}
	return append(practice, specs...), nil
}

// MakeMultiBlock builds a block over every ordered pair of combo. Repeat
// pairs share the non-switch trials and the remaining pairs share the switch
// trials; one practice repeat per finger leads the block.
func MakeMultiBlock(combo []int, o BlockOptions, rng *rand.Rand) ([]Spec, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	if len(combo) < 2 {
		return nil, errors.New("need at least two stimuli")
	}
	switches, others := o.split()
	matching := len(combo)
	notMatching := len(combo)*len(combo) - matching
	if switches%notMatching != 0 {
		return nil, errors.Errorf("%d switch trials do not split evenly over %d pairs", switches, notMatching)
	}
	times := o.switchTimes(rng, switches)

	var specs []Spec
	used := 0
	for _, a := range combo {
		for _, b := range combo {
			if a == b {
				for i := 0; i < others/matching; i++ {
					specs = append(specs, Spec{First: a, Second: b})
				}
				continue
			}
			for i := 0; i < switches/notMatching; i++ {
				specs = append(specs, Spec{First: a, Second: b, SwitchTime: times[used]})
				used++
			}
		}
	}
	rng.Shuffle(len(specs), func(i, j int) { specs[i], specs[j] = specs[j], specs[i] })

	if !o.Practice {
		return specs, nil
	}
	practice := make([]Spec, 0, len(combo))
	for _, c := range combo {
		practice = append(practice, Spec{First: c, Second: c})
	}
	return append(practice, specs...), nil
}

// Write emits specs as a CSV trial table.
func Write(w io.Writer, specs []Spec) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, s := range specs {
		err := cw.Write([]string{
			strconv.FormatFloat(float64(s.First), 'f', 4, 64),
			strconv.FormatFloat(float64(s.Second), 'f', 4, 64),
			strconv.FormatFloat(s.SwitchTime, 'f', 4, 64),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

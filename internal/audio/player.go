// Package audio plays the rendered metronome and reward through the system
// speaker.
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/aforren1/replan-2finger/internal/metronome"
)

type Config struct {
	SampleRate int
	// BufferSize is the speaker buffer length in seconds.
	BufferSize float64
	// Latency is how much of the start of every sound to skip so that the
	// audible onset lines up with the frame that started it.
	Latency float64
	// RewardFile optionally replaces the synthesised reward chime.
	RewardFile string
}

type Player struct {
	format    beep.Format
	metronome *beep.Buffer
	reward    *beep.Buffer
	lastClick float64
	skip      int
	tap       *metronome.Tap
	log       *zap.Logger
}

func NewPlayer(cfg Config, clicks metronome.Options, log *zap.Logger) (*Player, error) {
	sr := beep.SampleRate(cfg.SampleRate)
	if err := speaker.Init(sr, sr.N(seconds(cfg.BufferSize))); err != nil {
		return nil, errors.Wrap(err, "init speaker")
	}

	p := &Player{
		format:    metronome.Format(sr),
		metronome: metronome.Render(sr, clicks),
		reward:    metronome.Reward(sr),
		lastClick: clicks.LastClickOffset(),
		skip:      sr.N(seconds(cfg.Latency)),
		log:       log,
	}
	if cfg.RewardFile != "" {
		buf, err := load(cfg.RewardFile, p.format)
		if err != nil {
			return nil, err
		}
		p.reward = buf
	}
	log.Info("Audio ready",
		zap.Int("sample_rate", cfg.SampleRate),
		zap.Float64("latency", cfg.Latency),
		zap.Float64("last_click", p.lastClick))
	return p, nil
}

func (p *Player) PlayMetronome() {
	p.tap = metronome.NewTap(p.from(p.metronome))
	speaker.Clear()
	speaker.Play(p.tap)
}

func (p *Player) PlayReward() {
	speaker.Play(p.from(p.reward))
}

func (p *Player) LastClickOffset() float64 { return p.lastClick }

// Position is how much of the current click train has been handed to the
// output, in seconds.
func (p *Player) Position() float64 {
	if p.tap == nil {
		return 0
	}
	return float64(p.tap.Streamed()+p.skip) / float64(p.format.SampleRate)
}

func (p *Player) Close() {
	speaker.Clear()
	speaker.Close()
}

func (p *Player) from(buf *beep.Buffer) beep.Streamer {
	skip := p.skip
	if skip > buf.Len() {
		skip = buf.Len()
	}
	return buf.Streamer(skip, buf.Len())
}

// load decodes an audio file into a buffer at format's sample rate.
func load(path string, format beep.Format) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open reward sound")
	}
	defer f.Close()

	var (
		streamer beep.StreamSeekCloser
		src      beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		streamer, src, err = wav.Decode(f)
	case ".mp3":
		streamer, src, err = mp3.Decode(f)
	case ".flac":
		streamer, src, err = flac.Decode(f)
	default:
		return nil, errors.Errorf("unsupported reward sound type %q", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(format)
	var s beep.Streamer = streamer
	if src.SampleRate != format.SampleRate {
		s = beep.Resample(4, src.SampleRate, format.SampleRate, streamer)
	}
	buf.Append(s)
	if err := streamer.Err(); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return buf, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

package input

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/aforren1/replan-2finger/internal/clock"
)

// ForceBoardConfig describes the serial stream of a force-transducer board
// that prints one line of comma or space separated channel values per frame.
type ForceBoardConfig struct {
	Port     string `mapstructure:"port" yaml:"port"`
	BaudRate int    `mapstructure:"baud_rate" yaml:"baud_rate"`
	Channels int    `mapstructure:"channels" yaml:"channels"`
	// Window is the number of recent frames median-filtered on each Read.
	Window int `mapstructure:"window" yaml:"window"`
}

// ErrStreamEnded is returned by Run when the board stops sending before it
// is cancelled.
var ErrStreamEnded = errors.New("force board stream ended")

// ForceBoard samples on its own goroutine (Run) and hands the newest frame
// to the render loop without blocking.
type ForceBoard struct {
	src     io.Reader
	closer  io.Closer
	clock   clock.Clock
	log     *zap.Logger
	cfg     ForceBoardConfig
	latest  chan Force
	history *history
}

// OpenForceBoard opens the serial port described by cfg.
func OpenForceBoard(cfg ForceBoardConfig, clk clock.Clock, log *zap.Logger) (*ForceBoard, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "opening force board on %s", cfg.Port)
	}
	// Bounded reads let Run notice cancellation.
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "setting force board read timeout")
	}
	return newForceBoard(port, port, cfg, clk, log), nil
}

func newForceBoard(src io.Reader, closer io.Closer, cfg ForceBoardConfig, clk clock.Clock, log *zap.Logger) *ForceBoard {
	if cfg.Window < 1 {
		cfg.Window = 1
	}
	return &ForceBoard{
		src:     src,
		closer:  closer,
		clock:   clk,
		log:     log,
		cfg:     cfg,
		latest:  make(chan Force, 1),
		history: newHistory(cfg.Window * 8),
	}
}

// Run reads frames until ctx is cancelled. A read error or the end of the
// stream is returned so the session can stop instead of running without
// input.
func (f *ForceBoard) Run(ctx context.Context) error {
	buf := make([]byte, 512)
	var line []byte
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := f.src.Read(buf)
		for _, c := range buf[:n] {
			if c != '\n' {
				line = append(line, c)
				continue
			}
			f.handleLine(string(line))
			line = line[:0]
		}
		if err == io.EOF {
			return ErrStreamEnded
		}
		if err != nil {
			return errors.Wrap(err, "reading force board")
		}
	}
}

func (f *ForceBoard) handleLine(line string) {
	ts := f.clock.Now()
	fields := strings.FieldsFunc(strings.TrimSpace(line), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return
	}
	frame := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			f.log.Debug("Dropping malformed force frame", zap.String("line", line))
			return
		}
		frame = append(frame, v)
	}
	if f.cfg.Channels > 0 && len(frame) > f.cfg.Channels {
		frame = frame[:f.cfg.Channels]
	}
	f.history.push(frame)
	sendLatest(f.latest, Force{Timestamp: ts, Channels: frame})
}

// Read returns the newest frame, median-filtered over the configured window.
func (f *ForceBoard) Read() (Sample, bool) {
	select {
	case s := <-f.latest:
		if f.cfg.Window > 1 {
			s.Channels = median(f.history.snapshot(f.cfg.Window))
		}
		return s, true
	default:
		return nil, false
	}
}

func (f *ForceBoard) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

// sendLatest writes v to ch, dropping older values if the buffer is full.
// It loops until the send succeeds without ever blocking.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

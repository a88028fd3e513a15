package marker

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// DLP drives the TTL lines of a DLP-IO8-G box. Each event raises one line
// for Pulse and lowers it from a timer so the render loop never sleeps.
type DLP struct {
	port  io.ReadWriteCloser
	log   *zap.Logger
	Pulse time.Duration
	mu    sync.Mutex
}

var dlpLines = map[Event]byte{
	TrialStart:    '1',
	FirstOnset:    '2',
	SwitchOnset:   '3',
	FeedbackOnset: '4',
}

// lowering commands for lines '1'..'8'
var dlpUnset = map[byte]byte{
	'1': 'Q', '2': 'W', '3': 'E', '4': 'R',
	'5': 'T', '6': 'Y', '7': 'U', '8': 'I',
}

func OpenDLP(device string, baudrate int, log *zap.Logger) (*DLP, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "opening DLP-IO8-G on %s", device)
	}
	// A silent device fails the ping instead of blocking startup.
	if err := port.SetReadTimeout(time.Second); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "setting DLP-IO8-G read timeout")
	}
	d, err := newDLP(port, log)
	if err != nil {
		port.Close()
		return nil, err
	}
	return d, nil
}

var ErrNoPing = errors.New("DLP-IO8-G did not answer the ping")

func newDLP(port io.ReadWriteCloser, log *zap.Logger) (*DLP, error) {
	d := &DLP{port: port, log: log, Pulse: 5 * time.Millisecond}
	if !d.Ping() {
		return nil, ErrNoPing
	}
	// Binary mode
	if _, err := port.Write([]byte{0x5C}); err != nil {
		return nil, errors.Wrap(err, "switching DLP-IO8-G to binary mode")
	}
	return d, nil
}

func (d *DLP) Ping() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.port.Write([]byte{0x27}); err != nil {
		return false
	}
	buf := make([]byte, 1)
	n, err := d.port.Read(buf)
	return err == nil && n == 1 && buf[0] == 'Q'
}

func (d *DLP) Mark(e Event, _ float64) {
	line, ok := dlpLines[e]
	if !ok {
		return
	}
	d.write(line)
	time.AfterFunc(d.Pulse, func() { d.write(dlpUnset[line]) })
}

func (d *DLP) write(cmd byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.port.Write([]byte{cmd}); err != nil {
		d.log.Warn("DLP write failed", zap.Error(err), zap.String("cmd", string(cmd)))
	}
}

// Close lowers every line before closing the port.
func (d *DLP) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = d.port.Write([]byte("QWER"))
	return d.port.Close()
}

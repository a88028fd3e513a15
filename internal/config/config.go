package config

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/aforren1/replan-2finger/internal/input"
	"github.com/aforren1/replan-2finger/internal/logging"
	"github.com/aforren1/replan-2finger/internal/machine"
	"github.com/aforren1/replan-2finger/internal/metronome"
)

const (
	VariantTwoChoice   = "two_choice"
	VariantMultiChoice = "multi_choice"

	DeviceKeyboard = "keyboard"
	DeviceForce    = "force"
)

// Config is the top-level configuration structure. It is also written to
// the subject's data folder as the settings snapshot.
type Config struct {
	Session   SessionConfig     `mapstructure:"session" yaml:"session"`
	Timing    TimingConfig      `mapstructure:"timing" yaml:"timing"`
	Display   DisplayConfig     `mapstructure:"display" yaml:"display"`
	Audio     AudioConfig       `mapstructure:"audio" yaml:"audio"`
	Metronome metronome.Options `mapstructure:"metronome" yaml:"metronome"`
	Input     InputConfig       `mapstructure:"input" yaml:"input"`
	Marker    MarkerConfig      `mapstructure:"marker" yaml:"marker"`
	Logging   logging.Config    `mapstructure:"logging" yaml:"logging"`
}

type SessionConfig struct {
	Subject  string `mapstructure:"subject" yaml:"subject"`
	Table    string `mapstructure:"table" yaml:"table"`
	DataDir  string `mapstructure:"data_dir" yaml:"data_dir"`
	Adaptive bool   `mapstructure:"adaptive" yaml:"adaptive"`
	Variant  string `mapstructure:"variant" yaml:"variant"`
	// PostTrialNeedsResponse holds the next trial until the participant has
	// pressed at least once since the last trial started.
	PostTrialNeedsResponse bool `mapstructure:"post_trial_needs_response" yaml:"post_trial_needs_response"`
	EndPast                bool `mapstructure:"end_past" yaml:"end_past"`
}

// TimingConfig holds the trial timing constants in seconds.
type TimingConfig struct {
	LeadIn       float64 `mapstructure:"lead_in" yaml:"lead_in"`
	TrialTail    float64 `mapstructure:"trial_tail" yaml:"trial_tail"`
	Feedback     float64 `mapstructure:"feedback" yaml:"feedback"`
	PostTrial    float64 `mapstructure:"post_trial" yaml:"post_trial"`
	TimingWindow float64 `mapstructure:"timing_window" yaml:"timing_window"`
}

// AudioConfig mirrors audio.Config so that loading settings does not link
// the speaker backend.
type AudioConfig struct {
	SampleRate int     `mapstructure:"sample_rate" yaml:"sample_rate"`
	BufferSize float64 `mapstructure:"buffer_size" yaml:"buffer_size"`
	Latency    float64 `mapstructure:"latency" yaml:"latency"`
	RewardFile string  `mapstructure:"reward_file" yaml:"reward_file"`
}

type DisplayConfig struct {
	Width      int  `mapstructure:"width" yaml:"width"`
	Height     int  `mapstructure:"height" yaml:"height"`
	Fullscreen bool `mapstructure:"fullscreen" yaml:"fullscreen"`
	// Debug overlays phase, trial and frame timing.
	Debug bool `mapstructure:"debug" yaml:"debug"`
}

type InputConfig struct {
	Device string `mapstructure:"device" yaml:"device"`
	// Keys maps keyboard keys to stimulus ids by position.
	Keys       string                 `mapstructure:"keys" yaml:"keys"`
	Threshold  float64                `mapstructure:"threshold" yaml:"threshold"`
	ForceBoard input.ForceBoardConfig `mapstructure:"forceboard" yaml:"forceboard"`
}

// MarkerConfig selects a DLP-IO8-G box for event markers. An empty device
// only logs events.
type MarkerConfig struct {
	Device   string  `mapstructure:"device" yaml:"device"`
	BaudRate int     `mapstructure:"baud_rate" yaml:"baud_rate"`
	Pulse    float64 `mapstructure:"pulse" yaml:"pulse"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("session.subject", "test")
	v.SetDefault("session.table", "")
	v.SetDefault("session.data_dir", "data")
	v.SetDefault("session.adaptive", false)
	v.SetDefault("session.variant", VariantTwoChoice)
	v.SetDefault("session.post_trial_needs_response", true)
	v.SetDefault("session.end_past", false)

	m := machine.DefaultOptions()
	v.SetDefault("timing.lead_in", m.LeadIn)
	v.SetDefault("timing.trial_tail", m.TrialTail)
	v.SetDefault("timing.feedback", m.FeedbackDuration)
	v.SetDefault("timing.post_trial", m.PostDuration)
	v.SetDefault("timing.timing_window", m.TimingWindow)

	v.SetDefault("display.width", 1280)
	v.SetDefault("display.height", 720)
	v.SetDefault("display.fullscreen", true)
	v.SetDefault("display.debug", false)

	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.buffer_size", 0.01)
	v.SetDefault("audio.latency", 0.01)
	v.SetDefault("audio.reward_file", "")

	c := metronome.DefaultOptions()
	v.SetDefault("metronome.frequencies", c.Frequencies)
	v.SetDefault("metronome.interval", c.Interval)
	v.SetDefault("metronome.click_length", c.ClickLength)
	v.SetDefault("metronome.lead_silence", c.LeadSilence)
	v.SetDefault("metronome.amplitude", c.Amplitude)

	v.SetDefault("input.device", DeviceKeyboard)
	v.SetDefault("input.keys", "awefvbhuil")
	v.SetDefault("input.threshold", 0.5)
	v.SetDefault("input.forceboard.port", "")
	v.SetDefault("input.forceboard.baud_rate", 115200)
	v.SetDefault("input.forceboard.channels", 10)
	v.SetDefault("input.forceboard.window", 3)

	v.SetDefault("marker.device", "")
	v.SetDefault("marker.baud_rate", 115200)
	v.SetDefault("marker.pulse", 0.005)

	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", true)
}

// New returns a viper instance with defaults and REPLAN_* environment
// variables bound. Flags may be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REPLAN") // e.g. REPLAN_SESSION_SUBJECT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file, or replan.yaml from the working directory when file is
// empty, and decodes the result. A missing default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("replan")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if conf.Session.Table != "" {
		conf.Session.Table = filepath.Clean(conf.Session.Table)
	}
	return &conf, conf.Validate()
}

func (c *Config) Validate() error {
	switch {
	case c.Session.Subject == "":
		return errors.New("session.subject is empty")
	case strings.ContainsAny(c.Session.Subject, `/\`):
		return errors.Errorf("session.subject %q contains a path separator", c.Session.Subject)
	case c.Session.Variant != VariantTwoChoice && c.Session.Variant != VariantMultiChoice:
		return errors.Errorf("unknown variant %q", c.Session.Variant)
	case c.Input.Device != DeviceKeyboard && c.Input.Device != DeviceForce:
		return errors.Errorf("unknown input device %q", c.Input.Device)
	case c.Input.Device == DeviceForce && c.Input.ForceBoard.Port == "":
		return errors.New("input.forceboard.port is required for the force device")
	case len(c.Metronome.Frequencies) == 0:
		return errors.New("metronome needs at least one click")
	case c.Timing.TimingWindow <= 0:
		return errors.New("timing.timing_window must be positive")
	}
	return nil
}

// MachineOptions maps the session and timing settings onto the state
// machine.
func (c *Config) MachineOptions() machine.Options {
	return machine.Options{
		Subject:                c.Session.Subject,
		LeadIn:                 c.Timing.LeadIn,
		TrialTail:              c.Timing.TrialTail,
		FeedbackDuration:       c.Timing.Feedback,
		PostDuration:           c.Timing.PostTrial,
		TimingWindow:           c.Timing.TimingWindow,
		PostTrialNeedsResponse: c.Session.PostTrialNeedsResponse,
		EndPast:                c.Session.EndPast,
		Adaptive:               c.Session.Adaptive,
	}
}

// Channels is the number of response channels of the configured device.
func (c *Config) Channels() int {
	if c.Input.Device == DeviceForce {
		return c.Input.ForceBoard.Channels
	}
	return len(c.Input.Keys)
}

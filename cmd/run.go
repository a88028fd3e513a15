package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/zenity"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aforren1/replan-2finger/internal/audio"
	"github.com/aforren1/replan-2finger/internal/clock"
	"github.com/aforren1/replan-2finger/internal/config"
	"github.com/aforren1/replan-2finger/internal/game"
	"github.com/aforren1/replan-2finger/internal/input"
	"github.com/aforren1/replan-2finger/internal/logging"
	"github.com/aforren1/replan-2finger/internal/machine"
	"github.com/aforren1/replan-2finger/internal/marker"
	"github.com/aforren1/replan-2finger/internal/record"
	"github.com/aforren1/replan-2finger/internal/trial"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one experiment session",
	Long:  `Run one experiment session. Without a trial table a file picker is shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(settings, cfgFile)
		if err != nil {
			return errors.Wrap(err, "loading config")
		}
		if conf.Session.Table == "" {
			if conf.Session.Table, err = pickTable(); err != nil {
				return err
			}
		}

		id := uuid.NewString()
		log, err := logging.Init(conf.Logging, id, os.Stdout)
		if err != nil {
			return errors.Wrap(err, "initialising logger")
		}
		defer log.Sync()

		if err := runSession(cmd.Context(), conf, id, log); err != nil {
			log.Error("Session failed", zap.Error(err))
			_ = zenity.Error(err.Error(), zenity.Title("Two-finger replan"), zenity.ErrorIcon)
			return err
		}
		return nil
	},
}

func init() {
	flags := runCmd.Flags()
	flags.String("subject", "", "subject id")
	flags.String("table", "", "trial table CSV")
	flags.Bool("adaptive", false, "adapt switch times to accuracy")
	flags.String("variant", "", "presentation: two_choice or multi_choice")
	flags.String("device", "", "input device: keyboard or force")
	flags.Bool("fullscreen", true, "run fullscreen")
	flags.Bool("debug", false, "show phase and frame rate")
	flags.String("data-dir", "", "root of the data folders")

	for key, name := range map[string]string{
		"session.subject":    "subject",
		"session.table":      "table",
		"session.adaptive":   "adaptive",
		"session.variant":    "variant",
		"session.data_dir":   "data-dir",
		"input.device":       "device",
		"display.fullscreen": "fullscreen",
		"display.debug":      "debug",
	} {
		if err := settings.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
	RootCmd.AddCommand(runCmd)
}

func pickTable() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Select trial table"),
		zenity.FileFilters{{
			Name:     "Trial tables",
			Patterns: []string{"*.csv"},
		}},
	)
	if errors.Is(err, zenity.ErrCanceled) {
		return "", errors.New("no trial table selected")
	}
	if err != nil {
		return "", errors.Wrap(err, "selecting trial table")
	}
	return path, nil
}

// snapshot is written next to the session's data.
type snapshot struct {
	Session  string         `yaml:"session"`
	Started  time.Time      `yaml:"started"`
	Output   string         `yaml:"output"`
	Settings *config.Config `yaml:"settings"`
}

func runSession(ctx context.Context, conf *config.Config, id string, log *zap.Logger) error {
	table, err := trial.Load(conf.Session.Table)
	if err != nil {
		return err
	}

	started := time.Now()
	dir, err := record.Layout{Dir: conf.Session.DataDir}.SubjectDir(conf.Session.Subject)
	if err != nil {
		return err
	}
	if err := record.CopyTable(conf.Session.Table, dir); err != nil {
		return err
	}
	name := record.SummaryName(conf.Session.Subject, table.Name, conf.Session.Adaptive, started)
	rec, err := record.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	snap := snapshot{Session: id, Started: started, Output: name, Settings: conf}
	if err := record.WriteSnapshot(dir, strings.TrimSuffix(name, ".csv")+"_settings.yaml", snap); err != nil {
		return err
	}

	clk := clock.NewMono()
	player, err := audio.NewPlayer(audio.Config(conf.Audio), conf.Metronome, log)
	if err != nil {
		return err
	}
	defer player.Close()

	sinks := marker.Multi{marker.Log{Logger: log}}
	if conf.Marker.Device != "" {
		dlp, err := marker.OpenDLP(conf.Marker.Device, conf.Marker.BaudRate, log)
		if err != nil {
			return err
		}
		defer dlp.Close()
		dlp.Pulse = time.Duration(conf.Marker.Pulse * float64(time.Second))
		sinks = append(sinks, dlp)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	var device input.Device
	switch conf.Input.Device {
	case config.DeviceForce:
		board, err := input.OpenForceBoard(conf.Input.ForceBoard, clk, log)
		if err != nil {
			return err
		}
		defer board.Close()
		eg.Go(func() error { return board.Run(ctx) })
		device = board
	default:
		if device, err = game.NewKeyboard(conf.Input.Keys, clk); err != nil {
			return err
		}
	}

	var pres game.Presentation
	if conf.Session.Variant == config.VariantMultiChoice {
		pres = game.NewMultiChoice(table)
	} else {
		pres = game.NewTwoChoice(table)
	}

	frames := clock.NewFrames(1.0 / 60)
	m := machine.New(machine.Deps{
		Clock:        clk,
		Display:      frames,
		Audio:        player,
		Presentation: pres,
		Recorder:     rec,
		Table:        table,
		Marker:       sinks,
		Logger:       log,
		OnCleanup: func(s machine.Session) {
			log.Info("Session finished",
				zap.Int("trials", s.TrialIndex),
				zap.Int("rows", rec.Rows()),
				zap.String("output", rec.Path()))
		},
	}, conf.MachineOptions())

	g := game.New(game.Deps{
		Machine:      m,
		Frames:       frames,
		Clock:        clk,
		Presentation: pres,
		Device:       device,
		Buffer:       input.NewBuffer(conf.Channels(), conf.Input.Threshold),
		Logger:       log,
		Context:      ctx,
	}, game.Window{
		Title:      "Two-finger replan",
		Width:      conf.Display.Width,
		Height:     conf.Display.Height,
		Fullscreen: conf.Display.Fullscreen,
		Debug:      conf.Display.Debug,
	})

	log.Info("Session starting",
		zap.String("subject", conf.Session.Subject),
		zap.String("table", table.Name),
		zap.Int("trials", table.Len()),
		zap.Bool("adaptive", conf.Session.Adaptive),
		zap.String("variant", conf.Session.Variant),
		zap.String("output", rec.Path()))

	// The chime doubles as an audio warm-up while the start prompt shows.
	player.PlayReward()

	// ebiten has to own the main goroutine, so only the device reader runs
	// in the group.
	runErr := game.Run(g)
	cancel()
	if err := eg.Wait(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "force board")
	}
	return runErr
}

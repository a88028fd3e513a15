package cmd

import (
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/aforren1/replan-2finger/internal/trial"
)

// mkblockCmd represents the mkblock command
var mkblockCmd = &cobra.Command{
	Use:   "mkblock [flags] out.csv",
	Short: "Generate a trial table",
	Long: `Generate a trial table. With two stimuli the block alternates between
them; with more, every ordered pair of the combination is used.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			flags = cmd.Flags()
			o     = trial.DefaultBlockOptions()
		)
		stimuli, _ := flags.GetString("stimuli")
		seed, _ := flags.GetUint64("seed")
		o.Trials, _ = flags.GetInt("trials")
		o.PropSwitch, _ = flags.GetFloat64("prop-switch")
		o.MinTime, _ = flags.GetFloat64("min-time")
		o.MaxTime, _ = flags.GetFloat64("max-time")
		o.FrameRate, _ = flags.GetFloat64("frame-rate")
		o.Practice, _ = flags.GetBool("practice")

		ids, err := parseIDs(stimuli)
		if err != nil {
			return err
		}
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

		var specs []trial.Spec
		if len(ids) == 2 {
			specs, err = trial.MakeBlock([2]int{ids[0], ids[1]}, o, rng)
		} else {
			specs, err = trial.MakeMultiBlock(ids, o, rng)
		}
		if err != nil {
			return errors.Wrap(err, "generating block")
		}

		f, err := os.Create(args[0])
		if err != nil {
			return errors.Wrap(err, "creating trial table")
		}
		if err := trial.Write(f, specs); err != nil {
			f.Close()
			return errors.Wrap(err, "writing trial table")
		}
		return f.Close()
	},
}

func init() {
	d := trial.DefaultBlockOptions()
	flags := mkblockCmd.Flags()
	flags.String("stimuli", "0,9", "comma separated stimulus ids")
	flags.Uint64("seed", 1, "random seed")
	flags.Int("trials", d.Trials, "trials excluding practice")
	flags.Float64("prop-switch", d.PropSwitch, "proportion of switch trials")
	flags.Float64("min-time", d.MinTime, "shortest switch time in seconds")
	flags.Float64("max-time", d.MaxTime, "longest switch time in seconds")
	flags.Float64("frame-rate", d.FrameRate, "display refresh rate switch times are quantised to")
	flags.Bool("practice", d.Practice, "lead with practice repeats")
	RootCmd.AddCommand(mkblockCmd)
}

func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, f := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, errors.Wrapf(err, "stimulus id %q", f)
		}
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return nil, errors.New("need at least two stimulus ids")
	}
	return ids, nil
}

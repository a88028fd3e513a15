package machine

// Phase is a state of the per-trial cycle.
type Phase int

const (
	Wait Phase = iota
	Pretrial
	EnterTrial
	FirstTarget
	SecondTarget
	Feedback
	PostTrial
	Cleanup
)

var phaseNames = [...]string{
	Wait:         "wait",
	Pretrial:     "pretrial",
	EnterTrial:   "enter_trial",
	FirstTarget:  "first_target",
	SecondTarget: "second_target",
	Feedback:     "feedback",
	PostTrial:    "post_trial",
	Cleanup:      "cleanup",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool { return p == Cleanup }

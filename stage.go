package unwrap

// Stage names the step of the unwrap pipeline that is currently executing.
// A failed run reports the stage it failed in.
type Stage int

const (
	StageValidating Stage = iota
	StageAttaching
	StageMounting
	StageCopying
	StageConfiguringBoot
	StageFinalizing
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageValidating:      "validating",
	StageAttaching:       "attaching",
	StageMounting:        "mounting",
	StageCopying:         "copying",
	StageConfiguringBoot: "configuring boot",
	StageFinalizing:      "finalizing",
	StageDone:            "done",
	StageFailed:          "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

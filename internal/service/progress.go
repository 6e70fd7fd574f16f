package service

// Stage is a milestone of an ingestion run.
type Stage int

const (
	StageLoaded Stage = iota + 1
	StageSplit
	StageIndexed
)

// ProgressFunc is called once per stage, in order.
type ProgressFunc func(Stage)

func (s Stage) String() string {
	switch s {
	case StageLoaded:
		return "loaded"
	case StageSplit:
		return "split"
	case StageIndexed:
		return "indexed"
	default:
		return "unknown"
	}
}

// Label is the user-facing progress text.
func (s Stage) Label() string {
	switch s {
	case StageLoaded:
		return "Loaded Papers/Files"
	case StageSplit:
		return "Split Text"
	case StageIndexed:
		return "Vectorstore Built"
	default:
		return ""
	}
}

// Percent is the completed fraction of the run, in [0,1].
func (s Stage) Percent() float64 {
	switch s {
	case StageLoaded:
		return 0.33
	case StageSplit:
		return 0.66
	case StageIndexed:
		return 1
	default:
		return 0
	}
}

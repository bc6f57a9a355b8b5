package jobs

// Stage is a state of the pipeline state machine.
type Stage string

const (
	StagePending    Stage = "pending"
	StageGenerating Stage = "generating"
	StageCombining  Stage = "combining"
	StageRefining   Stage = "refining"
	StageExporting  Stage = "exporting"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// transitions lists the forward edges; failed is reachable from any
// non-terminal stage and is handled in CanTransition.
var transitions = map[Stage][]Stage{
	StagePending:    {StageGenerating},
	StageGenerating: {StageCombining, StageRefining},
	StageCombining:  {StageRefining},
	StageRefining:   {StageExporting},
	StageExporting:  {StageCompleted},
}

// Terminal reports whether no transition leaves the stage.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusOf maps a stage to the job status it implies.
func StatusOf(s Stage) Status {
	switch s {
	case StagePending:
		return StatusPending
	case StageCompleted:
		return StatusCompleted
	case StageFailed:
		return StatusFailed
	default:
		return StatusProcessing
	}
}

// Band is the progress range a stage covers.
type Band struct {
	Start, End int
}

// BandOf returns the progress band of a stage. Without a combining stage,
// generating extends to the start of refining.
func BandOf(s Stage, hybrid bool) Band {
	switch s {
	case StageGenerating:
		if hybrid {
			return Band{0, 40}
		}
		return Band{0, 55}
	case StageCombining:
		return Band{40, 55}
	case StageRefining:
		return Band{55, 85}
	case StageExporting:
		return Band{85, 100}
	case StageCompleted:
		return Band{100, 100}
	default:
		return Band{0, 0}
	}
}

// At returns the progress value at fraction f of the band, clamped to [0, 1].
func (b Band) At(f float64) int {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return b.Start + int(f*float64(b.End-b.Start))
}

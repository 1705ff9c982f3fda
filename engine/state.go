package engine

type State int

const (
	StateIdle State = iota
	StateAcquire
	StateSynthesize
	StateTrain
	StateDiagnose
	StateReport
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquire:
		return "acquire"
	case StateSynthesize:
		return "synthesize"
	case StateTrain:
		return "train"
	case StateDiagnose:
		return "diagnose"
	case StateReport:
		return "report"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

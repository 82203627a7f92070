package trace

// Level controls the verbosity of step tracing.
type Level string

const (
	// LevelNone disables tracing (zero overhead).
	LevelNone Level = "none"
	// LevelSteps captures the slot occupancy of every engine step.
	LevelSteps Level = "steps"
)

// validLevels maps accepted trace level strings.
var validLevels = map[Level]bool{
	LevelNone:  true,
	LevelSteps: true,
	"":         true, // empty defaults to none
}

// IsValidLevel returns true if the given level string is a recognized trace level.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// Config controls trace collection behavior.
type Config struct {
	Level Level `yaml:"level"`
}

// Enabled reports whether the config asks for step records.
func (c Config) Enabled() bool {
	return c.Level == LevelSteps
}

// StepTrace collects per-step slot timelines during a simulation run.
type StepTrace struct {
	Config Config       `yaml:"config"`
	Steps  []StepRecord `yaml:"steps"`
}

// NewStepTrace creates a StepTrace ready for recording.
func NewStepTrace(config Config) *StepTrace {
	return &StepTrace{
		Config: config,
		Steps:  make([]StepRecord, 0),
	}
}

// RecordStep appends a step record.
func (st *StepTrace) RecordStep(record StepRecord) {
	st.Steps = append(st.Steps, record)
}

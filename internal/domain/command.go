package domain

// ActionKind tags the side effect a locally handled command asks for.
type ActionKind string

const (
	ActionTimer     ActionKind = "timer"
	ActionAlarm     ActionKind = "alarm"
	ActionOpenApp   ActionKind = "open_app"
	ActionCalculate ActionKind = "calculate"
	ActionTime      ActionKind = "time"
	ActionDate      ActionKind = "date"
)

// TimerPayload carries what the caller needs to start a countdown.
type TimerPayload struct {
	Duration int    `json:"duration"`
	Label    string `json:"label"`
}

// AppPayload names the application an open_app action targets.
type AppPayload struct {
	App string `json:"app"`
}

// CalculationPayload records the normalized expression and its value.
type CalculationPayload struct {
	Expression string  `json:"expression"`
	Value      float64 `json:"value"`
}

// CommandAction is a tagged variant; only the payload matching Kind is set.
type CommandAction struct {
	Kind        ActionKind          `json:"type"`
	Timer       *TimerPayload       `json:"timer,omitempty"`
	App         *AppPayload         `json:"app,omitempty"`
	Calculation *CalculationPayload `json:"calculation,omitempty"`
}

// CommandResult is produced for every utterance by the classifier.
type CommandResult struct {
	Handled  bool           `json:"handled"`
	Response string         `json:"response,omitempty"`
	Action   *CommandAction `json:"action,omitempty"`
}

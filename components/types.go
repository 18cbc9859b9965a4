package components

type PanicHandlerFunc func()

type Action uint32

const (
	Shutdown Action = iota + 1
	Pause
	Resume
)

// ControlAction is used to communicate with components.
type ControlAction struct {
	Action       Action
	ResponseChan chan error // channel to send a response on.
}

// ComponentWaiter is a simple interface for use around a wait group.
type ComponentWaiter interface {
	Add()
	Done()
}

// ComponentStep is a generic holder for FieldMapper config.
type ComponentStep struct {
	Type string            `json:"type" errorTxt:"step type" mandatory:"yes"`
	Data map[string]string `json:"data" errorTxt:"step data" mandatory:"yes"`
}

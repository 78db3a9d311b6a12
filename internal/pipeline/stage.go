package pipeline

// Action is the outcome of a single stage.
type Action int

const (
	// ActionContinue forwards the request to the next stage.
	ActionContinue Action = iota
	// ActionHalt ends the chain; the stage has already written the response.
	ActionHalt
	// ActionFail ends the chain and hands Err to the error stage.
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionHalt:
		return "halt"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Result is returned from Stage.Process.
type Result struct {
	Action Action
	Err    error
}

// Continue forwards to the next stage.
func Continue() Result { return Result{Action: ActionContinue} }

// Halt stops the chain after the stage produced a response.
func Halt() Result { return Result{Action: ActionHalt} }

// Fail diverts the request to the error stage.
func Fail(err error) Result { return Result{Action: ActionFail, Err: err} }

// Stage processes a request in the pipeline.
type Stage interface {
	// Name returns the unique identifier for this stage.
	Name() string
	// Process inspects or mutates the request context and reports what happens next.
	Process(c *Context) Result
}

type funcStage struct {
	name string
	fn   func(*Context) Result
}

func (s funcStage) Name() string              { return s.name }
func (s funcStage) Process(c *Context) Result { return s.fn(c) }

// StageFunc adapts a function into a named Stage.
func StageFunc(name string, fn func(*Context) Result) Stage {
	return funcStage{name: name, fn: fn}
}

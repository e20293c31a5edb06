package model

// DispatcherState represents where the dispatcher is in its publish/collect cycle.
type DispatcherState string

const (
	DispatcherStateAwaitRequest DispatcherState = "AWAIT_REQUEST"
	DispatcherStatePublish      DispatcherState = "PUBLISH"
	DispatcherStateAwaitAck     DispatcherState = "AWAIT_ACK"
	DispatcherStateDrainResults DispatcherState = "DRAIN_RESULTS"
	DispatcherStateShutdown     DispatcherState = "SHUTDOWN"
)

// String returns the string representation of the dispatcher state.
func (s DispatcherState) String() string {
	return string(s)
}

// IsTerminal returns true if the dispatcher can no longer accept requests.
func (s DispatcherState) IsTerminal() bool {
	return s == DispatcherStateShutdown
}

// ValidDispatcherTransitions defines the allowed state transitions for the dispatcher.
var ValidDispatcherTransitions = map[DispatcherState][]DispatcherState{
	DispatcherStateAwaitRequest: {DispatcherStatePublish, DispatcherStateShutdown},
	DispatcherStatePublish:      {DispatcherStateAwaitAck, DispatcherStateAwaitRequest}, // back to waiting when publish fails
	DispatcherStateAwaitAck:     {DispatcherStateDrainResults},
	DispatcherStateDrainResults: {DispatcherStateAwaitRequest},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s DispatcherState) CanTransitionTo(next DispatcherState) bool {
	for _, allowed := range ValidDispatcherTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// WorkerState represents the lifecycle state of a pool worker.
type WorkerState string

const (
	WorkerStateBound         WorkerState = "BOUND"
	WorkerStateWaitRequest   WorkerState = "WAIT_REQUEST"
	WorkerStateRun           WorkerState = "RUN"
	WorkerStatePublishResult WorkerState = "PUBLISH_RESULT"
	WorkerStateTerminated    WorkerState = "TERMINATED"
)

// String returns the string representation of the worker state.
func (s WorkerState) String() string {
	return string(s)
}

// IsTerminal returns true if the worker has exited.
func (s WorkerState) IsTerminal() bool {
	return s == WorkerStateTerminated
}

// ValidWorkerTransitions defines the allowed state transitions for workers.
var ValidWorkerTransitions = map[WorkerState][]WorkerState{
	WorkerStateBound:         {WorkerStateWaitRequest},
	WorkerStateWaitRequest:   {WorkerStateRun, WorkerStateTerminated},
	WorkerStateRun:           {WorkerStatePublishResult},
	WorkerStatePublishResult: {WorkerStateWaitRequest},
}

// CanTransitionTo returns true if moving from the current state to next is valid.
func (s WorkerState) CanTransitionTo(next WorkerState) bool {
	for _, allowed := range ValidWorkerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

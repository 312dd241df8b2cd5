package client

import "time"

// eventKind enumerates what can happen to a manager.
type eventKind int

const (
	evConnect    eventKind = iota // caller asked to connect
	evOpened                      // socket handshake completed
	evClosed                      // socket failed or closed, before or after open
	evTimerFired                  // scheduled reconnect is due
	evForeground                  // client returned to the foreground
	evLeave                       // caller left the room
	evRoomClosed                  // server announced ROOM_CLOSED
)

func (k eventKind) String() string {
	switch k {
	case evConnect:
		return "connect"
	case evOpened:
		return "opened"
	case evClosed:
		return "closed"
	case evTimerFired:
		return "timer"
	case evForeground:
		return "foreground"
	case evLeave:
		return "leave"
	case evRoomClosed:
		return "room-closed"
	default:
		return "unknown"
	}
}

type event struct {
	kind eventKind
	err  error // evClosed only
}

// effectKind enumerates the side effects a transition asks for. The manager
// executes them in order.
type effectKind int

const (
	fxDial effectKind = iota
	fxSendJoin
	fxSendLeave
	fxSaveSession
	fxClearSession
	fxSchedule
	fxCancelTimer
	fxCloseSocket
	fxStatus
)

type effect struct {
	kind   effectKind
	delay  time.Duration // fxSchedule
	status Status        // fxStatus
}

// machineInput is everything a transition may look at.
type machineInput struct {
	state    State
	attempts int
	// sessionMatches is true when the store holds a session for this room.
	sessionMatches bool
}

type machineOutput struct {
	state    State
	attempts int
	effects  []effect
}

// transition is the whole connection state machine. It is pure: the manager
// supplies current state and whether a matching session is stored, and gets
// back the next state plus the effects to run.
func transition(in machineInput, ev event, policy Policy) machineOutput {
	out := machineOutput{state: in.state, attempts: in.attempts}
	if in.state == StateClosedFinal {
		return out
	}

	switch ev.kind {
	case evConnect:
		switch in.state {
		case StateConnecting, StateOpen:
			// already has a live or pending socket
		case StateReconnectScheduled:
			out.state = StateConnecting
			out.effects = append(out.effects, effect{kind: fxCancelTimer}, effect{kind: fxDial}, statusFx(StateConnecting, ReasonNone, out.attempts))
		default:
			out.state = StateConnecting
			out.effects = append(out.effects, effect{kind: fxDial}, statusFx(StateConnecting, ReasonNone, out.attempts))
		}

	case evOpened:
		if in.state != StateConnecting {
			return out
		}
		out.state = StateOpen
		out.attempts = 0
		out.effects = append(out.effects,
			effect{kind: fxSendJoin},
			effect{kind: fxSaveSession},
			statusFx(StateOpen, ReasonNone, 0),
		)

	case evClosed:
		if in.state != StateConnecting && in.state != StateOpen {
			return out
		}
		out.state = StateDisconnected
		out = evaluateReconnect(in, out, ev.err, policy)

	case evTimerFired:
		if in.state != StateReconnectScheduled {
			return out
		}
		out.attempts = in.attempts + 1
		out.state = StateConnecting
		out.effects = append(out.effects, effect{kind: fxDial}, statusFx(StateConnecting, ReasonNone, out.attempts))

	case evForeground:
		if !in.sessionMatches || in.state == StateOpen {
			return out
		}
		out.attempts = 0
		if in.state == StateConnecting {
			// connect is idempotent; the pending dial stays
			return out
		}
		out.state = StateConnecting
		out.effects = append(out.effects, effect{kind: fxCancelTimer}, effect{kind: fxDial}, statusFx(StateConnecting, ReasonNone, 0))

	case evLeave:
		out.state = StateClosedFinal
		out.effects = append(out.effects, effect{kind: fxCancelTimer}, effect{kind: fxClearSession})
		if in.state == StateOpen {
			out.effects = append(out.effects, effect{kind: fxSendLeave})
		}
		out.effects = append(out.effects, effect{kind: fxCloseSocket}, statusFx(StateClosedFinal, ReasonLeft, in.attempts))

	case evRoomClosed:
		out.state = StateClosedFinal
		out.effects = append(out.effects,
			effect{kind: fxCancelTimer},
			effect{kind: fxCloseSocket},
			statusFx(StateClosedFinal, ReasonRoomClosed, in.attempts),
		)
	}
	return out
}

// evaluateReconnect decides what follows a disconnect.
func evaluateReconnect(in machineInput, out machineOutput, err error, policy Policy) machineOutput {
	switch {
	case !in.sessionMatches:
		// deliberate leave, closed room, or a session for another room
		out.effects = append(out.effects, statusErrFx(StateDisconnected, ReasonNoSession, in.attempts, err))
	case policy.ShouldGiveUp(in.attempts):
		out.effects = append(out.effects, statusErrFx(StateDisconnected, ReasonGaveUp, in.attempts, err))
	default:
		delay := policy.DelayFor(in.attempts)
		out.state = StateReconnectScheduled
		out.effects = append(out.effects,
			effect{kind: fxSchedule, delay: delay},
			effect{kind: fxStatus, status: Status{State: StateReconnectScheduled, Attempt: in.attempts, Delay: delay, Err: err}},
		)
	}
	return out
}

func statusFx(state State, reason Reason, attempt int) effect {
	return effect{kind: fxStatus, status: Status{State: state, Reason: reason, Attempt: attempt}}
}

func statusErrFx(state State, reason Reason, attempt int, err error) effect {
	return effect{kind: fxStatus, status: Status{State: state, Reason: reason, Attempt: attempt, Err: err}}
}

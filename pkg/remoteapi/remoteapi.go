// Package remoteapi defines the contract between simbot and a remote robotics simulator.
//
// A Session is one client connection to the simulator. Every call takes a context and
// reports failures as errors. Simulator status codes are surfaced as ReturnCode values
// rather than being discarded.
package remoteapi

import (
	"context"
	"image"
	"net"
	"strconv"
	"time"

	"github.com/golang/geo/r3"
)

// ClientID identifies a session with the simulator.
type ClientID int

// InvalidClientID marks a session that never connected.
const InvalidClientID ClientID = -1

// ObjectHandle identifies a scene object (joint, sensor, dummy...).
type ObjectHandle int

// HandleWorld is the world reference frame.
const HandleWorld ObjectHandle = -1

// OpMode selects how a remote call is carried out.
type OpMode int

const (
	// OpOneshot sends the command and does not wait for the simulator to act on it.
	OpOneshot OpMode = iota
	// OpOneshotWait sends the command and waits until the simulator has acted on it.
	OpOneshotWait
	// OpStreaming subscribes to a value and returns the latest one seen, if any.
	OpStreaming
	// OpBuffer returns the latest value of an existing subscription.
	OpBuffer
	// OpBlocking sends the command and waits for the reply.
	OpBlocking
	// OpDiscontinue ends a subscription.
	OpDiscontinue
)

func (m OpMode) String() string {
	switch m {
	case OpOneshot:
		return "oneshot"
	case OpOneshotWait:
		return "oneshot_wait"
	case OpStreaming:
		return "streaming"
	case OpBuffer:
		return "buffer"
	case OpBlocking:
		return "blocking"
	case OpDiscontinue:
		return "discontinue"
	default:
		return "opmode(" + strconv.Itoa(int(m)) + ")"
	}
}

// RawImage is a vision sensor frame as delivered by the simulator.
// Rows are stored bottom-up.
type RawImage struct {
	Resolution image.Point
	Data       []byte
	Grayscale  bool
}

// Session is a connection to the simulator.
//
// The first OpStreaming read of a value starts its stream. Depending on the
// implementation it either returns the current value or fails with ReturnNoValue,
// so callers must accept both. OpBuffer reads fail with ReturnNoValue until the
// value has been streamed.
type Session interface {
	ID() ClientID

	StartSimulation(ctx context.Context, mode OpMode) error
	StopSimulation(ctx context.Context, mode OpMode) error
	Synchronous(ctx context.Context, enable bool) error
	SynchronousTrigger(ctx context.Context) error

	ObjectHandle(ctx context.Context, name string, mode OpMode) (ObjectHandle, error)
	SetJointTargetVelocity(ctx context.Context, joint ObjectHandle, velocity float64, mode OpMode) error
	SetObjectPosition(ctx context.Context, object, relativeTo ObjectHandle, position r3.Vector, mode OpMode) error
	ObjectPosition(ctx context.Context, object, relativeTo ObjectHandle, mode OpMode) (r3.Vector, error)
	ObjectOrientation(ctx context.Context, object, relativeTo ObjectHandle, mode OpMode) (r3.Vector, error)
	VisionSensorImage(ctx context.Context, sensor ObjectHandle, grayscale bool, mode OpMode) (RawImage, error)

	Close() error
}

// Dialer opens sessions. Implementations fail fast when no session can be established.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Session, error)
}

// Config holds connection settings for a simulator session.
type Config struct {
	Address            string
	Port               int
	WaitUntilConnected bool
	DoNotReconnect     bool
	Timeout            time.Duration
	CommThreadCycle    time.Duration
}

// DefaultConfig returns the settings of a local simulator on its default port.
func DefaultConfig() Config {
	return Config{
		Address:            "127.0.0.1",
		Port:               19997,
		WaitUntilConnected: true,
		DoNotReconnect:     true,
		Timeout:            5 * time.Second,
		CommThreadCycle:    5 * time.Millisecond,
	}
}

// Addr returns the host:port of the simulator.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

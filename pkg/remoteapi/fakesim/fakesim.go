// Package fakesim provides an in-memory simulator that implements remoteapi.Session.
//
// It records every call it receives and emulates the streaming semantics of the
// remote API. The first streaming read of a value returns ReturnNoValue, and
// buffer reads fail until the value has been streamed.
package fakesim

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/golang/geo/r3"

	"github.com/gwillem/simbot/pkg/remoteapi"
)

// Names of the recorded operations.
const (
	OpStartSimulation        = "startSimulation"
	OpStopSimulation         = "stopSimulation"
	OpSynchronous            = "synchronous"
	OpSynchronousTrigger     = "synchronousTrigger"
	OpGetObjectHandle        = "getObjectHandle"
	OpSetJointTargetVelocity = "setJointTargetVelocity"
	OpSetObjectPosition      = "setObjectPosition"
	OpGetObjectPosition      = "getObjectPosition"
	OpGetObjectOrientation   = "getObjectOrientation"
	OpGetVisionSensorImage   = "getVisionSensorImage"
)

// DefaultObjects are the objects of the standard two-wheeled robot scene.
var DefaultObjects = []string{
	"Vision_sensor",
	"fl_wheel_joint",
	"fr_wheel_joint",
	"gripper_cam",
	"gripper_target",
	"gripper_resting_position",
}

// DefaultResolution is the side length of generated frames.
const DefaultResolution = 64

// Call is one recorded remote call.
type Call struct {
	Op         string
	Name       string
	Handle     remoteapi.ObjectHandle
	RelativeTo remoteapi.ObjectHandle
	Value      float64
	Vector     r3.Vector
	Mode       remoteapi.OpMode
}

type streamKey struct {
	handle remoteapi.ObjectHandle
	prop   string
}

// Scene is a fake simulator holding a flat set of named objects.
type Scene struct {
	mu sync.Mutex

	id         remoteapi.ClientID
	nextHandle remoteapi.ObjectHandle
	handles    map[string]remoteapi.ObjectHandle

	positions    map[remoteapi.ObjectHandle]r3.Vector
	orientations map[remoteapi.ObjectHandle]r3.Vector
	velocities   map[remoteapi.ObjectHandle]float64
	streams      map[streamKey]bool

	running       bool
	synchronous   bool
	steps         int
	resolution    int
	imageFailures int
	closed        bool

	calls []Call
}

var (
	_ remoteapi.Session = (*Scene)(nil)
	_ remoteapi.Dialer  = (*Scene)(nil)
)

// Option configures a Scene.
type Option func(*Scene)

// WithObjects registers additional named objects.
func WithObjects(names ...string) Option {
	return func(s *Scene) {
		for _, name := range names {
			s.addObject(name)
		}
	}
}

// WithClientID sets the id reported by the session.
// remoteapi.InvalidClientID simulates a connection that never came up.
func WithClientID(id remoteapi.ClientID) Option {
	return func(s *Scene) { s.id = id }
}

// WithResolution sets the side length of generated frames.
func WithResolution(n int) Option {
	return func(s *Scene) { s.resolution = n }
}

// WithImageFailures makes the next n image reads fail with ReturnNoValue.
func WithImageFailures(n int) Option {
	return func(s *Scene) { s.imageFailures = n }
}

// WithPosition places a named object, registering it if needed.
func WithPosition(name string, pos r3.Vector) Option {
	return func(s *Scene) { s.positions[s.addObject(name)] = pos }
}

// WithOrientation orients a named object, registering it if needed.
func WithOrientation(name string, euler r3.Vector) Option {
	return func(s *Scene) { s.orientations[s.addObject(name)] = euler }
}

// New creates a scene holding DefaultObjects.
func New(opts ...Option) *Scene {
	s := &Scene{
		id:           1,
		nextHandle:   10,
		handles:      make(map[string]remoteapi.ObjectHandle),
		positions:    make(map[remoteapi.ObjectHandle]r3.Vector),
		orientations: make(map[remoteapi.ObjectHandle]r3.Vector),
		velocities:   make(map[remoteapi.ObjectHandle]float64),
		streams:      make(map[streamKey]bool),
		resolution:   DefaultResolution,
	}
	for _, name := range DefaultObjects {
		s.addObject(name)
	}
	s.positions[s.handles["gripper_resting_position"]] = r3.Vector{X: 0, Y: 0.15, Z: 0.25}
	s.positions[s.handles["gripper_target"]] = r3.Vector{X: 0, Y: 0.15, Z: 0.25}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scene) addObject(name string) remoteapi.ObjectHandle {
	if h, ok := s.handles[name]; ok {
		return h
	}
	h := s.nextHandle
	s.nextHandle++
	s.handles[name] = h
	return h
}

// Dial returns the scene itself. It fails for a closed scene or an invalid client id.
func (s *Scene) Dial(ctx context.Context, cfg remoteapi.Config) (remoteapi.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remoteapi.ErrClosed
	}
	if s.id == remoteapi.InvalidClientID {
		return nil, fmt.Errorf("dial %s: %w", cfg.Addr(), remoteapi.ErrNotConnected)
	}
	return s, nil
}

// ID returns the client id of the session.
func (s *Scene) ID() remoteapi.ClientID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Close marks the scene closed. Later calls fail with ErrClosed.
func (s *Scene) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// begin locks the scene, records the call and reports whether it may proceed.
// The caller must unlock.
func (s *Scene) begin(ctx context.Context, c Call) error {
	s.mu.Lock()
	s.calls = append(s.calls, c)
	if s.closed {
		return remoteapi.ErrClosed
	}
	return ctx.Err()
}

func (s *Scene) StartSimulation(ctx context.Context, mode remoteapi.OpMode) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, Call{Op: OpStartSimulation, Mode: mode}); err != nil {
		return err
	}
	s.running = true
	return nil
}

func (s *Scene) StopSimulation(ctx context.Context, mode remoteapi.OpMode) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, Call{Op: OpStopSimulation, Mode: mode}); err != nil {
		return err
	}
	s.running = false
	for h := range s.velocities {
		s.velocities[h] = 0
	}
	return nil
}

func (s *Scene) Synchronous(ctx context.Context, enable bool) error {
	value := 0.0
	if enable {
		value = 1
	}
	defer s.mu.Unlock()
	if err := s.begin(ctx, Call{Op: OpSynchronous, Value: value, Mode: remoteapi.OpBlocking}); err != nil {
		return err
	}
	s.synchronous = enable
	return nil
}

func (s *Scene) SynchronousTrigger(ctx context.Context) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, Call{Op: OpSynchronousTrigger, Mode: remoteapi.OpBlocking}); err != nil {
		return err
	}
	if !s.synchronous {
		return remoteapi.ReturnIllegalOpMode
	}
	if s.running {
		s.steps++
	}
	return nil
}

func (s *Scene) ObjectHandle(ctx context.Context, name string, mode remoteapi.OpMode) (remoteapi.ObjectHandle, error) {
	defer s.mu.Unlock()
	if err := s.begin(ctx, Call{Op: OpGetObjectHandle, Name: name, Mode: mode}); err != nil {
		return 0, err
	}
	h, ok := s.handles[name]
	if !ok {
		return 0, &remoteapi.RemoteError{Op: OpGetObjectHandle, Message: fmt.Sprintf("object %q does not exist", name)}
	}
	return h, nil
}

func (s *Scene) SetJointTargetVelocity(ctx context.Context, joint remoteapi.ObjectHandle, velocity float64, mode remoteapi.OpMode) error {
	defer s.mu.Unlock()
	if err := s.begin(ctx, Call{Op: OpSetJointTargetVelocity, Handle: joint, Value: velocity, Mode: mode}); err != nil {
		return err
	}
	if err := s.checkHandle(OpSetJointTargetVelocity, joint); err != nil {
		return err
	}
	s.velocities[joint] = velocity
	return nil
}

func (s *Scene) SetObjectPosition(ctx context.Context, object, relativeTo remoteapi.ObjectHandle, position r3.Vector, mode remoteapi.OpMode) error {
	defer s.mu.Unlock()
	c := Call{Op: OpSetObjectPosition, Handle: object, RelativeTo: relativeTo, Vector: position, Mode: mode}
	if err := s.begin(ctx, c); err != nil {
		return err
	}
	if err := s.checkHandle(OpSetObjectPosition, object); err != nil {
		return err
	}
	if relativeTo == remoteapi.HandleWorld {
		s.positions[object] = position
		return nil
	}
	if err := s.checkHandle(OpSetObjectPosition, relativeTo); err != nil {
		return err
	}
	s.positions[object] = s.positions[relativeTo].Add(position)
	return nil
}

func (s *Scene) ObjectPosition(ctx context.Context, object, relativeTo remoteapi.ObjectHandle, mode remoteapi.OpMode) (r3.Vector, error) {
	defer s.mu.Unlock()
	c := Call{Op: OpGetObjectPosition, Handle: object, RelativeTo: relativeTo, Mode: mode}
	if err := s.begin(ctx, c); err != nil {
		return r3.Vector{}, err
	}
	return s.readVector(OpGetObjectPosition, s.positions, object, relativeTo, mode)
}

func (s *Scene) ObjectOrientation(ctx context.Context, object, relativeTo remoteapi.ObjectHandle, mode remoteapi.OpMode) (r3.Vector, error) {
	defer s.mu.Unlock()
	c := Call{Op: OpGetObjectOrientation, Handle: object, RelativeTo: relativeTo, Mode: mode}
	if err := s.begin(ctx, c); err != nil {
		return r3.Vector{}, err
	}
	return s.readVector(OpGetObjectOrientation, s.orientations, object, relativeTo, mode)
}

func (s *Scene) readVector(op string, values map[remoteapi.ObjectHandle]r3.Vector, object, relativeTo remoteapi.ObjectHandle, mode remoteapi.OpMode) (r3.Vector, error) {
	if err := s.checkHandle(op, object); err != nil {
		return r3.Vector{}, err
	}
	if relativeTo != remoteapi.HandleWorld {
		if err := s.checkHandle(op, relativeTo); err != nil {
			return r3.Vector{}, err
		}
	}
	if err := s.stream(streamKey{object, op}, mode); err != nil {
		return r3.Vector{}, err
	}
	v := values[object]
	if relativeTo != remoteapi.HandleWorld {
		v = v.Sub(values[relativeTo])
	}
	return v, nil
}

func (s *Scene) VisionSensorImage(ctx context.Context, sensor remoteapi.ObjectHandle, grayscale bool, mode remoteapi.OpMode) (remoteapi.RawImage, error) {
	defer s.mu.Unlock()
	if err := s.begin(ctx, Call{Op: OpGetVisionSensorImage, Handle: sensor, Mode: mode}); err != nil {
		return remoteapi.RawImage{}, err
	}
	if err := s.checkHandle(OpGetVisionSensorImage, sensor); err != nil {
		return remoteapi.RawImage{}, err
	}
	if err := s.stream(streamKey{sensor, OpGetVisionSensorImage}, mode); err != nil {
		return remoteapi.RawImage{}, err
	}
	if !s.running {
		return remoteapi.RawImage{}, remoteapi.ReturnNoValue
	}
	if s.imageFailures > 0 {
		s.imageFailures--
		return remoteapi.RawImage{}, remoteapi.ReturnNoValue
	}
	if !s.synchronous {
		s.steps++
	}
	return s.frame(grayscale), nil
}

// stream applies the subscription rules of mode to key.
func (s *Scene) stream(key streamKey, mode remoteapi.OpMode) error {
	switch mode {
	case remoteapi.OpStreaming:
		if !s.streams[key] {
			s.streams[key] = true
			return remoteapi.ReturnNoValue
		}
	case remoteapi.OpBuffer:
		if !s.streams[key] {
			return remoteapi.ReturnNoValue
		}
	case remoteapi.OpDiscontinue:
		delete(s.streams, key)
		return remoteapi.ReturnNoValue
	case remoteapi.OpBlocking, remoteapi.OpOneshotWait:
	default:
		return remoteapi.ReturnIllegalOpMode
	}
	return nil
}

// frame renders a diagonal gradient that shifts with every step.
// Rows are written bottom-up like a real vision sensor.
func (s *Scene) frame(grayscale bool) remoteapi.RawImage {
	n := s.resolution
	channels := 3
	if grayscale {
		channels = 1
	}
	data := make([]byte, n*n*channels)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			v := byte(x + y + s.steps)
			off := (y*n + x) * channels
			for c := 0; c < channels; c++ {
				data[off+c] = v
			}
		}
	}
	return remoteapi.RawImage{
		Resolution: image.Pt(n, n),
		Data:       data,
		Grayscale:  grayscale,
	}
}

func (s *Scene) checkHandle(op string, h remoteapi.ObjectHandle) error {
	for _, known := range s.handles {
		if known == h {
			return nil
		}
	}
	return &remoteapi.RemoteError{Op: op, Message: fmt.Sprintf("invalid handle %d", h)}
}

// Calls returns a copy of the recorded calls.
func (s *Scene) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded calls of one operation.
func (s *Scene) CallsTo(op string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets the recorded calls.
func (s *Scene) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Handle returns the handle of a named object.
func (s *Scene) Handle(name string) (remoteapi.ObjectHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[name]
	return h, ok
}

// Position returns the world position of a named object.
func (s *Scene) Position(name string) r3.Vector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[s.handles[name]]
}

// Velocity returns the target velocity of a named joint.
func (s *Scene) Velocity(name string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.velocities[s.handles[name]]
}

// Running reports whether the simulation is running.
func (s *Scene) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IsSynchronous reports whether stepped mode is enabled.
func (s *Scene) IsSynchronous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synchronous
}

// Steps returns the number of simulation steps taken.
func (s *Scene) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// Closed reports whether Close was called.
func (s *Scene) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Package zmqapi implements remoteapi.Session over the simulator's ZeroMQ remote API.
//
// Calls are CBOR-encoded and sent over a single REQ socket, one at a time.
// The ZeroMQ API has no server-side streaming, so streaming and buffer reads are
// emulated: a buffer read is only valid once the value has been streamed.
package zmqapi

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-zeromq/zmq4"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gwillem/simbot/pkg/remoteapi"
)

// simulation_stopped as reported by sim.getSimulationState.
const simulationStopped = 0

var nextID atomic.Int32

// Dialer opens ZeroMQ sessions.
type Dialer struct {
	Logger *zap.Logger
}

var _ remoteapi.Dialer = Dialer{}

type streamKey struct {
	handle remoteapi.ObjectHandle
	fn     string
}

type session struct {
	id     remoteapi.ClientID
	cfg    remoteapi.Config
	uuid   string
	logger *zap.Logger

	mu     sync.Mutex
	sock   zmq4.Socket
	cancel context.CancelFunc
	closed bool

	streamMu sync.Mutex
	streams  map[streamKey]bool
}

var _ remoteapi.Session = (*session)(nil)

// Dial connects to the simulator at cfg.Addr(). With cfg.WaitUntilConnected it also
// probes the simulator and fails if it does not answer within cfg.Timeout.
func (d Dialer) Dial(ctx context.Context, cfg remoteapi.Config) (remoteapi.Session, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint := "tcp://" + cfg.Addr()
	sockCtx, cancel := context.WithCancel(context.Background())
	opts := []zmq4.Option{zmq4.WithDialerRetry(250 * time.Millisecond)}
	if cfg.Timeout > 0 {
		opts = append(opts, zmq4.WithDialerTimeout(cfg.Timeout))
	}
	sock := zmq4.NewReq(sockCtx, opts...)
	if err := sock.Dial(endpoint); err != nil {
		cancel()
		sock.Close()
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	s := &session{
		id:      remoteapi.ClientID(nextID.Add(1) - 1),
		cfg:     cfg,
		uuid:    uuid.NewString(),
		logger:  logger,
		sock:    sock,
		cancel:  cancel,
		streams: make(map[streamKey]bool),
	}

	if cfg.WaitUntilConnected {
		if _, err := s.simulationState(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("probe %s: %w", endpoint, err)
		}
	}

	logger.Debug("session opened",
		zap.String("endpoint", endpoint),
		zap.Int("client_id", int(s.id)),
	)
	return s, nil
}

func (s *session) ID() remoteapi.ClientID {
	return s.id
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *session) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	s.logger.Debug("session closed", zap.Int("client_id", int(s.id)))
	return s.sock.Close()
}

type result struct {
	data []byte
	err  error
}

// call performs one request/reply exchange. An abandoned exchange leaves the REQ
// socket unusable, so a cancelled call closes the session.
func (s *session) call(ctx context.Context, fn string, args ...any) ([]cbor.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok && s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	req, err := encodeRequest(s.uuid, fn, args)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", fn, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remoteapi.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}

	sock := s.sock
	done := make(chan result, 1)
	go func() {
		if err := sock.Send(zmq4.NewMsg(req)); err != nil {
			done <- result{err: err}
			return
		}
		msg, err := sock.Recv()
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{data: msg.Bytes()}
	}()

	select {
	case <-ctx.Done():
		s.closeLocked()
		return nil, fmt.Errorf("%s: %w", fn, ctx.Err())
	case r := <-done:
		if r.err != nil {
			s.closeLocked()
			return nil, fmt.Errorf("%s: %w", fn, r.err)
		}
		return decodeReply(fn, r.data)
	}
}

// stream applies the emulated subscription rules of mode to key.
// A nil result means the read goes to the simulator.
func (s *session) stream(key streamKey, mode remoteapi.OpMode) error {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	switch mode {
	case remoteapi.OpStreaming:
		s.streams[key] = true
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

func (s *session) simulationState(ctx context.Context) (int, error) {
	const fn = "sim.getSimulationState"
	ret, err := s.call(ctx, fn)
	if err != nil {
		return 0, err
	}
	var state int
	if err := decodeRet(fn, ret, 0, &state); err != nil {
		return 0, err
	}
	return state, nil
}

func (s *session) StartSimulation(ctx context.Context, mode remoteapi.OpMode) error {
	_, err := s.call(ctx, "sim.startSimulation")
	return err
}

func (s *session) StopSimulation(ctx context.Context, mode remoteapi.OpMode) error {
	if _, err := s.call(ctx, "sim.stopSimulation"); err != nil {
		return err
	}
	if mode != remoteapi.OpOneshotWait {
		return nil
	}

	interval := s.cfg.CommThreadCycle
	if interval <= 0 {
		interval = 5 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		state, err := s.simulationState(ctx)
		if err != nil {
			return err
		}
		if state == simulationStopped {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for simulation stop: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *session) Synchronous(ctx context.Context, enable bool) error {
	_, err := s.call(ctx, "sim.setStepping", enable)
	return err
}

func (s *session) SynchronousTrigger(ctx context.Context) error {
	_, err := s.call(ctx, "sim.step")
	return err
}

func (s *session) ObjectHandle(ctx context.Context, name string, mode remoteapi.OpMode) (remoteapi.ObjectHandle, error) {
	const fn = "sim.getObject"
	ret, err := s.call(ctx, fn, objectPath(name))
	if err != nil {
		return 0, err
	}
	var h int
	if err := decodeRet(fn, ret, 0, &h); err != nil {
		return 0, err
	}
	return remoteapi.ObjectHandle(h), nil
}

func (s *session) SetJointTargetVelocity(ctx context.Context, joint remoteapi.ObjectHandle, velocity float64, mode remoteapi.OpMode) error {
	_, err := s.call(ctx, "sim.setJointTargetVelocity", int(joint), velocity)
	return err
}

func (s *session) SetObjectPosition(ctx context.Context, object, relativeTo remoteapi.ObjectHandle, position r3.Vector, mode remoteapi.OpMode) error {
	_, err := s.call(ctx, "sim.setObjectPosition", int(object), vector(position), int(relativeTo))
	return err
}

func (s *session) ObjectPosition(ctx context.Context, object, relativeTo remoteapi.ObjectHandle, mode remoteapi.OpMode) (r3.Vector, error) {
	return s.readVector(ctx, "sim.getObjectPosition", object, relativeTo, mode)
}

func (s *session) ObjectOrientation(ctx context.Context, object, relativeTo remoteapi.ObjectHandle, mode remoteapi.OpMode) (r3.Vector, error) {
	return s.readVector(ctx, "sim.getObjectOrientation", object, relativeTo, mode)
}

func (s *session) readVector(ctx context.Context, fn string, object, relativeTo remoteapi.ObjectHandle, mode remoteapi.OpMode) (r3.Vector, error) {
	if err := s.stream(streamKey{object, fn}, mode); err != nil {
		return r3.Vector{}, err
	}
	ret, err := s.call(ctx, fn, int(object), int(relativeTo))
	if err != nil {
		return r3.Vector{}, err
	}
	var v []float64
	if err := decodeRet(fn, ret, 0, &v); err != nil {
		return r3.Vector{}, err
	}
	if len(v) != 3 {
		return r3.Vector{}, fmt.Errorf("%s: got %d components, want 3: %w", fn, len(v), remoteapi.ReturnLocalError)
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

func (s *session) VisionSensorImage(ctx context.Context, sensor remoteapi.ObjectHandle, grayscale bool, mode remoteapi.OpMode) (remoteapi.RawImage, error) {
	const fn = "sim.getVisionSensorImg"
	if err := s.stream(streamKey{sensor, fn}, mode); err != nil {
		return remoteapi.RawImage{}, err
	}
	options := 0
	if grayscale {
		options = 1
	}
	ret, err := s.call(ctx, fn, int(sensor), options)
	if err != nil {
		return remoteapi.RawImage{}, err
	}

	var data []byte
	if err := decodeRet(fn, ret, 0, &data); err != nil {
		return remoteapi.RawImage{}, err
	}
	var res []int
	if err := decodeRet(fn, ret, 1, &res); err != nil {
		return remoteapi.RawImage{}, err
	}
	if len(data) == 0 || len(res) < 2 || res[0] <= 0 || res[1] <= 0 {
		return remoteapi.RawImage{}, remoteapi.ReturnNoValue
	}
	return remoteapi.RawImage{
		Resolution: image.Pt(res[0], res[1]),
		Data:       data,
		Grayscale:  grayscale,
	}, nil
}

// objectPath turns a plain scene name into an absolute object path.
func objectPath(name string) string {
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, ".") || strings.HasPrefix(name, ":") {
		return name
	}
	return "/" + name
}

func vector(v r3.Vector) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

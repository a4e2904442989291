package robot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gwillem/simbot/pkg/remoteapi"
)

// ErrStopped is returned by commands issued after Stop.
var ErrStopped = errors.New("robot: simulation stopped")

// Pose is the position and orientation (Euler angles) of an object in the world frame.
type Pose struct {
	Position    r3.Vector
	Orientation r3.Vector
}

// Interface drives the simulated robot over a remote API session.
type Interface struct {
	session remoteapi.Session
	cfg     Config
	logger  *zap.Logger

	camera     remoteapi.ObjectHandle
	leftWheel  remoteapi.ObjectHandle
	rightWheel remoteapi.ObjectHandle
	gripper    *Gripper

	mu      sync.Mutex
	primed  map[remoteapi.ObjectHandle]bool
	stopped bool
}

// Connect dials the simulator and sets up the robot on the new session.
// The session is closed again if setup fails.
func Connect(ctx context.Context, dialer remoteapi.Dialer, cfg Config, logger *zap.Logger) (*Interface, error) {
	session, err := dialer.Dial(ctx, cfg.Remote())
	if err != nil {
		return nil, fmt.Errorf("connect to simulator: %w", err)
	}
	r, err := New(ctx, session, cfg, logger)
	if err != nil {
		return nil, multierr.Append(err, session.Close())
	}
	return r, nil
}

// New restarts the scene on session and resolves the robot's objects.
// The session must be connected.
func New(ctx context.Context, session remoteapi.Session, cfg Config, logger *zap.Logger) (*Interface, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if session == nil || session.ID() == remoteapi.InvalidClientID {
		return nil, remoteapi.ErrNotConnected
	}
	cfg.Scene = cfg.Scene.withDefaults()

	r := &Interface{
		session: session,
		cfg:     cfg,
		logger:  logger.With(zap.Int("client_id", int(session.ID()))),
		primed:  make(map[remoteapi.ObjectHandle]bool),
	}

	if err := session.StopSimulation(ctx, remoteapi.OpOneshot); err != nil {
		return nil, fmt.Errorf("stop simulation: %w", err)
	}
	if err := session.StartSimulation(ctx, remoteapi.OpOneshot); err != nil {
		return nil, fmt.Errorf("start simulation: %w", err)
	}
	if err := session.Synchronous(ctx, cfg.Synchronous); err != nil {
		return nil, fmt.Errorf("set synchronous mode: %w", err)
	}
	r.logger.Info("connected", zap.Bool("synchronous", cfg.Synchronous))

	if err := r.setup(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Interface) setup(ctx context.Context) error {
	names := r.cfg.Scene

	var err error
	if r.camera, err = resolveHandle(ctx, r.session, names.VisionSensor); err != nil {
		return err
	}
	if r.leftWheel, err = resolveHandle(ctx, r.session, names.LeftWheel); err != nil {
		return err
	}
	if r.rightWheel, err = resolveHandle(ctx, r.session, names.RightWheel); err != nil {
		return err
	}
	if err := r.primeCamera(ctx, r.camera); err != nil {
		return err
	}
	if r.gripper, err = NewGripper(ctx, r.session, names); err != nil {
		return err
	}
	r.gripper.check = r.checkRunning

	r.logger.Debug("scene resolved",
		zap.Int("camera", int(r.camera)),
		zap.Int("left_wheel", int(r.leftWheel)),
		zap.Int("right_wheel", int(r.rightWheel)),
	)
	return nil
}

func resolveHandle(ctx context.Context, session remoteapi.Session, name string) (remoteapi.ObjectHandle, error) {
	h, err := session.ObjectHandle(ctx, name, remoteapi.OpBlocking)
	if err != nil {
		return 0, fmt.Errorf("resolve %q: %w", name, err)
	}
	return h, nil
}

// ObjectHandle resolves any named scene object.
func (r *Interface) ObjectHandle(ctx context.Context, name string) (remoteapi.ObjectHandle, error) {
	return resolveHandle(ctx, r.session, name)
}

// ClientID returns the id of the underlying session.
func (r *Interface) ClientID() remoteapi.ClientID { return r.session.ID() }

// Camera returns the handle of the robot's vision sensor.
func (r *Interface) Camera() remoteapi.ObjectHandle { return r.camera }

// LeftWheel returns the handle of the left wheel joint.
func (r *Interface) LeftWheel() remoteapi.ObjectHandle { return r.leftWheel }

// RightWheel returns the handle of the right wheel joint.
func (r *Interface) RightWheel() remoteapi.ObjectHandle { return r.rightWheel }

// Gripper returns the robot's gripper.
func (r *Interface) Gripper() *Gripper { return r.gripper }

// Synchronous reports whether the simulation runs in stepped mode.
func (r *Interface) Synchronous() bool { return r.cfg.Synchronous }

func (r *Interface) checkRunning() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	return nil
}

// SetLeftSpeed sets the target velocity of the left wheel in rad/s.
// The command does not wait for the simulator to apply it.
func (r *Interface) SetLeftSpeed(ctx context.Context, speed float64) error {
	if err := r.checkRunning(); err != nil {
		return err
	}
	if err := r.session.SetJointTargetVelocity(ctx, r.leftWheel, speed, remoteapi.OpOneshot); err != nil {
		return fmt.Errorf("set left speed: %w", err)
	}
	return nil
}

// SetRightSpeed sets the target velocity of the right wheel in rad/s.
// The command does not wait for the simulator to apply it.
func (r *Interface) SetRightSpeed(ctx context.Context, speed float64) error {
	if err := r.checkRunning(); err != nil {
		return err
	}
	if err := r.session.SetJointTargetVelocity(ctx, r.rightWheel, speed, remoteapi.OpOneshot); err != nil {
		return fmt.Errorf("set right speed: %w", err)
	}
	return nil
}

func (r *Interface) primeCamera(ctx context.Context, handle remoteapi.ObjectHandle) error {
	r.mu.Lock()
	primed := r.primed[handle]
	r.mu.Unlock()
	if primed {
		return nil
	}

	_, err := r.session.VisionSensorImage(ctx, handle, true, remoteapi.OpStreaming)
	if err != nil && !remoteapi.IsNoValue(err) {
		return fmt.Errorf("start camera %d stream: %w", handle, err)
	}
	r.mu.Lock()
	r.primed[handle] = true
	r.mu.Unlock()
	return nil
}

// ImageFromCamera waits for the next frame of a vision sensor and returns it top-down.
//
// Reads are retried every ImagePollInterval while the simulator reports a status
// failure. The wait ends with ctx or after ImageTimeout, whichever comes first.
// Transport errors end it at once.
//
// ImageTimeout only bounds the wait between reads. A read in flight is never cut
// short by it, since an abandoned request ends the session.
func (r *Interface) ImageFromCamera(ctx context.Context, handle remoteapi.ObjectHandle) (*image.Gray, error) {
	if err := r.checkRunning(); err != nil {
		return nil, err
	}
	var deadline <-chan time.Time
	if timeout := r.cfg.ImageTimeout(); timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	if err := r.primeCamera(ctx, handle); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(r.cfg.ImagePollInterval())
	defer ticker.Stop()

	for reads := 1; ; reads++ {
		raw, err := r.session.VisionSensorImage(ctx, handle, true, remoteapi.OpBuffer)
		if err == nil {
			img, err := decodeFrame(raw)
			if err != nil {
				return nil, fmt.Errorf("decode camera %d frame: %w", handle, err)
			}
			return img, nil
		}
		if !remoteapi.IsStatus(err) {
			return nil, fmt.Errorf("read camera %d: %w", handle, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for camera %d frame after %d reads: %w", handle, reads, ctx.Err())
		case <-deadline:
			return nil, fmt.Errorf("wait for camera %d frame after %d reads: %w", handle, reads, context.DeadlineExceeded)
		case <-ticker.C:
		}
	}
}

// PoseFromHandle returns the latest streamed position and orientation of an object.
// Until the streams are primed it fails with an error matching remoteapi.ReturnNoValue.
func (r *Interface) PoseFromHandle(ctx context.Context, handle remoteapi.ObjectHandle) (Pose, error) {
	pose, errs := r.readPose(ctx, handle)
	if err := multierr.Combine(errs...); err != nil {
		return Pose{}, err
	}
	return pose, nil
}

// PrimePose starts the position and orientation streams of an object.
func (r *Interface) PrimePose(ctx context.Context, handle remoteapi.ObjectHandle) error {
	_, errs := r.readPose(ctx, handle)
	var err error
	for _, e := range errs {
		if !remoteapi.IsNoValue(e) {
			err = multierr.Append(err, e)
		}
	}
	return err
}

// readPose reads both streams even if the first one fails, so a single call primes both.
func (r *Interface) readPose(ctx context.Context, handle remoteapi.ObjectHandle) (Pose, []error) {
	if err := r.checkRunning(); err != nil {
		return Pose{}, []error{err}
	}
	var (
		pose Pose
		errs []error
		err  error
	)
	pose.Position, err = r.session.ObjectPosition(ctx, handle, remoteapi.HandleWorld, remoteapi.OpStreaming)
	if err != nil {
		errs = append(errs, fmt.Errorf("read position of %d: %w", handle, err))
	}
	pose.Orientation, err = r.session.ObjectOrientation(ctx, handle, remoteapi.HandleWorld, remoteapi.OpStreaming)
	if err != nil {
		errs = append(errs, fmt.Errorf("read orientation of %d: %w", handle, err))
	}
	return pose, errs
}

// FinishIteration advances the simulation by one step in synchronous mode.
// It does nothing otherwise.
func (r *Interface) FinishIteration(ctx context.Context) error {
	if err := r.checkRunning(); err != nil {
		return err
	}
	if !r.cfg.Synchronous {
		return nil
	}
	if err := r.session.SynchronousTrigger(ctx); err != nil {
		return fmt.Errorf("trigger step: %w", err)
	}
	return nil
}

// Stop stops the simulation and waits until the simulator confirms it.
// Stopping twice is a no-op.
func (r *Interface) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}
	if err := r.session.StopSimulation(ctx, remoteapi.OpOneshotWait); err != nil {
		return fmt.Errorf("stop simulation: %w", err)
	}
	r.stopped = true
	r.logger.Info("simulation stopped")
	return nil
}

// Close closes the underlying session. It does not stop the simulation.
func (r *Interface) Close() error {
	return r.session.Close()
}

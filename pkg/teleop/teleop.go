// Package teleop provides teleoperation control for the simulated robot.
package teleop

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"github.com/gwillem/simbot/pkg/remoteapi"
	"github.com/gwillem/simbot/pkg/robot"
)

// Robot is the part of robot.Interface the controller drives.
type Robot interface {
	SetLeftSpeed(ctx context.Context, speed float64) error
	SetRightSpeed(ctx context.Context, speed float64) error
	PrimePose(ctx context.Context, handle remoteapi.ObjectHandle) error
	PoseFromHandle(ctx context.Context, handle remoteapi.ObjectHandle) (robot.Pose, error)
	FinishIteration(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Gripper moves the robot's gripper.
type Gripper interface {
	Move(ctx context.Context, coords r3.Vector, incremental bool) error
}

var (
	_ Robot   = (*robot.Interface)(nil)
	_ Gripper = (*robot.Gripper)(nil)
)

// Command is a drive command, both values in the range [-100, 100].
// Positive turn steers right.
type Command struct {
	Throttle float64
	Turn     float64
}

// State represents the current state of teleoperation.
type State struct {
	Command    Command
	LeftSpeed  float64 // rad/s
	RightSpeed float64 // rad/s
	Pose       robot.Pose
	HasPose    bool
	Timestamp  time.Time
	Error      error
}

// Config holds configuration for the controller.
type Config struct {
	Hz      int
	Wheels  robot.WheelCalibration
	Tracked remoteapi.ObjectHandle // object whose pose is reported
}

// Controller manages the teleoperation control loop.
type Controller struct {
	robot   Robot
	gripper Gripper
	hz      int
	wheels  robot.WheelCalibration
	tracked remoteapi.ObjectHandle

	mu      sync.RWMutex
	cmd     Command
	nudges  []r3.Vector
	running bool
	stateCh chan State
	logCh   chan string
}

// NewController creates a new teleoperation controller.
func NewController(r Robot, g Gripper, cfg Config) *Controller {
	if cfg.Hz <= 0 {
		cfg.Hz = 30
	}
	return &Controller{
		robot:   r,
		gripper: g,
		hz:      cfg.Hz,
		wheels:  cfg.Wheels,
		tracked: cfg.Tracked,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the control frequency.
func (c *Controller) Hz() int {
	return c.hz
}

// SetCommand replaces the drive command applied on the next tick.
func (c *Controller) SetCommand(cmd Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cmd = Command{
		Throttle: clamp(cmd.Throttle),
		Turn:     clamp(cmd.Turn),
	}
}

// Command returns the current drive command.
func (c *Controller) Command() Command {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cmd
}

// Halt zeroes the drive command.
func (c *Controller) Halt() {
	c.SetCommand(Command{})
}

// Nudge queues an incremental gripper move for the next tick.
func (c *Controller) Nudge(delta r3.Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nudges = append(c.nudges, delta)
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start runs the control loop until ctx is done. It then stops the robot.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	if err := c.robot.PrimePose(ctx, c.tracked); err != nil {
		c.log("Warning: failed to track object %d: %v", c.tracked, err)
	}

	c.log("Teleoperation started at %d Hz", c.hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

func (c *Controller) take() (Command, []r3.Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nudges := c.nudges
	c.nudges = nil
	return c.cmd, nudges
}

func (c *Controller) step(ctx context.Context) {
	cmd, nudges := c.take()

	left, right := Mix(cmd.Throttle, cmd.Turn)
	state := State{
		Command:    cmd,
		LeftSpeed:  c.wheels.Denormalize(left),
		RightSpeed: c.wheels.Denormalize(right),
	}

	if err := c.robot.SetLeftSpeed(ctx, state.LeftSpeed); err != nil {
		c.log("Drive error: %v", err)
		c.sendState(State{Error: err, Timestamp: time.Now()})
		return
	}
	if err := c.robot.SetRightSpeed(ctx, state.RightSpeed); err != nil {
		c.log("Drive error: %v", err)
		c.sendState(State{Error: err, Timestamp: time.Now()})
		return
	}

	for _, delta := range nudges {
		if err := c.gripper.Move(ctx, delta, true); err != nil {
			c.log("Gripper error: %v", err)
		}
	}

	pose, err := c.robot.PoseFromHandle(ctx, c.tracked)
	switch {
	case err == nil:
		state.Pose = pose
		state.HasPose = true
	case !remoteapi.IsNoValue(err):
		c.log("Pose error: %v", err)
	}

	if err := c.robot.FinishIteration(ctx); err != nil {
		c.log("Step error: %v", err)
	}

	state.Timestamp = time.Now()
	c.sendState(state)
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	ctx := context.Background()
	if err := c.robot.SetLeftSpeed(ctx, 0); err != nil {
		c.log("Warning: failed to stop left wheel: %v", err)
	}
	if err := c.robot.SetRightSpeed(ctx, 0); err != nil {
		c.log("Warning: failed to stop right wheel: %v", err)
	}
	if err := c.robot.Stop(ctx); err != nil {
		c.log("Warning: failed to stop simulation: %v", err)
	} else {
		c.log("Simulation stopped")
	}
	c.log("Teleoperation stopped")
}

// Mix converts a throttle and turn command into left and right wheel commands.
// All values are in the range [-100, 100].
func Mix(throttle, turn float64) (left, right float64) {
	return clamp(throttle + turn), clamp(throttle - turn)
}

func clamp(v float64) float64 {
	return math.Max(-100, math.Min(100, v))
}

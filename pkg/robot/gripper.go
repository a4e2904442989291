package robot

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/gwillem/simbot/pkg/remoteapi"
)

// Gripper moves the robot's gripper by repositioning its IK target.
type Gripper struct {
	session remoteapi.Session
	camera  remoteapi.ObjectHandle
	target  remoteapi.ObjectHandle
	resting remoteapi.ObjectHandle

	// check is the owning interface's running check, if any.
	check func() error
}

// NewGripper resolves the gripper camera, target and resting reference.
func NewGripper(ctx context.Context, session remoteapi.Session, names SceneNames) (*Gripper, error) {
	names = names.withDefaults()
	g := &Gripper{session: session}

	var err error
	if g.camera, err = resolveHandle(ctx, session, names.GripperCamera); err != nil {
		return nil, err
	}
	if g.target, err = resolveHandle(ctx, session, names.GripperTarget); err != nil {
		return nil, err
	}
	if g.resting, err = resolveHandle(ctx, session, names.GripperResting); err != nil {
		return nil, err
	}
	return g, nil
}

// Camera returns the handle of the camera mounted on the gripper.
func (g *Gripper) Camera() remoteapi.ObjectHandle { return g.camera }

// Target returns the handle of the object the gripper follows.
func (g *Gripper) Target() remoteapi.ObjectHandle { return g.target }

// Resting returns the handle of the gripper's resting reference.
func (g *Gripper) Resting() remoteapi.ObjectHandle { return g.resting }

// Move moves the gripper to coords (left, away, up).
// When incremental, coords are added to the current target position. Otherwise
// they are relative to the resting position. The command is not acknowledged.
// A gripper owned by a stopped Interface returns ErrStopped.
func (g *Gripper) Move(ctx context.Context, coords r3.Vector, incremental bool) error {
	if g.check != nil {
		if err := g.check(); err != nil {
			return err
		}
	}
	relativeTo := g.resting
	if incremental {
		relativeTo = g.target
	}
	if err := g.session.SetObjectPosition(ctx, g.target, relativeTo, coords, remoteapi.OpOneshot); err != nil {
		return fmt.Errorf("move gripper: %w", err)
	}
	return nil
}

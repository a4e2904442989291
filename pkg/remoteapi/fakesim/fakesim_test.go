package fakesim

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/simbot/pkg/remoteapi"
)

func TestScene_ObjectHandle(t *testing.T) {
	ctx := context.Background()
	s := New(WithObjects("extra"))

	for _, name := range append(DefaultObjects, "extra") {
		_, err := s.ObjectHandle(ctx, name, remoteapi.OpBlocking)
		assert.NoError(t, err, name)
	}

	_, err := s.ObjectHandle(ctx, "missing", remoteapi.OpBlocking)
	assert.ErrorIs(t, err, remoteapi.ReturnRemoteError)
	assert.Len(t, s.CallsTo(OpGetObjectHandle), len(DefaultObjects)+2)
}

func TestScene_StreamingNeedsPriming(t *testing.T) {
	ctx := context.Background()
	s := New(WithPosition("box", r3.Vector{X: 1, Y: 2, Z: 3}))
	box, _ := s.Handle("box")

	_, err := s.ObjectPosition(ctx, box, remoteapi.HandleWorld, remoteapi.OpBuffer)
	assert.ErrorIs(t, err, remoteapi.ReturnNoValue, "buffer before streaming")

	_, err = s.ObjectPosition(ctx, box, remoteapi.HandleWorld, remoteapi.OpStreaming)
	assert.ErrorIs(t, err, remoteapi.ReturnNoValue, "first streaming read")

	pos, err := s.ObjectPosition(ctx, box, remoteapi.HandleWorld, remoteapi.OpStreaming)
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, pos)

	pos, err = s.ObjectPosition(ctx, box, remoteapi.HandleWorld, remoteapi.OpBuffer)
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, pos)

	_, err = s.ObjectPosition(ctx, box, remoteapi.HandleWorld, remoteapi.OpDiscontinue)
	assert.ErrorIs(t, err, remoteapi.ReturnNoValue)
	_, err = s.ObjectPosition(ctx, box, remoteapi.HandleWorld, remoteapi.OpBuffer)
	assert.ErrorIs(t, err, remoteapi.ReturnNoValue, "buffer after discontinue")

	_, err = s.ObjectPosition(ctx, box, remoteapi.HandleWorld, remoteapi.OpOneshot)
	assert.ErrorIs(t, err, remoteapi.ReturnIllegalOpMode)
}

func TestScene_SetObjectPositionFrames(t *testing.T) {
	ctx := context.Background()
	s := New(
		WithPosition("a", r3.Vector{X: 1, Y: 1, Z: 1}),
		WithPosition("ref", r3.Vector{X: 10}),
	)
	a, _ := s.Handle("a")
	ref, _ := s.Handle("ref")

	require.NoError(t, s.SetObjectPosition(ctx, a, a, r3.Vector{X: 0.5}, remoteapi.OpOneshot))
	assert.Equal(t, r3.Vector{X: 1.5, Y: 1, Z: 1}, s.Position("a"))

	require.NoError(t, s.SetObjectPosition(ctx, a, ref, r3.Vector{Y: 2}, remoteapi.OpOneshot))
	assert.Equal(t, r3.Vector{X: 10, Y: 2}, s.Position("a"))

	require.NoError(t, s.SetObjectPosition(ctx, a, remoteapi.HandleWorld, r3.Vector{Z: 4}, remoteapi.OpOneshot))
	assert.Equal(t, r3.Vector{Z: 4}, s.Position("a"))

	pos, err := s.ObjectPosition(ctx, a, ref, remoteapi.OpBlocking)
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{X: -10, Z: 4}, pos)

	err = s.SetObjectPosition(ctx, a, 9999, r3.Vector{}, remoteapi.OpOneshot)
	assert.ErrorIs(t, err, remoteapi.ReturnRemoteError)
}

func TestScene_VisionSensorImage(t *testing.T) {
	ctx := context.Background()
	s := New(WithResolution(4), WithImageFailures(2))
	cam, _ := s.Handle("Vision_sensor")

	_, err := s.VisionSensorImage(ctx, cam, true, remoteapi.OpStreaming)
	assert.ErrorIs(t, err, remoteapi.ReturnNoValue)

	_, err = s.VisionSensorImage(ctx, cam, true, remoteapi.OpBuffer)
	assert.ErrorIs(t, err, remoteapi.ReturnNoValue, "no frames while stopped")

	require.NoError(t, s.StartSimulation(ctx, remoteapi.OpOneshot))
	for i := 0; i < 2; i++ {
		_, err = s.VisionSensorImage(ctx, cam, true, remoteapi.OpBuffer)
		assert.ErrorIs(t, err, remoteapi.ReturnNoValue, "programmed failure %d", i)
	}

	img, err := s.VisionSensorImage(ctx, cam, true, remoteapi.OpBuffer)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Resolution.X)
	assert.Equal(t, 4, img.Resolution.Y)
	assert.Len(t, img.Data, 16)
	assert.True(t, img.Grayscale)

	rgb, err := s.VisionSensorImage(ctx, cam, false, remoteapi.OpBuffer)
	require.NoError(t, err)
	assert.Len(t, rgb.Data, 48)
}

func TestScene_Synchronous(t *testing.T) {
	ctx := context.Background()
	s := New()

	assert.ErrorIs(t, s.SynchronousTrigger(ctx), remoteapi.ReturnIllegalOpMode)

	require.NoError(t, s.Synchronous(ctx, true))
	require.NoError(t, s.StartSimulation(ctx, remoteapi.OpOneshot))
	require.NoError(t, s.SynchronousTrigger(ctx))
	require.NoError(t, s.SynchronousTrigger(ctx))
	assert.Equal(t, 2, s.Steps())
}

func TestScene_StopZeroesVelocities(t *testing.T) {
	ctx := context.Background()
	s := New()
	left, _ := s.Handle("fl_wheel_joint")

	require.NoError(t, s.SetJointTargetVelocity(ctx, left, 2.5, remoteapi.OpOneshot))
	assert.Equal(t, 2.5, s.Velocity("fl_wheel_joint"))

	require.NoError(t, s.StopSimulation(ctx, remoteapi.OpOneshotWait))
	assert.Zero(t, s.Velocity("fl_wheel_joint"))
	assert.False(t, s.Running())
}

func TestScene_DialAndClose(t *testing.T) {
	ctx := context.Background()

	s := New()
	sess, err := s.Dial(ctx, remoteapi.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, sess.Close())
	assert.True(t, s.Closed())
	assert.ErrorIs(t, sess.StartSimulation(ctx, remoteapi.OpOneshot), remoteapi.ErrClosed)

	_, err = s.Dial(ctx, remoteapi.DefaultConfig())
	assert.ErrorIs(t, err, remoteapi.ErrClosed)

	bad := New(WithClientID(remoteapi.InvalidClientID))
	_, err = bad.Dial(ctx, remoteapi.DefaultConfig())
	assert.ErrorIs(t, err, remoteapi.ErrNotConnected)
}

package robot

import (
	"context"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/simbot/pkg/remoteapi"
	"github.com/gwillem/simbot/pkg/remoteapi/fakesim"
)

func TestGripper_Move(t *testing.T) {
	tests := []struct {
		name        string
		coords      r3.Vector
		incremental bool
		expected    r3.Vector
	}{
		{"nudge", r3.Vector{X: 0.01}, true, r3.Vector{X: 0.01, Y: 0.15, Z: 0.25}},
		{"nudge down", r3.Vector{Z: -0.05}, true, r3.Vector{Y: 0.15, Z: 0.2}},
		{"absolute", r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}, false, r3.Vector{X: 0.1, Y: 0.25, Z: 0.35}},
		{"rest", r3.Vector{}, false, r3.Vector{Y: 0.15, Z: 0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			scene := fakesim.New()
			g, err := NewGripper(ctx, scene, DefaultSceneNames())
			require.NoError(t, err)
			scene.ResetCalls()

			require.NoError(t, g.Move(ctx, tt.coords, tt.incremental))

			calls := scene.Calls()
			require.Len(t, calls, 1, "exactly one command")
			c := calls[0]
			assert.Equal(t, fakesim.OpSetObjectPosition, c.Op)
			assert.Equal(t, g.Target(), c.Handle)
			if tt.incremental {
				assert.Equal(t, g.Target(), c.RelativeTo)
			} else {
				assert.Equal(t, g.Resting(), c.RelativeTo)
			}
			assert.Equal(t, tt.coords, c.Vector)
			assert.Equal(t, remoteapi.OpOneshot, c.Mode)

			got := scene.Position(GripperTarget)
			assert.InDelta(t, tt.expected.X, got.X, 1e-9)
			assert.InDelta(t, tt.expected.Y, got.Y, 1e-9)
			assert.InDelta(t, tt.expected.Z, got.Z, 1e-9)
		})
	}
}

func TestNewGripper_ResolvesHandles(t *testing.T) {
	ctx := context.Background()
	scene := fakesim.New()

	g, err := NewGripper(ctx, scene, SceneNames{})
	require.NoError(t, err)

	cam, _ := scene.Handle(GripperCamera)
	target, _ := scene.Handle(GripperTarget)
	resting, _ := scene.Handle(GripperResting)
	assert.Equal(t, cam, g.Camera())
	assert.Equal(t, target, g.Target())
	assert.Equal(t, resting, g.Resting())
}

func TestGripper_MoveError(t *testing.T) {
	ctx := context.Background()
	scene := fakesim.New()
	g, err := NewGripper(ctx, scene, DefaultSceneNames())
	require.NoError(t, err)
	require.NoError(t, scene.Close())

	err = g.Move(ctx, r3.Vector{X: 1}, true)
	assert.ErrorIs(t, err, remoteapi.ErrClosed)
}

package zmqapi

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-zeromq/zmq4"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gwillem/simbot/pkg/remoteapi"
)

// fakeServer answers remote API requests on an in-process REP socket.
type fakeServer struct {
	mu       sync.Mutex
	requests []request
	handle   func(req request) map[string]any
}

func (f *fakeServer) received(fn string) []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []request
	for _, r := range f.requests {
		if r.Func == fn {
			out = append(out, r)
		}
	}
	return out
}

func startServer(t *testing.T, handle func(req request) map[string]any) (*fakeServer, remoteapi.Config) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	rep := zmq4.NewRep(ctx)
	require.NoError(t, rep.Listen("tcp://127.0.0.1:0"))
	t.Cleanup(func() {
		cancel()
		rep.Close()
	})

	srv := &fakeServer{handle: handle}
	go func() {
		for {
			msg, err := rep.Recv()
			if err != nil {
				return
			}
			var req request
			if err := cbor.Unmarshal(msg.Bytes(), &req); err != nil {
				return
			}
			srv.mu.Lock()
			srv.requests = append(srv.requests, req)
			srv.mu.Unlock()

			out, err := cbor.Marshal(srv.handle(req))
			if err != nil {
				return
			}
			if err := rep.Send(zmq4.NewMsg(out)); err != nil {
				return
			}
		}
	}()

	host, port, err := net.SplitHostPort(rep.Addr().String())
	require.NoError(t, err)
	cfg := remoteapi.DefaultConfig()
	cfg.Address = host
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)
	cfg.Timeout = 2 * time.Second
	return srv, cfg
}

func dial(t *testing.T, cfg remoteapi.Config) remoteapi.Session {
	t.Helper()
	sess, err := Dialer{Logger: zaptest.NewLogger(t)}.Dial(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func sceneHandler(req request) map[string]any {
	switch req.Func {
	case "sim.getSimulationState":
		return map[string]any{"ret": []any{0}}
	case "sim.getObject":
		if len(req.Args) == 1 && req.Args[0] == "/Vision_sensor" {
			return map[string]any{"ret": []any{42}}
		}
		return map[string]any{"err": "object does not exist"}
	case "sim.getObjectPosition":
		return map[string]any{"ret": []any{[]float64{1, 2, 3}}}
	case "sim.getObjectOrientation":
		return map[string]any{"ret": []any{[]float64{0.1, 0.2}}}
	case "sim.getVisionSensorImg":
		return map[string]any{"ret": []any{[]byte{1, 2, 3, 4}, []int{2, 2}}}
	default:
		return map[string]any{"ret": []any{}}
	}
}

func TestDialer_Probe(t *testing.T) {
	srv, cfg := startServer(t, sceneHandler)

	sess := dial(t, cfg)
	assert.NotEqual(t, remoteapi.InvalidClientID, sess.ID())
	assert.Len(t, srv.received("sim.getSimulationState"), 1)
}

func TestDialer_ProbeFailure(t *testing.T) {
	_, cfg := startServer(t, func(req request) map[string]any {
		return map[string]any{"err": "not ready"}
	})

	_, err := Dialer{}.Dial(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, remoteapi.ReturnRemoteError)
}

func TestSession_ObjectHandle(t *testing.T) {
	srv, cfg := startServer(t, sceneHandler)
	sess := dial(t, cfg)
	ctx := context.Background()

	h, err := sess.ObjectHandle(ctx, "Vision_sensor", remoteapi.OpBlocking)
	require.NoError(t, err)
	assert.Equal(t, remoteapi.ObjectHandle(42), h)

	_, err = sess.ObjectHandle(ctx, "nope", remoteapi.OpBlocking)
	assert.ErrorIs(t, err, remoteapi.ReturnRemoteError)

	reqs := srv.received("sim.getObject")
	require.Len(t, reqs, 2)
	assert.Equal(t, "go", reqs[0].Lang)
	assert.Equal(t, 1, reqs[0].ArgsL)
}

func TestSession_ObjectPositionStreaming(t *testing.T) {
	srv, cfg := startServer(t, sceneHandler)
	sess := dial(t, cfg)
	ctx := context.Background()

	_, err := sess.ObjectPosition(ctx, 42, remoteapi.HandleWorld, remoteapi.OpBuffer)
	assert.ErrorIs(t, err, remoteapi.ReturnNoValue)
	assert.Empty(t, srv.received("sim.getObjectPosition"), "buffer read before streaming must not hit the server")

	pos, err := sess.ObjectPosition(ctx, 42, remoteapi.HandleWorld, remoteapi.OpStreaming)
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, pos)

	pos, err = sess.ObjectPosition(ctx, 42, remoteapi.HandleWorld, remoteapi.OpBuffer)
	require.NoError(t, err)
	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 3}, pos)

	reqs := srv.received("sim.getObjectPosition")
	require.Len(t, reqs, 2)
	assert.EqualValues(t, 42, reqs[0].Args[0])
	assert.EqualValues(t, -1, reqs[0].Args[1])
}

func TestSession_ObjectOrientationShortVector(t *testing.T) {
	_, cfg := startServer(t, sceneHandler)
	sess := dial(t, cfg)

	_, err := sess.ObjectOrientation(context.Background(), 42, remoteapi.HandleWorld, remoteapi.OpBlocking)
	assert.ErrorIs(t, err, remoteapi.ReturnLocalError)
}

func TestSession_VisionSensorImage(t *testing.T) {
	srv, cfg := startServer(t, sceneHandler)
	sess := dial(t, cfg)
	ctx := context.Background()

	img, err := sess.VisionSensorImage(ctx, 42, true, remoteapi.OpStreaming)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Resolution.X)
	assert.Equal(t, 2, img.Resolution.Y)
	assert.Equal(t, []byte{1, 2, 3, 4}, img.Data)

	reqs := srv.received("sim.getVisionSensorImg")
	require.Len(t, reqs, 1)
	assert.EqualValues(t, 1, reqs[0].Args[1], "grayscale option")
}

func TestSession_VisionSensorImageEmpty(t *testing.T) {
	_, cfg := startServer(t, func(req request) map[string]any {
		if req.Func == "sim.getVisionSensorImg" {
			return map[string]any{"ret": []any{[]byte{}, []int{0, 0}}}
		}
		return sceneHandler(req)
	})
	sess := dial(t, cfg)

	_, err := sess.VisionSensorImage(context.Background(), 42, true, remoteapi.OpBlocking)
	assert.ErrorIs(t, err, remoteapi.ReturnNoValue)
}

func TestSession_SetCommands(t *testing.T) {
	srv, cfg := startServer(t, sceneHandler)
	sess := dial(t, cfg)
	ctx := context.Background()

	require.NoError(t, sess.SetJointTargetVelocity(ctx, 7, 1.5, remoteapi.OpOneshot))
	require.NoError(t, sess.SetObjectPosition(ctx, 8, 9, r3.Vector{X: 0.1, Y: 0.2, Z: 0.3}, remoteapi.OpOneshot))
	require.NoError(t, sess.Synchronous(ctx, true))
	require.NoError(t, sess.SynchronousTrigger(ctx))

	vel := srv.received("sim.setJointTargetVelocity")
	require.Len(t, vel, 1)
	assert.EqualValues(t, 7, vel[0].Args[0])
	assert.EqualValues(t, 1.5, vel[0].Args[1])

	pos := srv.received("sim.setObjectPosition")
	require.Len(t, pos, 1)
	assert.EqualValues(t, 8, pos[0].Args[0])
	assert.Equal(t, []any{0.1, 0.2, 0.3}, pos[0].Args[1])
	assert.EqualValues(t, 9, pos[0].Args[2])

	stepping := srv.received("sim.setStepping")
	require.Len(t, stepping, 1)
	assert.Equal(t, true, stepping[0].Args[0])
	assert.Len(t, srv.received("sim.step"), 1)
}

func TestSession_StopSimulationWaits(t *testing.T) {
	var mu sync.Mutex
	states := []int{0, 1, 1, 0} // probe, then running twice, then stopped
	srv, cfg := startServer(t, func(req request) map[string]any {
		if req.Func == "sim.getSimulationState" {
			mu.Lock()
			defer mu.Unlock()
			state := states[0]
			if len(states) > 1 {
				states = states[1:]
			}
			return map[string]any{"ret": []any{state}}
		}
		return sceneHandler(req)
	})
	cfg.CommThreadCycle = time.Millisecond
	sess := dial(t, cfg)

	require.NoError(t, sess.StopSimulation(context.Background(), remoteapi.OpOneshotWait))
	assert.Len(t, srv.received("sim.stopSimulation"), 1)
	assert.Len(t, srv.received("sim.getSimulationState"), 4)
}

func TestSession_CancelledCallClosesSession(t *testing.T) {
	release := make(chan struct{})
	_, cfg := startServer(t, func(req request) map[string]any {
		if req.Func == "sim.step" {
			<-release
		}
		return sceneHandler(req)
	})
	defer close(release)
	sess := dial(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := sess.SynchronousTrigger(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = sess.StartSimulation(context.Background(), remoteapi.OpOneshot)
	assert.ErrorIs(t, err, remoteapi.ErrClosed)
}

func TestSession_Close(t *testing.T) {
	_, cfg := startServer(t, sceneHandler)
	sess := dial(t, cfg)

	require.NoError(t, sess.Close())
	assert.NoError(t, sess.Close(), "second close is a no-op")
	_, err := sess.ObjectHandle(context.Background(), "Vision_sensor", remoteapi.OpBlocking)
	assert.ErrorIs(t, err, remoteapi.ErrClosed)
}

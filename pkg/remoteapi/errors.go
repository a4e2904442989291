package remoteapi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotConnected = errors.New("remote api: not connected")
	ErrClosed       = errors.New("remote api: session closed")
)

// ReturnCode is the status bitmask reported by the simulator for every call.
type ReturnCode int

const (
	ReturnOK              ReturnCode = 0
	ReturnNoValue         ReturnCode = 1
	ReturnTimeout         ReturnCode = 2
	ReturnIllegalOpMode   ReturnCode = 4
	ReturnRemoteError     ReturnCode = 8
	ReturnSplitProgress   ReturnCode = 16
	ReturnLocalError      ReturnCode = 32
	ReturnInitializeError ReturnCode = 64
)

var returnFlagNames = []struct {
	flag ReturnCode
	name string
}{
	{ReturnNoValue, "novalue"},
	{ReturnTimeout, "timeout"},
	{ReturnIllegalOpMode, "illegal_opmode"},
	{ReturnRemoteError, "remote_error"},
	{ReturnSplitProgress, "split_progress"},
	{ReturnLocalError, "local_error"},
	{ReturnInitializeError, "initialize_error"},
}

func (c ReturnCode) Error() string {
	if c == ReturnOK {
		return "remote api: ok"
	}
	var names []string
	for _, f := range returnFlagNames {
		if c&f.flag != 0 {
			names = append(names, f.name)
		}
	}
	if rest := c &^ 127; rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", int(rest)))
	}
	return "remote api: " + strings.Join(names, "|")
}

// Is reports whether c carries every flag of target, so
// errors.Is(err, ReturnNoValue) matches a combined code.
func (c ReturnCode) Is(target error) bool {
	t, ok := target.(ReturnCode)
	if !ok {
		return false
	}
	if t == ReturnOK {
		return c == ReturnOK
	}
	return c&t == t
}

// Err returns nil for ReturnOK and c otherwise.
func (c ReturnCode) Err() error {
	if c == ReturnOK {
		return nil
	}
	return c
}

// RemoteError is an error message reported by the simulator for a call.
type RemoteError struct {
	Op      string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote api: %s: %s", e.Op, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return ReturnRemoteError
}

// IsNoValue reports whether err means a streamed value is not available yet.
func IsNoValue(err error) bool {
	return errors.Is(err, ReturnNoValue)
}

// IsStatus reports whether err is a simulator status rather than a transport failure.
func IsStatus(err error) bool {
	var code ReturnCode
	return errors.As(err, &code)
}

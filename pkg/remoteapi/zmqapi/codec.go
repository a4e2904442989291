package zmqapi

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/gwillem/simbot/pkg/remoteapi"
)

const (
	protocolVersion = 2
	clientLang      = "go"
)

// request is one remote function call.
type request struct {
	Func  string `cbor:"func"`
	Args  []any  `cbor:"args"`
	UUID  string `cbor:"uuid"`
	Ver   int    `cbor:"ver"`
	Lang  string `cbor:"lang"`
	ArgsL int    `cbor:"argsL"`
}

// reply holds the return values of a call, or its error.
// Older servers answer with success/error instead of ret/err.
type reply struct {
	Func    string            `cbor:"func,omitempty"`
	Ret     []cbor.RawMessage `cbor:"ret,omitempty"`
	Err     any               `cbor:"err,omitempty"`
	Error   any               `cbor:"error,omitempty"`
	Success *bool             `cbor:"success,omitempty"`
}

func encodeRequest(uuid, fn string, args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return cbor.Marshal(request{
		Func:  fn,
		Args:  args,
		UUID:  uuid,
		Ver:   protocolVersion,
		Lang:  clientLang,
		ArgsL: len(args),
	})
}

func decodeReply(fn string, data []byte) ([]cbor.RawMessage, error) {
	var r reply
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%s: decode reply: %w", fn, err)
	}
	if r.Func != "" {
		return nil, &remoteapi.RemoteError{Op: fn, Message: fmt.Sprintf("unsupported callback %q", r.Func)}
	}
	if r.Err != nil {
		return nil, &remoteapi.RemoteError{Op: fn, Message: fmt.Sprint(r.Err)}
	}
	if r.Success != nil && !*r.Success {
		msg := "call failed"
		if r.Error != nil {
			msg = fmt.Sprint(r.Error)
		}
		return nil, &remoteapi.RemoteError{Op: fn, Message: msg}
	}
	return r.Ret, nil
}

// decodeRet unmarshals the i-th return value into v.
func decodeRet(fn string, ret []cbor.RawMessage, i int, v any) error {
	if i >= len(ret) {
		return fmt.Errorf("%s: missing return value %d: %w", fn, i, remoteapi.ReturnLocalError)
	}
	if err := cbor.Unmarshal(ret[i], v); err != nil {
		return fmt.Errorf("%s: decode return value %d: %w", fn, i, err)
	}
	return nil
}

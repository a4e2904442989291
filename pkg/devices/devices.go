// Package devices lists the compute devices available to a local machine-learning runtime.
package devices

import (
	"context"
	"fmt"
)

// Type is the kind of a compute device.
type Type string

const (
	CPU Type = "CPU"
	GPU Type = "GPU"
)

// Device is a compute device reported by a backend.
type Device struct {
	Name        string
	Type        Type
	Description string
	MemoryLimit uint64 // bytes, 0 if unknown
}

// Backend reports the devices visible on the local machine.
type Backend interface {
	LocalDevices(ctx context.Context) ([]Device, error)
}

// AvailableDevices returns the names of the GPU and CPU devices reported by backend,
// in the order the backend reports them.
func AvailableDevices(ctx context.Context, backend Backend) ([]string, error) {
	devices, err := backend.LocalDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local devices: %w", err)
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		if d.Type == GPU || d.Type == CPU {
			names = append(names, d.Name)
		}
	}
	return names, nil
}

// DeviceName returns the runtime name of the index-th device of a type, e.g. "/device:GPU:0".
func DeviceName(t Type, index int) string {
	return fmt.Sprintf("/device:%s:%d", t, index)
}

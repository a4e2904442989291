package devices

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostBackend reports the host CPU and its graphics cards.
type HostBackend struct{}

var _ Backend = HostBackend{}

// LocalDevices returns one CPU device followed by one GPU device per graphics card.
func (HostBackend) LocalDevices(ctx context.Context) ([]Device, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("cpu info: %w", err)
	}
	cpuDev := Device{Name: DeviceName(CPU, 0), Type: CPU}
	if len(infos) > 0 {
		cpuDev.Description = strings.TrimSpace(infos[0].ModelName)
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		cpuDev.MemoryLimit = vm.Total
	}
	devices := []Device{cpuDev}

	gpu, err := ghw.GPU()
	if err != nil {
		return nil, fmt.Errorf("gpu info: %w", err)
	}
	for i, card := range gpu.GraphicsCards {
		devices = append(devices, Device{
			Name:        DeviceName(GPU, i),
			Type:        GPU,
			Description: cardDescription(card),
		})
	}
	return devices, nil
}

func cardDescription(card *ghw.GraphicsCard) string {
	if card.DeviceInfo == nil {
		return card.Address
	}
	var parts []string
	if v := card.DeviceInfo.Vendor; v != nil && v.Name != "" {
		parts = append(parts, v.Name)
	}
	if p := card.DeviceInfo.Product; p != nil && p.Name != "" {
		parts = append(parts, p.Name)
	}
	if len(parts) == 0 {
		return card.Address
	}
	return strings.Join(parts, " ")
}

package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/gwillem/simbot/pkg/devices"
)

type DevicesCommand struct {
	Details bool `long:"details" short:"d" description:"Show device descriptions and memory"`
}

func (c *DevicesCommand) Execute(args []string) error {
	ctx := context.Background()
	backend := devices.HostBackend{}

	if !c.Details {
		names, err := devices.AvailableDevices(ctx, backend)
		if err != nil {
			return err
		}
		fmt.Println(headerStyle.Render("All devices:"))
		for _, name := range names {
			fmt.Println("  " + name)
		}
		return nil
	}

	list, err := backend.LocalDevices(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(list))
	for _, d := range list {
		memory := "-"
		if d.MemoryLimit > 0 {
			memory = humanize.IBytes(d.MemoryLimit)
		}
		rows = append(rows, []string{d.Name, string(d.Type), d.Description, memory})
	}

	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerCellStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Device", "Type", "Description", "Memory").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			return cellStyle
		})
	fmt.Println(t.Render())
	return nil
}

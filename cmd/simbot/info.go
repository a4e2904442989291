package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/golang/geo/r3"

	"github.com/gwillem/simbot/pkg/remoteapi"
	"github.com/gwillem/simbot/pkg/robot"
)

type InfoCommand struct {
	KeepRunning bool `long:"keep-running" description:"Leave the simulation running on exit"`
	Args        struct {
		Objects []string `positional-arg-name:"object" description:"Extra scene objects to show"`
	} `positional-args:"yes"`
}

func (c *InfoCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger("stderr")
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	r, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if c.KeepRunning {
		defer r.Close()
	} else {
		defer shutdown(r, logger)
	}

	fmt.Println(headerStyle.Render("Scene"))
	fmt.Printf("Connected to %s with id %d\n\n", cfg.Remote().Addr(), r.ClientID())
	fmt.Println(renderScene(ctx, r, append(cfg.Scene.All(), c.Args.Objects...)))
	return nil
}

// renderScene resolves names and renders their handles and poses as a table.
func renderScene(ctx context.Context, r *robot.Interface, names []string) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerCellStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	errStyle := warnStyle.Padding(0, 1)

	rows := make([][]string, 0, len(names))
	failed := make(map[int]bool)
	for i, name := range names {
		h, err := r.ObjectHandle(ctx, name)
		if err != nil {
			failed[i] = true
			rows = append(rows, []string{name, "-", "not found", ""})
			continue
		}
		pose, err := waitPose(ctx, r, h)
		if err != nil {
			failed[i] = true
			rows = append(rows, []string{name, fmt.Sprint(h), err.Error(), ""})
			continue
		}
		rows = append(rows, []string{name, fmt.Sprint(h), formatVector(pose.Position), formatVector(pose.Orientation)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Object", "Handle", "Position", "Orientation").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerCellStyle
			case failed[row] && col > 0:
				return errStyle
			case col == 0:
				return nameStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}

// waitPose primes the pose streams of h and waits for the first value.
func waitPose(ctx context.Context, r *robot.Interface, h remoteapi.ObjectHandle) (robot.Pose, error) {
	if err := r.PrimePose(ctx, h); err != nil {
		return robot.Pose{}, err
	}
	for attempt := 0; ; attempt++ {
		pose, err := r.PoseFromHandle(ctx, h)
		if err == nil || !remoteapi.IsNoValue(err) || attempt == 50 {
			return pose, err
		}
		select {
		case <-ctx.Done():
			return robot.Pose{}, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("%+.3f %+.3f %+.3f", v.X, v.Y, v.Z)
}

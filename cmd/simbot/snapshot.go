package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/disintegration/imaging"

	"github.com/gwillem/simbot/pkg/remoteapi"
)

type SnapshotCommand struct {
	Output      string `long:"output" short:"o" default:"snapshot.png" description:"Output image file (format from extension)"`
	Gripper     bool   `long:"gripper" description:"Use the gripper camera instead of the main vision sensor"`
	Width       int    `long:"width" description:"Resize the frame to this width, keeping the aspect ratio"`
	KeepRunning bool   `long:"keep-running" description:"Leave the simulation running on exit"`
}

func (c *SnapshotCommand) Execute(args []string) error {
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

	var camera remoteapi.ObjectHandle
	if c.Gripper {
		camera = r.Gripper().Camera()
	} else {
		camera = r.Camera()
	}

	frame, err := r.ImageFromCamera(ctx, camera)
	if err != nil {
		return fmt.Errorf("capture frame: %w", err)
	}

	out := imaging.Clone(frame)
	if c.Width > 0 {
		out = imaging.Resize(out, c.Width, 0, imaging.Lanczos)
	}
	if err := imaging.Save(out, c.Output); err != nil {
		return fmt.Errorf("save %s: %w", c.Output, err)
	}

	b := out.Bounds()
	fmt.Println(successStyle.Render(fmt.Sprintf("Saved %dx%d frame to %s", b.Dx(), b.Dy(), c.Output)))
	return nil
}

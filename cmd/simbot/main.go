package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config  string `long:"config" short:"c" default:"simbot.json" description:"Configuration file (.json or .yaml)"`
	Fake    bool   `long:"fake" description:"Use the built-in fake simulator instead of a remote one"`
	Verbose bool   `long:"verbose" short:"v" description:"Enable debug logging"`

	Setup       SetupCommand       `command:"setup" description:"Configure and test the simulator connection"`
	Teleoperate TeleoperateCommand `command:"teleoperate" alias:"teleop" description:"Drive the robot from the keyboard"`
	Snapshot    SnapshotCommand    `command:"snapshot" description:"Save a camera frame to a file"`
	Info        InfoCommand        `command:"info" description:"Show scene handles and poses"`
	Devices     DevicesCommand     `command:"devices" description:"List available compute devices"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "simbot - client for a simulated two-wheeled robot with a gripper"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

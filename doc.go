// Package simbot provides a client for a simulated two-wheeled robot with a
// vision sensor and a gripper, driven over the simulator's remote API.
//
// # Installation
//
//	go install github.com/gwillem/simbot/cmd/simbot@latest
//
// # Usage
//
// First, run setup to configure and test the simulator connection:
//
//	simbot setup
//
// Then drive the robot from the keyboard:
//
//	simbot teleoperate
//
// Every command accepts --fake to run against a built-in in-memory scene.
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/simbot: CLI with setup, teleoperate, snapshot, info and devices commands
//   - pkg/remoteapi: Session contract, op modes and return codes
//   - pkg/remoteapi/zmqapi: ZeroMQ/CBOR session implementation
//   - pkg/remoteapi/fakesim: In-memory scene for tests and offline use
//   - pkg/robot: Robot interface, gripper, and configuration
//   - pkg/teleop: Teleoperation controller
//   - pkg/devices: Local compute device listing
package simbot

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/gwillem/simbot/pkg/robot"
)

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("simbot Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━"))
	fmt.Println()

	cfg := robot.DefaultConfig()
	if robot.ConfigExists(opts.Config) {
		loaded, err := robot.LoadConfigFrom(opts.Config)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = *loaded
		fmt.Println(dimStyle.Render("Editing existing configuration " + opts.Config))
		fmt.Println()
	}

	port := strconv.Itoa(cfg.Port)
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Simulator address").
				Value(&cfg.Address),
			huh.NewInput().
				Title("Remote API port").
				Value(&port).
				Validate(validatePort),
			huh.NewConfirm().
				Title("Synchronous mode?").
				Description("The simulation only advances when the client triggers a step").
				Value(&cfg.Synchronous),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		return nil
	}
	cfg.Port, _ = strconv.Atoi(port)

	// Step 1: probe the connection
	fmt.Println()
	fmt.Println(subHeaderStyle.Render("━━━ Testing connection ━━━"))
	fmt.Println()
	if !probe(cfg) {
		save := false
		confirm := huh.NewConfirm().
			Title("Connection failed. Save the configuration anyway?").
			Value(&save)
		if err := confirm.Run(); err != nil || !save {
			return errors.New("connection failed, configuration not saved")
		}
	}

	// Step 2: save
	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start teleoperation with: " + headerStyle.Render("simbot teleoperate"))

	return nil
}

// probe connects to the simulator, prints the resolved scene and stops it again.
func probe(cfg robot.Config) bool {
	logger, err := newLogger("stderr")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return false
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Printf("Connecting to %s...\n", cfg.Remote().Addr())
	r, err := connect(ctx, cfg, logger)
	if err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("  %v", err)))
		return false
	}
	defer shutdown(r, logger)

	fmt.Println(successStyle.Render(fmt.Sprintf("  Connected with id %d", r.ClientID())))
	fmt.Println()
	fmt.Println(renderScene(ctx, r, cfg.Scene.All()))
	return true
}

func validatePort(s string) error {
	port, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/courtside/courtside-cli/internal/config"
	"github.com/courtside/courtside-cli/internal/daemon"
)

// ── service management commands ──

func installCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install 'courtside serve' as a background service",
		RunE:  runInstall,
	}
}

func uninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Stop and remove the background service",
		RunE:  runUninstall,
	}
}

func startCmd() *cobra.Command {
	return serviceCmd("start", "Start the background service", "Service started.", true, daemon.Manager.Start)
}

func stopCmd() *cobra.Command {
	return serviceCmd("stop", "Stop the background service", "Service stopped.", false, daemon.Manager.Stop)
}

func restartCmd() *cobra.Command {
	return serviceCmd("restart", "Restart the background service", "Service restarted.", true, daemon.Manager.Restart)
}

// serviceCmd builds a command that runs one Manager action.
func serviceCmd(use, short, done string, needInstalled bool, action func(daemon.Manager) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(_ *cobra.Command, _ []string) error {
			mgr, err := daemon.New()
			if err != nil {
				return err
			}
			if needInstalled {
				if st, _ := mgr.Status(); st != nil && !st.Installed {
					return errors.New("service not installed, run 'courtside install' first")
				}
			}
			if err := action(mgr); err != nil {
				return fmt.Errorf("%s failed: %w", use, err)
			}
			fmt.Println(done)
			return nil
		},
	}
}

func runInstall(_ *cobra.Command, _ []string) error {
	// The service reads the same config; refuse to install a broken one.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return fmt.Errorf("%w, run 'courtside config init' first", err)
	}

	mgr, err := daemon.New()
	if err != nil {
		return err
	}
	if st, _ := mgr.Status(); st != nil && st.Installed {
		fmt.Println("Service is already installed. Reinstalling...")
		_ = mgr.Uninstall()
	}

	fmt.Println("Installing courtside as a background service...")
	if err := mgr.Install(); err != nil {
		return fmt.Errorf("install failed: %w", err)
	}
	fmt.Printf("Log file:  %s\n", daemon.LogPath())
	fmt.Printf("Listening: http://%s\n", cfg.Server.Addr)
	fmt.Println("Service installed and started.")
	return nil
}

func runUninstall(_ *cobra.Command, _ []string) error {
	mgr, err := daemon.New()
	if err != nil {
		return err
	}
	switch err := mgr.Uninstall(); {
	case errors.Is(err, daemon.ErrNotInstalled):
		fmt.Println("Service not installed.")
	case err != nil:
		return fmt.Errorf("uninstall failed: %w", err)
	default:
		fmt.Println("Service stopped and removed.")
	}
	return nil
}

package cliutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Oudwins/shellrunner/internals/backoff"
	"github.com/Oudwins/shellrunner/internals/conf"
	"github.com/Oudwins/shellrunner/internals/timeouts"
	"github.com/Oudwins/shellrunner/sdk"
)

const daemonAttempts = 8

var daemonBackoff = backoff.Config{Base: 150 * time.Millisecond, Max: 2 * time.Second, Factor: 1.5}

// EnsureDaemonRunning makes sure a daemon of this build answers on the
// client's base URL, starting or replacing one when needed.
func EnsureDaemonRunning(client *sdk.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Probe)
	defer cancel()

	if version, err := client.Version(ctx); err == nil {
		localVersion := conf.GetConfig().Version
		if strings.TrimSpace(version) == strings.TrimSpace(localVersion) {
			return nil
		}
		return replaceDaemon(client, version, localVersion)
	}

	if err := StartDaemon(); err != nil {
		return err
	}

	return waitForDaemon(client)
}

// StartDaemon launches `shellrunner serve` in the background.
func StartDaemon() error {
	path, err := findServeBinary()
	if err != nil {
		return err
	}

	cmd := exec.Command(path, "serve")
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

func waitForDaemon(client *sdk.Client) error {
	err := backoff.Poll(context.Background(), daemonBackoff, daemonAttempts, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Probe)
		defer cancel()
		_, err := client.Version(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reach shellrunner daemon: %w", err)
	}
	return nil
}

func replaceDaemon(client *sdk.Client, remoteVersion string, localVersion string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.SecondShort)
	defer cancel()

	if err := client.Shutdown(ctx); err != nil {
		if errors.Is(err, sdk.ErrShutdownUnsupported) {
			return fmt.Errorf("shellrunner daemon %s is running (this is %s); please stop it and retry", strings.TrimSpace(remoteVersion), strings.TrimSpace(localVersion))
		}
		return fmt.Errorf("failed to shutdown shellrunner daemon %s: %w", strings.TrimSpace(remoteVersion), err)
	}

	if err := waitForDaemonStop(client); err != nil {
		return fmt.Errorf("shellrunner daemon %s did not stop: %w", strings.TrimSpace(remoteVersion), err)
	}

	if err := StartDaemon(); err != nil {
		return err
	}

	return waitForDaemon(client)
}

func waitForDaemonStop(client *sdk.Client) error {
	err := backoff.Poll(context.Background(), daemonBackoff, daemonAttempts, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeouts.Probe)
		defer cancel()
		if _, err := client.Version(ctx); err == nil {
			return errors.New("daemon still answering")
		}
		return nil
	})
	if err != nil {
		return errors.New("failed to stop shellrunner daemon")
	}
	return nil
}

func findServeBinary() (string, error) {
	executable, err := os.Executable()
	if err == nil && executable != "" {
		return executable, nil
	}

	path, err := exec.LookPath("shellrunner")
	if err != nil {
		return "", fmt.Errorf("shellrunner not found in PATH")
	}
	return path, nil
}

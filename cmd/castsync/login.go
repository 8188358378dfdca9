// ABOUTME: Login command storing gpodder server credentials and device identity
// ABOUTME: Validates credentials against the auth endpoint before persisting

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/castsync/castsync/internal/gpodder"
	"github.com/castsync/castsync/internal/models"
)

var flagDeviceID string

var loginCmd = &cobra.Command{
	Use:   "login <server-url> <username>",
	Short: "Configure the sync server account",
	Long: `Store the gpodder server URL, account, and a per-installation device
identifier, then validate the credentials against the auth endpoint.

The password is read from stdin.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword()
		if err != nil {
			return err
		}

		deviceID := flagDeviceID
		if deviceID == "" {
			if existing, _ := store.GetServerConfig(); existing != nil && existing.DeviceID != "" {
				deviceID = existing.DeviceID
			} else {
				deviceID = "castsync-" + uuid.New().String()[:8]
			}
		}

		serverCfg := &models.ServerConfig{
			ServerURL: strings.TrimRight(args[0], "/"),
			Username:  args[1],
			Password:  password,
			DeviceID:  deviceID,
			CreatedAt: time.Now(),
		}

		client := gpodder.New(logger)
		token, err := client.Login(context.Background(), serverCfg)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		serverCfg.SessionToken = &token

		if err := store.SaveServerConfig(serverCfg); err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Logged in to %s as %s (device %s)\n", green("v"), serverCfg.ServerURL, serverCfg.Username, deviceID)
		return nil
	},
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	loginCmd.Flags().StringVar(&flagDeviceID, "device", "", "device identifier (default: generated once and reused)")
	rootCmd.AddCommand(loginCmd)
}

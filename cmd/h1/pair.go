package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/codewiresh/h1link/internal/client"
	"github.com/codewiresh/h1link/internal/config"
)

// ---------------------------------------------------------------------------
// pairCmd
// ---------------------------------------------------------------------------

func pairCmd() *cobra.Command {
	var noQR bool

	cmd := &cobra.Command{
		Use:   "pair <name> <addr>",
		Short: "Save a device address under a short name",
		Long: `Save a device address under a short name and print it as a QR code
so a handheld can pick it up.

The address is host[:port] for the TCP link (port defaults to 9999) or a
ws:// or http:// URL for the websocket transport on the admin listener.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, addr := args[0], args[1]
			if err := config.ValidateDeviceName(name); err != nil {
				return err
			}
			target := client.Target{Addr: addr}
			if !target.IsWebSocket() {
				addr = target.TCPAddr()
			}

			dir := dataDir()
			devices, err := config.LoadDevicesConfig(dir)
			if err != nil {
				return err
			}
			devices.Devices[name] = config.DeviceEntry{Addr: addr}
			if err := devices.Save(dir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s -> %s\n", name, addr)

			if noQR {
				return nil
			}
			qr, err := qrcode.New(addr, qrcode.Medium)
			if err != nil {
				return fmt.Errorf("generating QR code: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), qr.ToSmallString(false))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noQR, "no-qr", false, "Do not print a QR code")
	return cmd
}

// ---------------------------------------------------------------------------
// devicesCmd
// ---------------------------------------------------------------------------

func devicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List saved devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := config.LoadDevicesConfig(dataDir())
			if err != nil {
				return err
			}
			if len(devices.Devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved devices. Add one with: h1 pair <name> <addr>")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tADDRESS")
			names := make([]string, 0, len(devices.Devices))
			for name := range devices.Devices {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				fmt.Fprintf(w, "%s\t%s\n", name, devices.Devices[name].Addr)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <name>",
		Short: "Forget a saved device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := dataDir()
			devices, err := config.LoadDevicesConfig(dir)
			if err != nil {
				return err
			}
			if _, ok := devices.Devices[args[0]]; !ok {
				return fmt.Errorf("no saved device named %q", args[0])
			}
			delete(devices.Devices, args[0])
			return devices.Save(dir)
		},
	})
	return cmd
}

// ---------------------------------------------------------------------------
// configCmd
// ---------------------------------------------------------------------------

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect server configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective server configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(dataDir())
			if err != nil {
				return err
			}
			return toml.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
		},
	})

	var passwordStdin bool
	hash := &cobra.Command{
		Use:   "hash-password",
		Short: "Hash an officer password for the officers table in h1.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				password string
				err      error
			)
			if passwordStdin {
				password, err = readLine(cmd.InOrStdin())
			} else {
				password, err = promptPassword("Password: ")
			}
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}
			h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(h))
			return nil
		},
	}
	hash.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.AddCommand(hash)

	return cmd
}

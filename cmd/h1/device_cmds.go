package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewiresh/h1link/internal/client"
)

// ---------------------------------------------------------------------------
// sendCmd
// ---------------------------------------------------------------------------

func sendCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "send <device> <command|json> [key=value...]",
		Short: "Send one command and print the reply",
		Long: `Send one command to a device and print its reply.

The request is either a raw JSON object or a command name followed by
key=value fields. Values that parse as JSON (numbers, booleans, objects)
are sent as such; anything else is sent as a string.

  h1 send car12 record camera=1
  h1 send car12 '{"command":"getmic","mic":"wmic1"}'`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildRequest(args[1], args[2:])
			if err != nil {
				return err
			}

			c, err := connect(cmd, args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := callContext(cmd)
			defer cancel()
			reply, err := c.CallRaw(ctx, payload)
			if err != nil {
				return err
			}
			if err := printReply(cmd.OutOrStdout(), reply, format); err != nil {
				return err
			}
			if st := reply.Status(); !st.OK() {
				return fmt.Errorf("device returned %s", st)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "auto", "Output format: auto, json or yaml")
	return cmd
}

// buildRequest turns CLI arguments into a request payload.
func buildRequest(command string, fields []string) ([]byte, error) {
	if strings.HasPrefix(strings.TrimSpace(command), "{") {
		if len(fields) > 0 {
			return nil, fmt.Errorf("key=value fields cannot be combined with a JSON request")
		}
		if !json.Valid([]byte(command)) {
			return nil, fmt.Errorf("request is not valid JSON")
		}
		return []byte(command), nil
	}

	req := map[string]any{"command": command}
	for _, kv := range fields {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("field %q is not key=value", kv)
		}
		if k == "command" {
			return nil, fmt.Errorf("field %q would replace the command name", kv)
		}
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			req[k] = parsed
		} else {
			req[k] = v
		}
	}
	return json.Marshal(req)
}

// ---------------------------------------------------------------------------
// pingCmd
// ---------------------------------------------------------------------------

func pingCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "ping <device>",
		Short: "Check that a device answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd, args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				ctx, cancel := callContext(cmd)
				start := time.Now()
				reply, err := c.Call(ctx, "ping", nil)
				cancel()
				if err != nil {
					return err
				}
				if st := reply.Status(); !st.OK() {
					return fmt.Errorf("ping returned %s", st)
				}
				fmt.Fprintf(out, "reply from %s: time=%s\n", args[0], time.Since(start).Round(time.Microsecond))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "c", 1, "Number of pings to send")
	return cmd
}

// ---------------------------------------------------------------------------
// readFileCmd
// ---------------------------------------------------------------------------

func readFileCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "readfile <device> <filename>",
		Short: "Download a file from the device's event directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(cmd, args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			var dst io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				dst = f
			}

			ctx, cancel := callContext(cmd)
			defer cancel()
			reply, n, err := c.ReadFile(ctx, args[1], dst)
			if err != nil {
				return err
			}
			if st := reply.Status(); !st.OK() {
				return fmt.Errorf("readfile %s: device returned %s", args[1], st)
			}
			if dst != cmd.OutOrStdout() {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", n, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}

// ---------------------------------------------------------------------------
// recordCmd
// ---------------------------------------------------------------------------

func recordCmd() *cobra.Command {
	plan := client.DefaultRecordPlan()

	cmd := &cobra.Command{
		Use:   "record <device>",
		Short: "Record one or more clips, optionally uploading them afterwards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if plan.Count < 1 {
				return fmt.Errorf("--videos must be at least 1")
			}
			c, err := connect(cmd, args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			return c.RunRecordPlan(cmd.Context(), plan, func(st client.RecordStep) {
				if st.Index == 0 {
					fmt.Fprintf(out, "%s: %s\n", st.Reply.Command(), st.Reply.Status())
					return
				}
				fmt.Fprintf(out, "[%d/%d] %s camera %d: %s\n", st.Index, plan.Count, st.Reply.Command(), plan.Camera, st.Reply.Status())
			})
		},
	}

	cmd.Flags().IntVar(&plan.Camera, "camera", plan.Camera, "Camera to record on")
	cmd.Flags().IntVarP(&plan.Count, "videos", "n", plan.Count, "Number of clips to record")
	cmd.Flags().DurationVarP(&plan.Length, "time", "t", plan.Length, "Length of each clip")
	cmd.Flags().DurationVar(&plan.Gap, "gap", plan.Gap, "Pause between clips")
	cmd.Flags().BoolVar(&plan.Upload, "upload", false, "Start an in-car upload after the last clip")
	cmd.Flags().DurationVar(&plan.UploadDelay, "upload-delay", plan.UploadDelay, "Wait before starting the upload")
	return cmd
}

// ---------------------------------------------------------------------------
// loginCmd
// ---------------------------------------------------------------------------

func loginCmd() *cobra.Command {
	var (
		officer       string
		partner       string
		unit          string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login <device>",
		Short: "Log an officer in to the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if officer == "" {
				if officer, err = prompt("Officer ID: "); err != nil {
					return err
				}
			}
			var password string
			if passwordStdin {
				password, err = readLine(cmd.InOrStdin())
			} else {
				password, err = promptPassword("Password: ")
			}
			if err != nil {
				return err
			}

			c, err := connect(cmd, args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := callContext(cmd)
			defer cancel()
			reply, err := c.Call(ctx, "login", map[string]any{
				"officer":  officer,
				"password": password,
				"partner":  partner,
				"unit":     unit,
			})
			if err != nil {
				return err
			}
			if st := reply.Status(); !st.OK() {
				if msg, ok := reply["errormsg"].(string); ok && msg != "" {
					return fmt.Errorf("login rejected: %s", msg)
				}
				return fmt.Errorf("login rejected: %s", st)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", officer)
			return nil
		},
	}

	cmd.Flags().StringVar(&officer, "officer", "", "Officer ID")
	cmd.Flags().StringVar(&partner, "partner", "", "Partner officer ID")
	cmd.Flags().StringVar(&unit, "unit", "", "Unit number")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/codewiresh/h1link/internal/client"
)

// printReply writes reply to w as JSON or YAML. "auto" pretty-prints JSON
// on a terminal and emits one compact line otherwise.
func printReply(w io.Writer, reply client.Reply, format string) error {
	switch format {
	case "yaml":
		out, err := yaml.Marshal(plain(map[string]any(reply)))
		if err != nil {
			return fmt.Errorf("encoding reply: %w", err)
		}
		_, err = w.Write(out)
		return err
	case "json", "auto", "":
		enc := json.NewEncoder(w)
		if format == "json" || isTerminal(w) {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(reply)
	default:
		return fmt.Errorf("unknown output format %q (json, yaml or auto)", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// plain converts json.Number values to int64 or float64 so YAML renders
// them as numbers instead of quoted strings.
func plain(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = plain(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}

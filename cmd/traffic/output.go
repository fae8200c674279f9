package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/couchcryptid/traffic-analysis/internal/config"
	"github.com/couchcryptid/traffic-analysis/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// writeReport encodes the report as a single document on w.
func writeReport(w io.Writer, report pipeline.Report, format string) error {
	switch format {
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case config.FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

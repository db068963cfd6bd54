/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics_writer.go
Description: Utility for writing campaign metrics as JSON. Files are grouped by kind
under the metrics directory and named by timestamp, kind and version.
*/

package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultMetricsDir is used when no directory is given
const DefaultMetricsDir = "metrics"

// WriteMetricsResult writes result to <dir>/<kind>/<timestamp>_<kind>_v<version>.json
func WriteMetricsResult(dir, kind, version string, result interface{}) (string, error) {
	if kind == "" {
		return "", fmt.Errorf("metrics kind is required")
	}
	if dir == "" {
		dir = DefaultMetricsDir
	}

	metricsDir := filepath.Join(dir, kind)
	if err := os.MkdirAll(metricsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create metrics directory: %w", err)
	}

	// 2024-06-11_01-30-00.000_fuzz_v1.0.0.json
	timestamp := time.Now().Format("2006-01-02_15-04-05.000")
	filePath := filepath.Join(metricsDir, fmt.Sprintf("%s_%s_v%s.json", timestamp, kind, version))

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write metrics file: %w", err)
	}
	return filePath, nil
}

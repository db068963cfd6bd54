/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: dashboard.go
Description: CLI command that renders an HTML dashboard from a JSON campaign report
written by the fuzz command.
*/

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kleascm/imgfuzz/pkg/reporting"
	"github.com/spf13/cobra"
)

// PerformDashboardGeneration regenerates the report files from a saved JSON report
func PerformDashboardGeneration(cmd *cobra.Command, args []string) error {
	printHeader("📊", "Dashboard")

	logger, err := prepare()
	if err != nil {
		return err
	}
	defer logger.Close()

	outputDir, _ := cmd.Flags().GetString("output-dir")
	title, _ := cmd.Flags().GetString("title")

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}
	var report reporting.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("failed to parse report: %w", err)
	}
	if title != "" {
		report.Title = title
	}

	_, htmlPath, err := reporting.NewGenerator(outputDir, logger.GetLogger()).Write(&report)
	if err != nil {
		return err
	}
	fmt.Printf("✅ Dashboard: %s\n", htmlPath)
	return nil
}

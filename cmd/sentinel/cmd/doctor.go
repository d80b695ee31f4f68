package cmd

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sentinel-review/sentinel/internal/adapters/ledger"
	"github.com/sentinel-review/sentinel/internal/diagnostics"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system dependencies",
	Long:  "Verify that all required dependencies are installed and configured.",
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg, cfgErr := loadConfig()

	agentPath := "claude"
	if cfg != nil && cfg.Agent.Path != "" {
		agentPath = strings.Fields(cfg.Agent.Path)[0]
	}

	checks := []struct {
		name     string
		command  string
		args     []string
		required bool
	}{
		{"git", "git", []string{"--version"}, true},
		{"gh", "gh", []string{"--version"}, true},
		{"gh auth", "gh", []string{"auth", "status"}, true},
		{agentPath + " (agent CLI)", agentPath, []string{"--version"}, true},
	}

	cmd.Println("Checking dependencies...")
	cmd.Println()

	requiredOk := true
	for _, check := range checks {
		ok := checkCommand(check.command, check.args)
		icon := "✓"
		if !ok {
			icon = "✗"
			if check.required {
				requiredOk = false
			}
		}
		cmd.Printf("  %s %s\n", icon, check.name)
	}
	cmd.Println()

	cmd.Println("Validating configuration...")
	cmd.Println()
	configOk := true
	if cfgErr != nil {
		cmd.Printf("  ✗ %v\n", cfgErr)
		configOk = false
	} else {
		cmd.Println("  ✓ Configuration valid")

		if store, err := ledger.Open(cfg.Ledger.Path); err != nil {
			cmd.Printf("  ✗ ledger not writable: %v\n", err)
			configOk = false
		} else {
			_ = store.Close()
			cmd.Println("  ✓ Ledger writable")
		}
	}
	cmd.Println()

	cmd.Println("System resources...")
	cmd.Println()
	snap := diagnostics.Collect()
	cmd.Printf("  cpu threads: %d\n", snap.CPUThreads)
	cmd.Printf("  memory:      %.0f / %.0f MB (%.0f%%)\n", snap.MemUsedMB, snap.MemTotalMB, snap.MemPercent)
	cmd.Printf("  disk free:   %.1f GB\n", snap.DiskFreeGB)
	cmd.Printf("  load avg:    %.2f %.2f\n", snap.LoadAvg1, snap.LoadAvg5)
	if snap.LowDiskWarning(2) {
		cmd.Println("  ⚠ low disk space")
	}
	if snap.HighMemoryWarning(90) {
		cmd.Println("  ⚠ high memory pressure")
	}
	cmd.Println()

	if !requiredOk || !configOk {
		return fmt.Errorf("dependency check failed")
	}
	cmd.Println("All dependencies available and configuration valid")
	return nil
}

func checkCommand(name string, args []string) bool {
	return exec.Command(name, args...).Run() == nil
}

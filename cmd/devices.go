package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clinventory/internal/cl"
	"github.com/cwbudde/clinventory/internal/inventory"
)

var (
	maxDevices       int
	deviceCategories []string
	showHost         bool
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "Report every device and its capabilities",
	Long: `Enumerates devices per platform in the order CPU, GPU, Accelerator,
Default, All and prints a capability block for each. Read failures are
marked in the output and never change the exit status.`,
	RunE: runDevices,
}

func init() {
	devicesCmd.Flags().IntVar(&maxDevices, "max-devices", 0, "Devices described per category (0 = all)")
	devicesCmd.Flags().StringSliceVar(&deviceCategories, "categories", nil, "Categories to report (default: cpu,gpu,accelerator,default,all)")
	devicesCmd.Flags().BoolVar(&showHost, "host", true, "Print a host processor summary")
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	categories, err := parseCategories(deviceCategories, cl.Categories())
	if err != nil {
		return err
	}

	rt, cleanup, err := openRuntime()
	defer cleanup()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showHost {
		inventory.WriteHostSummary(out)
		fmt.Fprintln(out)
	}

	r := inventory.NewReporter(rt, out)
	r.MaxDevices = maxDevices
	r.Categories = categories
	r.Report()
	return nil
}

// parseCategories maps flag values to categories, or returns fallback when
// none were given.
func parseCategories(names []string, fallback []cl.Category) ([]cl.Category, error) {
	if len(names) == 0 {
		return fallback, nil
	}
	categories := make([]cl.Category, 0, len(names))
	for _, name := range names {
		c, err := cl.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, nil
}

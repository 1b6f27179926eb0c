package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cwbudde/clinventory/internal/cl"
	"github.com/cwbudde/clinventory/internal/dispatch"
	"github.com/cwbudde/clinventory/internal/stopwatch"
)

var (
	vecN          int
	localSize     int
	precision     string
	vecCategories []string
	allDevices    bool
	jobs          int
)

var vecaddCmd = &cobra.Command{
	Use:   "vecadd",
	Short: "Run and validate c = a + b on each eligible device",
	Long: `Runs one vector-addition pass per platform and category with
a[i] = b[i] = i/n, validates every element and the sum of c, and prints
the result and elapsed time per pass. Exits non-zero if any pass failed.`,
	RunE: runVecAdd,
}

func init() {
	vecaddCmd.Flags().IntVar(&vecN, "n", 10_000_000, "Vector length")
	vecaddCmd.Flags().IntVar(&localSize, "local-size", dispatch.DefaultLocalSize, "Work-group size")
	vecaddCmd.Flags().StringVar(&precision, "precision", "single", "Element precision (single, double)")
	vecaddCmd.Flags().StringSliceVar(&vecCategories, "categories", nil, "Categories to exercise (default: cpu,gpu,accelerator)")
	vecaddCmd.Flags().BoolVar(&allDevices, "all-devices", false, "Run a pass on every device of a category, not only the first")
	vecaddCmd.Flags().IntVar(&jobs, "jobs", 1, "Passes to run concurrently")
	rootCmd.AddCommand(vecaddCmd)
}

func runVecAdd(cmd *cobra.Command, args []string) error {
	if vecN < 1 {
		return fmt.Errorf("--n must be at least 1, got %d", vecN)
	}
	categories, err := parseCategories(vecCategories, dispatch.DefaultCategories())
	if err != nil {
		return err
	}

	rt, cleanup, err := openRuntime()
	defer cleanup()
	if err != nil {
		return err
	}

	opts := []dispatch.Option{
		dispatch.WithLocalSize(localSize),
		dispatch.WithReference(dispatch.RampExpectedSum),
		dispatch.WithTimer(stopwatch.New()),
	}
	pipeline := dispatch.New(rt, opts...)

	switch strings.ToLower(precision) {
	case "single", "float", "float32":
		return drive[float32](cmd, rt, pipeline, categories)
	case "double", "float64":
		return drive[float64](cmd, rt, pipeline, categories)
	default:
		return fmt.Errorf("unknown precision %q (single, double)", precision)
	}
}

func drive[T dispatch.Element](cmd *cobra.Command, rt cl.Runtime, pipeline *dispatch.Pipeline, categories []cl.Category) error {
	d := dispatch.NewDriver[T](rt, pipeline, cmd.OutOrStdout())
	d.Categories = categories
	d.AllDevices = allDevices
	d.Jobs = jobs

	summary, err := d.Run(cmd.Context(), vecN)
	printSummary(cmd.OutOrStdout(), summary)
	return err
}

func printSummary(w io.Writer, s dispatch.Summary) {
	if s.Passes == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d passes, %d failed\n", s.Passes, s.Failed)
}

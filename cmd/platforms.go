package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cwbudde/clinventory/internal/inventory"
	"github.com/cwbudde/clinventory/internal/metrics"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List the installed platforms",
	RunE:  runPlatforms,
}

func init() {
	rootCmd.AddCommand(platformsCmd)
}

func runPlatforms(cmd *cobra.Command, args []string) error {
	rt, cleanup, err := openRuntime()
	defer cleanup()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	platforms, err := inventory.ListPlatforms(rt)
	if err != nil {
		// Inventory failures are reported, not fatal.
		log.Error().Err(err).Msg("Platform enumeration failed")
		fmt.Fprintf(out, "Platform enumeration failed: %v\n", err)
		return nil
	}

	metrics.PlatformsDiscovered.Set(float64(len(platforms)))
	fmt.Fprintf(out, "Number of platforms: %d\n", len(platforms))
	if len(platforms) > 0 {
		inventory.WritePlatformTable(out, platforms)
	}
	return nil
}

package inventory

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/cpuid/v2"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/cwbudde/clinventory/internal/cl"
	"github.com/cwbudde/clinventory/internal/metrics"
)

// Reporter writes a human-readable inventory. Failures are logged and marked
// in the output; they never abort the report.
type Reporter struct {
	rt  cl.Runtime
	out io.Writer

	// MaxDevices caps the devices described per category; <= 0 means all.
	MaxDevices int
	Categories []cl.Category
	Properties []Property
}

// NewReporter returns a reporter covering every category and DeviceProperties.
func NewReporter(rt cl.Runtime, out io.Writer) *Reporter {
	return &Reporter{
		rt:         rt,
		out:        out,
		Categories: cl.Categories(),
		Properties: DeviceProperties(),
	}
}

// Report enumerates platforms and describes each device per category.
func (r *Reporter) Report() {
	platforms, err := ListPlatforms(r.rt)
	if err != nil {
		log.Error().Err(err).Msg("Platform enumeration failed")
		fmt.Fprintf(r.out, "Platform enumeration failed: %v\n", err)
		return
	}

	metrics.PlatformsDiscovered.Set(float64(len(platforms)))
	fmt.Fprintf(r.out, "Number of platforms: %d\n", len(platforms))
	if len(platforms) == 0 {
		return
	}
	WritePlatformTable(r.out, platforms)

	totals := make(map[cl.Category]int, len(r.Categories))
	for _, p := range platforms {
		r.reportPlatform(p, totals)
	}
	for _, c := range r.Categories {
		metrics.DevicesDiscovered.WithLabelValues(c.String()).Set(float64(totals[c]))
	}
}

func (r *Reporter) reportPlatform(p Platform, totals map[cl.Category]int) {
	fmt.Fprintf(r.out, "\nPlatform %d: %s\n", p.Index, p.Label())
	logger := log.With().Str("platform", p.Label()).Logger()

	for _, category := range r.Categories {
		devices, total, err := ListDevices(r.rt, p.ID, category, r.MaxDevices)
		if err != nil {
			logger.Error().Err(err).Str("category", category.String()).Msg("Device enumeration failed, skipping platform")
			fmt.Fprintf(r.out, "%s: enumeration failed: %v\n", category, err)
			return
		}
		totals[category] += total
		fmt.Fprintf(r.out, "%s: %d\n", category, total)

		for i, device := range devices {
			r.reportDevice(i, device)
		}
		if total > len(devices) {
			fmt.Fprintf(r.out, "  (%d more not shown)\n", total-len(devices))
		}
	}
}

func (r *Reporter) reportDevice(index int, device cl.DeviceID) {
	fmt.Fprintf(r.out, "  Device %d\n", index)

	var rows [][]string
	var failure error
	for _, prop := range r.Properties {
		v, err := prop.Read(r.rt, device)
		if err != nil {
			metrics.CapabilityReadErrors.WithLabelValues(prop.Name).Inc()
			log.Warn().Err(err).Int("device", index).Str("property", prop.Name).Msg("Capability read failed")
			failure = err
			break
		}
		rows = append(rows, []string{"", prop.Name, v.String()})
	}

	writeTable(r.out, nil, rows)
	if failure != nil {
		fmt.Fprintf(r.out, "    ! %v\n", failure)
	}
}

// WritePlatformTable renders one row per platform.
func WritePlatformTable(w io.Writer, platforms []Platform) {
	rows := make([][]string, 0, len(platforms))
	for _, p := range platforms {
		rows = append(rows, []string{fmt.Sprint(p.Index), p.Name, p.Vendor, p.Version, p.Profile})
	}
	writeTable(w, []string{"#", "NAME", "VENDOR", "VERSION", "PROFILE"}, rows)
}

func writeTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	if header != nil {
		table.SetHeader(header)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeaderLine(false)
	}
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(rows)
	table.Render()
}

// WriteHostSummary describes the host processor.
func WriteHostSummary(w io.Writer) {
	cpu := cpuid.CPU
	features := []string{}
	for _, f := range []cpuid.FeatureID{cpuid.SSE4, cpuid.AVX, cpuid.AVX2, cpuid.AVX512F, cpuid.FMA3, cpuid.ASIMD} {
		if cpu.Supports(f) {
			features = append(features, f.String())
		}
	}

	rows := [][]string{
		{"", "Processor", strings.TrimSpace(cpu.BrandName)},
		{"", "Vendor", cpu.VendorID.String()},
		{"", "Architecture", runtime.GOARCH},
		{"", "Cores", fmt.Sprintf("%d physical, %d logical", cpu.PhysicalCores, cpu.LogicalCores)},
		{"", "Cacheline", humanize.IBytes(uint64(max(cpu.CacheLine, 0)))},
		{"", "SIMD", strings.Join(features, " ")},
	}
	fmt.Fprintln(w, "Host")
	writeTable(w, nil, rows)
}

// HostAllocation is the size of the three host vectors of a pass.
func HostAllocation(n, elemSize int) int64 {
	return 3 * int64(n) * int64(elemSize)
}

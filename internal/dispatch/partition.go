package dispatch

// DefaultLocalSize is the work-group size used when none is configured.
const DefaultLocalSize = 8

// Partition rounds the work-item count up to whole work groups. A local size
// <= 0 selects DefaultLocalSize.
func Partition(n, localSize int) (global, local int) {
	local = localSize
	if local <= 0 {
		local = DefaultLocalSize
	}
	global = (n + local - 1) / local * local
	if global == 0 {
		global = local
	}
	return global, local
}

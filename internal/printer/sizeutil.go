package printer

import (
	"fmt"
	"strings"
)

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatOutputSize summarizes a captured output by its lines and size.
// Examples: "-", "1 line (6 B)", "340 lines (12.5 KB)".
func FormatOutputSize(output string) string {
	if output == "" {
		return "-"
	}

	lines := strings.Count(output, "\n")
	// A trailing partial line counts too.
	if !strings.HasSuffix(output, "\n") {
		lines++
	}

	return fmt.Sprintf("%s (%s)", plural(lines, "line"), formatSize(len(output)))
}

func formatSize(n int) string {
	size := float64(n)
	unit := 0
	for size >= 1024 && unit < len(sizeUnits)-1 {
		size /= 1024
		unit++
	}

	if unit == 0 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[unit])
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

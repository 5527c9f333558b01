package session

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"PriceSentry/internal/query"
)

// windows are the selectable trailing windows, in menu order.
var windows = []struct {
	Label string
	Days  int
}{
	{"Past 7 days", 7},
	{"Past 30 days", 30},
	{"Past 90 days", 90},
	{"Past 180 days", 180},
	{"Past 365 days", 365},
	{"Past 730 days", 730},
}

const (
	metricPrompt  = "Choose 1 or 2 (q to quit): "
	windowPrompt  = "Choose option (q to quit): "
	invalidChoice = "Invalid choice."
	noDataLine    = "  Not enough data yet - try again later.\n\n" // message then a blank line
	farewell      = "\nStopping. Bye!"
)

// RenderMetricMenu returns the metric selection menu.
func RenderMetricMenu() string {
	return "\nMetric: 1) Lowest  2) Average\n"
}

// RenderWindowMenu returns the timeframe selection menu.
func RenderWindowMenu() string {
	var b strings.Builder
	b.WriteString("\nTimeframe:\n")
	for i, w := range windows {
		b.WriteString(fmt.Sprintf("  %d) %s\n", i+1, w.Label))
	}
	return b.String()
}

// RenderResult returns the answer line for one evaluated query.
func RenderResult(metric query.Metric, days int, value decimal.Decimal) string {
	return fmt.Sprintf("  %s price in last %d days: $%s\n",
		strings.ToUpper(metric.String()), days, value.StringFixed(2))
}

// RenderTracking returns the startup banner shown after the first sample.
func RenderTracking(name string, price decimal.Decimal, logPath string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Now tracking: %s - $%s\n", name, price.StringFixed(2)))
	b.WriteString(fmt.Sprintf("Logging to %s\n", logPath))
	return b.String()
}

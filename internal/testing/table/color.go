package table

import (
	"fmt"

	"github.com/fatih/color"
)

// ColorHelper provides utilities for coloring run summaries
type ColorHelper struct {
	enabled bool
}

// NewColorHelper creates a new color helper
// Colors are enabled only when outputting to a terminal
func NewColorHelper() *ColorHelper {
	return &ColorHelper{
		enabled: !color.NoColor,
	}
}

// Success returns green colored text
func (c *ColorHelper) Success(text string) string {
	if !c.enabled {
		return text
	}
	return color.GreenString(text)
}

// Failure returns red colored text
func (c *ColorHelper) Failure(text string) string {
	if !c.enabled {
		return text
	}
	return color.RedString(text)
}

// Warning returns yellow colored text
func (c *ColorHelper) Warning(text string) string {
	if !c.enabled {
		return text
	}
	return color.YellowString(text)
}

// Info returns cyan colored text
func (c *ColorHelper) Info(text string) string {
	if !c.enabled {
		return text
	}
	return color.CyanString(text)
}

// Muted returns gray colored text
func (c *ColorHelper) Muted(text string) string {
	if !c.enabled {
		return text
	}
	return color.New(color.FgHiBlack).Sprint(text)
}

// Bold returns bold text
func (c *ColorHelper) Bold(text string) string {
	if !c.enabled {
		return text
	}
	return color.New(color.Bold).Sprint(text)
}

// Header returns bold cyan text for section headers
func (c *ColorHelper) Header(text string) string {
	if !c.enabled {
		return text
	}
	return color.New(color.FgCyan, color.Bold).Sprint(text)
}

// FormatStatus returns colored text for an HTTP status code
func (c *ColorHelper) FormatStatus(status int) string {
	text := fmt.Sprintf("%d", status)
	switch {
	case status >= 200 && status < 400:
		return c.Success(text)
	case status >= 400 && status < 500:
		return c.Warning(text)
	default:
		return c.Failure(text)
	}
}

// FormatCounts returns colored "ok/total" text based on how many calls succeeded
func (c *ColorHelper) FormatCounts(ok, total int) string {
	text := fmt.Sprintf("%d/%d", ok, total)
	if ok == total {
		return c.Success(text)
	}
	if ok == 0 {
		return c.Failure(text)
	}
	return c.Warning(text)
}

// FormatPercentage returns colored percentage based on value
func (c *ColorHelper) FormatPercentage(value float64) string {
	text := fmt.Sprintf("%.2f%%", value)
	if value == 100.0 {
		return c.Success(text)
	}
	if value >= 90.0 {
		return c.Warning(text)
	}
	return c.Failure(text)
}

// FormatLatency colors a latency in milliseconds against a slow threshold.
// A nil latency renders as a muted dash.
func (c *ColorHelper) FormatLatency(ms *float64, slow float64) string {
	if ms == nil {
		return c.Muted("-")
	}

	text := fmt.Sprintf("%.2f ms", *ms)
	if slow > 0 && *ms >= slow {
		return c.Warning(text)
	}
	return text
}

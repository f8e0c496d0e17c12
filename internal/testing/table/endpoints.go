package table

import (
	"fmt"

	"github.com/crmqa/crm-e2e/internal/testing/metrics"
	"github.com/sirupsen/logrus"
)

// SlowThresholdMS marks latencies at or above it in the endpoint table.
const SlowThresholdMS = 1000.0

// EndpointsFormatter formats per-endpoint latency statistics as a table.
type EndpointsFormatter struct {
	log      logrus.FieldLogger
	renderer Renderer
	colors   *ColorHelper
}

// NewEndpointsFormatter creates a new endpoint table formatter.
func NewEndpointsFormatter(log logrus.FieldLogger, renderer Renderer) *EndpointsFormatter {
	return &EndpointsFormatter{
		log:      log.WithField("component", "table.endpoints_formatter"),
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

// Format renders one row per "METHOD path" group.
func (f *EndpointsFormatter) Format(endpoints []metrics.EndpointSummary) string {
	if len(endpoints) == 0 {
		return "No endpoints called"
	}

	var (
		headers = []string{"Endpoint", "Count", "Avg", "P95", "Min", "Max"}
		rows    = make([][]string, 0, len(endpoints))
	)

	for _, ep := range endpoints {
		rows = append(rows, []string{
			ep.Endpoint,
			fmt.Sprintf("%d", ep.Count),
			f.colors.FormatLatency(ep.AvgMS, SlowThresholdMS),
			f.colors.FormatLatency(ep.P95MS, SlowThresholdMS),
			f.colors.FormatLatency(ep.MinMS, SlowThresholdMS),
			f.colors.FormatLatency(ep.MaxMS, SlowThresholdMS),
		})
	}

	f.log.WithField("endpoints", len(rows)).Debug("formatted endpoint table")

	return "\n" + f.colors.Header("▸ Endpoints") + "\n\n" + f.renderer.RenderToString(headers, rows, WithNumericColumns(1, 2, 3, 4, 5))
}

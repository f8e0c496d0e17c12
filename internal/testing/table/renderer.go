package table

import (
	"bytes"
	"context"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
)

// Renderer provides table rendering utilities
type Renderer interface {
	Start(ctx context.Context) error
	Stop() error
	RenderToString(headers []string, rows [][]string, opts ...RenderOption) string
	RenderToWriter(w io.Writer, headers []string, rows [][]string, opts ...RenderOption)
}

// renderer implements Renderer interface
type renderer struct {
	log logrus.FieldLogger
}

// NewRenderer creates a new table renderer
func NewRenderer(log logrus.FieldLogger) Renderer {
	return &renderer{
		log: log.WithField("component", "table.renderer"),
	}
}

func (r *renderer) Start(_ context.Context) error {
	r.log.Debug("table renderer started")
	return nil
}

func (r *renderer) Stop() error {
	r.log.Debug("table renderer stopped")
	return nil
}

// RenderOption configures table rendering
type RenderOption func(*renderConfig)

type renderConfig struct {
	numeric map[int]bool
}

// WithNumericColumns right-aligns the given zero-based columns.
func WithNumericColumns(columns ...int) RenderOption {
	return func(c *renderConfig) {
		for _, col := range columns {
			c.numeric[col] = true
		}
	}
}

func (r *renderer) RenderToString(headers []string, rows [][]string, opts ...RenderOption) string {
	buf := &bytes.Buffer{}
	r.RenderToWriter(buf, headers, rows, opts...)
	return buf.String()
}

func (r *renderer) RenderToWriter(w io.Writer, headers []string, rows [][]string, opts ...RenderOption) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetBorder(true)
	table.SetTablePadding(" ")
	table.SetNoWhiteSpace(false)

	cfg := &renderConfig{numeric: make(map[int]bool)}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.numeric) > 0 {
		align := make([]int, len(headers))
		for i := range align {
			align[i] = tablewriter.ALIGN_LEFT
			if cfg.numeric[i] {
				align[i] = tablewriter.ALIGN_RIGHT
			}
		}
		table.SetColumnAlignment(align)
	}

	table.AppendBulk(rows)
	table.Render()
}

// Compile-time interface compliance check
var _ Renderer = (*renderer)(nil)

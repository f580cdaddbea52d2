package output

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestStatusStyle(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		wantBold bool
		wantFG   lipgloss.TerminalColor
		wantDim  bool
	}{
		{name: "pending is faint", status: StatusPending, wantDim: true},
		{name: "generating is yellow", status: StatusGenerating, wantFG: ColorYellow},
		{name: "completed is green", status: StatusCompleted, wantFG: ColorGreen},
		{name: "failed is bold red", status: StatusFailed, wantBold: true, wantFG: ColorBoldRed},
		{name: "unknown is unstyled", status: "unknown-value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			style := StatusStyle(tt.status)
			assert.Equal(t, tt.wantBold, style.GetBold())
			assert.Equal(t, tt.wantDim, style.GetFaint())
			if tt.wantFG != nil {
				assert.Equal(t, tt.wantFG, style.GetForeground())
			}
		})
	}
}

func TestFormatRunLine(t *testing.T) {
	line := FormatRunLine("my-shop", "01HZY", StatusCompleted)

	assert.Contains(t, line, "my-shop/01HZY")
	assert.Contains(t, line, StatusCompleted)
	assert.True(t, strings.Index(line, "my-shop") < strings.Index(line, StatusCompleted))
}

func TestFormatCheckmark(t *testing.T) {
	out := FormatCheckmark("Generated my-shop")
	assert.Contains(t, out, "✔")
	assert.Contains(t, out, "Generated my-shop")
}

func TestRenderRunTable(t *testing.T) {
	out := RenderRunTable([]RunRow{
		{ProjectID: "p1", RunID: "r1", Status: StatusCompleted, Artifact: "p1.zip", Age: "2m"},
		{ProjectID: "p2", RunID: "r2", Status: StatusFailed, Message: "validation"},
	})

	for _, want := range []string{"PROJECT", "STATUS", "p1.zip", "p2", "validation"} {
		assert.Contains(t, out, want)
	}
}

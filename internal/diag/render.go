package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/width"

	"github.com/vmlang/corec/internal/span"
)

// SourceSet resolves a span.ID to the source text and file name it came
// from. The driver supplies this; the core never needs it.
type SourceSet interface {
	Resolve(id span.ID) (file, source string, r span.Range)
}

// lineCol converts a byte offset within source into a 1-indexed line/column
// pair. Column counting uses display width (golang.org/x/text/width) rather
// than rune count so the caret lines up under full-width identifiers the
// caret stays under the right column for non-ASCII source too.
func lineCol(source string, offset int) (line, col int) {
	line = 1
	col = 1
	for i, r := range source {
		if i >= offset {
			break
		}
		if r == '\n' {
			line++
			col = 1
			continue
		}
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			col += 2
		default:
			col++
		}
	}
	return line, col
}

// Render formats a single diagnostic with a header, the offending source
// line, and a caret pointing at the column.
func Render(d Diagnostic, src SourceSet, useColor bool) string {
	var sb strings.Builder

	file, source, r := src.Resolve(d.Primary)
	line, col := lineCol(source, r.Start)

	header := fmt.Sprintf("%s", d.Kind)
	if useColor {
		header = color.New(color.FgRed, color.Bold).Sprint(header)
	}
	if file != "" {
		fmt.Fprintf(&sb, "%s in %s:%d:%d\n", header, file, line, col)
	} else {
		fmt.Fprintf(&sb, "%s at %d:%d\n", header, line, col)
	}

	if srcLine := sourceLine(source, line); srcLine != "" {
		lineNumStr := fmt.Sprintf("%4d | ", line)
		sb.WriteString(lineNumStr)
		sb.WriteString(srcLine)
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat(" ", len(lineNumStr)+col-1))
		caret := "^"
		if useColor {
			caret = color.New(color.FgRed, color.Bold).Sprint(caret)
		}
		sb.WriteString(caret)
		sb.WriteString("\n")
	}

	sb.WriteString(d.Message)
	sb.WriteString("\n")

	for _, sec := range d.Secondary {
		secFile, secSource, secR := src.Resolve(sec.Span)
		secLine, secCol := lineCol(secSource, secR.Start)
		if secFile == "" {
			secFile = file
		}
		fmt.Fprintf(&sb, "  %s at %s:%d:%d\n", sec.Label, secFile, secLine, secCol)
	}

	if d.Help != "" {
		help := "help: " + d.Help
		if useColor {
			help = color.New(color.FgCyan).Sprint(help)
		}
		sb.WriteString(help)
		sb.WriteString("\n")
	}

	return sb.String()
}

func sourceLine(source string, lineNum int) string {
	if source == "" {
		return ""
	}
	lines := strings.Split(source, "\n")
	if lineNum < 1 || lineNum > len(lines) {
		return ""
	}
	return lines[lineNum-1]
}

// RenderAll formats every diagnostic in a handler, in report order.
func RenderAll(h *Handler, src SourceSet, useColor bool) string {
	diags := h.All()
	if len(diags) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, d := range diags {
		sb.WriteString(Render(d, src, useColor))
		if i < len(diags)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// maxDisplayRows bounds rendered output; longer frames show head and tail.
const maxDisplayRows = 20

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	nullStyle   = cellStyle.Foreground(lipgloss.Color("240"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func (df *DataFrame) String() string { return df.Render(false) }

// Render draws df as a table headed by its shape. Each column header reads
// "name (dtype)". Colours are only applied when styled is set.
func (df *DataFrame) Render(styled bool) string {
	headers := make([]string, len(df.cols))
	for i, c := range df.cols {
		headers[i] = c.name + " (" + c.dtype.String() + ")"
	}

	rows := make([][]string, 0, min(df.height, maxDisplayRows+1))
	nulls := map[[2]int]bool{}
	addRow := func(r int) {
		row := make([]string, len(df.cols))
		for i, c := range df.cols {
			v := c.Get(r)
			if v == nil {
				nulls[[2]int{len(rows), i}] = true
			}
			row[i] = displayValue(v)
		}
		rows = append(rows, row)
	}
	if df.height <= maxDisplayRows {
		for r := 0; r < df.height; r++ {
			addRow(r)
		}
	} else {
		half := maxDisplayRows / 2
		for r := 0; r < half; r++ {
			addRow(r)
		}
		ellipsis := make([]string, len(df.cols))
		for i := range ellipsis {
			ellipsis[i] = "…"
		}
		rows = append(rows, ellipsis)
		for r := df.height - half; r < df.height; r++ {
			addRow(r)
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...)
	if styled {
		t = t.BorderStyle(borderStyle).StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case nulls[[2]int{row, col}]:
				return nullStyle
			default:
				return cellStyle
			}
		})
	} else {
		t = t.StyleFunc(func(int, int) lipgloss.Style { return cellStyle })
	}

	var b strings.Builder
	fmt.Fprintf(&b, "shape: (%d, %d)\n", df.height, len(df.cols))
	b.WriteString(t.String())
	return b.String()
}

func displayValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	default:
		return formatValue(v)
	}
}

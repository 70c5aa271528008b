package export

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

const missingCell = "-"

// RenderText writes tbl as an aligned plain-text table. Column widths are
// measured in terminal cells, so CJK and accented labels line up.
func RenderText(w io.Writer, tbl indicator.Table) error {
	headers := []string{"ENTITY", "INDICATOR", "YEAR", "VALUE"}
	rows := make([][]string, 0, tbl.Len())
	for _, o := range tbl.Observations {
		value := missingCell
		if o.Value != nil {
			value = strconv.FormatFloat(*o.Value, 'f', -1, 64)
		}
		rows = append(rows, []string{
			labelOrCode(o.EntityLabel, o.Entity),
			labelOrCode(o.IndicatorLabel, o.Indicator),
			strconv.Itoa(o.Year),
			value,
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if cw := runewidth.StringWidth(cell); cw > widths[i] {
				widths[i] = cw
			}
		}
	}

	bw := bufio.NewWriter(w)
	writeRow(bw, headers, widths)
	sep := make([]string, len(widths))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}
	writeRow(bw, sep, widths)
	for _, row := range rows {
		writeRow(bw, row, widths)
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, cells []string, widths []int) {
	for i, cell := range cells {
		if i > 0 {
			w.WriteString("  ")
		}
		// Numbers align right; text aligns left.
		if i >= 2 {
			w.WriteString(runewidth.FillLeft(cell, widths[i]))
		} else {
			w.WriteString(runewidth.FillRight(cell, widths[i]))
		}
	}
	w.WriteString("\n")
}

func labelOrCode(label, code string) string {
	if label == "" {
		return code
	}
	return label
}

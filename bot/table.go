package bot

import (
	"strings"

	"github.com/jedib0t/go-pretty/table"
)

// CodeTable renders rows as a plain text table wrapped in a code block so it keeps its alignment in discord
func CodeTable(header table.Row, rows []table.Row) string {
	tb := table.NewWriter()
	tb.SetStyle(table.StyleLight)
	if header != nil {
		tb.AppendHeader(header)
	}
	for _, r := range rows {
		tb.AppendRow(r)
	}

	var b strings.Builder
	b.WriteString("```\n")
	b.WriteString(tb.Render())
	b.WriteString("\n```")
	return b.String()
}

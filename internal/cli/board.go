package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fixflow/internal/issue"
)

// ANSI escape codes for terminal colors.
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show active issues grouped by workflow status",
	RunE:  runBoard,
}

func runBoard(cmd *cobra.Command, args []string) error {
	cfg, err := mustConfig()
	if err != nil {
		return err
	}
	st := artifactStore(cfg)

	ids, err := st.ListActive()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Printf("%sBoard is empty.%s Create an issue: %sfixflow new my-issue \"title\"%s\n",
			colorDim, colorReset, colorCyan, colorReset)
		return nil
	}

	columns := make(map[issue.Status][]string)
	for _, id := range ids {
		rec, err := issue.Load(st, id)
		if err != nil {
			columns["?"] = append(columns["?"], id)
			continue
		}
		columns[rec.Status] = append(columns[rec.Status], id)
	}

	type col struct {
		status issue.Status
		label  string
		color  string
	}
	order := []col{
		{issue.StatusOpen, "OPEN", colorWhite},
		{issue.StatusConfirmed, "CONFIRMED", colorBlue},
		{issue.StatusReviewed, "REVIEWED", colorCyan},
		{issue.StatusImplemented, "IMPLEMENTED", colorYellow},
		{issue.StatusTested, "TESTED", colorGreen},
	}

	colWidth := 22

	headerLine := ""
	sepLine := ""
	for _, c := range order {
		count := len(columns[c.status])
		header := fmt.Sprintf(" %s%s%s (%d)", c.color+colorBold, c.label, colorReset, count)
		// padRight needs visible length, not byte length (ANSI codes add bytes).
		visibleLen := len(fmt.Sprintf(" %s (%d)", c.label, count))
		padding := colWidth - visibleLen
		if padding < 0 {
			padding = 0
		}
		headerLine += header + strings.Repeat(" ", padding)
		sepLine += strings.Repeat("─", colWidth)
	}
	fmt.Println(headerLine)
	fmt.Println(colorDim + sepLine + colorReset)

	maxRows := 0
	for _, c := range order {
		if len(columns[c.status]) > maxRows {
			maxRows = len(columns[c.status])
		}
	}

	for i := 0; i < maxRows; i++ {
		line := ""
		for _, c := range order {
			cell := ""
			if ids := columns[c.status]; i < len(ids) {
				cell = " " + truncate(ids[i], colWidth-2)
			}
			line += padRight(cell, colWidth)
		}
		fmt.Println(line)
	}

	if n := len(columns["?"]); n > 0 {
		fmt.Printf("\n%s%d issue(s) with malformed headers:%s %s\n",
			colorRed, n, colorReset, strings.Join(columns["?"], ", "))
	}
	return nil
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func truncate(s string, maxLen int) string {
	if maxLen < 1 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "…"
}

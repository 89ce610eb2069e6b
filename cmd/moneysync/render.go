package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/jask/moneysync/internal/currency"
)

// Catppuccin Mocha, matching the rest of the jask tools.
const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSurface1 lipgloss.Color = "#45475a"
)

var (
	titleStyle       = lipgloss.NewStyle().Foreground(colorPink).Bold(true)
	tableHeaderStyle = lipgloss.NewStyle().Foreground(colorSubtext0).Bold(true).Padding(0, 1)
	cellStyle        = lipgloss.NewStyle().Padding(0, 1)
	numberStyle      = cellStyle.Align(lipgloss.Right)
	creditStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	debitStyle       = lipgloss.NewStyle().Foreground(colorRed)
	noteStyle        = lipgloss.NewStyle().Foreground(colorYellow).Italic(true)
	mutedStyle       = lipgloss.NewStyle().Foreground(colorOverlay1)
)

var stdout io.Writer = os.Stdout

// printTable renders rows under headers. Columns listed in numeric are right aligned.
func printTable(title string, headers []string, rows [][]string, numeric ...int) {
	right := make(map[int]bool, len(numeric))
	for _, c := range numeric {
		right[c] = true
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorSurface1)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if right[col] {
				return numberStyle
			}
			return cellStyle
		})
	if title != "" {
		fmt.Fprintln(stdout, titleStyle.Render(title))
	}
	fmt.Fprintln(stdout, t.Render())
}

// approxNote prints the footnote for values converted at rate 1.
func approxNote(n int) {
	if n == 0 {
		return
	}
	fmt.Fprintln(stdout, noteStyle.Render(fmt.Sprintf(
		"* %d value(s) had no exchange rate and were counted 1:1", n)))
}

func printf(format string, args ...any) {
	fmt.Fprintf(stdout, format, args...)
}

func money(amount int64, code string) string {
	return currency.Format(amount, code)
}

func signed(amount int64, code string) string {
	s := money(amount, code)
	if amount < 0 {
		return debitStyle.Render(s)
	}
	return creditStyle.Render(s)
}

// parseAmount reads a decimal amount such as "12.5" into hundredths.
func parseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, usageErr("invalid amount %q", s)
	}
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, usageErr("amount %q has more than two decimals", s)
	}
	return cents.IntPart(), nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

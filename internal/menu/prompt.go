package menu

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/manifoldco/promptui"
	runewidth "github.com/mattn/go-runewidth"
)

type promptuiPrompter struct{}

func (promptuiPrompter) Select(label string, items []string) (int, error) {
	prompt := promptui.Select{
		Label:             label,
		Items:             items,
		Size:              10,
		HideHelp:          false,
		StartInSearchMode: false,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}:",
			Active:   "▶ {{ . | cyan }}",
			Inactive: "  {{ . }}",
			Selected: "✅ {{ . | green }}",
			Help:     "{{ \"Navigate:\" | faint }} {{ .NextKey }} {{ .PrevKey }} {{ .PageDownKey }} {{ .PageUpKey }} {{ \"|\" | faint }} {{ \"Exit:\" | faint }} Ctrl + C",
		},
	}

	index, _, err := prompt.Run()
	if err != nil {
		return -1, err
	}
	return index, nil
}

func (promptuiPrompter) Confirm(label string) (bool, error) {
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (promptuiPrompter) Wait(message string) {
	prompt := promptui.Prompt{Label: message}
	_, _ = prompt.Run()
}

// formatMenuItems renders enabled options as aligned rows of status dot,
// number, label and description. indexes maps each row back to options.
func formatMenuItems(options []MenuOption) ([]string, []int) {
	rows := buildMenuRows(options)
	if len(rows) == 0 {
		return nil, nil
	}

	var numberWidth, labelWidth int
	for _, row := range rows {
		numberWidth = max(numberWidth, len(row.number))
		labelWidth = max(labelWidth, runewidth.StringWidth(row.label))
	}

	items := make([]string, 0, len(rows))
	indexes := make([]int, 0, len(rows))
	for _, row := range rows {
		var b strings.Builder
		b.WriteString(row.dot)
		b.WriteString(" ")
		if numberWidth > 0 {
			if row.number != "" {
				fmt.Fprintf(&b, "%*s. ", numberWidth, row.number)
			} else {
				b.WriteString(strings.Repeat(" ", numberWidth+2))
			}
		}
		b.WriteString(row.label)
		if row.description != "" {
			b.WriteString(strings.Repeat(" ", labelWidth-runewidth.StringWidth(row.label)+2))
			b.WriteString(row.description)
		}
		items = append(items, b.String())
		indexes = append(indexes, row.index)
	}
	return items, indexes
}

type menuRow struct {
	dot         string
	number      string
	label       string
	description string
	index       int
}

var numberedLabel = regexp.MustCompile(`^(\d+)\.\s*(.*)$`)

func buildMenuRows(options []MenuOption) []menuRow {
	rows := make([]menuRow, 0, len(options))
	for idx, option := range options {
		if !option.Enabled {
			continue
		}
		row := menuRow{
			dot:         statusPrefix(option.Color),
			label:       option.Label,
			description: option.Description,
			index:       idx,
		}
		if m := numberedLabel.FindStringSubmatch(option.Label); len(m) == 3 {
			row.number, row.label = m[1], m[2]
		}
		rows = append(rows, row)
	}
	return rows
}

func statusPrefix(color string) string {
	switch color {
	case "red":
		return "🔴"
	case "green":
		return "🟢"
	case "yellow":
		return "🟡"
	case "cyan":
		return "🔵"
	default:
		return "⚪"
	}
}

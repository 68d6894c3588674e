// Package printer renders CLI output as styled tables, JSON or status lines.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

type OutputType string

const (
	OutputTypeTable OutputType = "table"
	OutputTypeJSON  OutputType = "json"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// Printer writes structured output in the selected format.
type Printer struct {
	out        io.Writer
	outputType OutputType
	compact    bool
}

// New returns a Printer writing to stdout. Compact JSON skips indentation.
func New(outputType OutputType, compact bool) *Printer {
	return &Printer{out: os.Stdout, outputType: outputType, compact: compact}
}

// WithWriter redirects output, mostly for tests.
func (p *Printer) WithWriter(w io.Writer) *Printer {
	p.out = w
	return p
}

func (p *Printer) PrintJSON(v any) error {
	enc := json.NewEncoder(p.out)
	if !p.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Print writes v as JSON for JSON output and otherwise calls renderTable.
func (p *Printer) Print(v any, renderTable func() error) error {
	if p.outputType == OutputTypeJSON {
		return p.PrintJSON(v)
	}
	return renderTable()
}

// TablePrinter collects rows and renders them as a bordered table.
type TablePrinter struct {
	out     io.Writer
	headers []string
	rows    [][]string
}

func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{out: w}
}

func (t *TablePrinter) SetHeaders(headers ...string) {
	t.headers = headers
}

// AddRow appends a row; values are formatted with %v and nil pointers
// render as empty cells.
func (t *TablePrinter) AddRow(values ...any) {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = formatCell(v)
	}
	t.rows = append(t.rows, row)
}

func (t *TablePrinter) Render() error {
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(t.headers...).
		Rows(t.rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(t.out, tbl.Render())
	return err
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case []string:
		return strings.Join(val, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// TruncateString shortens s to at most width cells, marking the cut with "...".
func TruncateString(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	if lipgloss.Width(s) <= width {
		return s
	}
	return truncate.StringWithTail(s, uint(width), "...")
}

// Wrap breaks s into lines no wider than width at word boundaries.
func Wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wordwrap.String(s, width)
}

func PrintInfo(msg string) {
	fmt.Println(infoStyle.Render(msg))
}

func PrintSuccess(msg string) {
	fmt.Println(successStyle.Render("✓ " + msg))
}

func PrintWarning(msg string) {
	fmt.Fprintln(os.Stderr, warnStyle.Render("! "+msg))
}

func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("✗ "+msg))
}

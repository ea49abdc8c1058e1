package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
)

// TableFormatter formats output as a table using pterm.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// Name returns the formatter name.
func (f *TableFormatter) Name() string {
	return "table"
}

// Supports returns true for records and lists of records.
func (f *TableFormatter) Supports(data interface{}) bool {
	generic, err := toGeneric(data)
	if err != nil {
		return false
	}
	switch generic.(type) {
	case []interface{}, map[string]interface{}:
		return true
	default:
		return false
	}
}

// Format formats the data as a table and writes it to the writer. Lists get
// one row per record; a single record is shown as a field/value table.
func (f *TableFormatter) Format(w io.Writer, data interface{}, config *FormatConfig) error {
	if config == nil {
		config = NewFormatConfig()
	}
	if data == nil {
		return fmt.Errorf("cannot format nil data as table")
	}

	generic, err := toGeneric(data)
	if err != nil {
		return err
	}

	var tableData [][]string
	switch v := generic.(type) {
	case []interface{}:
		if len(v) == 0 {
			return f.FormatEmpty(w, "", config)
		}
		tableData = f.formatList(v, config)
	case map[string]interface{}:
		tableData = f.formatRecord(v, config)
	default:
		return fmt.Errorf("unsupported data type for table formatting: %T", data)
	}

	if config.SortBy != "" && len(tableData) > 1 {
		tableData = f.sortTableData(tableData, config)
	}

	table := pterm.DefaultTable.WithHasHeader(config.ShowHeaders)
	if config.Colors {
		table = table.WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan, pterm.Bold))
	} else {
		pterm.DisableColor()
		defer pterm.EnableColor()
	}

	rendered, err := table.WithData(tableData).Srender()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	if _, err := io.WriteString(w, rendered+"\n"); err != nil {
		return err
	}
	if config.Footer != "" {
		_, err = io.WriteString(w, config.Footer+"\n")
	}
	return err
}

// formatList formats records as one row each.
func (f *TableFormatter) formatList(items []interface{}, config *FormatConfig) [][]string {
	columns := config.Columns
	if len(columns) == 0 {
		columns = f.autoDetectColumns(items[0])
	}

	tableData := make([][]string, 0, len(items)+1)
	if config.ShowHeaders {
		headers := make([]string, len(columns))
		for i, col := range columns {
			headers[i] = columnHeader(col)
		}
		tableData = append(tableData, headers)
	}

	for _, item := range items {
		row := make([]string, len(columns))
		for j, col := range columns {
			row[j] = f.cell(lookup(item, col.Field), col)
		}
		tableData = append(tableData, row)
	}
	return tableData
}

// formatRecord formats a single record as a two-column field/value table.
func (f *TableFormatter) formatRecord(record map[string]interface{}, config *FormatConfig) [][]string {
	columns := config.Columns
	if len(columns) == 0 {
		columns = f.autoDetectColumns(record)
	}

	tableData := make([][]string, 0, len(columns)+1)
	if config.ShowHeaders {
		tableData = append(tableData, []string{"FIELD", "VALUE"})
	}
	for _, col := range columns {
		tableData = append(tableData, []string{
			columnHeader(col),
			f.cell(lookup(record, col.Field), col),
		})
	}
	return tableData
}

// autoDetectColumns lists the keys of a record in sorted order.
func (f *TableFormatter) autoDetectColumns(v interface{}) []Column {
	record, ok := v.(map[string]interface{})
	if !ok {
		return []Column{{Field: "", Header: "VALUE"}}
	}

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	columns := make([]Column, len(keys))
	for i, key := range keys {
		columns[i] = Column{Field: key}
	}
	return columns
}

func columnHeader(col Column) string {
	if col.Header != "" {
		return col.Header
	}
	return strings.ToUpper(strings.ReplaceAll(col.Field, "_", " "))
}

// lookup resolves a dotted field path. An empty path returns v itself.
func lookup(v interface{}, field string) interface{} {
	if field == "" {
		return v
	}
	for _, part := range strings.Split(field, ".") {
		record, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v = record[part]
	}
	return v
}

func (f *TableFormatter) cell(value interface{}, col Column) string {
	str := f.transformValue(formatValue(value), col.Transform)
	if col.Width > 3 && len(str) > col.Width {
		str = str[:col.Width-3] + "..."
	}
	return str
}

// transformValue applies a transformation to a value.
func (f *TableFormatter) transformValue(str, transform string) string {
	switch strings.ToLower(transform) {
	case "uppercase", "upper":
		return strings.ToUpper(str)
	case "lowercase", "lower":
		return strings.ToLower(str)
	case "title":
		words := strings.Fields(str)
		for i, word := range words {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
		return strings.Join(words, " ")
	case "trim":
		return strings.TrimSpace(str)
	default:
		return str
	}
}

// formatValue renders a generic value as a cell.
func formatValue(value interface{}) string {
	switch val := value.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "yes"
		}
		return "no"
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

// sortTableData sorts table rows by the column whose header matches SortBy.
func (f *TableFormatter) sortTableData(data [][]string, config *FormatConfig) [][]string {
	if !config.ShowHeaders || len(data) <= 1 {
		return data
	}

	colIndex := -1
	for i, header := range data[0] {
		if strings.EqualFold(header, config.SortBy) {
			colIndex = i
			break
		}
	}
	if colIndex == -1 {
		return data
	}

	rows := data[1:]
	sort.SliceStable(rows, func(i, j int) bool {
		if config.SortAsc {
			return rows[i][colIndex] < rows[j][colIndex]
		}
		return rows[i][colIndex] > rows[j][colIndex]
	})
	return data
}

// FormatError formats an error as a one-line message.
func (f *TableFormatter) FormatError(w io.Writer, err error, _ *FormatConfig) error {
	_, werr := io.WriteString(w, "Error: "+err.Error()+"\n")
	return werr
}

// FormatEmpty formats an empty result message.
func (f *TableFormatter) FormatEmpty(w io.Writer, message string, _ *FormatConfig) error {
	if message == "" {
		message = "No results found"
	}
	_, err := io.WriteString(w, message+"\n")
	return err
}

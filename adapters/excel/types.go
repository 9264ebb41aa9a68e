package excel

// RawRowData represents a row of raw spreadsheet data keyed by header
type RawRowData map[string]string

// SheetData represents one sheet read from an Excel or CSV file
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Sheet is one worksheet to be written.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}

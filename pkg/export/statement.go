package export

// Statement describes a loan account statement for rendering.
type Statement struct {
	Title   string
	Summary []StatementField
	Headers []string
	Rows    [][]string
}

// StatementField is a label/value pair shown above the statement table.
type StatementField struct {
	Label string
	Value string
}

package model

// Document is a nested record as produced by the file parser. Child rows are
// stored under their table name as a list of Documents.
type Document map[string]interface{}

// Name returns the "name" field of the document, or "" if absent.
func (d Document) Name() string {
	if v, ok := d["name"].(string); ok {
		return v
	}
	return ""
}

// ImportUnit is the atom of work: one record plus the source rows it came from.
// Units are immutable once cached for a job.
type ImportUnit struct {
	Doc        Document `json:"doc"`
	RowIndexes []int    `json:"row_indexes"`
}

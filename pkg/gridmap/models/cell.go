package models

// CellRow represents a single row of non-empty cells.
type CellRow struct {
	// R is the row number (1-based).
	R int `json:"r"`
	// C maps column letters to cell text.
	C map[string]string `json:"c"`
}

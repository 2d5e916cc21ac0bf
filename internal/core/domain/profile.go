package domain

// CleaningStats is the observable outcome of the cleaning stage.
type CleaningStats struct {
	RowsBefore        int `json:"rows_before"`
	RowsAfter         int `json:"rows_after"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	CellsImputed      int `json:"cells_imputed"`
}

type ColumnProfile struct {
	Name          string     `json:"name"`
	SourceName    string     `json:"source_name"`
	Kind          ColumnKind `json:"kind"`
	MissingCount  int        `json:"missing_count"`
	FillValue     string     `json:"fill_value,omitempty"`
	Min           *float64   `json:"min,omitempty"`
	Max           *float64   `json:"max,omitempty"`
	Mean          *float64   `json:"mean,omitempty"`
	DistinctCount *int       `json:"distinct_count,omitempty"`
}

// DataProfile is the summary persisted on the dataset after a successful load.
type DataProfile struct {
	Cleaning     CleaningStats   `json:"cleaning"`
	Columns      []ColumnProfile `json:"columns"`
	Indexes      []StepResult    `json:"indexes,omitempty"`
	Aggregations []StepResult    `json:"aggregations,omitempty"`
}

type StepOutcome string

const (
	StepSucceeded StepOutcome = "succeeded"
	StepSkipped   StepOutcome = "skipped"
	StepFailed    StepOutcome = "failed"
)

// StepResult tags one best-effort sub-step (index build, aggregation table).
type StepResult struct {
	Name    string      `json:"name"`
	Outcome StepOutcome `json:"outcome"`
	Detail  string      `json:"detail,omitempty"`
}

// JobReport summarizes a single ingestion run.
type JobReport struct {
	DatasetID    int64         `json:"dataset_id"`
	RawTable     string        `json:"raw_table"`
	Cleaning     CleaningStats `json:"cleaning"`
	RowsLoaded   int64         `json:"rows_loaded"`
	Indexes      []StepResult  `json:"indexes"`
	Aggregations []StepResult  `json:"aggregations"`
}

func CountOutcomes(results []StepResult, outcome StepOutcome) int {
	n := 0
	for _, r := range results {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// CleanResult is the output of the cleaning stage.
type CleanResult struct {
	Table   *Table
	Stats   CleaningStats
	Columns []ColumnProfile
}

package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// WriteJSON writes a run to a file as indented JSON.
func WriteJSON(run *Run, path string) error {
	data, err := ToJSON(run)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing results file: %w", err)
	}
	return nil
}

// ReadJSON reads a run from a JSON file.
func ReadJSON(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results file: %w", err)
	}
	return FromJSON(data)
}

// ToJSON serializes a run to indented JSON.
func ToJSON(run *Run) ([]byte, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling results: %w", err)
	}
	return data, nil
}

// FromJSON deserializes a run from JSON.
func FromJSON(data []byte) (*Run, error) {
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshaling results: %w", err)
	}
	return &run, nil
}

// WriteCSV writes the time series of a run as CSV with one row per
// reported time: time, mean and variance per species, then the sink.
func WriteCSV(run *Run, w io.Writer) error {
	species := make([]string, 0, len(run.Series.Mean))
	for name := range run.Series.Mean {
		species = append(species, name)
	}
	sort.Strings(species)

	cw := csv.NewWriter(w)
	header := []string{"time"}
	for _, name := range species {
		header = append(header, "mean_"+name, "var_"+name)
	}
	header = append(header, "sink")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i, t := range run.Series.Times {
		row := []string{strconv.FormatFloat(t, 'g', -1, 64)}
		for _, name := range species {
			row = append(row,
				strconv.FormatFloat(run.Series.Mean[name][i], 'g', -1, 64),
				strconv.FormatFloat(run.Series.Variance[name][i], 'g', -1, 64))
		}
		row = append(row, strconv.FormatFloat(run.Series.Sink[i], 'g', -1, 64))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}

package results

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cme-xyz/go-cme/cme"
	"github.com/cme-xyz/go-cme/model"
)

func solvedRun(t *testing.T) *Run {
	t.Helper()
	m := &model.Model{
		Name:    "birth",
		Species: []string{"x"},
		Shape:   []int{20},
		Initial: model.State{0},
		Reactions: []model.Reaction{
			{Name: "birth", Delta: []int{1}, Rate: model.Constant{K: 1}},
		},
	}
	s, err := cme.New(m, nil)
	if err != nil {
		t.Fatalf("cme.New: %v", err)
	}
	points, err := s.Solve(context.Background(), []float64{0, 1, 2})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	return NewBuilder(m, "tsit5").AddPoints(points).Build()
}

func TestBuilder(t *testing.T) {
	run := solvedRun(t)

	if run.ID == "" {
		t.Error("run has no ID")
	}
	if run.Version != SchemaVersion {
		t.Errorf("version %q", run.Version)
	}
	if run.Metadata.Status != "success" || run.Metadata.Method != "tsit5" {
		t.Errorf("metadata %+v", run.Metadata)
	}
	if run.Metadata.States != 20 {
		t.Errorf("states %d, want 20", run.Metadata.States)
	}
	if len(run.Series.Times) != 3 || len(run.Series.Sink) != 3 {
		t.Fatalf("series lengths: times %d, sink %d", len(run.Series.Times), len(run.Series.Sink))
	}
	means := run.Series.Mean["x"]
	if len(means) != 3 {
		t.Fatalf("mean series length %d", len(means))
	}
	// Poisson mean k*t.
	if means[0] != 0 || means[1] < 0.9 || means[1] > 1.1 {
		t.Errorf("mean series %v", means)
	}
	if run.Series.FinalMarginals["x"] == nil {
		t.Error("final marginals missing")
	}
}

func TestBuilderFail(t *testing.T) {
	m := &model.Model{
		Name:    "m",
		Species: []string{"x"},
		Reactions: []model.Reaction{
			{Name: "r", Delta: []int{1}, Rate: model.Constant{K: 1}},
		},
	}
	run := NewBuilder(m, "tsit5").Fail(context.DeadlineExceeded).Build()
	if run.Metadata.Status != "error" {
		t.Errorf("status %q, want error", run.Metadata.Status)
	}
	if run.Metadata.Error == "" {
		t.Error("error message missing")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	run := solvedRun(t)
	path := filepath.Join(t.TempDir(), "run.json")

	if err := WriteJSON(run, path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	got, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.ID != run.ID || got.Model.Name != "birth" {
		t.Errorf("round trip lost identity: %+v", got)
	}
	if len(got.Series.Times) != len(run.Series.Times) {
		t.Errorf("round trip lost series: %d vs %d", len(got.Series.Times), len(run.Series.Times))
	}
	if got.Series.Mean["x"][1] != run.Series.Mean["x"][1] {
		t.Error("round trip changed mean series")
	}
}

func TestWriteCSV(t *testing.T) {
	run := solvedRun(t)
	var buf bytes.Buffer
	if err := WriteCSV(run, &buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d lines", len(lines))
	}
	if lines[0] != "time,mean_x,var_x,sink" {
		t.Errorf("header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0,0,") {
		t.Errorf("first row %q", lines[1])
	}
}

func TestStoreRoundTrip(t *testing.T) {
	run := solvedRun(t)
	store, err := NewStore(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if err := store.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := store.LoadRun(run.ID)
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if got.ID != run.ID || got.Metadata.Method != "tsit5" {
		t.Errorf("loaded run %+v", got)
	}

	infos, err := store.ListRuns("")
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(infos) != 1 || infos[0].ID != run.ID || infos[0].Model != "birth" {
		t.Errorf("listing %+v", infos)
	}

	infos, err = store.ListRuns("other")
	if err != nil {
		t.Fatalf("ListRuns filtered: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("filter matched %d runs, want 0", len(infos))
	}

	if err := store.DeleteRun(run.ID); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := store.LoadRun(run.ID); err == nil {
		t.Error("deleted run still loads")
	}
}

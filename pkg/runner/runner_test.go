package runner

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeFetcher serves canned payloads by route and records call order.
type fakeFetcher struct {
	payloads map[string]string
	failures map[string]error
	calls    []string
}

func (f *fakeFetcher) GetJSON(ctx context.Context, route string, params url.Values) ([]byte, error) {
	f.calls = append(f.calls, route)
	if err, ok := f.failures[route]; ok {
		return nil, err
	}
	if body, ok := f.payloads[route]; ok {
		return []byte(body), nil
	}
	return []byte(`{"response": []}`), nil
}

func TestRun_ExecutesJobsInOrder(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{
		payloads: map[string]string{
			"seasons": `{"response": [2023, 2024]}`,
			"races":   `{"response": [{"id": 1}]}`,
		},
	}

	jobs := []Job{
		{Name: "seasons", Route: "seasons", OutPath: filepath.Join(dir, "season.json")},
		{Name: "races", Route: "races", OutPath: filepath.Join(dir, "races.json")},
	}

	if err := New(fetcher).Run(context.Background(), jobs); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(fetcher.calls) != 2 || fetcher.calls[0] != "seasons" || fetcher.calls[1] != "races" {
		t.Errorf("Unexpected call order: %v", fetcher.calls)
	}
	for _, name := range []string{"season.json", "races.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to be written: %v", name, err)
		}
	}
}

func TestRun_APIErrorStillWritesPayload(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{
		payloads: map[string]string{
			"races": `{"errors": {"token": "Missing application key"}, "response": []}`,
			"teams": `{"response": [{"id": 7}]}`,
		},
	}

	jobs := []Job{
		{Name: "races", Route: "races", OutPath: filepath.Join(dir, "races.json")},
		{Name: "teams", Route: "teams", OutPath: filepath.Join(dir, "teams.json")},
	}

	// API-level errors are warnings, not failures: the run completes.
	if err := New(fetcher).Run(context.Background(), jobs); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The error payload is persisted unchanged for inspection.
	raw, err := os.ReadFile(filepath.Join(dir, "races.json"))
	if err != nil {
		t.Fatalf("races.json not written: %v", err)
	}
	if want := "Missing application key"; !strings.Contains(string(raw), want) {
		t.Errorf("Persisted payload should contain %q, got %s", want, raw)
	}

	// The following job still ran.
	if _, err := os.Stat(filepath.Join(dir, "teams.json")); err != nil {
		t.Errorf("teams.json should still be written: %v", err)
	}
}

func TestRun_FetchFailureAborts(t *testing.T) {
	dir := t.TempDir()
	fetchErr := errors.New("retry attempts exhausted")
	fetcher := &fakeFetcher{
		failures: map[string]error{"races": fetchErr},
	}

	jobs := []Job{
		{Name: "races", Route: "races", OutPath: filepath.Join(dir, "races.json")},
		{Name: "teams", Route: "teams", OutPath: filepath.Join(dir, "teams.json")},
	}

	err := New(fetcher).Run(context.Background(), jobs)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !errors.Is(err, fetchErr) {
		t.Errorf("Expected wrapped fetch error, got %v", err)
	}

	// Remaining jobs are not attempted after a fetch failure.
	if len(fetcher.calls) != 1 {
		t.Errorf("Expected 1 call, got %v", fetcher.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "teams.json")); !os.IsNotExist(err) {
		t.Error("teams.json should not be written after an abort")
	}
}

func TestFanOut_PartialFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{
		payloads: map[string]string{
			"races/results": `{"response": [{"driver": "VER"}]}`,
		},
	}
	fetcher.failures = map[string]error{}

	jobs := []Job{
		RaceResultJob("races/results", "race", 3, dir),
		{Name: "race_results/5", Route: "broken", OutPath: filepath.Join(dir, "race_results", "5.json")},
		RaceResultJob("races/results", "race", 9, dir),
	}
	fetcher.failures["broken"] = errors.New("HTTP 500")

	outcomes, err := New(fetcher).FanOut(context.Background(), jobs)

	// One failed identifier does not stop the others.
	if len(outcomes) != 3 {
		t.Fatalf("Expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Errorf("Healthy identifiers should succeed: %v / %v", outcomes[0].Err, outcomes[2].Err)
	}
	if outcomes[1].Err == nil {
		t.Error("Broken identifier should record its error")
	}

	// The summary error names the failure count.
	if err == nil {
		t.Fatal("Expected summary error, got nil")
	}
	if got := err.Error(); got != "1 of 3 fan-out jobs failed" {
		t.Errorf("Summary = %q", got)
	}

	for _, name := range []string{"3.json", "9.json"} {
		if _, err := os.Stat(filepath.Join(dir, "race_results", name)); err != nil {
			t.Errorf("Expected race_results/%s to be written: %v", name, err)
		}
	}
}

func TestFanOut_AllSucceed(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{}

	jobs := []Job{
		RaceResultJob("races/results", "race", 1, dir),
		RaceResultJob("races/results", "race", 2, dir),
	}

	outcomes, err := New(fetcher).FanOut(context.Background(), jobs)
	if err != nil {
		t.Fatalf("FanOut failed: %v", err)
	}
	if len(outcomes) != 2 {
		t.Errorf("Expected 2 outcomes, got %d", len(outcomes))
	}
}

func TestFanOut_StopsWhenContextDead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{
		failures: map[string]error{
			"races/results": context.Canceled,
		},
	}

	dir := t.TempDir()
	jobs := []Job{
		RaceResultJob("races/results", "race", 1, dir),
		RaceResultJob("races/results", "race", 2, dir),
		RaceResultJob("races/results", "race", 3, dir),
	}

	outcomes, err := New(fetcher).FanOut(ctx, jobs)
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	// No point hammering the remaining identifiers with a dead context.
	if len(outcomes) != 1 {
		t.Errorf("Expected 1 outcome before bailing out, got %d", len(outcomes))
	}
}

// Command validate checks a traffic analysis report for internal consistency:
// score bounds and levels, location code order, indicator totals and model
// metric rounding. With -csv it also recomputes the deterministic parts of the
// report from the source file and compares them.
//
// Usage:
//
//	go run ./cmd/traffic analyze --csv data/mock/traffic_sample.csv --mode full > report.json
//	go run ./cmd/validate -report report.json -csv data/mock/traffic_sample.csv
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/traffic-analysis/internal/adapter/csvsource"
	"github.com/couchcryptid/traffic-analysis/internal/domain"
	"github.com/couchcryptid/traffic-analysis/internal/ml"
	"github.com/couchcryptid/traffic-analysis/internal/pipeline"
)

// scoreTolerance absorbs float noise between a serialized and a recomputed score.
const scoreTolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	reportPath := flag.String("report", "", "path to a report JSON document")
	csvPath := flag.String("csv", "", "optional source CSV to recompute the report from")
	flag.Parse()

	if *reportPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*reportPath, *csvPath); code != 0 {
		os.Exit(code)
	}
}

func run(reportPath, csvPath string) int {
	fmt.Println("=== Traffic Report Validation ===")
	fmt.Println()

	report, err := loadReport(reportPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load report: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateEnvelope(report),
		validateModels(report.MLPerformance),
		validateScores(report.ProcessedData),
		validateLocationCodes(report.ProcessedData),
		validateIndicators(report),
	}

	if csvPath != "" {
		data, err := os.ReadFile(csvPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: read CSV: %v\n", err)
			return 1
		}
		phases = append(phases, validateAgainstSource(report, data))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d processed, %d in report body\n", report.RecordsProcessed, len(report.ProcessedData))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadReport(path string) (pipeline.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Report{}, err
	}
	var r pipeline.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return pipeline.Report{}, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ── Phase 1: Envelope ──

func validateEnvelope(r pipeline.Report) *phase {
	p := &phase{name: "Phase 1: Report Envelope"}

	if !r.Success {
		p.errorf("report failed: %s", r.Error)
		return p
	}
	if r.Error != "" {
		p.errorf("successful report carries error %q", r.Error)
	}
	want := fmt.Sprintf("Analysis completed for %d records", r.RecordsProcessed)
	if r.Message != want {
		p.errorf("message = %q, want %q", r.Message, want)
	}
	if r.ProcessedData != nil && len(r.ProcessedData) != r.RecordsProcessed {
		p.errorf("recordsProcessed = %d but processedData has %d records", r.RecordsProcessed, len(r.ProcessedData))
	}
	for _, level := range domain.Levels {
		if _, ok := r.Breakdown.Levels[level]; !ok {
			p.errorf("breakdown missing level %q", level)
		}
	}
	return p
}

// ── Phase 2: Model Metrics ──

func validateModels(perf ml.Performance) *phase {
	p := &phase{name: "Phase 2: Model Metrics"}

	for _, m := range ml.DefaultModels() {
		metrics, ok := perf[m.Name]
		if !ok {
			p.errorf("missing model %q", m.Name)
			continue
		}
		checkRounded(p, m.Name+" RMSE", metrics.RMSE)
		checkRounded(p, m.Name+" R2", metrics.R2)
		if metrics.RMSE < 0 {
			p.errorf("%s RMSE = %v, want >= 0", m.Name, metrics.RMSE)
		}
	}
	if len(perf) != len(ml.DefaultModels()) {
		p.errorf("report has %d models, want %d", len(perf), len(ml.DefaultModels()))
	}
	return p
}

func checkRounded(p *phase, label string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		p.errorf("%s is not finite", label)
		return
	}
	if domain.Round3(v) != v {
		p.errorf("%s = %v is not rounded to 3 decimals", label, v)
	}
}

// ── Phase 3: Scores and Levels ──

func validateScores(records []domain.Record) *phase {
	p := &phase{name: "Phase 3: Scores and Levels"}

	for i, r := range records {
		if r.CongestionScore < 0 || r.CongestionScore > 1 || math.IsNaN(r.CongestionScore) {
			p.errorf("record %d: score %v outside [0,1]", i, r.CongestionScore)
			continue
		}
		if want := domain.Level(r.CongestionScore); r.CongestionLevel != want {
			p.errorf("record %d: level %q for score %v, want %q", i, r.CongestionLevel, r.CongestionScore, want)
		}
		if r.Hour < 0 || r.Accidents < 0 || r.Fatalities < 0 {
			p.errorf("record %d: negative count (hour=%d accidents=%d fatalities=%d)", i, r.Hour, r.Accidents, r.Fatalities)
		}
		if r.Location == "" {
			p.errorf("record %d: empty location", i)
		}
	}
	return p
}

// ── Phase 4: Location Codes ──

func validateLocationCodes(records []domain.Record) *phase {
	p := &phase{name: "Phase 4: Location Codes"}

	codes := make(map[string]int)
	for i, r := range records {
		code, seen := codes[r.Location]
		if !seen {
			code = len(codes)
			codes[r.Location] = code
		}
		if r.LocationCode != code {
			p.errorf("record %d: location %q has code %d, want %d", i, r.Location, r.LocationCode, code)
		}
	}
	return p
}

// ── Phase 5: Indicators ──

func validateIndicators(r pipeline.Report) *phase {
	p := &phase{name: "Phase 5: Indicators and Breakdown"}

	levelTotal := 0
	for _, n := range r.Breakdown.Levels {
		levelTotal += n
	}
	if r.Success && levelTotal != r.RecordsProcessed {
		p.errorf("level counts sum to %d, want %d", levelTotal, r.RecordsProcessed)
	}

	if len(r.ProcessedData) == 0 {
		return p
	}

	table := domain.Table{Records: r.ProcessedData}
	ind, err := domain.Aggregate(table)
	if err != nil {
		p.errorf("recompute indicators: %v", err)
		return p
	}
	if ind != r.Indicators {
		p.errorf("indicators = %+v, recomputed %+v", r.Indicators, ind)
	}

	b, err := domain.Summarize(table)
	if err != nil {
		p.errorf("recompute breakdown: %v", err)
		return p
	}
	for _, level := range domain.Levels {
		if b.Levels[level] != r.Breakdown.Levels[level] {
			p.errorf("level %q count = %d, recomputed %d", level, r.Breakdown.Levels[level], b.Levels[level])
		}
	}
	return p
}

// ── Phase 6: Source Recompute ──

func validateAgainstSource(r pipeline.Report, data []byte) *phase {
	p := &phase{name: "Phase 6: Source Recompute"}

	raw, err := csvsource.Parse(data)
	if err != nil {
		p.errorf("parse CSV: %v", err)
		return p
	}
	table, err := domain.Normalize(raw)
	if err != nil {
		p.errorf("normalize CSV: %v", err)
		return p
	}
	scored := domain.Score(table)

	if scored.Len() != r.RecordsProcessed {
		p.errorf("CSV has %d records, report processed %d", scored.Len(), r.RecordsProcessed)
	}

	ind, err := domain.Aggregate(scored)
	if err != nil {
		p.errorf("aggregate CSV: %v", err)
	} else if ind != r.Indicators {
		p.errorf("indicators = %+v, CSV gives %+v", r.Indicators, ind)
	}

	if len(r.ProcessedData) == 0 {
		return p
	}
	if len(r.ProcessedData) != scored.Len() {
		p.errorf("processedData has %d records, CSV gives %d", len(r.ProcessedData), scored.Len())
		return p
	}
	for i, want := range scored.Records {
		got := r.ProcessedData[i]
		if math.Abs(got.CongestionScore-want.CongestionScore) > scoreTolerance {
			p.errorf("record %d: score %v, CSV gives %v", i, got.CongestionScore, want.CongestionScore)
		}
		if got.Location != want.Location || got.LocationCode != want.LocationCode {
			p.errorf("record %d: location %q/%d, CSV gives %q/%d",
				i, got.Location, got.LocationCode, want.Location, want.LocationCode)
		}
		if got.Accidents != want.Accidents || got.Fatalities != want.Fatalities {
			p.errorf("record %d: accidents/fatalities %d/%d, CSV gives %d/%d",
				i, got.Accidents, got.Fatalities, want.Accidents, want.Fatalities)
		}
	}
	return p
}

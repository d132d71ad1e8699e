// Command benchkit maintains the detection benchmark corpus: it resolves
// manifest image sources, runs the detector over the benchmark, analyzes the
// errors, ranks labels for data collection and diffs evaluation runs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"repath/benchkit/detect"
	"repath/benchkit/evaluate"
	"repath/benchkit/internal/config"
	"repath/benchkit/internal/jsonio"
	"repath/benchkit/manifest"
	"repath/benchkit/priority"
	"repath/benchkit/queue"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "resolve":
		err = runResolve(args)
	case "dedupe":
		err = runDedupe(args)
	case "sync":
		err = runSync(args)
	case "evaluate":
		err = runEvaluate(args)
	case "analyze":
		err = runAnalyze(args)
	case "plan":
		err = runPlan(args)
	case "batches":
		err = runBatches(args)
	case "queue":
		err = runQueue(args)
	case "compare":
		err = runCompare(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		usage()
		err = fmt.Errorf("unknown command %q", command)
	}
	if err != nil {
		log.Fatalf("benchkit: %v", err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s COMMAND [options]

Commands:
  resolve   download/copy manifest image sources into the local cache
  dedupe    demote manifest entries that share a URL
  sync      reconcile completed labeling work back into the manifest
  evaluate  run the detector over every ready manifest entry
  analyze   turn evaluation results into an error-driven priority table
  plan      rank todo entries by taxonomy risk heuristics
  batches   cut ranked candidates into band-limited labeling batches
  queue     build the retraining sample queue from a priority table
  compare   diff two evaluation result files

Run %s COMMAND -h for command options.
`, filepath.Base(os.Args[0]), filepath.Base(os.Args[0]))
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// printJSON writes the run summary to stdout so runs are scriptable.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func stderrLogger() *log.Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// requireReadyInvariant refuses to persist a manifest where a ready entry
// lost its URL.
func requireReadyInvariant(m *manifest.Manifest) error {
	if violations := manifest.CheckReadyInvariant(m); len(violations) > 0 {
		return fmt.Errorf("ready entries without url: %s", strings.Join(violations, ", "))
	}
	return nil
}

func runResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.json (default: ./config.json)")
	manifestPath := fs.String("manifest", "", "Benchmark manifest to resolve (default from config)")
	outPath := fs.String("out", "", "Where to write the resolved manifest (default: in place)")
	completedPath := fs.String("completed", "", "Completed-work CSV/JSON whose URLs override the manifest")
	appendPaths := fs.String("append", "", "Comma-separated extra manifest files to merge before resolving")
	cacheDir := fs.String("cache-dir", "", "Image cache directory (default from config)")
	retries := fs.Int("retries", 0, "Download retry attempts (default from config)")
	noDownload := fs.Bool("no-download", false, "Fail remote entries instead of downloading")
	noCopyLocal := fs.Bool("no-copy-local", false, "Reference local files in place instead of copying into the cache")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *manifestPath == "" {
		*manifestPath = cfg.ManifestPath
	}
	if *outPath == "" {
		*outPath = *manifestPath
	}
	if *cacheDir == "" {
		*cacheDir = cfg.CacheDir
	}
	if *retries <= 0 {
		*retries = cfg.DownloadRetries
	}

	m, err := manifest.Load(*manifestPath)
	if err != nil {
		return err
	}

	loaded, missing, err := manifest.AppendImages(m, splitList(*appendPaths))
	if err != nil {
		return err
	}

	completed := map[string]string{}
	if *completedPath != "" {
		completed, err = manifest.LoadCompletedURLMap(*completedPath)
		if err != nil {
			return err
		}
	}

	resolver := &manifest.Resolver{
		CacheDir:         *cacheDir,
		Client:           &http.Client{Timeout: time.Duration(cfg.DownloadTimeout) * time.Second},
		Retries:          *retries,
		DisableDownload:  *noDownload,
		DisableCopyLocal: *noCopyLocal,
		Logger:           stderrLogger(),
	}
	result := resolver.ResolveAll(context.Background(), m, completed)

	if err := requireReadyInvariant(m); err != nil {
		return err
	}
	m.GeneratedAt = nowStamp()
	m.Source = &manifest.SourceInfo{
		Manifest:        jsonio.RelOrAbs(*manifestPath),
		AppendManifests: loaded,
		MissingAppends:  missing,
		Completed:       *completedPath,
		CacheDir:        jsonio.RelOrAbs(*cacheDir),
	}
	if err := manifest.Save(*outPath, m); err != nil {
		return err
	}

	return printJSON(struct {
		GeneratedAt      string                 `json:"generated_at"`
		Manifest         string                 `json:"manifest"`
		CacheDir         string                 `json:"cache_dir"`
		AppendedFiles    []string               `json:"appended_files,omitempty"`
		MissingAppends   []string               `json:"missing_append_files,omitempty"`
		CompletedApplied int                    `json:"completed_url_overrides"`
		Resolve          manifest.ResolveResult `json:"resolve"`
		Counts           manifest.Counts        `json:"counts"`
	}{
		GeneratedAt:      m.GeneratedAt,
		Manifest:         jsonio.RelOrAbs(*outPath),
		CacheDir:         jsonio.RelOrAbs(*cacheDir),
		AppendedFiles:    loaded,
		MissingAppends:   missing,
		CompletedApplied: len(completed),
		Resolve:          result,
		Counts:           manifest.CountEntries(m),
	})
}

func runDedupe(args []string) error {
	fs := flag.NewFlagSet("dedupe", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.json (default: ./config.json)")
	manifestPath := fs.String("manifest", "", "Benchmark manifest to deduplicate (default from config)")
	outPath := fs.String("out", "", "Where to write the deduplicated manifest (default: in place)")
	reportPath := fs.String("report", "", "Optional JSON report of groups and changes")
	keepLast := fs.Bool("keep-last", false, "Keep the last occurrence of each URL instead of the first")
	keepURL := fs.Bool("keep-url", false, "Preserve the URL on demoted duplicates")
	dryRun := fs.Bool("dry-run", false, "Report what would change without writing the manifest")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *manifestPath == "" {
		*manifestPath = cfg.ManifestPath
	}
	if *outPath == "" {
		*outPath = *manifestPath
	}

	m, err := manifest.Load(*manifestPath)
	if err != nil {
		return err
	}

	result := manifest.DedupeByURL(m, manifest.DedupOptions{KeepLast: *keepLast, KeepURL: *keepURL})
	if err := requireReadyInvariant(m); err != nil {
		return err
	}

	if !*dryRun {
		if err := manifest.Save(*outPath, m); err != nil {
			return err
		}
	}
	if *reportPath != "" {
		if err := jsonio.Write(*reportPath, result); err != nil {
			return err
		}
	}

	return printJSON(struct {
		GeneratedAt     string          `json:"generated_at"`
		Manifest        string          `json:"manifest"`
		DryRun          bool            `json:"dry_run"`
		DuplicateGroups int             `json:"duplicate_groups"`
		Changes         int             `json:"changes"`
		Before          manifest.Counts `json:"before"`
		After           manifest.Counts `json:"after"`
	}{
		GeneratedAt:     nowStamp(),
		Manifest:        jsonio.RelOrAbs(*outPath),
		DryRun:          *dryRun,
		DuplicateGroups: len(result.DuplicateGroups),
		Changes:         len(result.Changes),
		Before:          result.Before,
		After:           result.After,
	})
}

func runSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.json (default: ./config.json)")
	manifestPath := fs.String("manifest", "", "Benchmark manifest to update (default from config)")
	outPath := fs.String("out", "", "Where to write the updated manifest (default: in place)")
	completedPath := fs.String("completed", "", "Completed-work CSV/JSON file (required)")
	reportPath := fs.String("report", "", "Optional JSON progress report")
	clearEmptyURL := fs.Bool("clear-empty-url", false, "Clear stored URLs when the completed row has none")
	dryRun := fs.Bool("dry-run", false, "Report what would change without writing the manifest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *completedPath == "" {
		fs.Usage()
		return errors.New("missing required -completed file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *manifestPath == "" {
		*manifestPath = cfg.ManifestPath
	}
	if *outPath == "" {
		*outPath = *manifestPath
	}

	m, err := manifest.Load(*manifestPath)
	if err != nil {
		return err
	}
	rows, err := manifest.LoadCompletedRows(*completedPath)
	if err != nil {
		return err
	}

	result := manifest.SyncCompleted(m, rows, *clearEmptyURL)
	if err := requireReadyInvariant(m); err != nil {
		return err
	}

	if !*dryRun {
		if err := manifest.Save(*outPath, m); err != nil {
			return err
		}
	}
	if *reportPath != "" {
		if err := jsonio.Write(*reportPath, result); err != nil {
			return err
		}
	}

	return printJSON(struct {
		GeneratedAt       string          `json:"generated_at"`
		Manifest          string          `json:"manifest"`
		Completed         string          `json:"completed"`
		DryRun            bool            `json:"dry_run"`
		RowsApplied       int             `json:"completed_rows_applied"`
		UnknownNames      []string        `json:"unknown_completed_names,omitempty"`
		SkippedMissingURL []string        `json:"skipped_missing_url_names,omitempty"`
		Changes           int             `json:"changes"`
		Counts            manifest.Counts `json:"counts"`
	}{
		GeneratedAt:       nowStamp(),
		Manifest:          jsonio.RelOrAbs(*outPath),
		Completed:         jsonio.RelOrAbs(*completedPath),
		DryRun:            *dryRun,
		RowsApplied:       result.CompletedRowsApplied,
		UnknownNames:      result.UnknownCompletedNames,
		SkippedMissingURL: result.SkippedMissingURL,
		Changes:           len(result.Changes),
		Counts:            result.Counts,
	})
}

func runEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.json (default: ./config.json)")
	manifestPath := fs.String("manifest", "", "Benchmark manifest (default from config)")
	modelPath := fs.String("model", "", "ONNX model file (default from config)")
	labelsPath := fs.String("labels", "", "Model labels JSON (default from config)")
	ortLib := fs.String("ort-lib", "", "ONNX Runtime shared library (default from config)")
	outPath := fs.String("out", "", "Where to write results JSON (default from config)")
	cacheDir := fs.String("cache-dir", "", "Image cache directory (default from config)")
	threshold := fs.Float64("threshold", 0, "Score threshold (default from config)")
	topK := fs.Int("topk", 0, "Detections kept per image (default from config)")
	inputSize := fs.Int("input-size", 0, "Model input edge in pixels (default from config)")
	supportedOnly := fs.Bool("supported-only", false, "Score only labels in the model vocabulary")
	noDownload := fs.Bool("no-download", false, "Skip entries whose image is not already cached")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *manifestPath == "" {
		*manifestPath = cfg.ManifestPath
	}
	if *modelPath == "" {
		*modelPath = cfg.ModelPath
	}
	if *labelsPath == "" {
		*labelsPath = cfg.LabelsPath
	}
	if *ortLib == "" {
		*ortLib = cfg.OrtLibraryPath
	}
	if *outPath == "" {
		*outPath = cfg.ResultsPath
	}
	if *cacheDir == "" {
		*cacheDir = cfg.CacheDir
	}
	if *threshold <= 0 {
		*threshold = cfg.Threshold
	}
	if *topK <= 0 {
		*topK = cfg.TopK
	}
	if *inputSize <= 0 {
		*inputSize = cfg.InputSize
	}

	m, err := manifest.Load(*manifestPath)
	if err != nil {
		return err
	}
	labels, err := detect.LoadLabels(*labelsPath)
	if err != nil {
		return err
	}

	detector, err := detect.NewONNXDetector(detect.ONNXConfig{
		LibraryPath: *ortLib,
		ModelPath:   *modelPath,
		InputSize:   *inputSize,
	})
	if err != nil {
		return err
	}
	defer detector.Close()

	engine := &evaluate.Engine{
		Detector: detector,
		Decoder:  detect.Decoder{Labels: labels, Threshold: *threshold, TopK: *topK},
		Images: &manifest.Resolver{
			CacheDir:        *cacheDir,
			Client:          &http.Client{Timeout: time.Duration(cfg.DownloadTimeout) * time.Second},
			Retries:         cfg.DownloadRetries,
			DisableDownload: *noDownload,
			Logger:          stderrLogger(),
		},
		SupportedOnly: *supportedOnly,
		Logger:        stderrLogger(),
	}

	results, err := engine.Run(context.Background(), m)
	if err != nil {
		return err
	}
	results.Summary.Model = jsonio.RelOrAbs(*modelPath)
	results.Summary.Labels = jsonio.RelOrAbs(*labelsPath)
	results.Summary.Manifest = jsonio.RelOrAbs(*manifestPath)

	if err := jsonio.Write(*outPath, results); err != nil {
		return err
	}
	return printJSON(results.Summary)
}

func runAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.json (default: ./config.json)")
	resultsPath := fs.String("results", "", "Evaluation results JSON (default from config)")
	outPath := fs.String("out", "", "Where to write the analysis JSON (default: next to results)")
	csvPath := fs.String("csv", "", "Where to write the priority CSV template (default: next to results)")
	topN := fs.Int("top", 25, "Rows kept in each top list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *resultsPath == "" {
		*resultsPath = cfg.ResultsPath
	}
	if *outPath == "" {
		*outPath = filepath.Join(filepath.Dir(*resultsPath), "error-analysis.json")
	}
	if *csvPath == "" {
		*csvPath = filepath.Join(filepath.Dir(*resultsPath), "label-priorities.csv")
	}

	var results evaluate.Results
	if err := jsonio.Read(*resultsPath, &results); err != nil {
		return err
	}

	analysis := priority.Analyze(&results, *topN)
	analysis.GeneratedAt = nowStamp()
	analysis.Source = jsonio.RelOrAbs(*resultsPath)

	if err := jsonio.Write(*outPath, analysis); err != nil {
		return err
	}
	if err := priority.WritePriorityCSV(*csvPath, analysis.PriorityTable); err != nil {
		return err
	}

	return printJSON(struct {
		GeneratedAt string                  `json:"generated_at"`
		Source      string                  `json:"source"`
		Analysis    string                  `json:"analysis"`
		PriorityCSV string                  `json:"priority_csv"`
		Counts      priority.AnalysisCounts `json:"counts"`
		TableRows   int                     `json:"priority_table_rows"`
	}{
		GeneratedAt: analysis.GeneratedAt,
		Source:      analysis.Source,
		Analysis:    jsonio.RelOrAbs(*outPath),
		PriorityCSV: jsonio.RelOrAbs(*csvPath),
		Counts:      analysis.Counts,
		TableRows:   len(analysis.PriorityTable),
	})
}

func runPlan(args []string) error {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.json (default: ./config.json)")
	manifestPath := fs.String("manifest", "", "Benchmark manifest (default from config)")
	taxonomyPath := fs.String("taxonomy", "", "Taxonomy JSON (default from config)")
	outPath := fs.String("out", "", "Where to write the plan JSON (default: next to manifest)")
	topN := fs.Int("top", 50, "Candidates surfaced in top_candidates")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *manifestPath == "" {
		*manifestPath = cfg.ManifestPath
	}
	if *taxonomyPath == "" {
		*taxonomyPath = cfg.TaxonomyPath
	}
	if *outPath == "" {
		*outPath = filepath.Join(filepath.Dir(*manifestPath), "labeling-priorities.json")
	}

	m, err := manifest.Load(*manifestPath)
	if err != nil {
		return err
	}
	taxonomy, err := priority.LoadTaxonomy(*taxonomyPath)
	if err != nil {
		return err
	}

	report := priority.PlanTodo(m, taxonomy, *topN)
	report.GeneratedAt = nowStamp()
	report.Inputs = priority.PlanInputs{
		Taxonomy: jsonio.RelOrAbs(*taxonomyPath),
		Manifest: jsonio.RelOrAbs(*manifestPath),
	}

	if err := jsonio.Write(*outPath, report); err != nil {
		return err
	}
	return printJSON(struct {
		GeneratedAt string               `json:"generated_at"`
		Plan        string               `json:"plan"`
		Summary     priority.PlanSummary `json:"summary"`
	}{
		GeneratedAt: report.GeneratedAt,
		Plan:        jsonio.RelOrAbs(*outPath),
		Summary:     report.Summary,
	})
}

func runBatches(args []string) error {
	fs := flag.NewFlagSet("batches", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.json (default: ./config.json)")
	planPath := fs.String("plan", "", "Priority plan JSON produced by the plan command (required)")
	manifestPath := fs.String("manifest", "", "Benchmark manifest (default from config)")
	outDir := fs.String("out-dir", "", "Directory for batch CSVs and plan JSON (default: next to manifest)")
	urgent := fs.Int("urgent", 0, "Urgent batch size (default from config)")
	high := fs.Int("high", 0, "High batch size (default from config)")
	medium := fs.Int("medium", 0, "Medium batch size (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *planPath == "" {
		fs.Usage()
		return errors.New("missing required -plan file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *manifestPath == "" {
		*manifestPath = cfg.ManifestPath
	}
	if *outDir == "" {
		*outDir = filepath.Dir(*manifestPath)
	}
	if *urgent <= 0 {
		*urgent = cfg.Batches.Urgent
	}
	if *high <= 0 {
		*high = cfg.Batches.High
	}
	if *medium <= 0 {
		*medium = cfg.Batches.Medium
	}

	var planReport priority.PlanReport
	if err := jsonio.Read(*planPath, &planReport); err != nil {
		return err
	}
	m, err := manifest.Load(*manifestPath)
	if err != nil {
		return err
	}

	plan := queue.BuildBatches(planReport.AllCandidates, m, queue.BandLimits{
		Urgent: *urgent,
		High:   *high,
		Medium: *medium,
	})
	plan.GeneratedAt = nowStamp()
	plan.Inputs = queue.PlanInputs{
		Priority: jsonio.RelOrAbs(*planPath),
		Manifest: jsonio.RelOrAbs(*manifestPath),
	}

	files := []struct {
		name string
		rows []queue.BatchRow
	}{
		{"batch-urgent.csv", plan.Batches.Urgent},
		{"batch-high.csv", plan.Batches.High},
		{"batch-medium.csv", plan.Batches.Medium},
		{"batch-combined.csv", plan.Batches.Combined},
	}
	for _, file := range files {
		if err := queue.WriteBatchCSV(filepath.Join(*outDir, file.name), file.rows); err != nil {
			return err
		}
	}
	if err := jsonio.Write(filepath.Join(*outDir, "batch-plan.json"), plan); err != nil {
		return err
	}

	return printJSON(struct {
		GeneratedAt string            `json:"generated_at"`
		OutDir      string            `json:"out_dir"`
		Summary     queue.PlanSummary `json:"summary"`
	}{
		GeneratedAt: plan.GeneratedAt,
		OutDir:      jsonio.RelOrAbs(*outDir),
		Summary:     plan.Summary,
	})
}

func runQueue(args []string) error {
	fs := flag.NewFlagSet("queue", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config.json (default: ./config.json)")
	priorityPath := fs.String("priority", "", "Priority table: the analyze CSV or analysis JSON (required)")
	outPath := fs.String("out", "", "Where to write the retraining queue CSV (default: next to priority file)")
	positiveTop := fs.Int("positive-top", 0, "Positive labels drawn from the table (default from config)")
	negativeTop := fs.Int("negative-top", 0, "Hard-negative labels drawn from the table (default from config)")
	variants := fs.Int("variants", 0, "Placeholder rows per selected label (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *priorityPath == "" {
		fs.Usage()
		return errors.New("missing required -priority file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *outPath == "" {
		*outPath = filepath.Join(filepath.Dir(*priorityPath), "retraining-queue.csv")
	}
	if *positiveTop <= 0 {
		*positiveTop = cfg.Queue.PositiveTop
	}
	if *negativeTop <= 0 {
		*negativeTop = cfg.Queue.NegativeTop
	}
	if *variants <= 0 {
		*variants = cfg.Queue.Variants
	}

	var stats []priority.LabelStats
	if strings.EqualFold(filepath.Ext(*priorityPath), ".json") {
		var analysis priority.Analysis
		if err := jsonio.Read(*priorityPath, &analysis); err != nil {
			return err
		}
		stats = analysis.PriorityTable
	} else {
		stats, err = priority.ReadPriorityCSV(*priorityPath)
		if err != nil {
			return err
		}
	}

	rows := queue.BuildRetrainingQueue(stats, *positiveTop, *negativeTop, *variants)
	if err := queue.WriteQueueCSV(*outPath, rows); err != nil {
		return err
	}

	positives, negatives := 0, 0
	for _, row := range rows {
		if row.Source == "retraining_queue" {
			positives++
		} else {
			negatives++
		}
	}
	return printJSON(struct {
		GeneratedAt  string `json:"generated_at"`
		Priority     string `json:"priority"`
		Queue        string `json:"queue"`
		Rows         int    `json:"rows"`
		PositiveRows int    `json:"positive_rows"`
		NegativeRows int    `json:"negative_rows"`
	}{
		GeneratedAt:  nowStamp(),
		Priority:     jsonio.RelOrAbs(*priorityPath),
		Queue:        jsonio.RelOrAbs(*outPath),
		Rows:         len(rows),
		PositiveRows: positives,
		NegativeRows: negatives,
	})
}

func runCompare(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	baselinePath := fs.String("baseline", "", "Baseline results JSON (required)")
	candidatePath := fs.String("candidate", "", "Candidate results JSON (required)")
	outPath := fs.String("out", "", "Where to write the comparison JSON (default: next to candidate)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *baselinePath == "" || *candidatePath == "" {
		fs.Usage()
		return errors.New("both -baseline and -candidate are required")
	}
	if *outPath == "" {
		*outPath = filepath.Join(filepath.Dir(*candidatePath), "comparison.json")
	}

	var baseline, candidate evaluate.Results
	if err := jsonio.Read(*baselinePath, &baseline); err != nil {
		return err
	}
	if err := jsonio.Read(*candidatePath, &candidate); err != nil {
		return err
	}

	comparison := evaluate.Compare(&baseline, &candidate)
	comparison.GeneratedAt = nowStamp()
	comparison.Baseline = jsonio.RelOrAbs(*baselinePath)
	comparison.Candidate = jsonio.RelOrAbs(*candidatePath)

	if err := jsonio.Write(*outPath, comparison); err != nil {
		return err
	}
	return printJSON(comparison)
}

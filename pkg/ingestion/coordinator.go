// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kraklabs/cie-engine/pkg/ledger"
	"github.com/kraklabs/cie-engine/pkg/storage"
)

// Phase names an explicit stage of a Coordinator run. Unlike the single
// opaque Run call it replaces, a Phase transition is an observable event a
// caller can subscribe to.
type Phase string

const (
	PhaseScanning   Phase = "scanning"
	PhaseParsing    Phase = "parsing"
	PhaseExtracting Phase = "extracting"
	PhaseWriting    Phase = "writing"
	PhaseComplete   Phase = "complete"
)

// ProgressEvent reports a Coordinator's advancement through its phases, or
// incremental progress within one (FilesDone/FilesTotal during parsing).
type ProgressEvent struct {
	RunID      string
	Phase      Phase
	FilesDone  int
	FilesTotal int
	Message    string
	At         time.Time
}

// IndexingError records a recoverable or fatal failure attributed to a
// single file and phase. Recoverable errors (a single file failing to
// parse) don't abort the run; a non-recoverable error does.
type IndexingError struct {
	FilePath    string
	Phase       Phase
	Err         error
	Recoverable bool
}

func (e IndexingError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Phase, e.FilePath, e.Err)
}

// Coordinator drives a local ingestion run through five explicit phases,
// optionally streaming ProgressEvents to a caller-supplied channel so a CLI
// progress bar or an interactive client can track an in-flight index
// without polling.
type Coordinator struct {
	config        Config
	logger        *slog.Logger
	repoLoader    *RepoLoader
	parser        CodeParser
	embeddingGen  *EmbeddingGenerator
	backend       *storage.EmbeddedBackend
	writer        *GraphWriter
	checkpointMgr *CheckpointManager
	datalogBuild  *DatalogBuilder
	analyzers     []Analyzer
	changeLog     *ledger.Ledger

	progress chan<- ProgressEvent

	mu     sync.Mutex
	errors []IndexingError
}

// NewCoordinator builds a Coordinator. progress may be nil, in which case
// phase transitions are logged but not published anywhere.
func NewCoordinator(config Config, logger *slog.Logger, progress chan<- ProgressEvent) (*Coordinator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repoLoader := NewRepoLoader(logger)

	var parser CodeParser
	parserMode := config.IngestionConfig.ParserMode
	if parserMode == "" {
		parserMode = ParserModeAuto
	}

	switch parserMode {
	case ParserModeTreeSitter:
		logger.Info("parser.mode", "mode", "treesitter")
		parser = NewTreeSitterParser(logger)
	case ParserModeSimplified:
		logger.Info("parser.mode", "mode", "simplified")
		parser = NewParser(logger)
	case ParserModeAuto:
		tsParser := NewTreeSitterParser(logger)
		if tsParser != nil {
			logger.Info("parser.mode", "mode", "treesitter", "selected_by", "auto")
			parser = tsParser
		} else {
			logger.Info("parser.mode", "mode", "simplified", "selected_by", "auto", "reason", "treesitter_unavailable")
			parser = NewParser(logger)
		}
	default:
		logger.Warn("parser.mode.unknown", "mode", parserMode, "fallback", "treesitter")
		parser = NewTreeSitterParser(logger)
	}

	if config.IngestionConfig.MaxCodeTextBytes > 0 {
		parser.SetMaxCodeTextSize(config.IngestionConfig.MaxCodeTextBytes)
	}

	embeddingProvider, err := CreateEmbeddingProvider(config.IngestionConfig.EmbeddingProvider, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	embeddingGen := NewEmbeddingGenerator(embeddingProvider, config.IngestionConfig.Concurrency.EmbedWorkers, logger)

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		DataDir:             config.IngestionConfig.LocalDataDir,
		Engine:              config.IngestionConfig.LocalEngine,
		ProjectID:           config.ProjectID,
		EmbeddingDimensions: config.IngestionConfig.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create local backend: %w", err)
	}

	if err := backend.EnsureSchema(); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if err := backend.CreateHNSWIndex(0); err != nil {
		logger.Warn("hnsw.index.create.warning", "err", err)
	}

	checkpointMgr := NewCheckpointManager(config.IngestionConfig.CheckpointPath)
	changeLog := ledger.New(backend, ledger.Config{Logger: logger})

	return &Coordinator{
		config:        config,
		logger:        logger,
		repoLoader:    repoLoader,
		parser:        parser,
		embeddingGen:  embeddingGen,
		backend:       backend,
		writer:        NewGraphWriter(backend, 0, 0),
		checkpointMgr: checkpointMgr,
		datalogBuild:  NewDatalogBuilder(),
		analyzers:     DefaultAnalyzers(),
		changeLog:     changeLog,
		progress:      progress,
	}, nil
}

// Ledger exposes the coordinator's change ledger so callers can
// subscribe to graph mutations as they happen.
func (c *Coordinator) Ledger() *ledger.Ledger {
	return c.changeLog
}

// runAnalyzers runs the Coordinator's registered analyzers over functions
// and persists their findings, logging but not failing the run on error:
// a bad regex match shouldn't block an otherwise successful index.
func (c *Coordinator) runAnalyzers(ctx context.Context, functions []FunctionEntity) {
	if len(c.analyzers) == 0 || len(functions) == 0 {
		return
	}
	findings, errs := RunAnalyzers(ctx, c.analyzers, functions)
	for _, e := range errs {
		c.logger.Warn("coordinator.analyzer.error", "err", e)
	}
	if err := WriteFindings(ctx, c.backend, findings); err != nil {
		c.logger.Warn("coordinator.analyzer.write.warning", "err", err)
		return
	}
	c.logger.Info("coordinator.analyzers.complete", "findings", len(findings))
}

// Close drains the change ledger, then releases the backend and
// repository loader. The ledger flushes before the backend closes so no
// buffered entries are lost.
func (c *Coordinator) Close() error {
	var lastErr error
	if c.changeLog != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c.changeLog.Shutdown(shutdownCtx)
		cancel()
	}
	if c.backend != nil {
		if err := c.backend.Close(); err != nil {
			lastErr = err
		}
	}
	if c.repoLoader != nil {
		if err := c.repoLoader.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Backend returns the underlying storage backend.
func (c *Coordinator) Backend() *storage.EmbeddedBackend {
	return c.backend
}

// Errors returns the IndexingErrors accumulated by the most recent Run.
func (c *Coordinator) Errors() []IndexingError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]IndexingError, len(c.errors))
	copy(out, c.errors)
	return out
}

func (c *Coordinator) recordError(ie IndexingError) {
	c.mu.Lock()
	c.errors = append(c.errors, ie)
	c.mu.Unlock()
}

func (c *Coordinator) emit(ev ProgressEvent) {
	if c.progress == nil {
		return
	}
	select {
	case c.progress <- ev:
	default:
		// A full channel means nobody is listening closely enough to
		// block the run over; drop the event rather than stall ingestion.
	}
}

func (c *Coordinator) generateRunID(startTime time.Time) string {
	roundedTime := startTime.Truncate(time.Second)
	baseID := fmt.Sprintf("run-%s-%d", c.config.ProjectID, roundedTime.Unix())
	hash := sha256.Sum256([]byte(baseID))
	return hex.EncodeToString(hash[:16])
}

// writeUsesTypes resolves the batch's type references against the
// extracted types and persists the resulting USES_TYPE edges. Failures
// warn rather than fail the run: the core graph is already committed.
func (c *Coordinator) writeUsesTypes(ctx context.Context, refs []UnresolvedTypeRef, types []TypeEntity) {
	if len(refs) == 0 {
		return
	}
	edges, unresolved := ResolveTypeRefs(refs, types)
	if unresolved > 0 {
		c.logger.Debug("coordinator.uses_type.unresolved", "count", unresolved)
	}
	if err := c.writer.WriteUsesTypes(ctx, edges); err != nil {
		c.logger.Warn("coordinator.uses_type.write.warning", "err", err)
		return
	}
	if len(edges) > 0 {
		c.logger.Info("coordinator.uses_type.resolved", "edges", len(edges), "unresolved", unresolved)
	}
}

// saveCheckpoint persists a post-run summary. Failures are logged, not
// fatal: the store already has the real data.
func (c *Coordinator) saveCheckpoint(result *IngestionResult, startTime time.Time) {
	cp := &Checkpoint{
		ProjectID:          result.ProjectID,
		RunID:              result.RunID,
		FilesProcessed:     result.FilesProcessed,
		FunctionsExtracted: result.FunctionsExtracted,
		TypesExtracted:     result.TypesExtracted,
		BatchesSent:        int(result.LastCommittedIndex),
		StartTime:          startTime.UTC().Format(time.RFC3339),
		LastUpdateTime:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.checkpointMgr.SaveCheckpoint(cp); err != nil {
		c.logger.Warn("coordinator.checkpoint.save.warning", "err", err)
	}
}

// Run executes a full ingestion pass through PhaseScanning, PhaseParsing,
// PhaseExtracting (cross-package call resolution and embeddings),
// PhaseWriting, and PhaseComplete, in order.
func (c *Coordinator) Run(ctx context.Context) (*IngestionResult, error) {
	startTime := time.Now()
	runID := c.generateRunID(startTime)
	c.mu.Lock()
	c.errors = nil
	c.mu.Unlock()

	c.logger.Info("coordinator.run.start", "project_id", c.config.ProjectID, "run_id", runID)
	recordRunStarted()
	c.changeLog.Start(ctx)
	c.changeLog.Append("index.run.start", runID, "full index")

	c.emit(ProgressEvent{RunID: runID, Phase: PhaseScanning, Message: "loading repository", At: startTime})
	loadResult, err := c.repoLoader.LoadRepository(
		c.config.RepoSource,
		c.config.IngestionConfig.IncludeGlobs,
		c.config.IngestionConfig.ExcludeGlobs,
		c.config.IngestionConfig.MaxFileSizeBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}

	sort.Slice(loadResult.Files, func(i, j int) bool {
		return loadResult.Files[i].Path < loadResult.Files[j].Path
	})

	c.emit(ProgressEvent{RunID: runID, Phase: PhaseParsing, FilesTotal: len(loadResult.Files), Message: "parsing files", At: time.Now()})
	parseStart := time.Now()

	parseWorkers := c.config.IngestionConfig.Concurrency.ParseWorkers
	if parseWorkers <= 0 {
		parseWorkers = 4
	}

	parseResult, parseErrors := c.parseFilesParallel(ctx, runID, loadResult.Files, parseWorkers)

	parseDuration := time.Since(parseStart)
	codeTextTruncated := c.parser.GetTruncatedCount()

	batch := &parseResult.batch
	allFiles := batch.Files
	allFunctions := batch.Functions
	allTypes := batch.Types
	allDefines := batch.Defines
	allDefinesTypes := batch.DefinesTypes
	allCalls := batch.Calls
	allImports := batch.Imports
	allUnresolvedCalls := batch.UnresolvedCalls
	packageNames := parseResult.packageNames

	c.emit(ProgressEvent{RunID: runID, Phase: PhaseExtracting, Message: "resolving calls and generating embeddings", At: time.Now()})

	resolver := NewCallResolver()
	if len(allUnresolvedCalls) > 0 {
		resolver.BuildIndex(allFiles, allFunctions, allImports, packageNames)
		resolvedCalls := resolver.ResolveCalls(allUnresolvedCalls)
		allCalls = append(allCalls, resolvedCalls...)

		c.logger.Info("coordinator.calls.resolved",
			"local_calls", len(allCalls)-len(resolvedCalls),
			"cross_package_resolved", len(resolvedCalls),
			"ghost_nodes", resolver.Ghosts().Len(),
		)
	}

	parseErrorRate := 0.0
	if len(loadResult.Files) > 0 {
		parseErrorRate = float64(parseErrors) / float64(len(loadResult.Files)) * 100.0
	}

	c.logger.Info("coordinator.parse.complete",
		"files", len(allFiles),
		"functions", len(allFunctions),
		"types", len(allTypes),
		"defines", len(allDefines),
		"calls", len(allCalls),
		"parse_errors", parseErrors,
		"code_text_truncated", codeTextTruncated,
		"duration_ms", parseDuration.Milliseconds(),
	)

	embedStart := time.Now()
	embedResult, err := c.embeddingGen.EmbedFunctions(ctx, allFunctions)
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}
	allFunctions = embedResult.Functions
	embeddingErrors := embedResult.ErrorCount

	if len(allTypes) > 0 {
		typeEmbedResult, err := c.embeddingGen.EmbedTypes(ctx, allTypes)
		if err != nil {
			return nil, fmt.Errorf("generate type embeddings: %w", err)
		}
		allTypes = typeEmbedResult.Types
		embeddingErrors += typeEmbedResult.ErrorCount
	}
	embedDuration := time.Since(embedStart)

	if err := ValidateEntities(allFiles, allFunctions, allDefines, allCalls); err != nil {
		return nil, fmt.Errorf("entity validation failed: %w", err)
	}

	c.runAnalyzers(ctx, allFunctions)

	c.emit(ProgressEvent{RunID: runID, Phase: PhaseWriting, Message: "writing to storage", At: time.Now()})
	writeStart := time.Now()

	writeRes, err := c.writer.WriteFull(ctx, allFiles, allFunctions, allTypes, allDefines, allDefinesTypes, allCalls, allImports)
	if err != nil {
		return nil, fmt.Errorf("write to local db: %w", err)
	}
	if err := c.writer.WriteGhosts(ctx, resolver.Ghosts().Nodes()); err != nil {
		c.logger.Warn("coordinator.ghosts.write.warning", "err", err)
	}
	c.writeUsesTypes(ctx, batch.UnresolvedTypeRefs, allTypes)

	writeDuration := time.Since(writeStart)
	totalDuration := time.Since(startTime)
	recordRunCompleted(parseDuration.Seconds(), embedDuration.Seconds(), writeDuration.Seconds(), totalDuration.Seconds())

	entitiesSent := len(allFiles) + len(allFunctions) + len(allTypes) +
		len(allDefines) + len(allDefinesTypes) + len(allCalls) + len(allImports)

	result := &IngestionResult{
		ProjectID:          c.config.ProjectID,
		RunID:              runID,
		FilesProcessed:     len(allFiles),
		FunctionsExtracted: len(allFunctions),
		TypesExtracted:     len(allTypes),
		DefinesEdges:       len(allDefines),
		CallsEdges:         len(allCalls),
		EntitiesSent:       entitiesSent,
		EntitiesRetried:    0,
		LastCommittedIndex: uint64(writeRes.BatchesExecuted),
		ParseErrors:        parseErrors,
		ParseErrorRate:     parseErrorRate,
		EmbeddingErrors:    embeddingErrors,
		CodeTextTruncated:  codeTextTruncated,
		TopSkipReasons:     loadResult.SkipReasons,
		ParseDuration:      parseDuration,
		EmbedDuration:      embedDuration,
		WriteDuration:      writeDuration,
		TotalDuration:      totalDuration,
	}

	c.changeLog.Append("index.run.complete", runID,
		fmt.Sprintf("%d files, %d functions, %d types", result.FilesProcessed, result.FunctionsExtracted, result.TypesExtracted))
	c.emit(ProgressEvent{RunID: runID, Phase: PhaseComplete, FilesDone: result.FilesProcessed, FilesTotal: result.FilesProcessed, Message: "ingestion complete", At: time.Now()})

	c.logger.Info("coordinator.run.complete",
		"project_id", c.config.ProjectID,
		"run_id", runID,
		"files", result.FilesProcessed,
		"functions", result.FunctionsExtracted,
		"types", result.TypesExtracted,
		"entities_written", result.EntitiesSent,
		"parse_errors", result.ParseErrors,
		"embedding_errors", result.EmbeddingErrors,
		"total_duration_ms", result.TotalDuration.Milliseconds(),
	)
	c.saveCheckpoint(result, startTime)

	return result, nil
}

// RunIncremental scans the repository, classifies every file against what's
// already stored via an IncrementalUpdater, and only re-parses and
// re-embeds files that are new or changed. Unchanged files are skipped
// entirely; stale rows belonging to modified or deleted files are removed
// before their replacements (if any) are written.
func (c *Coordinator) RunIncremental(ctx context.Context) (*IngestionResult, error) {
	startTime := time.Now()
	runID := c.generateRunID(startTime)
	c.mu.Lock()
	c.errors = nil
	c.mu.Unlock()

	c.logger.Info("coordinator.incremental.start", "project_id", c.config.ProjectID, "run_id", runID)
	recordRunStarted()
	c.changeLog.Start(ctx)
	c.changeLog.Append("index.run.start", runID, "incremental index")

	c.emit(ProgressEvent{RunID: runID, Phase: PhaseScanning, Message: "loading repository", At: startTime})
	loadResult, err := c.repoLoader.LoadRepository(
		c.config.RepoSource,
		c.config.IngestionConfig.IncludeGlobs,
		c.config.IngestionConfig.ExcludeGlobs,
		c.config.IngestionConfig.MaxFileSizeBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}

	updater := NewIncrementalUpdater(c.backend)
	changes, err := updater.Classify(ctx, loadResult.Files)
	if err != nil {
		return nil, fmt.Errorf("classify changes: %w", err)
	}

	toParse := append(append([]FileInfo{}, changes.Added...), changes.Modified...)
	sort.Slice(toParse, func(i, j int) bool { return toParse[i].Path < toParse[j].Path })

	c.logger.Info("coordinator.incremental.classified",
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"unchanged", len(changes.Unchanged),
		"deleted", len(changes.Deleted),
	)
	for _, path := range changes.Deleted {
		c.changeLog.Append("file.deleted", path, "removed from working tree")
	}

	staleFilePaths := make([]string, 0, len(changes.Modified)+len(changes.Deleted))
	for _, f := range changes.Modified {
		staleFilePaths = append(staleFilePaths, f.Path)
	}
	staleFilePaths = append(staleFilePaths, changes.Deleted...)

	deletions, err := updater.BuildDeletionSet(ctx, staleFilePaths)
	if err != nil {
		return nil, fmt.Errorf("build deletion set: %w", err)
	}

	c.emit(ProgressEvent{RunID: runID, Phase: PhaseParsing, FilesTotal: len(toParse), Message: "parsing changed files", At: time.Now()})
	parseStart := time.Now()

	parseWorkers := c.config.IngestionConfig.Concurrency.ParseWorkers
	if parseWorkers <= 0 {
		parseWorkers = 4
	}
	parseResult, parseErrors := c.parseFilesParallel(ctx, runID, toParse, parseWorkers)
	parseDuration := time.Since(parseStart)
	codeTextTruncated := c.parser.GetTruncatedCount()

	c.emit(ProgressEvent{RunID: runID, Phase: PhaseExtracting, Message: "resolving calls and generating embeddings", At: time.Now()})

	batch := &parseResult.batch
	resolver := NewCallResolver()
	allCalls := batch.Calls
	if len(batch.UnresolvedCalls) > 0 {
		resolver.BuildIndex(batch.Files, batch.Functions, batch.Imports, parseResult.packageNames)
		resolvedCalls := resolver.ResolveCalls(batch.UnresolvedCalls)
		allCalls = append(allCalls, resolvedCalls...)
	}

	embedStart := time.Now()
	embedResult, err := c.embeddingGen.EmbedFunctions(ctx, batch.Functions)
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}
	functions := embedResult.Functions
	embeddingErrors := embedResult.ErrorCount

	types := batch.Types
	if len(types) > 0 {
		typeEmbedResult, err := c.embeddingGen.EmbedTypes(ctx, types)
		if err != nil {
			return nil, fmt.Errorf("generate type embeddings: %w", err)
		}
		types = typeEmbedResult.Types
		embeddingErrors += typeEmbedResult.ErrorCount
	}
	embedDuration := time.Since(embedStart)

	if err := ValidateEntities(batch.Files, functions, batch.Defines, allCalls); err != nil {
		return nil, fmt.Errorf("entity validation failed: %w", err)
	}

	c.runAnalyzers(ctx, functions)

	c.emit(ProgressEvent{RunID: runID, Phase: PhaseWriting, Message: "writing changes to storage", At: time.Now()})
	writeStart := time.Now()

	writeRes, err := c.writer.WriteIncremental(ctx, deletions, batch.Files, functions, types, batch.Defines, batch.DefinesTypes, allCalls, batch.Imports)
	if err != nil {
		return nil, fmt.Errorf("write incremental changes: %w", err)
	}
	if err := c.writer.WriteGhosts(ctx, resolver.Ghosts().Nodes()); err != nil {
		c.logger.Warn("coordinator.ghosts.write.warning", "err", err)
	}
	c.writeUsesTypes(ctx, batch.UnresolvedTypeRefs, types)

	writeDuration := time.Since(writeStart)
	totalDuration := time.Since(startTime)
	recordRunCompleted(parseDuration.Seconds(), embedDuration.Seconds(), writeDuration.Seconds(), totalDuration.Seconds())

	parseErrorRate := 0.0
	if len(toParse) > 0 {
		parseErrorRate = float64(parseErrors) / float64(len(toParse)) * 100.0
	}

	result := &IngestionResult{
		ProjectID:          c.config.ProjectID,
		RunID:              runID,
		FilesProcessed:     len(toParse),
		FunctionsExtracted: len(functions),
		TypesExtracted:     len(types),
		DefinesEdges:       len(batch.Defines),
		CallsEdges:         len(allCalls),
		EntitiesSent:       writeRes.Stats.FilesWritten + writeRes.Stats.FunctionsWritten + writeRes.Stats.TypesWritten,
		LastCommittedIndex: uint64(writeRes.BatchesExecuted),
		ParseErrors:        parseErrors,
		ParseErrorRate:     parseErrorRate,
		EmbeddingErrors:    embeddingErrors,
		CodeTextTruncated:  codeTextTruncated,
		TopSkipReasons:     loadResult.SkipReasons,
		ParseDuration:      parseDuration,
		EmbedDuration:      embedDuration,
		WriteDuration:      writeDuration,
		TotalDuration:      totalDuration,
	}

	c.changeLog.Append("index.run.complete", runID,
		fmt.Sprintf("%d added, %d modified, %d deleted", len(changes.Added), len(changes.Modified), len(changes.Deleted)))
	c.emit(ProgressEvent{RunID: runID, Phase: PhaseComplete, FilesDone: result.FilesProcessed, FilesTotal: result.FilesProcessed, Message: "incremental ingestion complete", At: time.Now()})

	c.logger.Info("coordinator.incremental.complete",
		"project_id", c.config.ProjectID,
		"run_id", runID,
		"files_processed", result.FilesProcessed,
		"deleted_files", len(changes.Deleted),
		"total_duration_ms", result.TotalDuration.Milliseconds(),
	)
	c.saveCheckpoint(result, startTime)

	return result, nil
}

// parseFilesParallel parses files in parallel using a worker pool, recording
// a recoverable IndexingError for each file that fails to parse rather than
// aborting the run.
func (c *Coordinator) parseFilesParallel(ctx context.Context, runID string, files []FileInfo, numWorkers int) (*parseFilesResult, int) {
	if len(files) == 0 {
		return &parseFilesResult{packageNames: make(map[string]string)}, 0
	}

	if len(files) < 10 || numWorkers <= 1 {
		return c.parseFilesSequential(ctx, files)
	}

	jobs := make(chan int, len(files))

	type fileResult struct {
		index       int
		result      *ParseResult
		err         error
		packageName string
		filePath    string
	}
	resultsChan := make(chan fileResult, len(files))

	var errorCount int32
	var done int32

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				fileInfo := files[i]
				pr, err := c.parser.ParseFile(fileInfo)
				if err != nil {
					atomic.AddInt32(&errorCount, 1)
					c.logger.Warn("coordinator.parse_file.error", "path", fileInfo.Path, "err", err)
					c.recordError(IndexingError{FilePath: fileInfo.Path, Phase: PhaseParsing, Err: err, Recoverable: true})
					resultsChan <- fileResult{index: i, err: err, filePath: fileInfo.Path}
					continue
				}

				resultsChan <- fileResult{
					index:       i,
					result:      pr,
					packageName: pr.PackageName,
					filePath:    fileInfo.Path,
				}
				n := atomic.AddInt32(&done, 1)
				if n%50 == 0 {
					c.emit(ProgressEvent{RunID: runID, Phase: PhaseParsing, FilesDone: int(n), FilesTotal: len(files), At: time.Now()})
				}
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	parseResults := make([]*ParseResult, len(files))
	packageNames := make(map[string]string)
	var mu sync.Mutex

	for fr := range resultsChan {
		if fr.err != nil {
			continue
		}
		parseResults[fr.index] = fr.result
		if fr.packageName != "" {
			mu.Lock()
			packageNames[fr.filePath] = fr.packageName
			mu.Unlock()
		}
	}

	result := &parseFilesResult{
		packageNames: packageNames,
	}
	for _, pr := range parseResults {
		if pr == nil {
			continue
		}
		result.batch.Append(pr)
	}

	return result, int(errorCount)
}

// parseFilesSequential parses files sequentially (small file sets).
func (c *Coordinator) parseFilesSequential(ctx context.Context, files []FileInfo) (*parseFilesResult, int) {
	result := &parseFilesResult{
		packageNames: make(map[string]string),
	}
	errorCount := 0

	for _, fileInfo := range files {
		select {
		case <-ctx.Done():
			return result, errorCount
		default:
		}

		pr, err := c.parser.ParseFile(fileInfo)
		if err != nil {
			errorCount++
			c.logger.Warn("coordinator.parse_file.error", "path", fileInfo.Path, "err", err)
			c.recordError(IndexingError{FilePath: fileInfo.Path, Phase: PhaseParsing, Err: err, Recoverable: true})
			continue
		}

		result.batch.Append(pr)
		if pr.PackageName != "" {
			result.packageNames[fileInfo.Path] = pr.PackageName
		}
	}

	return result, errorCount
}

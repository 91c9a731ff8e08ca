// Package results records what each pipeline run did: its status, the stage
// it reached, the figures it wrote and where the translated PDF ended up.
package results

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdf-translator/internal/types"
)

// RunStatus represents the status of a run
type RunStatus string

const (
	// StatusRunning indicates the run has started and not finished
	StatusRunning RunStatus = "running"
	// StatusComplete indicates the translated PDF was produced
	StatusComplete RunStatus = "complete"
	// StatusError indicates a stage failed
	StatusError RunStatus = "error"
)

// Stage names a pipeline stage
type Stage string

const (
	StageValidate  Stage = "validate"  // input checks
	StageMetadata  Stage = "metadata"  // figure metadata extraction
	StageFigures   Stage = "figures"   // figure rendering
	StageGenerate  Stage = "generate"  // AI translation
	StageCompile   Stage = "compile"   // LaTeX compilation
	StageCompleted Stage = "completed" // all stages done
)

// RecordSuffix is appended to the input stem to name the record file
const RecordSuffix = ".run.json"

// RunRecord is the manifest written next to the output of one run
type RunRecord struct {
	ID           string                 `json:"id"`
	Input        string                 `json:"input"`
	SourceMD5    string                 `json:"source_md5,omitempty"`
	PageCount    int                    `json:"page_count,omitempty"`
	Status       RunStatus              `json:"status"`
	Stage        Stage                  `json:"stage"`
	MetadataJSON string                 `json:"metadata_json,omitempty"`
	Figures      []string               `json:"figures,omitempty"`
	Warnings     []types.StagingWarning `json:"warnings,omitempty"`
	DebugTex     string                 `json:"debug_tex,omitempty"`
	OutputPDF    string                 `json:"output_pdf,omitempty"`
	OutputPages  int                    `json:"output_pages,omitempty"`
	ErrorCode    types.ErrorCode        `json:"error_code,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	PreviousRun  string                 `json:"previous_run,omitempty"`
	StartedAt    time.Time              `json:"started_at"`
	FinishedAt   time.Time              `json:"finished_at,omitempty"`
}

// NewRunRecord starts a record for input with a fresh run ID
func NewRunRecord(input string) *RunRecord {
	return &RunRecord{
		ID:        uuid.NewString(),
		Input:     input,
		Status:    StatusRunning,
		Stage:     StageValidate,
		StartedAt: time.Now(),
	}
}

// Enter marks the start of a stage
func (r *RunRecord) Enter(stage Stage) {
	r.Stage = stage
}

// AddWarning appends a non-fatal problem
func (r *RunRecord) AddWarning(resource, message string) {
	r.Warnings = append(r.Warnings, types.StagingWarning{Resource: resource, Message: message})
}

// Complete marks the run successful
func (r *RunRecord) Complete(outputPDF string) {
	r.Status = StatusComplete
	r.Stage = StageCompleted
	r.OutputPDF = outputPDF
	r.ErrorCode = ""
	r.ErrorMessage = ""
	r.FinishedAt = time.Now()
}

// Fail marks the run failed at the current stage
func (r *RunRecord) Fail(err error) {
	r.Status = StatusError
	r.ErrorCode = types.CodeOf(err)
	if err != nil {
		r.ErrorMessage = err.Error()
	}
	r.FinishedAt = time.Now()
}

// Duration is how long the run took, or has taken so far
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ResultManager stores run records in a directory
type ResultManager struct {
	baseDir string
}

// NewResultManager creates a ResultManager rooted at baseDir, creating it if needed
func NewResultManager(baseDir string) (*ResultManager, error) {
	if baseDir == "" {
		baseDir = "."
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrInternal, "failed to create results directory", baseDir, err)
	}
	return &ResultManager{baseDir: baseDir}, nil
}

// GetBaseDir returns the directory records are stored in
func (m *ResultManager) GetBaseDir() string {
	return m.baseDir
}

// RecordPath returns where the record for input is stored
func (m *ResultManager) RecordPath(input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(m.baseDir, stem+RecordSuffix)
}

// Save writes the record as indented JSON
func (m *ResultManager) Save(r *RunRecord) (string, error) {
	path := m.RecordPath(r.Input)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", types.NewAppError(types.ErrInternal, "failed to encode run record", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", types.NewAppErrorWithDetails(types.ErrInternal, "failed to write run record", path, err)
	}
	return path, nil
}

// LoadRecord reads a record file
func LoadRecord(path string) (*RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "run record not found", path, err)
		}
		return nil, types.NewAppError(types.ErrInternal, "failed to read run record", err)
	}

	var r RunRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "malformed run record", path, err)
	}
	return &r, nil
}

// List returns all records in the directory, newest first. Unreadable files are skipped.
func (m *ResultManager) List() ([]*RunRecord, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*RunRecord{}, nil
		}
		return nil, types.NewAppError(types.ErrInternal, "failed to list run records", err)
	}

	records := []*RunRecord{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), RecordSuffix) {
			continue
		}
		r, err := LoadRecord(filepath.Join(m.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		records = append(records, r)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	return records, nil
}

// FindByMD5 returns the newest record whose source matches md5Hash and, when
// status is not empty, whose status matches too. It returns nil when none does.
func (m *ResultManager) FindByMD5(md5Hash string, status RunStatus) (*RunRecord, error) {
	records, err := m.List()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.SourceMD5 != md5Hash {
			continue
		}
		if status == "" || r.Status == status {
			return r, nil
		}
	}
	return nil, nil
}

// CalculateFileMD5 calculates the MD5 hash of a file
func CalculateFileMD5(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/revops-ai/relay/pkg/config"
	"github.com/revops-ai/relay/pkg/models"
)

// Artifact file names written for every conversation.
const (
	artifactConversationJSON = "conversation.json"
	artifactConversationText = "conversation.txt"
	artifactAnalysis         = "analysis.json"
	artifactMetadata         = "metadata.json"
	artifactTraces           = "traces.json"
)

// Masker redacts sensitive content from serialized artifacts before they
// leave the process.
type Masker interface {
	Mask(text string) string
}

// Exporter assembles the conversation record for a finished session and
// writes all artifact formats to the object store. It satisfies the agent
// package's exporter contract.
type Exporter struct {
	store  ObjectStore
	cfg    *config.ObjectStoreConfig
	masker Masker
	logger *slog.Logger
	now    func() time.Time
}

// NewExporter wires an exporter. masker may be nil to disable redaction.
func NewExporter(store ObjectStore, cfg *config.ObjectStoreConfig, masker Masker, logger *slog.Logger) *Exporter {
	return &Exporter{
		store:  store,
		cfg:    cfg,
		masker: masker,
		logger: logger.With("component", "recorder"),
		now:    time.Now,
	}
}

// Export builds the record and writes every artifact. All artifacts are
// attempted even when one fails; the joined error is returned so callers can
// surface the data loss.
func (e *Exporter) Export(ctx context.Context, result *models.SessionResult) error {
	record := BuildRecord(result)
	exportedAt := e.now().UTC()
	dir := e.objectDir(record, exportedAt)

	artifacts, err := e.renderArtifacts(record, exportedAt)
	if err != nil {
		return fmt.Errorf("rendering artifacts for %s: %w", record.ConversationID, err)
	}

	var errs []error
	for _, art := range artifacts {
		key := dir + "/" + art.name
		writeCtx, cancel := context.WithTimeout(ctx, e.cfg.WriteTimeout)
		err := e.store.Put(writeCtx, key, art.body, art.contentType,
			e.objectMetadata(record, art, exportedAt))
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", art.name, err))
			continue
		}
		e.logger.Debug("artifact exported",
			"conversation_id", record.ConversationID,
			"key", key,
			"size_bytes", len(art.body))
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		e.logger.Error("ALERT: conversation export incomplete, record data lost",
			"conversation_id", record.ConversationID,
			"failed_artifacts", len(errs),
			"error", err)
		return err
	}

	e.logger.Info("conversation exported",
		"conversation_id", record.ConversationID,
		"key_prefix", dir,
		"artifacts", len(artifacts))
	return nil
}

// objectDir returns the date-partitioned directory for a record. Including
// the conversation id in the leaf makes re-exports overwrite in place.
func (e *Exporter) objectDir(record *models.ConversationRecord, exportedAt time.Time) string {
	return fmt.Sprintf("%s/%s/%s_%s",
		e.cfg.Prefix,
		exportedAt.Format("2006/01/02"),
		exportedAt.Format("20060102T150405Z"),
		record.ConversationID)
}

type artifact struct {
	name        string
	contentType string
	format      string
	body        []byte
}

func (e *Exporter) renderArtifacts(record *models.ConversationRecord, exportedAt time.Time) ([]artifact, error) {
	conversationJSON, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling record: %w", err)
	}
	analysisJSON, err := json.MarshalIndent(buildAnalysis(record), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling analysis: %w", err)
	}
	metadataJSON, err := json.MarshalIndent(buildMetadata(record, exportedAt), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	tracesJSON, err := json.MarshalIndent(record.TraceEvents, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling traces: %w", err)
	}

	artifacts := []artifact{
		{artifactConversationJSON, "application/json", "json", e.mask(conversationJSON)},
		{artifactConversationText, "text/plain; charset=utf-8", "text", e.mask(renderText(record))},
		{artifactAnalysis, "application/json", "analysis", e.mask(analysisJSON)},
		{artifactMetadata, "application/json", "metadata", metadataJSON},
		{artifactTraces, "application/json", "traces", e.mask(tracesJSON)},
	}
	return artifacts, nil
}

func (e *Exporter) mask(body []byte) []byte {
	if e.masker == nil {
		return body
	}
	return []byte(e.masker.Mask(string(body)))
}

func (e *Exporter) objectMetadata(record *models.ConversationRecord, art artifact, exportedAt time.Time) map[string]string {
	return map[string]string{
		"conversation-id": record.ConversationID,
		"exported-at":     exportedAt.Format(time.RFC3339),
		"format":          art.format,
		"channel":         record.Channel,
		"source-system":   record.SourceSystem,
		"size-bytes":      strconv.Itoa(len(art.body)),
	}
}

// analysisDocument is the reduced analytical view written as analysis.json:
// everything an analyst needs without the full transcript.
type analysisDocument struct {
	ConversationID   string                     `json:"conversation_id"`
	Success          bool                       `json:"success"`
	Quality          models.QualitySignals      `json:"quality"`
	FunctionAudit    models.FunctionAudit       `json:"function_audit"`
	CollaborationMap []models.CollaborationEdge `json:"collaboration_map,omitempty"`
	Agents           []agentSummary             `json:"agents"`
}

type agentSummary struct {
	AgentName             string  `json:"agent_name"`
	AttributionConfidence float64 `json:"attribution_confidence"`
	LowConfidence         bool    `json:"low_confidence,omitempty"`
	ToolCount             int     `json:"tool_count"`
	DataOperations        int     `json:"data_operations"`
	DurationMS            int64   `json:"duration_ms"`
}

func buildAnalysis(record *models.ConversationRecord) analysisDocument {
	doc := analysisDocument{
		ConversationID:   record.ConversationID,
		Success:          record.Success,
		Quality:          record.Quality,
		FunctionAudit:    record.FunctionAudit,
		CollaborationMap: record.CollaborationMap,
		Agents:           make([]agentSummary, 0, len(record.AgentFlow)),
	}
	for _, step := range record.AgentFlow {
		doc.Agents = append(doc.Agents, agentSummary{
			AgentName:             step.AgentName,
			AttributionConfidence: step.AttributionConfidence,
			LowConfidence:         step.LowConfidence,
			ToolCount:             len(step.ToolsUsed),
			DataOperations:        step.DataOperations,
			DurationMS:            step.EndedAt.Sub(step.StartedAt).Milliseconds(),
		})
	}
	return doc
}

// exportMetadata indexes one export without any conversation content, so it
// stays readable even under aggressive masking policies.
type exportMetadata struct {
	ConversationID      string    `json:"conversation_id"`
	SessionID           string    `json:"session_id"`
	Channel             string    `json:"channel"`
	StartedAt           time.Time `json:"started_at"`
	EndedAt             time.Time `json:"ended_at"`
	DurationMS          int64     `json:"duration_ms"`
	Success             bool      `json:"success"`
	UserQueryConfidence float64   `json:"user_query_confidence"`
	StepCount           int       `json:"step_count"`
	ExportedAt          time.Time `json:"exported_at"`
	Artifacts           []string  `json:"artifacts"`
}

func buildMetadata(record *models.ConversationRecord, exportedAt time.Time) exportMetadata {
	return exportMetadata{
		ConversationID:      record.ConversationID,
		SessionID:           record.SessionID,
		Channel:             record.Channel,
		StartedAt:           record.StartedAt,
		EndedAt:             record.EndedAt,
		DurationMS:          record.DurationMS,
		Success:             record.Success,
		UserQueryConfidence: record.UserQueryConfidence,
		StepCount:           len(record.AgentFlow),
		ExportedAt:          exportedAt,
		Artifacts: []string{
			artifactConversationJSON,
			artifactConversationText,
			artifactAnalysis,
			artifactMetadata,
			artifactTraces,
		},
	}
}

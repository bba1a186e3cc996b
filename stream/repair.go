// Package stream provides a DynamoDB Streams handler that repairs the
// tracking hierarchy after partial cascade deletes. Cascades commit stage by
// stage, so a crash between stages can leave children pointing at a record
// that no longer exists; the handler watches for REMOVE events and sweeps
// those orphans.
package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/gantry/track"
)

// Handler processes DynamoDB stream events for orphan repair.
type Handler struct {
	registry *track.Registry
	rels     *Relationships
	logger   *slog.Logger
}

// NewHandler creates a new stream handler. A nil rels falls back to
// DefaultRelationships.
func NewHandler(registry *track.Registry, rels *Relationships, logger *slog.Logger) *Handler {
	if rels == nil {
		rels = DefaultRelationships()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		rels:     rels,
		logger:   logger,
	}
}

// HandleRemove processes DynamoDB stream events to sweep children of removed
// records. This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleRemove(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	entityType := track.EntityType(getStringAttr(record.Change.OldImage, "entity_type"))
	id := getStringAttr(record.Change.OldImage, "id")
	if entityType == "" || id == "" {
		return nil
	}

	deps := h.rels.Of(entityType)
	if len(deps) == 0 && entityType != track.TypeProject {
		return nil
	}

	h.logger.Info("repairing after remove",
		"entityType", entityType,
		"id", id,
	)

	swept := 0
	for _, dep := range deps {
		ctrl, err := h.registry.Get(dep.Child)
		if err != nil {
			return fmt.Errorf("resolve %s controller: %w", dep.Child, err)
		}
		var n int
		switch dep.Scope {
		case ByRoot:
			n, err = ctrl.DeleteByRoot(ctx, id)
		default:
			n, err = ctrl.DeleteByParent(ctx, id)
		}
		if err != nil {
			return fmt.Errorf("sweep %s of %s %s: %w", dep.Child, entityType, id, err)
		}
		swept += n
	}

	// A removed project takes its issue counter with it.
	if entityType == track.TypeProject {
		if err := h.registry.Sequence().Remove(ctx, id); err != nil {
			h.logger.Warn("failed to remove issue counter",
				"projectId", id,
				"error", err,
			)
		}
	}

	h.logger.Info("repair completed",
		"entityType", entityType,
		"id", id,
		"orphansSwept", swept,
	)

	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok {
		return v.String()
	}
	return ""
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"

	"go.uber.org/zap"
)

// DetectionEventsRepository 检测事件仓库（detection_events 表）
type DetectionEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDetectionEventsRepository 创建检测事件仓库
func NewDetectionEventsRepository(db *sql.DB, logger *zap.Logger) *DetectionEventsRepository {
	return &DetectionEventsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateDetectionEvent 写入检测事件记录（审计用，报警被抑制时也写入）
func (r *DetectionEventsRepository) CreateDetectionEvent(ctx context.Context, event *models.DetectionEvent) error {
	if event.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if event.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	query := `
		INSERT INTO detection_events (
			event_id,
			user_id,
			camera_id,
			event_type,
			confidence,
			consensus_score,
			frame_ref,
			lifecycle,
			detected_at,
			metadata,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
	`

	metadata := event.Metadata
	if metadata == "" {
		metadata = "{}"
	}

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.UserID,
		event.CameraID,
		event.EventType,
		event.Confidence,
		event.ConsensusScore,
		event.FrameRef,
		event.Lifecycle,
		event.DetectedAt,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection event: %w", err)
	}

	return nil
}

// GetDetectionEvent 根据 event_id 获取检测事件
func (r *DetectionEventsRepository) GetDetectionEvent(ctx context.Context, eventID string) (*models.DetectionEvent, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required")
	}

	query := `
		SELECT
			event_id,
			user_id,
			camera_id,
			event_type,
			confidence,
			consensus_score,
			frame_ref,
			lifecycle,
			detected_at,
			metadata,
			created_at
		FROM detection_events
		WHERE event_id = $1
	`

	var event models.DetectionEvent
	var frameRef sql.NullString

	err := r.db.QueryRowContext(ctx, query, eventID).Scan(
		&event.EventID,
		&event.UserID,
		&event.CameraID,
		&event.EventType,
		&event.Confidence,
		&event.ConsensusScore,
		&frameRef,
		&event.Lifecycle,
		&event.DetectedAt,
		&event.Metadata,
		&event.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("detection event not found: %s", eventID)
		}
		return nil, fmt.Errorf("failed to get detection event: %w", err)
	}

	if frameRef.Valid {
		event.FrameRef = frameRef.String
	}

	return &event, nil
}

// GetActivatedEvents 查询处于 ALARM_ACTIVATED 状态的事件
// 降级轮询模式使用，替代 LISTEN/NOTIFY
func (r *DetectionEventsRepository) GetActivatedEvents(ctx context.Context, limit int) ([]models.DetectionEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT
			event_id,
			user_id,
			camera_id,
			event_type,
			confidence,
			consensus_score,
			frame_ref,
			lifecycle,
			detected_at,
			metadata,
			created_at
		FROM detection_events
		WHERE lifecycle = 'ALARM_ACTIVATED'
		ORDER BY detected_at ASC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activated events: %w", err)
	}
	defer rows.Close()

	var events []models.DetectionEvent
	for rows.Next() {
		var event models.DetectionEvent
		var frameRef sql.NullString
		if err := rows.Scan(
			&event.EventID,
			&event.UserID,
			&event.CameraID,
			&event.EventType,
			&event.Confidence,
			&event.ConsensusScore,
			&frameRef,
			&event.Lifecycle,
			&event.DetectedAt,
			&event.Metadata,
			&event.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan detection event: %w", err)
		}
		if frameRef.Valid {
			event.FrameRef = frameRef.String
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detection events: %w", err)
	}

	return events, nil
}

// UpdateLifecycleState 更新事件的生命周期状态
// 报警激活通道用它写回终态（ACKED / CANCELED）
func (r *DetectionEventsRepository) UpdateLifecycleState(ctx context.Context, eventID string, state models.LifecycleState) error {
	if eventID == "" {
		return fmt.Errorf("event_id is required")
	}

	query := `
		UPDATE detection_events
		SET lifecycle = $2
		WHERE event_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, eventID, state)
	if err != nil {
		return fmt.Errorf("failed to update lifecycle state: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("detection event not found: %s", eventID)
	}

	r.logger.Debug("Lifecycle state updated",
		zap.String("event_id", eventID),
		zap.String("state", string(state)),
	)

	return nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/letranminhdat1516/IPBMS-sub000/internal/models"

	"go.uber.org/zap"
)

// AlertsRepository 报警记录仓库（alerts 表）
type AlertsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertsRepository 创建报警记录仓库
func NewAlertsRepository(db *sql.DB, logger *zap.Logger) *AlertsRepository {
	return &AlertsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAlert 写入报警记录
func (r *AlertsRepository) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if alert.UserID == "" {
		return fmt.Errorf("user_id is required")
	}

	query := `
		INSERT INTO alerts (
			alert_id,
			event_id,
			user_id,
			severity,
			priority_level,
			status,
			message,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.AlertID,
		alert.EventID,
		alert.UserID,
		alert.Severity,
		alert.PriorityLevel,
		alert.Status,
		alert.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}

	r.logger.Debug("Alert inserted",
		zap.String("alert_id", alert.AlertID),
		zap.String("user_id", alert.UserID),
		zap.Int("priority_level", alert.PriorityLevel),
	)

	return nil
}

// GetMaxActivePriority 查询用户活跃报警中的最高优先级
// hasActive 为 false 表示该用户当前没有活跃报警
func (r *AlertsRepository) GetMaxActivePriority(ctx context.Context, userID string) (int, bool, error) {
	if userID == "" {
		return 0, false, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT MAX(priority_level)
		FROM alerts
		WHERE user_id = $1
		  AND status = 'active'
	`

	var maxPriority sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&maxPriority)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get max active priority: %w", err)
	}

	if !maxPriority.Valid {
		return 0, false, nil
	}
	return int(maxPriority.Int64), true, nil
}

// GetActiveAlerts 查询用户的所有活跃报警
func (r *AlertsRepository) GetActiveAlerts(ctx context.Context, userID string) ([]models.Alert, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT
			alert_id,
			event_id,
			user_id,
			severity,
			priority_level,
			status,
			message,
			created_at
		FROM alerts
		WHERE user_id = $1
		  AND status = 'active'
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var alert models.Alert
		if err := rows.Scan(
			&alert.AlertID,
			&alert.EventID,
			&alert.UserID,
			&alert.Severity,
			&alert.PriorityLevel,
			&alert.Status,
			&alert.Message,
			&alert.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// AcknowledgeAlert 将报警标记为已确认
func (r *AlertsRepository) AcknowledgeAlert(ctx context.Context, alertID string) error {
	return r.updateStatus(ctx, alertID, models.AlertStatusAcknowledged)
}

// ResolveAlert 将报警标记为已解决
func (r *AlertsRepository) ResolveAlert(ctx context.Context, alertID string) error {
	return r.updateStatus(ctx, alertID, models.AlertStatusResolved)
}

func (r *AlertsRepository) updateStatus(ctx context.Context, alertID string, status models.AlertStatus) error {
	if alertID == "" {
		return fmt.Errorf("alert_id is required")
	}

	query := `
		UPDATE alerts
		SET status = $2
		WHERE alert_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, alertID, status)
	if err != nil {
		return fmt.Errorf("failed to update alert status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", alertID)
	}

	return nil
}

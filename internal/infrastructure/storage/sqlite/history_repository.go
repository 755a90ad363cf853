package sqlite

import (
	"context"
	"fmt"
	"time"

	"thermal-vision/internal/domain/entity"
	"thermal-vision/internal/domain/port"
)

const defaultHistoryLimit = 10

// HistoryRepository хранит успешные запуски детекции.
type HistoryRepository struct {
	db  *DB
	now func() time.Time
}

func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db, now: time.Now}
}

// Record сохраняет запуск и все его детекции одной транзакцией.
func (r *HistoryRepository) Record(ctx context.Context, userID string, result *entity.DetectionResult) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO detection_runs (user_id, detection_count, created_at)
		VALUES (?, ?, ?)
	`, userID, result.Count, r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detections (run_id, position, label, confidence, x, y, width, height, temperature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, d := range result.Detections {
		if _, err := stmt.ExecContext(ctx, runID, i, d.Label, d.Confidence,
			d.BBox.X, d.BBox.Y, d.BBox.Width, d.BBox.Height, d.TemperatureLabel); err != nil {
			return 0, fmt.Errorf("insert detection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// ListByUser возвращает последние запуски пользователя, новые первыми.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]entity.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, user_id, detection_count, created_at
		FROM detection_runs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	var entries []entity.HistoryEntry
	for rows.Next() {
		var (
			e       entity.HistoryEntry
			created int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Count, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	// Единственное соединение: курсор нужно закрыть до следующего запроса
	rows.Close()

	for i := range entries {
		detections, err := r.detections(ctx, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Detections = detections
		entries[i].Labels = labels(detections)
	}

	return entries, nil
}

func (r *HistoryRepository) detections(ctx context.Context, runID int64) ([]entity.Detection, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT label, confidence, x, y, width, height, temperature
		FROM detections WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var detections []entity.Detection
	for rows.Next() {
		var d entity.Detection
		if err := rows.Scan(&d.Label, &d.Confidence, &d.BBox.X, &d.BBox.Y, &d.BBox.Width, &d.BBox.Height, &d.TemperatureLabel); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		detections = append(detections, d)
	}
	return detections, rows.Err()
}

func labels(detections []entity.Detection) []string {
	out := make([]string, 0, len(detections))
	for _, d := range detections {
		out = append(out, d.Label)
	}
	return out
}

// Проверка реализации интерфейса
var _ port.HistoryRepository = (*HistoryRepository)(nil)

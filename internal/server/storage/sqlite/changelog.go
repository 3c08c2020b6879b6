package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/driftsync/driftsync/internal/models"
	"github.com/driftsync/driftsync/internal/server/storage"
)

// ChangesSince возвращает изменения с курсором строго больше cursor,
// упорядоченные по возрастанию, и следующий курсор.
//
// NextCursor продвигается до текущего максимума change log даже при пустом
// результате (heartbeat-продвижение курсора при фильтрации по ресурсам).
func (s *Storage) ChangesSince(ctx context.Context, cursor int64, limit int, resources []string) ([]models.Change, int64, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT cursor, resource, id, kind, server_version, changed_at
		FROM change_log
		WHERE cursor > ?
	`
	args := []any{cursor}

	if len(resources) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(resources)), ",")
		query += ` AND resource IN (` + placeholders + `)`
		for _, r := range resources {
			args = append(args, r)
		}
	}

	query += ` ORDER BY cursor ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, &storage.AdapterError{Err: err}
	}
	defer rows.Close()

	var changes []models.Change
	for rows.Next() {
		var (
			change    models.Change
			kind      string
			changedAt int64
		)
		if err := rows.Scan(&change.Cursor, &change.Resource, &change.ID, &kind, &change.ServerVersion, &changedAt); err != nil {
			return nil, 0, &storage.AdapterError{Err: err}
		}
		change.Kind = models.ChangeKind(kind)
		change.ChangedAt = time.Unix(changedAt, 0).UTC()
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, &storage.AdapterError{Err: err}
	}

	next := cursor
	if len(changes) == limit {
		// Возможно есть еще страницы: курсор продвигается только
		// до последнего возвращенного изменения
		next = changes[len(changes)-1].Cursor
		return changes, next, nil
	}

	current, err := s.CurrentCursor(ctx)
	if err != nil {
		return nil, 0, err
	}
	if current > next {
		next = current
	}
	return changes, next, nil
}

// CurrentCursor возвращает максимальный назначенный курсор change log.
func (s *Storage) CurrentCursor(ctx context.Context) (int64, error) {
	var cursor int64
	// seq из sqlite_sequence переживает удаление строк лога
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(cursor), 0) FROM change_log`)
	if err := row.Scan(&cursor); err != nil {
		return 0, &storage.AdapterError{Err: err}
	}
	return cursor, nil
}

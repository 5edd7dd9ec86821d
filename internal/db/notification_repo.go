package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ToFood/tofood-zip/internal/types"
)

// NotificationRepository provides data access for the notifications table.
//
// Status transitions are conditional updates: a row only leaves
// WaitingToBeSent through Claim, and only a claimed (Processing) row can be
// finished or released. Concurrent dispatchers racing on the same id are
// serialized by the database, not by the caller.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository backed by
// the given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// notificationColumns is the column list read by scanNotification. Keep the
// two in the same order.
const notificationColumns = `id, subject_entity_id, recipient, phone, operation,
	subject, body_text, body_template, header_image_url, channel_type, status,
	broker_service_id, attempt, error_message, deleted, created_at, claimed_at,
	sent_at`

// Create inserts r and fills its ID and CreatedAt from the database. Status
// defaults to WaitingToBeSent and Attempt to 1 when unset.
func (r *NotificationRepository) Create(ctx context.Context, n *types.NotificationRecord) error {
	if n.Status == 0 {
		n.Status = types.StatusWaitingToBeSent
	}
	if n.Attempt < 1 {
		n.Attempt = 1
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO notifications
		 (subject_entity_id, recipient, phone, operation, subject, body_text,
		  body_template, header_image_url, channel_type, status,
		  broker_service_id, attempt, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, NOW()))
		 RETURNING id, created_at`,
		n.SubjectEntityID,
		n.Recipient,
		nilIfEmpty(n.Phone),
		nilIfEmpty(n.Operation),
		nilIfEmpty(n.Subject),
		nilIfEmpty(n.BodyText),
		nilIfEmpty(n.BodyTemplate),
		nilIfEmpty(n.HeaderImageURL),
		int(n.Channel),
		int(n.Status),
		n.BrokerServiceID,
		n.Attempt,
		nilIfZeroTime(n.CreatedAt),
	)
	if err := row.Scan(&n.ID, &n.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create notification", err)
	}
	return nil
}

// GetByID returns the record with the given id, including soft-deleted
// rows. Returns not_found_notification when no row exists.
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*types.NotificationRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`,
		id,
	)
	n, err := scanNotification(row)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get notification", err)
	}
	return n, nil
}

// ListBySubject returns the non-deleted records for a subject entity,
// newest first.
func (r *NotificationRepository) ListBySubject(ctx context.Context, subjectEntityID string, limit int) ([]*types.NotificationRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+notificationColumns+`
		 FROM notifications
		 WHERE subject_entity_id = $1 AND NOT deleted
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		subjectEntityID,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list notifications", err)
	}
	defer rows.Close()

	var results []*types.NotificationRecord
	for rows.Next() {
		n, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification row", scanErr)
		}
		results = append(results, n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notification rows", err)
	}
	return results, nil
}

// Claim atomically moves a dispatchable record to Processing and returns it.
//
// A record is dispatchable when it is WaitingToBeSent, has no sent_at and is
// not soft-deleted. Only one concurrent caller can win the claim; every other
// caller (and every caller for an already-finished record) gets (nil, nil).
//
// attempt is left untouched on the first claim and incremented on every
// later one, so it counts broker-invoking attempts.
func (r *NotificationRepository) Claim(ctx context.Context, id int64) (*types.NotificationRecord, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE notifications SET
			status = $2,
			attempt = CASE WHEN claimed_at IS NULL THEN attempt ELSE attempt + 1 END,
			claimed_at = NOW()
		 WHERE id = $1
		   AND status = $3
		   AND sent_at IS NULL
		   AND NOT deleted
		 RETURNING `+notificationColumns,
		id,
		int(types.StatusProcessing),
		int(types.StatusWaitingToBeSent),
	)
	n, err := scanNotification(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to claim notification", err)
	}
	return n, nil
}

// Finish writes a terminal status for a claimed record. errorMessage is
// stored as NULL when empty. sent_at is stamped for every outcome except
// NotSent, which never reached a broker.
//
// Returns not_found_notification if the record is not currently claimed.
func (r *NotificationRepository) Finish(ctx context.Context, id int64, status types.NotificationStatus, errorMessage string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET
			status = $2,
			error_message = $3,
			sent_at = CASE WHEN $4::boolean THEN NOW() ELSE sent_at END
		 WHERE id = $1 AND status = $5`,
		id,
		int(status),
		nilIfEmpty(errorMessage),
		status != types.StatusNotSent,
		int(types.StatusProcessing),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to finish notification", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "claimed notification not found", nil)
	}
	return nil
}

// Release hands a claimed record back to WaitingToBeSent so a redelivered
// queue message can claim it again. claimed_at is kept so the next claim
// counts as a new attempt.
func (r *NotificationRepository) Release(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET status = $2 WHERE id = $1 AND status = $3`,
		id,
		int(types.StatusWaitingToBeSent),
		int(types.StatusProcessing),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release notification", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "claimed notification not found", nil)
	}
	return nil
}

// ReleaseStaleClaims releases up to limit records whose claim is older than
// lease and returns their ids. Rows locked by a concurrent reaper are
// skipped.
func (r *NotificationRepository) ReleaseStaleClaims(ctx context.Context, lease time.Duration, limit int) ([]int64, error) {
	return r.collectIDs(ctx, "release stale claims",
		`UPDATE notifications SET status = $1, requeued_at = NOW()
		 WHERE id IN (
			SELECT id FROM notifications
			WHERE status = $2
			  AND sent_at IS NULL
			  AND claimed_at < NOW() - make_interval(secs => $3)
			ORDER BY claimed_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id`,
		int(types.StatusWaitingToBeSent),
		int(types.StatusProcessing),
		intervalSeconds(lease),
		limit,
	)
}

// TouchStaleWaiting returns up to limit WaitingToBeSent records that have
// not been (re)enqueued within lease and stamps requeued_at on them, so the
// same row is handed out at most once per lease.
func (r *NotificationRepository) TouchStaleWaiting(ctx context.Context, lease time.Duration, limit int) ([]int64, error) {
	return r.collectIDs(ctx, "select stale waiting notifications",
		`UPDATE notifications SET requeued_at = NOW()
		 WHERE id IN (
			SELECT id FROM notifications
			WHERE status = $1
			  AND sent_at IS NULL
			  AND NOT deleted
			  AND COALESCE(requeued_at, created_at) < NOW() - make_interval(secs => $2)
			ORDER BY id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id`,
		int(types.StatusWaitingToBeSent),
		intervalSeconds(lease),
		limit,
	)
}

func (r *NotificationRepository) collectIDs(ctx context.Context, op string, query string, args ...any) ([]int64, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to "+op, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to "+op, err)
	}
	return ids, nil
}

// scanNotification scans one row selected with notificationColumns.
func scanNotification(row pgx.Row) (*types.NotificationRecord, error) {
	var (
		n                                   types.NotificationRecord
		phone, operation, subject, bodyText *string
		bodyTemplate, headerImageURL        *string
		channel, status                     int
	)
	err := row.Scan(
		&n.ID,
		&n.SubjectEntityID,
		&n.Recipient,
		&phone,
		&operation,
		&subject,
		&bodyText,
		&bodyTemplate,
		&headerImageURL,
		&channel,
		&status,
		&n.BrokerServiceID,
		&n.Attempt,
		&n.ErrorMessage,
		&n.Deleted,
		&n.CreatedAt,
		&n.ClaimedAt,
		&n.SentAt,
	)
	if err != nil {
		return nil, err
	}
	n.Phone = derefString(phone)
	n.Operation = derefString(operation)
	n.Subject = derefString(subject)
	n.BodyText = derefString(bodyText)
	n.BodyTemplate = derefString(bodyTemplate)
	n.HeaderImageURL = derefString(headerImageURL)
	n.Channel = types.ChannelType(channel)
	n.Status = types.NotificationStatus(status)
	return &n, nil
}

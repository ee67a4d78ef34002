package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinicq/ehr-service/internal/models"
	"clinicq/ehr-service/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const entryColumns = `
	entry_id, seq, patient_id, patient_name, patient_cpf, patient_cns, patient_birth,
	arrived_at, scheduled_at, kind, status, priority, listening_done, risk,
	service_type, team, professional, position, created_by
`

func (s *Store) LoadDay(ctx context.Context, day time.Time) ([]models.QueueEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE day = $1::date
		ORDER BY seq ASC
	`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) InsertEntry(ctx context.Context, entry models.QueueEntry) (models.QueueEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueEntry{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO queue_entries (
			entry_id, seq, day, patient_id, patient_name, patient_cpf, patient_cns, patient_birth,
			arrived_at, scheduled_at, kind, status, priority, listening_done, risk,
			service_type, team, professional, position, created_by
		) VALUES ($1,$2,$3::date,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`, entry.EntryID, entry.Seq, entry.ArrivedAt, entry.PatientID, entry.PatientName,
		nullIfEmpty(entry.PatientCPF), nullIfEmpty(entry.PatientCNS), nullIfEmpty(entry.PatientBirth),
		entry.ArrivedAt, entry.ScheduledAt, entry.Kind, entry.Status, entry.Priority,
		entry.ListeningDone, nullIfEmpty(entry.Risk), entry.ServiceType,
		nullIfEmpty(entry.Team), nullIfEmpty(entry.Professional), entry.Position, nullIfEmpty(entry.CreatedBy))
	if err != nil {
		return models.QueueEntry{}, err
	}

	if err = insertQueueEvent(ctx, tx, "entry.admitted", entry); err != nil {
		return models.QueueEntry{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.QueueEntry{}, err
	}
	return entry, nil
}

func (s *Store) UpdateEntry(ctx context.Context, entry models.QueueEntry) error {
	return s.UpdateEntries(ctx, []models.QueueEntry{entry})
}

// UpdateEntries writes all entries in one transaction so paired updates
// (call-next demoting the previous active entry) land together or not at all.
func (s *Store) UpdateEntries(ctx context.Context, entries []models.QueueEntry) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, entry := range entries {
		var tag pgconn.CommandTag
		tag, err = tx.Exec(ctx, `
			UPDATE queue_entries
			SET status = $2,
				priority = $3,
				listening_done = $4,
				risk = $5,
				team = $6,
				professional = $7,
				position = $8
			WHERE entry_id = $1
		`, entry.EntryID, entry.Status, entry.Priority, entry.ListeningDone,
			nullIfEmpty(entry.Risk), nullIfEmpty(entry.Team), nullIfEmpty(entry.Professional), entry.Position)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			err = store.ErrEntryNotFound
			return err
		}
		if err = insertQueueEvent(ctx, tx, "entry.updated", entry); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) DeleteEntry(ctx context.Context, entryID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM queue_entries WHERE entry_id = $1`, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrEntryNotFound
	}
	return nil
}

func (s *Store) InsertEvent(ctx context.Context, event store.QueueEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO queue_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, event.EventID, event.Type, event.Payload, event.CreatedAt)
	return err
}

func (s *Store) ListEvents(ctx context.Context, after time.Time, limit int) ([]store.QueueEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_id, type, payload_json, created_at
		FROM queue_events
	`
	args := []interface{}{}
	if !after.IsZero() {
		query += " WHERE created_at > $1 ORDER BY created_at ASC LIMIT $2"
		args = append(args, after, limit)
	} else {
		query += " ORDER BY created_at ASC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.QueueEvent
	for rows.Next() {
		var event store.QueueEvent
		if err := rows.Scan(&event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func insertQueueEvent(ctx context.Context, tx pgx.Tx, eventType string, entry models.QueueEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO queue_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, payload, time.Now().UTC())
	return err
}

func scanEntry(rows pgx.Rows) (models.QueueEntry, error) {
	var entry models.QueueEntry
	var cpfNull, cnsNull, birthNull, riskNull, teamNull, profNull, createdByNull sql.NullString
	var scheduledNull sql.NullTime
	if err := rows.Scan(&entry.EntryID, &entry.Seq, &entry.PatientID, &entry.PatientName,
		&cpfNull, &cnsNull, &birthNull, &entry.ArrivedAt, &scheduledNull, &entry.Kind,
		&entry.Status, &entry.Priority, &entry.ListeningDone, &riskNull,
		&entry.ServiceType, &teamNull, &profNull, &entry.Position, &createdByNull); err != nil {
		return models.QueueEntry{}, err
	}
	entry.PatientCPF = cpfNull.String
	entry.PatientCNS = cnsNull.String
	entry.PatientBirth = birthNull.String
	entry.Risk = riskNull.String
	entry.Team = teamNull.String
	entry.Professional = profNull.String
	entry.CreatedBy = createdByNull.String
	entry.ScheduledAt = nullTimePtr(scheduledNull)
	return entry, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

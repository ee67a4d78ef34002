package postgres

import (
	"context"
	"database/sql"
	"time"

	"clinicq/ehr-service/internal/store"
)

func (s *Store) DailySummary(ctx context.Context, day time.Time) (store.DailySummary, error) {
	summary := store.DailySummary{Day: day.Format("2006-01-02")}

	row := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'no_show' THEN 1 ELSE 0 END),
			SUM(CASE WHEN listening_done AND risk = 'high' THEN 1 ELSE 0 END)
		FROM queue_entries
		WHERE day = $1::date
	`, day)
	var completed, cancelled, noShow, highRisk sql.NullInt64
	if err := row.Scan(&summary.Admitted, &completed, &cancelled, &noShow, &highRisk); err != nil {
		return store.DailySummary{}, err
	}
	summary.Completed = int(completed.Int64)
	summary.Cancelled = int(cancelled.Int64)
	summary.NoShow = int(noShow.Int64)
	summary.TriagedHighRisk = int(highRisk.Int64)

	row = s.pool.QueryRow(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM (e.created_at - q.arrived_at)))
		FROM queue_events e
		JOIN queue_entries q ON q.entry_id = e.payload_json->>'entry_id'
		WHERE e.type = 'entry.updated' AND e.payload_json->>'status' = 'in_progress'
			AND q.day = $1::date
	`, day)
	var avgWait sql.NullFloat64
	if err := row.Scan(&avgWait); err != nil {
		return store.DailySummary{}, err
	}
	summary.AvgWaitSeconds = avgWait.Float64

	return summary, nil
}

package waitingroom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const entryColumns = `id, client_id, pet_id, reason_for_visit, priority, status,
		arrival_time, consultation_started_at, completed_at, notes, created_at, updated_at`

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var email *string

	err := row.Scan(
		&c.ID,
		&c.Name,
		&email,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	c.Email = email
	return &c, nil
}

func scanPet(row pgx.Row) (*Pet, error) {
	var p Pet

	err := row.Scan(
		&p.ID,
		&p.ClientID,
		&p.Name,
		&p.Species,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanEntry(row pgx.Row) (*WaitingEntry, error) {
	var e WaitingEntry
	var consultationStartedAt, completedAt *time.Time

	err := row.Scan(
		&e.ID,
		&e.ClientID,
		&e.PetID,
		&e.ReasonForVisit,
		&e.Priority,
		&e.Status,
		&e.ArrivalTime,
		&consultationStartedAt,
		&completedAt,
		&e.Notes,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	e.ConsultationStartedAt = consultationStartedAt
	e.CompletedAt = completedAt
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]WaitingEntry, error) {
	defer rows.Close()

	var result []WaitingEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IdentityResolver

func (s *PgStore) ResolveClient(ctx context.Context, id uuid.UUID) (*Client, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM clients
		WHERE id = $1
	`, id)
	return scanClient(row)
}

func (s *PgStore) ResolvePet(ctx context.Context, id uuid.UUID) (*Pet, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, client_id, name, species, created_at, updated_at
		FROM pets
		WHERE id = $1
	`, id)
	return scanPet(row)
}

func (s *PgStore) PetBelongsToClient(ctx context.Context, petID, clientID uuid.UUID) (bool, error) {
	var owned bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pets WHERE id = $1 AND client_id = $2
		)
	`, petID, clientID).Scan(&owned)
	if err != nil {
		return false, err
	}
	return owned, nil
}

// EntryStore

func (s *PgStore) CreateEntry(ctx context.Context, entry *WaitingEntry) (*WaitingEntry, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO waiting_entries (
			id, client_id, pet_id, reason_for_visit, priority, status,
			arrival_time, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+entryColumns+`
	`, entry.ID, entry.ClientID, entry.PetID, entry.ReasonForVisit, entry.Priority,
		entry.Status, entry.ArrivalTime, entry.Notes)

	created, err := scanEntry(row)
	if err != nil {
		// The partial unique index on (client_id, pet_id) WHERE status =
		// 'waiting' is the storage-level duplicate guard.
		if isUniqueViolation(err) {
			return nil, ErrDuplicateActiveVisit
		}
		return nil, err
	}

	return created, nil
}

func (s *PgStore) GetEntryByID(ctx context.Context, id uuid.UUID) (*WaitingEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waiting_entries
		WHERE id = $1
	`, id)
	return scanEntry(row)
}

func (s *PgStore) FindByPairAndStatus(ctx context.Context, clientID, petID uuid.UUID, status Status) (*WaitingEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM waiting_entries
		WHERE client_id = $1 AND pet_id = $2 AND status = $3
		ORDER BY arrival_time
		LIMIT 1
	`, clientID, petID, status)
	return scanEntry(row)
}

func (s *PgStore) FindByStatusIn(ctx context.Context, statuses ...Status) ([]WaitingEntry, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waiting_entries
		WHERE status = ANY($1)
	`, names)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (s *PgStore) FindByArrivalRange(ctx context.Context, from, to time.Time) ([]WaitingEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waiting_entries
		WHERE arrival_time >= $1 AND arrival_time < $2
	`, from, to)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (s *PgStore) CountByStatus(ctx context.Context, status Status) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM waiting_entries WHERE status = $1
	`, status).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PgStore) UpdateEntryStatus(ctx context.Context, id uuid.UUID, from, to Status, at time.Time) (*WaitingEntry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE waiting_entries
		SET status = $2,
		    consultation_started_at = CASE
		        WHEN $2::text = 'in_consultation' THEN $4
		        ELSE consultation_started_at
		    END,
		    completed_at = CASE
		        WHEN $2::text IN ('completed', 'cancelled') THEN $4
		        ELSE completed_at
		    END,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+entryColumns+`
	`, id, to, from, at)

	return scanEntry(row)
}

func (s *PgStore) UpdateEntryPriority(ctx context.Context, id uuid.UUID, priority Priority) (*WaitingEntry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE waiting_entries
		SET priority = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+entryColumns+`
	`, id, priority)

	return scanEntry(row)
}

func (s *PgStore) AppendEntryNote(ctx context.Context, id uuid.UUID, line string) (*WaitingEntry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE waiting_entries
		SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n' || $2 END,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+entryColumns+`
	`, id, line)

	return scanEntry(row)
}

func (s *PgStore) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM waiting_entries WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete waiting entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

const entryViewSelect = `
	SELECT e.id, e.client_id, e.pet_id, e.reason_for_visit, e.priority, e.status,
	       e.arrival_time, e.consultation_started_at, e.completed_at, e.notes,
	       e.created_at, e.updated_at, c.name, p.name
	FROM waiting_entries e
	JOIN clients c ON c.id = e.client_id
	JOIN pets p ON p.id = e.pet_id
`

func collectEntryViews(rows pgx.Rows) ([]EntryView, error) {
	defer rows.Close()

	var result []EntryView
	for rows.Next() {
		var v EntryView
		var consultationStartedAt, completedAt *time.Time

		err := rows.Scan(
			&v.ID,
			&v.ClientID,
			&v.PetID,
			&v.ReasonForVisit,
			&v.Priority,
			&v.Status,
			&v.ArrivalTime,
			&consultationStartedAt,
			&completedAt,
			&v.Notes,
			&v.CreatedAt,
			&v.UpdatedAt,
			&v.ClientName,
			&v.PetName,
		)
		if err != nil {
			return nil, err
		}

		v.ConsultationStartedAt = consultationStartedAt
		v.CompletedAt = completedAt
		result = append(result, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) SearchEntries(ctx context.Context, term string, limit, offset int) ([]EntryView, int, error) {
	pattern := "%" + term + "%"

	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM waiting_entries e
		JOIN clients c ON c.id = e.client_id
		JOIN pets p ON p.id = e.pet_id
		WHERE $1 = ''
		   OR c.name ILIKE $2
		   OR p.name ILIKE $2
		   OR e.reason_for_visit ILIKE $2
	`, term, pattern).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, entryViewSelect+`
		WHERE $1 = ''
		   OR c.name ILIKE $2
		   OR p.name ILIKE $2
		   OR e.reason_for_visit ILIKE $2
		ORDER BY e.arrival_time DESC
		LIMIT $3 OFFSET $4
	`, term, pattern, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	items, err := collectEntryViews(rows)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (s *PgStore) EntriesByArrivalRange(ctx context.Context, from, to time.Time, limit, offset int) ([]EntryView, int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM waiting_entries
		WHERE arrival_time >= $1 AND arrival_time < $2
	`, from, to).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, entryViewSelect+`
		WHERE e.arrival_time >= $1 AND e.arrival_time < $2
		ORDER BY e.arrival_time DESC
		LIMIT $3 OFFSET $4
	`, from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	items, err := collectEntryViews(rows)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

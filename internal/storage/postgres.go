package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/advomarket/booking/internal/fault"
	"github.com/advomarket/booking/internal/ledger"
	"github.com/advomarket/booking/internal/model"
	"github.com/advomarket/booking/internal/outbox"
	"github.com/advomarket/booking/libs/db"
)

// PostgresStore persists the booking state in Postgres. Appointment writes
// and their outbox events always share one transaction; the appointments
// table additionally carries an exclusion constraint on overlapping blocking
// windows, so even concurrent replicas cannot double-book.
type PostgresStore struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPostgresStore(pool *db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, outbox: outbox.NewRepository(pool)}
}

const exclusionViolation = "23P01"

func translate(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fault.NotFound(resource, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
		return fault.Conflictf("slot is not available")
	}
	return err
}

func (s *PostgresStore) Professional(ctx context.Context, id string) (model.Professional, error) {
	var p model.Professional
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, name, timezone
		FROM professionals
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Timezone)
	if err != nil {
		return model.Professional{}, translate(err, "professional", id)
	}
	return p, nil
}

func (s *PostgresStore) UpsertProfessional(ctx context.Context, p model.Professional) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO professionals (id, name, timezone)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, timezone = EXCLUDED.timezone
	`, p.ID, p.Name, p.Timezone)
	return err
}

// WeeklySchedule returns the configured week, or the default
// Monday-Friday 09:00-17:00 week when no rows exist yet.
func (s *PostgresStore) WeeklySchedule(ctx context.Context, professionalID string) ([]model.DayHours, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT weekday, open, start_minute, end_minute, break_start_minute, break_end_minute
		FROM weekly_hours
		WHERE professional_id = $1
		ORDER BY weekday
	`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var week []model.DayHours
	for rows.Next() {
		var d model.DayHours
		var weekday int
		if err := rows.Scan(&weekday, &d.Open, &d.StartMinute, &d.EndMinute, &d.BreakStartMinute, &d.BreakEndMinute); err != nil {
			return nil, err
		}
		d.Weekday = time.Weekday(weekday)
		week = append(week, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if len(week) == 0 {
		return DefaultWeek(), nil
	}
	return week, nil
}

func (s *PostgresStore) ReplaceWeeklySchedule(ctx context.Context, professionalID string, week []model.DayHours) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM weekly_hours WHERE professional_id = $1`, professionalID); err != nil {
		return err
	}
	for _, d := range week {
		_, err := tx.Exec(ctx, `
			INSERT INTO weekly_hours
				(professional_id, weekday, open, start_minute, end_minute, break_start_minute, break_end_minute)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, professionalID, int(d.Weekday), d.Open, d.StartMinute, d.EndMinute, d.BreakStartMinute, d.BreakEndMinute)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListExceptions(ctx context.Context, professionalID string) ([]model.TimeException, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, professional_id::text, title, type,
			start_date, end_date, start_minute, end_minute, recurrence, weekdays
		FROM time_exceptions
		WHERE professional_id = $1
		ORDER BY start_date, start_minute
	`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeException
	for rows.Next() {
		var e model.TimeException
		var weekdays []int16
		if err := rows.Scan(&e.ID, &e.ProfessionalID, &e.Title, &e.Type,
			&e.StartDate, &e.EndDate, &e.StartMinute, &e.EndMinute, &e.Recurrence, &weekdays); err != nil {
			return nil, err
		}
		e.StartDate = model.NormalizeDate(e.StartDate)
		e.EndDate = model.NormalizeDate(e.EndDate)
		for _, w := range weekdays {
			e.Weekdays = append(e.Weekdays, time.Weekday(w))
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateException(ctx context.Context, e model.TimeException) error {
	weekdays := make([]int16, 0, len(e.Weekdays))
	for _, w := range e.Weekdays {
		weekdays = append(weekdays, int16(w))
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO time_exceptions
			(id, professional_id, title, type, start_date, end_date, start_minute, end_minute, recurrence, weekdays)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.ProfessionalID, e.Title, e.Type, e.StartDate, e.EndDate, e.StartMinute, e.EndMinute, e.Recurrence, weekdays)
	return err
}

func (s *PostgresStore) DeleteException(ctx context.Context, professionalID, id string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM time_exceptions
		WHERE id = $1 AND professional_id = $2
	`, id, professionalID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFound("exception", id)
	}
	return nil
}

func (s *PostgresStore) AppointmentType(ctx context.Context, professionalID, typeID string) (model.AppointmentType, error) {
	var at model.AppointmentType
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, professional_id::text, name, duration_minutes, price_cents, COALESCE(description, '')
		FROM appointment_types
		WHERE id = $1 AND professional_id = $2
	`, typeID, professionalID).Scan(&at.ID, &at.ProfessionalID, &at.Name, &at.DurationMinutes, &at.PriceCents, &at.Description)
	if err != nil {
		return model.AppointmentType{}, translate(err, "appointment type", typeID)
	}
	return at, nil
}

func (s *PostgresStore) CreateAppointmentType(ctx context.Context, at model.AppointmentType) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO appointment_types (id, professional_id, name, duration_minutes, price_cents, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, at.ID, at.ProfessionalID, at.Name, at.DurationMinutes, at.PriceCents, at.Description)
	return err
}

func (s *PostgresStore) ListAppointmentTypes(ctx context.Context, professionalID string) ([]model.AppointmentType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, professional_id::text, name, duration_minutes, price_cents, COALESCE(description, '')
		FROM appointment_types
		WHERE professional_id = $1
		ORDER BY name
	`, professionalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AppointmentType
	for rows.Next() {
		var at model.AppointmentType
		if err := rows.Scan(&at.ID, &at.ProfessionalID, &at.Name, &at.DurationMinutes, &at.PriceCents, &at.Description); err != nil {
			return nil, err
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

const appointmentColumns = `
	id::text, professional_id::text, appointment_type_id::text,
	client_name, client_email, client_phone,
	date, start_minute, duration_minutes,
	COALESCE(location, ''), COALESCE(notes, ''),
	status, payment_status,
	COALESCE(rescheduled_from::text, ''), COALESCE(rescheduled_to::text, ''),
	created_at, cancelled_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID, &a.ProfessionalID, &a.AppointmentTypeID,
		&a.ClientName, &a.ClientEmail, &a.ClientPhone,
		&a.Date, &a.StartMinute, &a.DurationMinutes,
		&a.Location, &a.Notes,
		&a.Status, &a.PaymentStatus,
		&a.RescheduledFrom, &a.RescheduledTo,
		&a.CreatedAt, &a.CancelledAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = model.NormalizeDate(a.Date)
	return a, nil
}

func (s *PostgresStore) Appointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id))
	if err != nil {
		return model.Appointment{}, translate(err, "appointment", id)
	}
	return a, nil
}

func (s *PostgresStore) AppointmentsOn(ctx context.Context, professionalID string, date time.Time) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1 AND date = $2
		ORDER BY start_minute
	`, professionalID, model.NormalizeDate(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateAppointment(ctx context.Context, appt model.Appointment, ev *ledger.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.insertAppointment(ctx, tx, appt); err != nil {
		return translate(err, "appointment", appt.ID)
	}
	if err := s.insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) insertAppointment(ctx context.Context, tx pgx.Tx, a model.Appointment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO appointments
			(id, professional_id, appointment_type_id,
			 client_name, client_email, client_phone,
			 date, start_minute, duration_minutes,
			 location, notes, status, payment_status,
			 rescheduled_from, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, '')::uuid, $15)
	`, a.ID, a.ProfessionalID, a.AppointmentTypeID,
		a.ClientName, a.ClientEmail, a.ClientPhone,
		a.Date, a.StartMinute, a.DurationMinutes,
		a.Location, a.Notes, a.Status, a.PaymentStatus,
		a.RescheduledFrom, a.CreatedAt)
	return err
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to model.Status, cancelledAt *time.Time, ev *ledger.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $3, cancelled_at = $4
		WHERE id = $1 AND status = $2
	`, id, from, to, cancelledAt)
	if err != nil {
		return translate(err, "appointment", id)
	}
	if tag.RowsAffected() == 0 {
		// Either missing or the status moved under us.
		if _, err := s.Appointment(ctx, id); err != nil {
			return err
		}
		return fault.Conflictf("appointment %s is no longer %s", id, from)
	}
	if err := s.insertEvent(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Reschedule(ctx context.Context, original, replacement model.Appointment, evs []ledger.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, rescheduled_to = $3
		WHERE id = $1 AND status NOT IN ('completed', 'cancelled', 'no_show', 'rescheduled')
	`, original.ID, original.Status, replacement.ID)
	if err != nil {
		return translate(err, "appointment", original.ID)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Appointment(ctx, original.ID); err != nil {
			return err
		}
		return fault.Conflictf("appointment %s is already closed", original.ID)
	}
	if err := s.insertAppointment(ctx, tx, replacement); err != nil {
		return translate(err, "appointment", replacement.ID)
	}
	for i := range evs {
		if err := s.insertEvent(ctx, tx, &evs[i]); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ListAppointments(ctx context.Context, professionalID string, f ledger.Filter) ([]model.Appointment, error) {
	q := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE professional_id = $1`
	args := []any{professionalID}
	if !f.From.IsZero() {
		args = append(args, model.NormalizeDate(f.From))
		q += ` AND date >= $` + strconv.Itoa(len(args))
	}
	if !f.To.IsZero() {
		args = append(args, model.NormalizeDate(f.To))
		q += ` AND date <= $` + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		q += ` AND status = $` + strconv.Itoa(len(args))
	}
	q += ` ORDER BY date, start_minute, id`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// insertEvent turns a ledger event into an outbox row inside tx.
func (s *PostgresStore) insertEvent(ctx context.Context, tx pgx.Tx, ev *ledger.Event) error {
	if ev == nil {
		return nil
	}
	payload, err := json.Marshal(outbox.Payload{
		Kind:           ev.Kind,
		AppointmentID:  ev.AppointmentID,
		ProfessionalID: ev.ProfessionalID,
		ClientEmail:    ev.ClientEmail,
		OccurredAt:     time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateID: ev.AppointmentID,
		EventType:   outbox.TopicFor(ev.Kind),
		Payload:     payload,
	})
}

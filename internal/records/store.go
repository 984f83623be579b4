package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/clinic-billing/pkg/apperrors"
)

// PatientStore looks patients up inside a clinic scope.
type PatientStore interface {
	FindPatient(ctx context.Context, clinicID, patientID string) (*Patient, error)
	ListPatients(ctx context.Context, clinicID string, q PatientQuery) (*PatientPage, error)
}

// AppointmentStore lists appointments joined to their checkout.
type AppointmentStore interface {
	FindAppointments(ctx context.Context, clinicID string, f AppointmentFilter) ([]Appointment, error)
}

// storeDB defines the database interface needed by Store
type storeDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads patients, appointments and checkouts from Postgres.
type Store struct {
	db      storeDB
	dialect goqu.DialectWrapper
}

// NewStore creates a store backed by a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("records: pgx pool required")
	}
	return NewStoreWithDB(pool)
}

// NewStoreWithDB allows injecting a mock database for testing.
func NewStoreWithDB(db storeDB) *Store {
	return &Store{db: db, dialect: goqu.Dialect("postgres")}
}

var patientColumns = []any{
	goqu.I("id"), goqu.I("clinic_id"), goqu.I("first_name"), goqu.I("last_name"),
	goqu.I("email"), goqu.I("phone"), goqu.I("date_of_birth"), goqu.I("status"),
}

// FindPatient returns the patient or a NOT_FOUND error when it does not
// exist in the clinic.
func (s *Store) FindPatient(ctx context.Context, clinicID, patientID string) (*Patient, error) {
	query, args, err := s.dialect.From("patients").
		Select(patientColumns...).
		Where(goqu.Ex{"clinic_id": clinicID, "id": patientID}).
		Limit(1).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("records: build patient query", err)
	}

	p, err := scanPatient(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("patient not found")
	}
	if err != nil {
		return nil, apperrors.NewUpstreamError("records: load patient", err)
	}
	return p, nil
}

// ListPatients returns one page of the clinic's patients matching the
// search and status filters, ordered by name.
func (s *Store) ListPatients(ctx context.Context, clinicID string, q PatientQuery) (*PatientPage, error) {
	filtered := s.dialect.From("patients").Where(goqu.Ex{"clinic_id": clinicID})
	if search := strings.TrimSpace(q.Search); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		filtered = filtered.Where(goqu.Or(
			goqu.I("first_name").ILike(pattern),
			goqu.I("last_name").ILike(pattern),
			goqu.L("first_name || ' ' || last_name").ILike(pattern),
			goqu.I("email").ILike(pattern),
			goqu.I("phone").ILike(pattern),
		))
	}
	if status := strings.TrimSpace(q.Status); status != "" {
		filtered = filtered.Where(goqu.Ex{"status": status})
	}

	countSQL, countArgs, err := filtered.
		Select(
			goqu.COUNT(goqu.Star()).As("total"),
			goqu.L("COUNT(*) FILTER (WHERE status = ?)", PatientStatusActive).As("active"),
		).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("records: build patient count", err)
	}

	page := &PatientPage{}
	if err := s.db.QueryRow(ctx, countSQL, countArgs...).Scan(&page.Total, &page.Active); err != nil {
		return nil, apperrors.NewUpstreamError("records: count patients", err)
	}

	listDS := filtered.
		Select(patientColumns...).
		Order(goqu.I("last_name").Asc(), goqu.I("first_name").Asc(), goqu.I("id").Asc())
	if q.Limit > 0 {
		listDS = listDS.Limit(uint(q.Limit))
	}
	if offset := q.Offset(); offset > 0 {
		listDS = listDS.Offset(uint(offset))
	}
	listSQL, listArgs, err := listDS.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("records: build patient page", err)
	}

	rows, err := s.db.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, apperrors.NewUpstreamError("records: query patients", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("records: scan patient", err)
		}
		page.Patients = append(page.Patients, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUpstreamError("records: iterate patients", err)
	}
	return page, nil
}

// FindAppointments returns the clinic's appointments matching f, each with
// its checkout when one exists, ordered by date then time then id.
func (s *Store) FindAppointments(ctx context.Context, clinicID string, f AppointmentFilter) ([]Appointment, error) {
	ds := s.dialect.From(goqu.T("appointments").As("a")).
		LeftJoin(goqu.T("checkouts").As("c"), goqu.On(goqu.I("c.appointment_id").Eq(goqu.I("a.id")))).
		Select(
			goqu.I("a.id"),
			goqu.I("a.clinic_id"),
			goqu.I("a.patient_id"),
			goqu.I("a.provider_id"),
			goqu.I("a.appointment_date"),
			goqu.I("a.appointment_time"),
			goqu.I("a.status"),
			goqu.I("a.visit_type"),
			goqu.L("COALESCE(a.procedure_codes, '{}')"),
			goqu.L("COALESCE(a.diagnostic_codes, '{}')"),
			goqu.I("a.is_signed_off"),
			goqu.L("a.total_amount::float8"),
			goqu.I("c.id"),
			goqu.L("COALESCE(c.service_codes, '[]'::jsonb)"),
			goqu.L("COALESCE(c.payments, '[]'::jsonb)"),
		).
		Where(goqu.I("a.clinic_id").Eq(clinicID))

	if len(f.PatientIDs) > 0 {
		ds = ds.Where(goqu.I("a.patient_id").In(f.PatientIDs))
	}
	if f.ProviderID != "" {
		ds = ds.Where(goqu.I("a.provider_id").Eq(f.ProviderID))
	}
	if f.Window.Start != nil {
		ds = ds.Where(goqu.I("a.appointment_date").Gte(*f.Window.Start))
	}
	if f.Window.End != nil {
		ds = ds.Where(goqu.I("a.appointment_date").Lt(*f.Window.End))
	}
	ds = ds.Order(goqu.I("a.appointment_date").Asc(), goqu.I("a.appointment_time").Asc(), goqu.I("a.id").Asc())

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("records: build appointment query", err)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewUpstreamError("records: query appointments", err)
	}
	defer rows.Close()

	var out []Appointment
	seen := make(map[string]bool)
	for rows.Next() {
		apt, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("records: scan appointment", err)
		}
		// a stray second checkout row for the same appointment is ignored
		if seen[apt.ID] {
			continue
		}
		seen[apt.ID] = true
		out = append(out, *apt)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewUpstreamError("records: iterate appointments", err)
	}
	return out, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p            Patient
		email, phone pgtype.Text
		dob          pgtype.Date
	)
	if err := row.Scan(&p.ID, &p.ClinicID, &p.FirstName, &p.LastName, &email, &phone, &dob, &p.Status); err != nil {
		return nil, err
	}
	p.Email = email.String
	p.Phone = phone.String
	if dob.Valid {
		t := dob.Time
		p.DateOfBirth = &t
	}
	return &p, nil
}

func scanAppointment(rows pgx.Rows) (*Appointment, error) {
	var (
		apt                          Appointment
		providerID, apptTime         pgtype.Text
		visitType, checkoutID        pgtype.Text
		status                       string
		signedOff                    pgtype.Bool
		total                        pgtype.Float8
		serviceCodesRaw, paymentsRaw []byte
	)
	if err := rows.Scan(
		&apt.ID, &apt.ClinicID, &apt.PatientID, &providerID,
		&apt.AppointmentDate, &apptTime, &status, &visitType,
		&apt.ProcedureCodes, &apt.DiagnosticCodes, &signedOff, &total,
		&checkoutID, &serviceCodesRaw, &paymentsRaw,
	); err != nil {
		return nil, err
	}

	apt.ProviderID = providerID.String
	apt.AppointmentTime = apptTime.String
	apt.VisitType = visitType.String
	apt.Status = Status(status)
	apt.IsSignedOff = signedOff.Valid && signedOff.Bool
	if total.Valid {
		amount := total.Float64
		apt.TotalAmount = &amount
	}

	if checkoutID.Valid {
		co := &Checkout{ID: checkoutID.String, AppointmentID: apt.ID}
		if err := decodeJSONList(serviceCodesRaw, &co.ServiceCodes); err != nil {
			return nil, fmt.Errorf("decode service codes for appointment %s: %w", apt.ID, err)
		}
		if err := decodeJSONList(paymentsRaw, &co.Payments); err != nil {
			return nil, fmt.Errorf("decode payments for appointment %s: %w", apt.ID, err)
		}
		apt.Checkout = co
	}
	return &apt, nil
}

func decodeJSONList(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

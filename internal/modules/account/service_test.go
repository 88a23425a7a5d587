package account

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ridehail/internal/apperr"
	"ridehail/internal/logger"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newServiceFixture(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	svc := NewService(NewStore(mock), logger.Discard())
	svc.hashCost = bcrypt.MinCost
	svc.now = func() time.Time { return fixedNow }
	return svc, mock
}

// hashForTest creates a bcrypt hash with the minimum cost for fast tests.
func hashForTest(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func validPassenger() RegisterPassengerCommand {
	return RegisterPassengerCommand{
		FullName: "Olena Kovalenko",
		Email:    " Olena@Example.com ",
		Phone:    "+380501112233",
		Password: "correct-horse",
	}
}

func validDriver() RegisterDriverCommand {
	return RegisterDriverCommand{
		FullName: "Taras Shevchuk",
		Email:    "taras@example.com",
		Phone:    "+380671112233",
		Password: "battery-staple",
		Car:      CarInput{Brand: "Skoda", Model: "Octavia", PlateNumber: "aa1234bb", Year: 2019},
	}
}

func TestRegisterPassenger(t *testing.T) {
	svc, mock := newServiceFixture(t)

	mock.ExpectQuery("SELECT EXISTS .+ FROM users").
		WithArgs("olena@example.com", "+380501112233").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), "Olena Kovalenko", "olena@example.com", "+380501112233", pgxmock.AnyArg(), fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p, err := svc.RegisterPassenger(context.Background(), validPassenger())
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.NotEqual(t, "correct-horse", p.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte("correct-horse")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterPassengerDuplicate(t *testing.T) {
	t.Run("found by pre-check", func(t *testing.T) {
		svc, mock := newServiceFixture(t)
		mock.ExpectQuery("SELECT EXISTS .+ FROM users").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := svc.RegisterPassenger(context.Background(), validPassenger())
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lost race to unique index", func(t *testing.T) {
		svc, mock := newServiceFixture(t)
		mock.ExpectQuery("SELECT EXISTS .+ FROM users").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("INSERT INTO users").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

		_, err := svc.RegisterPassenger(context.Background(), validPassenger())
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRegisterPassengerValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterPassengerCommand)
		want   string
	}{
		{"missing name", func(c *RegisterPassengerCommand) { c.FullName = "  " }, "full_name is required"},
		{"bad email", func(c *RegisterPassengerCommand) { c.Email = "olena" }, "email must be a valid email address"},
		{"short password", func(c *RegisterPassengerCommand) { c.Password = "short" }, "password must be at least 8 characters"},
		{"missing phone", func(c *RegisterPassengerCommand) { c.Phone = "" }, "phone is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock := newServiceFixture(t)
			cmd := validPassenger()
			tt.mutate(&cmd)

			_, err := svc.RegisterPassenger(context.Background(), cmd)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Contains(t, apperr.PublicMessage(err), tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRegisterDriverWritesDriverAndCarAtomically(t *testing.T) {
	svc, mock := newServiceFixture(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS .+ FROM drivers").
		WithArgs("taras@example.com", "+380671112233").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO drivers").
		WithArgs(pgxmock.AnyArg(), "Taras Shevchuk", "taras@example.com", "+380671112233", pgxmock.AnyArg(), "active", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO cars").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "Skoda", "Octavia", "AA1234BB", 2019).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	p, err := svc.RegisterDriver(context.Background(), validDriver())
	require.NoError(t, err)
	assert.Equal(t, DriverStatusActive, p.Driver.Status)
	assert.Nil(t, p.Driver.Rating)
	require.NotNil(t, p.Car)
	assert.Equal(t, p.Driver.ID, p.Car.DriverID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDriverRollsBackWhenCarInsertFails(t *testing.T) {
	svc, mock := newServiceFixture(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS .+ FROM drivers").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO drivers").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO cars").
		WillReturnError(errors.New("value too long for type character varying"))
	mock.ExpectRollback()

	_, err := svc.RegisterDriver(context.Background(), validDriver())
	require.Error(t, err)
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDriverDuplicate(t *testing.T) {
	svc, mock := newServiceFixture(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS .+ FROM drivers").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := svc.RegisterDriver(context.Background(), validDriver())
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDriverCarYear(t *testing.T) {
	for _, year := range []int{1949, fixedNow.Year() + 2, 0} {
		svc, mock := newServiceFixture(t)
		cmd := validDriver()
		cmd.Car.Year = year

		_, err := svc.RegisterDriver(context.Background(), cmd)
		require.Error(t, err, "year %d", year)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

// Cyrillic letters are two bytes each: 40 runes pass max=72 but exceed bcrypt's limit.
var multibytePassword = strings.Repeat("ї", 40)

func TestRegisterPassengerMultibytePasswordTooLong(t *testing.T) {
	svc, mock := newServiceFixture(t)
	cmd := validPassenger()
	cmd.Password = multibytePassword

	_, err := svc.RegisterPassenger(context.Background(), cmd)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, "password must be at most 72 bytes", apperr.PublicMessage(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDriverMultibytePasswordTooLong(t *testing.T) {
	svc, mock := newServiceFixture(t)
	cmd := validDriver()
	cmd.Password = multibytePassword

	_, err := svc.RegisterDriver(context.Background(), cmd)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterAcceptsMultibytePasswordWithinLimit(t *testing.T) {
	svc, mock := newServiceFixture(t)
	cmd := validPassenger()
	cmd.Password = strings.Repeat("ї", 36)

	mock.ExpectQuery("SELECT EXISTS .+ FROM users").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	p, err := svc.RegisterPassenger(context.Background(), cmd)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(cmd.Password)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHashPasswordTooLongIsValidation(t *testing.T) {
	svc, _ := newServiceFixture(t)
	_, err := svc.hashPassword(strings.Repeat("a", 73))
	assert.ErrorIs(t, err, errPasswordTooLong)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func passengerRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "full_name", "email", "phone", "password_hash", "created_at"})
}

func TestAuthenticatePassenger(t *testing.T) {
	hash := hashForTest(t, "correct-horse")

	t.Run("valid credentials", func(t *testing.T) {
		svc, mock := newServiceFixture(t)
		mock.ExpectQuery("SELECT .+ FROM users WHERE email =").
			WithArgs("olena@example.com").
			WillReturnRows(passengerRows().AddRow("u1", "Olena", "olena@example.com", "+380501112233", hash, fixedNow))

		p, err := svc.AuthenticatePassenger(context.Background(), LoginCommand{Email: "OLENA@example.com", Password: "correct-horse"})
		require.NoError(t, err)
		assert.Equal(t, "u1", string(p.ID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, mock := newServiceFixture(t)
		mock.ExpectQuery("SELECT .+ FROM users WHERE email =").
			WillReturnRows(passengerRows().AddRow("u1", "Olena", "olena@example.com", "+380501112233", hash, fixedNow))

		_, err := svc.AuthenticatePassenger(context.Background(), LoginCommand{Email: "olena@example.com", Password: "wrong-horse"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, mock := newServiceFixture(t)
		mock.ExpectQuery("SELECT .+ FROM users WHERE email =").
			WillReturnError(pgx.ErrNoRows)

		_, err := svc.AuthenticatePassenger(context.Background(), LoginCommand{Email: "nobody@example.com", Password: "whatever1"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestAuthenticateDriver(t *testing.T) {
	svc, mock := newServiceFixture(t)
	rating := 4.75
	mock.ExpectQuery("SELECT .+ FROM drivers d WHERE d.email =").
		WithArgs("taras@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "full_name", "email", "phone", "password_hash", "status", "rating", "created_at"}).
			AddRow("d1", "Taras", "taras@example.com", "+380671112233", hashForTest(t, "battery-staple"), "active", &rating, fixedNow))

	d, err := svc.AuthenticateDriver(context.Background(), LoginCommand{Email: "taras@example.com", Password: "battery-staple"})
	require.NoError(t, err)
	require.NotNil(t, d.Rating)
	assert.Equal(t, 4.75, *d.Rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverDashboard(t *testing.T) {
	svc, mock := newServiceFixture(t)
	carID, brand, model, plate := "c1", "Skoda", "Octavia", "AA1234BB"
	year := int32(2019)

	mock.ExpectQuery("SELECT .+ FROM drivers d LEFT JOIN cars c").
		WithArgs("d1").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "full_name", "email", "phone", "password_hash", "status", "rating", "created_at",
			"car_id", "brand", "model", "plate_number", "year",
		}).AddRow("d1", "Taras", "taras@example.com", "+380671112233", "x", "active", nil, fixedNow,
			&carID, &brand, &model, &plate, &year))

	p, err := svc.DriverDashboard(context.Background(), "d1")
	require.NoError(t, err)
	assert.Nil(t, p.Driver.Rating)
	require.NotNil(t, p.Car)
	assert.Equal(t, "Octavia", p.Car.Model)
	assert.Equal(t, 2019, p.Car.Year)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileNotFound(t *testing.T) {
	svc, mock := newServiceFixture(t)
	mock.ExpectQuery("SELECT .+ FROM users WHERE id =").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.Profile(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

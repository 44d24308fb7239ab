package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-lifeup/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-lifeup/internal/session"
	"github.com/ovaphlow/pitchfork/service-lifeup/pkg/utilities"
)

var (
	identityCols = []string{"auth_id", "user_id", "auth_type", "auth_identifier", "access_token", "create_time"}
	userCols     = []string{"user_id", "nickname", "user_head", "user_address", "pwd_salt", "auth_types", "create_time", "update_time", "is_del"}
	fixedNow     = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *session.Service) {
	t.Helper()
	mockdb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockdb.Close() })

	sessions := session.NewService(session.NewMemoryStore(), session.Config{TTL: time.Hour, MinTTL: time.Minute}, nil)
	svc := NewService(sqlx.NewDb(mockdb, "postgres"), sessions, Config{BcryptCost: bcrypt.MinCost}, nil)
	svc.now = func() time.Time { return fixedNow }
	return svc, mock, sessions
}

func expectAccountInsert(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO user_info").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_attribute").WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestOAuthLoginCreatesThenReuses(t *testing.T) {
	svc, mock, sessions := newTestService(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM user_auth").
		WithArgs("wechat", "openid-1").
		WillReturnRows(sqlmock.NewRows(identityCols))
	expectAccountInsert(mock)
	mock.ExpectQuery("SELECT (.+) FROM user_auth").WillReturnRows(sqlmock.NewRows(identityCols))
	mock.ExpectExec("INSERT INTO user_auth").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "wechat", "openid-1", "", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	first, err := svc.OAuthLogin(ctx, OAuthRequest{AuthType: "wechat", AuthIdentifier: " openid-1 ", Nickname: "ann"})
	require.NoError(t, err)
	p, ok, err := sessions.Lookup(ctx, first)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ann", p.Nickname)
	assert.Equal(t, []string{"wechat"}, p.AuthTypes)

	mock.ExpectQuery("SELECT (.+) FROM user_auth").
		WithArgs("wechat", "openid-1").
		WillReturnRows(sqlmock.NewRows(identityCols).AddRow(int64(1), p.ID, "wechat", "openid-1", "", fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM user_info").
		WithArgs(p.ID).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(p.ID, "ann", "", "", "salt", "{wechat}", fixedNow, fixedNow, false))

	second, err := svc.OAuthLogin(ctx, OAuthRequest{AuthType: "wechat", AuthIdentifier: "openid-1"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	again, ok, err := sessions.Lookup(ctx, second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.ID, again.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOAuthLoginRejectsCredentialedType(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.OAuthLogin(context.Background(), OAuthRequest{AuthType: "phone", AuthIdentifier: "13800000000"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestOAuthLoginDeletedOwnerIsNotFound(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.ExpectQuery("SELECT (.+) FROM user_auth").
		WillReturnRows(sqlmock.NewRows(identityCols).AddRow(int64(1), int64(9), "qq", "q-1", "", fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM user_info").WillReturnRows(sqlmock.NewRows(userCols))

	_, err := svc.OAuthLogin(context.Background(), OAuthRequest{AuthType: "qq", AuthIdentifier: "q-1"})
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterTwiceConflicts(t *testing.T) {
	svc, mock, _ := newTestService(t)
	ctx := context.Background()
	req := RegisterRequest{AuthType: "phone", AuthIdentifier: "13800001234", Password: "secret123"}

	expectAccountInsert(mock)
	mock.ExpectQuery("SELECT (.+) FROM user_auth").WillReturnRows(sqlmock.NewRows(identityCols))
	mock.ExpectExec("INSERT INTO user_auth").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	token, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Len(t, token, 32)

	expectAccountInsert(mock)
	mock.ExpectQuery("SELECT (.+) FROM user_auth").
		WillReturnRows(sqlmock.NewRows(identityCols).AddRow(int64(1), int64(2), "phone", "13800001234", "h", fixedNow))
	mock.ExpectRollback()

	_, err = svc.Register(ctx, req)
	assert.ErrorIs(t, err, ErrAccountExists)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterUniqueViolationConflicts(t *testing.T) {
	svc, mock, _ := newTestService(t)

	expectAccountInsert(mock)
	mock.ExpectQuery("SELECT (.+) FROM user_auth").WillReturnRows(sqlmock.NewRows(identityCols))
	mock.ExpectExec("INSERT INTO user_auth").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := svc.Register(context.Background(), RegisterRequest{AuthType: "qq", AuthIdentifier: "q-7"})
	assert.ErrorIs(t, err, ErrAccountExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	cases := []RegisterRequest{
		{AuthType: "email", AuthIdentifier: "a@b.c", Password: "secret123"},
		{AuthType: "app", AuthIdentifier: "  ", Password: "secret123"},
		{AuthType: "app", AuthIdentifier: "bob", Password: "123"},
		{AuthType: "phone", AuthIdentifier: "138", Password: "0123456789012345678901234567890123"},
	}
	for _, c := range cases {
		_, err := svc.Register(ctx, c)
		assert.ErrorIs(t, err, apperr.ErrValidation, "%+v", c)
	}
}

func TestAppLogin(t *testing.T) {
	svc, mock, _ := newTestService(t)
	ctx := context.Background()
	hash, err := utilities.BcryptHasher{Cost: bcrypt.MinCost}.Hash("secret123", "salt-1")
	require.NoError(t, err)

	expect := func() {
		mock.ExpectQuery("SELECT (.+) FROM user_auth").
			WithArgs("app", "bob").
			WillReturnRows(sqlmock.NewRows(identityCols).AddRow(int64(1), int64(3), "app", "bob", hash, fixedNow))
		mock.ExpectQuery("SELECT (.+) FROM user_info").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(3), "bob", "", "", "salt-1", "{app}", fixedNow, fixedNow, false))
	}

	expect()
	token, err := svc.AppLogin(ctx, "app", "bob", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	expect()
	_, err = svc.AppLogin(ctx, "app", "bob", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)

	_, err = svc.AppLogin(ctx, "wechat", "bob", "secret123")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCodeLogin(t *testing.T) {
	svc, mock, _ := newTestService(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM user_auth").WillReturnRows(sqlmock.NewRows(identityCols))
	_, err := svc.CodeLogin(ctx, "phone", "13900000000")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.CodeLogin(ctx, "app", "bob")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	mock.ExpectQuery("SELECT (.+) FROM user_auth").
		WillReturnRows(sqlmock.NewRows(identityCols).AddRow(int64(1), int64(4), "phone", "13900000001", "h", fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM user_info").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(4), "lifeup_0001", "", "", "s", "{phone}", fixedNow, fixedNow, false))
	token, err := svc.CodeLogin(ctx, "phone", "13900000001")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogoutRevokesSession(t *testing.T) {
	svc, mock, sessions := newTestService(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT (.+) FROM user_auth").
		WillReturnRows(sqlmock.NewRows(identityCols).AddRow(int64(1), int64(4), "phone", "139", "h", fixedNow))
	mock.ExpectQuery("SELECT (.+) FROM user_info").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(4), "n", "", "", "s", "{phone}", fixedNow, fixedNow, false))
	token, err := svc.CodeLogin(ctx, "phone", "139")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))
	_, ok, err := sessions.Lookup(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDefaultNickname(t *testing.T) {
	assert.Equal(t, "lifeup_1234", defaultNickname("13800001234"))
	assert.Equal(t, "lifeup_ab", defaultNickname("ab"))
}

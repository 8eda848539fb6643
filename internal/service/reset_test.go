package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) requestCode(t *testing.T, email string) string {
	t.Helper()
	_, err := f.reset.RequestReset(context.Background(), ResetRequest{Email: email, BotToken: botOK})
	require.NoError(t, err)
	f.reset.Wait()
	d := f.notifier.Deliveries()
	require.NotEmpty(t, d)
	return d[len(d)-1].Code
}

func TestRequestReset_DevCodeOutsideProduction(t *testing.T) {
	f := newFixture(t, false)
	f.register(t)

	ticket, err := f.reset.RequestReset(context.Background(), ResetRequest{Email: " Alice@X.com ", BotToken: botOK})
	require.NoError(t, err)
	f.reset.Wait()

	assert.Equal(t, GenericResetMessage, ticket.Message)
	assert.Len(t, ticket.DevCode, 6)
	d := f.notifier.Deliveries()
	require.Len(t, d, 1)
	assert.Equal(t, "alice@x.com", d[0].Email)
	assert.Equal(t, ticket.DevCode, d[0].Code)

	recs := f.db.ResetRecords()
	require.Len(t, recs, 1)
	assert.NotEqual(t, ticket.DevCode, recs[0].CodeHash, "only the hash is stored")
	assert.Equal(t, f.clock().Add(ResetCodeTTL), recs[0].ExpiresAt)
}

func TestRequestReset_IndistinguishableInProduction(t *testing.T) {
	f := newFixture(t, true)
	f.register(t)
	ctx := context.Background()

	known, err := f.reset.RequestReset(ctx, ResetRequest{Email: "alice@x.com", BotToken: botOK})
	require.NoError(t, err)
	unknown, err := f.reset.RequestReset(ctx, ResetRequest{Email: "nobody@x.com", BotToken: botOK})
	require.NoError(t, err)
	f.reset.Wait()

	a, _ := json.Marshal(known)
	b, _ := json.Marshal(unknown)
	assert.Equal(t, string(a), string(b))
	assert.Empty(t, known.DevCode)
	assert.Len(t, f.notifier.Deliveries(), 1)
	assert.Len(t, f.db.ResetRecords(), 1, "no record for unknown email")
}

func TestRequestReset_InactiveAccountGetsNoCode(t *testing.T) {
	f := newFixture(t, false)
	reg := f.register(t)
	f.db.SetActive(reg.User.ID, false)

	ticket, err := f.reset.RequestReset(context.Background(), ResetRequest{Email: "alice@x.com", BotToken: botOK})
	require.NoError(t, err)
	f.reset.Wait()

	assert.Equal(t, GenericResetMessage, ticket.Message)
	assert.Empty(t, ticket.DevCode)
	assert.Empty(t, f.notifier.Deliveries())
}

func TestRequestReset_DeliveryFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, true)
	f.register(t)
	f.notifier.Err = errors.New("smtp down")

	ticket, err := f.reset.RequestReset(context.Background(), ResetRequest{Email: "alice@x.com", BotToken: botOK})
	require.NoError(t, err)
	f.reset.Wait()

	assert.Equal(t, GenericResetMessage, ticket.Message)
	assert.Len(t, f.db.ResetRecords(), 1)
}

func TestRequestReset_ValidationAndBotGate(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.reset.RequestReset(ctx, ResetRequest{Email: "  ", BotToken: botOK})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.reset.RequestReset(ctx, ResetRequest{Email: "alice@x.com", BotToken: ""})
	assert.ErrorIs(t, err, ErrBotCheckFailed)
}

func TestVerifyCode_IdempotentAndSideEffectFree(t *testing.T) {
	f := newFixture(t, true)
	f.register(t)
	code := f.requestCode(t, "alice@x.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := f.reset.VerifyCode(ctx, "ALICE@x.com", code)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.False(t, f.db.ResetRecords()[0].Used)

	ok, err := f.reset.VerifyCode(ctx, "alice@x.com", "000000")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.reset.VerifyCode(ctx, "alice@x.com", "12ab56")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.reset.VerifyCode(ctx, "", code)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVerifyCode_Expiry(t *testing.T) {
	f := newFixture(t, true)
	f.register(t)
	code := f.requestCode(t, "alice@x.com")
	ctx := context.Background()

	f.advance(ResetCodeTTL)
	ok, err := f.reset.VerifyCode(ctx, "alice@x.com", code)
	require.NoError(t, err)
	assert.True(t, ok, "still valid at exactly the expiry instant")

	f.advance(time.Minute)
	ok, err = f.reset.VerifyCode(ctx, "alice@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok)

	err = f.reset.ResetPassword(ctx, "alice@x.com", code, "newpass99")
	assert.ErrorIs(t, err, ErrInvalidResetCode)
}

func TestResetPassword_UsedIsTerminal(t *testing.T) {
	f := newFixture(t, true)
	reg := f.register(t)
	code := f.requestCode(t, "alice@x.com")
	ctx := context.Background()

	require.NoError(t, f.reset.ResetPassword(ctx, "alice@x.com", code, "newpass99"))

	ok, err := f.reset.VerifyCode(ctx, "alice@x.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
	err = f.reset.ResetPassword(ctx, "alice@x.com", code, "another99")
	assert.ErrorIs(t, err, ErrInvalidResetCode)

	u, err := f.creds.FindByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.True(t, f.creds.VerifyPassword(u, "newpass99"))
}

func TestResetPassword_ShortPasswordLeavesCodeUnused(t *testing.T) {
	f := newFixture(t, true)
	f.register(t)
	code := f.requestCode(t, "alice@x.com")
	ctx := context.Background()

	err := f.reset.ResetPassword(ctx, "alice@x.com", code, "1234567")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "newPassword", ve.Field)

	ok, err := f.reset.VerifyCode(ctx, "alice@x.com", code)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResetPassword_WrongEmailForCode(t *testing.T) {
	f := newFixture(t, true)
	f.register(t)
	code := f.requestCode(t, "alice@x.com")

	err := f.reset.ResetPassword(context.Background(), "bob@x.com", code, "newpass99")
	assert.ErrorIs(t, err, ErrInvalidResetCode)
}

func TestResetPassword_EarlierCodesStayValid(t *testing.T) {
	f := newFixture(t, true)
	f.register(t)
	first := f.requestCode(t, "alice@x.com")
	second := f.requestCode(t, "alice@x.com")
	ctx := context.Background()

	if first == second {
		t.Skip("codes collided")
	}
	for _, c := range []string{first, second} {
		ok, err := f.reset.VerifyCode(ctx, "alice@x.com", c)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestPasswordResetScenario(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	reg, err := f.auth.Register(ctx, alice())
	require.NoError(t, err)
	login, err := f.auth.Login(ctx, Login{Identifier: "alice", Password: "pw123456", BotToken: botOK})
	require.NoError(t, err)
	_, err = f.sessions.ResolveSession(ctx, reg.Token.Raw)
	assert.ErrorIs(t, err, ErrInvalidSession, "login replaced the registration session")

	ticket, err := f.reset.RequestReset(ctx, ResetRequest{Email: "alice@x.com", BotToken: botOK})
	require.NoError(t, err)
	f.reset.Wait()
	require.NotEmpty(t, ticket.DevCode)

	ok, err := f.reset.VerifyCode(ctx, "alice@x.com", ticket.DevCode)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.reset.ResetPassword(ctx, "alice@x.com", ticket.DevCode, "newpass99"))

	_, err = f.sessions.ResolveSession(ctx, login.Token.Raw)
	assert.ErrorIs(t, err, ErrInvalidSession, "reset revokes live sessions")
	assert.Zero(t, f.db.SessionCount(reg.User.ID))

	_, err = f.auth.Login(ctx, Login{Identifier: "alice", Password: "pw123456", BotToken: botOK})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	again, err := f.auth.Login(ctx, Login{Identifier: "alice", Password: "newpass99", BotToken: botOK})
	require.NoError(t, err)
	uid, err := f.sessions.ResolveSession(ctx, again.Token.Raw)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, uid)
}

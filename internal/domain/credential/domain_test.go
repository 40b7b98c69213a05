package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/elevare/server/internal/model"
	"github.com/elevare/server/internal/port/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockCredentialDB struct {
	mock.Mock
}

func (m *MockCredentialDB) Get(ctx context.Context, userID, provider string) (*model.ProviderCredential, error) {
	args := m.Called(ctx, userID, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProviderCredential), args.Error(1)
}

func (m *MockCredentialDB) Upsert(ctx context.Context, cred *model.ProviderCredential) error {
	return m.Called(ctx, cred).Error(0)
}

func (m *MockCredentialDB) Delete(ctx context.Context, userID, provider string) error {
	return m.Called(ctx, userID, provider).Error(0)
}

// reverseCrypto is a reversible stand-in for the AES adapter.
type reverseCrypto struct {
	failDecrypt bool
}

func (c *reverseCrypto) Encrypt(plaintext string) (string, error) {
	return "enc:" + reverse(plaintext), nil
}

func (c *reverseCrypto) Decrypt(ciphertext string) (string, error) {
	if c.failDecrypt {
		return "", errors.New("cipher: message authentication failed")
	}
	return reverse(ciphertext[len("enc:"):]), nil
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

const userKey = "AIzaSyD-user-key-0123456789"

func newTestDomain(serverKey string) (*Domain, *MockCredentialDB, *reverseCrypto) {
	db := new(MockCredentialDB)
	crypto := &reverseCrypto{}
	return NewCredentialDomain(db, crypto, Config{ServerAPIKey: serverKey}, zap.NewNop()), db, crypto
}

func TestSetAPIKey_EncryptsAndStoresHint(t *testing.T) {
	d, db, _ := newTestDomain("")

	db.On("Upsert", mock.Anything, mock.MatchedBy(func(c *model.ProviderCredential) bool {
		return c.UserID == "user-1" && c.Provider == "gemini" &&
			c.EncryptedKey != userKey && c.KeyHint == "…6789"
	})).Return(nil).Once()

	status, err := d.SetAPIKey(context.Background(), "user-1", "  "+userKey+"\n")
	require.NoError(t, err)
	assert.Equal(t, SourceUser, status.Source)
	assert.True(t, status.Configured)
	db.AssertExpectations(t)
}

func TestSetAPIKey_RejectsInvalid(t *testing.T) {
	d, db, _ := newTestDomain("")

	for _, k := range []string{"", "short", "has a space inside the key"} {
		_, err := d.SetAPIKey(context.Background(), "user-1", k)
		assert.ErrorIs(t, err, ErrInvalidAPIKey, k)
	}
	db.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestResolveAPIKey_UserKey(t *testing.T) {
	d, db, crypto := newTestDomain("server-key")
	enc, _ := crypto.Encrypt(userKey)
	db.On("Get", mock.Anything, "user-1", "gemini").Return(&model.ProviderCredential{EncryptedKey: enc}, nil)

	key, err := d.ResolveAPIKey(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, userKey, key)
}

func TestResolveAPIKey_ServerFallback(t *testing.T) {
	d, db, _ := newTestDomain("server-key")
	db.On("Get", mock.Anything, "user-1", "gemini").Return(nil, nil)

	key, err := d.ResolveAPIKey(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "server-key", key)
}

func TestResolveAPIKey_Missing(t *testing.T) {
	d, db, _ := newTestDomain("")
	db.On("Get", mock.Anything, "user-1", "gemini").Return(nil, nil)

	_, err := d.ResolveAPIKey(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, outbound.IsMissingCredential(err))
}

func TestResolveAPIKey_UndecryptableTreatedAsAbsent(t *testing.T) {
	d, db, crypto := newTestDomain("")
	crypto.failDecrypt = true
	db.On("Get", mock.Anything, "user-1", "gemini").Return(&model.ProviderCredential{EncryptedKey: "enc:x"}, nil)

	_, err := d.ResolveAPIKey(context.Background(), "user-1")
	assert.True(t, outbound.IsMissingCredential(err))
}

func TestResolveAPIKey_DatabaseError(t *testing.T) {
	d, db, _ := newTestDomain("server-key")
	db.On("Get", mock.Anything, "user-1", "gemini").Return(nil, errors.New("timeout"))

	_, err := d.ResolveAPIKey(context.Background(), "user-1")
	require.Error(t, err)
	assert.False(t, outbound.IsMissingCredential(err))
}

func TestStatus(t *testing.T) {
	d, db, _ := newTestDomain("server-key")
	db.On("Get", mock.Anything, "user-1", "gemini").Return(&model.ProviderCredential{KeyHint: "…6789"}, nil)
	db.On("Get", mock.Anything, "user-2", "gemini").Return(nil, nil)

	s, err := d.Status(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, SourceUser, s.Source)
	assert.Equal(t, "…6789", s.Hint)

	s, err = d.Status(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Equal(t, SourceServer, s.Source)

	bare, bareDB, _ := newTestDomain("")
	bareDB.On("Get", mock.Anything, "user-2", "gemini").Return(nil, nil)
	s, err = bare.Status(context.Background(), "user-2")
	require.NoError(t, err)
	assert.False(t, s.Configured)
	assert.Equal(t, SourceNone, s.Source)
}

func TestDeleteAPIKey(t *testing.T) {
	d, db, _ := newTestDomain("")
	db.On("Delete", mock.Anything, "user-1", "gemini").Return(nil).Once()

	require.NoError(t, d.DeleteAPIKey(context.Background(), "user-1"))
	db.AssertExpectations(t)
}

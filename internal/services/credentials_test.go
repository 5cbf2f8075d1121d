package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/mocks"
	"github.com/Corphon/ScriptStudio/internal/storage"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

func TestParseKeyInput(t *testing.T) {
	keys := ParseKeyInput("  key-one \n\n\tkey-two\n   \n")
	assert.Equal(t, []string{"key-one", "key-two"}, keys)
	assert.Empty(t, ParseKeyInput("\n \n"))
}

func TestCredentialAddBatch(t *testing.T) {
	ctx := context.Background()
	validator := &mocks.KeyValidator{}
	creds := NewCredentialService(storage.NewMemoryStore(), validator, nil, "", nil)

	validator.On("ValidateKey", mock.Anything, "AIzaExisting0001").Return(nil).Once()
	_, err := creds.Add(ctx, []string{"AIzaExisting0001"})
	require.NoError(t, err)

	validator.On("ValidateKey", mock.Anything, "AIzaGoodKey00002").Return(nil).Once()
	validator.On("ValidateKey", mock.Anything, "AIzaBadKey000003").Return(errors.New("invalid API key")).Once()

	res, err := creds.Add(ctx, []string{"AIzaGoodKey00002", "AIzaExisting0001", "AIzaBadKey000003"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "already exists", res.Errors[0].Message)
	assert.Equal(t, "••••0001", res.Errors[0].Key)
	assert.Equal(t, "invalid API key", res.Errors[1].Message)

	keys, err := creds.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AIzaGoodKey00002", "AIzaExisting0001"}, keys)
	validator.AssertExpectations(t)
}

func TestCredentialAddRejectsDuplicatesWithinBatch(t *testing.T) {
	ctx := context.Background()
	validator := &mocks.KeyValidator{}
	creds := NewCredentialService(storage.NewMemoryStore(), validator, nil, "", nil)
	validator.On("ValidateKey", mock.Anything, "dup-key-123456").Return(nil).Once()

	res, err := creds.Add(ctx, []string{"dup-key-123456", " dup-key-123456 "})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "duplicated in this batch", res.Errors[0].Message)
	validator.AssertNumberOfCalls(t, "ValidateKey", 1)
}

func TestCredentialListMasksKeys(t *testing.T) {
	ctx := context.Background()
	creds := NewCredentialService(storage.NewMemoryStore(), nil, nil, "", nil)
	_, err := creds.Add(ctx, []string{"short", "AIzaSyA1234567890abcdef"})
	require.NoError(t, err)

	list, err := creds.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.True(t, list[0].Active)
	assert.Equal(t, "•••••", list[0].Masked)
	assert.Equal(t, "AIza"+strings.Repeat("•", 25)+"abcdef", list[1].Masked)
	assert.False(t, list[1].Active)
}

func TestCredentialDelete(t *testing.T) {
	ctx := context.Background()
	creds := NewCredentialService(storage.NewMemoryStore(), nil, nil, "", nil)
	_, err := creds.Add(ctx, []string{"key-aaaaaaaaaa", "key-bbbbbbbbbb"})
	require.NoError(t, err)

	require.NoError(t, creds.Delete(ctx, "key-aaaaaaaaaa"))
	require.NoError(t, creds.Delete(ctx, "unknown"))
	keys, err := creds.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"key-bbbbbbbbbb"}, keys)

	assert.True(t, apperrors.IsNotFoundError(creds.DeleteAt(ctx, 5)))
	require.NoError(t, creds.DeleteAt(ctx, 0))
	_, err = creds.Keys(ctx)
	assert.True(t, apperrors.IsUnauthorizedError(err))
}

func TestCredentialKeysFallsBackToEnvironment(t *testing.T) {
	ctx := context.Background()
	creds := NewCredentialService(storage.NewMemoryStore(), nil, nil, " env-key ", nil)

	keys, err := creds.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"env-key"}, keys)
}

func TestCredentialKeysSealedAtRest(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	sealer, err := utils.NewSealer("secret")
	require.NoError(t, err)

	creds := NewCredentialService(store, nil, sealer, "", nil)
	_, err = creds.Add(ctx, []string{"plain-key-value"})
	require.NoError(t, err)

	raw, found, err := store.Get(ctx, storage.CredentialsKey)
	require.NoError(t, err)
	require.True(t, found)
	assert.NotContains(t, raw, "plain-key-value")

	reloaded := NewCredentialService(store, nil, sealer, "", nil)
	keys, err := reloaded.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"plain-key-value"}, keys)
}

func TestCredentialAddMixedBatch(t *testing.T) {
	ctx := context.Background()
	validator := &mocks.KeyValidator{}
	creds := NewCredentialService(storage.NewMemoryStore(), validator, nil, "", nil)

	validator.On("ValidateKey", mock.Anything, "AIzaStored000001").Return(nil).Once()
	_, err := creds.Add(ctx, []string{"AIzaStored000001"})
	require.NoError(t, err)

	validator.On("ValidateKey", mock.Anything, "AIzaFresh0000002").Return(nil).Once()
	res, err := creds.Add(ctx, []string{"AIzaStored000001", "AIzaFresh0000002", "AIzaFresh0000002"})
	require.NoError(t, err)

	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "already exists", res.Errors[0].Message)
	assert.Equal(t, "duplicated in this batch", res.Errors[1].Message)
	validator.AssertExpectations(t)

	keys, err := creds.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AIzaFresh0000002", "AIzaStored000001"}, keys)
}

func TestCredentialWritesKeepKeysSealedWithAnotherSecret(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	sealer, err := utils.NewSealer("secret")
	require.NoError(t, err)

	first := NewCredentialService(store, nil, sealer, "", nil)
	_, err = first.Add(ctx, []string{"AIzaOriginal0001"})
	require.NoError(t, err)

	// secret removed: the sealed key is unreadable but must survive writes
	second := NewCredentialService(store, nil, nil, "", nil)
	_, err = second.Add(ctx, []string{"AIzaNewKey000002", "AIzaTemp00000003"})
	require.NoError(t, err)
	require.NoError(t, second.Delete(ctx, "AIzaTemp00000003"))

	keys, err := second.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AIzaNewKey000002"}, keys)

	// secret restored
	third := NewCredentialService(store, nil, sealer, "", nil)
	keys, err = third.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AIzaNewKey000002", "AIzaOriginal0001"}, keys)
}

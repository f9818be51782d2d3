package redemption

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsedStore struct {
	used    map[string]bool
	isErr   error
	markErr error
}

func (s *fakeUsedStore) IsUsed(_ context.Context, code string) (bool, error) {
	if s.isErr != nil {
		return false, s.isErr
	}
	return s.used[code], nil
}

func (s *fakeUsedStore) MarkUsed(_ context.Context, code string) error {
	if s.markErr != nil {
		return s.markErr
	}
	if s.used == nil {
		s.used = make(map[string]bool)
	}
	s.used[code] = true
	return nil
}

func TestRedeemValidCode(t *testing.T) {
	v := NewVerifier([]string{"SYKSY2026"}, 30)

	result, err := v.Redeem(context.Background(), "SYKSY2026")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Koodi hyväksytty!", result.Message)
	assert.Equal(t, 30, result.ExpiryDays)
}

func TestRedeemCaseInsensitive(t *testing.T) {
	v := NewVerifier([]string{"SYKSY2026"}, 30)

	for _, code := range []string{"syksy2026", "Syksy2026", "  SYKSY2026  "} {
		result, err := v.Redeem(context.Background(), code)
		require.NoError(t, err)
		assert.True(t, result.Success, "code %q should match", code)
	}
}

func TestRedeemInvalidCode(t *testing.T) {
	v := NewVerifier([]string{"SYKSY2026"}, 30)

	result, err := v.Redeem(context.Background(), "WRONG")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "Virheellinen koodi", result.Message)
	assert.Zero(t, result.ExpiryDays)
}

func TestRedeemEmptyInput(t *testing.T) {
	v := NewVerifier(nil, 30)

	for _, code := range []string{"", "   ", "\t\n"} {
		result, err := v.Redeem(context.Background(), code)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "Koodi puuttuu", result.Message)
	}
}

func TestBuiltinFallbackCodes(t *testing.T) {
	v := NewVerifier(nil, 0)

	result, err := v.Redeem(context.Background(), "summari2024")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, DefaultExpiryDays, result.ExpiryDays)

	result, err = v.Redeem(context.Background(), "koskelo123")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestConfiguredCodesReplaceBuiltins(t *testing.T) {
	v := NewVerifier([]string{"ONLYTHIS"}, 30)

	result, err := v.Redeem(context.Background(), "SUMMARI2024")
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestSingleUse(t *testing.T) {
	store := &fakeUsedStore{}
	v := NewVerifier([]string{"ONCE"}, 30).WithSingleUse(store)

	result, err := v.Redeem(context.Background(), "ONCE")
	require.NoError(t, err)
	assert.True(t, result.Success)

	result, err = v.Redeem(context.Background(), "once")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Koodi on jo käytetty", result.Message)
}

func TestSingleUseStoreFailureFailsClosed(t *testing.T) {
	store := &fakeUsedStore{isErr: errors.New("redis down")}
	v := NewVerifier([]string{"ONCE"}, 30).WithSingleUse(store)

	result, err := v.Redeem(context.Background(), "ONCE")
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestSingleUseMarkFailureFailsClosed(t *testing.T) {
	store := &fakeUsedStore{markErr: errors.New("redis down")}
	v := NewVerifier([]string{"ONCE"}, 30).WithSingleUse(store)

	result, err := v.Redeem(context.Background(), "ONCE")
	assert.Error(t, err)
	assert.Nil(t, result)
}

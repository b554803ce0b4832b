package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingRepository(t *testing.T) {
	repos, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		value, err := repos.Setting.Get(ctx, SettingsKey)
		require.NoError(t, err)
		assert.Empty(t, value)
	})

	t.Run("set and get", func(t *testing.T) {
		err := repos.Setting.Set(ctx, SettingsKey, `{"autoAnalyze":true}`)
		require.NoError(t, err)

		value, err := repos.Setting.Get(ctx, SettingsKey)
		require.NoError(t, err)
		assert.JSONEq(t, `{"autoAnalyze":true}`, value)
	})

	t.Run("set overwrites", func(t *testing.T) {
		err := repos.Setting.Set(ctx, SettingsKey, `{"autoAnalyze":false}`)
		require.NoError(t, err)

		value, err := repos.Setting.Get(ctx, SettingsKey)
		require.NoError(t, err)
		assert.JSONEq(t, `{"autoAnalyze":false}`, value)
	})

	t.Run("delete", func(t *testing.T) {
		err := repos.Setting.Delete(ctx, SettingsKey)
		require.NoError(t, err)

		value, err := repos.Setting.Get(ctx, SettingsKey)
		require.NoError(t, err)
		assert.Empty(t, value)
	})

	t.Run("delete absent key is not an error", func(t *testing.T) {
		assert.NoError(t, repos.Setting.Delete(ctx, "no.such.key"))
	})
}

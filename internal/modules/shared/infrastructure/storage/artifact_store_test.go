package storage

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"label-voice-app/internal/config"
	"label-voice-app/internal/modules/label/domain"
)

func newTestStore(t *testing.T) *ArtifactStore {
	t.Helper()
	store, err := NewArtifactStore(&config.ArtifactsConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestArtifactStore_ServeOnceThenDelete(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Put(domain.ArtifactAudio, []byte("ID3audio"), "audio/mpeg", ".mp3")
	require.NoError(t, err)
	a, ok := store.Get(id)
	require.True(t, ok)
	require.Equal(t, "audio.mp3", a.Filename)

	rec := httptest.NewRecorder()
	require.NoError(t, store.Serve(rec, a.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "audio.mp3")
	require.Equal(t, "ID3audio", rec.Body.String())

	// ファイルは配信後に削除される
	_, statErr := os.Stat(filepath.Join(store.Dir(), a.ID+".mp3"))
	require.True(t, os.IsNotExist(statErr))

	// 2回目は見つからない
	err = store.Serve(httptest.NewRecorder(), a.ID)
	require.True(t, errors.Is(err, ErrArtifactNotFound))
}

func TestArtifactStore_ReadAndDelete(t *testing.T) {
	store := newTestStore(t)

	id, err := store.Put(domain.ArtifactCard, []byte("png"), "image/png", ".png")
	require.NoError(t, err)

	a, ok := store.Get(id)
	require.True(t, ok)
	require.Equal(t, domain.ArtifactCard, a.Kind)

	data, err := store.ReadAndDelete(id)
	require.NoError(t, err)
	require.Equal(t, []byte("png"), data)

	_, ok = store.Get(id)
	require.False(t, ok)

	_, err = store.ReadAndDelete(id)
	require.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestArtifactStore_Sweep(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return base }
	oldID, err := store.Put(domain.ArtifactAudio, []byte("old"), "audio/wav", ".wav")
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(20 * time.Minute) }
	freshID, err := store.Put(domain.ArtifactAudio, []byte("fresh"), "audio/wav", ".wav")
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(40 * time.Minute) }
	require.Equal(t, 1, store.Sweep(30*time.Minute))

	_, ok := store.Get(oldID)
	require.False(t, ok)
	_, ok = store.Get(freshID)
	require.True(t, ok)
}

func TestArtifactStore_Close(t *testing.T) {
	store, err := NewArtifactStore(&config.ArtifactsConfig{Dir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Put(domain.ArtifactCard, []byte("png"), "image/png", ".png")
	require.NoError(t, err)

	require.NoError(t, store.Close())
	_, statErr := os.Stat(store.Dir())
	require.True(t, os.IsNotExist(statErr))
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"label-voice-app/internal/config"
	"label-voice-app/internal/modules/label/domain"
)

// ErrArtifactNotFound 一時ファイルが存在しない（配信済み・期限切れを含む）
var ErrArtifactNotFound = errors.New("artifact not found")

// Artifact 保存済みの一時ファイル
type Artifact struct {
	ID          string
	Kind        domain.ArtifactKind
	ContentType string
	Filename    string
	Size        int64
	CreatedAt   time.Time

	path string
}

// ArtifactStore 音声と画像カードを専用の一時ディレクトリに保存し、1回配信したら削除する
type ArtifactStore struct {
	dir   string
	mu    sync.Mutex
	items map[string]*Artifact
	now   func() time.Time
}

// NewArtifactStore 新しいArtifactStoreを作成
func NewArtifactStore(cfg *config.ArtifactsConfig) (*ArtifactStore, error) {
	dir, err := os.MkdirTemp(cfg.Dir, "label-voice-")
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact dir: %w", err)
	}
	return &ArtifactStore{
		dir:   dir,
		items: make(map[string]*Artifact),
		now:   time.Now,
	}, nil
}

// Dir 一時ディレクトリのパス
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Put データを保存してIDを返す
func (s *ArtifactStore) Put(kind domain.ArtifactKind, data []byte, contentType, ext string) (string, error) {
	id := uuid.NewString()
	path := filepath.Join(s.dir, id+ext)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	a := &Artifact{
		ID:          id,
		Kind:        kind,
		ContentType: contentType,
		Filename:    string(kind) + ext,
		Size:        int64(len(data)),
		CreatedAt:   s.now(),
		path:        path,
	}

	s.mu.Lock()
	s.items[id] = a
	s.mu.Unlock()

	return id, nil
}

// Get 配信せずにメタデータを返す
func (s *ArtifactStore) Get(id string) (*Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	return a, ok
}

// take 台帳から取り除く。同じIDを二重に配信しない
func (s *ArtifactStore) take(id string) (*Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.items[id]
	if ok {
		delete(s.items, id)
	}
	return a, ok
}

// Serve 一時ファイルをレスポンスに書き出し、書き終えたら削除する
func (s *ArtifactStore) Serve(w http.ResponseWriter, id string) error {
	a, ok := s.take(id)
	if !ok {
		return ErrArtifactNotFound
	}
	defer s.remove(a)

	f, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrArtifactNotFound
		}
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	w.Header().Set("Content-Type", a.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to stream artifact: %w", err)
	}
	return nil
}

// ReadAndDelete 内容を読み込んで削除する（ページ埋め込み・チャット送信用）
func (s *ArtifactStore) ReadAndDelete(id string) ([]byte, error) {
	a, ok := s.take(id)
	if !ok {
		return nil, ErrArtifactNotFound
	}
	defer s.remove(a)

	data, err := os.ReadFile(a.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// Sweep maxAgeより古い未配信ファイルを削除し、削除数を返す
func (s *ArtifactStore) Sweep(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	var expired []*Artifact
	for id, a := range s.items {
		if a.CreatedAt.Before(cutoff) {
			expired = append(expired, a)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	for _, a := range expired {
		s.remove(a)
	}
	return len(expired)
}

// StartSweeper ctxが終わるまで定期的にSweepする
func (s *ArtifactStore) StartSweeper(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 || maxAge <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(maxAge); n > 0 {
					slog.Info("swept stale artifacts", "count", n)
				}
			}
		}
	}()
}

// Close 一時ディレクトリごと削除する
func (s *ArtifactStore) Close() error {
	s.mu.Lock()
	s.items = make(map[string]*Artifact)
	s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove artifact dir: %w", err)
	}
	return nil
}

func (s *ArtifactStore) remove(a *Artifact) {
	if err := os.Remove(a.path); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to remove artifact", "id", a.ID, "error", err)
	}
}

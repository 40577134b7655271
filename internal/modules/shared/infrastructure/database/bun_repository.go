package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"

	_ "github.com/go-sql-driver/mysql"

	"label-voice-app/internal/config"
	"label-voice-app/internal/modules/label/domain"
)

// LabelRecord BUNモデル
type LabelRecord struct {
	bun.BaseModel `bun:"table:label_records"`

	ID             string    `bun:"id,pk,type:varchar(36)"`
	SessionID      string    `bun:"session_id,notnull,type:varchar(64)"`
	ImageHash      string    `bun:"image_hash,notnull,type:char(64)"`
	Filename       string    `bun:"filename,type:varchar(255),default:''"`
	Interpretation string    `bun:"interpretation,type:mediumtext"`
	Summary        string    `bun:"summary,type:text"`
	SpokenText     string    `bun:"spoken_text,type:text"`
	Voice          string    `bun:"voice,notnull,type:varchar(32)"`
	AudioFormat    *string   `bun:"audio_format,type:varchar(8)"`
	Status         string    `bun:"status,notnull,type:varchar(16)"`
	ErrorMessage   *string   `bun:"error_message,type:text"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// BunLabelRecordRepository BUN実装
type BunLabelRecordRepository struct {
	db *bun.DB
}

// NewBunLabelRecordRepository 新しいBunLabelRecordRepositoryを作成
func NewBunLabelRecordRepository(cfg *config.MySQLConfig) (*BunLabelRecordRepository, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	sqldb, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := bun.NewDB(sqldb, mysqldialect.New())

	// 接続確認
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &BunLabelRecordRepository{db: db}
	if err := repo.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewBunLabelRecordRepositoryWithDB DBインスタンスから作成（テスト用）
func NewBunLabelRecordRepositoryWithDB(db *bun.DB) *BunLabelRecordRepository {
	return &BunLabelRecordRepository{db: db}
}

// CreateTable テーブルがなければ作成する
func (r *BunLabelRecordRepository) CreateTable(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*LabelRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create label_records table: %w", err)
	}
	return nil
}

// Create 履歴を作成
func (r *BunLabelRecordRepository) Create(ctx context.Context, record *domain.LabelRecord) error {
	model := r.toModel(record)
	if _, err := r.db.NewInsert().Model(model).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create label record: %w", err)
	}
	return nil
}

// FindByID IDで履歴を検索
func (r *BunLabelRecordRepository) FindByID(ctx context.Context, id string) (*domain.LabelRecord, error) {
	model := &LabelRecord{}
	err := r.db.NewSelect().
		Model(model).
		Where("id = ?", id).
		Scan(ctx)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find label record: %w", err)
	}

	return r.toEntity(model), nil
}

// FindBySession セッションの履歴を新しい順に取得
func (r *BunLabelRecordRepository) FindBySession(ctx context.Context, sessionID string, limit int) ([]*domain.LabelRecord, error) {
	var models []LabelRecord
	query := r.db.NewSelect().
		Model(&models).
		Where("session_id = ?", sessionID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to find label records by session: %w", err)
	}
	return r.toEntities(models), nil
}

// FindAll 全履歴を取得
func (r *BunLabelRecordRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.LabelRecord, error) {
	var models []LabelRecord
	query := r.db.NewSelect().
		Model(&models).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to find label records: %w", err)
	}
	return r.toEntities(models), nil
}

// Delete 履歴を削除
func (r *BunLabelRecordRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().
		Model((*LabelRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to delete label record: %w", err)
	}
	return nil
}

// Close データベース接続を閉じる
func (r *BunLabelRecordRepository) Close() error {
	return r.db.Close()
}

// toModel エンティティをモデルに変換
func (r *BunLabelRecordRepository) toModel(record *domain.LabelRecord) *LabelRecord {
	model := &LabelRecord{
		ID:             record.ID,
		SessionID:      record.SessionID,
		ImageHash:      record.ImageHash,
		Filename:       record.Filename,
		Interpretation: record.Interpretation,
		Summary:        record.Summary,
		SpokenText:     record.SpokenText,
		Voice:          string(record.Voice),
		Status:         string(record.Status),
		CreatedAt:      record.CreatedAt,
	}

	if record.AudioFormat != "" {
		format := string(record.AudioFormat)
		model.AudioFormat = &format
	}

	if record.ErrorMessage != "" {
		model.ErrorMessage = &record.ErrorMessage
	}

	return model
}

// toEntity モデルをエンティティに変換
func (r *BunLabelRecordRepository) toEntity(model *LabelRecord) *domain.LabelRecord {
	record := &domain.LabelRecord{
		ID:             model.ID,
		SessionID:      model.SessionID,
		ImageHash:      model.ImageHash,
		Filename:       model.Filename,
		Interpretation: model.Interpretation,
		Summary:        model.Summary,
		SpokenText:     model.SpokenText,
		Voice:          domain.VoiceOption(model.Voice),
		Status:         domain.Status(model.Status),
		CreatedAt:      model.CreatedAt,
	}

	if model.AudioFormat != nil {
		record.AudioFormat = domain.AudioFormat(*model.AudioFormat)
	}

	if model.ErrorMessage != nil {
		record.ErrorMessage = *model.ErrorMessage
	}

	return record
}

func (r *BunLabelRecordRepository) toEntities(models []LabelRecord) []*domain.LabelRecord {
	records := make([]*domain.LabelRecord, len(models))
	for i := range models {
		records[i] = r.toEntity(&models[i])
	}
	return records
}

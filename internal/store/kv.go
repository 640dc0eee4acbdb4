package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Namespace layout for persisted blobs. Collections and ad hoc data live under
// the data namespace; auth keys live in a sibling namespace so a data reset
// leaves the session intact.
const (
	dataNamespace = "pulse:"
	authNamespace = "pulse_auth:"

	keyEvents        = dataNamespace + "events"
	keyRegistrations = dataNamespace + "registrations"
	keyProfiles      = dataNamespace + "user_profiles"
	keyComments      = dataNamespace + "comments"
	keyCommentLikes  = dataNamespace + "comment_likes"

	pushTokenKeyPrefix = dataNamespace + "push_token:"
	genericKeyPrefix   = dataNamespace + "data:"

	keyAuthUser  = authNamespace + "user"
	keyAuthToken = authNamespace + "token"
)

func pushTokenKey(userID string) string {
	return pushTokenKeyPrefix + userID
}

func genericKey(key string) string {
	return genericKeyPrefix + key
}

// Blob is one persisted value: a JSON array for a collection key, or a single
// JSON value for an ad hoc key.
type Blob struct {
	Key              string `gorm:"column:blob_key;primaryKey;size:190;not null"`
	ValueJSON        string `gorm:"column:value_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Blob) TableName() string {
	return "app_blobs"
}

// KV is the minimal key-value surface the store is built on.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type gormKV struct {
	db    *gorm.DB
	clock func() int64
}

// NewGormKV wraps a gorm database handle as a KV over the app_blobs table.
func NewGormKV(db *gorm.DB, clock func() int64) (KV, error) {
	if db == nil {
		return nil, errors.New("store: database handle is required")
	}
	if clock == nil {
		clock = func() int64 { return 0 }
	}
	return &gormKV{db: db, clock: clock}, nil
}

func (kv *gormKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var blob Blob
	err := kv.db.WithContext(ctx).Where("blob_key = ?", key).Take(&blob).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(blob.ValueJSON), true, nil
}

func (kv *gormKV) Set(ctx context.Context, key string, value []byte) error {
	blob := Blob{
		Key:              key,
		ValueJSON:        string(value),
		UpdatedAtSeconds: kv.clock(),
	}
	return kv.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "blob_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value_json", "updated_at_s"}),
		}).
		Create(&blob).Error
}

func (kv *gormKV) Delete(ctx context.Context, key string) error {
	return kv.db.WithContext(ctx).Where("blob_key = ?", key).Delete(&Blob{}).Error
}

func (kv *gormKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pattern := escapeLikePattern(prefix) + "%"
	err := kv.db.WithContext(ctx).
		Model(&Blob{}).
		Where("blob_key LIKE ? ESCAPE '\\'", pattern).
		Order("blob_key ASC").
		Pluck("blob_key", &keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func escapeLikePattern(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

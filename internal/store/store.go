package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingKV         = errors.New("key-value backend is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// StoreError carries a stable operation code alongside the underlying cause.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

// Code returns the <operation>.<reason> identifier of the failure.
func (e *StoreError) Code() string {
	return e.code
}

func newStoreError(operation, reason string, cause error) error {
	return &StoreError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// StoreConfig describes the dependencies a Store needs. Construction is
// explicit; there is no package-level state.
type StoreConfig struct {
	KV         KV
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Store is the namespaced typed persistence layer. Every collection lives in a
// single JSON blob; mutations run one read-modify-write cycle serialized per
// collection, so overlapping writers queue instead of losing updates.
type Store struct {
	kv     KV
	clock  func() time.Time
	ids    IDProvider
	logger *zap.Logger

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewStore validates the configuration and returns a ready Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.KV == nil {
		return nil, newStoreError("store.new", "missing_kv", errMissingKV)
	}
	if cfg.IDProvider == nil {
		return nil, newStoreError("store.new", "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Store{
		kv:     cfg.KV,
		clock:  clock,
		ids:    cfg.IDProvider,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) now() time.Time {
	return s.clock().UTC()
}

func (s *Store) collectionLock(key string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

func (s *Store) failed(operation, reason string, err error, fields ...zap.Field) error {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("store operation failed", attrs...)
	return newStoreError(operation, reason, err)
}

// readRecords loads a collection blob. An absent key is an empty collection,
// never an error.
func readRecords[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func writeRecords[T any](ctx context.Context, s *Store, key string, records []T) error {
	if records == nil {
		records = []T{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, raw)
}

// --- Events ---

// Events returns the full catalog in insertion order, with read-time defaults
// applied for fields older blobs may lack.
func (s *Store) Events(ctx context.Context) ([]Event, error) {
	const op = "store.events.list"
	records, err := readRecords[Event](ctx, s, keyEvents)
	if err != nil {
		return nil, s.failed(op, "read_failed", err)
	}
	for i := range records {
		records[i] = records[i].withDefaults()
	}
	return records, nil
}

// EventByID returns the matching event, or nil when absent.
func (s *Store) EventByID(ctx context.Context, id string) (*Event, error) {
	records, err := s.Events(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			event := records[i]
			return &event, nil
		}
	}
	return nil, nil
}

// SaveEvent upserts an event: a matching id replaces the stored record in
// place (CreatedAt preserved, UpdatedAt refreshed); anything else is appended
// under a freshly generated id.
func (s *Store) SaveEvent(ctx context.Context, event Event) (Event, error) {
	const op = "store.events.save"
	lock := s.collectionLock(keyEvents)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[Event](ctx, s, keyEvents)
	if err != nil {
		return Event{}, s.failed(op, "read_failed", err)
	}

	now := s.now()
	if event.ID != "" {
		for i := range records {
			if records[i].ID == event.ID {
				event.CreatedAt = records[i].CreatedAt
				event.UpdatedAt = now
				records[i] = event
				if err := writeRecords(ctx, s, keyEvents, records); err != nil {
					return Event{}, s.failed(op, "write_failed", err, zap.String("event_id", event.ID))
				}
				return event.withDefaults(), nil
			}
		}
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Event{}, s.failed(op, "id_generation_failed", err)
	}
	event.ID = id
	event.CreatedAt = now
	event.UpdatedAt = now
	records = append(records, event)
	if err := writeRecords(ctx, s, keyEvents, records); err != nil {
		return Event{}, s.failed(op, "write_failed", err, zap.String("event_id", event.ID))
	}
	return event.withDefaults(), nil
}

// ImportEvent upserts an event under its given id, used when mirroring the
// canonical remote catalog: unlike SaveEvent, an unknown id is kept rather
// than regenerated.
func (s *Store) ImportEvent(ctx context.Context, event Event) (Event, error) {
	const op = "store.events.import"
	if event.ID == "" {
		return Event{}, s.failed(op, "missing_id", errors.New("imported event requires an id"))
	}
	lock := s.collectionLock(keyEvents)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[Event](ctx, s, keyEvents)
	if err != nil {
		return Event{}, s.failed(op, "read_failed", err)
	}

	now := s.now()
	replaced := false
	for i := range records {
		if records[i].ID == event.ID {
			event.CreatedAt = records[i].CreatedAt
			event.UpdatedAt = now
			records[i] = event
			replaced = true
			break
		}
	}
	if !replaced {
		event.CreatedAt = now
		event.UpdatedAt = now
		records = append(records, event)
	}
	if err := writeRecords(ctx, s, keyEvents, records); err != nil {
		return Event{}, s.failed(op, "write_failed", err, zap.String("event_id", event.ID))
	}
	return event.withDefaults(), nil
}

// PatchEvent applies a partial update to an existing event and returns the
// merged record, or nil when no event has the id.
func (s *Store) PatchEvent(ctx context.Context, id string, patch EventPatch) (*Event, error) {
	const op = "store.events.patch"
	lock := s.collectionLock(keyEvents)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[Event](ctx, s, keyEvents)
	if err != nil {
		return nil, s.failed(op, "read_failed", err)
	}
	for i := range records {
		if records[i].ID != id {
			continue
		}
		updated := patch.apply(records[i])
		updated.UpdatedAt = s.now()
		records[i] = updated
		if err := writeRecords(ctx, s, keyEvents, records); err != nil {
			return nil, s.failed(op, "write_failed", err, zap.String("event_id", id))
		}
		result := updated.withDefaults()
		return &result, nil
	}
	return nil, nil
}

// DeleteEvent removes the event and reports whether anything was removed.
func (s *Store) DeleteEvent(ctx context.Context, id string) (bool, error) {
	const op = "store.events.delete"
	lock := s.collectionLock(keyEvents)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[Event](ctx, s, keyEvents)
	if err != nil {
		return false, s.failed(op, "read_failed", err)
	}
	remaining := records[:0:0]
	for _, record := range records {
		if record.ID != id {
			remaining = append(remaining, record)
		}
	}
	if len(remaining) == len(records) {
		return false, nil
	}
	if err := writeRecords(ctx, s, keyEvents, remaining); err != nil {
		return false, s.failed(op, "write_failed", err, zap.String("event_id", id))
	}
	return true, nil
}

// --- Registrations ---

// Registrations returns every registration in insertion order.
func (s *Store) Registrations(ctx context.Context) ([]Registration, error) {
	const op = "store.registrations.list"
	records, err := readRecords[Registration](ctx, s, keyRegistrations)
	if err != nil {
		return nil, s.failed(op, "read_failed", err)
	}
	return records, nil
}

// RegistrationByID returns the matching registration, or nil when absent.
func (s *Store) RegistrationByID(ctx context.Context, id string) (*Registration, error) {
	records, err := s.Registrations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			registration := records[i]
			return &registration, nil
		}
	}
	return nil, nil
}

// RegistrationsForUser returns the user's registrations in insertion order.
func (s *Store) RegistrationsForUser(ctx context.Context, userID string) ([]Registration, error) {
	records, err := s.Registrations(ctx)
	if err != nil {
		return nil, err
	}
	var matched []Registration
	for _, record := range records {
		if record.UserID == userID {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// RegistrationsForEvent returns an event's registrations in insertion order.
func (s *Store) RegistrationsForEvent(ctx context.Context, eventID string) ([]Registration, error) {
	records, err := s.Registrations(ctx)
	if err != nil {
		return nil, err
	}
	var matched []Registration
	for _, record := range records {
		if record.EventID == eventID {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// RegistrationFor returns the registration linking the user to the event, or
// nil when none exists. The store keeps no uniqueness constraint; this is the
// check half of the caller's check-then-insert.
func (s *Store) RegistrationFor(ctx context.Context, eventID, userID string) (*Registration, error) {
	records, err := s.Registrations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].EventID == eventID && records[i].UserID == userID {
			registration := records[i]
			return &registration, nil
		}
	}
	return nil, nil
}

// SaveRegistration upserts a registration; new records get RegisteredAt
// stamped once at creation.
func (s *Store) SaveRegistration(ctx context.Context, registration Registration) (Registration, error) {
	const op = "store.registrations.save"
	lock := s.collectionLock(keyRegistrations)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[Registration](ctx, s, keyRegistrations)
	if err != nil {
		return Registration{}, s.failed(op, "read_failed", err)
	}

	now := s.now()
	if registration.ID != "" {
		for i := range records {
			if records[i].ID == registration.ID {
				registration.RegisteredAt = records[i].RegisteredAt
				registration.UpdatedAt = now
				records[i] = registration
				if err := writeRecords(ctx, s, keyRegistrations, records); err != nil {
					return Registration{}, s.failed(op, "write_failed", err, zap.String("registration_id", registration.ID))
				}
				return registration, nil
			}
		}
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Registration{}, s.failed(op, "id_generation_failed", err)
	}
	registration.ID = id
	if registration.Status == "" {
		registration.Status = StatusRegistered
	}
	registration.RegisteredAt = now
	registration.UpdatedAt = now
	records = append(records, registration)
	if err := writeRecords(ctx, s, keyRegistrations, records); err != nil {
		return Registration{}, s.failed(op, "write_failed", err, zap.String("registration_id", registration.ID))
	}
	return registration, nil
}

// PatchRegistration applies a partial update, or returns nil when the id is
// unknown.
func (s *Store) PatchRegistration(ctx context.Context, id string, patch RegistrationPatch) (*Registration, error) {
	const op = "store.registrations.patch"
	lock := s.collectionLock(keyRegistrations)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[Registration](ctx, s, keyRegistrations)
	if err != nil {
		return nil, s.failed(op, "read_failed", err)
	}
	for i := range records {
		if records[i].ID != id {
			continue
		}
		updated := patch.apply(records[i])
		updated.UpdatedAt = s.now()
		records[i] = updated
		if err := writeRecords(ctx, s, keyRegistrations, records); err != nil {
			return nil, s.failed(op, "write_failed", err, zap.String("registration_id", id))
		}
		result := updated
		return &result, nil
	}
	return nil, nil
}

// DeleteRegistration removes the registration and reports whether anything
// was removed.
func (s *Store) DeleteRegistration(ctx context.Context, id string) (bool, error) {
	const op = "store.registrations.delete"
	lock := s.collectionLock(keyRegistrations)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[Registration](ctx, s, keyRegistrations)
	if err != nil {
		return false, s.failed(op, "read_failed", err)
	}
	remaining := records[:0:0]
	for _, record := range records {
		if record.ID != id {
			remaining = append(remaining, record)
		}
	}
	if len(remaining) == len(records) {
		return false, nil
	}
	if err := writeRecords(ctx, s, keyRegistrations, remaining); err != nil {
		return false, s.failed(op, "write_failed", err, zap.String("registration_id", id))
	}
	return true, nil
}

// --- Profiles ---

// Profiles returns every stored profile in insertion order.
func (s *Store) Profiles(ctx context.Context) ([]UserProfile, error) {
	const op = "store.profiles.list"
	records, err := readRecords[UserProfile](ctx, s, keyProfiles)
	if err != nil {
		return nil, s.failed(op, "read_failed", err)
	}
	return records, nil
}

// ProfileByUserID returns the user's profile, or nil when absent. Profiles
// are singletons per user.
func (s *Store) ProfileByUserID(ctx context.Context, userID string) (*UserProfile, error) {
	records, err := s.Profiles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].UserID == userID {
			profile := records[i]
			return &profile, nil
		}
	}
	return nil, nil
}

// SaveProfile upserts a profile keyed by UserID.
func (s *Store) SaveProfile(ctx context.Context, profile UserProfile) (UserProfile, error) {
	const op = "store.profiles.save"
	lock := s.collectionLock(keyProfiles)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[UserProfile](ctx, s, keyProfiles)
	if err != nil {
		return UserProfile{}, s.failed(op, "read_failed", err)
	}

	now := s.now()
	for i := range records {
		if records[i].UserID == profile.UserID {
			profile.ID = records[i].ID
			profile.CreatedAt = records[i].CreatedAt
			profile.UpdatedAt = now
			records[i] = profile
			if err := writeRecords(ctx, s, keyProfiles, records); err != nil {
				return UserProfile{}, s.failed(op, "write_failed", err, zap.String("user_id", profile.UserID))
			}
			return profile, nil
		}
	}

	id, err := s.ids.NewID()
	if err != nil {
		return UserProfile{}, s.failed(op, "id_generation_failed", err)
	}
	profile.ID = id
	profile.CreatedAt = now
	profile.UpdatedAt = now
	records = append(records, profile)
	if err := writeRecords(ctx, s, keyProfiles, records); err != nil {
		return UserProfile{}, s.failed(op, "write_failed", err, zap.String("user_id", profile.UserID))
	}
	return profile, nil
}

// PatchProfile applies a partial update keyed by UserID, or returns nil when
// the user has no profile yet.
func (s *Store) PatchProfile(ctx context.Context, userID string, patch ProfilePatch) (*UserProfile, error) {
	const op = "store.profiles.patch"
	lock := s.collectionLock(keyProfiles)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[UserProfile](ctx, s, keyProfiles)
	if err != nil {
		return nil, s.failed(op, "read_failed", err)
	}
	for i := range records {
		if records[i].UserID != userID {
			continue
		}
		updated := patch.apply(records[i])
		updated.UpdatedAt = s.now()
		records[i] = updated
		if err := writeRecords(ctx, s, keyProfiles, records); err != nil {
			return nil, s.failed(op, "write_failed", err, zap.String("user_id", userID))
		}
		result := updated
		return &result, nil
	}
	return nil, nil
}

// DeleteProfile removes a profile by record id.
func (s *Store) DeleteProfile(ctx context.Context, id string) (bool, error) {
	const op = "store.profiles.delete"
	lock := s.collectionLock(keyProfiles)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[UserProfile](ctx, s, keyProfiles)
	if err != nil {
		return false, s.failed(op, "read_failed", err)
	}
	remaining := records[:0:0]
	for _, record := range records {
		if record.ID != id {
			remaining = append(remaining, record)
		}
	}
	if len(remaining) == len(records) {
		return false, nil
	}
	if err := writeRecords(ctx, s, keyProfiles, remaining); err != nil {
		return false, s.failed(op, "write_failed", err, zap.String("profile_id", id))
	}
	return true, nil
}

// --- Comments ---

// Comments returns every comment in insertion order.
func (s *Store) Comments(ctx context.Context) ([]Comment, error) {
	const op = "store.comments.list"
	records, err := readRecords[Comment](ctx, s, keyComments)
	if err != nil {
		return nil, s.failed(op, "read_failed", err)
	}
	return records, nil
}

// CommentByID returns the matching comment, or nil when absent.
func (s *Store) CommentByID(ctx context.Context, id string) (*Comment, error) {
	records, err := s.Comments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			comment := records[i]
			return &comment, nil
		}
	}
	return nil, nil
}

// CommentsForEvent returns all of an event's comments, roots and replies,
// in insertion order.
func (s *Store) CommentsForEvent(ctx context.Context, eventID string) ([]Comment, error) {
	records, err := s.Comments(ctx)
	if err != nil {
		return nil, err
	}
	var matched []Comment
	for _, record := range records {
		if record.EventID == eventID {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// CommentThreadsForEvent groups an event's comments into root threads with
// their direct replies. Replies never appear as roots.
func (s *Store) CommentThreadsForEvent(ctx context.Context, eventID string) ([]CommentThread, error) {
	comments, err := s.CommentsForEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	threads := make([]CommentThread, 0)
	index := make(map[string]int)
	for _, comment := range comments {
		if comment.IsReply() {
			continue
		}
		index[comment.ID] = len(threads)
		threads = append(threads, CommentThread{Root: comment})
	}
	for _, comment := range comments {
		if !comment.IsReply() {
			continue
		}
		if i, ok := index[comment.ParentID]; ok {
			threads[i].Replies = append(threads[i].Replies, comment)
		}
	}
	return threads, nil
}

// SaveComment upserts a comment.
func (s *Store) SaveComment(ctx context.Context, comment Comment) (Comment, error) {
	const op = "store.comments.save"
	lock := s.collectionLock(keyComments)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[Comment](ctx, s, keyComments)
	if err != nil {
		return Comment{}, s.failed(op, "read_failed", err)
	}

	now := s.now()
	if comment.ID != "" {
		for i := range records {
			if records[i].ID == comment.ID {
				comment.CreatedAt = records[i].CreatedAt
				comment.UpdatedAt = now
				records[i] = comment
				if err := writeRecords(ctx, s, keyComments, records); err != nil {
					return Comment{}, s.failed(op, "write_failed", err, zap.String("comment_id", comment.ID))
				}
				return comment, nil
			}
		}
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Comment{}, s.failed(op, "id_generation_failed", err)
	}
	comment.ID = id
	comment.CreatedAt = now
	comment.UpdatedAt = now
	records = append(records, comment)
	if err := writeRecords(ctx, s, keyComments, records); err != nil {
		return Comment{}, s.failed(op, "write_failed", err, zap.String("comment_id", comment.ID))
	}
	return comment, nil
}

// PatchComment applies a partial update, or returns nil when the id is
// unknown.
func (s *Store) PatchComment(ctx context.Context, id string, patch CommentPatch) (*Comment, error) {
	const op = "store.comments.patch"
	lock := s.collectionLock(keyComments)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[Comment](ctx, s, keyComments)
	if err != nil {
		return nil, s.failed(op, "read_failed", err)
	}
	for i := range records {
		if records[i].ID != id {
			continue
		}
		updated := patch.apply(records[i])
		updated.UpdatedAt = s.now()
		records[i] = updated
		if err := writeRecords(ctx, s, keyComments, records); err != nil {
			return nil, s.failed(op, "write_failed", err, zap.String("comment_id", id))
		}
		result := updated
		return &result, nil
	}
	return nil, nil
}

// DeleteComment removes the comment, its direct replies, and every like
// attached to any of the removed comments.
func (s *Store) DeleteComment(ctx context.Context, id string) (bool, error) {
	const op = "store.comments.delete"

	removed := make(map[string]bool)
	commentsLock := s.collectionLock(keyComments)
	commentsLock.Lock()
	records, err := readRecords[Comment](ctx, s, keyComments)
	if err != nil {
		commentsLock.Unlock()
		return false, s.failed(op, "read_failed", err)
	}
	remaining := records[:0:0]
	for _, record := range records {
		if record.ID == id || record.ParentID == id {
			removed[record.ID] = true
			continue
		}
		remaining = append(remaining, record)
	}
	if len(removed) == 0 {
		commentsLock.Unlock()
		return false, nil
	}
	if err := writeRecords(ctx, s, keyComments, remaining); err != nil {
		commentsLock.Unlock()
		return false, s.failed(op, "write_failed", err, zap.String("comment_id", id))
	}
	commentsLock.Unlock()

	likesLock := s.collectionLock(keyCommentLikes)
	likesLock.Lock()
	defer likesLock.Unlock()
	likes, err := readRecords[CommentLike](ctx, s, keyCommentLikes)
	if err != nil {
		return false, s.failed(op, "likes_read_failed", err, zap.String("comment_id", id))
	}
	keptLikes := likes[:0:0]
	for _, like := range likes {
		if removed[like.CommentID] {
			continue
		}
		keptLikes = append(keptLikes, like)
	}
	if len(keptLikes) != len(likes) {
		if err := writeRecords(ctx, s, keyCommentLikes, keptLikes); err != nil {
			return false, s.failed(op, "likes_write_failed", err, zap.String("comment_id", id))
		}
	}
	return true, nil
}

// --- Comment likes ---

// CommentLikes returns every like in insertion order.
func (s *Store) CommentLikes(ctx context.Context) ([]CommentLike, error) {
	const op = "store.comment_likes.list"
	records, err := readRecords[CommentLike](ctx, s, keyCommentLikes)
	if err != nil {
		return nil, s.failed(op, "read_failed", err)
	}
	return records, nil
}

// LikesForComment returns a comment's likes in insertion order.
func (s *Store) LikesForComment(ctx context.Context, commentID string) ([]CommentLike, error) {
	records, err := s.CommentLikes(ctx)
	if err != nil {
		return nil, err
	}
	var matched []CommentLike
	for _, record := range records {
		if record.CommentID == commentID {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

// LikeFor returns the like a user placed on a comment, or nil when none
// exists. The check half of the caller's check-then-insert.
func (s *Store) LikeFor(ctx context.Context, commentID, userID string) (*CommentLike, error) {
	records, err := s.CommentLikes(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].CommentID == commentID && records[i].UserID == userID {
			like := records[i]
			return &like, nil
		}
	}
	return nil, nil
}

// SaveCommentLike appends a like under a generated id, stamping CreatedAt.
func (s *Store) SaveCommentLike(ctx context.Context, like CommentLike) (CommentLike, error) {
	const op = "store.comment_likes.save"
	lock := s.collectionLock(keyCommentLikes)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[CommentLike](ctx, s, keyCommentLikes)
	if err != nil {
		return CommentLike{}, s.failed(op, "read_failed", err)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return CommentLike{}, s.failed(op, "id_generation_failed", err)
	}
	like.ID = id
	like.CreatedAt = s.now()
	records = append(records, like)
	if err := writeRecords(ctx, s, keyCommentLikes, records); err != nil {
		return CommentLike{}, s.failed(op, "write_failed", err, zap.String("comment_id", like.CommentID))
	}
	return like, nil
}

// DeleteCommentLike removes a like by record id.
func (s *Store) DeleteCommentLike(ctx context.Context, id string) (bool, error) {
	const op = "store.comment_likes.delete"
	lock := s.collectionLock(keyCommentLikes)
	lock.Lock()
	defer lock.Unlock()

	records, err := readRecords[CommentLike](ctx, s, keyCommentLikes)
	if err != nil {
		return false, s.failed(op, "read_failed", err)
	}
	remaining := records[:0:0]
	for _, record := range records {
		if record.ID != id {
			remaining = append(remaining, record)
		}
	}
	if len(remaining) == len(records) {
		return false, nil
	}
	if err := writeRecords(ctx, s, keyCommentLikes, remaining); err != nil {
		return false, s.failed(op, "write_failed", err, zap.String("like_id", id))
	}
	return true, nil
}

// --- Push tokens ---

// PushTokenFor returns the user's push token record, or nil when absent.
func (s *Store) PushTokenFor(ctx context.Context, userID string) (*PushToken, error) {
	const op = "store.push_tokens.get"
	raw, ok, err := s.kv.Get(ctx, pushTokenKey(userID))
	if err != nil {
		return nil, s.failed(op, "read_failed", err, zap.String("user_id", userID))
	}
	if !ok {
		return nil, nil
	}
	var token PushToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, s.failed(op, "decode_failed", err, zap.String("user_id", userID))
	}
	return &token, nil
}

// SetPushToken overwrites the user's single push token record.
func (s *Store) SetPushToken(ctx context.Context, token PushToken) (PushToken, error) {
	const op = "store.push_tokens.set"
	token.UpdatedAt = s.now()
	raw, err := json.Marshal(token)
	if err != nil {
		return PushToken{}, s.failed(op, "encode_failed", err, zap.String("user_id", token.UserID))
	}
	if err := s.kv.Set(ctx, pushTokenKey(token.UserID), raw); err != nil {
		return PushToken{}, s.failed(op, "write_failed", err, zap.String("user_id", token.UserID))
	}
	return token, nil
}

// --- Generic data ---

// GetData reads an ad hoc value from the data namespace. The second return is
// false when the key was never written.
func GetData[T any](ctx context.Context, s *Store, key string) (T, bool, error) {
	const op = "store.data.get"
	var value T
	raw, ok, err := s.kv.Get(ctx, genericKey(key))
	if err != nil {
		return value, false, s.failed(op, "read_failed", err, zap.String("key", key))
	}
	if !ok {
		return value, false, nil
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, s.failed(op, "decode_failed", err, zap.String("key", key))
	}
	return value, true, nil
}

// SetData writes an ad hoc value into the data namespace.
func SetData[T any](ctx context.Context, s *Store, key string, value T) error {
	const op = "store.data.set"
	raw, err := json.Marshal(value)
	if err != nil {
		return s.failed(op, "encode_failed", err, zap.String("key", key))
	}
	if err := s.kv.Set(ctx, genericKey(key), raw); err != nil {
		return s.failed(op, "write_failed", err, zap.String("key", key))
	}
	return nil
}

// RemoveData deletes an ad hoc value. Deleting an absent key is not an error.
func (s *Store) RemoveData(ctx context.Context, key string) error {
	const op = "store.data.remove"
	if err := s.kv.Delete(ctx, genericKey(key)); err != nil {
		return s.failed(op, "delete_failed", err, zap.String("key", key))
	}
	return nil
}

// --- Auth record ---

// CurrentUser returns the locally cached signed-in user, or nil when signed
// out.
func (s *Store) CurrentUser(ctx context.Context) (*AuthRecord, error) {
	const op = "store.auth.get_user"
	raw, ok, err := s.kv.Get(ctx, keyAuthUser)
	if err != nil {
		return nil, s.failed(op, "read_failed", err)
	}
	if !ok {
		return nil, nil
	}
	var record AuthRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, s.failed(op, "decode_failed", err)
	}
	return &record, nil
}

// SetCurrentUser caches the signed-in user.
func (s *Store) SetCurrentUser(ctx context.Context, record AuthRecord) error {
	const op = "store.auth.set_user"
	record.UpdatedAt = s.now()
	raw, err := json.Marshal(record)
	if err != nil {
		return s.failed(op, "encode_failed", err)
	}
	if err := s.kv.Set(ctx, keyAuthUser, raw); err != nil {
		return s.failed(op, "write_failed", err)
	}
	return nil
}

// SessionToken returns the cached session token, or empty when signed out.
func (s *Store) SessionToken(ctx context.Context) (string, error) {
	const op = "store.auth.get_token"
	raw, ok, err := s.kv.Get(ctx, keyAuthToken)
	if err != nil {
		return "", s.failed(op, "read_failed", err)
	}
	if !ok {
		return "", nil
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", s.failed(op, "decode_failed", err)
	}
	return token, nil
}

// SetSessionToken caches the session token.
func (s *Store) SetSessionToken(ctx context.Context, token string) error {
	const op = "store.auth.set_token"
	raw, err := json.Marshal(token)
	if err != nil {
		return s.failed(op, "encode_failed", err)
	}
	if err := s.kv.Set(ctx, keyAuthToken, raw); err != nil {
		return s.failed(op, "write_failed", err)
	}
	return nil
}

// ClearAuth removes the cached user and session token.
func (s *Store) ClearAuth(ctx context.Context) error {
	const op = "store.auth.clear"
	if err := s.kv.Delete(ctx, keyAuthUser); err != nil {
		return s.failed(op, "delete_user_failed", err)
	}
	if err := s.kv.Delete(ctx, keyAuthToken); err != nil {
		return s.failed(op, "delete_token_failed", err)
	}
	return nil
}

// --- Bulk resets ---

// ClearAllData removes every data-namespace key except push tokens, so push
// delivery survives a "reset my data" action.
func (s *Store) ClearAllData(ctx context.Context) error {
	const op = "store.clear_all_data"
	keys, err := s.kv.Keys(ctx, dataNamespace)
	if err != nil {
		return s.failed(op, "keys_failed", err)
	}
	for _, key := range keys {
		if strings.HasPrefix(key, pushTokenKeyPrefix) {
			continue
		}
		if err := s.kv.Delete(ctx, key); err != nil {
			return s.failed(op, "delete_failed", err, zap.String("key", key))
		}
	}
	return nil
}

// ClearAllPushTokens removes every per-user push token key.
func (s *Store) ClearAllPushTokens(ctx context.Context) error {
	const op = "store.clear_all_push_tokens"
	keys, err := s.kv.Keys(ctx, pushTokenKeyPrefix)
	if err != nil {
		return s.failed(op, "keys_failed", err)
	}
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			return s.failed(op, "delete_failed", err, zap.String("key", key))
		}
	}
	return nil
}

// ClearEverything composes the data reset, the push token reset, and the auth
// record clear.
func (s *Store) ClearEverything(ctx context.Context) error {
	if err := s.ClearAllData(ctx); err != nil {
		return err
	}
	if err := s.ClearAllPushTokens(ctx); err != nil {
		return err
	}
	return s.ClearAuth(ctx)
}

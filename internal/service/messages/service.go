package messages

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vovakirdan/roomchat/internal/store"
)

const (
	// DefaultHistoryLimit is how many messages a join replays.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps any single history or page request.
	MaxHistoryLimit = 200
	// MaxContentLength is the longest accepted message text, in runes.
	MaxContentLength = 4096
)

// Common errors for message operations.
var (
	ErrEmptyMessage    = errors.New("message has no content and no file")
	ErrContentTooLong  = errors.New("message content is too long")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotAuthorized   = errors.New("only the sender may do this")
	ErrNoFile          = errors.New("message has no file")
	ErrFileInUse       = errors.New("file is already attached to another message")
)

// Service implements message semantics on top of the durable store.
type Service struct {
	store store.MessageStore
	now   func() time.Time
}

// New creates a new message service.
func New(st store.MessageStore) *Service {
	return &Service{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Append stores a new message. The timestamp is taken from the server clock
// and the sender is its first reader.
func (s *Service) Append(ctx context.Context, room, sender, content string, file *store.File) (*store.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" && file == nil {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, ErrContentTooLong
	}

	msg := &store.Message{
		RoomName:   room,
		Sender:     sender,
		Content:    content,
		File:       file,
		ReadBy:     []string{sender},
		DeletedFor: []string{},
		CreatedAt:  s.now(),
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		if file != nil && errors.Is(err, store.ErrAlreadyExists) {
			return nil, ErrFileInUse
		}
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// History returns the latest limit messages of the room in chronological
// order, skipping those the viewer deleted for themselves.
func (s *Service) History(ctx context.Context, room string, limit int, viewer string) ([]*store.Message, error) {
	return s.Page(ctx, room, limit, nil, viewer)
}

// Page is History restricted to messages older than before, when set.
func (s *Service) Page(ctx context.Context, room string, limit int, before *int64, viewer string) ([]*store.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	newestFirst, err := s.store.ListMessages(ctx, room, limit, before, viewer)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	slices.Reverse(newestFirst)
	if newestFirst == nil {
		newestFirst = []*store.Message{}
	}
	return newestFirst, nil
}

// Get returns a single message.
func (s *Service) Get(ctx context.Context, id int64) (*store.Message, error) {
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return msg, nil
}

// MarkRead adds user to the readers of the message. added reports whether
// the reader list grew; the returned message carries the current list.
func (s *Service) MarkRead(ctx context.Context, id int64, user string) (msg *store.Message, added bool, err error) {
	added, err = s.store.AddReader(ctx, id, user)
	if err != nil {
		return nil, false, notFound(err)
	}
	msg, err = s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return msg, added, nil
}

// DeleteForSelf hides the message from user. Repeating it is a no-op.
func (s *Service) DeleteForSelf(ctx context.Context, id int64, user string) (*store.Message, error) {
	if _, err := s.store.HideMessage(ctx, id, user); err != nil {
		return nil, notFound(err)
	}
	return s.Get(ctx, id)
}

// DeleteForEveryone removes the message for all viewers. Only the sender may
// do it. The removed message is returned so callers know its room.
func (s *Service) DeleteForEveryone(ctx context.Context, id int64, requester string) (*store.Message, error) {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Sender != requester {
		return nil, ErrNotAuthorized
	}
	if err := s.store.DeleteMessage(ctx, id); err != nil {
		return nil, notFound(err)
	}
	return msg, nil
}

// FileFor returns the attachment of the message while it is still available.
func (s *Service) FileFor(ctx context.Context, id int64) (*store.Message, error) {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.File == nil || msg.File.Deleted {
		return nil, ErrNoFile
	}
	return msg, nil
}

// DeleteFile flags the attachment as deleted. Only the sender may do it.
// The message before the change is returned so the caller can remove the blob.
func (s *Service) DeleteFile(ctx context.Context, id int64, requester string) (*store.Message, error) {
	msg, err := s.FileFor(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Sender != requester {
		return nil, ErrNotAuthorized
	}
	if err := s.store.MarkFileDeleted(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoFile
		}
		return nil, fmt.Errorf("delete file: %w", err)
	}
	return msg, nil
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrMessageNotFound
	}
	return fmt.Errorf("message store: %w", err)
}

package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"whatsapp-bridge/internal/domain"
	"whatsapp-bridge/internal/integrations/agent"
	"whatsapp-bridge/internal/marker"
)

const channelPrefix = "whatsapp:"

type SessionStore interface {
	Lock(ctx context.Context, userKey string) (func(), error)
	Get(userKey string) []domain.Turn
	Append(userKey string, role domain.Role, content string)
	SetSearchCache(userKey string, results []domain.Listing)
	SearchCache(userKey string) []domain.Listing
	Clear(userKey string)
	Len() int
}

type MediaProcessor interface {
	ProcessBatch(ctx context.Context, ownerKey, draftID string, items []domain.MediaItem) []string
}

type AgentRunner interface {
	Run(ctx context.Context, in agent.RunRequest) (agent.RunResponse, error)
}

type MessageSender interface {
	Configured() bool
	SendMessage(ctx context.Context, to, body string, mediaURLs []string) (string, error)
}

type TranscriptArchive interface {
	RecordExchange(ctx context.Context, userKey, userText, assistantText string) error
	ListTurns(ctx context.Context, userKey string, limit int) ([]domain.ArchivedTurn, error)
	Meta(ctx context.Context, userKey string) (domain.ArchiveMeta, error)
}

// Reply describes what the bridge answered for one inbound message.
type Reply struct {
	UserKey      string
	Text         string
	Outbound     domain.OutboundMessage
	MessageSID   string
	DraftID      string
	MediaPaths   []string
	ShortCircuit bool
}

// Status is the runtime snapshot exposed by health endpoints.
type Status struct {
	ChannelConfigured   bool
	ActiveConversations int
	ArchiveEnabled      bool
}

// Bridge correlates channel messages with agent calls for each user.
type Bridge struct {
	sessions SessionStore
	media    MediaProcessor
	agent    AgentRunner
	sender   MessageSender
	archive  TranscriptArchive
	logger   *slog.Logger
}

type BridgeOption func(*Bridge)

// WithArchive enables the durable transcript archive.
func WithArchive(a TranscriptArchive) BridgeOption {
	return func(b *Bridge) {
		b.archive = a
	}
}

func NewBridge(sessions SessionStore, media MediaProcessor, runner AgentRunner, sender MessageSender, logger *slog.Logger, opts ...BridgeOption) (*Bridge, error) {
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if media == nil {
		return nil, errors.New("usecase: media processor must not be nil")
	}
	if runner == nil {
		return nil, errors.New("usecase: agent runner must not be nil")
	}
	if sender == nil {
		return nil, errors.New("usecase: message sender must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		sessions: sessions,
		media:    media,
		agent:    runner,
		sender:   sender,
		logger:   logger.With(slog.String("service", "bridge")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// UserKey strips the channel prefix from a sender address.
func UserKey(from string) string {
	return strings.TrimSpace(strings.Replace(from, channelPrefix, "", 1))
}

// HandleInbound processes one inbound message end to end. Requests for the
// same user are serialized for their whole duration.
func (b *Bridge) HandleInbound(ctx context.Context, in domain.InboundMessage) (Reply, error) {
	userKey := UserKey(in.From)
	if userKey == "" {
		return Reply{}, newError(ErrorInvalidInput, "missing_sender", nil)
	}
	log := b.logger.With(slog.String("user", userKey), slog.String("message_sid", in.MessageID))

	unlock, err := b.sessions.Lock(ctx, userKey)
	if err != nil {
		return Reply{}, newError(ErrorInternal, "session_lock", err)
	}
	defer unlock()

	draft := marker.DecodeDraft(b.sessions.Get(userKey))
	draftID, paths := draft.DraftID, draft.MediaPaths

	var firstMediaType string
	if len(in.Media) > 0 {
		firstMediaType = in.Media[0].ContentType
		if draftID == "" {
			draftID = newUUID()
		}
		refs := b.media.ProcessBatch(ctx, userKey, draftID, in.Media)
		if len(refs) > 0 {
			paths = marker.MergePaths(paths, refs...)
			b.sessions.Append(userKey, domain.RoleAssistant, marker.EncodeDraft(draftID, paths))
			log.Info("media stored", slog.String("draft_id", draftID), slog.Int("uploaded", len(refs)), slog.Int("total", len(paths)))
		} else {
			log.Warn("no attachment could be stored", slog.Int("attachments", len(in.Media)))
		}
	}

	if cached := b.sessions.SearchCache(userKey); cached != nil {
		if idx, ok := detailIndex(in.Body, len(cached)); ok {
			text := outOfRangeText(len(cached))
			if idx >= 0 && idx < len(cached) {
				text = FormatListingDetail(cached[idx])
			}
			log.Info("answered from search cache", slog.Int("index", idx), slog.Int("cached", len(cached)))
			reply, err := b.respond(ctx, log, userKey, in.Body, text)
			reply.DraftID, reply.MediaPaths, reply.ShortCircuit = draftID, paths, true
			return reply, err
		}
	}

	req := agent.RunRequest{
		UserID:         userKey,
		Message:        in.Body,
		History:        b.sessions.Get(userKey),
		DraftListingID: draftID,
	}
	if len(paths) > 0 {
		req.MediaPaths = paths
		req.MediaType = firstMediaType
	}

	text := b.callAgent(ctx, log, userKey, req)
	reply, err := b.respond(ctx, log, userKey, in.Body, text)
	reply.DraftID, reply.MediaPaths = draftID, paths
	return reply, err
}

func (b *Bridge) callAgent(ctx context.Context, log *slog.Logger, userKey string, req agent.RunRequest) string {
	res, err := b.agent.Run(ctx, req)
	if err != nil {
		log.Error("agent call failed", slog.Any("error", err))
		return agentFallback(err)
	}

	text, results, ok := marker.ExtractSearchCache(res.Response)
	if ok && len(results) > 0 {
		b.sessions.SetSearchCache(userKey, results)
		log.Info("search cache captured", slog.Int("results", len(results)))
	}
	if strings.TrimSpace(text) == "" {
		return msgAgentEmpty
	}
	return text
}

// respond persists the exchange, renders it and hands it to the channel.
func (b *Bridge) respond(ctx context.Context, log *slog.Logger, userKey, userText, text string) (Reply, error) {
	b.sessions.Append(userKey, domain.RoleUser, userText)
	b.sessions.Append(userKey, domain.RoleAssistant, text)

	reply := Reply{UserKey: userKey, Text: text, Outbound: Render(text)}
	if b.archive != nil {
		if err := b.archive.RecordExchange(ctx, userKey, userText, text); err != nil {
			log.Warn("archive write failed", slog.Any("error", err))
		}
	}

	if !b.sender.Configured() {
		log.Warn("channel not configured, reply not sent")
		return reply, nil
	}
	sid, err := b.sender.SendMessage(ctx, userKey, reply.Outbound.Body, reply.Outbound.MediaURLs)
	if err != nil {
		return reply, newError(ErrorDelivery, "send_failed", err)
	}
	reply.MessageSID = sid
	log.Info("reply sent", slog.String("sid", sid), slog.Int("media", len(reply.Outbound.MediaURLs)))
	return reply, nil
}

// Conversation returns the live transcript for a user.
func (b *Bridge) Conversation(userKey string) []domain.Turn {
	return b.sessions.Get(UserKey(userKey))
}

// ClearConversation drops the live transcript and search cache for a user.
func (b *Bridge) ClearConversation(userKey string) {
	key := UserKey(userKey)
	b.sessions.Clear(key)
	b.logger.Info("conversation cleared", slog.String("user", key))
}

// ArchivedConversation returns the archive summary and the latest archived
// turns for a user.
func (b *Bridge) ArchivedConversation(ctx context.Context, userKey string, limit int) (domain.ArchiveMeta, []domain.ArchivedTurn, error) {
	if b.archive == nil {
		return domain.ArchiveMeta{}, nil, newError(ErrorUnavailable, "archive_disabled", nil)
	}
	key := UserKey(userKey)
	meta, err := b.archive.Meta(ctx, key)
	if err != nil {
		return domain.ArchiveMeta{}, nil, newError(ErrorUpstream, "archive_meta_error", err)
	}
	turns, err := b.archive.ListTurns(ctx, key, limit)
	if err != nil {
		return domain.ArchiveMeta{}, nil, newError(ErrorUpstream, "archive_query_error", err)
	}
	return meta, turns, nil
}

func (b *Bridge) Status() Status {
	return Status{
		ChannelConfigured:   b.sender.Configured(),
		ActiveConversations: b.sessions.Len(),
		ArchiveEnabled:      b.archive != nil,
	}
}

var newUUID = func() string {
	return uuid.NewString()
}

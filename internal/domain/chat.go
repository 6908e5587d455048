package domain

// MediaItem is an attachment announced by an inbound channel message.
type MediaItem struct {
	SourceURL       string
	ContentType     string
	SourceMessageID string
	SourceMediaID   string
}

// InboundMessage is the channel-agnostic shape of a webhook delivery.
type InboundMessage struct {
	From      string
	To        string
	Body      string
	MessageID string
	Media     []MediaItem
}

// OutboundMessage is a size-bounded reply ready for the channel.
type OutboundMessage struct {
	Body      string
	MediaURLs []string
}

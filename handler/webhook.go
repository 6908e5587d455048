package handler

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"whatsapp-bridge/internal/domain"
	"whatsapp-bridge/internal/media"
	"whatsapp-bridge/internal/usecase"
)

// twiml is the Twilio Markup Language reply document.
type twiml struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

func twimlResult(message string) result {
	body, err := xml.Marshal(twiml{Message: message})
	if err != nil {
		body = []byte("<Response></Response>")
	}
	return result{
		status:      http.StatusOK,
		contentType: contentTypeXML,
		body:        append([]byte(xml.Header), body...),
	}
}

// webhook runs one inbound delivery through the bridge. The reply itself is
// sent over the REST API, so TwiML stays empty unless the request failed.
func (h *Handler) webhook(ctx context.Context, log *slog.Logger, form url.Values) (res result) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("webhook panicked", slog.String("panic", fmt.Sprint(rec)))
			res = twimlResult(usecase.MsgGenericApology)
		}
	}()

	in := parseInbound(form)
	log = log.With(slog.String("message_sid", in.MessageID))
	log.Info("inbound message",
		slog.String("from", in.From),
		slog.Int("media", len(in.Media)),
		slog.Int("body_len", len(in.Body)),
	)

	// The channel gives up on the webhook long before the agent timeout, so
	// the turn must outlive the inbound connection.
	reply, err := h.bridge.HandleInbound(context.WithoutCancel(ctx), in)
	if err != nil {
		logFailure(log, err)
		return twimlResult(usecase.MsgGenericApology)
	}
	log.Info("inbound handled",
		slog.String("reply_sid", reply.MessageSID),
		slog.Bool("short_circuit", reply.ShortCircuit),
		slog.Int("media_paths", len(reply.MediaPaths)),
	)
	return twimlResult("")
}

// parseInbound reads the Twilio webhook form. At most ten attachments are
// taken and entries without a URL are skipped.
func parseInbound(form url.Values) domain.InboundMessage {
	in := domain.InboundMessage{
		From:      form.Get("From"),
		To:        form.Get("To"),
		Body:      form.Get("Body"),
		MessageID: form.Get("MessageSid"),
	}

	n, err := strconv.Atoi(strings.TrimSpace(form.Get("NumMedia")))
	if err != nil || n <= 0 {
		return in
	}
	n = min(n, media.MaxItemsPerMessage)

	for i := 0; i < n; i++ {
		mediaURL := strings.TrimSpace(form.Get(fmt.Sprintf("MediaUrl%d", i)))
		if mediaURL == "" {
			continue
		}
		in.Media = append(in.Media, domain.MediaItem{
			SourceURL:       mediaURL,
			ContentType:     form.Get(fmt.Sprintf("MediaContentType%d", i)),
			SourceMessageID: in.MessageID,
			SourceMediaID:   mediaSID(mediaURL),
		})
	}
	return in
}

// mediaSID is the last path segment of a Twilio media URL.
func mediaSID(mediaURL string) string {
	return mediaURL[strings.LastIndex(mediaURL, "/")+1:]
}

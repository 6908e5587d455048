package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"whatsapp-bridge/internal/domain"
)

const (
	maxMessageChars  = 1600
	perMediaReserve  = 120
	safetyMargin     = 100
	truncateSlack    = 60
	maxOutboundMedia = 3
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Render turns a reply text into a channel message: image links in the text
// become attachments and the body is cut to fit the remaining budget.
// Lengths are counted in runes.
func Render(text string) domain.OutboundMessage {
	urls := extractImageURLs(text)
	budget := maxMessageChars - perMediaReserve*len(urls) - safetyMargin

	body := text
	if utf8.RuneCountInString(text) > budget {
		runes := []rune(text)
		body = string(runes[:budget-truncateSlack]) + truncationSuffix
	}
	return domain.OutboundMessage{Body: body, MediaURLs: urls}
}

func extractImageURLs(text string) []string {
	var urls []string
	for _, raw := range urlPattern.FindAllString(text, -1) {
		if len(urls) >= maxOutboundMedia {
			break
		}
		u := strings.TrimRight(raw, ").,;")
		if isImageURL(u) {
			urls = append(urls, u)
		}
	}
	return urls
}

func isImageURL(u string) bool {
	lower := strings.ToLower(u)
	if strings.Contains(lower, "/storage/v1/object/") {
		return true
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

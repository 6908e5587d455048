// Package marker defines the inline text grammars the bridge embeds in chat
// transcripts and agent replies.
//
// A draft marker is an assistant turn of the form
//
//	[SYSTEM_MEDIA_NOTE] DRAFT_LISTING_ID=<uuid> | MEDIA_PATHS=['a.jpeg', 'b.jpeg']
//
// and lets a later webhook call recover which draft and uploaded media belong
// to the conversation without any external store.
package marker

import (
	"strings"

	"whatsapp-bridge/internal/domain"
)

const (
	DraftTag = "[SYSTEM_MEDIA_NOTE]"

	draftIDKey    = "DRAFT_LISTING_ID="
	mediaPathsKey = "MEDIA_PATHS="
	segmentSep    = "|"
)

// EncodeDraft returns the control-turn content recording draftID and paths.
func EncodeDraft(draftID string, paths []string) string {
	return DraftTag + " " + draftIDKey + draftID + " " + segmentSep + " " + mediaPathsKey + encodeList(paths)
}

// IsControlTurn reports whether t carries a draft marker rather than
// user-facing text.
func IsControlTurn(t domain.Turn) bool {
	return t.Role == domain.RoleAssistant && strings.Contains(t.Content, DraftTag)
}

// DecodeDraft scans turns newest-first. The draft id comes from the most
// recent control turn that has one; media paths are merged across every
// control turn, de-duplicated in first-seen order. A malformed path list only
// drops that turn's paths.
func DecodeDraft(turns []domain.Turn) domain.DraftContext {
	var out domain.DraftContext
	seen := make(map[string]struct{})

	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if !IsControlTurn(t) {
			continue
		}
		if out.DraftID == "" {
			out.DraftID = draftIDFrom(t.Content)
		}
		for _, p := range pathsFrom(t.Content) {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out.MediaPaths = append(out.MediaPaths, p)
		}
	}
	return out
}

func draftIDFrom(content string) string {
	_, rest, ok := strings.Cut(content, draftIDKey)
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, segmentSep)
	return strings.TrimSpace(id)
}

func pathsFrom(content string) []string {
	_, rest, ok := strings.Cut(content, mediaPathsKey)
	if !ok {
		return nil
	}
	paths, err := parseList(rest)
	if err != nil {
		return nil
	}
	return paths
}

// MergePaths appends the entries of next that are not already in base.
func MergePaths(base []string, next ...string) []string {
	out := make([]string, 0, len(base)+len(next))
	seen := make(map[string]struct{}, len(base)+len(next))
	for _, p := range append(append([]string{}, base...), next...) {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

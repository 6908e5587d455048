package marker

import (
	"bytes"
	"encoding/json"
	"strings"

	"whatsapp-bridge/internal/domain"
)

// SearchTag prefixes the JSON block an agent reply uses to hand over the
// listings it just showed.
const SearchTag = "[SEARCH_CACHE]"

type searchBlock struct {
	Results json.RawMessage `json:"results"`
}

// ExtractSearchCache removes a [SEARCH_CACHE]{...} block from text and
// returns the remaining text plus the decoded results. ok is false when no
// block is present or it carries no usable results array; a malformed block
// is still removed from the returned text.
func ExtractSearchCache(text string) (stripped string, results []domain.Listing, ok bool) {
	start := strings.Index(text, SearchTag)
	if start < 0 {
		return text, nil, false
	}
	bodyStart := start + len(SearchTag)
	if !strings.HasPrefix(text[bodyStart:], "{") {
		return text, nil, false
	}

	dec := json.NewDecoder(strings.NewReader(text[bodyStart:]))
	var block searchBlock
	if err := dec.Decode(&block); err != nil {
		end := strings.LastIndex(text, "}")
		if end < bodyStart {
			return strings.TrimSpace(text[:start]), nil, false
		}
		return strings.TrimSpace(text[:start] + text[end+1:]), nil, false
	}
	end := bodyStart + int(dec.InputOffset())
	stripped = strings.TrimSpace(text[:start] + text[end:])

	raw := bytes.TrimSpace(block.Results)
	if len(raw) == 0 || raw[0] != '[' {
		return stripped, nil, false
	}
	if err := json.Unmarshal(raw, &results); err != nil {
		return stripped, nil, false
	}
	return stripped, results, true
}

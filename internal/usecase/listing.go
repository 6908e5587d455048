package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"whatsapp-bridge/internal/domain"
)

const (
	maxDescriptionRunes = 160
	maxDetailImages     = 3
	notSpecified        = "Belirtilmedi"
)

var detailPattern = regexp.MustCompile(`(\d+)\s*nolu\s*ilan[ıi]?\s*göster`)

// detailIndex reports whether body asks for one listing of the cached search
// and which zero-based index it asks for. The index may be out of range.
func detailIndex(body string, cached int) (int, bool) {
	lower := strings.ToLower(strings.TrimSpace(body))
	if m := detailPattern.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return -1, true
		}
		return n - 1, true
	}
	if cached == 1 && (strings.Contains(lower, "detay") || strings.Contains(lower, "ilanı")) {
		return 0, true
	}
	return 0, false
}

// FormatListingDetail renders one cached search result as a compact
// multi-line message.
func FormatListingDetail(l domain.Listing) string {
	lines := []string{orDefault(textOf(l["title"]), "İlan")}
	if price, ok := l["price"]; ok && price != nil {
		lines = append(lines, fmt.Sprintf("Fiyat: %s TL", textOf(price)))
	}
	lines = append(lines,
		"Konum: "+orDefault(textOf(l["location"]), notSpecified),
		"Durum: "+orDefault(textOf(l["condition"]), notSpecified),
		"Kategori: "+orDefault(textOf(l["category"]), notSpecified),
	)
	if id := textOf(l["id"]); id != "" {
		lines = append(lines, "İlan ID: "+id)
	}

	var owner []string
	if name := orDefault(textOf(l["user_name"]), textOf(l["owner_name"])); name != "" {
		owner = append(owner, name)
	}
	if phone := orDefault(textOf(l["user_phone"]), textOf(l["owner_phone"])); phone != "" {
		owner = append(owner, phone)
	}
	if len(owner) > 0 {
		lines = append(lines, "İlan sahibi: "+strings.Join(owner, " | "))
	}

	if desc := []rune(textOf(l["description"])); len(desc) > 0 {
		short := string(desc[:min(len(desc), maxDescriptionRunes)])
		if len(desc) > maxDescriptionRunes {
			short += "..."
		}
		lines = append(lines, "Açıklama: "+short)
	}

	var images []string
	if list, ok := l["signed_images"].([]any); ok {
		for _, img := range list {
			if len(images) >= maxDetailImages {
				break
			}
			if s := textOf(img); s != "" {
				images = append(images, s)
			}
		}
	}
	if len(images) > 0 {
		lines = append(lines, "Fotoğraflar:")
		lines = append(lines, images...)
	} else {
		lines = append(lines, "Fotoğraf yok")
	}
	return strings.Join(lines, "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		if !t {
			return ""
		}
		return "true"
	default:
		return fmt.Sprint(t)
	}
}

package usecase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"whatsapp-bridge/internal/domain"
)

func TestDetailIndex(t *testing.T) {
	cases := []struct {
		body   string
		cached int
		idx    int
		ok     bool
	}{
		{"3 nolu ilanı göster", 5, 2, true},
		{"  1 NOLU İLAN GÖSTER ", 5, 0, true},
		{"12nolu ilani göster lütfen", 2, 11, true},
		{"0 nolu ilan göster", 3, -1, true},
		{"detayları görebilir miyim", 1, 0, true},
		{"bu ilanı beğendim", 1, 0, true},
		{"detay", 2, 0, false},
		{"bisiklet arıyorum", 1, 0, false},
	}
	for _, tc := range cases {
		idx, ok := detailIndex(tc.body, tc.cached)
		require.Equal(t, tc.ok, ok, "body=%q", tc.body)
		if ok {
			require.Equal(t, tc.idx, idx, "body=%q", tc.body)
		}
	}
}

func TestFormatListingDetail_Full(t *testing.T) {
	l := domain.Listing{
		"id":            "abc-123",
		"title":         "Dağ Bisikleti",
		"price":         float64(1500000),
		"location":      "İstanbul",
		"condition":     "İkinci el",
		"category":      "Spor",
		"user_name":     "Ayşe",
		"owner_phone":   "+905550000000",
		"description":   "Az kullanılmış",
		"signed_images": []any{"https://x/1.jpg", "https://x/2.jpg", "https://x/3.jpg", "https://x/4.jpg"},
	}
	want := strings.Join([]string{
		"Dağ Bisikleti",
		"Fiyat: 1500000 TL",
		"Konum: İstanbul",
		"Durum: İkinci el",
		"Kategori: Spor",
		"İlan ID: abc-123",
		"İlan sahibi: Ayşe | +905550000000",
		"Açıklama: Az kullanılmış",
		"Fotoğraflar:",
		"https://x/1.jpg",
		"https://x/2.jpg",
		"https://x/3.jpg",
	}, "\n")
	require.Equal(t, want, FormatListingDetail(l))
}

func TestFormatListingDetail_Defaults(t *testing.T) {
	want := strings.Join([]string{
		"İlan",
		"Konum: Belirtilmedi",
		"Durum: Belirtilmedi",
		"Kategori: Belirtilmedi",
		"Fotoğraf yok",
	}, "\n")
	require.Equal(t, want, FormatListingDetail(domain.Listing{}))
}

func TestFormatListingDetail_LongDescription(t *testing.T) {
	desc := strings.Repeat("ş", 200)
	out := FormatListingDetail(domain.Listing{"description": desc, "price": float64(0)})
	require.Contains(t, out, "Fiyat: 0 TL")
	require.Contains(t, out, "Açıklama: "+strings.Repeat("ş", 160)+"...")
}

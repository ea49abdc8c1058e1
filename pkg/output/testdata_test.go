package output

import "time"

type testBook struct {
	ID              string    `json:"id"`
	Name            *string   `json:"name"`
	NeedsProcessing bool      `json:"needs_processing"`
	LocationKind    string    `json:"location_kind"`
	ArticleCount    int64     `json:"article_count"`
	CreatedAt       time.Time `json:"created_at"`
	Paths           []string  `json:"paths,omitempty"`
}

func strPtr(s string) *string { return &s }

func testBooks() []testBook {
	created := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	return []testBook{
		{ID: "b1", Name: strPtr("wikipedia_en_all"), LocationKind: "prod", ArticleCount: 6500000, CreatedAt: created},
		{ID: "b2", Name: strPtr("wiktionary_fr"), NeedsProcessing: true, LocationKind: "quarantine", ArticleCount: 42, CreatedAt: created.AddDate(0, 1, 0), Paths: []string{"a", "b"}},
		{ID: "b3", LocationKind: "staging", CreatedAt: created.AddDate(0, 2, 0)},
	}
}

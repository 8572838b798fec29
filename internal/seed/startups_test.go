package seed

import (
	"encoding/json"
	"strings"
	"testing"

	"horse.fit/sentiflow/internal/db"
)

const validFile = `{
	"startups": [
		{
			"name": "Swiggy",
			"sector": "foodtech",
			"description": "Food delivery",
			"image_url": "https://cdn.example.com/swiggy.png",
			"finding_keywords": ["Swiggy", "swiggy ", "Instamart"]
		},
		{
			"name": "Zepto",
			"sector_id": 29,
			"finding_keywords": ["Zepto"]
		}
	]
}`

func TestParseStartupFileValid(t *testing.T) {
	t.Parallel()

	file, err := ParseStartupFile([]byte(validFile))
	if err != nil {
		t.Fatalf("expected file to be valid, got error: %v", err)
	}
	if len(file.Startups) != 2 || file.Startups[1].SectorID != 29 {
		t.Fatalf("unexpected startups: %+v", file.Startups)
	}
}

func TestParseStartupFileRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":            ``,
		"trailing":         `{"startups":[{"name":"A","sector_id":1,"finding_keywords":["a"]}]} {}`,
		"missing keywords": `{"startups":[{"name":"A","sector_id":1}]}`,
		"both sectors":     `{"startups":[{"name":"A","sector":"AI","sector_id":6,"finding_keywords":["a"]}]}`,
		"no sector":        `{"startups":[{"name":"A","finding_keywords":["a"]}]}`,
		"unknown field":    `{"startups":[{"name":"A","sector_id":1,"finding_keywords":["a"],"funding":1}]}`,
		"blank name":       `{"startups":[{"name":"   ","sector_id":1,"finding_keywords":["a"]}]}`,
		"blank keywords":   `{"startups":[{"name":"A","sector_id":1,"finding_keywords":["  "]}]}`,
		"ftp image":        `{"startups":[{"name":"A","sector_id":1,"finding_keywords":["a"],"image_url":"ftp://x.com/a.png"}]}`,
		"duplicate":        `{"startups":[{"name":"A","sector_id":1,"finding_keywords":["a"]},{"name":" a ","sector_id":1,"finding_keywords":["b"]}]}`,
	}

	for name, raw := range cases {
		name, raw := name, raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if _, err := ParseStartupFile([]byte(raw)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestBuildStartupsResolvesSectorsAndIDs(t *testing.T) {
	t.Parallel()

	file, err := ParseStartupFile([]byte(validFile))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sectors, err := Sectors()
	if err != nil {
		t.Fatalf("sectors: %v", err)
	}

	startups, err := BuildStartups(file, sectors)
	if err != nil {
		t.Fatalf("build startups: %v", err)
	}
	if len(startups) != 2 {
		t.Fatalf("unexpected startup count: %d", len(startups))
	}
	if startups[0].SectorID != 28 || startups[0].ID != DeriveStartupID("Swiggy", 28) {
		t.Fatalf("unexpected swiggy record: %+v", startups[0])
	}

	var keywords []string
	if err := json.Unmarshal(startups[0].FindingKeywords, &keywords); err != nil {
		t.Fatalf("decode keywords: %v", err)
	}
	if strings.Join(keywords, ",") != "Swiggy,Instamart" {
		t.Fatalf("unexpected keywords: %v", keywords)
	}
}

func TestBuildStartupsUnknownSector(t *testing.T) {
	t.Parallel()

	file := &StartupFile{Startups: []StartupInput{{Name: "A", Sector: "Space Mining", FindingKeywords: []string{"a"}}}}
	if _, err := BuildStartups(file, []db.Sector{{ID: 1, Name: "Fintech"}}); err == nil {
		t.Fatalf("expected unknown sector error")
	}

	byID := &StartupFile{Startups: []StartupInput{{Name: "A", SectorID: 99, FindingKeywords: []string{"a"}}}}
	if _, err := BuildStartups(byID, []db.Sector{{ID: 1, Name: "Fintech"}}); err == nil {
		t.Fatalf("expected unknown sector id error")
	}
}

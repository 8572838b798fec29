package seed

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"horse.fit/sentiflow/internal/db"
)

// NormalizeName case folds a startup name and collapses whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// DeriveStartupID returns the stable id for a startup: lowercase hex of the
// first 16 bytes of BLAKE2b-256 over the normalized name and sector id.
func DeriveStartupID(name string, sectorID int) string {
	sum := blake2b.Sum256([]byte(NormalizeName(name) + "\x1f" + strconv.Itoa(sectorID)))
	return hex.EncodeToString(sum[:16])
}

// BuildStartups resolves sectors and ids for an import file.
func BuildStartups(file *StartupFile, sectors []db.Sector) ([]db.Startup, error) {
	if file == nil {
		return nil, fmt.Errorf("startup file is nil")
	}

	byName := make(map[string]int, len(sectors))
	byID := make(map[int]struct{}, len(sectors))
	for _, s := range sectors {
		byName[strings.ToLower(strings.TrimSpace(s.Name))] = s.ID
		byID[s.ID] = struct{}{}
	}

	out := make([]db.Startup, 0, len(file.Startups))
	ids := make(map[string]string, len(file.Startups))
	for i, in := range file.Startups {
		sectorID := in.SectorID
		if name := strings.TrimSpace(in.Sector); name != "" {
			id, ok := byName[strings.ToLower(name)]
			if !ok {
				return nil, fmt.Errorf("startups[%d] (%s): unknown sector %q", i, in.Name, in.Sector)
			}
			sectorID = id
		} else if _, ok := byID[sectorID]; !ok {
			return nil, fmt.Errorf("startups[%d] (%s): unknown sector id %d", i, in.Name, sectorID)
		}

		id := DeriveStartupID(in.Name, sectorID)
		if prev, dup := ids[id]; dup {
			return nil, fmt.Errorf("startups[%d] (%s) resolves to the same startup as %s", i, in.Name, prev)
		}
		ids[id] = in.Name

		keywords, err := db.EncodeKeywords(cleanKeywords(in.FindingKeywords))
		if err != nil {
			return nil, fmt.Errorf("startups[%d] (%s): %w", i, in.Name, err)
		}

		var imageURL *string
		if in.ImageURL != nil {
			trimmed := strings.TrimSpace(*in.ImageURL)
			imageURL = &trimmed
		}

		out = append(out, db.Startup{
			ID:              id,
			Name:            strings.Join(strings.Fields(in.Name), " "),
			SectorID:        sectorID,
			Description:     strings.TrimSpace(in.Description),
			ImageURL:        imageURL,
			FindingKeywords: keywords,
		})
	}
	return out, nil
}

func cleanKeywords(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, kw := range raw {
		kw = strings.Join(strings.Fields(kw), " ")
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

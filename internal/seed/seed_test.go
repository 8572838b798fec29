package seed

import (
	"regexp"
	"testing"
)

func TestDeriveStartupIDIsStableAndNormalized(t *testing.T) {
	t.Parallel()

	id := DeriveStartupID("Swiggy", 28)
	if !regexp.MustCompile(`^[0-9a-f]{32}$`).MatchString(id) {
		t.Fatalf("unexpected id format: %q", id)
	}
	if again := DeriveStartupID("  SWIGGY ", 28); again != id {
		t.Fatalf("expected normalized names to share an id: %q vs %q", again, id)
	}
	if other := DeriveStartupID("Swiggy", 4); other == id {
		t.Fatalf("expected sector to change the id")
	}
	if DeriveStartupID("Ola Electric", 9) == DeriveStartupID("Ola  electric ", 9) {
		return
	}
	t.Fatalf("expected inner whitespace to be collapsed")
}

func TestSectorsEmbedded(t *testing.T) {
	t.Parallel()

	sectors, err := Sectors()
	if err != nil {
		t.Fatalf("sectors: %v", err)
	}
	if len(sectors) != 30 {
		t.Fatalf("unexpected sector count: %d", len(sectors))
	}
	if sectors[0].ID != 1 || sectors[0].Name != "Fintech" || sectors[29].Name != "PropTech" {
		t.Fatalf("unexpected sector bounds: %+v %+v", sectors[0], sectors[29])
	}
}

func TestParseSectorsRejectsDuplicates(t *testing.T) {
	t.Parallel()

	if _, err := ParseSectors([]byte("sectors:\n  - {id: 1, name: AI}\n  - {id: 1, name: ML}\n")); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if _, err := ParseSectors([]byte("sectors:\n  - {id: 1, name: AI}\n  - {id: 2, name: ai}\n")); err == nil {
		t.Fatalf("expected duplicate name error")
	}
	if _, err := ParseSectors([]byte("sectors: []\n")); err == nil {
		t.Fatalf("expected empty document error")
	}
}

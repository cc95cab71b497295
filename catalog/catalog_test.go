package catalog

import (
	"path/filepath"
	"testing"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("cannot open test catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestAddAndEntries(t *testing.T) {
	cat := openTestCatalog(t)

	id1, err := cat.Add("products/a.jpg", "00ff00ff00ff00ff")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	id2, err := cat.Add("products/b.jpg", "")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("two inserts got the same id %d", id1)
	}

	entries, err := cat.Entries(0)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ImageRef != "products/a.jpg" || entries[0].Fingerprint != "00ff00ff00ff00ff" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Fingerprint != "" {
		t.Errorf("missing fingerprint should read back empty, got %q", entries[1].Fingerprint)
	}
}

func TestAddRejectsEmptyRef(t *testing.T) {
	cat := openTestCatalog(t)
	if _, err := cat.Add("", ""); err == nil {
		t.Fatal("Add with empty image reference should fail")
	}
}

func TestAddRejectsDuplicateRef(t *testing.T) {
	cat := openTestCatalog(t)
	if _, err := cat.Add("products/a.jpg", ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := cat.Add("products/a.jpg", ""); err == nil {
		t.Fatal("duplicate image reference should fail")
	}
}

func TestEntriesExclusion(t *testing.T) {
	cat := openTestCatalog(t)

	id1, _ := cat.Add("a.jpg", "")
	id2, _ := cat.Add("b.jpg", "")

	entries, err := cat.Entries(id1)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != id2 {
		t.Errorf("exclusion of %d returned %+v", id1, entries)
	}
}

func TestSaveFingerprint(t *testing.T) {
	cat := openTestCatalog(t)

	id, _ := cat.Add("a.jpg", "")
	if err := cat.SaveFingerprint(id, "c3c3c3c3c3c3c3c3"); err != nil {
		t.Fatalf("SaveFingerprint failed: %v", err)
	}

	entries, err := cat.Entries(0)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if entries[0].Fingerprint != "c3c3c3c3c3c3c3c3" {
		t.Errorf("fingerprint did not persist: %+v", entries[0])
	}
}

func TestSaveFingerprintUnknownID(t *testing.T) {
	cat := openTestCatalog(t)
	if err := cat.SaveFingerprint(12345, "00ff00ff00ff00ff"); err == nil {
		t.Fatal("saving against a missing entry should fail")
	}
}

func TestFindByRef(t *testing.T) {
	cat := openTestCatalog(t)
	id, _ := cat.Add("a.jpg", "")

	got, found, err := cat.FindByRef("a.jpg")
	if err != nil {
		t.Fatalf("FindByRef failed: %v", err)
	}
	if !found || got != id {
		t.Errorf("FindByRef = (%d, %v), want (%d, true)", got, found, id)
	}

	_, found, err = cat.FindByRef("nope.jpg")
	if err != nil {
		t.Fatalf("FindByRef failed: %v", err)
	}
	if found {
		t.Error("FindByRef found a reference that was never added")
	}
}

func TestRemoveReturnsImageRef(t *testing.T) {
	cat := openTestCatalog(t)
	id, _ := cat.Add("a.jpg", "")

	ref, err := cat.Remove(id)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if ref != "a.jpg" {
		t.Errorf("Remove returned ref %q, want a.jpg", ref)
	}

	n, err := cat.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("catalog still holds %d entries after removal", n)
	}

	if _, err := cat.Remove(id); err == nil {
		t.Error("removing the same entry twice should fail")
	}
}

func TestOpenIsIdempotentOnSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := first.Add("a.jpg", ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	n, err := second.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("reopened catalog holds %d entries, want 1", n)
	}
}

package state

import (
	"path/filepath"
	"testing"

	"github.com/shoplatch/latchbot/internal/models"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()

	bolt, err := NewBoltStore(filepath.Join(t.TempDir(), "latchbot.db"))
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() { bolt.Close() })

	return map[string]Store{
		"bolt":   bolt,
		"file":   NewFileStore(filepath.Join(t.TempDir(), "state.json")),
		"memory": NewMemoryStore(),
	}
}

// =============================================================================
// Store Tests
// =============================================================================

func TestStore_PutGet(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			in := []models.ListingRecord{
				{ID: "ITM1", Title: "Shoe", URL: "https://example.com/p?pid=ITM1", Price: "₹499"},
			}
			if err := store.Put(KeyScannedProducts, in); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			var out []models.ListingRecord
			found, err := store.Get(KeyScannedProducts, &out)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !found {
				t.Fatal("Get() should find the key")
			}
			if len(out) != 1 || out[0].ID != "ITM1" {
				t.Errorf("Get() = %+v, want the stored record", out)
			}
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			var out int
			found, err := store.Get("no_such_key", &out)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if found {
				t.Error("Get() should not find a missing key")
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Put(KeyLatchingIndex, 7); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := store.Delete(KeyLatchingIndex); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}

			var out int
			found, _ := store.Get(KeyLatchingIndex, &out)
			if found {
				t.Error("Key should be gone after Delete()")
			}
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			if err := store.Put(KeyLatchingIndex, 1); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := store.Put(KeyLatchingIndex, 2); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			var out int
			if _, err := store.Get(KeyLatchingIndex, &out); err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if out != 2 {
				t.Errorf("Get() = %d, want 2", out)
			}
		})
	}
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latchbot.db")

	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	if err := store.Put(KeyLatchingActive, true); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	store.Close()

	reopened, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("NewBoltStore() reopen error = %v", err)
	}
	defer reopened.Close()

	var active bool
	found, err := reopened.Get(KeyLatchingActive, &active)
	if err != nil || !found || !active {
		t.Errorf("Get() after reopen = (%v, %v, %v), want (true, true, nil)", active, found, err)
	}
}

// =============================================================================
// Manager Tests
// =============================================================================

func testSession() *models.Session {
	return &models.Session{
		Items: []models.ReplayItem{
			{ListingRecord: models.ListingRecord{ID: "A", Title: "First"}, Status: models.StatusListed},
			{ListingRecord: models.ListingRecord{ID: "B", Title: "Second"}, Status: models.StatusPending},
		},
		Cursor:   1,
		Settings: models.DefaultFormSettings(),
		Active:   true,
	}
}

func TestManager_SessionRoundTrip(t *testing.T) {
	m := NewManager(NewMemoryStore())

	if err := m.SaveSession(testSession()); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	loaded, err := m.LoadSession()
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadSession() should find the session")
	}
	if len(loaded.Items) != 2 {
		t.Fatalf("Items = %d, want 2", len(loaded.Items))
	}
	if loaded.Cursor != 1 {
		t.Errorf("Cursor = %d, want 1", loaded.Cursor)
	}
	if !loaded.Active {
		t.Error("Active should survive the round trip")
	}
	if loaded.Items[0].Status != models.StatusListed {
		t.Errorf("Items[0].Status = %s, want LISTED", loaded.Items[0].Status)
	}
}

func TestManager_LoadSession_NoneSaved(t *testing.T) {
	m := NewManager(NewMemoryStore())

	loaded, err := m.LoadSession()
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if loaded != nil {
		t.Error("LoadSession() should return nil when nothing was saved")
	}
}

func TestManager_SetCursor(t *testing.T) {
	m := NewManager(NewMemoryStore())
	if err := m.SaveSession(testSession()); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	if err := m.SetCursor(5); err != nil {
		t.Fatalf("SetCursor() error = %v", err)
	}

	loaded, _ := m.LoadSession()
	if loaded.Cursor != 5 {
		t.Errorf("Cursor = %d, want 5", loaded.Cursor)
	}
}

func TestManager_ActiveFlag(t *testing.T) {
	m := NewManager(NewMemoryStore())

	active, err := m.Active()
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if active {
		t.Error("Active() should default to false")
	}

	if err := m.SetActive(true); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	if active, _ = m.Active(); !active {
		t.Error("Active() should report true after SetActive(true)")
	}
}

func TestManager_Results(t *testing.T) {
	m := NewManager(NewMemoryStore())

	for _, r := range []models.ItemResult{
		{Product: "Widget A", Status: models.StatusListed},
		{Product: "Widget B", Status: models.StatusError, Message: "submit button not found"},
	} {
		if err := m.AppendResult(r); err != nil {
			t.Fatalf("AppendResult() error = %v", err)
		}
	}

	results, err := m.Results()
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Results() = %d entries, want 2", len(results))
	}
	if results[1].Message != "submit button not found" {
		t.Errorf("Message = %q, want the error message", results[1].Message)
	}
}

func TestManager_ClearSession(t *testing.T) {
	m := NewManager(NewMemoryStore())
	if err := m.SaveSession(testSession()); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	if err := m.AppendResult(models.ItemResult{Product: "Widget A"}); err != nil {
		t.Fatalf("AppendResult() error = %v", err)
	}

	if err := m.ClearSession(); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}

	loaded, _ := m.LoadSession()
	if loaded != nil {
		t.Error("Session should be gone after ClearSession()")
	}
	results, _ := m.Results()
	if len(results) != 0 {
		t.Error("Results should be gone after ClearSession()")
	}
}

func TestManager_ProductsAndSettings(t *testing.T) {
	m := NewManager(NewMemoryStore())

	products, err := m.LoadProducts()
	if err != nil {
		t.Fatalf("LoadProducts() error = %v", err)
	}
	if products != nil {
		t.Error("LoadProducts() should return nil when nothing was saved")
	}

	if err := m.SaveProducts([]models.ListingRecord{{ID: "X", Title: "Bag"}}); err != nil {
		t.Fatalf("SaveProducts() error = %v", err)
	}
	products, _ = m.LoadProducts()
	if len(products) != 1 || products[0].ID != "X" {
		t.Errorf("LoadProducts() = %+v, want the saved record", products)
	}

	_, found, err := m.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if found {
		t.Error("LoadSettings() should report missing before save")
	}

	in := models.DefaultFormSettings()
	in.SKUPrefix = "SL-"
	if err := m.SaveSettings(in); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}
	out, found, _ := m.LoadSettings()
	if !found || out.SKUPrefix != "SL-" {
		t.Errorf("LoadSettings() = (%+v, %v), want saved settings", out, found)
	}
}

// =============================================================================
// Deduplicator Tests
// =============================================================================

func TestManager_DetailRoundTrip(t *testing.T) {
	m := NewManager(NewMemoryStore())

	if d, err := m.LoadDetail(); err != nil || d != nil {
		t.Fatalf("LoadDetail() = %v, %v, want nil before any save", d, err)
	}

	in := &models.ProductDetail{
		Title: "Gadget Pro 3000",
		Price: "₹4,999",
		URL:   "https://www.example-market.com/gadget-pro/p/itm123",
	}
	if err := m.SaveDetail(in); err != nil {
		t.Fatalf("SaveDetail() error = %v", err)
	}

	out, err := m.LoadDetail()
	if err != nil {
		t.Fatalf("LoadDetail() error = %v", err)
	}
	if out == nil || out.Title != in.Title || out.Price != in.Price {
		t.Errorf("LoadDetail() = %+v, want the saved detail", out)
	}
}

func TestManager_SaveItems(t *testing.T) {
	m := NewManager(NewMemoryStore())
	if err := m.SaveSession(testSession()); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	s, err := m.LoadSession()
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	s.Items[1].Status = models.StatusError
	s.Items[1].Message = "Search icon not found"
	if err := m.SaveItems(s.Items); err != nil {
		t.Fatalf("SaveItems() error = %v", err)
	}

	reloaded, err := m.LoadSession()
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if reloaded.Items[1].Status != models.StatusError {
		t.Errorf("Status = %v, want the written-through mutation", reloaded.Items[1].Status)
	}
	if reloaded.Cursor != s.Cursor {
		t.Errorf("Cursor = %d, SaveItems must not touch the cursor", reloaded.Cursor)
	}
}

func TestDeduplicator_AddAndHasSeen(t *testing.T) {
	d := NewDeduplicator(100)

	if d.HasSeen("ITM1") {
		t.Error("Fresh deduplicator should not have seen anything")
	}

	d.Add("ITM1")
	if !d.HasSeen("ITM1") {
		t.Error("Should have seen ITM1 after Add")
	}
	if d.HasSeen("ITM2") {
		t.Error("Should not have seen ITM2")
	}
}

func TestDeduplicator_CountIgnoresDuplicates(t *testing.T) {
	d := NewDeduplicator(100)

	d.Add("ITM1")
	d.Add("ITM1")
	d.Add("ITM2")

	if d.Count() != 2 {
		t.Errorf("Count() = %d, want 2", d.Count())
	}
}

func TestDeduplicator_AddBatch(t *testing.T) {
	d := NewDeduplicator(100)

	d.AddBatch([]string{"A", "B", "A", "C"})

	if d.Count() != 3 {
		t.Errorf("Count() = %d, want 3", d.Count())
	}
	for _, id := range []string{"A", "B", "C"} {
		if !d.HasSeen(id) {
			t.Errorf("Should have seen %s", id)
		}
	}
}

func TestDeduplicator_Reset(t *testing.T) {
	d := NewDeduplicator(100)
	d.Add("ITM1")

	d.Reset()

	if d.Count() != 0 {
		t.Errorf("Count() = %d, want 0", d.Count())
	}
	if d.HasSeen("ITM1") {
		t.Error("Should not have seen ITM1 after reset")
	}
}

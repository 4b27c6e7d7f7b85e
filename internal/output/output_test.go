package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/shoplatch/latchbot/internal/models"
)

func listings() []models.ListingRecord {
	return []models.ListingRecord{
		{ID: "ITM1", Title: "Plain Widget", URL: "https://x/p/1", Image: "https://img/1.jpg", Price: "₹499"},
		{ID: "ITM2", Title: `Widget "Deluxe", 2-pack`, URL: "https://x/p/2", Image: "https://img/2.jpg", Price: "₹999"},
	}
}

// =============================================================================
// CSV Tests
// =============================================================================

func TestCSV_SimpleListings(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)

	if err := w.WriteListings(listings(), false); err != nil {
		t.Fatalf("WriteListings() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header plus two rows", len(lines))
	}
	if lines[0] != "Title,URL,ID" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `"Plain Widget","https://x/p/1","ITM1"` {
		t.Errorf("row 1 = %q, every cell must be quoted", lines[1])
	}
	// Embedded quotes double, the comma stays inside the cell.
	if lines[2] != `"Widget ""Deluxe"", 2-pack","https://x/p/2","ITM2"` {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestCSV_AdvancedListings(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)

	if err := w.WriteListings(listings(), true); err != nil {
		t.Fatalf("WriteListings() error = %v", err)
	}

	lines := strings.Split(buf.String(), "\n")
	if lines[0] != "Name,Image,Price,URL,ID" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `"Plain Widget","https://img/1.jpg","₹499","https://x/p/1","ITM1"` {
		t.Errorf("row 1 = %q", lines[1])
	}
}

func TestCSV_Results(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)

	err := w.WriteResults([]models.ItemResult{
		{Product: "Widget", Status: models.StatusListed, Message: "Form filled successfully"},
	})
	if err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}

	lines := strings.Split(buf.String(), "\n")
	if lines[0] != "Product,Status,Message" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != `"Widget","LISTED","Form filled successfully"` {
		t.Errorf("row = %q", lines[1])
	}
}

func TestCSV_Detail(t *testing.T) {
	specs := models.NewSpecs()
	specs.Set("Model", "GP-3000")

	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	err := w.WriteDetail(&models.ProductDetail{
		Title:          "Gadget",
		Price:          "₹2,999",
		Highlights:     []string{"Fast", "Light"},
		Specifications: specs,
	})
	if err != nil {
		t.Fatalf("WriteDetail() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"Highlights","Fast; Light"`) {
		t.Errorf("output missing joined highlights:\n%s", out)
	}
	if !strings.Contains(out, `"Model","GP-3000"`) {
		t.Errorf("output missing spec row:\n%s", out)
	}
}

func TestCSV_ClosedIsNoop(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	w.Close()

	if err := w.WriteListings(listings(), false); err != nil {
		t.Fatalf("WriteListings() after close error = %v", err)
	}
	if buf.Len() != 0 {
		t.Error("closed writer must not write")
	}
}

// =============================================================================
// JSON Tests
// =============================================================================

func TestJSON_Listings(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter(&buf, false)

	if err := w.WriteListings(listings(), false); err != nil {
		t.Fatalf("WriteListings() error = %v", err)
	}

	var got []models.ListingRecord
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(got) != 2 || got[1].ID != "ITM2" {
		t.Errorf("round-trip = %+v", got)
	}
}

func TestJSON_Pretty(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter(&buf, true)

	if err := w.WriteResults([]models.ItemResult{{Product: "Widget", Status: models.StatusListed}}); err != nil {
		t.Fatalf("WriteResults() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("pretty output should be indented")
	}
}

// =============================================================================
// Factory Tests
// =============================================================================

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer

	if _, ok := NewWriter(&buf, Config{Format: "csv"}).(*CSVWriter); !ok {
		t.Error("csv format should produce a CSVWriter")
	}
	if _, ok := NewWriter(&buf, Config{Format: "json"}).(*JSONWriter); !ok {
		t.Error("json format should produce a JSONWriter")
	}
	if _, ok := NewWriter(&buf, Config{}).(*JSONWriter); !ok {
		t.Error("default format should be JSON")
	}
}

// Package state provides durable storage for scraped products, seller
// settings, and resumable latching sessions.
package state

import (
	"sync"

	"github.com/shoplatch/latchbot/internal/models"
)

// Storage keys. These match the keys the browser-extension era data
// used, so an exported store file from that tooling loads unchanged.
const (
	KeyScannedProducts  = "scannedProducts"
	KeyScrapedDetail    = "scrapedProductData"
	KeySellerSettings   = "sellerSettings"
	KeyLatchingActive   = "latchingActive"
	KeyLatchingProducts = "latchingProducts"
	KeyLatchingSettings = "latchingSettings"
	KeyLatchingIndex    = "latchingIndex"
	KeyLatchingResults  = "latchingResults"
)

// Manager exposes typed access to the store. All methods are safe for
// concurrent use.
type Manager struct {
	mu    sync.Mutex
	store Store
}

// NewManager creates a new state manager.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// SaveProducts persists the scraped product list.
func (m *Manager) SaveProducts(items []models.ListingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Put(KeyScannedProducts, items)
}

// LoadProducts returns the scraped product list, or nil if none saved.
func (m *Manager) LoadProducts() ([]models.ListingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []models.ListingRecord
	found, err := m.store.Get(KeyScannedProducts, &items)
	if err != nil || !found {
		return nil, err
	}
	return items, nil
}

// SaveDetail persists the most recent product detail scrape.
func (m *Manager) SaveDetail(d *models.ProductDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Put(KeyScrapedDetail, d)
}

// LoadDetail returns the stored product detail, or nil if none saved.
func (m *Manager) LoadDetail() (*models.ProductDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var d models.ProductDetail
	found, err := m.store.Get(KeyScrapedDetail, &d)
	if err != nil || !found {
		return nil, err
	}
	return &d, nil
}

// SaveSettings persists the seller form settings.
func (m *Manager) SaveSettings(s models.FormSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Put(KeySellerSettings, s)
}

// LoadSettings returns the seller form settings. The second return
// reports whether settings were found.
func (m *Manager) LoadSettings() (models.FormSettings, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var s models.FormSettings
	found, err := m.store.Get(KeySellerSettings, &s)
	return s, found, err
}

// SaveSession persists the full latching session: its item list,
// settings, cursor, active flag, and accumulated results. Each field
// lives under its own key so a partially written session still resumes.
func (m *Manager) SaveSession(s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Put(KeyLatchingProducts, s.Items); err != nil {
		return err
	}
	if err := m.store.Put(KeyLatchingSettings, s.Settings); err != nil {
		return err
	}
	if err := m.store.Put(KeyLatchingIndex, s.Cursor); err != nil {
		return err
	}
	return m.store.Put(KeyLatchingActive, s.Active)
}

// LoadSession restores a latching session, or returns nil if no session
// was ever persisted.
func (m *Manager) LoadSession() (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []models.ReplayItem
	found, err := m.store.Get(KeyLatchingProducts, &items)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	s := &models.Session{Items: items, Settings: models.DefaultFormSettings()}
	if _, err := m.store.Get(KeyLatchingSettings, &s.Settings); err != nil {
		return nil, err
	}
	if _, err := m.store.Get(KeyLatchingIndex, &s.Cursor); err != nil {
		return nil, err
	}
	if _, err := m.store.Get(KeyLatchingActive, &s.Active); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveItems persists only the session item list. Item status mutations
// are written through with this so the stored list always carries each
// finished item's terminal status.
func (m *Manager) SaveItems(items []models.ReplayItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Put(KeyLatchingProducts, items)
}

// SetCursor persists only the session cursor.
func (m *Manager) SetCursor(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Put(KeyLatchingIndex, index)
}

// SetActive persists only the session active flag.
func (m *Manager) SetActive(active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Put(KeyLatchingActive, active)
}

// Active reports whether a persisted session is marked active.
func (m *Manager) Active() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var active bool
	found, err := m.store.Get(KeyLatchingActive, &active)
	if err != nil || !found {
		return false, err
	}
	return active, nil
}

// AppendResult appends a per-item outcome to the session results.
func (m *Manager) AppendResult(r models.ItemResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []models.ItemResult
	if _, err := m.store.Get(KeyLatchingResults, &results); err != nil {
		return err
	}
	results = append(results, r)
	return m.store.Put(KeyLatchingResults, results)
}

// Results returns the accumulated per-item outcomes.
func (m *Manager) Results() ([]models.ItemResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []models.ItemResult
	if _, err := m.store.Get(KeyLatchingResults, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// ClearSession removes all session keys, including results.
func (m *Manager) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range []string{
		KeyLatchingProducts,
		KeyLatchingSettings,
		KeyLatchingIndex,
		KeyLatchingActive,
		KeyLatchingResults,
	} {
		if err := m.store.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

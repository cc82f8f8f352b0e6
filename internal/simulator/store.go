package simulator

import (
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"
)

// DefaultCalibrationFactor is the factor a freshly flashed scale starts with.
const DefaultCalibrationFactor = 400.0

// Prefs is what the firmware keeps in non-volatile storage.
type Prefs struct {
	CalibrationFactor float64 `json:"calibrationFactor"`
	APIKey            string  `json:"apiKey"`
	WiFiSSID          string  `json:"wifiSSID"`
}

// DefaultPrefs returns factory settings.
func DefaultPrefs() Prefs {
	return Prefs{CalibrationFactor: DefaultCalibrationFactor, WiFiSSID: "TigerNet"}
}

// Store persists Prefs across simulator restarts.
type Store interface {
	// Load returns the stored prefs, or DefaultPrefs when nothing is stored.
	Load() (Prefs, error)
	Save(p Prefs) error
	// Clear erases everything, like a factory reset of the NVS partition.
	Clear() error
	Close() error
}

// MemoryStore keeps prefs in memory only.
type MemoryStore struct {
	mu    sync.Mutex
	prefs *Prefs
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (Prefs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prefs == nil {
		return DefaultPrefs(), nil
	}
	return *m.prefs, nil
}

func (m *MemoryStore) Save(p Prefs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = &p
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs = nil
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

var (
	prefsBucket = []byte("prefs")
	prefsKey    = []byte("scale")
)

// BoltStore keeps prefs in a bbolt file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the database at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open prefs store %s: %w", path, err)
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Load() (Prefs, error) {
	prefs := DefaultPrefs()
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(prefsBucket)
		if bucket == nil {
			return nil
		}
		data := bucket.Get(prefsKey)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &prefs)
	})
	if err != nil {
		return Prefs{}, fmt.Errorf("failed to load prefs: %w", err)
	}
	return prefs, nil
}

func (b *BoltStore) Save(p Prefs) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode prefs: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(prefsBucket)
		if err != nil {
			return err
		}
		return bucket.Put(prefsKey, data)
	})
}

func (b *BoltStore) Clear() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(prefsBucket) == nil {
			return nil
		}
		return tx.DeleteBucket(prefsBucket)
	})
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}

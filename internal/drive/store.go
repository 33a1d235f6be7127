package drive

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"discburn-agent/internal/track"
)

const settingsBucket = "drive-settings"

// Settings are the per-drive preferences remembered between runs: the burn
// flags the user last picked, the write speed and the temporary directory
// used for intermediate images.
type Settings struct {
	Flags  track.BurnFlag `json:"flags"`
	Speed  int64          `json:"speed"`
	TmpDir string         `json:"tmpdir,omitempty"`
}

// SavedFlagsMask limits which flags are worth remembering per drive.
const SavedFlagsMask = track.FlagNoTmpFiles | track.FlagEject |
	track.FlagDummy | track.FlagBurnProof | track.FlagMulti

// Store persists drive settings in a bolt database keyed by device path.
type Store struct {
	path string
	db   *bolt.DB
}

func NewStore(path string) (*Store, error) {
	return &Store{path: path}, nil
}

func (s *Store) Open() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	db, err := bolt.Open(s.path, 0o600, nil)
	if err != nil {
		return err
	}
	s.db = db
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(settingsBucket))
		return err
	})
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the saved settings for a device, or false when none exist.
func (s *Store) Get(device string) (Settings, bool, error) {
	var settings Settings
	if s.db == nil {
		return settings, false, errors.New("store not open")
	}
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(settingsBucket))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(device))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &settings); err != nil {
			return err
		}
		found = true
		return nil
	})
	return settings, found, err
}

// Put stores the settings for a device, keeping only the rememberable flags.
func (s *Store) Put(device string, settings Settings) error {
	if s.db == nil {
		return errors.New("store not open")
	}
	settings.Flags &= SavedFlagsMask
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(settingsBucket))
		return b.Put([]byte(device), data)
	})
}

// Delete removes the saved settings for a device.
func (s *Store) Delete(device string) error {
	if s.db == nil {
		return errors.New("store not open")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(settingsBucket))
		return b.Delete([]byte(device))
	})
}

package reminder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/models"
)

var ErrNotFound = errors.New("reminder not found")

// Store keeps claim reminders for op-bridge withdrawals. Writes are last-write-wins.
// Claimed withdrawals leave a tombstone so they are never reminded again.
// With an empty path the store lives in memory only.
type Store struct {
	filePath string
	mu       sync.RWMutex
	records  map[string]models.ReminderRecord
	claimed  map[string]time.Time
}

// storeFile is the JSON layout on disk
type storeFile struct {
	Reminders map[string]models.ReminderRecord `json:"reminders"`
	Claimed   map[string]time.Time             `json:"claimed,omitempty"`
}

func NewStore(filePath string) (*Store, error) {
	s := &Store{
		filePath: filePath,
		records:  make(map[string]models.ReminderRecord),
		claimed:  make(map[string]time.Time),
	}
	if filePath == "" {
		return s, nil
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load reminders: %w", err)
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal reminders: %w", err)
	}
	if file.Reminders != nil {
		s.records = file.Reminders
	}
	if file.Claimed != nil {
		s.claimed = file.Claimed
	}
	return nil
}

// saveLocked writes through a temp file and a rename. Callers hold mu.
func (s *Store) saveLocked() error {
	if s.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(storeFile{Reminders: s.records, Claimed: s.claimed}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal reminders: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write reminders: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Observe records a withdrawal. A record that was dismissed stays dismissed and
// a withdrawal already claimed is ignored.
func (s *Store) Observe(rec models.ReminderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claimed[rec.Key()]; ok {
		return nil
	}
	if prev, ok := s.records[rec.Key()]; ok && prev.Dismissed {
		rec.Dismissed = true
	}
	s.records[rec.Key()] = rec
	return s.saveLocked()
}

func (s *Store) Get(key string) (models.ReminderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return models.ReminderRecord{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return rec, nil
}

// Dismiss hides the reminder for good
func (s *Store) Dismiss(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	rec.Dismissed = true
	s.records[key] = rec
	return s.saveLocked()
}

// MarkClaimed drops the reminder once the withdrawal is claimed. The key is
// remembered so later observations of the same withdrawal are ignored.
func (s *Store) MarkClaimed(key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(s.records, key)
	s.claimed[key] = at
	return s.saveLocked()
}

// IsClaimed reports whether the withdrawal behind key was marked claimed
func (s *Store) IsClaimed(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.claimed[key]
	return ok
}

// Actionable returns the reminders of address that can be claimed at now,
// oldest claimable first.
func (s *Store) Actionable(address string, now time.Time) []models.ReminderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ReminderRecord, 0)
	for _, rec := range s.records {
		if rec.Actionable(address, now) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ClaimableAt.Equal(out[j].ClaimableAt) {
			return out[i].ClaimableAt.Before(out[j].ClaimableAt)
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// FromWithdrawal builds the reminder for a submitted op-withdraw route. The
// withdrawal becomes claimable once the route's estimated duration has passed.
func FromWithdrawal(route *models.Route, txHash, recipient string, submittedAt time.Time) (models.ReminderRecord, bool) {
	if route == nil || !route.IsOpWithdraw() {
		return models.ReminderRecord{}, false
	}
	return models.ReminderRecord{
		ChainID:     route.SourceAssetChainID,
		TxHash:      txHash,
		Recipient:   recipient,
		ClaimableAt: submittedAt.Add(time.Duration(route.EstimatedRouteDurationSeconds) * time.Second),
		Amount:      route.AmountOut,
		Denom:       route.DestAssetDenom,
	}, true
}

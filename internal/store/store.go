package store

import (
	"sync"

	"taxadmin/internal/model"
)

// RecordStore holds the working set: the trailing slice of normalized tax
// records plus the known countries. There is no database behind it; the
// upstream API is the source of truth and this is the service's only state.
type RecordStore interface {
	SetRecords(records []model.TaxRecord)
	Records() []model.TaxRecord
	Record(id string) (model.TaxRecord, bool)
	Replace(rec model.TaxRecord) bool
	SetCountries(countries []model.Country)
	Countries() []model.Country
}

type memoryStore struct {
	mu        sync.RWMutex
	records   []model.TaxRecord
	countries []model.Country
}

func NewMemoryStore() RecordStore {
	return &memoryStore{}
}

func (s *memoryStore) SetRecords(records []model.TaxRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make([]model.TaxRecord, len(records))
	copy(s.records, records)
}

func (s *memoryStore) Records() []model.TaxRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TaxRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *memoryStore) Record(id string) (model.TaxRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return model.TaxRecord{}, false
}

// Replace swaps in the updated record by id, keeping its position. Returns
// false if the id is no longer in the working set.
func (s *memoryStore) Replace(rec model.TaxRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == rec.ID {
			s.records[i] = rec
			return true
		}
	}
	return false
}

func (s *memoryStore) SetCountries(countries []model.Country) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countries = make([]model.Country, len(countries))
	copy(s.countries, countries)
}

func (s *memoryStore) Countries() []model.Country {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Country, len(s.countries))
	copy(out, s.countries)
	return out
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"taxadmin/internal/model"
	"taxadmin/internal/realtime"
	"taxadmin/internal/store"

	"github.com/rs/zerolog"
)

// The working set is always the trailing slice of the upstream list.
const workingSetSize = 7

const displayDateFormat = "Jan 02, 2006"

// --- DTOs ---

type UpdateRecordRequest struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

type RecordResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	Country     string `json:"country"`
	RequestDate string `json:"request_date"`
}

// --- Interfaces ---

// Upstream is the slice of the remote API the service needs.
type Upstream interface {
	Countries(ctx context.Context) ([]model.Country, error)
	TaxRecords(ctx context.Context) ([]model.TaxRecord, error)
	UpdateTaxRecord(ctx context.Context, rec model.TaxRecord, name, country string) (model.TaxRecord, error)
}

type RecordService interface {
	// Load refreshes the working set: countries, then the trailing slice of
	// records, date-normalized.
	Load(ctx context.Context) error
	ListRecords(ctx context.Context, countries []string) []RecordResponse
	ListCountries(ctx context.Context, search string) []model.Country
	GetRecord(ctx context.Context, id string) (RecordResponse, error)
	UpdateRecord(ctx context.Context, id string, req UpdateRecordRequest) (RecordResponse, error)
}

type recordService struct {
	upstream Upstream
	store    store.RecordStore
	hub      *realtime.Hub
	log      zerolog.Logger
}

func NewRecordService(up Upstream, st store.RecordStore, hub *realtime.Hub, log zerolog.Logger) RecordService {
	return &recordService{upstream: up, store: st, hub: hub, log: log}
}

// --- Implementation ---

func (s *recordService) Load(ctx context.Context) error {
	countries, err := s.upstream.Countries(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch countries: %w", err)
	}
	s.store.SetCountries(countries)

	records, err := s.upstream.TaxRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch tax records: %w", err)
	}

	if len(records) > workingSetSize {
		records = records[len(records)-workingSetSize:]
	}
	for i := range records {
		records[i] = normalizeRecord(records[i])
	}
	applyLegacyGenderPatch(records)

	s.store.SetRecords(records)
	s.log.Info().
		Int("records", len(records)).
		Int("countries", len(countries)).
		Msg("Working set loaded")
	return nil
}

func (s *recordService) ListRecords(_ context.Context, countries []string) []RecordResponse {
	selected := make(map[string]bool, len(countries))
	for _, name := range countries {
		if name != "" {
			selected[name] = true
		}
	}

	records := s.store.Records()
	res := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		// An empty selection means no filter
		if len(selected) > 0 && !selected[rec.Country] {
			continue
		}
		res = append(res, toRecordResponse(rec))
	}
	return res
}

func (s *recordService) ListCountries(_ context.Context, search string) []model.Country {
	countries := s.store.Countries()
	if search == "" {
		return countries
	}

	needle := strings.ToLower(search)
	res := make([]model.Country, 0, len(countries))
	for _, c := range countries {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			res = append(res, c)
		}
	}
	return res
}

func (s *recordService) GetRecord(_ context.Context, id string) (RecordResponse, error) {
	rec, ok := s.store.Record(id)
	if !ok {
		return RecordResponse{}, fmt.Errorf("tax record not found")
	}
	return toRecordResponse(rec), nil
}

func (s *recordService) UpdateRecord(ctx context.Context, id string, req UpdateRecordRequest) (RecordResponse, error) {
	rec, ok := s.store.Record(id)
	if !ok {
		return RecordResponse{}, fmt.Errorf("tax record not found")
	}

	updated, err := s.upstream.UpdateTaxRecord(ctx, rec, req.Name, req.Country)
	if err != nil {
		return RecordResponse{}, fmt.Errorf("failed to update tax record %s: %w", id, err)
	}

	updated = normalizeRecord(updated)
	if !s.store.Replace(updated) {
		// Working set was refreshed underneath us; upstream already has the
		// change, so just report what it returned
		s.log.Warn().Str("record_id", updated.ID).Msg("Updated record no longer in working set")
	}

	if s.hub != nil {
		s.hub.NotifyRecordUpdated(updated)
	}

	s.log.Info().Str("record_id", updated.ID).Msg("Tax record updated")
	return toRecordResponse(updated), nil
}

// --- Helpers ---

// normalizeRecord formats the display date, preferring requestDate over
// createdAt. Values that don't parse as RFC3339 pass through unchanged.
func normalizeRecord(rec model.TaxRecord) model.TaxRecord {
	src := rec.RequestDate
	if src == "" {
		src = rec.CreatedAt
	}
	rec.RequestDate = formatDisplayDate(src)
	return rec
}

func formatDisplayDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Format(displayDateFormat)
}

// applyLegacyGenderPatch carries over a data override from the source system:
// when the first record is named "harsh" (any casing), its gender is forced
// to Female. No business rule behind it; kept for parity with the legacy
// admin page.
func applyLegacyGenderPatch(records []model.TaxRecord) {
	if len(records) > 0 && strings.EqualFold(records[0].Name, "harsh") {
		records[0].Gender = "Female"
	}
}

func toRecordResponse(rec model.TaxRecord) RecordResponse {
	return RecordResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		Gender:      displayCase(rec.Gender),
		Country:     rec.Country,
		RequestDate: rec.RequestDate,
	}
}

// displayCase uppercases the first letter only ("male" -> "Male").
func displayCase(s string) string {
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

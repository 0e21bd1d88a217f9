package expense

import (
	"fmt"
	"sort"
)

func validateTravel(f *TravelFields) error {
	if f.Date.IsZero() {
		return fmt.Errorf("date is required: %w", ErrInvalid)
	}
	if f.Kilometers.IsNegative() || f.TravelCost.IsNegative() {
		return fmt.Errorf("kilometers and travel cost cannot be negative: %w", ErrInvalid)
	}
	return nil
}

// CreateTravel saves a new travel entry
func (s *Service) CreateTravel(f TravelFields) (*TravelEntry, error) {
	if err := validateTravel(&f); err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	entry := &TravelEntry{
		ID:        s.idGenerator.Generate(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	entry.apply(f)

	if err := s.db.SaveTravel(entry); err != nil {
		return nil, fmt.Errorf("saving travel entry: %w", err)
	}
	return entry, nil
}

// GetTravel retrieves a travel entry by ID
func (s *Service) GetTravel(id string) (*TravelEntry, error) {
	entry, err := s.db.GetTravel(id)
	if err != nil {
		return nil, fmt.Errorf("getting travel entry: %w", err)
	}
	return entry, nil
}

// ListTravel returns the matching travel entries, newest first
func (s *Service) ListTravel(f Filter) ([]*TravelEntry, error) {
	all, err := s.db.ListTravel()
	if err != nil {
		return nil, fmt.Errorf("listing travel entries: %w", err)
	}
	entries := make([]*TravelEntry, 0, len(all))
	for _, t := range all {
		if f.matches(t.Date, t.IsSubmitted) {
			entries = append(entries, t)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// UpdateTravel changes an unsubmitted travel entry
func (s *Service) UpdateTravel(id string, f TravelFields) (*TravelEntry, error) {
	entry, err := s.db.GetTravel(id)
	if err != nil {
		return nil, fmt.Errorf("getting travel entry: %w", err)
	}
	if entry.IsSubmitted {
		return nil, fmt.Errorf("travel entry %s: %w", id, ErrSubmitted)
	}
	if err := validateTravel(&f); err != nil {
		return nil, err
	}

	entry.apply(f)
	entry.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveTravel(entry); err != nil {
		return nil, fmt.Errorf("saving travel entry: %w", err)
	}
	return entry, nil
}

// DeleteTravel removes a travel entry
func (s *Service) DeleteTravel(id string) error {
	if err := s.db.DeleteTravel(id); err != nil {
		return fmt.Errorf("deleting travel entry: %w", err)
	}
	return nil
}

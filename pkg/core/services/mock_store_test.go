package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

// mockStore implements the service store interfaces in memory, mirroring
// the storage contract: upserts keyed by (definitionID, date), with ledger
// and cursor bookkeeping applied only when a row is actually inserted.
type mockStore struct {
	mu          sync.Mutex
	definitions map[string]*db.DutyDefinition
	exceptions  []db.DutyException
	instances   []*db.DutyInstance
	ledger      map[string]*db.FairnessLedgerEntry

	upsertErr error
}

func newMockStore(defs ...*db.DutyDefinition) *mockStore {
	s := &mockStore{
		definitions: make(map[string]*db.DutyDefinition),
		ledger:      make(map[string]*db.FairnessLedgerEntry),
	}
	for _, def := range defs {
		copied := *def
		s.definitions[def.ID] = &copied
	}
	return s
}

func (s *mockStore) GetDefinition(_ context.Context, id string) (*db.DutyDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.definitions[id]
	if !ok {
		return nil, fmt.Errorf("definition %s not found", id)
	}
	copied := *def
	return &copied, nil
}

func (s *mockStore) ListActiveDefinitions(_ context.Context) ([]db.DutyDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var defs []db.DutyDefinition
	for _, def := range s.definitions {
		if def.Status == db.DefinitionActive {
			defs = append(defs, *def)
		}
	}
	return defs, nil
}

func (s *mockStore) InsertDefinition(_ context.Context, def *db.DutyDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *def
	s.definitions[def.ID] = &copied
	return nil
}

func (s *mockStore) UpdateDefinition(_ context.Context, def *db.DutyDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.definitions[def.ID]; !ok {
		return fmt.Errorf("definition %s not found", def.ID)
	}
	copied := *def
	s.definitions[def.ID] = &copied
	return nil
}

func (s *mockStore) SetDefinitionStatus(_ context.Context, id string, status db.DefinitionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.definitions[id]
	if !ok {
		return fmt.Errorf("definition %s not found", id)
	}
	def.Status = status
	return nil
}

func (s *mockStore) GetExceptions(_ context.Context, definitionID, from, to string) ([]db.DutyException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.DutyException
	for _, exc := range s.exceptions {
		if exc.DefinitionID == definitionID && exc.Date >= from && exc.Date <= to {
			out = append(out, exc)
		}
	}
	return out, nil
}

func (s *mockStore) InsertException(_ context.Context, exc *db.DutyException) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions = append(s.exceptions, *exc)
	return nil
}

func (s *mockStore) GetInstance(_ context.Context, id string) (*db.DutyInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instances {
		if inst.ID == id {
			copied := *inst
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("instance %s not found", id)
}

func (s *mockStore) GetInstances(_ context.Context, definitionID, from, to string) ([]db.DutyInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.DutyInstance
	for _, inst := range s.instances {
		if inst.DefinitionID != nil && *inst.DefinitionID == definitionID && inst.Date >= from && inst.Date <= to {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (s *mockStore) GetScheduleRange(_ context.Context, stableID, from, to string) ([]db.DutyInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.DutyInstance
	for _, inst := range s.instances {
		if inst.StableID == stableID && inst.Date >= from && inst.Date <= to {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (s *mockStore) UpsertInstances(_ context.Context, writes []db.InstanceWrite) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}

	created := 0
	for _, w := range writes {
		if s.hasInstance(w.Instance) {
			continue
		}
		copied := w.Instance
		s.instances = append(s.instances, &copied)
		created++

		if w.Ledger != nil {
			key := w.Ledger.DefinitionID + "|" + w.Ledger.MemberID + "|" + w.Ledger.Period
			entry, ok := s.ledger[key]
			if !ok {
				entry = &db.FairnessLedgerEntry{
					DefinitionID: w.Ledger.DefinitionID,
					MemberID:     w.Ledger.MemberID,
					Period:       w.Ledger.Period,
				}
				s.ledger[key] = entry
			}
			entry.RawWeightSum += w.Ledger.RawWeight
			entry.AdjustedWeightSum += w.Ledger.AdjustedWeight
			entry.InstanceCount++
		}

		if w.AdvanceCursor && w.Instance.DefinitionID != nil {
			if def, ok := s.definitions[*w.Instance.DefinitionID]; ok {
				def.RotationCursor++
			}
		}
	}
	return created, nil
}

// hasInstance mirrors the partial unique indexes on (definition_id, date)
func (s *mockStore) hasInstance(candidate db.DutyInstance) bool {
	for _, inst := range s.instances {
		if inst.DefinitionID == nil || candidate.DefinitionID == nil {
			continue
		}
		if *inst.DefinitionID != *candidate.DefinitionID || inst.Date != candidate.Date {
			continue
		}
		if (inst.Origin == db.OriginAdd) == (candidate.Origin == db.OriginAdd) {
			return true
		}
	}
	return false
}

func (s *mockStore) TransitionInstance(_ context.Context, id string, from, to db.InstanceStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instances {
		if inst.ID == id {
			if inst.Status != from {
				return false, nil
			}
			inst.Status = to
			return true, nil
		}
	}
	return false, fmt.Errorf("instance %s not found", id)
}

func (s *mockStore) SetInstanceProgress(_ context.Context, id string, progress int, status db.InstanceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instances {
		if inst.ID == id {
			inst.Progress = progress
			inst.Status = status
			return nil
		}
	}
	return fmt.Errorf("instance %s not found", id)
}

func (s *mockStore) SetInstanceAssignee(_ context.Context, id string, assigneeID *string, assigneeName string, origin db.AssignmentOrigin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inst := range s.instances {
		if inst.ID == id {
			inst.AssigneeID = assigneeID
			inst.AssigneeName = assigneeName
			inst.Origin = origin
			return nil
		}
	}
	return fmt.Errorf("instance %s not found", id)
}

func (s *mockStore) ListOverdueScheduled(_ context.Context, asOf time.Time) ([]db.DutyInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.DutyInstance
	for _, inst := range s.instances {
		if inst.Status != db.StatusScheduled || inst.Progress != 0 {
			continue
		}
		scheduledAt, err := inst.ScheduledAt()
		if err != nil {
			continue
		}
		if scheduledAt.Add(time.Duration(inst.DurationMinutes) * time.Minute).Before(asOf) {
			out = append(out, *inst)
		}
	}
	return out, nil
}

func (s *mockStore) GetLedgerEntries(_ context.Context, definitionID, period string) ([]db.FairnessLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.FairnessLedgerEntry
	for _, entry := range s.ledger {
		if entry.DefinitionID == definitionID && entry.Period == period {
			out = append(out, *entry)
		}
	}
	return out, nil
}

// instancesByDate returns the store's instances for a definition keyed by
// date, for assertions
func (s *mockStore) instancesByDate(definitionID string) map[string]*db.DutyInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*db.DutyInstance)
	for _, inst := range s.instances {
		if inst.DefinitionID != nil && *inst.DefinitionID == definitionID && inst.Origin != db.OriginAdd {
			copied := *inst
			out[inst.Date] = &copied
		}
	}
	return out
}

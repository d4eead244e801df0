// Package members resolves member identities to display names for instance
// denormalization. Directory failures degrade to a placeholder name and
// never block materialization.
package members

import (
	"context"
	"fmt"
	"strings"

	"github.com/maxton76/stall-bokning-sub014/pkg/db"
)

// Directory resolves a member identity to a display name
type Directory interface {
	DisplayName(ctx context.Context, memberID string) (string, error)
}

// StoreDirectory resolves display names from the member table
type StoreDirectory struct {
	store db.MemberStore
}

// NewStoreDirectory creates a directory backed by the member store
func NewStoreDirectory(store db.MemberStore) *StoreDirectory {
	return &StoreDirectory{store: store}
}

// DisplayName returns "First Last" for the member
func (d *StoreDirectory) DisplayName(ctx context.Context, memberID string) (string, error) {
	member, err := d.store.GetMember(ctx, memberID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve member %s: %w", memberID, err)
	}
	name := strings.TrimSpace(member.FirstName + " " + member.LastName)
	if name == "" {
		return "", fmt.Errorf("member %s has no name on record", memberID)
	}
	return name, nil
}

// StaticDirectory is an in-memory directory for tests
type StaticDirectory struct {
	Names map[string]string
}

// DisplayName returns the registered name for the member
func (d *StaticDirectory) DisplayName(_ context.Context, memberID string) (string, error) {
	name, ok := d.Names[memberID]
	if !ok {
		return "", fmt.Errorf("unknown member %s", memberID)
	}
	return name, nil
}

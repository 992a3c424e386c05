package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

type mockEmailLookup struct {
	existsFunc func(ctx context.Context, userID, externalEmailID string) (bool, error)
	calls      int
}

func (m *mockEmailLookup) ExistsByExternalID(ctx context.Context, userID, externalEmailID string) (bool, error) {
	m.calls++
	if m.existsFunc != nil {
		return m.existsFunc(ctx, userID, externalEmailID)
	}
	return false, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestGate_NotDuplicate(t *testing.T) {
	lookup := &mockEmailLookup{}
	gate := NewGate(nil, lookup, testLogger())

	dup, err := gate.IsDuplicate(context.Background(), "user-1", "msg-abc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if dup {
		t.Error("expected not duplicate")
	}
	if lookup.calls != 1 {
		t.Errorf("expected 1 store lookup, got %d", lookup.calls)
	}
}

func TestGate_DuplicateInStore(t *testing.T) {
	lookup := &mockEmailLookup{
		existsFunc: func(ctx context.Context, userID, externalEmailID string) (bool, error) {
			if userID != "user-1" || externalEmailID != "msg-abc" {
				t.Errorf("unexpected lookup args: %s %s", userID, externalEmailID)
			}
			return true, nil
		},
	}
	gate := NewGate(nil, lookup, testLogger())

	dup, err := gate.IsDuplicate(context.Background(), "user-1", "msg-abc")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !dup {
		t.Error("expected duplicate")
	}
}

func TestGate_StoreErrorIsNotTreatedAsNew(t *testing.T) {
	lookup := &mockEmailLookup{
		existsFunc: func(ctx context.Context, userID, externalEmailID string) (bool, error) {
			return false, errors.New("store unreachable")
		},
	}
	gate := NewGate(nil, lookup, testLogger())

	_, err := gate.IsDuplicate(context.Background(), "user-1", "msg-abc")
	if err == nil {
		t.Fatal("expected error when store lookup fails, got nil")
	}
}

func TestGate_MarkSeenWithoutRedisIsNoop(t *testing.T) {
	gate := NewGate(nil, &mockEmailLookup{}, testLogger())
	// Must not panic with a nil redis client.
	gate.MarkSeen(context.Background(), "user-1", "msg-abc")
}

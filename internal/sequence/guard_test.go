package sequence

import (
	"context"
	"errors"
	"testing"
)

func TestCheck(t *testing.T) {
	testCases := []struct {
		name    string
		current int64
		seq     int64
		want    error
	}{
		{"fresh first", 0, 1, nil},
		{"fresh resync", 0, 57, nil},
		{"fresh zero", 0, 0, ErrReplay},
		{"next", 4, 5, nil},
		{"same", 4, 4, ErrReplay},
		{"older", 4, 2, ErrReplay},
		{"skip one", 4, 6, ErrGap},
		{"far ahead", 4, 1000, ErrGap},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Check(tc.current, tc.seq); !errors.Is(err, tc.want) {
				t.Errorf("Check(%d, %d) = %v, want %v", tc.current, tc.seq, err, tc.want)
			}
		})
	}
}

type memCounter struct {
	rows    map[string]int64
	readErr error
}

func key(d, a string) string { return d + "/" + a }

func (m *memCounter) LastSeq(_ context.Context, d, a string) (int64, error) {
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.rows[key(d, a)], nil
}

func (m *memCounter) LockSeq(_ context.Context, d, a string) (int64, error) {
	if _, ok := m.rows[key(d, a)]; !ok {
		m.rows[key(d, a)] = 0
	}
	return m.rows[key(d, a)], nil
}

func (m *memCounter) SaveSeq(_ context.Context, d, a string, seq int64) error {
	m.rows[key(d, a)] = seq
	return nil
}

func TestGuard_PrecheckAndAdvance(t *testing.T) {
	ctx := context.Background()
	store := &memCounter{rows: map[string]int64{}}
	g := NewGuard(store)

	expected, err := g.Precheck(ctx, "d1", "hw-1", 3)
	if err != nil {
		t.Fatalf("Precheck: %v", err)
	}
	if expected != 0 {
		t.Fatalf("expected = %d, want 0", expected)
	}
	if err := Advance(ctx, store, "d1", "hw-1", 3, expected); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if store.rows[key("d1", "hw-1")] != 3 {
		t.Fatalf("lastSeq = %d, want 3", store.rows[key("d1", "hw-1")])
	}

	// The re-sync window is gone once a value is stored.
	if _, err := g.Precheck(ctx, "d1", "hw-1", 5); !errors.Is(err, ErrGap) {
		t.Errorf("Precheck gap = %v, want ErrGap", err)
	}
	if _, err := g.Precheck(ctx, "d1", "hw-1", 3); !errors.Is(err, ErrReplay) {
		t.Errorf("Precheck replay = %v, want ErrReplay", err)
	}
	// Pairs are independent.
	if _, err := g.Precheck(ctx, "d1", "hw-2", 9); err != nil {
		t.Errorf("Precheck other assignment: %v", err)
	}
}

func TestAdvance_ConcurrentUpdate(t *testing.T) {
	ctx := context.Background()
	store := &memCounter{rows: map[string]int64{}}
	g := NewGuard(store)

	expected, err := g.Precheck(ctx, "d1", "hw-1", 1)
	if err != nil {
		t.Fatalf("Precheck: %v", err)
	}
	// A sibling request commits seq=1 between precheck and transaction.
	store.rows[key("d1", "hw-1")] = 1

	err = Advance(ctx, store, "d1", "hw-1", 1, expected)
	if !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("Advance = %v, want ErrConcurrentUpdate", err)
	}
	if store.rows[key("d1", "hw-1")] != 1 {
		t.Error("counter must not move on a lost race")
	}
}

func TestGuard_PrecheckReadError(t *testing.T) {
	boom := errors.New("db down")
	g := NewGuard(&memCounter{readErr: boom})
	if _, err := g.Precheck(context.Background(), "d1", "hw-1", 1); !errors.Is(err, boom) {
		t.Errorf("Precheck = %v, want read error", err)
	}
}

package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/obsidian-labs/darkpool-api/internal/types"
)

// stubReader serves canned account bytes per address.
type stubReader struct {
	accounts map[string][]byte
	err      error
}

func (s *stubReader) GetAccountBytes(_ context.Context, address string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.accounts[address], nil
}

func testFeeds() FeedTables {
	return FeedTables{
		Switchboard: map[string]string{"SOL/USD": "sb-sol"},
		Pyth:        map[string]string{"SOL/USD": "pyth-sol"},
	}
}

func TestGetPricePicksFreshest(t *testing.T) {
	now := time.Now().Unix()

	// Switchboard reports a minute in the future; the Pyth reading is
	// stamped with the fetch time, so Switchboard must win.
	reader := &stubReader{accounts: map[string][]byte{
		"sb-sol":   switchboardBuffer(150.0, 0.5, now+60),
		"pyth-sol": pythBuffer(pythMagic, -8, 14255000000, 12000000),
	}}
	arb := NewArbitrator(reader, testFeeds(), 0)

	px, err := arb.GetPrice(context.Background(), "SOL/USD")
	if err != nil {
		t.Fatalf("GetPrice returned error: %v", err)
	}
	if px.Source != types.SourceSwitchboard {
		t.Errorf("source = %q, want %q", px.Source, types.SourceSwitchboard)
	}

	// Flip it: a Switchboard round from an hour ago loses to Pyth's
	// fetch-time stamp.
	reader.accounts["sb-sol"] = switchboardBuffer(150.0, 0.5, now-3600)
	px, err = arb.GetPrice(context.Background(), "SOL/USD")
	if err != nil {
		t.Fatalf("GetPrice returned error: %v", err)
	}
	if px.Source != types.SourcePyth {
		t.Errorf("source = %q, want %q", px.Source, types.SourcePyth)
	}
}

func TestGetPriceFallsBackWhenOneFeedBroken(t *testing.T) {
	now := time.Now().Unix()

	// Feed A buffer too short, feed B healthy: arbitration returns B
	// with no error.
	reader := &stubReader{accounts: map[string][]byte{
		"sb-sol":   make([]byte, 64),
		"pyth-sol": pythBuffer(pythMagic, -8, 14255000000, 12000000),
	}}
	arb := NewArbitrator(reader, testFeeds(), 0)

	px, err := arb.GetPrice(context.Background(), "SOL/USD")
	if err != nil {
		t.Fatalf("GetPrice returned error: %v", err)
	}
	if px.Source != types.SourcePyth {
		t.Errorf("source = %q, want %q", px.Source, types.SourcePyth)
	}

	// And the other way around.
	reader.accounts = map[string][]byte{
		"sb-sol":   switchboardBuffer(151.2, 0.3, now),
		"pyth-sol": pythBuffer(0xbad, -8, 1, 1),
	}
	px, err = arb.GetPrice(context.Background(), "SOL/USD")
	if err != nil {
		t.Fatalf("GetPrice returned error: %v", err)
	}
	if px.Source != types.SourceSwitchboard {
		t.Errorf("source = %q, want %q", px.Source, types.SourceSwitchboard)
	}
}

func TestGetPriceNoData(t *testing.T) {
	arb := NewArbitrator(&stubReader{}, testFeeds(), 0)
	if _, err := arb.GetPrice(context.Background(), "XYZ/USD"); !errors.Is(err, ErrNoOracleData) {
		t.Errorf("unconfigured pair: err = %v, want ErrNoOracleData", err)
	}

	// Configured pair, but every read fails.
	arb = NewArbitrator(&stubReader{err: errors.New("rpc down")}, testFeeds(), 0)
	if _, err := arb.GetPrice(context.Background(), "SOL/USD"); !errors.Is(err, ErrNoOracleData) {
		t.Errorf("all reads failed: err = %v, want ErrNoOracleData", err)
	}
}

func TestGetPriceStalenessFlag(t *testing.T) {
	now := time.Now().Unix()
	feeds := FeedTables{Switchboard: map[string]string{"SOL/USD": "sb-sol"}}

	cases := []struct {
		name  string
		ts    int64
		stale bool
	}{
		{"fresh", now - 5, false},
		{"just inside cutoff", now - 110, false},
		{"beyond cutoff", now - 300, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reader := &stubReader{accounts: map[string][]byte{
				"sb-sol": switchboardBuffer(150.0, 0.5, tc.ts),
			}}
			arb := NewArbitrator(reader, feeds, 0)

			px, err := arb.GetPrice(context.Background(), "SOL/USD")
			if err != nil {
				t.Fatalf("GetPrice returned error: %v", err)
			}
			if px.Stale != tc.stale {
				t.Errorf("stale = %v, want %v", px.Stale, tc.stale)
			}
		})
	}
}

func TestCanResolve(t *testing.T) {
	now := time.Now().Unix()
	feeds := FeedTables{Switchboard: map[string]string{"SOL/USD": "sb-sol"}}
	reader := &stubReader{accounts: map[string][]byte{
		"sb-sol": switchboardBuffer(150.0, 0.5, now),
	}}
	arb := NewArbitrator(reader, feeds, 0)

	cases := []struct {
		name      string
		threshold float64
		above     bool
		outcome   bool
	}{
		{"above met", 100, true, true},
		{"above at threshold", 150, true, true},
		{"above not met", 200, true, false},
		{"below met", 200, false, true},
		{"below not met", 100, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, ok := arb.CanResolve(context.Background(), "SOL/USD", tc.threshold, tc.above)
			if !ok {
				t.Fatal("CanResolve returned indeterminate, want determinate")
			}
			if outcome != tc.outcome {
				t.Errorf("outcome = %v, want %v", outcome, tc.outcome)
			}
		})
	}
}

func TestCanResolveIndeterminate(t *testing.T) {
	arb := NewArbitrator(&stubReader{err: errors.New("rpc down")}, testFeeds(), 0)
	if _, ok := arb.CanResolve(context.Background(), "SOL/USD", 100, true); ok {
		t.Error("CanResolve reported determinate with no oracle data")
	}
}

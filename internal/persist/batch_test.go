package persist

import (
	"testing"
	"time"

	"github.com/stellarion/server/internal/data"
	"github.com/stellarion/server/internal/world"
)

func TestBuildBatchRestageRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := world.NewState(data.Default())
	s.AddBattleReport(&world.BattleReport{AttackerID: 1, DefenderID: 2, ResolvedAt: now})
	s.AddEspionageReport(&world.EspionageReport{AttackerID: 1, DefenderID: 2, CreatedAt: now})
	s.RecordTrade(world.TradeRecord{Type: "trade_completed", SellerID: 1, BuyerID: 2})

	first := BuildBatch(s, nil, nil, now)
	if len(first.BattleReports) != 1 || len(first.EspionageReports) != 1 || len(first.Trades) != 1 {
		t.Fatalf("first batch rows: %d battle, %d espionage, %d trade",
			len(first.BattleReports), len(first.EspionageReports), len(first.Trades))
	}

	// Rows are consumed exactly once.
	second := BuildBatch(s, nil, nil, now)
	if len(second.BattleReports) != 0 || len(second.EspionageReports) != 0 || len(second.Trades) != 0 {
		t.Fatalf("second batch re-took rows: %+v", second)
	}

	// A batch that never reached the database hands its rows back.
	Restage(s, first)
	third := BuildBatch(s, nil, nil, now)
	if len(third.BattleReports) != 1 || len(third.EspionageReports) != 1 || len(third.Trades) != 1 {
		t.Fatalf("restaged rows not offered again: %d battle, %d espionage, %d trade",
			len(third.BattleReports), len(third.EspionageReports), len(third.Trades))
	}
	if third.BattleReports[0].ID != first.BattleReports[0].ID {
		t.Fatalf("restaged report ID %d, expected %d", third.BattleReports[0].ID, first.BattleReports[0].ID)
	}
}

func TestAbsorbKeepsSupersededRows(t *testing.T) {
	old := Batch{
		Trades:           []world.TradeRecord{{Seq: 1}},
		BattleReports:    []world.BattleReport{{ID: 1}},
		EspionageReports: []world.EspionageReport{{ID: 2}},
		Force:            true,
	}
	fresh := Batch{
		BattleReports: []world.BattleReport{{ID: 3}},
		reportCursor:  3,
		tradeCursor:   1,
	}
	fresh.absorb(&old)

	if len(fresh.BattleReports) != 2 || fresh.BattleReports[0].ID != 1 || fresh.BattleReports[1].ID != 3 {
		t.Fatalf("battle reports after absorb: %+v", fresh.BattleReports)
	}
	if len(fresh.EspionageReports) != 1 || len(fresh.Trades) != 1 {
		t.Fatalf("rows after absorb: %d espionage, %d trade", len(fresh.EspionageReports), len(fresh.Trades))
	}
	if fresh.reportCursor != 0 || fresh.tradeCursor != 0 {
		t.Fatalf("cursors after absorb: %d/%d", fresh.reportCursor, fresh.tradeCursor)
	}
	if !fresh.Force {
		t.Fatalf("forced shutdown batch lost its flag")
	}
}

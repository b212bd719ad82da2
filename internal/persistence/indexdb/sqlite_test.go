package indexdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"replenisher/internal/persistence/snapshot"
	"replenisher/internal/replenish"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqRun}

	_ = s.WriteRun(replenish.Record{RunID: "dropped"})
	s.RecordSnapshot("/tmp/1.snap.zst", snapshot.WorldV1{})

	st := s.Stats()
	if st.DropRunTotal != 1 {
		t.Fatalf("DropRunTotal=%d want=1", st.DropRunTotal)
	}
	if st.DropSnapshotTotal != 1 {
		t.Fatalf("DropSnapshotTotal=%d want=1", st.DropSnapshotTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_RecentRuns(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "runs.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = idx.Close() }()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, kind := range []replenish.Kind{replenish.KindPots, replenish.KindOre, replenish.KindChests} {
		rec := replenish.Record{
			RunID:     "run-" + string(kind),
			Trigger:   replenish.TriggerSchedule,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
			Request:   replenish.Request{Kind: kind, Target: 4, OreSubtype: "iron"},
			Result:    replenish.Result{Kind: kind, Attempted: 9, Succeeded: 4, Blocked: 2},
		}
		if kind == replenish.KindChests {
			rec.Trigger = replenish.TriggerCommand
			rec.Request.Target = 0
			rec.Result = replenish.Result{Kind: kind, Sweep: &replenish.SweepResult{Removed: 2, Seen: 5}}
		}
		if err := idx.WriteRun(rec); err != nil {
			t.Fatalf("WriteRun: %v", err)
		}
	}
	idx.RecordSnapshot("/tmp/a.snap.zst", snapshot.WorldV1{Header: snapshot.Header{WorldID: "w", SavedAt: 1, Runs: 3}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	rows, err := idx.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d want=2", len(rows))
	}
	if rows[0].Kind != "chests" || rows[0].Swept != 2 || rows[0].Trigger != "command" {
		t.Fatalf("newest row: %+v", rows[0])
	}
	if rows[1].Kind != "ore" || rows[1].OreSubtype != "iron" || rows[1].Blocked != 2 {
		t.Fatalf("second row: %+v", rows[1])
	}
	if st := idx.Stats(); st.WrittenRunTotal != 3 || st.WriteErrorTotal != 0 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestSQLiteIndex_RecentRunsOrdersSubsecond(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = idx.Close() }()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, r := range []struct {
		id string
		at time.Time
	}{
		{"whole", base},
		{"half", base.Add(500 * time.Millisecond)},
		{"next", base.Add(time.Second)},
	} {
		rec := replenish.Record{RunID: r.id, Trigger: replenish.TriggerCommand, StartedAt: r.at, Request: replenish.Request{Kind: replenish.KindPots, Target: 1}}
		if err := idx.WriteRun(rec); err != nil {
			t.Fatalf("WriteRun: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	rows, err := idx.RecentRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(rows) != 3 || rows[0].RunID != "next" || rows[1].RunID != "half" || rows[2].RunID != "whole" {
		t.Fatalf("order: %+v", rows)
	}
	if rows[2].StartedAt != "2026-01-02T03:04:05.000000000Z" {
		t.Fatalf("started_at=%q", rows[2].StartedAt)
	}
}

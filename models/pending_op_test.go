package models

import "testing"

func opAt(target, opType string) PendingOperation {
	return PendingOperation{Target: target, OperationType: opType, Status: PendingOpPending}
}

func TestOptimizePendingOps_CancelOutPair(t *testing.T) {
	ops := []PendingOperation{
		opAt("Alice", "whitelist.add"),
		opAt("Alice", "whitelist.remove"),
	}
	got := OptimizePendingOps(ops)
	if len(got) != 0 {
		t.Fatalf("expected add/remove pair to cancel out, got %+v", got)
	}
}

func TestOptimizePendingOps_DuplicateCollapses(t *testing.T) {
	ops := []PendingOperation{
		opAt("Alice", "whitelist.add"),
		opAt("Alice", "whitelist.add"),
	}
	got := OptimizePendingOps(ops)
	if len(got) != 1 || got[0].OperationType != "whitelist.add" {
		t.Fatalf("expected duplicate add to collapse to one, got %+v", got)
	}
}

func TestOptimizePendingOps_InterveningDifferentTargetStillCollapses(t *testing.T) {
	ops := []PendingOperation{
		opAt("Alice", "whitelist.add"),
		opAt("Bob", "whitelist.remove"),
		opAt("Alice", "whitelist.add"),
	}
	got := OptimizePendingOps(ops)
	if len(got) != 2 {
		t.Fatalf("expected the duplicate Alice add to collapse around Bob's op, got %+v", got)
	}
	targets := map[string]bool{}
	for _, op := range got {
		targets[op.Target] = true
	}
	if !targets["Alice"] || !targets["Bob"] {
		t.Fatalf("expected both Alice and Bob to remain represented, got %+v", got)
	}
}

func TestOptimizePendingOps_NonWhitelistOpsAlwaysPreserved(t *testing.T) {
	ops := []PendingOperation{
		opAt("Alice", "whitelist.add"),
		opAt("Alice", "player.kick"),
		opAt("Alice", "whitelist.add"),
	}
	got := OptimizePendingOps(ops)
	if len(got) != 3 {
		t.Fatalf("expected player.kick to break the collapse window, got %+v", got)
	}
}

func TestOptimizePendingOps_PreservesOrderForDistinctTargets(t *testing.T) {
	ops := []PendingOperation{
		opAt("Alice", "whitelist.add"),
		opAt("Bob", "whitelist.add"),
		opAt("Carol", "whitelist.remove"),
	}
	got := OptimizePendingOps(ops)
	if len(got) != 3 {
		t.Fatalf("expected all three distinct-target ops to survive, got %+v", got)
	}
	if got[0].Target != "Alice" || got[1].Target != "Bob" || got[2].Target != "Carol" {
		t.Fatalf("expected order to be preserved, got %+v", got)
	}
}

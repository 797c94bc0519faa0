package storagerequest

import (
	"testing"

	"github.com/storagehub-network/sh-core/config"
	"github.com/storagehub-network/sh-core/crypto"
)

func TestThresholdZeroBeforeAcceptAt(t *testing.T) {
	th := Threshold(100, 50)
	if th.Sign() != 0 {
		t.Fatalf("threshold before accept_at = %v, want 0", th)
	}
}

func TestThresholdRisesMonotonically(t *testing.T) {
	acceptAt := uint64(100)
	prev := Threshold(acceptAt, acceptAt)
	for tick := acceptAt + 1; tick <= acceptAt+config.TickRangeToMaximumThreshold; tick += 100 {
		cur := Threshold(acceptAt, tick)
		if cur.Cmp(prev) < 0 {
			t.Fatalf("threshold decreased between ticks: %v -> %v", prev, cur)
		}
		prev = cur
	}
}

func TestThresholdReachesMaxAtEndOfRamp(t *testing.T) {
	acceptAt := uint64(0)
	atEnd := Threshold(acceptAt, config.TickRangeToMaximumThreshold)
	pastEnd := Threshold(acceptAt, config.TickRangeToMaximumThreshold+1000)
	if atEnd.Cmp(pastEnd) != 0 {
		t.Fatalf("threshold should stay at max past the ramp: %v vs %v", atEnd, pastEnd)
	}
}

func TestCanVolunteerMatchesThresholdComparison(t *testing.T) {
	fileKey := crypto.HashBytes([]byte("file-threshold"))
	acceptAt := uint64(10)
	pk := "some-bsp-pubkey"

	earliest := EarliestVolunteerTick(pk, fileKey, acceptAt)

	if CanVolunteer(pk, fileKey, acceptAt, earliest-1) && earliest > acceptAt {
		t.Fatal("should not be able to volunteer before EarliestVolunteerTick")
	}
	if !CanVolunteer(pk, fileKey, acceptAt, earliest) {
		t.Fatal("should be able to volunteer exactly at EarliestVolunteerTick")
	}
}

func TestCanVolunteerFalseBeforeAcceptAt(t *testing.T) {
	fileKey := crypto.HashBytes([]byte("file-threshold-2"))
	if CanVolunteer("any-pubkey", fileKey, 500, 100) {
		t.Fatal("expected no eligibility before accept_at regardless of score")
	}
}

func TestEligibilityScoreIsDeterministic(t *testing.T) {
	fileKey := crypto.HashBytes([]byte("file-det"))
	a := EligibilityScore("pk-1", fileKey)
	b := EligibilityScore("pk-1", fileKey)
	if a.Cmp(b) != 0 {
		t.Fatal("expected identical inputs to produce identical scores")
	}
	c := EligibilityScore("pk-2", fileKey)
	if a.Cmp(c) == 0 {
		t.Fatal("expected distinct pubkeys to (almost certainly) produce distinct scores")
	}
}

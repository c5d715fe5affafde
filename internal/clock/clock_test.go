package clock

import (
	"testing"
	"time"
)

func TestSetNowForTest(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	restore := SetNowForTest(Stepper(start, time.Second))

	first := Now()
	if !first.Equal(start) {
		t.Fatalf("Now() = %v, want %v", first, start)
	}
	if got := Since(first); got != time.Second {
		t.Fatalf("Since() = %v, want 1s", got)
	}

	restore()
	if !Now().After(start.Add(time.Hour)) {
		t.Fatal("clock not restored")
	}
}

package service_test

import (
	"testing"
	"time"

	"github.com/LeventeLantos/workshop-drip/internal/service"
)

func TestSendAt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		index  int
		offset int
		isTest bool
		want   time.Time
	}{
		{"production same day", 0, 0, false, t0},
		{"production three days", 2, 3, false, t0.Add(72 * time.Hour)},
		{"test cadence ignores offset", 2, 30, true, t0.Add(2000 * time.Millisecond)},
		{"test cadence first lesson", 0, 5, true, t0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := service.SendAt(t0, tc.index, tc.offset, tc.isTest)
			if !got.Equal(tc.want) {
				t.Fatalf("SendAt() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestScheduleTimes_NeverDecreases(t *testing.T) {
	t.Parallel()

	got := service.ScheduleTimes(t0, []int{2, 1, 5}, false)
	want := []time.Time{t0.AddDate(0, 0, 2), t0.AddDate(0, 0, 2), t0.AddDate(0, 0, 5)}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("index %d: got %v, want %v", i, got[i], want[i])
		}
	}

	test := service.ScheduleTimes(t0, []int{9, 0, 0}, true)
	for i := 1; i < len(test); i++ {
		if !test[i].After(test[i-1]) {
			t.Fatalf("expected strictly increasing test cadence, got %v", test)
		}
	}
}

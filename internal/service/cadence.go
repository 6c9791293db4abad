package service

import "time"

// TestCadenceStep spaces lessons of a test workshop.
const TestCadenceStep = time.Second

// SendAt is the cadence policy. Test workshops step by lessonIndex seconds;
// production workshops land offsetDays calendar days after enrollment.
func SendAt(enrolledAt time.Time, lessonIndex, offsetDays int, isTest bool) time.Time {
	if isTest {
		return enrolledAt.Add(time.Duration(lessonIndex) * TestCadenceStep)
	}
	return enrolledAt.AddDate(0, 0, offsetDays)
}

// ScheduleTimes returns one send time per offset. A lesson never lands before
// the lesson authored ahead of it.
func ScheduleTimes(enrolledAt time.Time, offsets []int, isTest bool) []time.Time {
	out := make([]time.Time, len(offsets))
	for i, off := range offsets {
		t := SendAt(enrolledAt, i, off, isTest)
		if i > 0 && t.Before(out[i-1]) {
			t = out[i-1]
		}
		out[i] = t
	}
	return out
}

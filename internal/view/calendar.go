package view

import "time"

// daysInMonth returns the number of days in the given month.
func daysInMonth(year, month int) int {
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func timeMonth(m int) time.Month {
	return time.Month(m)
}

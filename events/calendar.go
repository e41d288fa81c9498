package events

import (
	"fmt"
	"strings"
	"time"
)

// MonthBounds returns the first instant of the month and of the month after it, in loc
func MonthBounds(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// RenderMonth draws a monday first month grid, days that have events are marked with a *
func RenderMonth(year int, month time.Month, loc *time.Location, evs []*Event) string {
	start, end := MonthBounds(year, month, loc)

	marked := make(map[int]bool)
	for _, ev := range evs {
		t := ev.StartsAt.In(loc)
		if !t.Before(start) && t.Before(end) {
			marked[t.Day()] = true
		}
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %d\n", month, year))
	b.WriteString(" Mo  Tu  We  Th  Fr  Sa  Su\n")

	// time.Weekday starts at sunday
	offset := (int(start.Weekday()) + 6) % 7
	b.WriteString(strings.Repeat("    ", offset))

	days := end.AddDate(0, 0, -1).Day()
	col := offset
	for day := 1; day <= days; day++ {
		mark := " "
		if marked[day] {
			mark = "*"
		}
		b.WriteString(fmt.Sprintf("%3d%s", day, mark))

		col++
		if col == 7 && day != days {
			b.WriteString("\n")
			col = 0
		}
	}

	return b.String()
}

package export

import (
	"fmt"
	"strconv"
)

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// PeriodHeader labels the first column of a timetable dataset.
const PeriodHeader = "Period"

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayName returns the weekday label for a zero based day index.
func DayName(day int) string {
	if day >= 0 && day < len(weekdays) {
		return weekdays[day]
	}
	return fmt.Sprintf("Day %d", day+1)
}

// CellFunc returns the text shown for a (day, period) cell; empty means free.
type CellFunc func(day, period int) string

// Timetable lays out a weekly grid as one row per period and one column per day.
func Timetable(days, periods int, cell CellFunc) Dataset {
	headers := make([]string, 0, days+1)
	headers = append(headers, PeriodHeader)
	for day := 0; day < days; day++ {
		headers = append(headers, DayName(day))
	}

	rows := make([]map[string]string, 0, periods)
	for period := 1; period <= periods; period++ {
		row := map[string]string{PeriodHeader: strconv.Itoa(period)}
		for day := 0; day < days; day++ {
			if cell != nil {
				row[DayName(day)] = cell(day, period)
			}
		}
		rows = append(rows, row)
	}
	return Dataset{Headers: headers, Rows: rows}
}

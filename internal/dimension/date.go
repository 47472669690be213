package dimension

import (
	"time"

	"retailcli/pkg/contracts/domain"
)

// fixedHolidays is the chain-wide retail holiday calendar: recurring
// month/day pairs observed by every store.
var fixedHolidays = map[[2]int]string{
	{1, 1}:   "New Year's Day",
	{1, 26}:  "Republic Day",
	{5, 1}:   "Labour Day",
	{8, 15}:  "Independence Day",
	{10, 2}:  "Gandhi Jayanti",
	{12, 25}: "Christmas Day",
}

// DateKey encodes a calendar date as YYYYMMDD. Keys derived from the date
// itself keep the date dimension idempotent across regenerations.
func DateKey(day time.Time) int64 {
	return int64(day.Year())*10000 + int64(day.Month())*100 + int64(day.Day())
}

// BuildDateDimension regenerates dim_date over the full observed span: the
// union of the prior snapshot's span and every event date in this run's
// records, one row per calendar day with no gaps.
func BuildDateDimension(prior []domain.DateDimensionRow, recordSets ...[]domain.SilverRecord) []domain.DateDimensionRow {
	var first, last time.Time
	observe := func(day time.Time) {
		if day.IsZero() {
			return
		}
		if first.IsZero() || day.Before(first) {
			first = day
		}
		if last.IsZero() || day.After(last) {
			last = day
		}
	}

	for _, row := range prior {
		observe(row.Date)
	}
	for _, records := range recordSets {
		for _, rec := range records {
			observe(rec.EventDate)
		}
	}
	if first.IsZero() {
		return nil
	}

	days := int(last.Sub(first).Hours()/24) + 1
	rows := make([]domain.DateDimensionRow, 0, days)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		rows = append(rows, dateRow(day))
	}
	return rows
}

func dateRow(day time.Time) domain.DateDimensionRow {
	weekday := day.Weekday()
	_, holiday := fixedHolidays[[2]int{int(day.Month()), day.Day()}]
	return domain.DateDimensionRow{
		DateKey:   DateKey(day),
		Date:      day,
		Day:       day.Day(),
		Month:     int(day.Month()),
		MonthName: day.Month().String(),
		Year:      day.Year(),
		Quarter:   (int(day.Month())-1)/3 + 1,
		DayOfWeek: int(weekday),
		DayName:   weekday.String(),
		IsWeekend: weekday == time.Saturday || weekday == time.Sunday,
		IsHoliday: holiday,
	}
}

package report

// DayCount is the number of reports a station sent on one calendar day.
type DayCount struct {
	Date  string
	Count int
}

// CountByDay buckets reports by calendar day. Buckets keep the order in which
// their day first appears in reports, so a date-descending input yields the
// most recent day first.
func CountByDay(reports []Report) ([]DayCount, error) {
	index := make(map[string]int, len(reports))
	counts := make([]DayCount, 0)

	for _, r := range reports {
		day, err := r.Day()
		if err != nil {
			return nil, err
		}

		i, ok := index[day]
		if !ok {
			index[day] = len(counts)
			counts = append(counts, DayCount{Date: day, Count: 1})
			continue
		}
		counts[i].Count++
	}

	return counts, nil
}

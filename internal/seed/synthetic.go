package seed

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"procodus.dev/voltage/internal/report"
)

// Station is a generated monitoring station.
type Station struct {
	Name string `fake:"{city}"`
	// Nominal battery voltage of the station bank.
	BatteryNominal float64 `fake:"skip"`
	// Peak open-circuit voltage of the solar panel at noon.
	PanelPeak float64 `fake:"skip"`
}

// Generator produces plausible battery and panel readings: the panel follows
// the sun and the battery charges during the day and drains at night.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator returns a Generator; equal seeds give equal output.
func NewGenerator(seed uint64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Stations generates n stations with distinct names.
func (g *Generator) Stations(n int) []Station {
	stations := make([]Station, 0, n)
	seen := make(map[string]bool, n)

	for len(stations) < n {
		var st Station
		if err := g.faker.Struct(&st); err != nil {
			continue
		}
		st.BatteryNominal = g.faker.Float64Range(11.8, 13.2)
		st.PanelPeak = g.faker.Float64Range(17, 22)

		st.Name = report.NormalizeStation(st.Name)
		if st.Name == "" {
			st.Name = "station"
		}
		if seen[st.Name] {
			st.Name += " " + strconv.Itoa(len(stations)+1)
		}
		seen[st.Name] = true
		stations = append(stations, st)
	}
	return stations
}

// Reports generates perDay reports per station for each of the days ending
// at until, oldest first.
func (g *Generator) Reports(stations []Station, days, perDay int, until time.Time) []report.Report {
	if perDay <= 0 {
		return nil
	}

	step := 24 * time.Hour / time.Duration(perDay)
	start := until.Truncate(24*time.Hour).AddDate(0, 0, -days+1)

	var out []report.Report
	for _, st := range stations {
		for day := range days {
			for i := range perDay {
				at := start.AddDate(0, 0, day).Add(time.Duration(i) * step)
				if at.After(until) {
					continue
				}
				out = append(out, g.Reading(st, at))
			}
		}
	}

	slices.SortStableFunc(out, func(a, b report.Report) int {
		return strings.Compare(a.Date, b.Date)
	})
	return out
}

// Reading generates the report of st at the given time.
func (g *Generator) Reading(st Station, at time.Time) report.Report {
	panel := g.panel(st, at)
	return report.Report{
		Station: st.Name,
		Date:    at.Format(report.DateLayout),
		Battery: decimal(g.battery(st, at, panel)),
		Panel:   decimal(panel),
	}
}

// Pick returns a random station of stations, which must not be empty.
func (g *Generator) Pick(stations []Station) Station {
	return stations[g.faker.IntRange(0, len(stations)-1)]
}

// panel is zero at night and peaks at noon, with cloud noise.
func (g *Generator) panel(st Station, at time.Time) float64 {
	hour := float64(at.Hour()) + float64(at.Minute())/60
	sun := math.Sin((hour - 6) * math.Pi / 12)
	if sun <= 0 {
		return 0
	}

	clouds := 1.0
	// Occasional overcast readings (10% chance)
	if g.faker.Float64() < 0.1 {
		clouds = g.faker.Float64Range(0.2, 0.6)
	}
	return st.PanelPeak * sun * clouds
}

// battery rises with panel output and sags slightly overnight.
func (g *Generator) battery(st Station, at time.Time, panel float64) float64 {
	charge := 0.0
	if panel > st.BatteryNominal {
		charge = math.Min(1.2, (panel-st.BatteryNominal)*0.25)
	}

	drain := 0.0
	if at.Hour() < 6 || at.Hour() >= 20 {
		drain = 0.4
	}

	noise := (g.faker.Float64() - 0.5) * 0.1
	return st.BatteryNominal + charge - drain + noise
}

func decimal(v float64) json.Number {
	return json.Number(strconv.FormatFloat(v, 'f', 2, 64))
}

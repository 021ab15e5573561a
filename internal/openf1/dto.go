package openf1

import "time"

// Upstream fields are optional and loosely typed; every field is a pointer
// so absence stays distinguishable from zero.

type driverDTO struct {
	DriverNumber *int    `json:"driver_number"`
	FullName     *string `json:"full_name"`
	TeamName     *string `json:"team_name"`
	TeamColour   *string `json:"team_colour"`
	HeadshotURL  *string `json:"headshot_url"`
	CountryCode  *string `json:"country_code"`
}

type positionDTO struct {
	DriverNumber *int     `json:"driver_number"`
	Position     *int     `json:"position"`
	Points       *float64 `json:"points"`
	Date         *string  `json:"date"`
}

// when parses the entry timestamp; missing or malformed dates sort first.
func (p positionDTO) when() time.Time {
	if p.Date == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, *p.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

type lapDTO struct {
	LapNumber    *int     `json:"lap_number"`
	LapDuration  *float64 `json:"lap_duration"`
	RankPosition *int     `json:"rank_position"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

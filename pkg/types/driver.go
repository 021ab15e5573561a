package types

// Driver is a racing driver as exposed by the dashboard API.
type Driver struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	TeamName    string   `json:"teamName"`
	TeamColour  string   `json:"teamColour"`
	Number      int      `json:"number"`
	HeadshotURL string   `json:"headshotUrl"`
	CountryCode string   `json:"countryCode"`
	Points      *float64 `json:"points"`
}

// DriverStats summarizes one driver's latest session.
type DriverStats struct {
	DriverNumber   int      `json:"driverNumber"`
	Position       *int     `json:"position"`
	Points         *float64 `json:"points"`
	FastestLapRank *int     `json:"fastestLapRank"`
	FastestLapTime *string  `json:"fastestLapTime"`
	LapsCompleted  int      `json:"lapsCompleted"`
}

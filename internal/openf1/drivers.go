package openf1

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/apexdraft/pkg/types"
)

// Drivers returns the drivers of the session with their latest points.
// Entries without a driver number are dropped.
func (c *Client) Drivers(ctx context.Context) ([]types.Driver, error) {
	var (
		drivers   []driverDTO
		positions []positionDTO
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.get(gctx, "drivers", c.sessionQuery(0), &drivers) })
	g.Go(func() error { return c.get(gctx, "position", c.sessionQuery(0), &positions) })
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mapDrivers(drivers, positions), nil
}

// mapDrivers joins drivers with the last reported points of each driver.
func mapDrivers(drivers []driverDTO, positions []positionDTO) []types.Driver {
	points := make(map[int]float64)
	for _, p := range positions {
		if p.DriverNumber != nil && p.Points != nil {
			points[*p.DriverNumber] = *p.Points
		}
	}

	out := make([]types.Driver, 0, len(drivers))
	for _, d := range drivers {
		if d.DriverNumber == nil {
			continue
		}
		n := *d.DriverNumber
		drv := types.Driver{
			ID:          n,
			Name:        str(d.FullName),
			TeamName:    str(d.TeamName),
			TeamColour:  str(d.TeamColour),
			Number:      n,
			HeadshotURL: str(d.HeadshotURL),
			CountryCode: str(d.CountryCode),
		}
		if pts, ok := points[n]; ok {
			drv.Points = &pts
		}
		out = append(out, drv)
	}
	return out
}

// DriverStats summarizes one driver's session: latest position and points,
// fastest lap, and laps completed.
func (c *Client) DriverStats(ctx context.Context, driverNumber int) (types.DriverStats, error) {
	if driverNumber < 1 {
		return types.DriverStats{}, fmt.Errorf("%w: driver number must be a positive integer", types.ErrValidation)
	}

	var (
		positions []positionDTO
		laps      []lapDTO
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.get(gctx, "position", c.sessionQuery(driverNumber), &positions) })
	g.Go(func() error { return c.get(gctx, "laps", c.sessionQuery(driverNumber), &laps) })
	if err := g.Wait(); err != nil {
		return types.DriverStats{}, err
	}
	return buildStats(driverNumber, positions, laps), nil
}

func buildStats(driverNumber int, positions []positionDTO, laps []lapDTO) types.DriverStats {
	stats := types.DriverStats{DriverNumber: driverNumber}

	var latest *positionDTO
	for i := range positions {
		if latest == nil || positions[i].when().After(latest.when()) {
			latest = &positions[i]
		}
	}
	if latest != nil {
		stats.Position = latest.Position
		stats.Points = latest.Points
	}

	var fastest *lapDTO
	for i := range laps {
		l := &laps[i]
		if l.LapNumber != nil {
			stats.LapsCompleted = max(stats.LapsCompleted, *l.LapNumber)
		}
		if l.LapDuration == nil || *l.LapDuration <= 0 {
			continue
		}
		if fastest == nil || *l.LapDuration < *fastest.LapDuration {
			fastest = l
		}
	}
	if fastest != nil {
		stats.FastestLapRank = fastest.RankPosition
		t := FormatLapTime(*fastest.LapDuration)
		stats.FastestLapTime = &t
	}
	return stats
}

// FormatLapTime renders a lap duration in seconds as m:ss.mmm.
func FormatLapTime(seconds float64) string {
	ms := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

package geo

import (
	"fmt"
	"math"

	"github.com/uber/h3-go/v4"
)

const (
	// CellResolution is the H3 resolution alerts are indexed at (~1.4 km edge)
	CellResolution = 7

	// beyond this ring count a cell pre-filter stops being useful
	maxCoveringRings = 24
)

// CellFor returns the H3 cell index of p at CellResolution
func CellFor(p Point) (string, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Latitude, p.Longitude), CellResolution)
	if err != nil {
		return "", fmt.Errorf("h3 index for (%f, %f): %w", p.Latitude, p.Longitude, err)
	}
	return cell.String(), nil
}

// CoveringCells returns the cells whose union covers the disk of radiusKm
// around center. A nil result means the radius is too large for a cell
// pre-filter and the caller should query without one.
//
// The grid disk grows until its outermost ring lies entirely outside the
// circle by more than one cell. Every path out of the disk crosses that ring,
// so the circle is then contained in the disk regardless of direction.
func CoveringCells(center Point, radiusKm float64) ([]string, error) {
	if radiusKm < 0 {
		return nil, fmt.Errorf("negative radius %f", radiusKm)
	}

	origin, err := h3.LatLngToCell(h3.NewLatLng(center.Latitude, center.Longitude), CellResolution)
	if err != nil {
		return nil, fmt.Errorf("h3 index for (%f, %f): %w", center.Latitude, center.Longitude, err)
	}

	spacing, err := neighbourSpacingKm(origin)
	if err != nil {
		return nil, err
	}
	// a ring k cells out is at least 0.866*k*spacing away
	if radiusKm+spacing > 0.866*float64(maxCoveringRings)*spacing {
		return nil, nil
	}

	for k := 1; k <= maxCoveringRings; k++ {
		ring, err := h3.GridRing(origin, k)
		if err != nil {
			return nil, fmt.Errorf("h3 grid ring %d: %w", k, err)
		}
		nearest, err := nearestCenterKm(center, ring)
		if err != nil {
			return nil, err
		}
		if nearest <= radiusKm+spacing {
			continue
		}

		disk, err := h3.GridDisk(origin, k)
		if err != nil {
			return nil, fmt.Errorf("h3 grid disk: %w", err)
		}
		cells := make([]string, 0, len(disk))
		for _, c := range disk {
			cells = append(cells, c.String())
		}
		return cells, nil
	}
	return nil, nil
}

// neighbourSpacingKm is the smallest centre-to-centre distance between origin
// and its neighbours. It bounds the circumradius of the cells around origin.
func neighbourSpacingKm(origin h3.Cell) (float64, error) {
	c, err := h3.CellToLatLng(origin)
	if err != nil {
		return 0, fmt.Errorf("h3 cell center: %w", err)
	}
	neighbours, err := h3.GridRing(origin, 1)
	if err != nil {
		return 0, fmt.Errorf("h3 grid ring 1: %w", err)
	}
	return nearestCenterKm(Point{Latitude: c.Lat, Longitude: c.Lng}, neighbours)
}

func nearestCenterKm(p Point, cells []h3.Cell) (float64, error) {
	nearest := math.Inf(1)
	for _, cell := range cells {
		c, err := h3.CellToLatLng(cell)
		if err != nil {
			return 0, fmt.Errorf("h3 cell center: %w", err)
		}
		nearest = math.Min(nearest, DistanceKm(p.Latitude, p.Longitude, c.Lat, c.Lng))
	}
	return nearest, nil
}

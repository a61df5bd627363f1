package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by DistanceKm
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate
type Point struct {
	Latitude  float64 `json:"latitude" firestore:"latitude" binding:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" firestore:"longitude" binding:"gte=-180,lte=180"`
}

// DistanceKm returns the great-circle distance between two coordinates in
// kilometers using the haversine formula.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// Distance returns DistanceKm between two points
func Distance(a, b Point) float64 {
	return DistanceKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// Within reports whether p lies within radiusKm of center
func Within(center, p Point, radiusKm float64) bool {
	return Distance(center, p) <= radiusKm
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

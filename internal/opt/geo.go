package opt

import (
	"math"
	"sort"

	"optiguide/internal/model"
)

// DistanceKm is the great-circle distance between two points.
func DistanceKm(a, b model.GeoPoint) float64 {
	return haversineMeters(a.Lat, a.Lon, b.Lat, b.Lon) / 1000
}

func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// NearbyDemand is the demand reachable within a radius of one warehouse.
type NearbyDemand struct {
	Warehouse   string              `json:"warehouse"`
	RadiusKm    float64             `json:"radius_km"`
	TotalDemand float64             `json:"total_demand"`
	Retailers   []model.DemandNode  `json:"retailers"`
	Count       int                 `json:"nearby_retailers"`
}

// DemandWithin sums the demand of retailers within radiusKm of from, nearest first.
func DemandWithin(from model.SupplyNode, retailers []model.DemandNode, radiusKm float64) NearbyDemand {
	out := NearbyDemand{Warehouse: from.Name, RadiusKm: radiusKm, Retailers: []model.DemandNode{}}
	type hit struct {
		r model.DemandNode
		d float64
	}
	var hits []hit
	for _, r := range retailers {
		if d := DistanceKm(from.Location, r.Location); d <= radiusKm {
			hits = append(hits, hit{r: r, d: d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].d < hits[j].d })
	for _, h := range hits {
		out.Retailers = append(out.Retailers, h.r)
		out.TotalDemand += h.r.Demand
	}
	out.Count = len(out.Retailers)
	return out
}

package processing

import "github.com/eddielth/sensor-monitor/model"

// DetermineArea classifies the centroid of the readings' coordinates into a
// quadrant. Latitude and longitude are averaged independently over the
// readings that carry them; zero falls to the south and west side.
func DetermineArea(readings []model.Reading) string {
	located := false
	var latSum, lonSum float64
	var latCount, lonCount int

	for _, r := range readings {
		if r.HasCoordinates() {
			located = true
		}
		if r.Latitude != nil {
			latSum += *r.Latitude
			latCount++
		}
		if r.Longitude != nil {
			lonSum += *r.Longitude
			lonCount++
		}
	}

	if !located {
		return model.AreaUnknown
	}

	return quadrant(latSum/float64(latCount), lonSum/float64(lonCount))
}

func quadrant(lat, lon float64) string {
	switch {
	case lat > 0 && lon > 0:
		return model.AreaNortheast
	case lat > 0:
		return model.AreaNorthwest
	case lon > 0:
		return model.AreaSoutheast
	default:
		return model.AreaSouthwest
	}
}

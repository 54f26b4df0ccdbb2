package registry

import "parking-admin/internal/shared/model"

// SeedSpots 全新启动时的固定车场数据
func SeedSpots() []model.ParkingSpot {
	return []model.ParkingSpot{
		{
			ID:         "1",
			Name:       "Downtown Parking Garage",
			Address:    "123 Main St, Downtown",
			Lat:        40.7128,
			Lng:        -74.006,
			Total:      150,
			Available:  42,
			HourlyRate: 8.5,
		},
		{
			ID:         "2",
			Name:       "Central Park Parking",
			Address:    "456 Park Ave, Midtown",
			Lat:        40.7736,
			Lng:        -73.9566,
			Total:      80,
			Available:  5,
			HourlyRate: 12.0,
		},
		{
			ID:         "3",
			Name:       "Riverside Parking Lot",
			Address:    "789 River Rd, Westside",
			Lat:        40.7258,
			Lng:        -74.0111,
			Total:      60,
			Available:  0,
			HourlyRate: 6.75,
		},
		{
			ID:         "4",
			Name:       "East Village Garage",
			Address:    "101 E 7th St, East Village",
			Lat:        40.7267,
			Lng:        -73.984,
			Total:      45,
			Available:  12,
			HourlyRate: 10.0,
		},
		{
			ID:         "5",
			Name:       "SoHo Parking Center",
			Address:    "200 Broadway, SoHo",
			Lat:        40.7248,
			Lng:        -74.002,
			Total:      95,
			Available:  23,
			HourlyRate: 15.5,
		},
	}
}

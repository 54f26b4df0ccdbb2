package model

import "fmt"

// ParkingSpot 停车场记录
//
// 可用数不变式：任何修改之后 0 <= Available <= Total 必须成立，
// 模拟器和 API 边界各自负责钳制/校验。
type ParkingSpot struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Total      int     `json:"total"`
	Available  int     `json:"available"`
	HourlyRate float64 `json:"hourlyRate"`
}

// Validate 校验字段合法性
func (s *ParkingSpot) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("spot id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("spot name is required")
	}
	if s.Total <= 0 {
		return fmt.Errorf("total capacity must be positive, got %d", s.Total)
	}
	if s.Available < 0 || s.Available > s.Total {
		return fmt.Errorf("available must be within [0, %d], got %d", s.Total, s.Available)
	}
	if s.HourlyRate < 0 {
		return fmt.Errorf("hourly rate must be non-negative, got %v", s.HourlyRate)
	}
	return nil
}

// ClampAvailable 将可用数钳制到 [0, Total]
func (s *ParkingSpot) ClampAvailable() {
	if s.Available < 0 {
		s.Available = 0
	}
	if s.Available > s.Total {
		s.Available = s.Total
	}
}

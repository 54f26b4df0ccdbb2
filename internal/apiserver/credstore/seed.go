package credstore

import "parking-admin/internal/shared/model"

// SeedUsers 首次运行播种的两个固定账户
//
// 哈希对应演示用前缀哈希（见 session 包），登录时这两个账户
// 另有固定口令旁路（见 session 包的 legacyBypass）。
func SeedUsers() []model.User {
	return []model.User{
		{
			ID:           "1",
			Username:     "vehicleowner",
			Email:        "vehicleowner@email.com",
			Phone:        "+941234567",
			Role:         model.UserRoleVehicleOwner,
			PasswordHash: "hashed_12345",
		},
		{
			ID:           "2",
			Username:     "admin",
			Email:        "admin@email.com",
			Phone:        "+941234588",
			Role:         model.UserRoleAdmin,
			PasswordHash: "hashed_1234567",
		},
	}
}

package model

import "strings"

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin        UserRole = "admin"
	UserRoleVehicleOwner UserRole = "vehicle-owner"
	UserRoleNone         UserRole = ""
)

// Valid 是否为可注册的角色
func (r UserRole) Valid() bool {
	return r == UserRoleAdmin || r == UserRoleVehicleOwner
}

// User 用户
//
// 用户只在注册时创建，本系统不提供删除和资料修改。
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone,omitempty"`
	Role         UserRole `json:"role"`
	PasswordHash string   `json:"passwordHash"` // 持久化快照需要携带，API 响应用 Sanitized() 剥离
}

// Sanitized 返回剥离密码哈希的副本（用于 API 响应）
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// UsernameEquals 用户名比较（大小写不敏感）
func (u *User) UsernameEquals(name string) bool {
	return strings.EqualFold(u.Username, name)
}

// EmailEquals 邮箱比较（大小写不敏感）
func (u *User) EmailEquals(email string) bool {
	return strings.EqualFold(u.Email, email)
}

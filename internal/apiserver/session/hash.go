// Package session 会话管理：登录、注册、登出与密码哈希
package session

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// 密码哈希
// ============================================================================

// Hasher 密码哈希接口
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// LegacyHasher 演示用前缀哈希
//
// hash(p) = "hashed_" + p。不具备任何安全性，只为保持与历史数据
// （播种账户快照）兼容。生产配置应选择 bcrypt。
type LegacyHasher struct{}

const legacyPrefix = "hashed_"

func (LegacyHasher) Hash(password string) (string, error) {
	return legacyPrefix + password, nil
}

func (LegacyHasher) Verify(password, hash string) bool {
	return hash == legacyPrefix+password
}

// BcryptHasher bcrypt 哈希
type BcryptHasher struct{}

func (BcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	return string(bytes), err
}

func (BcryptHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewHasher 按配置名创建哈希器，未知名称回退到 legacy
func NewHasher(name string) Hasher {
	if strings.EqualFold(name, "bcrypt") {
		return BcryptHasher{}
	}
	return LegacyHasher{}
}

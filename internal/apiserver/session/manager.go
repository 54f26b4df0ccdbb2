package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"parking-admin/internal/apiserver/credstore"
	"parking-admin/internal/shared/kvstore"
	"parking-admin/internal/shared/model"
	"parking-admin/pkg/logging"
)

// legacyBypass 历史固定口令旁路：这两对用户名/口令无条件放行
var legacyBypass = map[string]string{
	"vehicleowner": "12345",
	"admin":        "1234567",
}

// SignupProfile 注册表单
type SignupProfile struct {
	Username string         `json:"username"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone,omitempty"`
	Role     model.UserRole `json:"role"`
	Password string         `json:"password"`
}

// Manager 会话管理器
//
// 同一时刻最多一个活跃用户；会话以 JSON 快照持久化在
// kvstore 的 currentUser 键下，构造时重新水合。
type Manager struct {
	mu     sync.RWMutex
	creds  *credstore.Store
	kv     kvstore.Store
	hasher Hasher
	logger *logging.Logger

	current *model.User
}

// NewManager 创建会话管理器并从 currentUser 快照重新水合
func NewManager(ctx context.Context, creds *credstore.Store, kv kvstore.Store, hasher Hasher, logger *logging.Logger) (*Manager, error) {
	if hasher == nil {
		hasher = LegacyHasher{}
	}
	if logger == nil {
		logger = logging.Default("session")
	}
	m := &Manager{creds: creds, kv: kv, hasher: hasher, logger: logger}

	data, err := kv.Load(ctx, kvstore.KeyCurrentUser)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		// 无会话
	case err != nil:
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	default:
		var user model.User
		if err := json.Unmarshal(data, &user); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
		}
		m.current = &user
		logger.WithUsername(user.Username).Info("Rehydrated session")
	}

	return m, nil
}

// Login 登录
//
// 口令校验顺序：固定口令旁路 → 哈希校验。
// 成功后设置并持久化会话，并返回通过校验的用户副本；
// 调用方用返回值签发令牌，不读共享的 CurrentUser，
// 并发登录因此不会拿到别人的身份。
func (m *Manager) Login(ctx context.Context, username, password string) (*model.User, Result, error) {
	user := m.creds.FindByUsername(ctx, username)
	if user == nil {
		return nil, failure(FailureNotFound, "User not found"), nil
	}

	valid := legacyBypass[user.Username] == password && password != ""
	if !valid {
		valid = m.hasher.Verify(password, user.PasswordHash)
	}
	if !valid {
		return nil, failure(FailureInvalidCredentials, "Invalid password"), nil
	}

	if err := m.setCurrent(ctx, user); err != nil {
		return nil, Result{}, err
	}

	m.logger.WithUsername(user.Username).Info("User logged in", "role", string(user.Role))
	u := *user
	return &u, ok(), nil
}

// Signup 注册
//
// 两个唯一性条件都在任何变更发生之前校验，
// 失败不会留下半更新状态。成功后新用户直接成为活跃会话，
// 并作为返回值交给调用方签发令牌。
func (m *Manager) Signup(ctx context.Context, profile SignupProfile) (*model.User, Result, error) {
	if m.creds.UsernameExists(ctx, profile.Username) {
		return nil, failure(FailureDuplicateUsername, "Username already exists"), nil
	}
	if m.creds.EmailExists(ctx, profile.Email) {
		return nil, failure(FailureDuplicateEmail, "Email already exists"), nil
	}

	hash, err := m.hasher.Hash(profile.Password)
	if err != nil {
		return nil, Result{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.User{
		ID:           uuid.NewString(),
		Username:     profile.Username,
		Email:        profile.Email,
		Phone:        profile.Phone,
		Role:         profile.Role,
		PasswordHash: hash,
	}
	if err := m.creds.Add(ctx, user); err != nil {
		return nil, Result{}, fmt.Errorf("failed to add user: %w", err)
	}

	if err := m.setCurrent(ctx, &user); err != nil {
		return nil, Result{}, err
	}

	m.logger.WithUsername(user.Username).Info("User signed up", "role", string(user.Role))
	u := user
	return &u, ok(), nil
}

// Logout 登出：清除活跃会话并删除持久化快照，无会话时为空操作
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	username := m.current.Username
	m.current = nil

	if err := m.kv.Delete(ctx, kvstore.KeyCurrentUser); err != nil {
		m.logger.SnapshotLog("delete", kvstore.KeyCurrentUser, err)
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	m.logger.WithUsername(username).Info("User logged out")
	return nil
}

// CurrentUser 当前活跃用户，未登录时返回 nil
func (m *Manager) CurrentUser() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}
	u := *m.current
	return &u
}

// Role 当前角色，未登录时为 UserRoleNone
func (m *Manager) Role() model.UserRole {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return model.UserRoleNone
	}
	return m.current.Role
}

// IsAuthenticated 是否有用户处于登录状态
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// setCurrent 设置活跃会话并持久化快照
func (m *Manager) setCurrent(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	if err := m.kv.Save(ctx, kvstore.KeyCurrentUser, data); err != nil {
		m.logger.SnapshotLog("save", kvstore.KeyCurrentUser, err)
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}

	m.mu.Lock()
	u := *user
	m.current = &u
	m.mu.Unlock()
	return nil
}

package auth

import (
	"encoding/json"
	"net/http"
	"regexp"

	"parking-admin/internal/apiserver/session"
	"parking-admin/internal/shared/model"
	"parking-admin/pkg/logging"
)

// MetricsRecorder 认证结果指标回调（可为 nil）
type MetricsRecorder interface {
	RecordLogin(result string)
	RecordSignup(result string)
}

// Handler 认证 HTTP 处理器
type Handler struct {
	sessions *session.Manager
	cfg      Config
	metrics  MetricsRecorder
	logger   *logging.Logger
}

// NewHandler 创建认证处理器
func NewHandler(sessions *session.Manager, cfg Config, metrics MetricsRecorder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default("auth")
	}
	return &Handler{sessions: sessions, cfg: cfg, metrics: metrics, logger: logger}
}

// recordLogin 上报登录结果指标
func (h *Handler) recordLogin(result string) {
	if h.metrics != nil {
		h.metrics.RecordLogin(result)
	}
}

// recordSignup 上报注册结果指标
func (h *Handler) recordSignup(result string) {
	if h.metrics != nil {
		h.metrics.RecordSignup(result)
	}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/signup", h.Signup)
	mux.HandleFunc("POST /api/v1/auth/logout", h.Logout)
	mux.HandleFunc("GET /api/v1/auth/me", h.Me)
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

type authResponse struct {
	User        model.User `json:"user"`
	AccessToken string     `json:"access_token,omitempty"`
}

// ============================================================================
// Handlers
// ============================================================================

// Login 用户登录
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, result, err := h.sessions.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.logger.WithError(err).Error("Login session error")
		h.recordLogin("error")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !result.Success {
		h.recordLogin(string(result.Code))
		writeError(w, failureStatus(result.Code), result.Message)
		return
	}

	// 用本次校验通过的用户签发令牌，不读共享会话状态
	token, err := GenerateAccessToken(h.cfg, user.ID, user.Username, string(user.Role))
	if err != nil {
		h.logger.WithError(err).Error("Access token generation failed")
		h.recordLogin("error")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.recordLogin("success")
	h.logger.WithUsername(user.Username).Info("User logged in")
	writeJSON(w, http.StatusOK, authResponse{User: user.Sanitized(), AccessToken: token})
}

// Signup 用户注册
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username, email, password are required")
		return
	}
	if !isValidEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	role := model.UserRole(req.Role)
	if !role.Valid() {
		writeError(w, http.StatusBadRequest, "role must be admin or vehicle-owner")
		return
	}

	user, result, err := h.sessions.Signup(r.Context(), session.SignupProfile{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     role,
		Password: req.Password,
	})
	if err != nil {
		h.logger.WithError(err).Error("Signup session error")
		h.recordSignup("error")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !result.Success {
		h.recordSignup(string(result.Code))
		writeError(w, failureStatus(result.Code), result.Message)
		return
	}

	token, err := GenerateAccessToken(h.cfg, user.ID, user.Username, string(user.Role))
	if err != nil {
		h.logger.WithError(err).Error("Access token generation failed")
		h.recordSignup("error")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.recordSignup("success")
	h.logger.WithUsername(user.Username).With("user_id", user.ID).Info("User signed up")
	writeJSON(w, http.StatusCreated, authResponse{User: user.Sanitized(), AccessToken: token})
}

// Logout 登出当前会话
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.logger.WithError(err).Error("Logout session error")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me 获取当前会话用户信息
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.sessions.CurrentUser()
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, user.Sanitized())
}

// ============================================================================
// 工具函数
// ============================================================================

// failureStatus 失败分类到 HTTP 状态码
func failureStatus(code session.FailureCode) int {
	switch code {
	case session.FailureNotFound:
		return http.StatusNotFound
	case session.FailureInvalidCredentials:
		return http.StatusUnauthorized
	case session.FailureDuplicateUsername, session.FailureDuplicateEmail:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

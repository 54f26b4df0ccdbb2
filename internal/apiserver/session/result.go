package session

// FailureCode 登录/注册失败分类
type FailureCode string

const (
	FailureNone               FailureCode = ""
	FailureNotFound           FailureCode = "not_found"
	FailureInvalidCredentials FailureCode = "invalid_credentials"
	FailureDuplicateUsername  FailureCode = "duplicate_username"
	FailureDuplicateEmail     FailureCode = "duplicate_email"
)

// Result 登录/注册结果
//
// 失败在本地消化并附带可展示的消息，不作为致命错误抛出；
// 基础设施故障（快照读写失败）另走 error 返回。
type Result struct {
	Success bool        `json:"success"`
	Code    FailureCode `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

func ok() Result {
	return Result{Success: true}
}

func failure(code FailureCode, message string) Result {
	return Result{Success: false, Code: code, Message: message}
}

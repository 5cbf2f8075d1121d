// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorUnauthorized  = "UNAUTHORIZED"
	ErrorTimeout       = "TIMEOUT"

	// 会话相关错误
	ErrorSessionNotFound = "SESSION_NOT_FOUND"
	ErrorSessionBusy     = "SESSION_BUSY"
	ErrorParamsInvalid   = "GENERATION_PARAMS_INVALID"
	ErrorSequenceStopped = "SEQUENCE_STOPPED"

	// 库相关错误
	ErrorLibraryEntryNotFound = "LIBRARY_ENTRY_NOT_FOUND"

	// 凭据相关错误
	ErrorAPIKeyMissing   = "API_KEY_MISSING"
	ErrorCredentialInput = "CREDENTIAL_INPUT_INVALID"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorLLMProviderMissing    = "LLM_PROVIDER_MISSING"
	ErrorProviderFailed        = "PROVIDER_FAILED"
)

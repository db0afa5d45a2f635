package log

import "simbank/internal/core"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldUserID    = "user_id"
	FieldAccount   = "account"
	FieldDay       = "day"
	FieldTxID      = "tx_id"
	FieldMerchant  = "merchant"
	FieldCategory  = "category"
	FieldAmount    = "amount"
	FieldSource    = "source"
	FieldRemaining = "remaining"
	FieldCreated   = "created"
	FieldFailures  = "failures"
)

// Components
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentTick      = "tick"
	ComponentSweep     = "sweep"
	ComponentQuota     = "quota"
	ComponentAccounts  = "accounts"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentAuth      = "auth"
	ComponentScheduler = "scheduler"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

// Operations
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpList     = "list"
	OpConsume  = "consume"
	OpRelease  = "release"
	OpPublish  = "publish"
	OpSync     = "sync"
	OpValidate = "validate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields is a small builder for slog key/value pairs.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError is a no-op for a nil error.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithAccount tags the entry with the user and account type.
func (f LogFields) WithAccount(ref core.AccountRef) LogFields {
	f[FieldUserID] = ref.UserID
	f[FieldAccount] = string(ref.Type)
	return f
}

func (f LogFields) WithTransaction(tx core.Transaction) LogFields {
	f[FieldTxID] = tx.ID
	f[FieldMerchant] = tx.Merchant
	f[FieldCategory] = tx.Category
	f[FieldAmount] = tx.Amount.StringFixed(2)
	f[FieldSource] = string(tx.Source)
	f[FieldDay] = tx.Date
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields for slog.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

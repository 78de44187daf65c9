package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldOwner         = "owner"
	FieldCardID        = "card_id"
	FieldStatementID   = "statement_id"
	FieldPostingID     = "posting_id"
	FieldRuleID        = "rule_id"
	FieldAccountID     = "account_id"
	FieldCycle         = "cycle"
	FieldAmountCents   = "amount_cents"
	FieldTransferGroup = "transfer_group"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentStatement = "statement"
	ComponentPoster    = "poster"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpGenerate = "generate"
	OpPay      = "pay"
	OpList     = "list"
	OpDelete   = "delete"
	OpPost     = "post_recurring"
	OpSync     = "sync"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds the error message; nil is ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOwner(owner string) LogFields {
	f[FieldOwner] = owner
	return f
}

// WithStatement adds the identifying fields of a statement.
func (f LogFields) WithStatement(id, cardID int64, cycle string, amountCents int64) LogFields {
	f[FieldStatementID] = id
	f[FieldCardID] = cardID
	f[FieldCycle] = cycle
	f[FieldAmountCents] = amountCents
	return f
}

func (f LogFields) WithHTTP(method, path string, status int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = status
	f[FieldDuration] = durationMs
	return f
}

// ToSlice converts LogFields to key/value pairs for slog.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}

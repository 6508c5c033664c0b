package domain

type ctxKey string

const (
	CallerCtxKey    ctxKey = "rep-caller"
	RequestIDCtxKey ctxKey = "rep-request-id"
)

const (
	CallerHeader    = "x-caller"
	RequestIDHeader = "x-request-id"
)

type CommitKind int

const (
	CommitKindUnknown CommitKind = iota
	CommitKindCreate
	CommitKindUpdate
	CommitKindDelete
)

func (k CommitKind) String() string {
	switch k {
	case CommitKindCreate:
		return "create"
	case CommitKindUpdate:
		return "update"
	case CommitKindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

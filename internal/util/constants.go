package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

// ContextUserKey is where AuthMiddleware stores the parsed *Claims.
const ContextUserKey = "user"

// TokenIssuer is stamped into and required on every access token.
const TokenIssuer = "dropout-risk-backend"

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// Cohort modes accepted by model.cohort.
const (
	CohortExcludeSelf = "exclude_self"
	CohortIncludeSelf = "include_self"
)

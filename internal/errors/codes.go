package errors

type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeInternal         Code = "INTERNAL_ERROR"
	CodeConfigValidation Code = "CONFIG_VALIDATION_ERROR"
	CodeConfigReadError  Code = "CONFIG_READ_ERROR"
	CodeConfigParseError Code = "CONFIG_PARSE_ERROR"

	// Provider error taxonomy. Transient errors are retried per policy,
	// not-found and in-use drive the create-vs-reuse branch, already-exists
	// is swallowed as idempotence-conflict success.
	CodePlatformAPIError Code = "PLATFORM_API_ERROR"
	CodePlatformAuth     Code = "PLATFORM_AUTH_ERROR"
	CodeTransient        Code = "PLATFORM_TRANSIENT_ERROR"
	CodeResourceNotFound Code = "RESOURCE_NOT_FOUND"
	CodeResourceInUse    Code = "RESOURCE_IN_USE"
	CodeAlreadyExists    Code = "RESOURCE_ALREADY_EXISTS"

	CodeSecretMissing Code = "SECRET_MISSING"
	CodeTimeout       Code = "TIMEOUT_ERROR"
)

func (c Code) String() string {
	return string(c)
}

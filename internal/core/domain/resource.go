package domain

// ResourceDescriptor records one provisioned (or reused) resource for the
// run summary. IdentifyingName is the stable tag or name the resource is
// looked up by; ProviderID is empty until the provider assigns one.
type ResourceDescriptor struct {
	LogicalName     string
	Kind            ResourceKind
	IdentifyingName string
	ProviderID      string
}

// Credentials hold a database master username/password fetched from the
// secret store. They live in memory for the duration of the provisioning
// call that consumes them and must never be logged or persisted.
type Credentials struct {
	Username string
	Password string
}

// Package octx houses context keys used by multiple occlusion packages.
package octx

type logContextKeyType string

const (
	// LogCtxKey is the name of the context key used to store the logID.
	// It is used by the `log` and `httpapi` packages.
	LogCtxKey = logContextKeyType("occlusion-logID")
)

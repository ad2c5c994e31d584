package constants

// Annotation keys the engine reads or writes on resources it manages.
const (
	// AnnotationSpecHash records a hash of the pod-affecting spec fields used
	// to decide whether a server needs to be recreated on make-right.
	AnnotationSpecHash = "weblogic.oracle/spec-hash"
	// AnnotationIntrospectVersion records the introspectVersion a pod was
	// created under, mirrored from Domain spec at creation time.
	AnnotationIntrospectVersion = "weblogic.oracle/introspect-version"
)

package driven

// NormaliserRegistry selects a normaliser by file extension.
type NormaliserRegistry interface {
	// Register adds a normaliser. A later normaliser replaces an earlier
	// one for the extensions they share.
	Register(normaliser Normaliser)

	// Lookup returns the normaliser for an extension such as ".html".
	Lookup(ext string) (Normaliser, bool)

	// Extensions returns every handled extension, sorted.
	Extensions() []string
}

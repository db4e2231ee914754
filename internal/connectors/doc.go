// Package connectors reads content from outside sources into domain.Content
// values ready for ingest. Each subpackage knows one source type.
package connectors

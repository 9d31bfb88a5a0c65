// Package connectors holds the sources notes can be imported from. The
// filesystem connector walks and watches a local directory.
package connectors

// Package normalisers turns files into notes. Each subpackage handles one
// format; Registry picks one by file extension.
package normalisers

// Package stdlib holds the wew standard library that is appended to every
// program unless the build disables it.
package stdlib

import _ "embed"

//go:embed stdlib.wew
var source string

// Source returns the standard library source text.
func Source() string { return source }

// Append adds the standard library after a user program. Appending after
// the user's code keeps source positions in error messages pointing at the
// right lines.
func Append(src string) string {
	return src + "\n" + source
}

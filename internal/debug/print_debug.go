//go:build debug

package debug

import "fmt"

const Debug = true

// Print writes debug output when the module is built with the debug tag.
// Never pass secret material to it.
func Print(format string, args ...interface{}) {
	fmt.Printf("DEBUG: "+format, args...)
}

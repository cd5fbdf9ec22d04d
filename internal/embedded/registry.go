// Package embedded imports every built-in format so that its codec registers
// itself with core/plugins. Binaries import this package for its side effects.
package embedded

import (
	"github.com/FocuswithJustin/annotconv/core/plugins"

	// Format codecs
	_ "github.com/FocuswithJustin/annotconv/internal/formats/conllcoref"
	_ "github.com/FocuswithJustin/annotconv/internal/formats/conllu"
	_ "github.com/FocuswithJustin/annotconv/internal/formats/json"
	_ "github.com/FocuswithJustin/annotconv/internal/formats/txt"
)

var initialized = true

// IsInitialized reports whether the built-in codecs have been imported.
func IsInitialized() bool {
	return initialized
}

// CodecCount returns the number of registered codecs.
func CodecCount() int {
	return len(plugins.ListCodecs())
}

//go:build !ORT

package provider

import "github.com/knights-analytics/hugot"

// The default backend runs the model through hugot's pure-Go runtime, which
// needs no native ONNX Runtime library.
func newHugotSession() (*hugot.Session, error) {
	return hugot.NewGoSession()
}

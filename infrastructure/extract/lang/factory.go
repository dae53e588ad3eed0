package lang

import (
	"strings"

	"github.com/archielabs/archie/infrastructure/extract"
)

// Factory maps file extensions to language analyzers.
type Factory struct {
	byExt map[string]extract.Analyzer
}

// NewFactory creates a Factory with all bundled analyzers registered.
func NewFactory() *Factory {
	f := &Factory{byExt: make(map[string]extract.Analyzer)}

	f.register(NewGo())
	f.register(NewPython())
	f.register(NewTypeScript())
	f.register(NewTSX())
	f.register(NewRust())
	f.register(NewCSharp())

	return f
}

func (f *Factory) register(analyzer extract.Analyzer) {
	for _, ext := range analyzer.Language().Extensions() {
		f.byExt[ext] = analyzer
	}
}

// ByExtension returns the analyzer for a file extension.
func (f *Factory) ByExtension(ext string) (extract.Analyzer, bool) {
	analyzer, ok := f.byExt[strings.ToLower(ext)]
	return analyzer, ok
}

package extract

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/archielabs/archie/domain/graph"
)

// fallbackLanguages maps extensions without a dedicated analyzer to a
// language name the line scanner will report.
var fallbackLanguages = map[string]string{
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".scala": "scala",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".m":     "objective-c",
	".js":    "javascript",
	".jsx":   "javascript",
}

var (
	classLineRe     = regexp.MustCompile(`^(\s*)(?:[\w@]+\s+)*class\s+([A-Za-z_][A-Za-z0-9_]*)`)
	interfaceLineRe = regexp.MustCompile(`^(\s*)(?:[\w@]+\s+)*(?:interface|protocol|trait)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	structLineRe    = regexp.MustCompile(`^(\s*)(?:[\w@]+\s+)*struct\s+([A-Za-z_][A-Za-z0-9_]*)`)
	enumLineRe      = regexp.MustCompile(`^(\s*)(?:[\w@]+\s+)*enum\s+([A-Za-z_][A-Za-z0-9_]*)`)
	funcLineRe      = regexp.MustCompile(`^(\s*)(?:[\w@]+\s+)*(?:def|function|func|fn|void|int|static)\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	extendsRe       = regexp.MustCompile(`extends\s+([A-Za-z_][\w.]*)`)
	implementsRe    = regexp.MustCompile(`implements\s+([A-Za-z_][\w.,\s]*)`)
	importLineRe    = regexp.MustCompile(`^\s*(?:import|require|use|using|include)\b[\s(]*['"<]?([\w./:\\-]+)`)
)

// scanGeneric recovers top-level declarations from languages without a
// grammar using line patterns. Call sites are not recovered; files with an
// unrecognized extension are skipped entirely.
func scanGeneric(path, content string) (FileFacts, bool) {
	ext := filepath.Ext(path)
	language, ok := fallbackLanguages[strings.ToLower(ext)]
	if !ok {
		return FileFacts{}, false
	}

	namespace := namespaceFromDir(path)
	lines := strings.Split(content, "\n")

	var (
		declarations []Declaration
		imports      []string
		lastType     string
		lastIndent   int
	)

	for i, line := range lines {
		lineNo := i + 1

		if m := importLineRe.FindStringSubmatch(line); m != nil {
			imports = append(imports, m[1])
			continue
		}

		name, kind, indent := matchTypeLine(line)
		if name != "" {
			decl := NewDeclaration(name, kind, "", lineNo, lineNo)
			decl = decl.WithSupertypes(matchExtends(line), matchImplements(line))
			declarations = append(declarations, decl)
			lastType = name
			lastIndent = indent
			continue
		}

		if m := funcLineRe.FindStringSubmatch(line); m != nil {
			parent := ""
			kind := graph.EntityKindFunction
			if lastType != "" && len(m[1]) > lastIndent {
				parent = lastType
				kind = graph.EntityKindMethod
			}
			declarations = append(declarations, NewDeclaration(m[2], kind, parent, lineNo, lineNo))
		}
	}

	facts := NewFileFacts(path, language, namespace, declarations, nil, imports, countLines(content))
	return facts, true
}

func matchTypeLine(line string) (string, graph.EntityKind, int) {
	if m := classLineRe.FindStringSubmatch(line); m != nil {
		return m[2], graph.EntityKindClass, len(m[1])
	}
	if m := interfaceLineRe.FindStringSubmatch(line); m != nil {
		return m[2], graph.EntityKindInterface, len(m[1])
	}
	if m := structLineRe.FindStringSubmatch(line); m != nil {
		return m[2], graph.EntityKindStruct, len(m[1])
	}
	if m := enumLineRe.FindStringSubmatch(line); m != nil {
		return m[2], graph.EntityKindEnum, len(m[1])
	}
	return "", "", 0
}

func matchExtends(line string) []string {
	m := extendsRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	return []string{m[1]}
}

func matchImplements(line string) []string {
	m := implementsRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	var names []string
	for _, part := range strings.Split(m[1], ",") {
		name := strings.TrimSpace(part)
		if name != "" && !strings.Contains(name, " ") {
			names = append(names, name)
		}
	}
	return names
}

// namespaceFromDir converts a file's directory into a dotted namespace.
func namespaceFromDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.ReplaceAll(strings.Trim(dir, "/"), "/", ".")
}

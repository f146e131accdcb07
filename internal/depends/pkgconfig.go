package depends

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// pkgConfigFile is a parsed .pc file: variables, the handful of fields
// forge cares about, and the raw Requires/Requires.private lines so
// transitive modules can be resolved without re-reading the file.
type pkgConfigFile struct {
	Name        string
	Version     string
	Description string
	Requires    string
	CFlags      string
	Libs        string
	vars        map[string]string
}

// parsePkgConfig reads one .pc file, expanding ${var} references against
// its own variable block as it goes (pkg-config allows forward references
// within a file, so variables are collected in a first pass).
func parsePkgConfig(path string) (*pkgConfigFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pc := &pkgConfigFile{vars: map[string]string{}}
	var rawLines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		rawLines = append(rawLines, line)
		if idx := strings.Index(line, "="); idx > 0 && !strings.Contains(line[:idx], ":") {
			key := strings.TrimSpace(line[:idx])
			if isVarName(key) {
				pc.vars[key] = strings.TrimSpace(line[idx+1:])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for _, line := range rawLines {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := pc.expand(strings.TrimSpace(line[idx+1:]))
		switch strings.ToLower(key) {
		case "name":
			pc.Name = val
		case "version":
			pc.Version = val
		case "description":
			pc.Description = val
		case "requires":
			pc.Requires = val
		case "requires.private":
			if pc.Requires == "" {
				pc.Requires = val
			} else {
				pc.Requires = pc.Requires + ", " + val
			}
		case "cflags":
			pc.CFlags = val
		case "libs":
			pc.Libs = val
		}
	}
	if pc.Name == "" {
		return nil, fmt.Errorf("%s: missing Name field", path)
	}
	return pc, nil
}

func isVarName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !unicode.IsLetter(r) && r != '_' {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

func (pc *pkgConfigFile) expand(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteByte(s[i])
				continue
			}
			name := s[i+2 : i+2+end]
			val, ok := pc.vars[name]
			// unset while expanding so a self-reference cannot recurse forever
			delete(pc.vars, name)
			b.WriteString(pc.expand(val))
			if ok {
				pc.vars[name] = val
			}
			i += 2 + end
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// pkgConfigFilesFromRequires splits a Requires/Requires.private value
// (e.g. "atk >= 2.15.1, glib-2.0") into bare module names, skipping the
// version-comparison operator and operand that may follow each name.
func pkgConfigFilesFromRequires(requires string) []string {
	const operators = "<>!="
	fields := strings.FieldsFunc(requires, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	var modules []string
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if strings.IndexAny(f, operators) == 0 {
			i++
			continue
		}
		if strings.TrimSpace(f) == "" {
			continue
		}
		modules = append(modules, f)
	}
	return modules
}

// findPkgConfigFile searches each directory of searchPath (PKG_CONFIG_PATH
// already split on ":") in order for "<name>.pc".
func findPkgConfigFile(searchPath []string, name string) (string, bool) {
	for _, dir := range searchPath {
		candidate := filepath.Join(dir, name+".pc")
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// splitFlags tokenizes a Cflags/Libs value into arguments, splitting on
// unquoted whitespace (.pc files do not usually need full shell quoting,
// but forge still protects against spaces introduced by ${prefix}
// expansion inside a quoted segment).
func splitFlags(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

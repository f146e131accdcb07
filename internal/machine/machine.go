// Package machine implements cross-build machine descriptions (spec.md
// §4.2 supplement): parsing --cross-file/--native-file key=value
// sections and exposing the host/build/target triple split a
// cross-compiling configure needs. Adapted from the teacher's flat
// identifier-set approach to architectures (archs.go) into a proper
// three-machine model.
package machine

import (
	"bufio"
	"os"
	"strings"
)

// KnownCPUFamilies is forge's closed set of recognized target CPU
// families, the spiritual equivalent of the teacher's Architectures set.
var KnownCPUFamilies = map[string]bool{
	"x86_64":  true,
	"x86":     true,
	"aarch64": true,
	"arm":     true,
	"riscv64": true,
}

// Description is one [binaries]/[host_machine]/[properties] cross- or
// native-file, parsed into one map per section keyed by the bare key;
// keys in any other section are ignored.
type Description struct {
	Binaries   map[string]string
	Properties map[string]string
	HostInfo   map[string]string
}

func NewDescription() *Description {
	return &Description{Binaries: map[string]string{}, Properties: map[string]string{}, HostInfo: map[string]string{}}
}

// Load parses an ini-style cross/native file: "[section]" headers
// followed by "key = value" lines, unquoting single-quoted values.
func Load(path string) (*Description, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := NewDescription()
	section := ""
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.Trim(line, "[]")
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.Trim(strings.TrimSpace(line[idx+1:]), "'\"")
		switch section {
		case "binaries":
			d.Binaries[key] = val
		case "host_machine":
			d.HostInfo[key] = val
		case "properties":
			d.Properties[key] = val
		}
	}
	return d, sc.Err()
}

// IsCrossBuild reports whether a cross-file was supplied at all; forge
// treats a configure run with no cross-file as a native build where
// host, build, and target machines are all the same (spec.md §4.2).
func (d *Description) IsCrossBuild() bool {
	return d != nil && len(d.HostInfo) > 0
}

// Exe returns the binaries-section override for a given tool name
// ("c", "cpp", "ar", "pkgconfig", ...), or "" if the cross/native file
// did not override it.
func (d *Description) Exe(tool string) string {
	if d == nil {
		return ""
	}
	return d.Binaries[tool]
}

package env

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Vars holds the extra environment handed to game processes on top of the
// launcher's own environment.
type Vars map[string]string

// Load reads env files in order, then applies list entries ("K=V"); later
// values win. References of the form ${NAME} are expanded against the composed
// set first and the OS environment second.
func Load(fs afero.Fs, files []string, list []string) (Vars, error) {
	v := make(Vars)
	for _, f := range files {
		pairs, err := readFile(fs, f)
		if err != nil {
			return nil, err
		}
		for _, kv := range pairs {
			v.set(kv)
		}
	}
	for _, kv := range list {
		v.set(kv)
	}
	return v.expanded(), nil
}

func (v Vars) set(kv string) {
	i := strings.IndexByte(kv, '=')
	if i <= 0 {
		return
	}
	v[strings.TrimSpace(kv[:i])] = strings.TrimSpace(kv[i+1:])
}

// expanded resolves references, following chains up to a few levels deep.
func (v Vars) expanded() Vars {
	cur := v
	for pass := 0; pass < 4; pass++ {
		next := make(Vars, len(cur))
		changed := false
		for k, val := range cur {
			nv := os.Expand(val, func(name string) string {
				if s, ok := cur[name]; ok && name != k {
					return s
				}
				return os.Getenv(name)
			})
			next[k] = nv
			changed = changed || nv != val
		}
		cur = next
		if !changed {
			break
		}
	}
	return cur
}

// Slice returns "K=V" entries sorted by key, the form exec.Cmd.Env expects.
func (v Vars) Slice() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+v[k])
	}
	return out
}

// readFile parses KEY=VALUE lines. Blank lines, # comments and a leading
// "export " are ignored; surrounding quotes are stripped.
func readFile(fs afero.Fs, path string) ([]string, error) {
	f, err := fs.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("env file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	var out []string
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		i := strings.IndexByte(line, '=')
		if i <= 0 {
			continue
		}
		val := strings.TrimSpace(line[i+1:])
		if len(val) >= 2 && (val[0] == '"' || val[0] == '\'') && val[len(val)-1] == val[0] {
			val = val[1 : len(val)-1]
		}
		out = append(out, strings.TrimSpace(line[:i])+"="+val)
	}
	return out, s.Err()
}

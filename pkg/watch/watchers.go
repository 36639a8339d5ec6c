package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ja7ad/procwatch/pkg/process"
)

// ExeName binds to a process by executable. A pattern containing a slash
// must equal the full path, otherwise the base name is compared.
type ExeName struct {
	*Agent
	exe string
}

func NewExeName(exe string, opts ...AgentOption) *ExeName {
	return &ExeName{Agent: NewAgent("exe:"+exe, opts...), exe: exe}
}

func (w *ExeName) Probe(id process.Identity) bool {
	if strings.ContainsRune(w.exe, '/') {
		return filepath.Clean(w.exe) == id.Exe
	}
	return id.Name() == w.exe
}

// PID binds to one fixed pid.
type PID struct {
	*Agent
	pid int
}

func NewPID(pid int, opts ...AgentOption) *PID {
	return &PID{Agent: NewAgent("pid:"+strconv.Itoa(pid), opts...), pid: pid}
}

func (w *PID) Probe(id process.Identity) bool { return id.PID == w.pid }

// PIDFile binds to the pid written in a file. The file is read on every
// probe so a restarted daemon is picked up once its new pid shows up.
type PIDFile struct {
	*Agent
	path string
}

func NewPIDFile(path string, opts ...AgentOption) *PIDFile {
	return &PIDFile{Agent: NewAgent("pidfile:"+path, opts...), path: path}
}

func (w *PIDFile) Probe(id process.Identity) bool {
	pid, err := ReadPIDFile(w.path)
	if err != nil {
		return false
	}
	return pid == id.PID
}

// ReadPIDFile parses the first line of a pid file.
func ReadPIDFile(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	line, _, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("watch: bad pid file %s: %q", path, line)
	}
	return pid, nil
}

// Expr binds to the first process for which a boolean expression holds.
// The expression sees pid, exe, name and cgroup, for example
//
//	name == "nginx" && cgroup startsWith "/system.slice"
type Expr struct {
	*Agent
	src     string
	program *vm.Program
}

func exprEnv(id process.Identity) map[string]any {
	return map[string]any{
		"pid":    id.PID,
		"exe":    id.Exe,
		"name":   id.Name(),
		"cgroup": id.Cgroup,
	}
}

func NewExpr(src string, opts ...AgentOption) (*Expr, error) {
	program, err := expr.Compile(src, expr.Env(exprEnv(process.Identity{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("watch: compile %q: %w", src, err)
	}
	return &Expr{Agent: NewAgent("expr:"+src, opts...), src: src, program: program}, nil
}

func (w *Expr) Probe(id process.Identity) bool {
	out, err := expr.Run(w.program, exprEnv(id))
	if err != nil {
		w.log.Debug("expression failed", "expr", w.src, "pid", id.PID, "err", err)
		return false
	}
	ok, _ := out.(bool)
	return ok
}

var (
	_ process.Watcher       = (*ExeName)(nil)
	_ process.Watcher       = (*PID)(nil)
	_ process.Watcher       = (*PIDFile)(nil)
	_ process.Watcher       = (*Expr)(nil)
	_ process.StateObserver = (*Agent)(nil)
)

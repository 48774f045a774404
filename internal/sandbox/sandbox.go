// Package sandbox implements the workspace tool sandbox (C9): the
// read/write/ls/grep/bash builtin tools confined to a workspace root,
// grounded on original_source/crates/rip-tools/src/builtins.rs.
//
// Globbing uses github.com/gobwas/glob (the corpus's glob library;
// there is no globset-equivalent multi-pattern glob set in it, so
// globSet below composes single compiled globs the way globset's
// GlobSetBuilder would). Directory traversal and grep's line scanning
// use the standard library: the corpus's directory walker is the
// ignore crate's gitignore-aware WalkBuilder, which has no Go
// equivalent in the retrieval pack, so traversal here is a plain
// recursive os.ReadDir walk with the same hidden/depth/symlink knobs.
// Regex is the standard library regexp package, which — like the
// original's regex crate — is a linear-time RE2-family engine; no
// alternative regex library appears anywhere in the pack.
package sandbox

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/xLillium/rip/internal/tool"
)

// Config bounds every builtin tool's effect to workspaceRoot and caps
// their resource usage.
type Config struct {
	WorkspaceRoot  string
	MaxBytes       int
	MaxResults     int
	MaxDepth       int
	FollowSymlinks bool
	IncludeHidden  bool
}

// DefaultConfig mirrors BuiltinToolConfig::default: a 512KiB byte cap, a
// 1000-result cap, a depth cap of 64, symlinks not followed, hidden
// entries excluded.
func DefaultConfig(workspaceRoot string) Config {
	return Config{
		WorkspaceRoot:  workspaceRoot,
		MaxBytes:       512 * 1024,
		MaxResults:     1000,
		MaxDepth:       64,
		FollowSymlinks: false,
		IncludeHidden:  false,
	}
}

// RegisterBuiltins installs read/write/ls/grep/bash (plus the "shell"
// alias for "bash") into registry.
func RegisterBuiltins(registry *tool.Registry, cfg Config) {
	registry.Register("read", readHandler(cfg))
	registry.Register("write", writeHandler(cfg))
	registry.Register("ls", lsHandler(cfg))
	registry.Register("grep", grepHandler(cfg))
	registry.Register("bash", bashHandler(cfg))
	registry.RegisterAlias("shell", "bash")
}

func parseArgs[T any](raw json.RawMessage) (T, *tool.Output) {
	var args T
	if err := json.Unmarshal(raw, &args); err != nil {
		out := tool.InvalidArgs(fmt.Sprintf("%v", err))
		return args, &out
	}
	return args, nil
}

// resolvePath rejects absolute paths and any ".." path component before
// any lexical cleaning, mirroring the original's raw
// Path::components() scan: "a/../b" is rejected even though it would
// lexically resolve back inside root, since the caller's intent to
// escape is the thing being checked, not the net effect.
func resolvePath(root, raw string) (string, error) {
	if filepath.IsAbs(raw) || strings.HasPrefix(raw, "/") {
		return "", fmt.Errorf("absolute paths are not allowed")
	}
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == '/' || r == filepath.Separator }) {
		if part == ".." {
			return "", fmt.Errorf("path escapes workspace root")
		}
	}
	return filepath.Join(root, raw), nil
}

func normalizeRelPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

// truncateUTF8 mirrors the original's truncate_utf8: it never cuts a
// multi-byte rune in half, and always returns valid UTF-8 the way
// Rust's String::from_utf8_lossy does in both branches (Go's string()
// conversion, unlike Rust's String, does not itself guarantee
// validity, so both branches route through toValidUTF8 rather than
// only the truncated one).
func truncateUTF8(data []byte, maxBytes int) (string, bool, int) {
	if len(data) <= maxBytes {
		return toValidUTF8(data), false, len(data)
	}
	end := maxBytes
	for end > 0 && !utf8.Valid(data[:end]) {
		end--
	}
	return toValidUTF8(data[:end]), true, end
}

// toValidUTF8 substitutes the UTF-8 replacement character for any
// invalid byte sequence, Go's equivalent of from_utf8_lossy.
func toValidUTF8(data []byte) string {
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

func splitOutput(data []byte, maxBytes int) []string {
	text, _, _ := truncateUTF8(data, maxBytes)
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		lines = append(lines, strings.TrimSuffix(line, "\r"))
	}
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// globSet is the composition of zero or more compiled globs, matching
// like globset's GlobSet: true if any pattern matches.
type globSet []glob.Glob

func buildGlobSet(patterns []string) (globSet, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	set := make(globSet, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", p, err)
		}
		set = append(set, g)
	}
	return set, nil
}

func (s globSet) match(path string) bool {
	for _, g := range s {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func globSetsMatch(include, exclude globSet, path string) bool {
	if include != nil && !include.match(path) {
		return false
	}
	if exclude != nil && exclude.match(path) {
		return false
	}
	return true
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

type walkEntry struct {
	path  string
	isDir bool
}

// walk lists entries under root (not including root itself), honoring
// maxDepth, includeHidden, and followSymlinks. Results are returned in
// a stable, depth-first, lexicographic order.
func walk(root string, maxDepth int, includeHidden, followSymlinks bool) ([]walkEntry, []string) {
	var entries []walkEntry
	var errs []string
	var recurse func(dir string, depth int)
	recurse = func(dir string, depth int) {
		if depth > maxDepth {
			return
		}
		children, err := os.ReadDir(dir)
		if err != nil {
			errs = append(errs, err.Error())
			return
		}
		sort.Slice(children, func(i, j int) bool { return children[i].Name() < children[j].Name() })
		for _, child := range children {
			if !includeHidden && isHidden(child.Name()) {
				continue
			}
			childPath := filepath.Join(dir, child.Name())
			info, err := child.Info()
			if err != nil {
				errs = append(errs, err.Error())
				continue
			}
			isSymlink := info.Mode()&os.ModeSymlink != 0
			isDir := child.IsDir()
			if isSymlink {
				if !followSymlinks {
					continue
				}
				target, err := os.Stat(childPath)
				if err != nil {
					errs = append(errs, err.Error())
					continue
				}
				isDir = target.IsDir()
			}
			entries = append(entries, walkEntry{path: childPath, isDir: isDir})
			if isDir {
				recurse(childPath, depth+1)
			}
		}
	}
	recurse(root, 1)
	return entries, errs
}

type readArgs struct {
	Path      string `json:"path"`
	StartLine *int   `json:"start_line"`
	EndLine   *int   `json:"end_line"`
	MaxBytes  *int   `json:"max_bytes"`
}

func readHandler(cfg Config) tool.Handler {
	return func(ctx context.Context, inv tool.Invocation) tool.Output {
		args, errOut := parseArgs[readArgs](inv.Args)
		if errOut != nil {
			return *errOut
		}
		if args.StartLine != nil && *args.StartLine == 0 {
			return tool.InvalidArgs("line numbers are 1-based")
		}
		if args.EndLine != nil && *args.EndLine == 0 {
			return tool.InvalidArgs("line numbers are 1-based")
		}
		if args.StartLine != nil && args.EndLine != nil && *args.StartLine > *args.EndLine {
			return tool.InvalidArgs("start_line must be <= end_line")
		}

		path, err := resolvePath(cfg.WorkspaceRoot, args.Path)
		if err != nil {
			return tool.Failure(err.Error())
		}

		file, err := os.Open(path)
		if err != nil {
			return tool.Failure(fmt.Sprintf("read failed: %v", err))
		}
		defer file.Close()

		maxBytes := cfg.MaxBytes
		if args.MaxBytes != nil {
			maxBytes = *args.MaxBytes
		}

		scanner := bufio.NewReader(file)
		var output []byte
		lineNo := 0
		truncated := false
	lines:
		for {
			line, err := scanner.ReadString('\n')
			if len(line) == 0 && err != nil {
				break
			}
			lineNo++

			if args.StartLine != nil && lineNo < *args.StartLine {
				if err != nil {
					break
				}
				continue
			}
			if args.EndLine != nil && lineNo > *args.EndLine {
				break
			}

			output = append(output, line...)
			if len(output) >= maxBytes {
				// Don't hard-slice here: truncateUTF8 below needs the
				// full overshoot to find a valid rune boundary at or
				// before maxBytes, per spec's UTF-8-safe-truncation
				// property.
				truncated = true
				break lines
			}
			if err != nil {
				break
			}
		}

		content, wasTruncated, usedBytes := truncateUTF8(output, maxBytes)
		truncated = truncated || wasTruncated

		artifacts, _ := json.Marshal(map[string]any{
			"path":       normalizeRelPath(cfg.WorkspaceRoot, path),
			"bytes":      usedBytes,
			"truncated":  truncated,
			"start_line": args.StartLine,
			"end_line":   args.EndLine,
		})
		return tool.Output{Stdout: []string{content}, Artifacts: artifacts}
	}
}

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Append  *bool  `json:"append"`
	Create  *bool  `json:"create"`
	Atomic  *bool  `json:"atomic"`
}

func writeHandler(cfg Config) tool.Handler {
	return func(ctx context.Context, inv tool.Invocation) tool.Output {
		args, errOut := parseArgs[writeArgs](inv.Args)
		if errOut != nil {
			return *errOut
		}

		path, err := resolvePath(cfg.WorkspaceRoot, args.Path)
		if err != nil {
			return tool.Failure(err.Error())
		}

		create := args.Create == nil || *args.Create
		appendMode := args.Append != nil && *args.Append
		atomic := args.Atomic == nil || *args.Atomic

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return tool.Failure(fmt.Sprintf("write failed: %v", err))
		}

		content := []byte(args.Content)
		switch {
		case appendMode:
			flags := os.O_WRONLY | os.O_APPEND
			if create {
				flags |= os.O_CREATE
			}
			f, err := os.OpenFile(path, flags, 0o644)
			if err != nil {
				return tool.Failure(fmt.Sprintf("write failed: %v", err))
			}
			defer f.Close()
			if _, err := f.Write(content); err != nil {
				return tool.Failure(fmt.Sprintf("write failed: %v", err))
			}
		case atomic:
			tmpPath := path + ".tmp-" + uuid.NewString()
			if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
				return tool.Failure(fmt.Sprintf("write failed: %v", err))
			}
			if err := os.Rename(tmpPath, path); err != nil {
				return tool.Failure(fmt.Sprintf("write failed: %v", err))
			}
		default:
			if err := os.WriteFile(path, content, 0o644); err != nil {
				return tool.Failure(fmt.Sprintf("write failed: %v", err))
			}
		}

		artifacts, _ := json.Marshal(map[string]any{
			"path":          normalizeRelPath(cfg.WorkspaceRoot, path),
			"bytes_written": len(content),
		})
		return tool.Output{
			Stdout:    []string{fmt.Sprintf("wrote %d bytes", len(content))},
			Artifacts: artifacts,
		}
	}
}

type lsArgs struct {
	Path           *string  `json:"path"`
	Recursive      *bool    `json:"recursive"`
	MaxDepth       *int     `json:"max_depth"`
	Include        []string `json:"include"`
	Exclude        []string `json:"exclude"`
	IncludeHidden  *bool    `json:"include_hidden"`
	FollowSymlinks *bool    `json:"follow_symlinks"`
}

func lsHandler(cfg Config) tool.Handler {
	return func(ctx context.Context, inv tool.Invocation) tool.Output {
		args, errOut := parseArgs[lsArgs](inv.Args)
		if errOut != nil {
			return *errOut
		}

		root := "."
		if args.Path != nil {
			root = *args.Path
		}
		rootPath, err := resolvePath(cfg.WorkspaceRoot, root)
		if err != nil {
			return tool.Failure(err.Error())
		}

		includeHidden := cfg.IncludeHidden
		if args.IncludeHidden != nil {
			includeHidden = *args.IncludeHidden
		}
		followSymlinks := cfg.FollowSymlinks
		if args.FollowSymlinks != nil {
			followSymlinks = *args.FollowSymlinks
		}
		recursive := args.Recursive != nil && *args.Recursive
		maxDepth := cfg.MaxDepth
		if args.MaxDepth != nil {
			maxDepth = *args.MaxDepth
		}
		if !recursive {
			maxDepth = 1
		}

		include, err := buildGlobSet(args.Include)
		if err != nil {
			return tool.InvalidArgs(err.Error())
		}
		exclude, err := buildGlobSet(args.Exclude)
		if err != nil {
			return tool.InvalidArgs(err.Error())
		}

		entries, errs := walk(rootPath, maxDepth, includeHidden, followSymlinks)
		var stdout []string
		for _, e := range entries {
			rel := normalizeRelPath(cfg.WorkspaceRoot, e.path)
			if !globSetsMatch(include, exclude, rel) {
				continue
			}
			stdout = append(stdout, rel)
		}

		artifacts, _ := json.Marshal(map[string]any{
			"root": normalizeRelPath(cfg.WorkspaceRoot, rootPath),
		})
		return tool.Output{Stdout: stdout, Stderr: errs, Artifacts: artifacts}
	}
}

type grepArgs struct {
	Pattern        string   `json:"pattern"`
	Path           *string  `json:"path"`
	Regex          *bool    `json:"regex"`
	CaseSensitive  *bool    `json:"case_sensitive"`
	Include        []string `json:"include"`
	Exclude        []string `json:"exclude"`
	MaxResults     *int     `json:"max_results"`
	MaxBytes       *int     `json:"max_bytes"`
	MaxDepth       *int     `json:"max_depth"`
	IncludeHidden  *bool    `json:"include_hidden"`
	FollowSymlinks *bool    `json:"follow_symlinks"`
}

func grepHandler(cfg Config) tool.Handler {
	return func(ctx context.Context, inv tool.Invocation) tool.Output {
		args, errOut := parseArgs[grepArgs](inv.Args)
		if errOut != nil {
			return *errOut
		}

		root := "."
		if args.Path != nil {
			root = *args.Path
		}
		rootPath, err := resolvePath(cfg.WorkspaceRoot, root)
		if err != nil {
			return tool.Failure(err.Error())
		}

		regexEnabled := args.Regex == nil || *args.Regex
		caseSensitive := args.CaseSensitive == nil || *args.CaseSensitive
		maxResults := cfg.MaxResults
		if args.MaxResults != nil {
			maxResults = *args.MaxResults
		}
		maxBytes := cfg.MaxBytes
		if args.MaxBytes != nil {
			maxBytes = *args.MaxBytes
		}
		maxDepth := cfg.MaxDepth
		if args.MaxDepth != nil {
			maxDepth = *args.MaxDepth
		}
		includeHidden := cfg.IncludeHidden
		if args.IncludeHidden != nil {
			includeHidden = *args.IncludeHidden
		}
		followSymlinks := cfg.FollowSymlinks
		if args.FollowSymlinks != nil {
			followSymlinks = *args.FollowSymlinks
		}

		include, err := buildGlobSet(args.Include)
		if err != nil {
			return tool.InvalidArgs(err.Error())
		}
		exclude, err := buildGlobSet(args.Exclude)
		if err != nil {
			return tool.InvalidArgs(err.Error())
		}

		pattern := args.Pattern
		if !regexEnabled {
			pattern = regexp.QuoteMeta(pattern)
		}
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return tool.InvalidArgs(fmt.Sprintf("invalid regex: %v", err))
		}

		entries, errs := walk(rootPath, maxDepth, includeHidden, followSymlinks)
		var stdout []string
		matches := 0

	files:
		for _, e := range entries {
			if e.isDir {
				continue
			}
			rel := normalizeRelPath(cfg.WorkspaceRoot, e.path)
			if !globSetsMatch(include, exclude, rel) {
				continue
			}

			file, err := os.Open(e.path)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", rel, err))
				continue
			}

			reader := bufio.NewReader(file)
			bytesRead := 0
			lineNo := 0
			for {
				line, readErr := reader.ReadString('\n')
				if len(line) == 0 && readErr != nil {
					break
				}
				lineNo++
				bytesRead += len(line)
				if bytesRead > maxBytes {
					break
				}
				if strings.ContainsRune(line, 0) {
					break
				}
				trimmed := strings.TrimRight(line, "\r\n")
				if re.MatchString(trimmed) {
					stdout = append(stdout, fmt.Sprintf("%s:%d:%s", rel, lineNo, trimmed))
					matches++
					if matches >= maxResults {
						file.Close()
						break files
					}
				}
				if readErr != nil {
					break
				}
			}
			file.Close()
		}

		artifacts, _ := json.Marshal(map[string]any{
			"root":    normalizeRelPath(cfg.WorkspaceRoot, rootPath),
			"matches": matches,
		})
		return tool.Output{Stdout: stdout, Stderr: errs, Artifacts: artifacts}
	}
}

type shellArgs struct {
	Command  string            `json:"command"`
	Cwd      *string           `json:"cwd"`
	Env      map[string]string `json:"env"`
	MaxBytes *int              `json:"max_bytes"`
}

// bashCommand prefers bash -c, the way run_bash does (Command::new("bash")
// first, falling back to default_shell_program() only on NotFound).
// LookPath stands in for Rust's spawn-then-check-ErrorKind::NotFound
// since Go can check availability up front without spawning twice.
func bashCommand(ctx context.Context, command string) *exec.Cmd {
	if path, err := exec.LookPath("bash"); err == nil {
		return exec.CommandContext(ctx, path, "-c", command)
	}
	program, args := defaultShellProgram()
	return exec.CommandContext(ctx, program, append(args, command)...)
}

// defaultShellProgram mirrors default_shell_program: pwsh, then
// powershell, then %COMSPEC% (or cmd) on Windows; $SHELL, or sh, on
// every other platform.
func defaultShellProgram() (string, []string) {
	if runtime.GOOS == "windows" {
		if path, err := exec.LookPath("pwsh"); err == nil {
			return path, []string{"-Command"}
		}
		if path, err := exec.LookPath("powershell"); err == nil {
			return path, []string{"-Command"}
		}
		comspec := os.Getenv("COMSPEC")
		if comspec == "" {
			comspec = "cmd"
		}
		return comspec, []string{"/C"}
	}
	shellProgram := os.Getenv("SHELL")
	if shellProgram == "" {
		shellProgram = "sh"
	}
	return shellProgram, []string{"-c"}
}

func bashHandler(cfg Config) tool.Handler {
	return func(ctx context.Context, inv tool.Invocation) tool.Output {
		args, errOut := parseArgs[shellArgs](inv.Args)
		if errOut != nil {
			return *errOut
		}

		maxBytes := cfg.MaxBytes
		if args.MaxBytes != nil {
			maxBytes = *args.MaxBytes
		}

		cmd := bashCommand(ctx, args.Command)

		if args.Cwd != nil {
			cwd, err := resolvePath(cfg.WorkspaceRoot, *args.Cwd)
			if err != nil {
				return tool.Failure(err.Error())
			}
			cmd.Dir = cwd
		} else {
			cmd.Dir = cfg.WorkspaceRoot
		}

		if len(args.Env) > 0 {
			env := os.Environ()
			for k, v := range args.Env {
				env = append(env, k+"="+v)
			}
			cmd.Env = env
		}

		var stdout, stderr strings.Builder
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		exitCode := 0
		if err := cmd.Run(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			} else if ctx.Err() != nil {
				return tool.Failure(fmt.Sprintf("bash failed: %v", ctx.Err()))
			} else {
				return tool.Failure(fmt.Sprintf("bash failed: %v", err))
			}
		}

		return tool.Output{
			Stdout:   splitOutput([]byte(stdout.String()), maxBytes),
			Stderr:   splitOutput([]byte(stderr.String()), maxBytes),
			ExitCode: exitCode,
		}
	}
}

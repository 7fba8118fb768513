package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperifyio/gosite/internal/site"
)

// loadInputs resolves the root prompts. A single input writes straight into
// OutputDir; several inputs each get OutputDir/<slug of file name>.
func (a *App) loadInputs() ([]input, error) {
	root := strings.TrimSpace(a.cfg.OutputDir)
	if root == "" {
		root = DefaultOutputDir
	}
	if strings.TrimSpace(a.cfg.Prompt) != "" {
		return []input{{Name: "prompt", Prompt: a.cfg.Prompt, Dir: root}}, nil
	}
	if len(a.cfg.InputPaths) == 0 {
		return nil, fmt.Errorf("no input prompt")
	}
	out := make([]input, 0, len(a.cfg.InputPaths))
	used := map[string]int{}
	for _, p := range a.cfg.InputPaths {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		text := strings.TrimSpace(string(b))
		if text == "" {
			return nil, fmt.Errorf("read input: %s is empty", p)
		}
		name := inputName(p)
		dir := root
		if len(a.cfg.InputPaths) > 1 {
			dir = filepath.Join(root, uniqueName(name, used))
		}
		out = append(out, input{Name: name, Prompt: text, Dir: dir})
	}
	return out, nil
}

func inputName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if s := site.Slugify(base); s != "" {
		return s
	}
	return "site"
}

func uniqueName(name string, used map[string]int) string {
	used[name]++
	if n := used[name]; n > 1 {
		return name + "-" + strconv.Itoa(n)
	}
	return name
}

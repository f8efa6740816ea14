package scripting

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/dominikbraun/graph"

	"qlbridge/internal/log"
)

const requiresDirective = "--@requires"

// Plugin is a Lua source file from the plugin directory
type Plugin struct {
	Name     string
	Path     string
	Requires []string
	Source   string
}

// DiscoverPlugins reads every *.lua file in dir
func DiscoverPlugins(dir string) ([]Plugin, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.lua"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	plugins := make([]Plugin, 0, len(paths))
	for _, path := range paths {
		source, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, Plugin{
			Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
			Path:     path,
			Requires: parseRequires(string(source)),
			Source:   string(source),
		})
	}
	return plugins, nil
}

// parseRequires collects names from --@requires lines in the leading comment
// block of a plugin
func parseRequires(source string) []string {
	var requires []string
	scanner := bufio.NewScanner(strings.NewReader(source))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "--") {
			break
		}
		if !strings.HasPrefix(line, requiresDirective) {
			continue
		}
		for _, name := range strings.Split(strings.TrimPrefix(line, requiresDirective), ",") {
			if name = strings.TrimSpace(name); name != "" {
				requires = append(requires, name)
			}
		}
	}
	return requires
}

// LoadOrder orders plugins so each loads after the plugins it requires. Ties
// break by name. Unknown requirements and requirements that would form a
// cycle are logged and ignored.
func LoadOrder(plugins []Plugin) []Plugin {
	byName := make(map[string]Plugin, len(plugins))
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, p := range plugins {
		byName[p.Name] = p
		_ = g.AddVertex(p.Name)
	}

	for _, p := range plugins {
		for _, dep := range p.Requires {
			err := g.AddEdge(dep, p.Name)
			switch {
			case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
			case errors.Is(err, graph.ErrVertexNotFound):
				log.Warn("Plugin requires unknown plugin", "plugin", p.Name, "requires", dep)
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				log.Warn("Plugin requirement creates a cycle, ignoring it", "plugin", p.Name, "requires", dep)
			default:
				log.Warn("Could not record plugin requirement", "plugin", p.Name, "requires", dep, "error", err)
			}
		}
	}

	names, err := graph.StableTopologicalSort(g, func(a, b string) bool { return a < b })
	if err != nil {
		log.Warn("Could not order plugins, loading by name", "error", err)
		names = make([]string, 0, len(plugins))
		for _, p := range plugins {
			names = append(names, p.Name)
		}
		sort.Strings(names)
	}

	ordered := make([]Plugin, 0, len(names))
	for _, name := range names {
		ordered = append(ordered, byName[name])
	}
	return ordered
}

// loadPlugins runs every plugin in the session. A plugin that fails to load
// is reported on the console and skipped.
func (b *Bridge) loadPlugins(s *Session) {
	plugins, err := DiscoverPlugins(b.pluginDir)
	if err != nil {
		log.Error("Failed to read plugin directory", "dir", b.pluginDir, "error", err)
		b.host.Printf("Could not read plugins from %s: %v\n", b.pluginDir, err)
		return
	}

	l := s.state
	for _, p := range LoadOrder(plugins) {
		top := l.Top()
		err := lua.LoadBuffer(l, p.Source, "@"+p.Path, "")
		if err == nil {
			err = l.ProtectedCall(0, 0, 0)
		}
		l.SetTop(top)

		if err != nil {
			log.Error("Failed to load plugin", "plugin", p.Name, "error", err)
			b.host.Printf("Failed to load plugin %s: %v\n", p.Name, err)
			continue
		}
		s.plugins = append(s.plugins, p.Name)
		log.Debug("Loaded plugin", "plugin", p.Name)
	}
}

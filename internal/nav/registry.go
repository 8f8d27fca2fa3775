package nav

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed config/menu.json config/widgets.json
var configFS embed.FS

// Registry bundles the static menu and widget definitions supplied to the
// filter. Loaded once at startup and treated as immutable afterwards.
type Registry struct {
	Menu    []Node
	Widgets []Node
}

// LoadRegistry parses the embedded default registry configuration.
func LoadRegistry() (*Registry, error) {
	menu, err := loadNodes("config/menu.json")
	if err != nil {
		return nil, err
	}
	widgets, err := loadNodes("config/widgets.json")
	if err != nil {
		return nil, err
	}
	return &Registry{Menu: menu, Widgets: widgets}, nil
}

func loadNodes(path string) ([]Node, error) {
	data, err := configFS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("nav: read %s: %w", path, err)
	}
	var nodes []Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("nav: parse %s: %w", path, err)
	}
	return nodes, nil
}

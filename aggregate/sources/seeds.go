package sources

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate"
)

//go:embed seeds.json
var seedsFS embed.FS

// builtinSeeds maps module name to its last-resort item list. Loaded
// once at init; a malformed seeds.json is a build defect, so panic.
var builtinSeeds = loadSeeds()

func loadSeeds() map[string][]aggregate.ContentItem {
	raw, err := seedsFS.ReadFile("seeds.json")
	if err != nil {
		panic(fmt.Sprintf("sources: read seeds.json: %v", err))
	}
	var seeds map[string][]aggregate.ContentItem
	if err := json.Unmarshal(raw, &seeds); err != nil {
		panic(fmt.Sprintf("sources: parse seeds.json: %v", err))
	}
	return seeds
}

// seedItems returns a copy of the built-in seed for module. The copy
// matters: callers append to and reorder what they get back.
func seedItems(module string) []aggregate.ContentItem {
	return append([]aggregate.ContentItem(nil), builtinSeeds[module]...)
}

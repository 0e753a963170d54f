package generator

import (
	"fmt"
	"strings"

	"github.com/teranos/opgen/discovery"
	"github.com/teranos/opgen/errors"
	"github.com/teranos/opgen/typegraph"
)

// DefaultResourceMarker is the directive that gives an entity its resource
// identity (group, version, kind).
const DefaultResourceMarker = typegraph.MarkerPrefix + "resource"

// Diagnostic is a non-fatal finding about one discovered pair.
type Diagnostic struct {
	Controller string
	Entity     string
	Message    string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s (entity %s, controller %s)", d.Message, d.Entity, d.Controller)
}

// CheckResourceMarkers reports each discovered entity declared in snapshot
// that does not carry marker. Only presence is checked. Entities declared
// elsewhere, and predeclared types, are not reported. Each entity is
// reported once, for the first controller that reconciles it.
func CheckResourceMarkers(snapshot *typegraph.Snapshot, pairs []discovery.Pair, marker string) []Diagnostic {
	var diags []Diagnostic
	reported := make(map[string]bool)
	for _, p := range pairs {
		core, ok := p.Entity.Core()
		if !ok || core.Package == "" {
			continue
		}
		id := core.ID()
		if reported[id] {
			continue
		}
		decl, ok := snapshot.Lookup(id)
		if !ok || decl.External || decl.HasMarker(marker) {
			continue
		}
		reported[id] = true
		diags = append(diags, Diagnostic{
			Controller: p.Controller.String(),
			Entity:     id,
			Message:    "entity has no //" + marker + " marker",
		})
	}
	return diags
}

func markerError(diags []Diagnostic, marker string) error {
	lines := make([]string, len(diags))
	for i, d := range diags {
		lines[i] = d.String()
	}
	err := errors.Newf("%d entity type(s) without the %s marker", len(diags), marker)
	err = errors.WithDetail(err, strings.Join(lines, "\n"))
	return errors.WithHintf(err, "add //%s to each entity's doc comment or disable strict markers", marker)
}

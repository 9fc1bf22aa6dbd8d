// Package loader implements the mod-loader version merger of spec.md §4.5:
// resolving a StandardVersion's modloaders into a single merged version
// manifest, and executing Forge's post-install processor chain.
package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrInvalidCoordinates is returned when a string does not match the
// group:artifact:version[:identifier][@extension] grammar.
var ErrInvalidCoordinates = errors.New("invalid maven coordinates")

var mavenCoordPattern = regexp.MustCompile(
	`^[a-zA-Z0-9._-]+:[a-zA-Z0-9._-]+:[0-9]+\.[0-9]+(\.[0-9]+)?(-[a-zA-Z0-9._-]+)*(\.[a-zA-Z0-9._-]+)*(:[a-zA-Z0-9._-]+)?(@[a-zA-Z0-9._-]+)?$`,
)

// MavenCoordinates is a parsed group:artifact:version[:identifier][@ext]
// reference, resolved by the Forge processor chain into on-disk jar
// paths under <libraries>, per spec.md §4.5.
type MavenCoordinates struct {
	GroupID    string
	ArtifactID string
	Version    string
	Identifier string // optional
	Additional string // optional, caller-supplied suffix (e.g. "natives-linux")
	Extension  string
}

// ParseMavenCoordinates parses coordinates (trimmed) and attaches an
// optional additional suffix used for classifier-style artifacts.
func ParseMavenCoordinates(coordinates string, additional string) (*MavenCoordinates, error) {
	coordinates = strings.TrimSpace(coordinates)
	if coordinates == "" || !mavenCoordPattern.MatchString(coordinates) {
		return nil, ErrInvalidCoordinates
	}

	extension := "jar"
	rest := coordinates
	if idx := strings.Index(coordinates, "@"); idx != -1 {
		rest = coordinates[:idx]
		extension = coordinates[idx+1:]
	}

	parts := strings.Split(rest, ":")
	if len(parts) < 3 {
		return nil, ErrInvalidCoordinates
	}

	identifier := ""
	if len(parts) >= 4 {
		identifier = parts[3]
	}

	return &MavenCoordinates{
		GroupID:    parts[0],
		ArtifactID: parts[1],
		Version:    parts[2],
		Identifier: identifier,
		Additional: additional,
		Extension:  extension,
	}, nil
}

// Path renders the coordinates into
// <group/as/path>/<artifact>/<version>/<artifact>-<version>[-identifier][-additional].<ext>,
// per spec.md §4.5's Forge processor classpath resolution.
func (m *MavenCoordinates) Path() string {
	groupPath := filepath.Join(strings.Split(m.GroupID, ".")...)

	filename := m.ArtifactID + "-" + m.Version
	if m.Identifier != "" {
		filename += "-" + m.Identifier
	}
	if m.Additional != "" {
		filename += "-" + m.Additional
	}
	filename += "." + m.Extension

	return filepath.Join(groupPath, m.ArtifactID, m.Version, filename)
}

// ResolvePath resolves coords relative to librariesRoot, parsing first.
func ResolvePath(librariesRoot, coordinates, additional string) (string, error) {
	coords, err := ParseMavenCoordinates(coordinates, additional)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", coordinates, err)
	}
	return filepath.Join(librariesRoot, coords.Path()), nil
}

package loader

import "encoding/json"

// OSRule is the os{name, version?, arch?} condition of a library Rule.
type OSRule struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Arch    string `json:"arch,omitempty"`
}

// Rule is one element of a library's ordered rules list, per spec.md §4.6's
// rule-evaluation contract: "action: allow|disallow, os?, features?".
type Rule struct {
	Action   string         `json:"action"`
	OS       *OSRule        `json:"os,omitempty"`
	Features map[string]any `json:"features,omitempty"`
}

// Artifact is a single downloadable jar reference.
type Artifact struct {
	Path string `json:"path"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// LibraryDownloads holds the primary artifact plus any native classifiers.
type LibraryDownloads struct {
	Artifact    *Artifact           `json:"artifact,omitempty"`
	Classifiers map[string]Artifact `json:"classifiers,omitempty"`
}

// Extract names native-jar paths to exclude when unpacking, per spec.md §4.6.
type Extract struct {
	Exclude []string `json:"exclude,omitempty"`
}

// Library is `{name (maven GAV), downloads, rules?, natives?, extract?}`.
type Library struct {
	Name      string            `json:"name"`
	Downloads LibraryDownloads  `json:"downloads"`
	Rules     []Rule            `json:"rules,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"` // os -> classifier key
	Extract   *Extract          `json:"extract,omitempty"`
}

// Argument is a plain string or {rules, value} conditional argument.
type Argument struct {
	Plain string
	Rules []Rule
	Value []string // one or more values substituted when rules allow
}

func (a *Argument) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		a.Plain = plain
		return nil
	}

	var obj struct {
		Rules []Rule          `json:"rules"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	a.Rules = obj.Rules

	var single string
	if err := json.Unmarshal(obj.Value, &single); err == nil {
		a.Value = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(obj.Value, &many); err != nil {
		return err
	}
	a.Value = many
	return nil
}

func (a Argument) MarshalJSON() ([]byte, error) {
	if a.Rules == nil {
		return json.Marshal(a.Plain)
	}
	return json.Marshal(struct {
		Rules []Rule   `json:"rules"`
		Value []string `json:"value"`
	}{a.Rules, a.Value})
}

// Arguments is the {game[], jvm[]} argument list pair.
type Arguments struct {
	Game []Argument `json:"game"`
	JVM  []Argument `json:"jvm"`
}

// AssetIndexRef points at the asset index document.
type AssetIndexRef struct {
	ID   string `json:"id"`
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Downloads is `{client, client_mappings?, server?}`.
type Downloads struct {
	Client         *Artifact `json:"client,omitempty"`
	ClientMappings *Artifact `json:"client_mappings,omitempty"`
	Server         *Artifact `json:"server,omitempty"`
}

// JavaVersion is `{component, major}`.
type JavaVersion struct {
	Component string `json:"component"`
	Major     int    `json:"majorVersion"`
}

// Processor is a Forge post-install step, per spec.md §4.5.
type Processor struct {
	JAR       string            `json:"jar"`
	Classpath []string          `json:"classpath"`
	Args      []string          `json:"args"`
	Sides     []string          `json:"sides,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"`
}

// DataEntry is one `data` map value: per-side values, where a bracketed
// `[maven:coord]` form is resolved to a path by the processor runner.
type DataEntry struct {
	Client string `json:"client"`
	Server string `json:"server"`
}

// VersionManifest is the resolved version manifest of spec.md §3.
type VersionManifest struct {
	InheritsFrom string               `json:"inherits_from,omitempty"`
	Arguments    Arguments            `json:"arguments"`
	AssetIndex   AssetIndexRef        `json:"asset_index"`
	AssetsID     string               `json:"assets_id"`
	Downloads    Downloads            `json:"downloads"`
	ID           string               `json:"id"`
	JavaVersion  JavaVersion          `json:"java_version"`
	Libraries    []Library            `json:"libraries"`
	MainClass    string               `json:"main_class"`
	ReleaseTime  string               `json:"release_time"`
	Type         string               `json:"type"`
	Data         map[string]DataEntry `json:"data,omitempty"`
	Processors   []Processor          `json:"processors,omitempty"`
}

// Merge appends child's libraries onto base's, lets child scalars win for
// id/main_class/data/processors, and concatenates argument lists, per
// spec.md §3's "merging is lossless" rule.
func Merge(base, child VersionManifest) VersionManifest {
	merged := base

	merged.Libraries = append(append([]Library{}, base.Libraries...), child.Libraries...)
	merged.Arguments.Game = append(append([]Argument{}, base.Arguments.Game...), child.Arguments.Game...)
	merged.Arguments.JVM = append(append([]Argument{}, base.Arguments.JVM...), child.Arguments.JVM...)

	if child.ID != "" {
		merged.ID = child.ID
	}
	if child.MainClass != "" {
		merged.MainClass = child.MainClass
	}
	if child.Data != nil {
		merged.Data = child.Data
	}
	if child.Processors != nil {
		merged.Processors = child.Processors
	}

	return merged
}

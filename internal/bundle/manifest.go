package bundle

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// FormatVersion is written into every compiled artifact
	FormatVersion = 1

	manifestFile    = "manifest.yaml"
	metadataFile    = "metadata.yaml"
	compiledWeights = "model.onnx"

	defaultWeights    = "model.onnx"
	defaultInputSize  = 640
	defaultScoreFloor = 0.25
	defaultNMSIoU     = 0.45
)

// InputSize is the network input geometry in pixels
type InputSize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Manifest describes a source model bundle
type Manifest struct {
	Name       string         `yaml:"name,omitempty"`
	Weights    string         `yaml:"weights"`
	Input      InputSize      `yaml:"input"`
	Names      map[int]string `yaml:"names"`
	Objectness bool           `yaml:"objectness,omitempty"` // v5-style exports carry an objectness column
	ScoreFloor float32        `yaml:"score_floor"`
	NMSIoU     float32        `yaml:"nms_iou"`
}

// Metadata is the manifest of a compiled artifact
type Metadata struct {
	Manifest      `yaml:",inline"`
	FormatVersion int       `yaml:"format_version"`
	SourceDigest  string    `yaml:"source_digest"`
	CompiledAt    time.Time `yaml:"compiled_at"`
}

// Label returns the class name for id, or the decimal id when unnamed
func (m *Manifest) Label(id int) string {
	if name, ok := m.Names[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("%d", id)
}

// applyDefaults fills in optional manifest fields
func (m *Manifest) applyDefaults() {
	if m.Weights == "" {
		m.Weights = defaultWeights
	}
	if m.Input.Width == 0 {
		m.Input.Width = defaultInputSize
	}
	if m.Input.Height == 0 {
		m.Input.Height = defaultInputSize
	}
	if m.ScoreFloor == 0 {
		m.ScoreFloor = defaultScoreFloor
	}
	if m.NMSIoU == 0 {
		m.NMSIoU = defaultNMSIoU
	}
}

// Validate checks that the manifest can drive inference
func (m *Manifest) Validate() error {
	if m.Input.Width <= 0 || m.Input.Height <= 0 {
		return fmt.Errorf("invalid input size %dx%d", m.Input.Width, m.Input.Height)
	}
	if len(m.Names) == 0 {
		return errors.New("manifest declares no class names")
	}
	for id := range m.Names {
		if id < 0 {
			return fmt.Errorf("invalid class id %d", id)
		}
	}
	if m.ScoreFloor < 0 || m.ScoreFloor > 1 {
		return fmt.Errorf("score_floor %v outside [0,1]", m.ScoreFloor)
	}
	if m.NMSIoU <= 0 || m.NMSIoU > 1 {
		return fmt.Errorf("nms_iou %v outside (0,1]", m.NMSIoU)
	}
	return nil
}

// NumClasses returns one more than the highest declared class id
func (m *Manifest) NumClasses() int {
	n := 0
	for id := range m.Names {
		if id+1 > n {
			n = id + 1
		}
	}
	return n
}

// readManifest loads and validates a source bundle manifest
func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.applyDefaults()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// readMetadata loads the metadata of a compiled artifact
func readMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var md Metadata
	if err := yaml.Unmarshal(data, &md); err != nil {
		return nil, err
	}
	if md.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported format_version %d", md.FormatVersion)
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return &md, nil
}

// writeMetadata serialises md into path
func writeMetadata(path string, md *Metadata) error {
	data, err := yaml.Marshal(md)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

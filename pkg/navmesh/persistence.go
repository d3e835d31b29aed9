package navmesh

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MeshData represents the serializable form of a mesh
type MeshData struct {
	SnapTolerance float64 `json:"snap_tolerance" yaml:"snap_tolerance"`
	Nodes         []Node  `json:"nodes" yaml:"nodes"`
	Edges         []Edge  `json:"edges" yaml:"edges"`
}

// Data returns the serializable form of the mesh
func (m *Mesh) Data() MeshData {
	return MeshData{
		SnapTolerance: m.snapTolerance,
		Nodes:         m.Nodes(),
		Edges:         append([]Edge(nil), m.edges...),
	}
}

// FromData builds a mesh from its serializable form
func FromData(data MeshData) (*Mesh, error) {
	return New(data.Nodes, data.Edges, data.SnapTolerance)
}

// SaveToFile saves the mesh to a binary file
func (m *Mesh) SaveToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(m.Data()); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	return nil
}

// LoadFromFile loads a mesh from a binary file written by SaveToFile
func LoadFromFile(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var data MeshData
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}

	m, err := FromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to build mesh: %w", err)
	}
	return m, nil
}

// LoadYAML loads a mesh description from a YAML file
func LoadYAML(filename string) (*Mesh, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var data MeshData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	m, err := FromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to build mesh from %s: %w", filename, err)
	}
	return m, nil
}

// Load picks the decoder from the file extension: .gob is binary, anything else YAML
func Load(filename string) (*Mesh, error) {
	if strings.EqualFold(filepath.Ext(filename), ".gob") {
		return LoadFromFile(filename)
	}
	return LoadYAML(filename)
}

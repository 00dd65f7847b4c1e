// Package model loads classifier artifacts and invokes them.
//
// An artifact is a versioned JSON document describing one trained binary
// classifier: the domain it serves, the exact feature order it was trained
// on, the two labels it emits and the parameters of one backend (logistic,
// tree or remote). Artifacts are validated against an embedded JSON schema
// and against the domain's feature schema before any handle is created.
package model

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/clinical-risk-scorer/internal/domain"
	"github.com/clinical-risk-scorer/internal/features"
)

const (
	// ArtifactFormat identifies a model artifact document.
	ArtifactFormat = "clinical-risk-model"
	// ArtifactVersion is the only artifact layout this package reads.
	ArtifactVersion = 1
)

// Backend kinds
const (
	KindLogistic = "logistic"
	KindTree     = "tree"
	KindRemote   = "remote"
)

//go:embed artifact_schema.json
var artifactSchemaJSON []byte

const artifactSchemaURL = "schema://clinical-risk-model.json"

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

// Artifact is the decoded form of a model artifact document.
type Artifact struct {
	Format       string          `json:"format"`
	Version      int             `json:"version"`
	Name         string          `json:"name"`
	Domain       domain.Domain   `json:"domain"`
	ModelVersion string          `json:"model_version"`
	Description  string          `json:"description,omitempty"`
	Features     []string        `json:"features"`
	Classes      []domain.Label  `json:"classes"`
	Scaler       *Scaler         `json:"scaler,omitempty"`
	Kind         string          `json:"kind"`
	Logistic     *LogisticParams `json:"logistic,omitempty"`
	Tree         *TreeParams     `json:"tree,omitempty"`
	Remote       *RemoteParams   `json:"remote,omitempty"`
}

// Scaler standardizes inputs as (x - mean) / scale before a local backend
// sees them.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LogisticParams parameterizes a logistic regression backend.
type LogisticParams struct {
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Threshold    float64   `json:"threshold,omitempty"` // default 0.5
}

// TreeParams parameterizes a decision tree backend. Node 0 is the root.
type TreeParams struct {
	Nodes []TreeNode `json:"nodes"`
}

// TreeNode is one node of a decision tree. A node with Feature -1 is a leaf
// and emits Classes[Class]. Internal nodes send x[Feature] <= Threshold to
// Left and everything else to Right.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Class     int     `json:"class,omitempty"`
}

// RemoteParams points at an HTTP inference endpoint.
type RemoteParams struct {
	Endpoint string `json:"endpoint"`
	Timeout  string `json:"timeout,omitempty"`
}

// RemoteTimeout parses the configured timeout, returning 0 when unset.
func (p *RemoteParams) RemoteTimeout() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(p.Timeout)
}

func artifactSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(artifactSchemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("parse artifact schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(artifactSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add artifact schema: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile(artifactSchemaURL)
	})
	return compiledSchema, compileErr
}

// ParseArtifact validates and decodes an artifact document.
func ParseArtifact(data []byte) (*Artifact, error) {
	schema, err := artifactSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid artifact JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("artifact schema validation failed: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := a.Check(); err != nil {
		return nil, err
	}
	return &a, nil
}

// LoadArtifact reads and parses the artifact at path.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	a, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", path, err)
	}
	return a, nil
}

// Check verifies the constraints the JSON schema cannot express: the feature
// list must equal the domain's schema order exactly, and backend parameters
// must match the feature count.
func (a *Artifact) Check() error {
	schema, err := features.SchemaFor(a.Domain)
	if err != nil {
		return err
	}

	keys := schema.Keys()
	if len(a.Features) != len(keys) {
		return fmt.Errorf("%w: artifact %s declares %d features, %s expects %d",
			domain.ErrShapeMismatch, a.Name, len(a.Features), a.Domain, len(keys))
	}
	for i, k := range keys {
		if a.Features[i] != k {
			return fmt.Errorf("%w: artifact %s feature %d is %q, %s expects %q",
				domain.ErrShapeMismatch, a.Name, i, a.Features[i], a.Domain, k)
		}
	}

	if len(a.Classes) != 2 || a.Classes[0] == a.Classes[1] {
		return fmt.Errorf("artifact %s must declare two distinct classes", a.Name)
	}

	n := len(keys)
	if a.Scaler != nil {
		if len(a.Scaler.Mean) != n || len(a.Scaler.Scale) != n {
			return fmt.Errorf("%w: artifact %s scaler has %d/%d entries, want %d",
				domain.ErrShapeMismatch, a.Name, len(a.Scaler.Mean), len(a.Scaler.Scale), n)
		}
		for i, s := range a.Scaler.Scale {
			if s == 0 {
				return fmt.Errorf("artifact %s scaler has zero scale at %d", a.Name, i)
			}
		}
	}

	switch a.Kind {
	case KindLogistic:
		if len(a.Logistic.Coefficients) != n {
			return fmt.Errorf("%w: artifact %s has %d coefficients, want %d",
				domain.ErrShapeMismatch, a.Name, len(a.Logistic.Coefficients), n)
		}
	case KindTree:
		return checkTree(a.Tree.Nodes, n)
	case KindRemote:
		if _, err := a.Remote.RemoteTimeout(); err != nil {
			return fmt.Errorf("artifact %s has invalid remote timeout: %w", a.Name, err)
		}
	default:
		return fmt.Errorf("artifact %s has unknown kind %q", a.Name, a.Kind)
	}
	return nil
}

func checkTree(nodes []TreeNode, nFeatures int) error {
	for i, node := range nodes {
		if node.Feature == -1 {
			continue
		}
		if node.Feature >= nFeatures {
			return fmt.Errorf("tree node %d splits on feature %d of %d", i, node.Feature, nFeatures)
		}
		// Children must come after their parent so that traversal terminates.
		if node.Left <= i || node.Right <= i || node.Left >= len(nodes) || node.Right >= len(nodes) {
			return fmt.Errorf("tree node %d has invalid children %d/%d", i, node.Left, node.Right)
		}
	}
	return nil
}

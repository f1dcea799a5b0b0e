package models

import "time"

// Node is a graph entity. ID is stable and graph-unique; Name is a
// secondary, possibly ambiguous, match key.
type Node struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Edge is a relation instance between two nodes.
type Edge struct {
	ID       string `json:"id" yaml:"id"`
	SourceID string `json:"source_id" yaml:"source_id"`
	TargetID string `json:"target_id" yaml:"target_id"`
	Name     string `json:"name" yaml:"name"`
}

// Attribute is an attribute instance on a node.
type Attribute struct {
	ID       string `json:"id" yaml:"id"`
	SourceID string `json:"source_id" yaml:"source_id"`
	Name     string `json:"name" yaml:"name"`
	Value    string `json:"value" yaml:"value"`
	Unit     string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// GraphRef identifies a graph in a workspace.
type GraphRef struct {
	ID          string    `json:"id" yaml:"id" validate:"required,max=64,graphid"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

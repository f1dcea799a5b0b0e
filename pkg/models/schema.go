package models

// ValueType is the primitive type carried by an attribute value.
type ValueType string

const (
	ValueString  ValueType = "string"
	ValueNumber  ValueType = "number"
	ValueInteger ValueType = "integer"
	ValueBoolean ValueType = "boolean"
	ValueDate    ValueType = "date"
	ValueLatLong ValueType = "lat-long"
)

// NodeType is a declared category a graph node may instantiate.
// Names are unique within a schema.
type NodeType struct {
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	ParentTypes []string `yaml:"parent_types,omitempty" json:"parent_types,omitempty"`
}

// RelationType declares a relation name. An empty Domain means the relation
// is valid from any node type.
type RelationType struct {
	Name        string   `yaml:"name" json:"name" validate:"required"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	InverseName string   `yaml:"inverse_name,omitempty" json:"inverse_name,omitempty"`
	Symmetric   bool     `yaml:"symmetric,omitempty" json:"symmetric,omitempty"`
	Transitive  bool     `yaml:"transitive,omitempty" json:"transitive,omitempty"`
	Domain      []string `yaml:"domain,omitempty" json:"domain,omitempty"`
	Range       []string `yaml:"range,omitempty" json:"range,omitempty"`
}

// AttributeType declares an attribute key. An empty Scope means the
// attribute is valid on any node type.
type AttributeType struct {
	Name        string    `yaml:"name" json:"name" validate:"required"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Aliases     []string  `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	ValueType   ValueType `yaml:"value_type" json:"value_type" validate:"required,oneof=string number integer boolean date lat-long"`
	Scope       []string  `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// Schema is a read-only snapshot of the type registries for one graph.
// Slice order is insertion order and drives suggestion order.
type Schema struct {
	Version        string          `yaml:"version,omitempty" json:"version,omitempty"`
	NodeTypes      []NodeType      `yaml:"node_types" json:"node_types" validate:"dive"`
	RelationTypes  []RelationType  `yaml:"relation_types" json:"relation_types" validate:"dive"`
	AttributeTypes []AttributeType `yaml:"attribute_types" json:"attribute_types" validate:"dive"`
}

// AllowsSource reports whether a relation may start from a node of the given
// type. An unknown source type is always allowed.
func (r RelationType) AllowsSource(nodeType string) bool {
	return nodeType == "" || len(r.Domain) == 0 || contains(r.Domain, nodeType)
}

// AppliesTo reports whether an attribute may be set on a node of the given
// type. An unknown owner type is always allowed.
func (a AttributeType) AppliesTo(nodeType string) bool {
	return nodeType == "" || len(a.Scope) == 0 || contains(a.Scope, nodeType)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

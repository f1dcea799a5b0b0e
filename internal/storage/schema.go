package storage

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
	"gopkg.in/yaml.v3"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("graphid", func(fl validator.FieldLevel) bool {
		return graphIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// ParseSchema decodes a schema.yaml document and validates it.
func ParseSchema(data []byte) (*models.Schema, error) {
	var s models.Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	if err := ValidateSchema(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MarshalSchema encodes a schema as YAML.
func MarshalSchema(s *models.Schema) ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshalling schema: %w", err)
	}
	return data, nil
}

// ValidateSchema checks struct tags, name uniqueness within each registry and
// that every domain, range, scope and parent entry names a declared node type.
// All problems are reported together.
func ValidateSchema(s *models.Schema) error {
	if s == nil {
		return fmt.Errorf("schema is nil")
	}

	var errs []string
	if err := validate.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, e := range verrs {
				errs = append(errs, formatFieldError(e))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	nodeTypes := make(map[string]bool, len(s.NodeTypes))
	for _, nt := range s.NodeTypes {
		if nt.Name == "" {
			continue
		}
		if nodeTypes[nt.Name] {
			errs = append(errs, fmt.Sprintf("node type %q is declared more than once", nt.Name))
		}
		nodeTypes[nt.Name] = true
	}

	known := func(kind, owner, field string, names []string) {
		for _, n := range names {
			if !nodeTypes[n] {
				errs = append(errs, fmt.Sprintf("%s %q: %s references unknown node type %q", kind, owner, field, n))
			}
		}
	}

	for _, nt := range s.NodeTypes {
		known("node type", nt.Name, "parent_types", nt.ParentTypes)
	}

	relations := make(map[string]bool, len(s.RelationTypes))
	for _, rt := range s.RelationTypes {
		if rt.Name != "" && relations[rt.Name] {
			errs = append(errs, fmt.Sprintf("relation type %q is declared more than once", rt.Name))
		}
		relations[rt.Name] = true
		known("relation type", rt.Name, "domain", rt.Domain)
		known("relation type", rt.Name, "range", rt.Range)
	}

	attributes := make(map[string]bool, len(s.AttributeTypes))
	for _, at := range s.AttributeTypes {
		if at.Name != "" && attributes[at.Name] {
			errs = append(errs, fmt.Sprintf("attribute type %q is declared more than once", at.Name))
		}
		attributes[at.Name] = true
		known("attribute type", at.Name, "scope", at.Scope)
	}

	if len(errs) > 0 {
		return fmt.Errorf("schema validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "graphid":
		return fmt.Sprintf("%s must be lowercase letters, digits, '-' or '_'", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// DefaultSchema is the starter schema written for new graphs.
func DefaultSchema() *models.Schema {
	return &models.Schema{
		Version: "1.0",
		NodeTypes: []models.NodeType{
			{Name: "Person", Description: "A human being"},
			{Name: "Organization", Description: "A company, institution or group", Aliases: []string{"Company"}},
			{Name: "Place", Description: "A geographic location"},
			{Name: "Event", Description: "Something that happened at a point in time"},
		},
		RelationTypes: []models.RelationType{
			{Name: "knows", Description: "Acquainted with", Symmetric: true},
			{Name: "works at", Description: "Employed by", InverseName: "employs", Domain: []string{"Person"}, Range: []string{"Organization"}},
			{Name: "located in", Description: "Situated in", Transitive: true, Range: []string{"Place"}},
			{Name: "part of", Description: "Is a component of", Transitive: true},
		},
		AttributeTypes: []models.AttributeType{
			{Name: "age", Description: "Age in years", ValueType: models.ValueInteger, Scope: []string{"Person"}},
			{Name: "born", Description: "Date of birth", ValueType: models.ValueDate, Scope: []string{"Person"}},
			{Name: "founded", Description: "Founding date", ValueType: models.ValueDate, Scope: []string{"Organization"}},
			{Name: "location", Description: "Coordinates", ValueType: models.ValueLatLong, Scope: []string{"Place", "Event"}},
			{Name: "website", Description: "Home page URL", ValueType: models.ValueString},
		},
	}
}

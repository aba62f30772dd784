package tools

// Schema types for tool payloads, serialized as a subset of JSON Schema.

const (
	TypeObject  = "object"
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
)

type Schema struct {
	Type       string      `json:"type"`
	Properties PropertyMap `json:"properties,omitempty"`
	Required   []string    `json:"required,omitempty"`
}

type PropertyMap map[string]Property

type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

package nlp

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool is the closed set of functions the model may propose.
type Tool string

const (
	ToolAvailableCars Tool = "get_available_cars"
	ToolUserBookings  Tool = "get_user_bookings"
	ToolCreateBooking Tool = "create_booking"
	ToolCancelBooking Tool = "cancel_booking"
	ToolViewTerms     Tool = "view_terms"
	ToolAllUsers      Tool = "get_all_users"
	ToolAllBookings   Tool = "get_all_bookings"
	ToolCarStatus     Tool = "get_car_status"
	ToolRevenueStats  Tool = "get_revenue_stats"
	ToolAssetSummary  Tool = "get_asset_summary"
)

// ToolSpec describes one tool for the model and for argument validation.
type ToolSpec struct {
	Name        Tool
	Description string
	// Parameters is the JSON schema of the arguments object.
	Parameters string
}

// Catalogue is the ordered list of tools offered to the model.
type Catalogue []ToolSpec

const noArgs = `{"type": "object", "properties": {}, "additionalProperties": false}`

var defaultCatalogue = Catalogue{
	{ToolAvailableCars, "List all cars currently available for rent.", noArgs},
	{ToolUserBookings, "List the caller's own bookings.", noArgs},
	{ToolCreateBooking, "Book a car for a number of days starting on a date.", `{
		"type": "object",
		"properties": {
			"car_id": {"type": "integer", "minimum": 1},
			"start_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
			"duration": {"type": "integer", "minimum": 1, "maximum": 90}
		},
		"required": ["car_id", "start_date", "duration"],
		"additionalProperties": false
	}`},
	{ToolCancelBooking, "Cancel one of the caller's bookings.", `{
		"type": "object",
		"properties": {
			"booking_id": {"type": "integer", "minimum": 1}
		},
		"required": ["booking_id"],
		"additionalProperties": false
	}`},
	{ToolViewTerms, "Show the rental terms and conditions.", noArgs},
	{ToolAllUsers, "Admin: list every registered user.", noArgs},
	{ToolAllBookings, "Admin: list every booking.", noArgs},
	{ToolCarStatus, "Admin: show availability of the whole fleet.", noArgs},
	{ToolRevenueStats, "Admin: revenue for bookings starting between two dates.", `{
		"type": "object",
		"properties": {
			"start_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"},
			"end_date": {"type": "string", "pattern": "^\\d{4}-\\d{2}-\\d{2}$"}
		},
		"required": ["start_date", "end_date"],
		"additionalProperties": false
	}`},
	{ToolAssetSummary, "Admin: fleet value and road tax, insurance and maintenance due soon.", noArgs},
}

// DefaultCatalogue returns every tool the model may propose.
func DefaultCatalogue() Catalogue {
	out := make(Catalogue, len(defaultCatalogue))
	copy(out, defaultCatalogue)
	return out
}

// ParseTool resolves an untrusted tool name against the closed set.
func ParseTool(name string) (Tool, bool) {
	for _, spec := range defaultCatalogue {
		if string(spec.Name) == name {
			return spec.Name, true
		}
	}
	return "", false
}

// String renders the catalogue for the system prompt.
func (c Catalogue) String() string {
	if len(c) == 0 {
		return "(no tools available)"
	}
	var sb strings.Builder
	for _, spec := range c {
		sb.WriteString(string(spec.Name))
		sb.WriteString(": ")
		sb.WriteString(spec.Description)
		sb.WriteString("\n")
	}
	return sb.String()
}

var (
	schemasOnce sync.Once
	schemas     map[Tool]*jsonschema.Schema
	schemasErr  error
)

func compiledSchemas() (map[Tool]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas = make(map[Tool]*jsonschema.Schema, len(defaultCatalogue))
		for _, spec := range defaultCatalogue {
			s, err := jsonschema.CompileString("kuruma://tools/"+string(spec.Name)+".json", spec.Parameters)
			if err != nil {
				schemasErr = fmt.Errorf("compile schema for %s: %w", spec.Name, err)
				return
			}
			schemas[spec.Name] = s
		}
	})
	return schemas, schemasErr
}

// ValidateArguments checks args against the tool's JSON schema.
func ValidateArguments(tool Tool, args map[string]any) error {
	all, err := compiledSchemas()
	if err != nil {
		return err
	}
	schema, ok := all[tool]
	if !ok {
		return fmt.Errorf("unknown tool %q", tool)
	}
	if args == nil {
		args = map[string]any{}
	}
	// Round-trip through JSON so numbers are json.Number/float64 as the
	// validator expects regardless of how the map was built.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("arguments for %s: %w", tool, err)
	}
	return nil
}

// MarshalParameters returns the schema as raw JSON for the wire request.
func (s ToolSpec) MarshalParameters() json.RawMessage {
	return json.RawMessage(s.Parameters)
}

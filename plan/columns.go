package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/rgeissen/uderia-sub003/events"
	"github.com/rgeissen/uderia-sub003/tools"
)

const defaultMetadataTool = "get_column_metadata"

// columnArgSynonyms are the argument names planners use for "the column";
// all of them are replaced by the canonical per-column substitution.
var columnArgSynonyms = []string{"column_name", "column", "col_name", "col"}

// defaultToolConstraints maps tool names to the data-type class their
// column argument requires. Tools absent from the map take any column.
var defaultToolConstraints = map[string]string{
	"column_average": "numeric",
	"column_sum":     "numeric",
	"column_minmax":  "numeric",
	"column_stddev":  "numeric",
	"value_lengths":  "character",
	"distinct_terms": "character",
}

var numericColumnTypes = map[string]bool{
	"INTEGER": true, "INT": true, "BIGINT": true, "SMALLINT": true, "TINYINT": true,
	"DECIMAL": true, "NUMERIC": true, "FLOAT": true, "DOUBLE": true, "REAL": true,
	"NUMBER": true,
}

var characterColumnTypes = map[string]bool{
	"CHAR": true, "VARCHAR": true, "TEXT": true, "CLOB": true, "STRING": true,
	"CHARACTER": true, "NVARCHAR": true,
}

// Column is one table column as reported by the metadata tool.
type Column struct {
	Name string
	Type string
}

// ColumnIteration runs a single-column tool across every compatible column
// of a table. Incompatible columns are skipped with a recorded reason
// instead of producing doomed tool calls.
type ColumnIteration struct {
	Invoker tools.Invoker
	Sink    events.Sink
	Logger  hclog.Logger
	State   *WorkflowState

	// MetadataTool overrides the tool used to list table columns.
	MetadataTool string
	// Constraints overrides the tool constraint table.
	Constraints map[string]string
}

func (o *ColumnIteration) sink() events.Sink {
	if o.Sink == nil {
		return events.Discard
	}
	return o.Sink
}

// Run expands the phase across all columns of its table and returns one
// ordered result list including skip records.
func (o *ColumnIteration) Run(ctx context.Context, phase Phase) ([]*tools.Result, error) {
	table, ok := tableName(phase.Args)
	if !ok {
		return nil, &HallucinationError{Phase: phase.Index, Reason: "no table name argument for column iteration"}
	}

	columns, err := o.fetchColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	constraint := o.constraintFor(phase.Tool)

	o.sink().Emit(events.New(events.TypeSystemCorrection, map[string]any{
		"phase":      phase.Index,
		"tool":       phase.Tool,
		"correction": fmt.Sprintf("expanding %s across %d columns of %s", phase.Tool, len(columns), table),
	}))

	base := stripColumnArgs(phase.Args)

	var consolidated []*tools.Result
	for _, col := range columns {
		if reason, skip := incompatible(constraint, col); skip {
			consolidated = append(consolidated, &tools.Result{
				Status: tools.StatusPartial,
				Data: map[string]any{
					"column":  col.Name,
					"skipped": true,
					"reason":  reason,
				},
			})
			continue
		}

		args := make(map[string]any, len(base)+1)
		for k, v := range base {
			args[k] = v
		}
		args["column_name"] = col.Name

		result, err := o.Invoker.Invoke(ctx, phase.Tool, args)
		if err != nil {
			return nil, fmt.Errorf("invoke %s for column %s: %w", phase.Tool, col.Name, err)
		}
		o.State.AppendTrace(phase.Tool, args, result)
		consolidated = append(consolidated, result)
	}

	if err := o.State.Publish(phase.Index, consolidated); err != nil {
		return nil, err
	}
	return consolidated, nil
}

func (o *ColumnIteration) constraintFor(tool string) string {
	constraints := o.Constraints
	if constraints == nil {
		constraints = defaultToolConstraints
	}
	return constraints[tool]
}

func (o *ColumnIteration) fetchColumns(ctx context.Context, table string) ([]Column, error) {
	metaTool := o.MetadataTool
	if metaTool == "" {
		metaTool = defaultMetadataTool
	}

	result, err := o.Invoker.Invoke(ctx, metaTool, map[string]any{"table_name": table})
	if err != nil {
		return nil, fmt.Errorf("fetch column metadata for %s: %w", table, err)
	}
	if !result.OK() {
		return nil, fmt.Errorf("fetch column metadata for %s: %s", table, result.Error)
	}

	columns := parseColumns(result.Data)
	if len(columns) == 0 {
		return nil, fmt.Errorf("fetch column metadata for %s: no columns reported", table)
	}
	return columns, nil
}

// parseColumns accepts either {"columns": [...]} or a bare record list.
func parseColumns(data any) []Column {
	records, ok := data.([]any)
	if !ok {
		wrapper, isMap := data.(map[string]any)
		if !isMap {
			return nil
		}
		records, ok = wrapper["columns"].([]any)
		if !ok {
			return nil
		}
	}

	var columns []Column
	for _, rec := range records {
		m, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		typ, _ := m["type"].(string)
		if name == "" {
			continue
		}
		columns = append(columns, Column{Name: name, Type: typ})
	}
	return columns
}

// incompatible reports whether the column's type class conflicts with the
// tool's required class.
func incompatible(constraint string, col Column) (string, bool) {
	if constraint == "" {
		return "", false
	}
	typ := normalizeColumnType(col.Type)
	switch constraint {
	case "numeric":
		if characterColumnTypes[typ] || (typ != "" && !numericColumnTypes[typ]) {
			return fmt.Sprintf("column %q has type %s, tool requires a numeric column", col.Name, col.Type), true
		}
	case "character":
		if numericColumnTypes[typ] || (typ != "" && !characterColumnTypes[typ]) {
			return fmt.Sprintf("column %q has type %s, tool requires a character column", col.Name, col.Type), true
		}
	}
	return "", false
}

// normalizeColumnType uppercases and strips a length suffix like "(255)".
func normalizeColumnType(typ string) string {
	typ = strings.ToUpper(strings.TrimSpace(typ))
	if idx := strings.Index(typ, "("); idx >= 0 {
		typ = typ[:idx]
	}
	return strings.TrimSpace(typ)
}

func tableName(args map[string]any) (string, bool) {
	for _, key := range []string{"table_name", "table"} {
		if v, ok := args[key].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func stripColumnArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for name, v := range args {
		skip := false
		for _, syn := range columnArgSynonyms {
			if strings.EqualFold(name, syn) {
				skip = true
				break
			}
		}
		if !skip {
			out[name] = v
		}
	}
	return out
}

// Command plugin_datetools is a tool plugin providing calendar helpers,
// including the get_current_date tool the date-range expansion relies on.
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rgeissen/uderia-sub003/plugin"
	"github.com/rgeissen/uderia-sub003/tools"
)

var toolInfos = map[string]*plugin.ToolInfo{
	"get_current_date": {
		Name:        "get_current_date",
		Description: "Returns today's date in YYYY-MM-DD form",
		Schema: tools.Schema{
			Type:       tools.TypeObject,
			Properties: tools.PropertyMap{},
		},
	},
	"days_between": {
		Name:        "days_between",
		Description: "Returns the number of days between two YYYY-MM-DD dates",
		Schema: tools.Schema{
			Type: tools.TypeObject,
			Properties: tools.PropertyMap{
				"start_date": {
					Type:        tools.TypeString,
					Description: "The earlier date (YYYY-MM-DD)",
				},
				"end_date": {
					Type:        tools.TypeString,
					Description: "The later date (YYYY-MM-DD)",
				},
			},
			Required: []string{"start_date", "end_date"},
		},
	},
}

// DateToolsPlugin implements the ToolProvider interface
type DateToolsPlugin struct{}

func (p *DateToolsPlugin) Configure(settings map[string]string) error {
	return nil
}

func (p *DateToolsPlugin) Call(toolName string, payload string) (string, error) {
	switch toolName {
	case "get_current_date":
		out, _ := json.Marshal(map[string]any{
			"status": "success",
			"data":   map[string]string{"current_date": time.Now().Format("2006-01-02")},
		})
		return string(out), nil
	case "days_between":
		var params struct {
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		if err := json.Unmarshal([]byte(payload), &params); err != nil {
			return "", fmt.Errorf("invalid payload: %w", err)
		}
		start, err := time.Parse("2006-01-02", params.StartDate)
		if err != nil {
			return "", fmt.Errorf("invalid start_date: %w", err)
		}
		end, err := time.Parse("2006-01-02", params.EndDate)
		if err != nil {
			return "", fmt.Errorf("invalid end_date: %w", err)
		}
		out, _ := json.Marshal(map[string]any{
			"status": "success",
			"data":   map[string]int{"days": int(end.Sub(start).Hours() / 24)},
		})
		return string(out), nil
	default:
		return "", fmt.Errorf("unknown tool: %s", toolName)
	}
}

func (p *DateToolsPlugin) GetToolInfo(toolName string) (*plugin.ToolInfo, error) {
	info, ok := toolInfos[toolName]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}
	return info, nil
}

func (p *DateToolsPlugin) ListTools() ([]*plugin.ToolInfo, error) {
	out := make([]*plugin.ToolInfo, 0, len(toolInfos))
	for _, info := range toolInfos {
		out = append(out, info)
	}
	return out, nil
}

func main() {
	plugin.Serve(&DateToolsPlugin{})
}

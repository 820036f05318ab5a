package sqlagent

// Chart types.
const (
	ChartBar   = "bar"
	ChartLine  = "line"
	ChartTable = "table"
	ChartRadar = "radar"
	ChartPie   = "pie"
)

// ChartConfig tells the frontend how to render query rows. Column names are
// the exact SQL result columns.
type ChartConfig struct {
	ChartType      string   `json:"chart_type"`
	XColumn        string   `json:"x_column,omitempty"`
	YColumns       []string `json:"y_columns"`
	Title          string   `json:"title"`
	Subtitle       string   `json:"subtitle,omitempty"`
	ColorScheme    []string `json:"color_scheme,omitempty"`
	LegendPosition string   `json:"legend_position,omitempty"`
	XAxisLabel     string   `json:"x_axis_label,omitempty"`
	YAxisLabel     string   `json:"y_axis_label,omitempty"`
	ValueFormat    string   `json:"value_format,omitempty"`
	ShowDataLabels bool     `json:"show_data_labels"`
	Sortable       *bool    `json:"sortable,omitempty"`
	Paginated      *bool    `json:"paginated,omitempty"`
}

// WithDefaults fills unset presentation fields.
func (c ChartConfig) WithDefaults() ChartConfig {
	if c.LegendPosition == "" {
		c.LegendPosition = "bottom"
	}
	if c.ValueFormat == "" {
		c.ValueFormat = "number"
	}
	if c.YColumns == nil {
		c.YColumns = []string{}
	}
	if c.Sortable == nil {
		t := true
		c.Sortable = &t
	}
	if c.Paginated == nil {
		t := true
		c.Paginated = &t
	}
	return c
}

const chartSchema = `{
  "type": "object",
  "required": ["chart_type", "title"],
  "properties": {
    "chart_type": {"enum": ["bar", "line", "table", "radar", "pie"]},
    "x_column": {"type": ["string", "null"]},
    "y_columns": {"type": "array", "items": {"type": "string"}},
    "title": {"type": "string"},
    "subtitle": {"type": ["string", "null"]},
    "color_scheme": {"type": ["array", "null"], "items": {"type": "string"}},
    "legend_position": {"enum": ["top", "bottom", "left", "right", "none", null]},
    "x_axis_label": {"type": ["string", "null"]},
    "y_axis_label": {"type": ["string", "null"]},
    "value_format": {"enum": ["number", "percentage", "decimal", null]},
    "show_data_labels": {"type": "boolean"},
    "sortable": {"type": "boolean"},
    "paginated": {"type": "boolean"}
  }
}`

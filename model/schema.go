// Package model defines the declarative page schema and the runtime value
// types shared by the query engine, the action executor, and the transport
// layer. Schema types are data-only descriptors; they never carry behavior.
package model

import "time"

// Data source types.
const (
	SourceStatic = "static"
	SourceRemote = "remote"
)

// Filter types.
const (
	FilterText      = "text"
	FilterNumber    = "number"
	FilterSelect    = "select"
	FilterBoolean   = "boolean"
	FilterDateRange = "date-range"
)

// Action scopes.
const (
	ScopeGlobal = "global"
	ScopeRow    = "row"
	ScopeBulk   = "bulk"
)

// Action behavior types.
const (
	BehaviorAPI  = "api"
	BehaviorLink = "link"
)

// Form field types.
const (
	FieldText        = "text"
	FieldTextarea    = "textarea"
	FieldPassword    = "password"
	FieldNumber      = "number"
	FieldSelect      = "select"
	FieldRadio       = "radio"
	FieldMultiSelect = "multi-select"
	FieldCheckbox    = "checkbox"
	FieldDate        = "date"
	FieldTime        = "time"
	FieldDateTime    = "datetime"
)

// PageConfig is the root schema for one admin page. Either the flat layout
// (DataSource/Filters/Table/HeaderActions) or the Models layout may be used;
// Normalize merges both into the flat form.
type PageConfig struct {
	ID            string            `yaml:"id"             json:"id"`
	Type          string            `yaml:"type"           json:"type"`
	Title         string            `yaml:"title"          json:"title,omitempty"`
	Description   string            `yaml:"description"    json:"description,omitempty"`
	DataSource    *DataSourceConfig `yaml:"data_source"    json:"dataSource,omitempty"`
	Filters       []FilterConfig    `yaml:"filters"        json:"filters,omitempty"`
	HeaderActions []ActionConfig    `yaml:"header_actions" json:"headerActions,omitempty"`
	Table         *TableConfig      `yaml:"table"          json:"table,omitempty"`
	Models        *PageModels       `yaml:"models"         json:"models,omitempty"`

	// RefreshInterval, when positive, keeps a background data source
	// controller warm for the snapshot endpoint.
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refreshInterval,omitempty"`

	// Checksum and SourceFile are computed at load time.
	Checksum   string `yaml:"-" json:"-"`
	SourceFile string `yaml:"-" json:"-"`
}

// PageModels is the alternate, model-oriented page layout. Its pieces are
// merged over the flat layout by Normalize.
type PageModels struct {
	View            *TableViewModel       `yaml:"view"             json:"view,omitempty"`
	FilterForms     []FilterFormModel     `yaml:"filter_forms"     json:"filterForms,omitempty"`
	SubmissionForms []SubmissionFormModel `yaml:"submission_forms" json:"submissionForms,omitempty"`
	Operations      []OperationModel      `yaml:"operations"       json:"operations,omitempty"`
}

// TableViewModel describes the table surface in the models layout.
type TableViewModel struct {
	DataSource *DataSourceConfig `yaml:"data_source" json:"dataSource,omitempty"`
	Columns    []ColumnConfig    `yaml:"columns"     json:"columns,omitempty"`
	Selectable *bool             `yaml:"selectable"  json:"selectable,omitempty"`
	Pagination *PaginationConfig `yaml:"pagination"  json:"pagination,omitempty"`
	EmptyState *EmptyStateConfig `yaml:"empty_state" json:"emptyState,omitempty"`
}

// FilterFormModel groups filters declared as a standalone model.
type FilterFormModel struct {
	ID      string         `yaml:"id"      json:"id"`
	Filters []FilterConfig `yaml:"filters" json:"filters,omitempty"`
}

// SubmissionFormModel is a named form that operations reference by FormRef.
type SubmissionFormModel struct {
	ID   string     `yaml:"id"   json:"id"`
	Form FormConfig `yaml:"form" json:"form"`
}

// OperationModel is an action declared in the models layout. Scope decides
// whether it becomes a header, row, or bulk action during normalization.
type OperationModel struct {
	ID                string          `yaml:"id"                 json:"id"`
	Scope             string          `yaml:"scope"              json:"scope"`
	Label             string          `yaml:"label"              json:"label"`
	Intent            string          `yaml:"intent"             json:"intent,omitempty"`
	Icon              string          `yaml:"icon"               json:"icon,omitempty"`
	Confirm           *ConfirmConfig  `yaml:"confirm"            json:"confirm,omitempty"`
	Behavior          BehaviorConfig  `yaml:"behavior"           json:"behavior"`
	Form              *FormConfig     `yaml:"form"               json:"form,omitempty"`
	FormRef           string          `yaml:"form_ref"           json:"formRef,omitempty"`
	RequiresSelection *bool           `yaml:"requires_selection" json:"requiresSelection,omitempty"`
}

// TableConfig describes the table in the flat page layout.
type TableConfig struct {
	Columns     []ColumnConfig    `yaml:"columns"      json:"columns"`
	Selectable  bool              `yaml:"selectable"   json:"selectable,omitempty"`
	RowActions  []ActionConfig    `yaml:"row_actions"  json:"rowActions,omitempty"`
	BulkActions []ActionConfig    `yaml:"bulk_actions" json:"bulkActions,omitempty"`
	Pagination  *PaginationConfig `yaml:"pagination"   json:"pagination,omitempty"`
	EmptyState  *EmptyStateConfig `yaml:"empty_state"  json:"emptyState,omitempty"`
}

// ColumnConfig describes one table column.
type ColumnConfig struct {
	ID           string         `yaml:"id"            json:"id"`
	Label        string         `yaml:"label"         json:"label"`
	DataIndex    string         `yaml:"data_index"    json:"dataIndex"`
	Width        string         `yaml:"width"         json:"width,omitempty"`
	Align        string         `yaml:"align"         json:"align,omitempty"`
	Sortable     bool           `yaml:"sortable"      json:"sortable,omitempty"`
	RenderType   string         `yaml:"render_type"   json:"renderType,omitempty"`
	ValueMapping []ValueMapping `yaml:"value_mapping" json:"valueMapping,omitempty"`
}

// ValueMapping maps a raw cell value to a display label and style variant.
type ValueMapping struct {
	Value   any    `yaml:"value"   json:"value"`
	Label   string `yaml:"label"   json:"label"`
	Variant string `yaml:"variant" json:"variant,omitempty"`
}

// PaginationConfig describes client pagination preferences.
type PaginationConfig struct {
	DefaultPageSize int   `yaml:"default_page_size" json:"defaultPageSize,omitempty"`
	PageSizeOptions []int `yaml:"page_size_options" json:"pageSizeOptions,omitempty"`
}

// EmptyStateConfig describes the table's empty placeholder.
type EmptyStateConfig struct {
	Title       string `yaml:"title"       json:"title"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// FilterConfig declares a named, typed predicate over a row field path.
type FilterConfig struct {
	ID          string         `yaml:"id"          json:"id"`
	Label       string         `yaml:"label"       json:"label"`
	Field       string         `yaml:"field"       json:"field"`
	Type        string         `yaml:"type"        json:"type"`
	Placeholder string         `yaml:"placeholder" json:"placeholder,omitempty"`
	Options     []OptionConfig `yaml:"options"     json:"options,omitempty"`
	Default     any            `yaml:"default"     json:"default,omitempty"`
	TrueLabel   string         `yaml:"true_label"  json:"trueLabel,omitempty"`
	FalseLabel  string         `yaml:"false_label" json:"falseLabel,omitempty"`
}

// OptionConfig is a label/value pair for selects, radios, and filters.
type OptionConfig struct {
	Label string `yaml:"label" json:"label"`
	Value any    `yaml:"value" json:"value"`
}

// DataSourceConfig is a tagged variant: a static in-memory collection or a
// remote HTTP endpoint. Read-only at query time.
type DataSourceConfig struct {
	Type string `yaml:"type" json:"type"`

	// Static variant.
	Data []map[string]any `yaml:"data" json:"data,omitempty"`

	// Remote variant.
	Endpoint        string            `yaml:"endpoint"         json:"endpoint,omitempty"`
	Method          string            `yaml:"method"           json:"method,omitempty"`
	Headers         map[string]string `yaml:"headers"          json:"headers,omitempty"`
	RequestBody     map[string]any    `yaml:"request_body"     json:"requestBody,omitempty"`
	Pagination      *RemotePagination `yaml:"pagination"       json:"pagination,omitempty"`
	QueryMapping    map[string]string `yaml:"query_mapping"    json:"queryMapping,omitempty"`
	ResponseMapping *ResponseMapping  `yaml:"response_mapping" json:"responseMapping,omitempty"`
	Timeout         time.Duration     `yaml:"timeout"          json:"timeout,omitempty"`
}

// RemotePagination overrides the query parameter names used for paging.
type RemotePagination struct {
	PageParam     string `yaml:"page_param"      json:"pageParam,omitempty"`
	PageSizeParam string `yaml:"page_size_param" json:"pageSizeParam,omitempty"`
}

// ResponseMapping locates rows and the total count in a remote response body.
type ResponseMapping struct {
	Data  string `yaml:"data"  json:"data,omitempty"`
	Total string `yaml:"total" json:"total,omitempty"`
}

// ActionConfig describes a UI action: a link or an API call, optionally
// gated by confirmation and an input form.
type ActionConfig struct {
	ID                string         `yaml:"id"                 json:"id"`
	Label             string         `yaml:"label"              json:"label"`
	Scope             string         `yaml:"scope"              json:"scope,omitempty"`
	Intent            string         `yaml:"intent"             json:"intent,omitempty"`
	Icon              string         `yaml:"icon"               json:"icon,omitempty"`
	Confirm           *ConfirmConfig `yaml:"confirm"            json:"confirm,omitempty"`
	Behavior          BehaviorConfig `yaml:"behavior"           json:"behavior"`
	Form              *FormConfig    `yaml:"form"               json:"form,omitempty"`
	RequiresSelection bool           `yaml:"requires_selection" json:"requiresSelection,omitempty"`
}

// ConfirmConfig describes a confirmation dialog shown before execution.
type ConfirmConfig struct {
	Title       string `yaml:"title"       json:"title"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// BehaviorConfig is the action's effect. Type selects between the api and
// link field sets.
type BehaviorConfig struct {
	Type string `yaml:"type" json:"type"`

	// API behavior.
	Method         string            `yaml:"method"          json:"method,omitempty"`
	Endpoint       string            `yaml:"endpoint"        json:"endpoint,omitempty"`
	Headers        map[string]string `yaml:"headers"         json:"headers,omitempty"`
	Query          map[string]string `yaml:"query"           json:"query,omitempty"`
	BodyTemplate   map[string]any    `yaml:"body_template"   json:"bodyTemplate,omitempty"`
	SuccessMessage string            `yaml:"success_message" json:"successMessage,omitempty"`
	ErrorMessage   string            `yaml:"error_message"   json:"errorMessage,omitempty"`

	// Link behavior.
	URL    string `yaml:"url"    json:"url,omitempty"`
	Target string `yaml:"target" json:"target,omitempty"`
}

// FormConfig is an ordered list of input fields collected before an action
// executes.
type FormConfig struct {
	Title       string            `yaml:"title"        json:"title,omitempty"`
	Description string            `yaml:"description"  json:"description,omitempty"`
	SubmitLabel string            `yaml:"submit_label" json:"submitLabel,omitempty"`
	CancelLabel string            `yaml:"cancel_label" json:"cancelLabel,omitempty"`
	Fields      []FormFieldConfig `yaml:"fields"       json:"fields"`
}

// FormFieldConfig describes a single form input and its validation rules.
// Default may be a template string resolved against the execution context
// when the form opens.
type FormFieldConfig struct {
	ID            string         `yaml:"id"             json:"id"`
	Label         string         `yaml:"label"          json:"label"`
	Type          string         `yaml:"type"           json:"type"`
	Placeholder   string         `yaml:"placeholder"    json:"placeholder,omitempty"`
	Description   string         `yaml:"description"    json:"description,omitempty"`
	Required      bool           `yaml:"required"       json:"required,omitempty"`
	Default       any            `yaml:"default"        json:"default,omitempty"`
	Options       []OptionConfig `yaml:"options"        json:"options,omitempty"`
	MaxLength     *int           `yaml:"max_length"     json:"maxLength,omitempty"`
	Min           *float64       `yaml:"min"            json:"min,omitempty"`
	Max           *float64       `yaml:"max"            json:"max,omitempty"`
	Step          *float64       `yaml:"step"           json:"step,omitempty"`
	Rows          int            `yaml:"rows"           json:"rows,omitempty"`
	MaxSelections *int           `yaml:"max_selections" json:"maxSelections,omitempty"`
	DateMin       string         `yaml:"date_min"       json:"dateMin,omitempty"`
	DateMax       string         `yaml:"date_max"       json:"dateMax,omitempty"`
}

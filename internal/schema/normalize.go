package schema

import (
	"fmt"

	"github.com/lk-keep-fighting/jsonpage/model"
)

// Normalize folds the models layout into the flat page form and applies
// defaults. After a successful call Models is nil, the data source and table
// are present, and bulk actions carry an explicit selection requirement.
func Normalize(page *model.PageConfig) error {
	if page.ID == "" {
		return fmt.Errorf("page has no id")
	}

	if m := page.Models; m != nil {
		mergeModels(page, m)
		page.Models = nil
	}

	if page.DataSource == nil {
		return fmt.Errorf("page %q has no data source", page.ID)
	}
	if page.Table == nil || len(page.Table.Columns) == 0 {
		return fmt.Errorf("page %q has no table columns", page.ID)
	}

	for i := range page.HeaderActions {
		defaultScope(&page.HeaderActions[i], model.ScopeGlobal)
	}
	for i := range page.Table.RowActions {
		defaultScope(&page.Table.RowActions[i], model.ScopeRow)
	}
	for i := range page.Table.BulkActions {
		defaultScope(&page.Table.BulkActions[i], model.ScopeBulk)
	}
	return nil
}

// mergeModels lays model-declared pieces over the flat layout. Model entries
// win on id collision; unmatched entries are appended in declaration order.
func mergeModels(page *model.PageConfig, m *model.PageModels) {
	if v := m.View; v != nil {
		if page.Table == nil {
			page.Table = &model.TableConfig{}
		}
		if v.DataSource != nil {
			page.DataSource = v.DataSource
		}
		if len(v.Columns) > 0 {
			page.Table.Columns = v.Columns
		}
		if v.Selectable != nil {
			page.Table.Selectable = *v.Selectable
		}
		if v.Pagination != nil {
			page.Table.Pagination = v.Pagination
		}
		if v.EmptyState != nil {
			page.Table.EmptyState = v.EmptyState
		}
	}

	for _, ff := range m.FilterForms {
		page.Filters = mergeFilters(page.Filters, ff.Filters)
	}

	forms := make(map[string]model.FormConfig, len(m.SubmissionForms))
	for _, sf := range m.SubmissionForms {
		forms[sf.ID] = sf.Form
	}

	for _, op := range m.Operations {
		action := operationToAction(op, forms)
		switch op.Scope {
		case model.ScopeRow:
			if page.Table == nil {
				page.Table = &model.TableConfig{}
			}
			page.Table.RowActions = mergeActions(page.Table.RowActions, action)
		case model.ScopeBulk:
			if page.Table == nil {
				page.Table = &model.TableConfig{}
			}
			page.Table.BulkActions = mergeActions(page.Table.BulkActions, action)
		default:
			page.HeaderActions = mergeActions(page.HeaderActions, action)
		}
	}
}

func operationToAction(op model.OperationModel, forms map[string]model.FormConfig) model.ActionConfig {
	action := model.ActionConfig{
		ID:       op.ID,
		Label:    op.Label,
		Scope:    op.Scope,
		Intent:   op.Intent,
		Icon:     op.Icon,
		Confirm:  op.Confirm,
		Behavior: op.Behavior,
		Form:     op.Form,
	}
	if action.Form == nil && op.FormRef != "" {
		if form, ok := forms[op.FormRef]; ok {
			f := form
			action.Form = &f
		}
	}
	if op.Scope == model.ScopeBulk {
		// Bulk operations require a selection unless explicitly opted out.
		if op.RequiresSelection != nil {
			action.RequiresSelection = *op.RequiresSelection
		} else {
			action.RequiresSelection = true
		}
	}
	return action
}

func mergeFilters(base, overlay []model.FilterConfig) []model.FilterConfig {
	out := make([]model.FilterConfig, len(base))
	copy(out, base)
	for _, f := range overlay {
		replaced := false
		for i := range out {
			if out[i].ID == f.ID {
				out[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, f)
		}
	}
	return out
}

func mergeActions(base []model.ActionConfig, action model.ActionConfig) []model.ActionConfig {
	for i := range base {
		if base[i].ID == action.ID {
			base[i] = action
			return base
		}
	}
	return append(base, action)
}

func defaultScope(action *model.ActionConfig, scope string) {
	if action.Scope == "" {
		action.Scope = scope
	}
}

// FindAction locates an action by id across the page's header, row, and bulk
// action lists.
func FindAction(page *model.PageConfig, actionID string) (*model.ActionConfig, bool) {
	for i := range page.HeaderActions {
		if page.HeaderActions[i].ID == actionID {
			return &page.HeaderActions[i], true
		}
	}
	if page.Table != nil {
		for i := range page.Table.RowActions {
			if page.Table.RowActions[i].ID == actionID {
				return &page.Table.RowActions[i], true
			}
		}
		for i := range page.Table.BulkActions {
			if page.Table.BulkActions[i].ID == actionID {
				return &page.Table.BulkActions[i], true
			}
		}
	}
	return nil, false
}

package transport

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/lk-keep-fighting/jsonpage/internal/observability"
	"github.com/lk-keep-fighting/jsonpage/model"
)

const defaultPageSize = 25

// pageSummary is the list-endpoint projection of a page.
type pageSummary struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleListPages(w http.ResponseWriter, _ *http.Request) {
	pages := s.registry.All()
	out := make([]pageSummary, 0, len(pages))
	for _, p := range pages {
		out = append(out, pageSummary{
			ID:          p.ID,
			Type:        p.Type,
			Title:       p.Title,
			Description: p.Description,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"pages": out})
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "pageId")
	page, ok := s.registry.Get(pageID)
	if !ok {
		WriteNotFound(w, fmt.Sprintf("page %q not found", pageID))
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// dataResponse is the payload of the data endpoint.
type dataResponse struct {
	Rows     []map[string]any `json:"rows"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

func (s *Server) handleGetPageData(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "pageId")
	page, ok := s.registry.Get(pageID)
	if !ok {
		WriteNotFound(w, fmt.Sprintf("page %q not found", pageID))
		return
	}

	params := loadParams(r, &page)

	attrs := []attribute.KeyValue{observability.AttrPageID.String(pageID)}
	if page.DataSource != nil {
		attrs = append(attrs, observability.AttrSourceType.String(page.DataSource.Type))
	}
	ctx, span := observability.StartSpan(r.Context(), "page.data", attrs...)

	start := time.Now()
	result, err := s.engine.Query(ctx, page.DataSource, params, page.Filters)
	observability.EndSpanWithError(span, err)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordPageLoad(pageID, "failure", time.Since(start), 0)
		}
		observability.RequestLogger(r.Context(), s.log).Warn("page data load failed",
			zap.String("page_id", pageID), zap.Error(err))
		WriteError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordPageLoad(pageID, "success", time.Since(start), len(result.Rows))
	}

	WriteJSON(w, http.StatusOK, dataResponse{
		Rows:     result.Rows,
		Total:    result.Total,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
}

// snapshotResponse is the payload of the snapshot endpoint, served from the
// page's background controller.
type snapshotResponse struct {
	Rows       []map[string]any `json:"rows"`
	Total      int              `json:"total"`
	Loading    bool             `json:"loading"`
	Error      string           `json:"error,omitempty"`
	LastLoaded *time.Time       `json:"lastLoaded,omitempty"`
}

func (s *Server) handleGetPageSnapshot(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "pageId")
	ctrl, ok := s.controllers.Get(pageID)
	if !ok {
		WriteNotFound(w, fmt.Sprintf("page %q has no background refresh", pageID))
		return
	}

	snap := ctrl.Snapshot()
	resp := snapshotResponse{
		Rows:    snap.Rows,
		Total:   snap.Total,
		Loading: snap.Loading,
	}
	if resp.Rows == nil {
		resp.Rows = []map[string]any{}
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	if !snap.LastLoaded.IsZero() {
		t := snap.LastLoaded
		resp.LastLoaded = &t
	}
	WriteJSON(w, http.StatusOK, resp)
}

// loadParams assembles LoadParams from the query string, starting from the
// page's declared filter defaults.
func loadParams(r *http.Request, page *model.PageConfig) model.LoadParams {
	pageSize := defaultPageSize
	if page.Table != nil && page.Table.Pagination != nil && page.Table.Pagination.DefaultPageSize > 0 {
		pageSize = page.Table.Pagination.DefaultPageSize
	}

	params := model.LoadParams{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "pageSize", pageSize),
		Filters:  make(map[string]any),
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = pageSize
	}

	for _, f := range page.Filters {
		if f.Default != nil {
			params.Filters[f.ID] = f.Default
		}
	}
	for key, value := range queryFilters(r) {
		params.Filters[key] = value
	}

	if field := r.URL.Query().Get("sortField"); field != "" {
		direction := r.URL.Query().Get("sortDirection")
		if direction != model.SortDesc {
			direction = model.SortAsc
		}
		params.Sort = &model.SortDirective{Field: field, Direction: direction}
	}
	return params
}

// queryInt extracts an integer query param with a default.
func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// queryFilters extracts filter values from the query string. Scalar filters
// arrive as filter[id]=value; range filters arrive as filter[id][from] and
// filter[id][to].
func queryFilters(r *http.Request) map[string]any {
	result := make(map[string]any)
	for key, values := range r.URL.Query() {
		if len(values) == 0 || !strings.HasPrefix(key, "filter[") {
			continue
		}
		inner := key[len("filter["):]

		if end := strings.Index(inner, "]"); end > 0 {
			id := inner[:end]
			rest := inner[end+1:]
			if rest == "" {
				result[id] = values[0]
				continue
			}
			// Nested bound of a range filter.
			if strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]") {
				bound := rest[1 : len(rest)-1]
				if bound != "from" && bound != "to" {
					continue
				}
				rng, _ := result[id].(map[string]any)
				if rng == nil {
					rng = make(map[string]any, 2)
					result[id] = rng
				}
				rng[bound] = values[0]
			}
		}
	}
	return result
}

package handler

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"

	"taxadmin/internal/model"
	"taxadmin/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

//go:embed templates/admin.html
var templateFS embed.FS

var pageFuncs = template.FuncMap{
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}

// PageHandler serves the server-rendered admin page: the record table with
// its country-filter popover, and the edit form when ?edit= names a record.
type PageHandler struct {
	recordService service.RecordService
	tmpl          *template.Template
	log           zerolog.Logger
}

func NewPageHandler(recordService service.RecordService, log zerolog.Logger) *PageHandler {
	tmpl := template.Must(template.New("admin").Funcs(pageFuncs).ParseFS(templateFS, "templates/admin.html"))
	return &PageHandler{recordService: recordService, tmpl: tmpl, log: log}
}

func (h *PageHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/", h.AdminPage)
	router.POST("/records/:id", h.SaveRecord)
}

type recordRow struct {
	service.RecordResponse
	EditURL string
}

type editState struct {
	Record          service.RecordResponse
	PickerQuery     string
	PickerCountries []model.Country
}

type pageData struct {
	Records         []recordRow
	FilterCountries []model.Country
	Selected        map[string]bool
	Search          string
	FilterOpen      bool
	Editing         *editState
	Error           string
}

// AdminPage renders the table. Query params: country (repeatable, selected
// filters), search (filter popover text), edit (record id with the form
// open), picker (the edit form's own country search).
func (h *PageHandler) AdminPage(c *gin.Context) {
	data := h.buildPage(c, "")
	h.render(c, http.StatusOK, data)
}

// SaveRecord handles the edit form submit and redirects back to the table.
func (h *PageHandler) SaveRecord(c *gin.Context) {
	id := c.Param("id")
	req := service.UpdateRecordRequest{
		Name:    c.PostForm("name"),
		Country: c.PostForm("country"),
	}

	if _, err := h.recordService.UpdateRecord(c.Request.Context(), id, req); err != nil {
		h.log.Error().Err(err).Str("record_id", id).Msg("Save failed")
		// Re-render with the form still open so the edit is not lost silently
		c.Request.URL.RawQuery = url.Values{"edit": {id}}.Encode()
		data := h.buildPage(c, "Could not save the record: "+err.Error())
		h.render(c, http.StatusBadGateway, data)
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

func (h *PageHandler) buildPage(c *gin.Context, errMsg string) pageData {
	ctx := c.Request.Context()
	selectedNames := c.QueryArray("country")
	search := c.Query("search")

	selected := make(map[string]bool, len(selectedNames))
	for _, name := range selectedNames {
		if name != "" {
			selected[name] = true
		}
	}

	records := h.recordService.ListRecords(ctx, selectedNames)
	rows := make([]recordRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, recordRow{
			RecordResponse: rec,
			EditURL:        editURL(rec.ID, selectedNames, search),
		})
	}

	data := pageData{
		Records:         rows,
		FilterCountries: h.recordService.ListCountries(ctx, search),
		Selected:        selected,
		Search:          search,
		FilterOpen:      search != "" || len(selected) > 0,
		Error:           errMsg,
	}

	if editID := c.Query("edit"); editID != "" {
		if rec, err := h.recordService.GetRecord(ctx, editID); err == nil {
			picker := c.Query("picker")
			data.Editing = &editState{
				Record:          rec,
				PickerQuery:     picker,
				PickerCountries: h.recordService.ListCountries(ctx, picker),
			}
		}
	}

	return data
}

func (h *PageHandler) render(c *gin.Context, status int, data pageData) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(c.Writer, "admin.html", data); err != nil {
		h.log.Error().Err(err).Msg("Template render failed")
	}
}

// editURL links a row's edit action while keeping the current filter state.
func editURL(id string, countries []string, search string) string {
	values := url.Values{"edit": {id}}
	for _, name := range countries {
		if name != "" {
			values.Add("country", name)
		}
	}
	if search != "" {
		values.Set("search", search)
	}
	return "/?" + values.Encode()
}

package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/crewplan/backend/internal/command"
	"github.com/crewplan/backend/internal/models"
)

type ImportSummary struct {
	Users struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"users"`
	Projects struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"projects"`
	Allocations struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"allocations"`
	Errors []string `json:"errors"`
}

// @Summary Import CSV data
// @Description Upload users, projects, and optionally allocations CSV files. Replaces existing data.
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param users formData file true "users.csv"
// @Param projects formData file true "projects.csv"
// @Param allocations formData file false "allocations.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	usersFile, err := c.FormFile("users")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "users file required", nil)
		return
	}
	projectsFile, err := c.FormFile("projects")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "projects file required", nil)
		return
	}
	allocationsFile, _ := c.FormFile("allocations")

	if !validateExt(usersFile.Filename) || !validateExt(projectsFile.Filename) ||
		(allocationsFile != nil && !validateExt(allocationsFile.Filename)) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "all files must be .csv", nil)
		return
	}

	summary := ImportSummary{Errors: []string{}}

	users, errs := h.parseUsersCSV(usersFile)
	summary.Users.Parsed = len(users)
	summary.Users.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	projects, errs := h.parseProjectsCSV(projectsFile)
	summary.Projects.Parsed = len(projects)
	summary.Projects.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	var allocations []models.Allocation
	if allocationsFile != nil {
		allocations, errs = parseAllocationsCSV(allocationsFile, users, projects)
		summary.Allocations.Parsed = len(allocations)
		summary.Allocations.Errors = len(errs)
		summary.Errors = append(summary.Errors, errs...)
	}

	if len(summary.Errors) > 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "CSV validation errors", summary.Errors)
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.TruncateAll(ctx); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to reset tables", err.Error())
		return
	}

	inserted, err := h.Store.InsertUsers(ctx, users)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert users", err.Error())
		return
	}
	summary.Users.Inserted = int(inserted)

	inserted, err = h.Store.InsertProjects(ctx, projects)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert projects", err.Error())
		return
	}
	summary.Projects.Inserted = int(inserted)

	if len(allocations) > 0 {
		inserted, err = h.Store.InsertAllocations(ctx, allocations)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to insert allocations", err.Error())
			return
		}
		summary.Allocations.Inserted = int(inserted)
	}

	h.Logger.Info().
		Int("users", summary.Users.Inserted).
		Int("projects", summary.Projects.Inserted).
		Int("allocations", summary.Allocations.Inserted).
		Msg("import complete")
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) parseUsersCSV(file *multipart.FileHeader) ([]models.User, []string) {
	records, index, errs := readCSV(file)
	if errs != nil {
		return nil, errs
	}

	var errors []string
	var out []models.User
	for _, rec := range records {
		id := getFieldAny(rec, index, "id", "user_id")
		name := getFieldAny(rec, index, "name", "full_name", "user")
		jobFunction := getFieldAny(rec, index, "job_function", "function", "profession", "title")
		role := strings.ToLower(getFieldAny(rec, index, "permission_role", "role"))
		capacityStr := getFieldAny(rec, index, "weekly_capacity", "capacity")

		if name == "" {
			errors = append(errors, "user name required")
			continue
		}
		if id == "" {
			id = uuid.NewString()
		}
		switch models.PermissionRole(role) {
		case models.RoleEmployee, models.RoleManager, models.RoleAdmin:
		default:
			role = string(models.RoleEmployee)
		}

		var capacity *float64
		if capacityStr != "" {
			v, err := strconv.ParseFloat(capacityStr, 64)
			if err != nil || v <= 0 {
				errors = append(errors, fmt.Sprintf("invalid capacity %q for %s", capacityStr, name))
				continue
			}
			capacity = &v
		}

		out = append(out, models.User{
			ID:             id,
			OrgID:          h.OrgID,
			Name:           name,
			JobFunction:    jobFunction,
			PermissionRole: models.PermissionRole(role),
			WeeklyCapacity: capacity,
			Active:         parseBoolDefault(getFieldAny(rec, index, "active"), true),
			UpdatedAt:      time.Now().UTC(),
		})
	}
	return out, errors
}

func (h *Handler) parseProjectsCSV(file *multipart.FileHeader) ([]models.Project, []string) {
	records, index, errs := readCSV(file)
	if errs != nil {
		return nil, errs
	}

	var errors []string
	var out []models.Project
	for _, rec := range records {
		id := getFieldAny(rec, index, "id", "project_id")
		name := getFieldAny(rec, index, "name", "project", "project_name")
		if name == "" {
			errors = append(errors, "project name required")
			continue
		}
		if id == "" {
			id = uuid.NewString()
		}
		out = append(out, models.Project{
			ID:        id,
			OrgID:     h.OrgID,
			Name:      name,
			Active:    parseBoolDefault(getFieldAny(rec, index, "active"), true),
			CreatedAt: time.Now().UTC(),
		})
	}
	return out, errors
}

func parseAllocationsCSV(file *multipart.FileHeader, users []models.User, projects []models.Project) ([]models.Allocation, []string) {
	records, index, errs := readCSV(file)
	if errs != nil {
		return nil, errs
	}

	userIDs := map[string]string{}
	for _, u := range users {
		userIDs[strings.ToLower(u.Name)] = u.ID
		userIDs[u.ID] = u.ID
	}
	projectIDs := map[string]string{}
	for _, p := range projects {
		projectIDs[strings.ToLower(p.Name)] = p.ID
		projectIDs[p.ID] = p.ID
	}

	var errors []string
	var out []models.Allocation
	seen := map[models.AllocationKey]bool{}
	for _, rec := range records {
		userRef := getFieldAny(rec, index, "user_id", "user", "user_name")
		projectRef := getFieldAny(rec, index, "project_id", "project", "project_name")
		weekStr := getFieldAny(rec, index, "week_start", "week")
		hoursStr := getFieldAny(rec, index, "planned_hours", "hours")

		userID, ok := userIDs[strings.ToLower(userRef)]
		if !ok {
			errors = append(errors, fmt.Sprintf("unknown user %q in allocations", userRef))
			continue
		}
		projectID, ok := projectIDs[strings.ToLower(projectRef)]
		if !ok {
			errors = append(errors, fmt.Sprintf("unknown project %q in allocations", projectRef))
			continue
		}
		week, err := command.NormalizeWeek(weekStr, time.Now())
		if err != nil {
			errors = append(errors, fmt.Sprintf("invalid week %q in allocations", weekStr))
			continue
		}
		hours, err := strconv.ParseFloat(hoursStr, 64)
		if err != nil || hours < 0 {
			errors = append(errors, fmt.Sprintf("invalid hours %q for %s", hoursStr, userRef))
			continue
		}

		key := models.AllocationKey{UserID: userID, ProjectID: projectID, WeekStart: week}
		if seen[key] {
			errors = append(errors, fmt.Sprintf("duplicate allocation for %s / %s / %s", userRef, projectRef, week))
			continue
		}
		seen[key] = true

		out = append(out, models.Allocation{
			UserID:       userID,
			ProjectID:    projectID,
			WeekStart:    week,
			PlannedHours: hours,
			Notes:        getFieldAny(rec, index, "notes", "note"),
			IsBillable:   parseBoolDefault(getFieldAny(rec, index, "is_billable", "billable"), true),
			UpdatedAt:    time.Now().UTC(),
		})
	}
	return out, errors
}

func readCSV(file *multipart.FileHeader) ([][]string, map[string]int, []string) {
	f, err := file.Open()
	if err != nil {
		return nil, nil, []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, nil, []string{"failed to read header"}
	}
	index := headerIndex(headers)

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, []string{err.Error()}
		}
		records = append(records, rec)
	}
	return records, index, nil
}

func headerIndex(headers []string) map[string]int {
	idx := map[string]int{}
	for i, h := range headers {
		idx[normalizeHeader(h)] = i
	}
	return idx
}

func getField(rec []string, idx map[string]int, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

func getFieldAny(rec []string, idx map[string]int, names ...string) string {
	for _, name := range names {
		if v := getField(rec, idx, normalizeHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(h))
}

func parseBoolDefault(v string, def bool) bool {
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return def
	}
	return b
}

func validateExt(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

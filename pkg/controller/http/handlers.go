package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
	"github.com/opsmith-lab/taskmill/pkg/usecase"
	"github.com/opsmith-lab/taskmill/pkg/utils/errutil"
)

// actorHeader identifies the acting user on mutating requests.
const actorHeader = "X-Actor-ID"

// statusForError maps use case sentinels to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, usecase.ErrTaskNotFound),
		errors.Is(err, usecase.ErrUserNotFound),
		errors.Is(err, usecase.ErrTenantNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrDuplicateTask),
		errors.Is(err, usecase.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrInvalidFieldValue),
		errors.Is(err, usecase.ErrTenantMismatch):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrOperationTimeout):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	errutil.HandleHTTP(r.Context(), w, err, statusForError(err))
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return goerr.Wrap(usecase.ErrInvalidFieldValue, "invalid request body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func actorID(r *http.Request) (types.UserID, error) {
	actor := r.Header.Get(actorHeader)
	if actor == "" {
		return "", goerr.Wrap(usecase.ErrInvalidFieldValue, "X-Actor-ID header is required")
	}
	return types.UserID(actor), nil
}

type tenantResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) createTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	tenant, err := s.uc.Admin.CreateTenant(r.Context(), types.TenantID(req.ID), req.Name)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tenantResponse{
		ID:        string(tenant.ID),
		Name:      tenant.Name,
		CreatedAt: tenant.CreatedAt,
	})
}

type userResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        string(u.ID),
		TenantID:  string(u.TenantID),
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string `json:"id"`
		TenantID string `json:"tenant_id"`
		Name     string `json:"name"`
		Role     string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	user, err := s.uc.Admin.CreateUser(r.Context(), types.TenantID(req.TenantID), types.UserID(req.ID), req.Name, types.Role(req.Role))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toUserResponse(user))
}

type taskResponse struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Priority    string    `json:"priority"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          string(t.ID),
		TenantID:    string(t.TenantID),
		OwnerID:     string(t.OwnerID),
		Title:       t.Title,
		Priority:    string(t.Priority),
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID    string `json:"tenant_id"`
		OwnerID     string `json:"owner_id"`
		Title       string `json:"title"`
		Priority    string `json:"priority"`
		Description string `json:"description"`
		Status      string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	taskID, err := s.uc.Task.CreateTask(r.Context(),
		types.TenantID(req.TenantID),
		types.UserID(req.OwnerID),
		req.Title,
		types.Priority(req.Priority),
		req.Description,
		types.TaskStatus(req.Status),
	)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": string(taskID)})
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	var req struct {
		Title       *string `json:"title"`
		Priority    *string `json:"priority"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	patch := model.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Priority != nil {
		p := types.Priority(*req.Priority)
		patch.Priority = &p
	}
	if req.Status != nil {
		st := types.TaskStatus(*req.Status)
		patch.Status = &st
	}

	taskID := types.TaskID(chi.URLParam(r, "taskID"))
	if err := s.uc.Task.UpdateTask(r.Context(), taskID, actor, patch); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	actor, err := actorID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	taskID := types.TaskID(chi.URLParam(r, "taskID"))
	if err := s.uc.Task.DeleteTask(r.Context(), taskID, actor); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) shareTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	taskID := types.TaskID(chi.URLParam(r, "taskID"))
	if err := s.uc.Task.ShareTask(r.Context(), taskID, types.UserID(req.UserID)); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) visibleTasks(w http.ResponseWriter, r *http.Request) {
	userID := types.UserID(chi.URLParam(r, "userID"))

	tasks, err := s.uc.Visibility.GetVisibleTasks(r.Context(), userID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := struct {
		Tasks []taskResponse `json:"tasks"`
	}{Tasks: make([]taskResponse, len(tasks))}
	for i, task := range tasks {
		resp.Tasks[i] = toTaskResponse(task)
	}
	respondJSON(w, http.StatusOK, resp)
}

type historyEntryResponse struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	ChangedBy   string    `json:"changed_by"`
	ChangeDate  time.Time `json:"change_date"`
	Description string    `json:"description"`
}

func (s *Server) taskHistory(w http.ResponseWriter, r *http.Request) {
	taskID := types.TaskID(chi.URLParam(r, "taskID"))

	entries, err := s.uc.Audit.Trail(r.Context(), taskID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := struct {
		Entries []historyEntryResponse `json:"entries"`
	}{Entries: make([]historyEntryResponse, len(entries))}
	for i, entry := range entries {
		resp.Entries[i] = historyEntryResponse{
			ID:          string(entry.ID),
			TaskID:      string(entry.TaskID),
			ChangedBy:   string(entry.ChangedBy),
			ChangeDate:  entry.ChangeDate,
			Description: entry.Description,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) tenantReport(w http.ResponseWriter, r *http.Request) {
	tenantID := types.TenantID(chi.URLParam(r, "tenantID"))

	report, err := s.uc.Report.GetTenantActivityReport(r.Context(), tenantID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) tenantStatistics(w http.ResponseWriter, r *http.Request) {
	tenantID := types.TenantID(chi.URLParam(r, "tenantID"))

	rows, err := s.uc.Report.GetManagerStatistics(r.Context(), tenantID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Rows []usecase.ManagerStatRow `json:"rows"`
	}{Rows: rows})
}

func (s *Server) runArchival(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OlderThan string `json:"older_than"`
	}
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	retention, err := time.ParseDuration(req.OlderThan)
	if err != nil || retention < 0 {
		handleError(w, r, goerr.Wrap(usecase.ErrInvalidFieldValue, "older_than must be a non-negative duration"))
		return
	}

	moved, err := s.uc.Archival.ArchiveTasksOlderThan(r.Context(), time.Now().UTC().Add(-retention))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"archived": moved})
}

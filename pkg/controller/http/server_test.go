package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/opsmith-lab/taskmill/pkg/controller/http"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
	"github.com/opsmith-lab/taskmill/pkg/repository/memory"
	"github.com/opsmith-lab/taskmill/pkg/usecase"
)

func newTestServer(t *testing.T) (*httptest.Server, *usecase.UseCases) {
	t.Helper()
	uc := usecase.New(memory.New())
	srv := httptest.NewServer(httpctrl.New(uc))
	t.Cleanup(srv.Close)
	return srv, uc
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		gt.NoError(t, json.NewEncoder(&buf).Encode(body)).Required()
	}

	req, err := http.NewRequest(method, url, &buf)
	gt.NoError(t, err).Required()
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	gt.NoError(t, err).Required()
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	gt.NoError(t, json.NewDecoder(resp.Body).Decode(v)).Required()
}

func seedViaAPI(t *testing.T, baseURL string) (tenantID, ownerID string) {
	t.Helper()

	resp := doJSON(t, http.MethodPost, baseURL+"/api/tenants", map[string]string{"name": "Acme Corp"}, nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusCreated)
	var tenant struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &tenant)

	resp = doJSON(t, http.MethodPost, baseURL+"/api/users", map[string]string{
		"tenant_id": tenant.ID,
		"name":      "alice",
		"role":      "EMPLOYEE",
	}, nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusCreated)
	var user struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &user)

	return tenant.ID, user.ID
}

func createTaskViaAPI(t *testing.T, baseURL, tenantID, ownerID, title string) string {
	t.Helper()

	resp := doJSON(t, http.MethodPost, baseURL+"/api/tasks", map[string]string{
		"tenant_id":   tenantID,
		"owner_id":    ownerID,
		"title":       title,
		"priority":    "MEDIUM",
		"description": "created via API",
	}, nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusCreated)

	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &created)
	gt.String(t, created.ID).NotEqual("")
	return created.ID
}

func TestTaskEndpoints(t *testing.T) {
	t.Run("create task returns 201 with its ID", func(t *testing.T) {
		srv, _ := newTestServer(t)
		tenantID, ownerID := seedViaAPI(t, srv.URL)

		createTaskViaAPI(t, srv.URL, tenantID, ownerID, "First task")
	})

	t.Run("duplicate task returns 409", func(t *testing.T) {
		srv, _ := newTestServer(t)
		tenantID, ownerID := seedViaAPI(t, srv.URL)

		body := map[string]string{
			"tenant_id":   tenantID,
			"owner_id":    ownerID,
			"title":       "Dup",
			"priority":    "LOW",
			"description": "same",
		}
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks", body, nil)
		gt.Value(t, resp.StatusCode).Equal(http.StatusCreated)

		resp = doJSON(t, http.MethodPost, srv.URL+"/api/tasks", body, nil)
		gt.Value(t, resp.StatusCode).Equal(http.StatusConflict)
	})

	t.Run("invalid priority returns 400", func(t *testing.T) {
		srv, _ := newTestServer(t)
		tenantID, ownerID := seedViaAPI(t, srv.URL)

		resp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks", map[string]string{
			"tenant_id": tenantID,
			"owner_id":  ownerID,
			"title":     "Bad",
			"priority":  "URGENT",
		}, nil)
		gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)
	})

	t.Run("unknown tenant returns 404", func(t *testing.T) {
		srv, _ := newTestServer(t)
		_, ownerID := seedViaAPI(t, srv.URL)

		resp := doJSON(t, http.MethodPost, srv.URL+"/api/tasks", map[string]string{
			"tenant_id": string(types.NewTenantID()),
			"owner_id":  ownerID,
			"title":     "Orphan",
			"priority":  "LOW",
		}, nil)
		gt.Value(t, resp.StatusCode).Equal(http.StatusNotFound)
	})

	t.Run("patch requires the actor header", func(t *testing.T) {
		srv, _ := newTestServer(t)
		tenantID, ownerID := seedViaAPI(t, srv.URL)
		taskID := createTaskViaAPI(t, srv.URL, tenantID, ownerID, "Headerless")

		resp := doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/"+taskID, map[string]string{"title": "Renamed"}, nil)
		gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)
	})

	t.Run("patch updates the task and writes history", func(t *testing.T) {
		srv, _ := newTestServer(t)
		tenantID, ownerID := seedViaAPI(t, srv.URL)
		taskID := createTaskViaAPI(t, srv.URL, tenantID, ownerID, "Patch target")

		resp := doJSON(t, http.MethodPatch, srv.URL+"/api/tasks/"+taskID,
			map[string]string{"status": "IN_PROGRESS"},
			map[string]string{"X-Actor-ID": ownerID})
		gt.Value(t, resp.StatusCode).Equal(http.StatusNoContent)

		resp = doJSON(t, http.MethodGet, srv.URL+"/api/tasks/"+taskID+"/history", nil, nil)
		gt.Value(t, resp.StatusCode).Equal(http.StatusOK)

		var history struct {
			Entries []struct {
				ChangedBy   string `json:"changed_by"`
				Description string `json:"description"`
			} `json:"entries"`
		}
		decodeBody(t, resp, &history)
		gt.Array(t, history.Entries).Length(1)
		gt.Value(t, history.Entries[0].ChangedBy).Equal(ownerID)
		gt.Value(t, history.Entries[0].Description).Equal("status changed from PENDING to IN_PROGRESS")
	})

	t.Run("delete removes the task", func(t *testing.T) {
		srv, _ := newTestServer(t)
		tenantID, ownerID := seedViaAPI(t, srv.URL)
		taskID := createTaskViaAPI(t, srv.URL, tenantID, ownerID, "Doomed")

		resp := doJSON(t, http.MethodDelete, srv.URL+"/api/tasks/"+taskID, nil,
			map[string]string{"X-Actor-ID": ownerID})
		gt.Value(t, resp.StatusCode).Equal(http.StatusNoContent)

		resp = doJSON(t, http.MethodGet, srv.URL+"/api/tasks/"+taskID+"/history", nil, nil)
		gt.Value(t, resp.StatusCode).Equal(http.StatusNotFound)
	})

	t.Run("history of unknown task returns 404", func(t *testing.T) {
		srv, _ := newTestServer(t)

		resp := doJSON(t, http.MethodGet, srv.URL+"/api/tasks/"+string(types.NewTaskID())+"/history", nil, nil)
		gt.Value(t, resp.StatusCode).Equal(http.StatusNotFound)
	})
}

func TestShareAndVisibility(t *testing.T) {
	srv, _ := newTestServer(t)
	tenantID, ownerID := seedViaAPI(t, srv.URL)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/users", map[string]string{
		"tenant_id": tenantID,
		"name":      "bob",
		"role":      "EMPLOYEE",
	}, nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusCreated)
	var bob struct {
		ID string `json:"id"`
	}
	decodeBody(t, resp, &bob)

	sharedID := createTaskViaAPI(t, srv.URL, tenantID, ownerID, "Shared")
	createTaskViaAPI(t, srv.URL, tenantID, ownerID, "Private")

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/tasks/"+sharedID+"/share",
		map[string]string{"user_id": bob.ID}, nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusNoContent)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/users/"+bob.ID+"/tasks", nil, nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)

	var visible struct {
		Tasks []struct {
			ID string `json:"id"`
		} `json:"tasks"`
	}
	decodeBody(t, resp, &visible)
	gt.Array(t, visible.Tasks).Length(1)
	gt.Value(t, visible.Tasks[0].ID).Equal(sharedID)
}

func TestReportEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	tenantID, ownerID := seedViaAPI(t, srv.URL)

	for i := 0; i < 3; i++ {
		createTaskViaAPI(t, srv.URL, tenantID, ownerID, fmt.Sprintf("Task %d", i))
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/tenants/"+tenantID+"/report", nil, nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	var report struct {
		TotalUsers   int `json:"total_users"`
		TotalTasks   int `json:"total_tasks"`
		PendingTasks int `json:"pending_tasks"`
	}
	decodeBody(t, resp, &report)
	gt.Value(t, report.TotalUsers).Equal(1)
	gt.Value(t, report.TotalTasks).Equal(3)
	gt.Value(t, report.PendingTasks).Equal(3)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/tenants/"+tenantID+"/statistics", nil, nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)
	var stats struct {
		Rows []struct {
			Employee string `json:"employee"`
			Count    int    `json:"count"`
		} `json:"rows"`
	}
	decodeBody(t, resp, &stats)
	gt.Array(t, stats.Rows).Length(1)
	gt.Value(t, stats.Rows[0].Employee).Equal(ownerID)
	gt.Value(t, stats.Rows[0].Count).Equal(3)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/tenants/"+string(types.NewTenantID())+"/report", nil, nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusNotFound)
}

func TestArchivalEndpoint(t *testing.T) {
	srv, uc := newTestServer(t)
	tenantID, ownerID := seedViaAPI(t, srv.URL)
	taskID := createTaskViaAPI(t, srv.URL, tenantID, ownerID, "Old task")

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/archival/run", map[string]string{"older_than": "0s"}, nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusOK)

	var result struct {
		Archived int `json:"archived"`
	}
	decodeBody(t, resp, &result)
	gt.Value(t, result.Archived).Equal(1)

	_, err := uc.Task.GetTask(context.Background(), types.TaskID(taskID))
	gt.Error(t, err)

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/archival/run", map[string]string{"older_than": "not-a-duration"}, nil)
	gt.Value(t, resp.StatusCode).Equal(http.StatusBadRequest)
}

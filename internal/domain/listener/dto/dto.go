package dto

import (
	"time"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/entities"
)

// StartListenerRequest is the body of POST /start_listener.
// The account may be given as accountId or, as older clients do, as phone.
type StartListenerRequest struct {
	AccountID string              `json:"accountId"`
	Phone     string              `json:"phone"`
	Groups    []entities.GroupRef `json:"groups"`
}

// Account returns the addressed account id
func (r *StartListenerRequest) Account() string {
	if r.AccountID != "" {
		return r.AccountID
	}
	return r.Phone
}

// ListenerStatusResponse is the body of GET /listener_status/{accountId}
type ListenerStatusResponse struct {
	AccountID string              `json:"account_id"`
	Running   bool                `json:"running"`
	TaskID    string              `json:"task_id,omitempty"`
	State     string              `json:"state,omitempty"`
	Groups    []entities.GroupRef `json:"groups"`
	Resolved  int                 `json:"resolved_groups"`
	StartedAt *time.Time          `json:"started_at,omitempty"`
	LastError string              `json:"last_error,omitempty"`
}

// NewListenerStatusResponse converts a registry snapshot
func NewListenerStatusResponse(st entities.ListenerStatus) ListenerStatusResponse {
	resp := ListenerStatusResponse{
		AccountID: st.AccountID,
		Running:   st.Running,
		TaskID:    st.TaskID,
		State:     string(st.State),
		Groups:    st.Groups,
		Resolved:  st.Resolved,
		LastError: st.LastError,
	}
	if resp.Groups == nil {
		resp.Groups = []entities.GroupRef{}
	}
	if !st.StartedAt.IsZero() {
		t := st.StartedAt
		resp.StartedAt = &t
	}
	return resp
}

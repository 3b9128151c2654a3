package dto

import "github.com/Conte777/NewsFlow/services/listener-service/pkg/jsonutil"

// InitRequest is the body of POST /session/init; api_id may be a number or a numeric string
type InitRequest struct {
	Phone   string           `json:"phone"`
	APIID   jsonutil.FlexInt `json:"api_id"`
	APIHash string           `json:"api_hash"`
}

// CompleteRequest is the body of POST /session/complete
type CompleteRequest struct {
	Phone    string `json:"phone"`
	Code     string `json:"code"`
	Password string `json:"password,omitempty"`
}

// StatusResponse is the body of GET /session/status/{phone}
type StatusResponse struct {
	HasSession bool `json:"has_session"`
}

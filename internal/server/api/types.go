// Package api holds the JSON envelope shared by every buckfinder endpoint.
package api

// Error is the failure half of the envelope. Code is a models.ErrorCode
// for scan and export failures, or a transport code such as "bad_json".
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"` // per-field validation problems
}

// Response wraps every reply: {"ok":true,"data":...} or {"ok":false,"error":{...}}
type Response struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

package models

// APIProblem represents an RFC 7807 Problem Details response returned by
// the bridge API.
type APIProblem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

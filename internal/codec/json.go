package codec

import (
	"encoding/json"
	"net/http"
)

// DataResponse is the success envelope for single items.
type DataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ListResponse is the success envelope for collections.
type ListResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Data    any  `json:"data"`
}

// WriteJSON writes payload as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteData writes {"success": true, "data": data}.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, DataResponse{Success: true, Data: data})
}

// WriteList writes {"success": true, "count": n, "data": items}.
func WriteList(w http.ResponseWriter, count int, items any) {
	WriteJSON(w, http.StatusOK, ListResponse{Success: true, Count: count, Data: items})
}

package models

// These structs define the JSON payloads of the face API.

// MakeFaceRequest is built from the /make_face/{u_id} path; it has no body.
type MakeFaceRequest struct {
	UserID string `json:"userId"`
}

// MakeFaceResponse is returned on success. ImageURL is always MakeFaceOK;
// the uploaded URL is only written to the user's record.
type MakeFaceResponse struct {
	ImageURL string `json:"image_url"`
}

const MakeFaceOK = "ok"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Message string `json:"message"`
}

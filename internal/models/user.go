package models

// Firestore field names overwritten on a Users document after a face is generated.
// No other field of the document is touched.
const (
	FieldLikeFaceURL = "likeface_url"
	FieldUpdatedAt   = "updatedAt"
)

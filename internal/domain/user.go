package domain

// User is the slice of the profile store the realtime layer reads.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	// PushHandle addresses the user on the push channel; empty means the
	// user cannot receive pushes.
	PushHandle string `json:"-"`
}

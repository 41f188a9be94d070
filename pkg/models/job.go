package models

const (
	JobStatePending   = "pending"
	JobStateSucceeded = "succeeded"
	JobStateFailed    = "failed"
)

// JobStatus is the normalized view of a Replicate prediction. State is one of the
// JobState constants; Label is the provider's own status word and is what clients see.
type JobStatus struct {
	State    string `json:"-"`
	Label    string `json:"status"`
	ImageURL string `json:"image_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (s JobStatus) Done() bool {
	return s.State == JobStateSucceeded || s.State == JobStateFailed
}

package model

// AnalysisFile is the per-file slice of a review analysis request.
type AnalysisFile struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// AnalysisStats summarises the diff size for the analysis service.
type AnalysisStats struct {
	TotalFiles int `json:"total_files"`
	Additions  int `json:"additions"`
	Deletions  int `json:"deletions"`
}

// ReviewAnalysisRequest is the payload submitted to the review flow. It is an
// opaque JSON bag from the analysis service's point of view; fields mirror
// the PR summary the workflow assembles.
type ReviewAnalysisRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Author      string         `json:"author"`
	Branch      string         `json:"branch"`
	Files       []AnalysisFile `json:"files"`
	Stats       AnalysisStats  `json:"stats"`
}

// MergeAnalysisRequest is the payload submitted to the merge-check flow.
type MergeAnalysisRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Author         string `json:"author"`
	Mergeable      *bool  `json:"mergeable"`
	MergeableState string `json:"mergeable_state"`
	PreviousReview string `json:"previous_review"`
}

// AnalysisResult is the normalized outcome of one analysis-service call.
// Failures are values, not errors: the client never propagates transport or
// decode problems as anything other than OK=false with a reason.
type AnalysisResult struct {
	OK      bool
	Message string // Human-readable result text; set when OK.
	Reason  string // Failure description; set when !OK.
}

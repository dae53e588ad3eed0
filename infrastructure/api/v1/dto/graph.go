package dto

// GraphBuildRequest is the body for POST /graph/build.
type GraphBuildRequest struct {
	RepositoryIDs []string `json:"repository_ids"`
	Depth         string   `json:"depth,omitempty"`
}

// GraphBuildResponse lists the repositories queued for graph construction.
type GraphBuildResponse struct {
	Queued []string `json:"queued"`
}

// PatternDetectRequest is the body for POST /graph/{id}/patterns/detect.
type PatternDetectRequest struct {
	Names []string `json:"names,omitempty"`
}
